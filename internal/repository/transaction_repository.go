package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
	"github.com/logsmarket001/api-fidelity-trust/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*models.Transaction, error)
	Update(ctx context.Context, transaction *models.Transaction) error
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
	GetAllByUserID(ctx context.Context, userID string) ([]*models.Transaction, error)
	CreateIndexes(ctx context.Context) error
}

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &transactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	transaction.CreatedAt = time.Now()
	transaction.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, transaction)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("transaction with idempotency key already exists")
		}
		return apperrors.Dependency("failed to create transaction", err)
	}

	transaction.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("transaction not found")
		}
		return nil, apperrors.Dependency("failed to get transaction by ID", err)
	}
	return &transaction, nil
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"idempotency_key": idempotencyKey}).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // not found is not an error for idempotency checks
		}
		return nil, apperrors.Dependency("failed to get transaction by idempotency key", err)
	}
	return &transaction, nil
}

func (r *transactionRepository) Update(ctx context.Context, transaction *models.Transaction) error {
	transaction.UpdatedAt = time.Now()

	filter := bson.M{"_id": transaction.ID}
	update := bson.M{"$set": transaction}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperrors.Dependency("failed to update transaction", err)
	}

	if result.MatchedCount == 0 {
		return apperrors.NotFound("transaction not found for update")
	}

	return nil
}

func (r *transactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	return r.find(ctx, filter, opts)
}

func (r *transactionRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	return r.find(ctx, bson.M{}, opts)
}

// GetAllByUserID returns the user's full history, oldest first. Used by the
// reconciler to replay balance effects.
func (r *transactionRepository) GetAllByUserID(ctx context.Context, userID string) ([]*models.Transaction, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	return r.find(ctx, filter, opts)
}

func (r *transactionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Transaction, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Dependency("failed to query transactions", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	for cursor.Next(ctx) {
		var transaction models.Transaction
		if err := cursor.Decode(&transaction); err != nil {
			continue
		}
		transactions = append(transactions, &transaction)
	}

	return transactions, cursor.Err()
}

func (r *transactionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$exists": true, "$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "type", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}

	return nil
}
