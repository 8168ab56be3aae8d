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

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)
	UpdateBalances(ctx context.Context, account *models.Account) error
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CreateIndexes(ctx context.Context) error
}

type accountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{
		collection: db.Collection("accounts"),
	}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, account)
	if err != nil {
		return apperrors.Dependency("failed to create account", err)
	}

	account.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("account not found")
		}
		return nil, apperrors.Dependency("failed to get account by ID", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("account not found for user %s", userID)
		}
		return nil, apperrors.Dependency("failed to get account by user ID", err)
	}
	return &account, nil
}

// UpdateBalances writes the account's balances with a version check. A
// MatchedCount of zero means another writer got there first.
func (r *accountRepository) UpdateBalances(ctx context.Context, account *models.Account) error {
	now := time.Now()
	filter := bson.M{
		"user_id": account.UserID,
		"version": account.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"available_balance": account.AvailableBalance,
			"current_balance":   account.CurrentBalance,
			"balance":           account.Balance,
			"updated_at":        now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperrors.Dependency("failed to update account balances", err)
	}

	if result.MatchedCount == 0 {
		return apperrors.Conflict("account %s was modified concurrently", account.UserID)
	}

	account.Version++
	account.UpdatedAt = now
	return nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperrors.Dependency("failed to list accounts", err)
	}
	defer cursor.Close(ctx)

	var accounts []*models.Account
	for cursor.Next(ctx) {
		var account models.Account
		if err := cursor.Decode(&account); err != nil {
			continue
		}
		accounts = append(accounts, &account)
	}

	return accounts, cursor.Err()
}

func (r *accountRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}

	return nil
}
