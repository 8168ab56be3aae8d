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

type StockRepository interface {
	Create(ctx context.Context, purchase *models.StockPurchase) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.StockPurchase, error)
	GetActiveByUserID(ctx context.Context, userID string) ([]*models.StockPurchase, error)
	UpdateQuantity(ctx context.Context, id primitive.ObjectID, quantity int64) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CreateIndexes(ctx context.Context) error
}

type stockRepository struct {
	collection *mongo.Collection
}

func NewStockRepository(db *mongo.Database) StockRepository {
	return &stockRepository{
		collection: db.Collection("stock_purchases"),
	}
}

func (r *stockRepository) Create(ctx context.Context, purchase *models.StockPurchase) error {
	purchase.CreatedAt = time.Now()
	purchase.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, purchase)
	if err != nil {
		return apperrors.Dependency("failed to create stock purchase", err)
	}

	purchase.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *stockRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.StockPurchase, error) {
	var purchase models.StockPurchase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&purchase)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("stock purchase not found")
		}
		return nil, apperrors.Dependency("failed to get stock purchase", err)
	}
	return &purchase, nil
}

func (r *stockRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.StockPurchase, error) {
	filter := bson.M{
		"user_id": userID,
		"status":  models.PurchaseActive,
	}
	opts := options.Find().SetSort(bson.M{"purchase_date": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Dependency("failed to get stock purchases", err)
	}
	defer cursor.Close(ctx)

	var purchases []*models.StockPurchase
	for cursor.Next(ctx) {
		var purchase models.StockPurchase
		if err := cursor.Decode(&purchase); err != nil {
			continue
		}
		purchases = append(purchases, &purchase)
	}

	return purchases, cursor.Err()
}

func (r *stockRepository) UpdateQuantity(ctx context.Context, id primitive.ObjectID, quantity int64) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"quantity":   quantity,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperrors.Dependency("failed to update stock quantity", err)
	}

	if result.MatchedCount == 0 {
		return apperrors.NotFound("stock purchase not found for quantity update")
	}

	return nil
}

func (r *stockRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperrors.Dependency("failed to delete stock purchase", err)
	}

	if result.DeletedCount == 0 {
		return apperrors.NotFound("stock purchase not found for delete")
	}

	return nil
}

func (r *stockRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "stock_id", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create stock purchase indexes: %w", err)
	}

	return nil
}
