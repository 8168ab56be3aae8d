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

type ChatRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	GetByUserID(ctx context.Context, userID string) ([]*models.ChatMessage, error)
	MarkRead(ctx context.Context, userID string, fromUser bool) (int64, error)
	CountUnread(ctx context.Context, userID string, fromUser bool) (int64, error)
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
	CreateIndexes(ctx context.Context) error
}

type chatRepository struct {
	collection *mongo.Collection
}

func NewChatRepository(db *mongo.Database) ChatRepository {
	return &chatRepository{
		collection: db.Collection("chat_messages"),
	}
}

func (r *chatRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return apperrors.Dependency("failed to create chat message", err)
	}

	message.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *chatRepository) GetByUserID(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Dependency("failed to get chat messages", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.ChatMessage
	for cursor.Next(ctx) {
		var message models.ChatMessage
		if err := cursor.Decode(&message); err != nil {
			continue
		}
		messages = append(messages, &message)
	}

	return messages, cursor.Err()
}

// MarkRead marks unread messages in one direction of a conversation as read.
// fromUser selects customer-sent (true) or admin-sent (false) messages.
func (r *chatRepository) MarkRead(ctx context.Context, userID string, fromUser bool) (int64, error) {
	filter := bson.M{
		"user_id": userID,
		"is_user": fromUser,
		"is_read": false,
	}
	update := bson.M{
		"$set": bson.M{
			"is_read":    true,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, apperrors.Dependency("failed to mark chat messages read", err)
	}

	return result.ModifiedCount, nil
}

func (r *chatRepository) CountUnread(ctx context.Context, userID string, fromUser bool) (int64, error) {
	filter := bson.M{
		"user_id": userID,
		"is_user": fromUser,
		"is_read": false,
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, apperrors.Dependency("failed to count unread messages", err)
	}

	return count, nil
}

// ListConversations groups messages by customer with last-message details and
// the count of customer messages the admin has not read yet.
func (r *chatRepository) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	pipeline := []bson.M{
		{
			"$sort": bson.M{"created_at": 1},
		},
		{
			"$group": bson.M{
				"_id":             "$user_id",
				"last_message":    bson.M{"$last": "$message"},
				"last_message_at": bson.M{"$last": "$created_at"},
				"unread_count": bson.M{
					"$sum": bson.M{
						"$cond": []interface{}{
							bson.M{"$and": []bson.M{
								{"$eq": []interface{}{"$is_user", true}},
								{"$eq": []interface{}{"$is_read", false}},
							}},
							1,
							0,
						},
					},
				},
			},
		},
		{
			"$lookup": bson.M{
				"from":         "accounts",
				"localField":   "_id",
				"foreignField": "user_id",
				"as":           "account",
			},
		},
		{
			"$addFields": bson.M{
				"user_name": bson.M{
					"$cond": []interface{}{
						bson.M{"$gt": []interface{}{bson.M{"$size": "$account"}, 0}},
						bson.M{"$concat": []interface{}{
							bson.M{"$arrayElemAt": []interface{}{"$account.first_name", 0}},
							" ",
							bson.M{"$arrayElemAt": []interface{}{"$account.last_name", 0}},
						}},
						"$_id",
					},
				},
			},
		},
		{
			"$project": bson.M{"account": 0},
		},
		{
			"$sort": bson.M{"last_message_at": -1},
		},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.Dependency("failed to list conversations", err)
	}
	defer cursor.Close(ctx)

	var conversations []*models.Conversation
	for cursor.Next(ctx) {
		var conversation models.Conversation
		if err := cursor.Decode(&conversation); err != nil {
			continue
		}
		conversations = append(conversations, &conversation)
	}

	return conversations, cursor.Err()
}

func (r *chatRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_user", Value: 1},
				{Key: "is_read", Value: 1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create chat message indexes: %w", err)
	}

	return nil
}
