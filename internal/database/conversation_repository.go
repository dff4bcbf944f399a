package database

import (
	"context"
	"fmt"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetConversation fetches a conversation by id.
func (m *MongoDB) GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.Conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("conversation", id.Hex())
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to get conversation", err)
	}
	return &conv, nil
}

// FindConversationByParticipants looks up the single conversation for an
// unordered pair. Returns (nil, nil) when none exists yet.
func (m *MongoDB) FindConversationByParticipants(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.Conversations.FindOne(ctx, bson.M{"pairKey": models.PairKey(a, b)}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to find conversation", err)
	}
	return &conv, nil
}

func (m *MongoDB) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	if _, err := m.Conversations.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race against a concurrent first send for the same pair.
			return utils.NewTransientConflictError("conversation already created for pair", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to insert conversation", err)
	}
	return nil
}

// GetUserConversations returns all conversations the user participates in,
// most recently active first.
func (m *MongoDB) GetUserConversations(ctx context.Context, userID primitive.ObjectID) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})
	cursor, err := m.Conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to list conversations", err)
	}
	defer cursor.Close(ctx)

	var conversations []*models.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode conversations", err)
	}
	return conversations, nil
}

// ApplyMessageToConversation appends the message reference and refreshes the
// denormalized summary in one update: preview fields follow the message and
// the receiver's unread counter is incremented. The sender's counter is left
// exactly as stored.
func (m *MongoDB) ApplyMessageToConversation(ctx context.Context, convID primitive.ObjectID, msg *models.Message) error {
	update := bson.M{
		"$push": bson.M{"messages": msg.ID},
		"$set": bson.M{
			"lastMessage":     msg.Summary(),
			"lastMessageAt":   msg.CreatedAt,
			"lastMessageFrom": msg.FromID,
		},
		"$inc": bson.M{"unreadCount." + msg.ToID.Hex(): 1},
	}
	res, err := m.Conversations.UpdateByID(ctx, convID, update)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update conversation summary", err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("conversation", convID.Hex())
	}
	return nil
}

// ResetUnread zeroes the participant's unread counter. The peer's counter is
// untouched.
func (m *MongoDB) ResetUnread(ctx context.Context, convID, userID primitive.ObjectID) error {
	field := fmt.Sprintf("unreadCount.%s", userID.Hex())
	res, err := m.Conversations.UpdateByID(ctx, convID, bson.M{"$set": bson.M{field: 0}})
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to reset unread counter", err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("conversation", convID.Hex())
	}
	return nil
}
