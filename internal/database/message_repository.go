package database

import (
	"context"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) InsertMessage(ctx context.Context, msg *models.Message) error {
	if _, err := m.Messages.InsertOne(ctx, msg); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert message", err)
	}
	return nil
}

// GetConversationMessages returns the conversation history in persistence
// order.
func (m *MongoDB) GetConversationMessages(ctx context.Context, convID primitive.ObjectID) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.Messages.Find(ctx, bson.M{"conversationId": convID}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to get messages", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode messages", err)
	}
	return messages, nil
}

// CountUnread counts the messages in the conversation addressed to userID
// that have not been read yet.
func (m *MongoDB) CountUnread(ctx context.Context, convID, userID primitive.ObjectID) (int64, error) {
	count, err := m.Messages.CountDocuments(ctx, bson.M{
		"conversationId": convID,
		"toId":           userID,
		"isRead":         false,
	})
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to count unread messages", err)
	}
	return count, nil
}

// MarkMessagesRead flips every unread message addressed to userID in the
// conversation to read and reports how many were flipped. IsRead never
// reverts, so the filter makes this naturally idempotent.
func (m *MongoDB) MarkMessagesRead(ctx context.Context, convID, userID primitive.ObjectID) (int64, error) {
	res, err := m.Messages.UpdateMany(
		ctx,
		bson.M{
			"conversationId": convID,
			"toId":           userID,
			"isRead":         false,
		},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to mark messages read", err)
	}
	return res.ModifiedCount, nil
}
