package database

import (
	"context"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (m *MongoDB) InsertNotification(ctx context.Context, n *models.Notification) error {
	if _, err := m.Notifications.InsertOne(ctx, n); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert notification", err)
	}
	return nil
}

func (m *MongoDB) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	if _, err := m.Subscriptions.InsertOne(ctx, sub); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save push subscription", err)
	}
	return nil
}

func (m *MongoDB) GetPushSubscriptions(ctx context.Context, userID primitive.ObjectID) ([]*models.PushSubscription, error) {
	cursor, err := m.Subscriptions.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to get push subscriptions", err)
	}
	defer cursor.Close(ctx)

	var subs []*models.PushSubscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode push subscriptions", err)
	}
	return subs, nil
}
