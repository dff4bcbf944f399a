package database

import (
	"context"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetUser resolves a user identity to its display profile.
func (m *MongoDB) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := m.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("user", id.Hex())
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to get user", err)
	}
	return &user, nil
}

// SaveUser upserts an identity document. The CRUD backend owns user records;
// this exists for the simulator and seeding.
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.Users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, opts); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save user", err)
	}
	return nil
}
