package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the identity projection the conversation engine needs. Account
// creation, credentials and profile editing live in the CRUD backend.
type User struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	AvatarURL   string             `bson:"avatarUrl" json:"avatarUrl"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
