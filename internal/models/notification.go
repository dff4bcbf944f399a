package models

import (
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification kinds emitted by the conversation engine.
const (
	NotificationKindMessage = "message"
)

// Notification is the persisted record handed to the notification center.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId"`
	Kind      string              `bson:"kind" json:"kind"`
	Content   string              `bson:"content" json:"content"`
	RelatedID *primitive.ObjectID `bson:"relatedId,omitempty" json:"relatedId,omitempty"`
	IsRead    bool                `bson:"isRead" json:"isRead"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// PushSubscription stores a browser push endpoint registered by a user.
type PushSubscription struct {
	ID           primitive.ObjectID   `bson:"_id" json:"id"`
	UserID       primitive.ObjectID   `bson:"userId" json:"userId"`
	Subscription webpush.Subscription `bson:"subscription" json:"subscription"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
}
