package actors

import (
	"context"

	"tradepost/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presence is the live-connection registry the engine fans out through. The
// in-process websocket hub implements it; a shared external registry could
// be swapped in without touching the actors.
type Presence interface {
	IsOnline(userID primitive.ObjectID) bool
	Push(userID primitive.ObjectID, event string, data any)
	OnlineIDs() []primitive.ObjectID
}

// Notifier is the downstream notification collaborator. Failures are
// best-effort territory: they never undo committed state.
type Notifier interface {
	CreateNotification(ctx context.Context, userID primitive.ObjectID, kind, content string, relatedID *primitive.ObjectID) (*models.Notification, error)
}

// Dispatcher pushes an event to each target currently registered with the
// presence service. Offline targets are skipped silently: delivery here is
// at-most-once and immediate, durable state is the transaction's job.
type Dispatcher struct {
	presence Presence
}

func NewDispatcher(presence Presence) *Dispatcher {
	return &Dispatcher{presence: presence}
}

func (d *Dispatcher) Push(targets []primitive.ObjectID, event string, data any) {
	for _, target := range targets {
		if d.presence.IsOnline(target) {
			d.presence.Push(target, event, data)
		}
	}
}
