package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tradepost/internal/config"
	"tradepost/internal/database"
	"tradepost/internal/models"
	"tradepost/internal/utils"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service is the notification collaborator: it persists a notification
// record and then tries web push delivery to the user's registered browser
// endpoints. Web push is best-effort and silently disabled without a VAPID
// key pair.
type Service struct {
	store           database.Store
	vapidPublicKey  string
	vapidPrivateKey string
	subscriber      string
}

func NewService(store database.Store, cfg *config.PushConfig) *Service {
	return &Service{
		store:           store,
		vapidPublicKey:  cfg.VAPIDPublicKey,
		vapidPrivateKey: cfg.VAPIDPrivateKey,
		subscriber:      cfg.Subscriber,
	}
}

// CreateNotification stores the notification and kicks off push delivery.
// A storage failure surfaces as a NOTIFICATION_ERROR; push failures are only
// logged.
func (s *Service) CreateNotification(ctx context.Context, userID primitive.ObjectID, kind, content string, relatedID *primitive.ObjectID) (*models.Notification, error) {
	n := &models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Kind:      kind,
		Content:   content,
		RelatedID: relatedID,
		IsRead:    false,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, utils.NewNotificationError("failed to store notification", err)
	}

	s.sendWebPush(ctx, n)
	return n, nil
}

func (s *Service) sendWebPush(ctx context.Context, n *models.Notification) {
	if s.vapidPrivateKey == "" || s.vapidPublicKey == "" {
		return
	}

	subs, err := s.store.GetPushSubscriptions(ctx, n.UserID)
	if err != nil {
		slog.Warn("failed to load push subscriptions", "user", n.UserID.Hex(), "error", err)
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": "New message",
		"body":  n.Content,
	})
	if err != nil {
		slog.Error("failed to encode push payload", "error", err)
		return
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &sub.Subscription, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.vapidPublicKey,
			VAPIDPrivateKey: s.vapidPrivateKey,
			TTL:             30,
		})
		if resp != nil {
			resp.Body.Close()
		}
		if err != nil {
			slog.Warn("web push delivery failed", "user", n.UserID.Hex(), "error", err)
		}
	}
}
