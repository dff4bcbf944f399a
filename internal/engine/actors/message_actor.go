package actors

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tradepost/internal/database"
	"tradepost/internal/models"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Attempts for a transactional write before a conflict is surfaced.
	maxTxAttempts = 3

	// Budget for one coordinator operation, storage and fan-out included.
	opTimeout = 10 * time.Second
)

// contentPolicy strips all HTML/script from message content before storage.
var contentPolicy = bluemonday.StrictPolicy()

// MessageActor is the message transaction coordinator: it resolves the
// conversation, persists the message and updates the denormalized summary as
// one atomic unit, then fans out to live connections and the notification
// collaborator.
type MessageActor struct {
	store      database.Store
	dispatcher *Dispatcher
	notifier   Notifier
	metrics    *utils.MetricsCollector
}

func NewMessageActor(store database.Store, dispatcher *Dispatcher, notifier Notifier, metrics *utils.MetricsCollector) actor.Actor {
	return &MessageActor{
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		metrics:    metrics,
	}
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *SendMessageMsg:
		context.Respond(a.handleSendMessage(msg))
	}
}

func (a *MessageActor) handleSendMessage(msg *SendMessageMsg) any {
	start := time.Now()
	a.metrics.IncrementRequests()

	result, err := a.sendMessage(msg)
	if err != nil {
		a.metrics.IncrementErrors()
		return asAppError(err)
	}

	a.metrics.AddOperationLatency("sendMessage", time.Since(start))
	return result
}

func (a *MessageActor) sendMessage(msg *SendMessageMsg) (*SendMessageResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	content := strings.TrimSpace(contentPolicy.Sanitize(msg.Content))
	if msg.FromID.IsZero() || msg.ToID.IsZero() || content == "" {
		return nil, utils.NewValidationError("sender, receiver and content are required")
	}
	if msg.FromID == msg.ToID {
		return nil, utils.NewValidationError("cannot send a message to yourself")
	}
	msgType := msg.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		return nil, utils.NewValidationError("unsupported message type: " + msgType)
	}

	// Resolve the sender identity before touching storage state.
	sender, err := a.store.GetUser(ctx, msg.FromID)
	if err != nil {
		return nil, err
	}

	var saved *models.Message
	var conv *models.Conversation
	err = utils.WithRetry(ctx, maxTxAttempts, utils.IsTransient, func(ctx context.Context) error {
		return a.store.RunInTransaction(ctx, func(txCtx context.Context) error {
			c, created, err := resolveConversation(txCtx, a.store, msg.ConversationID, msg.FromID, msg.ToID)
			if err != nil {
				return err
			}
			if created {
				if err := a.store.InsertConversation(txCtx, c); err != nil {
					return err
				}
			}

			m := &models.Message{
				ID:             primitive.NewObjectID(),
				ConversationID: c.ID,
				FromID:         msg.FromID,
				ToID:           msg.ToID,
				Content:        content,
				Type:           msgType,
				CreatedAt:      time.Now(),
				IsRead:         false,
			}
			if err := a.store.InsertMessage(txCtx, m); err != nil {
				return err
			}
			if err := a.store.ApplyMessageToConversation(txCtx, c.ID, m); err != nil {
				return err
			}

			c.ApplyMessage(m)
			saved, conv = m, c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	a.fanOut(ctx, sender, saved, conv)
	return &SendMessageResult{Message: saved, Conversation: conv}, nil
}

// fanOut runs after commit and is best-effort throughout: a failure here is
// reported but never rolls the message back.
func (a *MessageActor) fanOut(ctx context.Context, sender *models.User, saved *models.Message, conv *models.Conversation) {
	receiver := []primitive.ObjectID{saved.ToID}
	origin := []primitive.ObjectID{saved.FromID}

	a.dispatcher.Push(receiver, websocket.EventReceiveMessage, saved)
	a.dispatcher.Push(receiver, websocket.EventConversationUpdate, conv)
	a.dispatcher.Push(receiver, websocket.EventNewMessageNotification, MessageAlert{
		ConversationID: conv.ID,
		MessageID:      saved.ID,
		Sender:         saved.FromID,
		SenderName:     sender.DisplayName,
		Preview:        conv.LastMessage,
	})

	a.dispatcher.Push(origin, websocket.EventMessageSent, saved)
	a.dispatcher.Push(origin, websocket.EventConversationUpdate, conv)

	notification, err := a.notifier.CreateNotification(ctx, saved.ToID, models.NotificationKindMessage, conv.LastMessage, &saved.ID)
	if err != nil {
		slog.Warn("notification creation failed",
			"conversation", conv.ID.Hex(),
			"receiver", saved.ToID.Hex(),
			"error", err)
		a.dispatcher.Push(origin, websocket.EventError, websocket.ErrorPayload{
			Message: "message delivered, but notifying the receiver failed",
		})
		return
	}
	a.dispatcher.Push(receiver, websocket.EventNewNotification, notification)
}

// asAppError keeps actor responses uniform for the transport router.
func asAppError(err error) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewAppError(utils.ErrDatabase, "operation failed", err)
}
