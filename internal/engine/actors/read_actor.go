package actors

import (
	"context"
	"time"

	"tradepost/internal/database"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// ReadActor is the read-acknowledgement coordinator: it flips a batch of
// unread messages to read and resets the acknowledging user's counter in one
// atomic unit, retrying under transient write-conflicts.
type ReadActor struct {
	store      database.Store
	dispatcher *Dispatcher
	metrics    *utils.MetricsCollector
}

func NewReadActor(store database.Store, dispatcher *Dispatcher, metrics *utils.MetricsCollector) actor.Actor {
	return &ReadActor{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

func (a *ReadActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *MarkReadMsg:
		context.Respond(a.handleMarkRead(msg))
	}
}

func (a *ReadActor) handleMarkRead(msg *MarkReadMsg) any {
	start := time.Now()
	a.metrics.IncrementRequests()

	result, err := a.markRead(msg)
	if err != nil {
		a.metrics.IncrementErrors()
		return asAppError(err)
	}

	a.metrics.AddOperationLatency("markRead", time.Since(start))
	return result
}

func (a *ReadActor) markRead(msg *MarkReadMsg) (*MarkReadResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if msg.ConversationID.IsZero() || msg.UserID.IsZero() {
		return nil, utils.NewValidationError("conversationId and userId are required")
	}

	conv, err := a.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(msg.UserID) {
		return nil, utils.NewValidationError("user is not a participant of the conversation")
	}

	unread, err := a.store.CountUnread(ctx, conv.ID, msg.UserID)
	if err != nil {
		return nil, err
	}
	if unread == 0 {
		// Nothing addressed to this user is unread: succeed without
		// mutating or announcing anything.
		return &MarkReadResult{Conversation: conv, Updated: 0}, nil
	}

	var updated int64
	err = utils.WithRetry(ctx, maxTxAttempts, utils.IsTransient, func(ctx context.Context) error {
		return a.store.RunInTransaction(ctx, func(txCtx context.Context) error {
			// Re-read fresh: a retried attempt must not act on stale state.
			fresh, err := a.store.GetConversation(txCtx, msg.ConversationID)
			if err != nil {
				return err
			}
			n, err := a.store.MarkMessagesRead(txCtx, fresh.ID, msg.UserID)
			if err != nil {
				return err
			}
			if err := a.store.ResetUnread(txCtx, fresh.ID, msg.UserID); err != nil {
				return err
			}
			fresh.MarkReadBy(msg.UserID)
			conv, updated = fresh, n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	a.dispatcher.Push(conv.Participants, websocket.EventMessagesRead, ReadReceipt{
		ConversationID: conv.ID,
		UserID:         msg.UserID,
		Count:          updated,
	})
	a.dispatcher.Push(conv.Participants, websocket.EventConversationUpdate, conv)

	return &MarkReadResult{Conversation: conv, Updated: updated}, nil
}
