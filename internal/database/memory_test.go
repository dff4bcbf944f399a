package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryStoreTransactionCommits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv := models.NewConversation(primitive.NewObjectID(), primitive.NewObjectID())

	err := store.RunInTransaction(ctx, func(txCtx context.Context) error {
		return store.InsertConversation(txCtx, conv)
	})
	require.NoError(t, err)

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.PairKey, got.PairKey)
}

func TestMemoryStoreTransactionRollsBackOnFailure(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	conv := models.NewConversation(a, b)
	boom := errors.New("boom")

	// Mutations land, then the attempt fails; nothing may survive.
	err := store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := store.InsertConversation(txCtx, conv); err != nil {
			return err
		}
		msg := &models.Message{
			ID:             primitive.NewObjectID(),
			ConversationID: conv.ID,
			FromID:         a,
			ToID:           b,
			Content:        "half done",
			Type:           models.MessageTypeText,
			CreatedAt:      time.Now(),
		}
		if err := store.InsertMessage(txCtx, msg); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetConversation(ctx, conv.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	found, err := store.FindConversationByParticipants(ctx, a, b)
	require.NoError(t, err)
	assert.Nil(t, found)

	unread, err := store.CountUnread(ctx, conv.ID, b)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestMemoryStoreRollbackPreservesEarlierState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	conv := models.NewConversation(a, b)
	require.NoError(t, store.InsertConversation(ctx, conv))

	msg := &models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conv.ID,
		FromID:         a,
		ToID:           b,
		Content:        "committed earlier",
		Type:           models.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.InsertMessage(ctx, msg))
	require.NoError(t, store.ApplyMessageToConversation(ctx, conv.ID, msg))

	err := store.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := store.ResetUnread(txCtx, conv.ID, b); err != nil {
			return err
		}
		return errors.New("abort after partial write")
	})
	require.Error(t, err)

	// The pre-transaction counter survives the rollback.
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount[b.Hex()])
}

func TestMemoryStoreFailTransactionsRejectsBeforeMutation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv := models.NewConversation(primitive.NewObjectID(), primitive.NewObjectID())

	store.FailTransactions(1)
	calls := 0
	err := store.RunInTransaction(ctx, func(txCtx context.Context) error {
		calls++
		return store.InsertConversation(txCtx, conv)
	})

	assert.True(t, utils.IsTransient(err))
	assert.Zero(t, calls, "an injected conflict fails before fn runs")

	// The next attempt goes through.
	require.NoError(t, store.RunInTransaction(ctx, func(txCtx context.Context) error {
		return store.InsertConversation(txCtx, conv)
	}))
}
