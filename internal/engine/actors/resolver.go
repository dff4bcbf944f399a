package actors

import (
	"context"

	"tradepost/internal/database"
	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// resolveConversation locates the single conversation for a sender/receiver
// pair. An explicit conversation id takes precedence over pair lookup. When
// nothing exists yet an in-memory candidate is returned with created=true;
// persisting it is the enclosing transaction's job.
func resolveConversation(ctx context.Context, store database.Store, convID, from, to primitive.ObjectID) (conv *models.Conversation, created bool, err error) {
	if !convID.IsZero() {
		conv, err = store.GetConversation(ctx, convID)
		if err != nil {
			return nil, false, err
		}
		if !conv.HasParticipant(from) || !conv.HasParticipant(to) {
			return nil, false, utils.NewValidationError("sender and receiver must both participate in the conversation")
		}
		return conv, false, nil
	}

	conv, err = store.FindConversationByParticipants(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	if conv != nil {
		return conv, false, nil
	}
	return models.NewConversation(from, to), true, nil
}
