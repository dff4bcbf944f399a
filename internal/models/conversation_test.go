package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, primitive.NewObjectID()))
}

func TestNewConversationStartsWithZeroCounters(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	conv := NewConversation(a, b)

	assert.Equal(t, PairKey(a, b), conv.PairKey)
	assert.ElementsMatch(t, []primitive.ObjectID{a, b}, conv.Participants)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, 0, conv.UnreadCount[a.Hex()])
	assert.Equal(t, 0, conv.UnreadCount[b.Hex()])
}

func TestApplyMessageBumpsOnlyReceiverCounter(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	conv := NewConversation(a, b)

	msg := &Message{
		ID:        primitive.NewObjectID(),
		FromID:    a,
		ToID:      b,
		Content:   "still for sale?",
		Type:      MessageTypeText,
		CreatedAt: time.Now(),
	}
	conv.ApplyMessage(msg)
	conv.ApplyMessage(msg)

	assert.Equal(t, 2, conv.UnreadCount[b.Hex()])
	assert.Equal(t, 0, conv.UnreadCount[a.Hex()])
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, "still for sale?", conv.LastMessage)
	assert.Equal(t, a, conv.LastMessageFrom)
	assert.Equal(t, msg.CreatedAt, conv.LastMessageAt)
}

func TestMarkReadByResetsOneCounter(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	conv := NewConversation(a, b)
	conv.UnreadCount[a.Hex()] = 2
	conv.UnreadCount[b.Hex()] = 5

	conv.MarkReadBy(b)

	assert.Equal(t, 0, conv.UnreadCount[b.Hex()])
	assert.Equal(t, 2, conv.UnreadCount[a.Hex()])
}

func TestPeer(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	conv := NewConversation(a, b)

	assert.Equal(t, b, conv.Peer(a))
	assert.Equal(t, a, conv.Peer(b))
	assert.True(t, conv.HasParticipant(a))
	assert.False(t, conv.HasParticipant(primitive.NewObjectID()))
}
