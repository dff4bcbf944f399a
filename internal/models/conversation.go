package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the persistent 1:1 thread between exactly two participants.
// It owns the denormalized summary (last message, per-user unread counters)
// and holds references to its messages; message bodies live in their own
// collection.
type Conversation struct {
	ID              primitive.ObjectID   `bson:"_id" json:"id"`
	PairKey         string               `bson:"pairKey" json:"-"`
	Participants    []primitive.ObjectID `bson:"participants" json:"participants"`
	Messages        []primitive.ObjectID `bson:"messages" json:"messages"`
	UnreadCount     map[string]int       `bson:"unreadCount" json:"unreadCount"`
	LastMessage     string               `bson:"lastMessage" json:"lastMessage"`
	LastMessageAt   time.Time            `bson:"lastMessageAt" json:"lastMessageAt"`
	LastMessageFrom primitive.ObjectID   `bson:"lastMessageFrom,omitempty" json:"lastMessageFrom,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
}

// NewConversation builds an unsaved conversation for the given pair with
// both unread counters initialized to zero.
func NewConversation(a, b primitive.ObjectID) *Conversation {
	return &Conversation{
		ID:           primitive.NewObjectID(),
		PairKey:      PairKey(a, b),
		Participants: []primitive.ObjectID{a, b},
		Messages:     []primitive.ObjectID{},
		UnreadCount: map[string]int{
			a.Hex(): 0,
			b.Hex(): 0,
		},
		CreatedAt: time.Now(),
	}
}

// PairKey derives the order-independent lookup key for a participant pair.
// The smaller hex id always comes first, so (a,b) and (b,a) map to the same
// conversation.
func PairKey(a, b primitive.ObjectID) string {
	ah, bh := a.Hex(), b.Hex()
	if ah > bh {
		ah, bh = bh, ah
	}
	return ah + ":" + bh
}

func (c *Conversation) HasParticipant(id primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ApplyMessage folds a freshly persisted message into the denormalized
// summary: the reference list grows, the preview fields follow the message
// and the receiver's unread counter goes up by one. The sender's counter is
// never touched here.
func (c *Conversation) ApplyMessage(m *Message) {
	c.Messages = append(c.Messages, m.ID)
	c.LastMessage = m.Summary()
	c.LastMessageAt = m.CreatedAt
	c.LastMessageFrom = m.FromID
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	c.UnreadCount[m.ToID.Hex()]++
}

// MarkReadBy resets the given participant's unread counter.
func (c *Conversation) MarkReadBy(id primitive.ObjectID) {
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	c.UnreadCount[id.Hex()] = 0
}

// Peer returns the other participant of the conversation.
func (c *Conversation) Peer(id primitive.ObjectID) primitive.ObjectID {
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return primitive.NilObjectID
}
