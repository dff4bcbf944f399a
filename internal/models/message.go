package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Supported message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeLink  = "link"
)

// summaryLimit caps the preview stored on the conversation.
const summaryLimit = 30

// Message is immutable once persisted, except for IsRead which only ever
// moves from false to true.
type Message struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversationId" json:"conversationId"`
	FromID         primitive.ObjectID `bson:"fromId" json:"sender"`
	ToID           primitive.ObjectID `bson:"toId" json:"receiver"`
	Content        string             `bson:"content" json:"content"`
	Type           string             `bson:"type" json:"type"`
	CreatedAt      time.Time          `bson:"createdAt" json:"timestamp"`
	IsRead         bool               `bson:"isRead" json:"isRead"`
}

// ValidMessageType reports whether t is one of the supported content types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeLink:
		return true
	}
	return false
}

// Summary produces the one-line preview stored on the owning conversation.
// Text previews carry the content itself, images a fixed placeholder, links
// a prefixed preview of the URL. Previews are cut at 30 characters with an
// ellipsis marker.
func (m *Message) Summary() string {
	switch m.Type {
	case MessageTypeImage:
		return "Sent a photo"
	case MessageTypeLink:
		return "Shared a link: " + truncate(m.Content, summaryLimit)
	default:
		return truncate(m.Content, summaryLimit)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
