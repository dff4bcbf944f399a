package actors

import (
	"tradepost/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types for the conversation actors. Each inbound transport event
// kind maps to exactly one of these.
type (
	SendMessageMsg struct {
		FromID         primitive.ObjectID `json:"fromId"`
		ToID           primitive.ObjectID `json:"toId"`
		Content        string             `json:"content"`
		Type           string             `json:"type"`
		ConversationID primitive.ObjectID `json:"conversationId"` // zero when resolving by pair
	}

	MarkReadMsg struct {
		ConversationID primitive.ObjectID `json:"conversationId"`
		UserID         primitive.ObjectID `json:"userId"`
	}
)

// SendMessageResult is the committed outcome of a SendMessageMsg.
type SendMessageResult struct {
	Message      *models.Message      `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
}

// MarkReadResult is the outcome of a MarkReadMsg. Updated is zero for the
// idempotent no-op case.
type MarkReadResult struct {
	Conversation *models.Conversation `json:"conversation"`
	Updated      int64                `json:"updated"`
}

// MessageAlert is the newMessageNotification payload pushed to an online
// receiver.
type MessageAlert struct {
	ConversationID primitive.ObjectID `json:"conversationId"`
	MessageID      primitive.ObjectID `json:"messageId"`
	Sender         primitive.ObjectID `json:"sender"`
	SenderName     string             `json:"senderName"`
	Preview        string             `json:"preview"`
}

// ReadReceipt is the messagesRead payload pushed to online participants.
type ReadReceipt struct {
	ConversationID primitive.ObjectID `json:"conversationId"`
	UserID         primitive.ObjectID `json:"userId"`
	Count          int64              `json:"count"`
}
