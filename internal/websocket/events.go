package websocket

import "encoding/json"

// Inbound event names.
const (
	EventAddUser           = "addUser"
	EventSendMessage       = "sendMessage"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMarkMessagesRead  = "markMessagesRead"
)

// Outbound event names.
const (
	EventOnlineUsers            = "onlineUsers"
	EventReceiveMessage         = "receiveMessage"
	EventMessageSent            = "messageSent"
	EventConversationUpdate     = "conversationUpdate"
	EventNewMessageNotification = "newMessageNotification"
	EventMessagesRead           = "messagesRead"
	EventNewNotification        = "newNotification"
	EventError                  = "error"
)

// Event is the wire envelope, both directions. Outbound frames may carry
// several newline-separated envelopes when the write pump batches queued
// events; clients must decode a frame as a JSON stream, not a single value.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent marshals an envelope carrying data.
func EncodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Data: raw})
}

// AddUserPayload registers presence for an authenticated connection.
type AddUserPayload struct {
	UserID string `json:"userId" validate:"required,len=24,hexadecimal"`
}

// SendMessagePayload carries a sendMessage request.
type SendMessagePayload struct {
	Sender         string `json:"sender" validate:"required,len=24,hexadecimal"`
	Receiver       string `json:"receiver" validate:"required,len=24,hexadecimal"`
	Content        string `json:"content" validate:"required"`
	Type           string `json:"type" validate:"omitempty,oneof=text image link"`
	ConversationID string `json:"conversationId" validate:"omitempty,len=24,hexadecimal"`
}

// TypingPayload is relayed untouched to the receiver when online.
type TypingPayload struct {
	Sender         string `json:"sender" validate:"required,len=24,hexadecimal"`
	Receiver       string `json:"receiver" validate:"required,len=24,hexadecimal"`
	ConversationID string `json:"conversationId" validate:"omitempty,len=24,hexadecimal"`
}

// MarkReadPayload carries a markMessagesRead request.
type MarkReadPayload struct {
	ConversationID string `json:"conversationId" validate:"required,len=24,hexadecimal"`
	UserID         string `json:"userId" validate:"required,len=24,hexadecimal"`
}

// ErrorPayload is the single error shape pushed to the originating
// connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
