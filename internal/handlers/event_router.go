package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"

	"tradepost/internal/engine/actors"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleEvent routes one inbound transport event to its handler. Identity
// fields in a payload must name the connection's authenticated user; a
// connection can never act as someone else. Every failure path reports a
// single error event back to the originating connection and nothing else.
func (s *Server) HandleEvent(c *websocket.Client, evt *websocket.Event) {
	switch evt.Event {
	case websocket.EventAddUser:
		s.handleAddUser(c, evt.Data)
	case websocket.EventSendMessage:
		s.handleSendMessage(c, evt.Data)
	case websocket.EventUserTyping, websocket.EventUserStoppedTyping:
		s.handleTyping(c, evt.Event, evt.Data)
	case websocket.EventMarkMessagesRead:
		s.handleMarkRead(c, evt.Data)
	default:
		c.SendError("unknown event: " + evt.Event)
	}
}

// decodePayload unmarshals and validates an event payload.
func (s *Server) decodePayload(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return utils.NewValidationError("malformed payload")
	}
	if err := s.Validate.Struct(v); err != nil {
		return utils.NewValidationError("invalid payload: " + err.Error())
	}
	return nil
}

func (s *Server) handleAddUser(c *websocket.Client, data json.RawMessage) {
	var payload websocket.AddUserPayload
	if err := s.decodePayload(data, &payload); err != nil {
		c.SendError(err.Error())
		return
	}

	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		c.SendError("invalid user id")
		return
	}
	if userID != c.UserID {
		c.SendError("presence can only be registered for the authenticated user")
		return
	}
	s.Hub.Register(userID, c)
}

func (s *Server) handleSendMessage(c *websocket.Client, data json.RawMessage) {
	var payload websocket.SendMessagePayload
	if err := s.decodePayload(data, &payload); err != nil {
		c.SendError(err.Error())
		return
	}

	fromID, err := primitive.ObjectIDFromHex(payload.Sender)
	if err != nil {
		c.SendError("invalid sender id")
		return
	}
	if fromID != c.UserID {
		c.SendError("messages can only be sent as the authenticated user")
		return
	}
	toID, err := primitive.ObjectIDFromHex(payload.Receiver)
	if err != nil {
		c.SendError("invalid receiver id")
		return
	}
	var convID primitive.ObjectID
	if payload.ConversationID != "" {
		if convID, err = primitive.ObjectIDFromHex(payload.ConversationID); err != nil {
			c.SendError("invalid conversation id")
			return
		}
	}

	msg := &actors.SendMessageMsg{
		FromID:         fromID,
		ToID:           toID,
		Content:        payload.Content,
		Type:           payload.Type,
		ConversationID: convID,
	}
	s.requestActor(c, s.Engine.MessageActor(), msg)
}

func (s *Server) handleMarkRead(c *websocket.Client, data json.RawMessage) {
	var payload websocket.MarkReadPayload
	if err := s.decodePayload(data, &payload); err != nil {
		c.SendError(err.Error())
		return
	}

	convID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		c.SendError("invalid conversation id")
		return
	}
	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		c.SendError("invalid user id")
		return
	}
	if userID != c.UserID {
		c.SendError("messages can only be acknowledged by the authenticated user")
		return
	}

	msg := &actors.MarkReadMsg{ConversationID: convID, UserID: userID}
	s.requestActor(c, s.Engine.ReadActor(), msg)
}

// handleTyping relays typing signals to the receiver when online; nothing is
// stored and offline receivers simply miss them.
func (s *Server) handleTyping(c *websocket.Client, event string, data json.RawMessage) {
	var payload websocket.TypingPayload
	if err := s.decodePayload(data, &payload); err != nil {
		c.SendError(err.Error())
		return
	}

	senderID, err := primitive.ObjectIDFromHex(payload.Sender)
	if err != nil {
		c.SendError("invalid sender id")
		return
	}
	if senderID != c.UserID {
		c.SendError("typing signals can only be sent as the authenticated user")
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(payload.Receiver)
	if err != nil {
		c.SendError("invalid receiver id")
		return
	}
	s.Hub.Push(receiverID, event, payload)
}

// requestActor forwards a coordinator message and reports failures back on
// the originating connection. Successful outcomes already fanned out inside
// the coordinator.
func (s *Server) requestActor(c *websocket.Client, pid *actor.PID, msg any) {
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		appErr := utils.NewAppError(utils.ErrActorTimeout, "request timed out", err)
		if !errors.Is(err, actor.ErrTimeout) {
			appErr = utils.NewAppError(utils.ErrDatabase, "request could not be processed", err)
		}
		slog.Error("coordinator request failed",
			"user", c.UserID.Hex(), "code", appErr.Code, "error", err)
		c.SendError(appErr.Message)
		return
	}
	if appErr, ok := result.(*utils.AppError); ok {
		c.SendError(appErr.Message)
	}
}
