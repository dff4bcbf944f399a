package handlers

import (
	"net/http"
	"time"

	"tradepost/internal/middleware"
	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleConversations returns the caller's conversation summaries, most
// recently active first. History replay after reconnect starts here.
func (s *Server) HandleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conversations, err := s.Store.GetUserConversations(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if conversations == nil {
			conversations = []*models.Conversation{}
		}
		writeJSON(w, http.StatusOK, conversations)
	}
}

// HandleMessages returns the ordered history of one conversation the caller
// participates in.
func (s *Server) HandleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		convID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("conversationId"))
		if err != nil {
			writeError(w, utils.NewValidationError("invalid conversation id"))
			return
		}

		conv, err := s.Store.GetConversation(r.Context(), convID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !conv.HasParticipant(userID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied to conversation"})
			return
		}

		messages, err := s.Store.GetConversationMessages(r.Context(), convID)
		if err != nil {
			writeError(w, err)
			return
		}
		if messages == nil {
			messages = []*models.Message{}
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

// HandleSubscribePush registers a browser push endpoint for the caller.
func (s *Server) HandleSubscribePush() http.HandlerFunc {
	type subscribeRequest struct {
		Endpoint string `json:"endpoint" validate:"required,url"`
		Keys     struct {
			P256dh string `json:"p256dh" validate:"required"`
			Auth   string `json:"auth" validate:"required"`
		} `json:"keys"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req subscribeRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, utils.NewValidationError("invalid subscription body"))
			return
		}
		if err := s.Validate.Struct(&req); err != nil {
			writeError(w, utils.NewValidationError("invalid subscription body"))
			return
		}

		sub := &models.PushSubscription{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		sub.Subscription.Endpoint = req.Endpoint
		sub.Subscription.Keys.P256dh = req.Keys.P256dh
		sub.Subscription.Keys.Auth = req.Keys.Auth

		if err := s.Store.SavePushSubscription(r.Context(), sub); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID.Hex()})
	}
}
