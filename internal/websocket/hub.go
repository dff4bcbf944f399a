package websocket

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hub is the process-local presence registry: a bidirectional map between
// user ids and their single live connection. Registration happens on an
// explicit addUser signal, not on connect; everything here is lost on
// restart and clients re-register after reconnecting.
type Hub struct {
	mu      sync.RWMutex
	clients map[primitive.ObjectID]*Client
	byConn  map[*Client]primitive.ObjectID
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[primitive.ObjectID]*Client),
		byConn:  make(map[*Client]primitive.ObjectID),
	}
}

// Register maps userID to c, replacing any prior entry for either the user
// or the connection. Last registration wins. The updated online set is
// broadcast to every live connection.
func (h *Hub) Register(userID primitive.ObjectID, c *Client) {
	h.mu.Lock()
	if prevUser, ok := h.byConn[c]; ok {
		delete(h.clients, prevUser)
	}
	if prevClient, ok := h.clients[userID]; ok && prevClient != c {
		delete(h.byConn, prevClient)
	}
	h.clients[userID] = c
	h.byConn[c] = userID
	total := len(h.clients)
	h.mu.Unlock()

	slog.Info("presence registered", "user", userID.Hex(), "conn", c.ID, "online", total)
	h.broadcastOnline()
}

// Unregister drops the entry whose connection is c; a no-op when c was never
// registered or already replaced.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	userID, ok := h.byConn[c]
	if ok {
		delete(h.byConn, c)
		if h.clients[userID] == c {
			delete(h.clients, userID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	slog.Info("presence unregistered", "user", userID.Hex(), "conn", c.ID, "online", total)
	h.broadcastOnline()
}

// IsOnline reports whether the user currently has a registered connection.
func (h *Hub) IsOnline(userID primitive.ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// OnlineIDs returns the current snapshot of registered user ids.
func (h *Hub) OnlineIDs() []primitive.ObjectID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.clients)
}

// Push delivers one event to the user's registered connection, silently
// skipping offline users. Delivery is at-most-once and best-effort; durable
// state lives in storage, not here.
func (h *Hub) Push(userID primitive.ObjectID, event string, data any) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.SendEvent(event, data)
}

// Broadcast queues the event for every registered connection.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := EncodeEvent(event, data)
	if err != nil {
		slog.Error("failed to encode broadcast event", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, c := range h.clients {
		select {
		case c.Send <- payload:
		default:
			slog.Warn("send buffer full, dropping broadcast", "user", userID.Hex(), "event", event)
		}
	}
}

func (h *Hub) broadcastOnline() {
	ids := lo.Map(h.OnlineIDs(), func(id primitive.ObjectID, _ int) string { return id.Hex() })
	h.Broadcast(EventOnlineUsers, ids)
}
