package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// EventHandler routes parsed inbound events. The handlers package provides
// the production router.
type EventHandler interface {
	HandleEvent(c *Client, evt *Event)
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	// ID identifies this connection handle; a user reconnecting gets a new
	// one, which is how last-registration-wins is decided.
	ID uuid.UUID

	Hub *Hub

	// The authenticated user behind the connection.
	UserID primitive.ObjectID

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	Handler EventHandler
}

func NewClient(hub *Hub, userID primitive.ObjectID, conn *websocket.Conn, handler EventHandler) *Client {
	return &Client{
		ID:      uuid.New(),
		Hub:     hub,
		UserID:  userID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Handler: handler,
	}
}

// SendEvent queues one event for this connection; drops it when the buffer
// is full rather than blocking a caller.
func (c *Client) SendEvent(event string, data any) {
	payload, err := EncodeEvent(event, data)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}
	select {
	case c.Send <- payload:
	default:
		slog.Warn("send buffer full, dropping event", "user", c.UserID.Hex(), "event", event)
	}
}

// SendError pushes the uniform error event to this connection.
func (c *Client) SendError(message string) {
	c.SendEvent(EventError, ErrorPayload{Message: message})
}

// ReadPump pumps events from the websocket connection to the handler. On
// exit the connection's presence entry is removed, which re-broadcasts the
// online set.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		slog.Debug("read pump stopped", "user", c.UserID.Hex(), "conn", c.ID)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "user", c.UserID.Hex(), "error", err)
			}
			break
		}

		var evt Event
		if err := json.Unmarshal(message, &evt); err != nil {
			c.SendError("malformed event")
			continue
		}
		c.Handler.HandleEvent(c, &evt)
	}
}

// WritePump pumps queued payloads from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		slog.Debug("write pump stopped", "user", c.UserID.Hex(), "conn", c.ID)
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current websocket message.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
