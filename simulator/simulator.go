package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tradepost/internal/database"
	"tradepost/internal/middleware"
	"tradepost/internal/models"
	ws "tradepost/internal/websocket"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Config controls one simulation run against a live engine.
type Config struct {
	ServerURL       string // e.g. ws://localhost:8080/ws
	Pairs           int
	MessagesPerPair int
	Interval        time.Duration
}

// Simulator seeds synthetic users and drives two-party conversations over
// the realtime transport: register presence, exchange messages, relay typing
// signals and acknowledge reads, sampling send-to-ack latency throughout.
type Simulator struct {
	cfg   Config
	store *database.MongoDB

	mu        sync.Mutex
	latencies []time.Duration
	failures  int
}

func New(cfg Config, store *database.MongoDB) *Simulator {
	return &Simulator{cfg: cfg, store: store}
}

// Run executes every pair concurrently and blocks until all finish.
func (s *Simulator) Run(ctx context.Context) error {
	runID := uuid.New().String()[:8]
	slog.Info("simulation starting", "run", runID, "pairs", s.cfg.Pairs)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Pairs; i++ {
		wg.Add(1)
		go func(pair int) {
			defer wg.Done()
			if err := s.runPair(ctx, runID, pair); err != nil {
				slog.Warn("pair failed", "run", runID, "pair", pair, "error", err)
				s.mu.Lock()
				s.failures++
				s.mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s.report(runID)
	return nil
}

func (s *Simulator) runPair(ctx context.Context, runID string, pair int) error {
	alice, err := s.seedUser(ctx, fmt.Sprintf("sim-%s-%d-a", runID, pair))
	if err != nil {
		return err
	}
	bob, err := s.seedUser(ctx, fmt.Sprintf("sim-%s-%d-b", runID, pair))
	if err != nil {
		return err
	}

	connA, err := s.connect(alice.ID)
	if err != nil {
		return err
	}
	defer connA.close()
	connB, err := s.connect(bob.ID)
	if err != nil {
		return err
	}
	defer connB.close()

	if err := connA.send(ws.EventAddUser, ws.AddUserPayload{UserID: alice.ID.Hex()}); err != nil {
		return err
	}
	if err := connB.send(ws.EventAddUser, ws.AddUserPayload{UserID: bob.ID.Hex()}); err != nil {
		return err
	}

	var conversationID string
	for i := 0; i < s.cfg.MessagesPerPair; i++ {
		from, to := connA, connB
		fromUser, toUser := alice, bob
		if i%2 == 1 {
			from, to = connB, connA
			fromUser, toUser = bob, alice
		}

		// A short typing burst before each message, relayed receiver-side.
		_ = from.send(ws.EventUserTyping, ws.TypingPayload{
			Sender: fromUser.ID.Hex(), Receiver: toUser.ID.Hex(), ConversationID: conversationID,
		})

		start := time.Now()
		err := from.send(ws.EventSendMessage, ws.SendMessagePayload{
			Sender:         fromUser.ID.Hex(),
			Receiver:       toUser.ID.Hex(),
			Content:        fmt.Sprintf("message %d from %s", i, fromUser.DisplayName),
			Type:           models.MessageTypeText,
			ConversationID: conversationID,
		})
		if err != nil {
			return err
		}
		if _, err := from.waitFor(ws.EventMessageSent); err != nil {
			return err
		}
		s.record(time.Since(start))

		received, err := to.waitFor(ws.EventReceiveMessage)
		if err != nil {
			return err
		}
		var msg models.Message
		if err := json.Unmarshal(received, &msg); err != nil {
			return err
		}
		conversationID = msg.ConversationID.Hex()

		_ = from.send(ws.EventUserStoppedTyping, ws.TypingPayload{
			Sender: fromUser.ID.Hex(), Receiver: toUser.ID.Hex(), ConversationID: conversationID,
		})

		if err := to.send(ws.EventMarkMessagesRead, ws.MarkReadPayload{
			ConversationID: conversationID,
			UserID:         toUser.ID.Hex(),
		}); err != nil {
			return err
		}
		if _, err := to.waitFor(ws.EventMessagesRead); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
	return nil
}

func (s *Simulator) seedUser(ctx context.Context, name string) (*models.User, error) {
	user := &models.User{
		ID:          primitive.NewObjectID(),
		DisplayName: name,
		AvatarURL:   "https://avatars.tradepost.local/" + name,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Simulator) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
}

func (s *Simulator) report(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) == 0 {
		slog.Warn("simulation produced no samples", "run", runID, "failures", s.failures)
		return
	}
	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	avg := total / time.Duration(len(sorted))
	p95 := sorted[len(sorted)*95/100]

	slog.Info("simulation finished",
		"run", runID,
		"samples", len(sorted),
		"failures", s.failures,
		"avg", avg,
		"p95", p95,
	)
}

// simClient is one websocket connection with a background reader.
type simClient struct {
	conn   *websocket.Conn
	events chan ws.Event
	done   chan struct{}
}

func (s *Simulator) connect(userID primitive.ObjectID) (*simClient, error) {
	token, err := middleware.GenerateToken(userID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(s.cfg.ServerURL+"?token="+token, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &simClient{
		conn:   conn,
		events: make(chan ws.Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *simClient) readLoop() {
	defer close(c.events)
	for {
		select {
		case <-c.done:
			return
		default:
		}
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		for _, evt := range decodeFrame(payload) {
			select {
			case c.events <- evt:
			default:
				// slow consumer, drop
			}
		}
	}
}

// decodeFrame unpacks one websocket frame into its envelopes. The engine's
// write pump batches queued events into a single frame separated by
// newlines, so a frame regularly carries more than one envelope.
func decodeFrame(payload []byte) []ws.Event {
	var out []ws.Event
	dec := json.NewDecoder(bytes.NewReader(payload))
	for {
		var evt ws.Event
		if err := dec.Decode(&evt); err != nil {
			return out
		}
		out = append(out, evt)
	}
}

func (c *simClient) send(event string, data any) error {
	payload, err := ws.EncodeEvent(event, data)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// waitFor discards events until the wanted kind arrives. An error event
// aborts the wait.
func (c *simClient) waitFor(event string) (json.RawMessage, error) {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt, ok := <-c.events:
			if !ok {
				return nil, fmt.Errorf("connection closed waiting for %s", event)
			}
			if evt.Event == ws.EventError {
				var p ws.ErrorPayload
				_ = json.Unmarshal(evt.Data, &p)
				return nil, fmt.Errorf("engine error waiting for %s: %s", event, p.Message)
			}
			if evt.Event == event {
				return evt.Data, nil
			}
		case <-timeout:
			return nil, fmt.Errorf("timed out waiting for %s", event)
		}
	}
}

func (c *simClient) close() {
	close(c.done)
	c.conn.Close()
}
