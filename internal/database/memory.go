package database

import (
	"context"
	"sync"

	"tradepost/internal/models"
	"tradepost/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store used by tests. It mimics the Mongo
// backend's contract, including transient-conflict signaling, which can be
// injected with FailTransactions. Values are copied on the way in and out so
// callers never share internal state.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[primitive.ObjectID]*models.Conversation
	byPair        map[string]primitive.ObjectID
	messages      map[primitive.ObjectID]*models.Message
	users         map[primitive.ObjectID]*models.User
	notifications []*models.Notification
	subscriptions map[primitive.ObjectID][]*models.PushSubscription

	pendingConflicts int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[primitive.ObjectID]*models.Conversation),
		byPair:        make(map[string]primitive.ObjectID),
		messages:      make(map[primitive.ObjectID]*models.Message),
		users:         make(map[primitive.ObjectID]*models.User),
		subscriptions: make(map[primitive.ObjectID][]*models.PushSubscription),
	}
}

// FailTransactions makes the next n RunInTransaction calls fail with a
// transient write-conflict before any mutation is applied.
func (s *MemoryStore) FailTransactions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingConflicts = n
}

// Notifications returns a snapshot of every stored notification.
func (s *MemoryStore) Notifications() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// RunInTransaction mirrors the Mongo contract: fn either commits as a whole
// or leaves no trace. State is snapshotted up front and restored when fn
// fails partway through.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.pendingConflicts > 0 {
		s.pendingConflicts--
		s.mu.Unlock()
		return utils.NewTransientConflictError("simulated write conflict", nil)
	}
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	conversations map[primitive.ObjectID]*models.Conversation
	byPair        map[string]primitive.ObjectID
	messages      map[primitive.ObjectID]*models.Message
	users         map[primitive.ObjectID]*models.User
	notifications []*models.Notification
	subscriptions map[primitive.ObjectID][]*models.PushSubscription
}

func (s *MemoryStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		conversations: make(map[primitive.ObjectID]*models.Conversation, len(s.conversations)),
		byPair:        make(map[string]primitive.ObjectID, len(s.byPair)),
		messages:      make(map[primitive.ObjectID]*models.Message, len(s.messages)),
		users:         make(map[primitive.ObjectID]*models.User, len(s.users)),
		notifications: append([]*models.Notification(nil), s.notifications...),
		subscriptions: make(map[primitive.ObjectID][]*models.PushSubscription, len(s.subscriptions)),
	}
	for id, conv := range s.conversations {
		snap.conversations[id] = copyConversation(conv)
	}
	for key, id := range s.byPair {
		snap.byPair[key] = id
	}
	for id, m := range s.messages {
		stored := *m
		snap.messages[id] = &stored
	}
	for id, u := range s.users {
		stored := *u
		snap.users[id] = &stored
	}
	for id, subs := range s.subscriptions {
		snap.subscriptions[id] = append([]*models.PushSubscription(nil), subs...)
	}
	return snap
}

func (s *MemoryStore) restore(snap *memSnapshot) {
	s.conversations = snap.conversations
	s.byPair = snap.byPair
	s.messages = snap.messages
	s.users = snap.users
	s.notifications = snap.notifications
	s.subscriptions = snap.subscriptions
}

func (s *MemoryStore) GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, utils.NewNotFoundError("conversation", id.Hex())
	}
	return copyConversation(conv), nil
}

func (s *MemoryStore) FindConversationByParticipants(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[models.PairKey(a, b)]
	if !ok {
		return nil, nil
	}
	return copyConversation(s.conversations[id]), nil
}

func (s *MemoryStore) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[conv.PairKey]; exists {
		return utils.NewTransientConflictError("conversation already created for pair", nil)
	}
	s.conversations[conv.ID] = copyConversation(conv)
	s.byPair[conv.PairKey] = conv.ID
	return nil
}

func (s *MemoryStore) GetUserConversations(ctx context.Context, userID primitive.ObjectID) ([]*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, copyConversation(conv))
		}
	}
	return out, nil
}

func (s *MemoryStore) ApplyMessageToConversation(ctx context.Context, convID primitive.ObjectID, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return utils.NewNotFoundError("conversation", convID.Hex())
	}
	conv.ApplyMessage(msg)
	return nil
}

func (s *MemoryStore) ResetUnread(ctx context.Context, convID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return utils.NewNotFoundError("conversation", convID.Hex())
	}
	conv.MarkReadBy(userID)
	return nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *msg
	s.messages[msg.ID] = &stored
	return nil
}

func (s *MemoryStore) GetConversationMessages(ctx context.Context, convID primitive.ObjectID) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return nil, utils.NewNotFoundError("conversation", convID.Hex())
	}
	out := make([]*models.Message, 0, len(conv.Messages))
	for _, id := range conv.Messages {
		if m, ok := s.messages[id]; ok {
			stored := *m
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, convID, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.messages {
		if m.ConversationID == convID && m.ToID == userID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkMessagesRead(ctx context.Context, convID, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, m := range s.messages {
		if m.ConversationID == convID && m.ToID == userID && !m.IsRead {
			m.IsRead = true
			modified++
		}
	}
	return modified, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("user", id.Hex())
	}
	stored := *user
	return &stored, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *n
	s.notifications = append(s.notifications, &stored)
	return nil
}

func (s *MemoryStore) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *sub
	s.subscriptions[sub.UserID] = append(s.subscriptions[sub.UserID], &stored)
	return nil
}

func (s *MemoryStore) GetPushSubscriptions(ctx context.Context, userID primitive.ObjectID) ([]*models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscriptions[userID]
	out := make([]*models.PushSubscription, 0, len(subs))
	for _, sub := range subs {
		stored := *sub
		out = append(out, &stored)
	}
	return out, nil
}

func copyConversation(c *models.Conversation) *models.Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = append([]primitive.ObjectID(nil), c.Participants...)
	cp.Messages = append([]primitive.ObjectID(nil), c.Messages...)
	cp.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		cp.UnreadCount[k] = v
	}
	return &cp
}
