package actors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradepost/internal/database"
	"tradepost/internal/models"
	"tradepost/internal/utils"
	"tradepost/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePresence records every push so tests can assert fan-out behavior.
type fakePresence struct {
	mu     sync.Mutex
	online map[primitive.ObjectID]bool
	pushes []recordedPush
}

type recordedPush struct {
	UserID primitive.ObjectID
	Event  string
	Data   any
}

func newFakePresence(online ...primitive.ObjectID) *fakePresence {
	p := &fakePresence{online: make(map[primitive.ObjectID]bool)}
	for _, id := range online {
		p.online[id] = true
	}
	return p
}

func (p *fakePresence) IsOnline(userID primitive.ObjectID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *fakePresence) Push(userID primitive.ObjectID, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, recordedPush{UserID: userID, Event: event, Data: data})
}

func (p *fakePresence) OnlineIDs() []primitive.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	return ids
}

func (p *fakePresence) eventsFor(userID primitive.ObjectID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, push := range p.pushes {
		if push.UserID == userID {
			out = append(out, push.Event)
		}
	}
	return out
}

func (p *fakePresence) pushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes)
}

// fakeNotifier records created notifications and can be forced to fail.
type fakeNotifier struct {
	mu      sync.Mutex
	created []*models.Notification
	failErr error
}

func (n *fakeNotifier) CreateNotification(ctx context.Context, userID primitive.ObjectID, kind, content string, relatedID *primitive.ObjectID) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failErr != nil {
		return nil, n.failErr
	}
	notification := &models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Kind:      kind,
		Content:   content,
		RelatedID: relatedID,
		CreatedAt: time.Now(),
	}
	n.created = append(n.created, notification)
	return notification, nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created)
}

type actorFixture struct {
	system   *actor.ActorSystem
	store    *database.MemoryStore
	presence *fakePresence
	notifier *fakeNotifier
	alice    *models.User
	bob      *models.User
}

func newFixture(t *testing.T) *actorFixture {
	t.Helper()
	store := database.NewMemoryStore()
	alice := &models.User{ID: primitive.NewObjectID(), DisplayName: "alice", CreatedAt: time.Now()}
	bob := &models.User{ID: primitive.NewObjectID(), DisplayName: "bob", CreatedAt: time.Now()}
	require.NoError(t, store.SaveUser(context.Background(), alice))
	require.NoError(t, store.SaveUser(context.Background(), bob))

	return &actorFixture{
		system:   actor.NewActorSystem(),
		store:    store,
		presence: newFakePresence(alice.ID, bob.ID),
		notifier: &fakeNotifier{},
		alice:    alice,
		bob:      bob,
	}
}

func (f *actorFixture) spawnMessageActor() *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(f.store, NewDispatcher(f.presence), f.notifier, utils.NewMetricsCollector())
	})
	return f.system.Root.Spawn(props)
}

func (f *actorFixture) spawnReadActor() *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewReadActor(f.store, NewDispatcher(f.presence), utils.NewMetricsCollector())
	})
	return f.system.Root.Spawn(props)
}

func (f *actorFixture) send(t *testing.T, pid *actor.PID, msg any) any {
	t.Helper()
	future := f.system.Root.RequestFuture(pid, msg, 5*time.Second)
	result, err := future.Result()
	require.NoError(t, err)
	return result
}

func TestSendMessageCreatesConversation(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	result := f.send(t, pid, &SendMessageMsg{
		FromID:  f.alice.ID,
		ToID:    f.bob.ID,
		Content: "hey, is the bike still available?",
		Type:    models.MessageTypeText,
	})

	sent, ok := result.(*SendMessageResult)
	require.True(t, ok, "unexpected result type %T", result)

	assert.Equal(t, f.alice.ID, sent.Message.FromID)
	assert.Equal(t, f.bob.ID, sent.Message.ToID)
	assert.Equal(t, "hey, is the bike still available?", sent.Message.Content)
	assert.False(t, sent.Message.IsRead)

	conv := sent.Conversation
	assert.Equal(t, sent.Message.ConversationID, conv.ID)
	assert.ElementsMatch(t, []primitive.ObjectID{f.alice.ID, f.bob.ID}, conv.Participants)
	assert.Equal(t, 1, conv.UnreadCount[f.bob.ID.Hex()], "receiver counter goes up by one")
	assert.Equal(t, 0, conv.UnreadCount[f.alice.ID.Hex()], "sender counter stays untouched")
	assert.Equal(t, "hey, is the bike still availab...", conv.LastMessage)
	assert.Equal(t, f.alice.ID, conv.LastMessageFrom)

	// Receiver-side fan-out, then sender-side confirmation.
	assert.Equal(t,
		[]string{websocket.EventReceiveMessage, websocket.EventConversationUpdate, websocket.EventNewMessageNotification, websocket.EventNewNotification},
		f.presence.eventsFor(f.bob.ID))
	assert.Equal(t,
		[]string{websocket.EventMessageSent, websocket.EventConversationUpdate},
		f.presence.eventsFor(f.alice.ID))

	assert.Equal(t, 1, f.notifier.count())
}

func TestSendMessageReusesConversationEitherDirection(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	first := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "first",
	}).(*SendMessageResult)

	// The reply flows the other way and omits the conversation id; pair
	// resolution must land on the same thread.
	second := f.send(t, pid, &SendMessageMsg{
		FromID: f.bob.ID, ToID: f.alice.ID, Content: "second",
	}).(*SendMessageResult)

	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Len(t, second.Conversation.Messages, 2)
	assert.Equal(t, 1, second.Conversation.UnreadCount[f.alice.ID.Hex()])
	assert.Equal(t, 1, second.Conversation.UnreadCount[f.bob.ID.Hex()])
}

func TestSendMessageWithExplicitConversationID(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	first := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "opening",
	}).(*SendMessageResult)

	second := f.send(t, pid, &SendMessageMsg{
		FromID:         f.alice.ID,
		ToID:           f.bob.ID,
		Content:        "follow-up",
		ConversationID: first.Conversation.ID,
	}).(*SendMessageResult)

	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, 2, second.Conversation.UnreadCount[f.bob.ID.Hex()])
}

func TestSendMessageRejectsForeignConversation(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	// A thread between two other users.
	outsiderA := primitive.NewObjectID()
	outsiderB := primitive.NewObjectID()
	foreign := models.NewConversation(outsiderA, outsiderB)
	require.NoError(t, f.store.InsertConversation(context.Background(), foreign))

	result := f.send(t, pid, &SendMessageMsg{
		FromID:         f.alice.ID,
		ToID:           f.bob.ID,
		Content:        "should not land here",
		ConversationID: foreign.ID,
	})

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "unexpected result type %T", result)
	assert.Equal(t, utils.ErrValidation, appErr.Code)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	cases := []struct {
		name string
		msg  *SendMessageMsg
		code string
	}{
		{
			name: "empty content",
			msg:  &SendMessageMsg{FromID: f.alice.ID, ToID: f.bob.ID, Content: "   "},
			code: utils.ErrValidation,
		},
		{
			name: "missing receiver",
			msg:  &SendMessageMsg{FromID: f.alice.ID, Content: "hello"},
			code: utils.ErrValidation,
		},
		{
			name: "self send",
			msg:  &SendMessageMsg{FromID: f.alice.ID, ToID: f.alice.ID, Content: "hello"},
			code: utils.ErrValidation,
		},
		{
			name: "unsupported type",
			msg:  &SendMessageMsg{FromID: f.alice.ID, ToID: f.bob.ID, Content: "hello", Type: "gif"},
			code: utils.ErrValidation,
		},
		{
			name: "unknown sender",
			msg:  &SendMessageMsg{FromID: primitive.NewObjectID(), ToID: f.bob.ID, Content: "hello"},
			code: utils.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := f.send(t, pid, tc.msg)
			appErr, ok := result.(*utils.AppError)
			require.True(t, ok, "unexpected result type %T", result)
			assert.Equal(t, tc.code, appErr.Code)
		})
	}

	// None of the rejected sends may have fanned out or notified.
	assert.Zero(t, f.presence.pushCount())
	assert.Zero(t, f.notifier.count())
}

func TestSendMessageStripsMarkup(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	result := f.send(t, pid, &SendMessageMsg{
		FromID:  f.alice.ID,
		ToID:    f.bob.ID,
		Content: `<script>alert(1)</script>still interested`,
	}).(*SendMessageResult)

	assert.Equal(t, "still interested", result.Message.Content)
}

func TestSendMessageSummaries(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	image := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID,
		Content: "https://cdn.tradepost.local/item.jpg",
		Type:    models.MessageTypeImage,
	}).(*SendMessageResult)
	assert.Equal(t, "Sent a photo", image.Conversation.LastMessage)

	link := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID,
		Content: "https://example.com/a/very/long/listing/page/path",
		Type:    models.MessageTypeLink,
	}).(*SendMessageResult)
	assert.Equal(t, "Shared a link: https://example.com/a/very/lon...", link.Conversation.LastMessage)
}

func TestSendMessageRetriesTransientConflicts(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	// Two conflicts fit inside the three-attempt budget.
	f.store.FailTransactions(2)
	result := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "eventually lands",
	})
	sent, ok := result.(*SendMessageResult)
	require.True(t, ok, "unexpected result type %T", result)
	assert.Equal(t, "eventually lands", sent.Message.Content)
}

func TestSendMessageConflictExhaustion(t *testing.T) {
	f := newFixture(t)
	pid := f.spawnMessageActor()

	f.store.FailTransactions(3)
	result := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "never lands",
	})

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "unexpected result type %T", result)
	assert.Equal(t, utils.ErrConflict, appErr.Code)

	// The failed send must not have fanned out anything.
	assert.Zero(t, f.presence.pushCount())
	assert.Zero(t, f.notifier.count())
}

func TestSendMessageSkipsOfflineReceiver(t *testing.T) {
	f := newFixture(t)
	f.presence = newFakePresence(f.alice.ID) // bob never registered
	pid := f.spawnMessageActor()

	result := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "for later",
	})
	_, ok := result.(*SendMessageResult)
	require.True(t, ok, "unexpected result type %T", result)

	assert.Empty(t, f.presence.eventsFor(f.bob.ID))
	assert.Equal(t,
		[]string{websocket.EventMessageSent, websocket.EventConversationUpdate},
		f.presence.eventsFor(f.alice.ID))

	// Durable notification is created regardless of presence.
	assert.Equal(t, 1, f.notifier.count())
}

func TestSendMessageNotifierFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.notifier.failErr = errors.New("notification store down")
	pid := f.spawnMessageActor()

	result := f.send(t, pid, &SendMessageMsg{
		FromID: f.alice.ID, ToID: f.bob.ID, Content: "still committed",
	})

	sent, ok := result.(*SendMessageResult)
	require.True(t, ok, "a notifier failure must not undo the message: got %T", result)

	// The message is durable and the sender hears about the side failure.
	stored, err := f.store.GetConversationMessages(context.Background(), sent.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Contains(t, f.presence.eventsFor(f.alice.ID), websocket.EventError)
	assert.NotContains(t, f.presence.eventsFor(f.bob.ID), websocket.EventNewNotification)
}
