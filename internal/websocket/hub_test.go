package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// drain decodes every event queued on the client's send buffer.
func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case payload := <-c.Send:
			var evt Event
			require.NoError(t, json.Unmarshal(payload, &evt))
			out = append(out, evt)
		default:
			return out
		}
	}
}

func lastEvent(t *testing.T, c *Client) Event {
	t.Helper()
	events := drain(t, c)
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestHubRegisterTracksPresence(t *testing.T) {
	hub := NewHub()
	userID := primitive.NewObjectID()
	client := NewClient(hub, userID, nil, nil)

	assert.False(t, hub.IsOnline(userID))

	hub.Register(userID, client)

	assert.True(t, hub.IsOnline(userID))
	assert.Equal(t, []primitive.ObjectID{userID}, hub.OnlineIDs())
}

func TestHubRegisterBroadcastsOnlineSet(t *testing.T) {
	hub := NewHub()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	aliceConn := NewClient(hub, alice, nil, nil)
	bobConn := NewClient(hub, bob, nil, nil)

	hub.Register(alice, aliceConn)
	hub.Register(bob, bobConn)

	// The earlier connection saw both announcements; decode the latest.
	evt := lastEvent(t, aliceConn)
	assert.Equal(t, EventOnlineUsers, evt.Event)

	var ids []string
	require.NoError(t, json.Unmarshal(evt.Data, &ids))
	assert.ElementsMatch(t, []string{alice.Hex(), bob.Hex()}, ids)
}

func TestHubLastRegistrationWins(t *testing.T) {
	hub := NewHub()
	userID := primitive.NewObjectID()
	stale := NewClient(hub, userID, nil, nil)
	fresh := NewClient(hub, userID, nil, nil)

	hub.Register(userID, stale)
	hub.Register(userID, fresh)
	drain(t, stale)
	drain(t, fresh)

	hub.Push(userID, "ping", "hello")

	assert.Empty(t, drain(t, stale), "the replaced connection receives nothing")
	assert.Len(t, drain(t, fresh), 1)

	// Tearing down the stale connection must not knock the user offline.
	hub.Unregister(stale)
	assert.True(t, hub.IsOnline(userID))
}

func TestHubUnregisterRemovesPresence(t *testing.T) {
	hub := NewHub()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	aliceConn := NewClient(hub, alice, nil, nil)
	bobConn := NewClient(hub, bob, nil, nil)

	hub.Register(alice, aliceConn)
	hub.Register(bob, bobConn)
	drain(t, bobConn)

	hub.Unregister(aliceConn)

	assert.False(t, hub.IsOnline(alice))
	assert.True(t, hub.IsOnline(bob))

	// The survivor hears the shrunken online set.
	evt := lastEvent(t, bobConn)
	assert.Equal(t, EventOnlineUsers, evt.Event)
	var ids []string
	require.NoError(t, json.Unmarshal(evt.Data, &ids))
	assert.Equal(t, []string{bob.Hex()}, ids)
}

func TestHubUnregisterUnknownConnectionIsNoop(t *testing.T) {
	hub := NewHub()
	userID := primitive.NewObjectID()
	registered := NewClient(hub, userID, nil, nil)
	never := NewClient(hub, primitive.NewObjectID(), nil, nil)

	hub.Register(userID, registered)
	drain(t, registered)

	hub.Unregister(never)

	assert.True(t, hub.IsOnline(userID))
	assert.Empty(t, drain(t, registered), "no broadcast for a connection that was never present")
}

func TestHubPushToOfflineUserIsSilent(t *testing.T) {
	hub := NewHub()
	hub.Push(primitive.NewObjectID(), EventReceiveMessage, "ignored")
}
