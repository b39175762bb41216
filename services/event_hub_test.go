package services

import (
	"testing"

	"friendsAPI/internal/notification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventHubRoutesByUser(t *testing.T) {
	hub := NewEventHub(zaptest.NewLogger(t))
	alice, bob := uuid.New(), uuid.New()

	a := NewEventClient(hub, nil, alice)
	b := NewEventClient(hub, nil, bob)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	assert.Contains(t, string(<-a.send), `"type":"connected"`)
	assert.Contains(t, string(<-b.send), `"type":"connected"`)

	hub.Publish(alice, &notification.Event{Type: notification.TypeFriendRequest, Body: "hi"})
	assert.Contains(t, string(<-a.send), `"body":"hi"`)
	assert.Empty(t, b.send)

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Zero(t, hub.ClientCount(alice))
	_, open := <-a.send
	assert.False(t, open)

	// publishing to a user with no connections is a no-op
	hub.Publish(alice, &notification.Event{Type: notification.TypeFriendRequest})
}

func TestEventHubDropsSlowClients(t *testing.T) {
	hub := NewEventHub(zaptest.NewLogger(t))
	userID := uuid.New()
	c := NewEventClient(hub, nil, userID)
	require.True(t, hub.Register(c))

	for i := 0; i < clientSendBuffer+1; i++ {
		hub.Publish(userID, &notification.Event{Type: notification.TypeFriendRequest})
	}
	assert.Zero(t, hub.ClientCount(userID))
}

func TestEventHubClose(t *testing.T) {
	hub := NewEventHub(zaptest.NewLogger(t))
	userID := uuid.New()
	c := NewEventClient(hub, nil, userID)
	require.True(t, hub.Register(c))

	hub.Close()
	assert.Zero(t, hub.ClientCount(userID))
	assert.False(t, hub.Register(NewEventClient(hub, nil, userID)))
}
