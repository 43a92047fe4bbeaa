package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	a := &Client{ID: "a", UserID: "u1", Events: make(chan Event, 4)}
	b := &Client{ID: "b", UserID: "u2", Events: make(chan Event, 4)}
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.PublishOutboundUpdate("rec-1", "dev-05", "create")

	for _, c := range []*Client{a, b} {
		ev := <-c.Events
		assert.Equal(t, EventOutboundUpdate, ev.EventType)
		var data map[string]string
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &data))
		assert.Equal(t, "rec-1", data["record_id"])
		assert.Equal(t, "dev-05", data["device_id"])
	}

	hub.Unregister("a")
	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-a.Events
	assert.False(t, open)
}

func TestHubSkipsFullBuffer(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{ID: "slow", Events: make(chan Event, 1)}
	hub.Register(c)

	hub.PublishInventoryUpdate("update")
	hub.PublishInventoryUpdate("update")

	assert.Len(t, c.Events, 1)
}
