package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCollectsAndFilters(t *testing.T) {
	var r Recorder
	r.Publish(Event{Type: TypePostNew, PostID: "a"})
	r.Publish(Event{Type: TypePostExpired, PostID: "b"})
	r.Publish(Event{Type: TypePostNew, PostID: "c"})

	assert.Len(t, r.Events(), 3)
	fresh := r.ByType(TypePostNew)
	require.Len(t, fresh, 2)
	assert.Equal(t, "a", fresh[0].PostID)
	assert.Equal(t, "c", fresh[1].PostID)
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: TypePostNew, PostID: "post-1", Category: "street_food"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypePostNew, got.Type)
	assert.Equal(t, "post-1", got.PostID)
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	// Must not block or panic with nobody listening.
	hub.Publish(Event{Type: TypePostExpired, PostID: "post-1"})
	assert.Zero(t, hub.SubscriberCount())
}
