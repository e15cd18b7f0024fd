package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow/internal/events"
)

// newServer identifies the caller from ?user=<id>&admin=1.
func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		_ = hub.Serve(w, r, id, r.URL.Query().Get("admin") == "1")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RoutesEventsBySubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newServer(t, hub)

	admin := dial(t, srv, "user=1&admin=1")
	sales := dial(t, srv, "user=5")
	other := dial(t, srv, "user=6")
	waitSubscribers(t, hub, 3)

	ev := events.Event{Type: events.TaskAccepted, TaskID: 42, UserID: 5, OccurredAt: time.Now().UTC()}
	require.NoError(t, hub.Publish(context.Background(), ev))

	for _, conn := range []*websocket.Conn{admin, sales} {
		var got events.Event
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, events.TaskAccepted, got.Type)
		assert.Equal(t, int64(42), got.TaskID)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var got events.Event
	assert.Error(t, other.ReadJSON(&got), "unrelated user must not receive the event")
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newServer(t, hub)

	conn := dial(t, srv, "user=5")
	waitSubscribers(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()
	waitSubscribers(t, hub, 0)

	assert.NoError(t, hub.Publish(context.Background(), events.Event{Type: events.TaskCreated, UserID: 5}))
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newServer(t, hub)

	conn := dial(t, srv, "user=1&admin=1")
	waitSubscribers(t, hub, 1)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Subscribers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestFanout_JoinsErrors(t *testing.T) {
	hub := NewHub(zap.NewNop())
	pub := events.Fanout(events.NopPublisher{}, hub)
	assert.NoError(t, pub.Publish(context.Background(), events.Event{Type: events.TaskCreated}))
	assert.NoError(t, pub.Close())
}
