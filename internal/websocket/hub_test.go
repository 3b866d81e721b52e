package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/netpulse/internal/logging"
	"github.com/conneroisu/netpulse/internal/sample"
)

func newTestServer(t *testing.T, h *Hub, initial any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		h.Register(conn, initial)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestHub_RegisterSendsSnapshotFirst(t *testing.T) {
	h := New(context.Background(), logging.NewTestLogger())
	go h.Run()
	defer h.Close()

	srv := newTestServer(t, h, map[string]string{"type": "snapshot"})
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "snapshot", msg["type"])
}

func TestHub_BroadcastDeliversToAllClients(t *testing.T) {
	h := New(context.Background(), logging.NewTestLogger())
	go h.Run()
	defer h.Close()

	srv := newTestServer(t, h, nil)
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	h.Broadcast(BuildSampleMessage("t1", sample.Sample{TimestampWallMillis: 1000, RTTMillis: 12.5, Success: true}))

	for _, c := range []*websocket.Conn{c1, c2} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, data, err := c.Read(ctx)
		cancel()
		require.NoError(t, err)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "sample", msg["type"])
		assert.Equal(t, "t1", msg["target_id"])
	}
}

func TestHub_UnregistersOnClientDisconnect(t *testing.T) {
	h := New(context.Background(), logging.NewTestLogger())
	go h.Run()
	defer h.Close()

	srv := newTestServer(t, h, nil)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := New(context.Background(), logging.NewTestLogger())
	go h.Run()

	h.Close()
	h.Close()
}
