package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, bufferSize int) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), bufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func receive(t *testing.T, conn *Connection) []byte {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		if !ok {
			t.Fatalf("send channel of %s closed", conn.ID)
		}
		return data
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a frame on %s", conn.ID)
		return nil
	}
}

func TestBroadcastFansOutPerSession(t *testing.T) {
	h := startHub(t, 8)

	a1 := h.NewConnection(nil)
	a2 := h.NewConnection(nil)
	b := h.NewConnection(nil)
	for _, conn := range []*Connection{a1, a2, b} {
		h.Register(conn)
	}
	h.BindSession(a1, "alice")
	h.BindSession(a2, "alice")
	h.BindSession(b, "bob")

	require.NoError(t, h.BroadcastJSON("alice", map[string]any{"type": "a2ui", "seq": 1}))

	for _, conn := range []*Connection{a1, a2} {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(receive(t, conn), &frame))
		assert.Equal(t, "a2ui", frame["type"])
		assert.EqualValues(t, 1, frame["seq"])
	}
	select {
	case data := <-b.Send:
		t.Fatalf("bob received a frame meant for alice: %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 3, h.ConnectionCount())
	assert.Equal(t, 2, h.SessionCount())
	assert.Equal(t, "alice", a1.SessionID())
}

func TestRebindMovesConnection(t *testing.T) {
	h := startHub(t, 8)
	conn := h.NewConnection(nil)
	h.Register(conn)

	h.BindSession(conn, "first")
	h.BindSession(conn, "second")

	assert.False(t, h.HasActiveConnections("first"))
	assert.True(t, h.HasActiveConnections("second"))
	assert.Equal(t, 1, h.SessionCount())
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t, 8)
	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "s")

	h.Unregister(conn)
	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	assert.False(t, h.HasActiveConnections("s"))
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("late")), ErrConnectionClosed)
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h := startHub(t, 1)
	conn := h.NewConnection(nil)
	h.Register(conn)

	require.NoError(t, h.SendJSONToConnection(conn, map[string]string{"type": "hello_ack"}))
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("{}")), ErrBufferFull)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	h := startHub(t, 1)
	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "slow")

	h.Broadcast("slow", []byte("1"))
	h.Broadcast("slow", []byte("2"))

	require.Eventually(t, func() bool {
		return h.ConnectionCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStoppedHubDropsWork(t *testing.T) {
	h := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	conn := h.NewConnection(nil)
	h.Register(conn)
	cancel()
	<-stopped

	_, ok := <-conn.Send
	assert.False(t, ok)

	done := make(chan struct{})
	go func() {
		h.Register(h.NewConnection(nil))
		h.Unregister(conn)
		h.Broadcast("any", []byte("x"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("calls on a stopped hub blocked")
	}
}
