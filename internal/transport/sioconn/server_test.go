package sioconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowwatch/internal/cache"
	"github.com/vk/flowwatch/internal/live"
	server "github.com/zishang520/socket.io/v2/socket"
)

// newSocketServer starts an in-process socket.io server. Every client that
// joins the default namespace is handed to sessions.
func newSocketServer(t *testing.T) (string, *server.Server, <-chan *server.Socket) {
	t.Helper()

	sessions := make(chan *server.Socket, 8)
	io := server.NewServer(nil, nil)
	io.On("connection", func(clients ...any) {
		sessions <- clients[0].(*server.Socket)
	})

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", io.ServeHandler(nil))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		io.Close(nil)
		srv.Close()
	})
	return srv.URL + "/socket.io/", io, sessions
}

// statusLog records status transitions in order.
type statusLog struct {
	mu  sync.Mutex
	all []live.Status
}

func (s *statusLog) record(st live.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, st)
}

func (s *statusLog) get() []live.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]live.Status(nil), s.all...)
}

func nextSession(t *testing.T, sessions <-chan *server.Socket) *server.Socket {
	t.Helper()
	select {
	case s := <-sessions:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no socket.io session was established")
		return nil
	}
}

func TestDial_ReceivesEventsInOrder(t *testing.T) {
	t.Parallel()

	url, _, sessions := newSocketServer(t)
	d, err := New(Config{URL: url})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	session := nextSession(t, sessions)
	require.NoError(t, session.Emit(DefaultEvent, map[string]any{"task_id": "a", "state": "STARTED"}))
	require.NoError(t, session.Emit("unrelated", "ignored"))
	require.NoError(t, session.Emit(DefaultEvent, `{"task_id":"b","state":"SUCCESS"}`))

	first, err := conn.Receive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"a","state":"STARTED"}`, string(first))

	second, err := conn.Receive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"b","state":"SUCCESS"}`, string(second))

	session.Disconnect(false)
	_, err = conn.Receive()
	assert.ErrorIs(t, err, live.ErrClosed)
}

func TestDial_RejectedNamespaceFails(t *testing.T) {
	t.Parallel()

	url, io, _ := newSocketServer(t)
	io.Of("/private", nil).Use(func(_ *server.Socket, next func(*server.ExtendedError)) {
		next(server.NewExtendedError("not allowed", nil))
	})

	d, err := New(Config{URL: url, Namespace: "/private"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = d.Dial(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_EndToEndReconnectsAfterServerDisconnect(t *testing.T) {
	t.Parallel()

	url, _, sessions := newSocketServer(t)
	d, err := New(Config{URL: url})
	require.NoError(t, err)

	var mu sync.Mutex
	var invalidated []string
	statuses := &statusLog{}
	c := live.New(d, cache.InvalidatorFunc(func(name string) {
		mu.Lock()
		defer mu.Unlock()
		invalidated = append(invalidated, name)
	}),
		live.WithReconnectDelay(50*time.Millisecond),
		live.WithStatusHook(statuses.record),
	)
	c.Start(context.Background())
	defer c.Close()

	session := nextSession(t, sessions)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, session.Emit(DefaultEvent, map[string]any{"task_id": id, "state": "STARTED"}))
	}
	require.Eventually(t, func() bool { return len(c.Events()) == 3 }, 5*time.Second, 5*time.Millisecond)

	var ids []string
	for _, ev := range c.Events() {
		ids = append(ids, ev.TaskID)
	}
	assert.Equal(t, []string{"e3", "e2", "e1"}, ids)
	mu.Lock()
	assert.Equal(t, []string{"tasks", "graphs", "tasks", "graphs", "tasks", "graphs"}, invalidated)
	mu.Unlock()

	session.Disconnect(false)
	nextSession(t, sessions)
	require.Eventually(t, func() bool { return c.Status() == live.StatusConnected }, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, []live.Status{
		live.StatusConnected,
		live.StatusDisconnected,
		live.StatusConnecting,
		live.StatusConnected,
	}, statuses.get())

	select {
	case <-sessions:
		t.Fatal("client opened more than one session after a single disconnect")
	case <-time.After(200 * time.Millisecond):
	}
}
