package channel

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu-transcripts/uploader/internal/transport"
)

// wsHandler receives each accepted connection along with the decoded filename.
type wsHandler func(conn *websocket.Conn, fileName string)

func newWSServer(t *testing.T, handle wsHandler) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		name, err := transport.DecodeFileToken(parts[len(parts)-1])
		if err != nil {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn, name)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitClosed(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestSessionConfirmationGatesThenReady(t *testing.T) {
	release := make(chan struct{})
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		<-release
		conn.WriteJSON(ServerEvent{Status: EventReady, FileName: fileName})
		// Hold the socket open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(wsURL, WithSleep(func(time.Duration) {}))
	confirmed := make(chan struct{}, 1)
	ready := make(chan struct{}, 1)
	closed := make(chan error, 1)

	s := m.Open("john.pdf", Callbacks{
		OnConfirmed: func() { confirmed <- struct{}{} },
		OnReady:     func() { ready <- struct{}{} },
		OnClosed:    func(err error) { closed <- err },
	})

	waitSignal(t, confirmed, "confirmation")
	assert.Equal(t, StateConfirmed, s.State())

	close(release)
	waitSignal(t, ready, "ready event")
	assert.Equal(t, StateResultAvailable, s.State())

	m.Close("john.pdf")
	assert.NoError(t, waitClosed(t, closed, "session close"))
	assert.False(t, m.Has("john.pdf"))
}

func TestSessionNoFlaggedCourses(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		conn.WriteJSON(ServerEvent{Status: EventNoFlaggedCourses, FileName: fileName})
		conn.Close()
	})

	m := NewManager(wsURL, WithSleep(func(time.Duration) {}))
	noFlagged := make(chan struct{}, 1)
	closed := make(chan error, 1)

	m.Open("clean.pdf", Callbacks{
		OnNoFlagged: func() { noFlagged <- struct{}{} },
		OnClosed:    func(err error) { closed <- err },
	})

	waitSignal(t, noFlagged, "no-flagged event")
	// The server drops the socket after announcing closure; the session must
	// end cleanly instead of reconnecting.
	assert.NoError(t, waitClosed(t, closed, "session close"))
	assert.False(t, m.Has("clean.pdf"))
}

func TestSessionIntentionalClosureBlocksReconnect(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		conn.WriteJSON(ServerEvent{Status: EventIntentionalClosure, FileName: fileName})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})

	m := NewManager(wsURL, WithSleep(func(time.Duration) {}))
	closed := make(chan error, 1)
	s := m.Open("done.pdf", Callbacks{OnClosed: func(err error) { closed <- err }})

	assert.NoError(t, waitClosed(t, closed, "session close"))
	assert.Zero(t, s.ReconnectAttempts())
	assert.Equal(t, StateClosed, s.State())
}

func TestSessionReconnectCapFails(t *testing.T) {
	var dials atomic.Int32
	m := NewManager("ws://irrelevant",
		WithDialer(func(url string) (*websocket.Conn, error) {
			dials.Add(1)
			return nil, errors.New("connection refused")
		}),
		WithReconnectPolicy(time.Millisecond, 3),
		WithSleep(func(time.Duration) {}),
	)

	closed := make(chan error, 1)
	s := m.Open("lost.pdf", Callbacks{OnClosed: func(err error) { closed <- err }})

	err := waitClosed(t, closed, "session failure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnection failed after 3 attempts")
	assert.Equal(t, StateFailed, s.State())
	// Initial attempt plus three reconnects.
	assert.Equal(t, int32(4), dials.Load())
	assert.Equal(t, 3, s.ReconnectAttempts())
	assert.False(t, m.Has("lost.pdf"))
}

func TestSessionReconnectsAfterDropAndConfirmsOnce(t *testing.T) {
	var accepts atomic.Int32
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		n := accepts.Add(1)
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		if n == 1 {
			// Simulate an unexpected network drop.
			conn.Close()
			return
		}
		conn.WriteJSON(ServerEvent{Status: EventReady, FileName: fileName})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(wsURL, WithReconnectPolicy(time.Millisecond, 3), WithSleep(func(time.Duration) {}))
	var confirms atomic.Int32
	ready := make(chan struct{}, 1)
	closed := make(chan error, 1)

	s := m.Open("flaky.pdf", Callbacks{
		OnConfirmed: func() { confirms.Add(1) },
		OnReady:     func() { ready <- struct{}{} },
		OnClosed:    func(err error) { closed <- err },
	})

	waitSignal(t, ready, "ready after reconnect")
	assert.Equal(t, 1, s.ReconnectAttempts())
	// Confirmation is reported to the owner once even though the server
	// acknowledged both connections.
	assert.Equal(t, int32(1), confirms.Load())

	m.Close("flaky.pdf")
	assert.NoError(t, waitClosed(t, closed, "session close"))
}

func TestOpenExistingSessionIsNoOp(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(wsURL, WithSleep(func(time.Duration) {}))
	confirmed := make(chan struct{}, 1)
	first := m.Open("john.pdf", Callbacks{OnConfirmed: func() { confirmed <- struct{}{} }})
	waitSignal(t, confirmed, "confirmation")

	second := m.Open("john.pdf", Callbacks{
		OnConfirmed: func() { t.Error("duplicate open must not register new callbacks") },
	})

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.ActiveSessions())
	m.Close("john.pdf")
}

func TestKeepalivePingsFlow(t *testing.T) {
	pings := make(chan struct{}, 4)
	_, wsURL := newWSServer(t, func(conn *websocket.Conn, fileName string) {
		conn.WriteJSON(ServerEvent{Status: EventConnected, FileName: fileName})
		for {
			var msg map[string]string
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	})

	m := NewManager(wsURL, WithKeepalive(20*time.Millisecond), WithSleep(func(time.Duration) {}))
	m.Open("john.pdf", Callbacks{})
	defer m.Close("john.pdf")

	waitSignal(t, pings, "first keepalive ping")
	waitSignal(t, pings, "second keepalive ping")
}
