// Package channel maintains the realtime notification channel between the
// uploader and the backend: at most one live websocket per in-flight file,
// with keepalive, bounded reconnection, and graceful-close handling.
package channel

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wu-transcripts/uploader/internal/transport"
)

// DialFunc opens a websocket connection to the given URL. Injectable so
// tests can fail dials deterministically.
type DialFunc func(url string) (*websocket.Conn, error)

func defaultDial(url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

// Manager owns every active channel session, keyed by filename.
type Manager struct {
	wsBaseURL      string
	dial           DialFunc
	keepalive      time.Duration
	reconnectDelay time.Duration
	maxReconnects  int
	sleep          func(time.Duration)
	closeGrace     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option tunes a Manager.
type Option func(*Manager)

// WithDialer replaces the websocket dialer.
func WithDialer(d DialFunc) Option { return func(m *Manager) { m.dial = d } }

// WithKeepalive sets the ping interval.
func WithKeepalive(d time.Duration) Option { return func(m *Manager) { m.keepalive = d } }

// WithReconnectPolicy sets the fixed delay and attempt cap for reconnects.
func WithReconnectPolicy(delay time.Duration, maxAttempts int) Option {
	return func(m *Manager) {
		m.reconnectDelay = delay
		m.maxReconnects = maxAttempts
	}
}

// WithSleep replaces the reconnect-delay clock so tests run synchronously.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// NewManager creates a channel manager targeting the given ws(s):// base URL.
func NewManager(wsBaseURL string, opts ...Option) *Manager {
	m := &Manager{
		wsBaseURL:      wsBaseURL,
		dial:           defaultDial,
		keepalive:      20 * time.Second,
		reconnectDelay: 3 * time.Second,
		maxReconnects:  3,
		sleep:          time.Sleep,
		closeGrace:     2 * time.Second,
		sessions:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open registers and starts a session for the file. Opening a session for a
// filename that already has a live one is a no-op returning the existing
// session; the supplied callbacks are ignored in that case.
func (m *Manager) Open(fileName string, cb Callbacks) *Session {
	m.mu.Lock()
	if existing, ok := m.sessions[fileName]; ok {
		m.mu.Unlock()
		return existing
	}
	s := &Session{
		FileName: fileName,
		mgr:      m,
		cb:       cb,
		state:    StateConnecting,
		done:     make(chan struct{}),
	}
	m.sessions[fileName] = s
	m.mu.Unlock()

	go s.run()
	return s
}

// Close tears down the session for a file, blocking until it has reached a
// terminal state or the grace period expires. Closing an unknown filename is
// a no-op.
func (m *Manager) Close(fileName string) {
	m.mu.Lock()
	s, ok := m.sessions[fileName]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.requestClose()
	select {
	case <-s.done:
	case <-time.After(m.closeGrace):
	}
}

// ActiveSessions returns how many sessions are currently registered.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Has reports whether a live session exists for the filename.
func (m *Manager) Has(fileName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[fileName]
	return ok
}

func (m *Manager) remove(fileName string) {
	m.mu.Lock()
	delete(m.sessions, fileName)
	m.mu.Unlock()
}

func (m *Manager) sessionURL(fileName string) string {
	return m.wsBaseURL + "/ws/flagged_courses/" + transport.EncodeFileToken(fileName)
}
