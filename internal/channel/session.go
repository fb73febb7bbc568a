package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of one channel session.
type State string

const (
	StateConnecting      State = "connecting"
	StateOpenUnconfirmed State = "open_unconfirmed"
	StateConfirmed       State = "confirmed"
	StateResultAvailable State = "result_available"
	StateServerClosing   State = "server_closing"
	StateReconnecting    State = "reconnecting"
	StateClosed          State = "closed"
	StateFailed          State = "failed"
)

// Server -> client event statuses.
const (
	EventConnected          = "connected"
	EventReady              = "ready"
	EventNoFlaggedCourses   = "no_flagged_courses"
	EventIntentionalClosure = "intentional_closure"
)

// ServerEvent is the JSON shape of every message the backend pushes over the
// channel.
type ServerEvent struct {
	Status   string `json:"status"`
	FileName string `json:"file_name,omitempty"`
}

// pingMessage is the client keepalive payload.
type pingMessage struct {
	Type string `json:"type"`
}

// Callbacks translate channel events into orchestrator notifications. All
// callbacks fire from the session goroutine; receivers must serialize them
// themselves (the orchestrator funnels them into its event loop).
type Callbacks struct {
	// OnConfirmed fires once when the server acknowledges the connection.
	// Only after this may the file upload begin.
	OnConfirmed func()
	// OnReady fires when processing results are available for fetching.
	OnReady func()
	// OnNoFlagged fires when the server reports nothing to review.
	OnNoFlagged func()
	// OnClosed fires exactly once when the session reaches a terminal state.
	// err is nil for a clean close and non-nil when the session failed.
	OnClosed func(err error)
}

// Session is the realtime connection tied to one file's processing
// lifecycle. It is owned by the Manager; at most one live session exists per
// filename.
type Session struct {
	FileName string

	mgr *Manager
	cb  Callbacks

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	reconnects     int
	resultReceived bool
	closedByServer bool
	closeRequested bool
	confirmedFired bool

	done chan struct{}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session has reached a terminal state and released
// its resources.
func (s *Session) Done() <-chan struct{} { return s.done }

// ReconnectAttempts returns how many reconnects have been attempted.
func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// run drives the connect / read / reconnect loop. It exits only through
// finish, which releases resources and deregisters the session.
func (s *Session) run() {
	for {
		s.mu.Lock()
		attempt := s.reconnects
		s.mu.Unlock()

		conn, err := s.mgr.dial(s.mgr.sessionURL(s.FileName))
		if err != nil {
			fmt.Printf("[Channel %s] Connect failed (attempt %d): %v\n", s.FileName, attempt+1, err)
			if !s.scheduleReconnect() {
				s.finish(s.terminalError())
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.state = StateOpenUnconfirmed
		closeRequested := s.closeRequested
		s.mu.Unlock()

		if closeRequested {
			conn.Close()
			s.finish(nil)
			return
		}

		stopKeepalive := s.startKeepalive(conn)
		readErr := s.readLoop(conn)
		stopKeepalive()
		conn.Close()

		s.mu.Lock()
		terminal := s.closeRequested || s.closedByServer || s.resultReceived
		s.mu.Unlock()

		if terminal {
			s.finish(nil)
			return
		}
		fmt.Printf("[Channel %s] Connection lost: %v\n", s.FileName, readErr)
		if !s.scheduleReconnect() {
			s.finish(s.terminalError())
			return
		}
	}
}

// readLoop decodes server events until the connection drops or the server
// signals intentional closure.
func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		var ev ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		switch ev.Status {
		case EventConnected:
			s.mu.Lock()
			s.state = StateConfirmed
			fireConfirmed := !s.confirmedFired
			s.confirmedFired = true
			s.mu.Unlock()
			if fireConfirmed && s.cb.OnConfirmed != nil {
				s.cb.OnConfirmed()
			}
		case EventReady:
			s.mu.Lock()
			s.resultReceived = true
			s.state = StateResultAvailable
			s.mu.Unlock()
			if s.cb.OnReady != nil {
				s.cb.OnReady()
			}
		case EventNoFlaggedCourses:
			s.mu.Lock()
			s.closedByServer = true
			s.state = StateServerClosing
			s.mu.Unlock()
			if s.cb.OnNoFlagged != nil {
				s.cb.OnNoFlagged()
			}
		case EventIntentionalClosure:
			// Graceful shutdown initiated by the backend. No reconnection is
			// attempted once this is seen, however the socket ends up closing.
			s.mu.Lock()
			s.closedByServer = true
			s.state = StateServerClosing
			s.mu.Unlock()
		default:
			fmt.Printf("[Channel %s] Ignoring unknown event %q\n", s.FileName, ev.Status)
		}
	}
}

// startKeepalive sends a ping on a fixed interval so a silently dead
// connection surfaces as a write error. The returned func stops the ticker.
func (s *Session) startKeepalive(conn *websocket.Conn) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.mgr.keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(pingMessage{Type: "ping"}); err != nil {
					// Force the read loop to observe the dead connection.
					conn.Close()
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// scheduleReconnect decides whether another attempt is allowed and, if so,
// waits out the fixed delay. Reconnection is never attempted after the
// server signaled closure, after results were received, or past the attempt
// cap.
func (s *Session) scheduleReconnect() bool {
	s.mu.Lock()
	allowed := !s.closeRequested && !s.closedByServer && !s.resultReceived &&
		s.reconnects < s.mgr.maxReconnects
	if allowed {
		s.reconnects++
		s.state = StateReconnecting
	}
	s.mu.Unlock()

	if !allowed {
		return false
	}
	s.mgr.sleep(s.mgr.reconnectDelay)

	s.mu.Lock()
	cancelled := s.closeRequested
	s.mu.Unlock()
	return !cancelled
}

// terminalError distinguishes a failed session from one that simply ended.
func (s *Session) terminalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeRequested || s.closedByServer || s.resultReceived {
		return nil
	}
	return fmt.Errorf("reconnection failed after %d attempts", s.reconnects)
}

// finish moves the session to its terminal state, deregisters it, and
// notifies the owner. Runs exactly once per session.
func (s *Session) finish(err error) {
	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateClosed
	}
	s.mu.Unlock()

	s.mgr.remove(s.FileName)
	if s.cb.OnClosed != nil {
		s.cb.OnClosed(err)
	}
	close(s.done)
}

// requestClose flags a locally initiated close and tears down any live
// connection so the run loop exits.
func (s *Session) requestClose() {
	s.mu.Lock()
	s.closeRequested = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
}
