package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wu-transcripts/uploader/internal/transport"
)

// Server -> client event statuses, matching what the real backend pushes.
const (
	eventConnected          = "connected"
	eventReady              = "ready"
	eventNoFlagged          = "no_flagged_courses"
	eventIntentionalClosure = "intentional_closure"
)

// wsEvent is the JSON shape of every pushed event.
type wsEvent struct {
	Status   string `json:"status"`
	FileName string `json:"file_name,omitempty"`
}

// clientMessage covers everything the uploader sends over the channel.
type clientMessage struct {
	Type string `json:"type"`
}

// handleWebSocket upgrades the connection for one file's notification
// channel. The "connected" acknowledgment is sent before anything else so
// the client knows it is safe to start the upload.
func (s *Server) handleWebSocket(c echo.Context) error {
	fileName, err := transport.DecodeFileToken(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "invalid file token",
		})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	fmt.Printf("[DevServer] Channel opened for %s\n", fileName)

	s.mu.Lock()
	if old, ok := s.conns[fileName]; ok {
		old.Close()
	}
	s.conns[fileName] = ws
	s.mu.Unlock()

	if err := ws.WriteJSON(wsEvent{Status: eventConnected, FileName: fileName}); err != nil {
		s.dropConn(fileName, ws)
		return nil
	}

	// Read loop: consume keepalive pings until the client goes away.
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			continue
		}
	}

	s.dropConn(fileName, ws)
	fmt.Printf("[DevServer] Channel closed for %s\n", fileName)
	return nil
}

// dropConn deregisters a specific connection. A reconnect may already have
// replaced it, in which case the newer registration is left alone.
func (s *Server) dropConn(fileName string, ws *websocket.Conn) {
	s.mu.Lock()
	if s.conns[fileName] == ws {
		delete(s.conns, fileName)
	}
	s.mu.Unlock()
	ws.Close()
}

// notify pushes an event to the file's channel, if one is open.
func (s *Server) notify(fileName, status string) {
	s.mu.Lock()
	ws := s.conns[fileName]
	s.mu.Unlock()
	if ws == nil {
		fmt.Printf("[DevServer] No channel open for %s, dropping %q event\n", fileName, status)
		return
	}
	if err := ws.WriteJSON(wsEvent{Status: status, FileName: fileName}); err != nil {
		fmt.Printf("[DevServer] Failed to push %q to %s: %v\n", status, fileName, err)
	}
}

// closeConn drops and closes the registered channel for a file.
func (s *Server) closeConn(fileName string) {
	s.mu.Lock()
	ws := s.conns[fileName]
	delete(s.conns, fileName)
	s.mu.Unlock()
	if ws != nil {
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		ws.Close()
	}
}
