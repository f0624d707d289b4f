package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong or the next frame
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds a single frame message
	maxMessageSize = 256 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// streamMessage is a client message. A message with type "finalize" ends
// the session; anything else is decoded as a frame sample.
type streamMessage struct {
	Type string `json:"type,omitempty"`
	l1samples.FrameSample
}

// streamReply is sent for every client message.
type streamReply struct {
	Type   string            `json:"type"`
	Update *posture.Update   `json:"update,omitempty"`
	Report *l5summary.Report `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

var streamLog = monitoring.Prefixed("Stream")

// stream ingests frames one websocket message at a time and answers each
// with the session update. Rejected frames produce an error reply and the
// connection stays open. On finalize the report is sent and the connection
// is closed.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Info(id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		streamLog("upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				streamLog("session %s: read: %v", id, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !reply(conn, streamReply{Type: "error", Error: "invalid JSON: " + err.Error()}) {
				return
			}
			continue
		}

		if msg.Type == "finalize" {
			report, err := s.store.Finalize(r.Context(), id)
			if err != nil {
				reply(conn, streamReply{Type: "error", Error: err.Error()})
				return
			}
			if reply(conn, streamReply{Type: "report", Report: &report}) {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "finalized"))
			}
			return
		}

		var u posture.Update
		err = s.store.With(id, func(sess *posture.Session) error {
			var err error
			u, err = sess.Ingest(msg.FrameSample)
			return err
		})
		if err != nil {
			if !reply(conn, streamReply{Type: "error", Error: err.Error()}) {
				return
			}
			if errors.Is(err, posture.ErrFinalized) {
				return
			}
			continue
		}
		if !reply(conn, streamReply{Type: "update", Update: &u}) {
			return
		}
	}
}

func reply(conn *websocket.Conn, msg streamReply) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		streamLog("write: %v", err)
		return false
	}
	return true
}

// pingLoop keeps the connection alive while the client is idle.
// WriteControl is safe to call alongside the handler's writes.
func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
