package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/gold-arena/internal/arena"
)

// wsMessage is what the server pushes to websocket clients.
type wsMessage struct {
	Type  string       `json:"type"` // "state" or "error"
	State *arena.State `json:"state,omitempty"`
	Error string       `json:"error,omitempty"`
}

// handleWS streams every published snapshot and accepts intent messages.
// Each inbound text message is an intent body, validated like POST /api/v1/intent.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.AdminKey != "" && !s.checkBearerToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	current := atomic.AddInt32(&s.wsConns, 1)
	defer atomic.AddInt32(&s.wsConns, -1)
	if current > maxWSConns {
		http.Error(w, "too many websocket connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	subID, states := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("websocket client connected", "sub_id", subID, "remote", clientIP(r))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan wsMessage, 8)
	first := s.Sim.Snapshot()
	out <- wsMessage{Type: "state", State: &first}

	// Writer goroutine.
	go func() {
		defer cancel()
		for {
			var msg wsMessage
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				msg = wsMessage{Type: "state", State: &st}
			case msg = <-out:
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}()

	// Reader loop.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var in arena.Intent
		if err := decodeValid(intentSchema, raw, &in); err != nil {
			select {
			case out <- wsMessage{Type: "error", Error: err.Error()}:
			default:
			}
			continue
		}
		s.Sim.SubmitIntent(in)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	slog.Info("websocket client disconnected", "sub_id", subID)
}
