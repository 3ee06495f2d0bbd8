// Package websocket streams console updates for one session.
//
// Clients open a WebSocket connection to:
//
//	GET /sessions/{id}/ws
//
// The server sends a snapshot frame first and then one update frame per
// applied action. Clients may dispatch actions over the same connection.
//
// Server → client frames:
//
//	{"type":"snapshot","seq":3,"visible":[...],"messages":[...],"filtered":{...},"filters":{...}}
//	{"type":"update","seq":4,"action":"MESSAGES_ADD","visible":[...],"messages":[...],"filtered":{...},"filters":{...}}
//	{"type":"error","error":"..."}
//
// Client → server frame:
//
//	{"type":"action","action":{"type":"FILTER_TOGGLE","filter":"log"}}
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	gorillaws "github.com/gorilla/websocket"

	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/metrics"
	"github.com/snehjoshi/replayconsole/internal/session"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// updateBuffer is how many updates a slow client may fall behind before
// updates are dropped for it.
const updateBuffer = 64

var upgrader = gorillaws.Upgrader{
	// CheckOrigin rejects cross-origin upgrades: the Origin header must name
	// the same host as the request. Requests without an Origin header (native
	// clients, curl) are allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host, err := parseHost(origin)
		if err != nil {
			return false
		}
		return host == r.Host
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// parseHost returns the host:port (or just host) portion of a URL string.
func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// Handler serves the WebSocket endpoint for a session.
// It is mounted by the HTTP server and reads the session id from r.PathValue.
type Handler struct {
	Sessions *session.Manager
	Metrics  *metrics.Registry
}

// serverFrame is the JSON structure the server sends to the client.
type serverFrame struct {
	Type     string                `json:"type"` // "snapshot" | "update" | "error"
	Seq      uint64                `json:"seq,omitempty"`
	Action   types.ActionType      `json:"action,omitempty"`
	Visible  []string              `json:"visible,omitempty"`
	Messages []*types.Message      `json:"messages,omitempty"`
	Filtered console.FilteredCount `json:"filtered,omitempty"`
	Filters  *types.Filters        `json:"filters,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// clientFrame is the JSON structure the client sends to the server.
type clientFrame struct {
	Type   string        `json:"type"` // "action"
	Action *types.Action `json:"action"`
}

// ServeHTTP upgrades the connection and starts the push loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.Sessions.Get(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	// Subscribe before reading the snapshot so no update falls in between.
	updates, cancel := s.Subscribe(updateBuffer)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session", id, "err", err)
		return
	}
	defer conn.Close()
	h.Metrics.WebSocketConnected(1)
	defer h.Metrics.WebSocketConnected(-1)

	snap := s.Snapshot()
	if err := writeFrame(conn, snapshotFrame(snap)); err != nil {
		return
	}

	// Read control frames on their own goroutine; all writes stay on this one.
	controlCh := make(chan clientFrame, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(controlCh)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cf clientFrame
			if jsonErr := json.Unmarshal(raw, &cf); jsonErr != nil {
				cf = clientFrame{Type: "invalid"}
			}
			select {
			case controlCh <- cf:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return

		case cf, ok := <-controlCh:
			if !ok {
				return // client disconnected
			}
			if cf.Type != "action" || cf.Action == nil || cf.Action.Type == "" {
				if writeFrame(conn, serverFrame{Type: "error", Error: "expected an action frame"}) != nil {
					return
				}
				continue
			}
			if _, err := s.Dispatch(r.Context(), *cf.Action); err != nil {
				slog.Warn("ws dispatch failed", "session", id, "action", cf.Action.Type, "err", err)
				if writeFrame(conn, serverFrame{Type: "error", Error: err.Error()}) != nil {
					return
				}
				if errors.Is(err, session.ErrClosed) {
					return
				}
			}

		case u, ok := <-updates:
			if !ok {
				// Session deleted.
				_ = conn.WriteMessage(gorillaws.CloseMessage,
					gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "session deleted"))
				return
			}
			if err := writeFrame(conn, updateFrame(u)); err != nil {
				return
			}
		}
	}
}

func snapshotFrame(snap session.Snapshot) serverFrame {
	ids := snap.State.VisibleMessages()
	msgs := make([]*types.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := snap.State.Message(id); ok {
			msgs = append(msgs, m)
		}
	}
	fs := snap.Filters
	return serverFrame{
		Type:     "snapshot",
		Seq:      snap.Seq,
		Visible:  ids,
		Messages: msgs,
		Filtered: snap.State.FilteredMessagesCount(),
		Filters:  &fs,
	}
}

func updateFrame(u session.Update) serverFrame {
	fs := u.Filters
	return serverFrame{
		Type:     "update",
		Seq:      u.Seq,
		Action:   u.Action,
		Visible:  u.Visible,
		Messages: u.Messages,
		Filtered: u.Filtered,
		Filters:  &fs,
	}
}

func writeFrame(conn *gorillaws.Conn, f serverFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(gorillaws.TextMessage, data)
}
