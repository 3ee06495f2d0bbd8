package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/snehjoshi/replayconsole/internal/console"
	"github.com/snehjoshi/replayconsole/internal/session"
	"github.com/snehjoshi/replayconsole/internal/types"
)

// maxBatchMessages is the most messages accepted by one ingest request.
const maxBatchMessages = 5000

// maxLabelBytes bounds session labels.
const maxLabelBytes = 256

// togglable lists the filters FILTER_TOGGLE accepts. The text filter is set,
// never toggled.
var togglable = map[string]bool{
	types.FilterError:       true,
	types.FilterWarn:        true,
	types.FilterInfo:        true,
	types.FilterDebug:       true,
	types.FilterLog:         true,
	types.FilterNodeModules: true,
}

// Handler groups all HTTP request handlers around a session Manager.
type Handler struct {
	sessions *session.Manager
	nodeID   string
}

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type createSessionReq struct {
	Label string `json:"label"`
}

type sessionListResp struct {
	Sessions []session.Info `json:"sessions"`
}

type sessionResp struct {
	session.Info
	Seq     uint64        `json:"seq"`
	Filters types.Filters `json:"filters"`
}

type addMessagesReq struct {
	Messages []types.Message `json:"messages"`
}

// viewResp is returned by every route that dispatches an action.
type viewResp struct {
	Seq      uint64                `json:"seq"`
	Visible  []string              `json:"visible"`
	Filtered console.FilteredCount `json:"filtered"`
	Filters  types.Filters         `json:"filters"`
}

type messagesResp struct {
	viewResp
	Messages []*types.Message `json:"messages"`
}

type messageResp struct {
	Message *types.Message  `json:"message"`
	Open    bool            `json:"open"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// InWarningGroup is true when the message's warning group header is
	// visible.
	InWarningGroup bool `json:"in_warning_group"`
}

type pausedPointReq struct {
	Point string  `json:"point"`
	Time  float64 `json:"time"`
}

type pausedPointResp struct {
	Point string  `json:"point"`
	Time  float64 `json:"time"`
}

type filterTextReq struct {
	Text string `json:"text"`
}

type healthResp struct {
	Status   string `json:"status"`
	NodeID   string `json:"node_id"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
	UptimeMs int64  `json:"uptime_ms"`
	Version  string `json:"version"`
}

// ─── Health ───────────────────────────────────────────────────────────────────

var startTime = time.Now()

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	elapsed := time.Since(startTime)
	writeJSON(w, http.StatusOK, healthResp{
		Status:   "ok",
		NodeID:   h.nodeID,
		Sessions: len(h.sessions.List()),
		Uptime:   elapsed.Round(time.Second).String(),
		UptimeMs: elapsed.Milliseconds(),
		Version:  "1.0.0",
	})
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional.
	var req createSessionReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return
	}
	if len(req.Label) > maxLabelBytes {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label too long"})
		return
	}
	s, err := h.sessions.Create(req.Label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Info())
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionListResp{Sessions: h.sessions.List()})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, sessionResp{Info: s.Info(), Seq: snap.Seq, Filters: snap.Filters})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Messages ─────────────────────────────────────────────────────────────────

// addMessages ingests a batch. Unknown message fields are ignored since the
// runtime's message shape is wider than what the console keeps.
func (h *Handler) addMessages(w http.ResponseWriter, r *http.Request) {
	var req addMessagesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages is required"})
		return
	}
	if len(req.Messages) > maxBatchMessages {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "batch too large"})
		return
	}
	for i, m := range req.Messages {
		if m.ID == "" || m.Type == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "messages[" + strconv.Itoa(i) + "]: id and type are required",
			})
			return
		}
	}
	h.dispatch(w, r, types.AddMessages(req.Messages...))
}

func (h *Handler) visibleMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	ids := snap.State.VisibleMessages()
	msgs := make([]*types.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := snap.State.Message(id); ok {
			msgs = append(msgs, m)
		}
	}
	writeJSON(w, http.StatusOK, messagesResp{viewResp: view(snap), Messages: msgs})
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	st := s.Snapshot().State
	mid := r.PathValue("mid")
	m, ok := st.Message(mid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message not found"})
		return
	}
	payload, _ := st.Payload(mid)
	writeJSON(w, http.StatusOK, messageResp{
		Message:        m,
		Open:           st.IsOpen(mid),
		Payload:        payload,
		InWarningGroup: console.IsMessageInWarningGroup(m, st.VisibleMessages()),
	})
}

func (h *Handler) openMessage(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.OpenMessage(r.PathValue("mid")))
}

func (h *Handler) closeMessage(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.CloseMessage(r.PathValue("mid")))
}

// updatePayload stores the request body, which must be a JSON value, as the
// message's payload.
func (h *Handler) updatePayload(w http.ResponseWriter, r *http.Request) {
	var data json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}
	h.dispatch(w, r, types.UpdatePayload(r.PathValue("mid"), data))
}

// ─── Clearing ─────────────────────────────────────────────────────────────────

func (h *Handler) clearMessages(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ClearMessages())
}

func (h *Handler) clearEvaluations(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ClearEvaluations())
}

func (h *Handler) clearEvaluation(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ClearEvaluation(r.PathValue("cid")))
}

func (h *Handler) clearLogpoint(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ClearLogpoint(r.PathValue("lid")))
}

// ─── Replay position ──────────────────────────────────────────────────────────

func (h *Handler) setPausedPoint(w http.ResponseWriter, r *http.Request) {
	var req pausedPointReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Point != "" && strings.Trim(req.Point, "0123456789") != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "point must be a decimal execution point"})
		return
	}
	h.dispatch(w, r, types.SetPausedPoint(req.Point, req.Time))
}

// ─── Filters ──────────────────────────────────────────────────────────────────

func (h *Handler) getFilters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot().Filters)
}

func (h *Handler) toggleFilter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !togglable[name] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown filter: " + name})
		return
	}
	h.dispatch(w, r, types.ToggleFilter(name))
}

func (h *Handler) setFilterText(w http.ResponseWriter, r *http.Request) {
	var req filterTextReq
	if !decodeJSON(w, r, &req) {
		return
	}
	h.dispatch(w, r, types.SetFilterText(req.Text))
}

func (h *Handler) clearFilters(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ClearFilters())
}

func (h *Handler) resetFilters(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.ResetDefaultFilters())
}

func (h *Handler) filteredCount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot().State.FilteredMessagesCount())
}

// ─── Raw actions ──────────────────────────────────────────────────────────────

// dispatchAction accepts any action. Unknown action types are accepted and
// change nothing.
func (h *Handler) dispatchAction(w http.ResponseWriter, r *http.Request) {
	var a types.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}
	if a.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	h.dispatch(w, r, a)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return s, true
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, a types.Action) {
	snap, err := h.sessions.Dispatch(r.Context(), r.PathValue("id"), a)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view(snap))
}

func view(snap session.Snapshot) viewResp {
	return viewResp{
		Seq:      snap.Seq,
		Visible:  snap.State.VisibleMessages(),
		Filtered: snap.State.FilteredMessagesCount(),
		Filters:  snap.Filters,
	}
}

// statusFor maps a session-layer error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, console.ErrInvariant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
}
