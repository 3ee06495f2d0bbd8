package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/snehjoshi/replayconsole/internal/config"
	"github.com/snehjoshi/replayconsole/internal/metrics"
	"github.com/snehjoshi/replayconsole/internal/session"
	"github.com/snehjoshi/replayconsole/internal/storage/local"
	transphttp "github.com/snehjoshi/replayconsole/internal/transport/http"
	"github.com/snehjoshi/replayconsole/pkg/client"
)

// ─── test server helpers ──────────────────────────────────────────────────────

// newTestEnv spins up a real stack (bbolt archive + sessions + HTTP) backed by
// httptest.Server. All resources are cleaned up in t.Cleanup.
func newTestEnv(t *testing.T) *client.Client {
	t.Helper()

	cfg := config.Default()
	cfg.Node.DataDir = t.TempDir()
	cfg.RateLimit.Enabled = false

	archive, err := local.Open(cfg.Node.DataDir, local.Config{Fsync: local.FsyncNever})
	if err != nil {
		t.Fatalf("local.Open: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })

	reg := metrics.New()
	mgr, err := session.NewManager(archive,
		session.WithMetrics(reg),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithCompactOnClear(true),
	)
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}
	t.Cleanup(mgr.Close)

	srv := transphttp.New(mgr, "test-node", cfg, reg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return client.New(ts.URL)
}

// ctx is a convenience context for tests.
func ctx() context.Context { return context.Background() }

func logMsg(id, text string) client.Message {
	return client.Message{
		ID:          id,
		Type:        "log",
		Level:       "log",
		Source:      "console-api",
		MessageText: &client.MessageText{Text: text},
	}
}

func corsWarning(id, window string) client.Message {
	return client.Message{
		ID:            id,
		Type:          "log",
		Level:         "warn",
		Source:        "javascript",
		Category:      "CORS",
		InnerWindowID: window,
		MessageText:   &client.MessageText{Text: "Cross-Origin Request Blocked: " + id},
	}
}

// ─── Sessions ─────────────────────────────────────────────────────────────────

func TestSession_CreateListDelete(t *testing.T) {
	c := newTestEnv(t)

	s, err := c.CreateSession(ctx(), "checkout")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	list, err := c.ListSessions(ctx())
	if err != nil || len(list) != 1 || list[0].Label != "checkout" {
		t.Fatalf("ListSessions: %v %+v", err, list)
	}
	got, err := c.GetSession(ctx(), s.ID)
	if err != nil || !got.Filters.Log {
		t.Fatalf("GetSession: %v %+v", err, got)
	}
	if err := c.DeleteSession(ctx(), s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := c.GetSession(ctx(), s.ID); !client.IsNotFound(err) {
		t.Errorf("want not found, got %v", err)
	}
}

// ─── Console behaviour through the API ────────────────────────────────────────

func TestWarningGroup_RoundTrip(t *testing.T) {
	c := newTestEnv(t)
	s, _ := c.CreateSession(ctx(), "")

	// A single warning stands alone.
	v, err := c.AddMessages(ctx(), s.ID, corsWarning("1", "w1"))
	if err != nil {
		t.Fatalf("AddMessages: %v", err)
	}
	if diff := cmp.Diff([]string{"1"}, v.Visible); diff != "" {
		t.Errorf("single warning (-want +got):\n%s", diff)
	}

	// A second one of the same kind collapses both under a header.
	v, err = c.AddMessages(ctx(), s.ID, corsWarning("2", "w1"))
	if err != nil {
		t.Fatalf("AddMessages: %v", err)
	}
	if diff := cmp.Diff([]string{"corsWarningGroup-w1"}, v.Visible); diff != "" {
		t.Errorf("grouped warnings (-want +got):\n%s", diff)
	}

	v, err = c.OpenMessage(ctx(), s.ID, "corsWarningGroup-w1")
	if err != nil {
		t.Fatalf("OpenMessage: %v", err)
	}
	if diff := cmp.Diff([]string{"corsWarningGroup-w1", "1", "2"}, v.Visible); diff != "" {
		t.Errorf("opened group (-want +got):\n%s", diff)
	}

	d, err := c.GetMessage(ctx(), s.ID, "1")
	if err != nil || !d.InWarningGroup {
		t.Errorf("GetMessage: %v %+v", err, d)
	}
}

func TestFilters_RoundTrip(t *testing.T) {
	c := newTestEnv(t)
	s, _ := c.CreateSession(ctx(), "")
	if _, err := c.AddMessages(ctx(), s.ID, logMsg("1", "fetch failed"), logMsg("2", "render ok")); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	v, err := c.SetFilterText(ctx(), s.ID, "-fetch")
	if err != nil {
		t.Fatalf("SetFilterText: %v", err)
	}
	if diff := cmp.Diff([]string{"2"}, v.Visible); diff != "" {
		t.Errorf("exclusion (-want +got):\n%s", diff)
	}

	if _, err := c.ToggleFilter(ctx(), s.ID, "log"); err != nil {
		t.Fatalf("ToggleFilter: %v", err)
	}
	v, err = c.ResetDefaultFilters(ctx(), s.ID)
	if err != nil {
		t.Fatalf("ResetDefaultFilters: %v", err)
	}
	if !v.Filters.Log || v.Filters.Text != "-fetch" {
		t.Errorf("reset must restore levels and keep text: %+v", v.Filters)
	}

	counts, err := c.FilteredCount(ctx(), s.ID)
	if err != nil || counts["text"] != 1 {
		t.Errorf("FilteredCount: %v %v", err, counts)
	}

	msgs, err := c.VisibleMessages(ctx(), s.ID)
	if err != nil || len(msgs) != 1 || msgs[0].ID != "2" {
		t.Errorf("VisibleMessages: %v %+v", err, msgs)
	}

	if _, err := c.ToggleFilter(ctx(), s.ID, "bogus"); !client.IsBadRequest(err) {
		t.Errorf("want bad request, got %v", err)
	}
}

func TestEvaluations_RoundTrip(t *testing.T) {
	c := newTestEnv(t)
	s, _ := c.CreateSession(ctx(), "")

	cmd := logMsg("1", "1 + 1")
	cmd.Type = "command"
	res := logMsg("2", "2")
	res.Type = "result"
	if _, err := c.AddMessages(ctx(), s.ID, cmd, res, logMsg("3", "other")); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}

	v, err := c.ClearEvaluation(ctx(), s.ID, "1")
	if err != nil {
		t.Fatalf("ClearEvaluation: %v", err)
	}
	if diff := cmp.Diff([]string{"3"}, v.Visible); diff != "" {
		t.Errorf("after clear evaluation (-want +got):\n%s", diff)
	}

	v, err = c.Clear(ctx(), s.ID)
	if err != nil || len(v.Visible) != 0 {
		t.Errorf("Clear: %v %+v", err, v)
	}
}

func TestPayloadAndDispatch(t *testing.T) {
	c := newTestEnv(t)
	s, _ := c.CreateSession(ctx(), "")
	if _, err := c.AddMessages(ctx(), s.ID, logMsg("1", "obj")); err != nil {
		t.Fatalf("AddMessages: %v", err)
	}
	if _, err := c.UpdatePayload(ctx(), s.ID, "1", json.RawMessage(`{"props":3}`)); err != nil {
		t.Fatalf("UpdatePayload: %v", err)
	}
	d, err := c.GetMessage(ctx(), s.ID, "1")
	if err != nil || string(d.Payload) != `{"props":3}` {
		t.Errorf("payload: %v %s", err, d.Payload)
	}

	v, err := c.Dispatch(ctx(), s.ID, client.Action{Type: "NOT_A_CONSOLE_ACTION"})
	if err != nil || len(v.Visible) != 1 {
		t.Errorf("unknown action: %v %+v", err, v)
	}

	if _, err := c.SetPausedPoint(ctx(), s.ID, "42", 1.25); err != nil {
		t.Errorf("SetPausedPoint: %v", err)
	}
}

// ─── Error handling ───────────────────────────────────────────────────────────

func TestAPIError_IsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "session: not found"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := client.New(ts.URL)
	err := c.DeleteSession(ctx(), "phantom")

	var ae *client.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if ae.StatusCode != http.StatusNotFound || ae.Message != "session: not found" {
		t.Fatalf("unexpected APIError: %+v", ae)
	}
	if !client.IsNotFound(err) {
		t.Fatal("IsNotFound should return true")
	}
}

// ─── Client options tests ─────────────────────────────────────────────────────

func TestWithAPIKey_Passed(t *testing.T) {
	// Minimal server that requires X-Api-Key.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "mysecret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok", "node_id": "test", "sessions": 0, "uptime_ms": 0, "version": "1.0",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// Without key → 401
	c1 := client.New(ts.URL)
	if _, err := c1.Health(ctx()); err == nil {
		t.Fatal("expected auth error without API key")
	}

	// With key → success
	c2 := client.New(ts.URL, client.WithAPIKey("mysecret"))
	if _, err := c2.Health(ctx()); err != nil {
		t.Fatalf("Health with API key: %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	c := client.New("http://localhost:1", client.WithTimeout(50*time.Millisecond))
	if _, err := c.Health(ctx()); err == nil {
		t.Fatal("expected error on unreachable server")
	}
}
