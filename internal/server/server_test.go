package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/config"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/ledger"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/testutil/testlog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)
	for _, path := range []string{"/health", "/ready"} {
		rr, body := do(t, s, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if body["service"] != "canvas-sketchpad" {
			t.Fatalf("%s unexpected body: %#v", path, body)
		}
	}
	rr, _ := do(t, s, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "sketchpad_http_requests_total") {
		t.Fatalf("metrics endpoint missing sketchpad series: status=%d", rr.Code)
	}
}

func TestPullAPILifecycle(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	rr, body := do(t, s, http.MethodPost, "/api/commands", map[string]string{"commands": "clear()\nfr(10,10,20,20)"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	result := body["result"].(map[string]any)
	id := result["commandId"].(string)
	if result["status"] != "queued" {
		t.Fatalf("expected queued, got %v", result["status"])
	}

	rr, body = do(t, s, http.MethodGet, "/api/commands/pending", nil)
	pending := body["commands"].([]any)
	if rr.Code != http.StatusOK || len(pending) != 1 || pending[0].(map[string]any)["id"] != id {
		t.Fatalf("unexpected pending: %s", rr.Body.String())
	}

	_, body = do(t, s, http.MethodPost, "/api/commands/"+id+"/consume", nil)
	if body["success"] != true {
		t.Fatalf("first consume failed: %#v", body)
	}
	_, body = do(t, s, http.MethodPost, "/api/commands/"+id+"/consume", nil)
	if body["success"] != false {
		t.Fatalf("second consume must be stale: %#v", body)
	}

	rr, body = do(t, s, http.MethodGet, "/api/commands/"+id, nil)
	if rr.Code != http.StatusOK || body["state"] != string(ledger.StateExecuted) {
		t.Fatalf("unexpected command: %s", rr.Body.String())
	}

	_, body = do(t, s, http.MethodGet, "/api/status", nil)
	commands := body["commands"].(map[string]any)
	if commands["executed"] != float64(1) || body["mode"] != "ack" {
		t.Fatalf("unexpected status: %#v", body)
	}
}

func TestPullAPIErrors(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)

	rr, body := do(t, s, http.MethodPost, "/api/commands", map[string]string{"commands": "draw a box"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if errs, ok := body["errors"].([]any); !ok || len(errs) != 1 {
		t.Fatalf("validator errors missing: %#v", body)
	}

	rr, _ = do(t, s, http.MethodGet, "/api/commands/cmd.missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	_, body = do(t, s, http.MethodPost, "/api/commands", map[string]string{"commands": "clear()"})
	id := body["result"].(map[string]any)["commandId"].(string)
	rr, _ = do(t, s, http.MethodPost, "/api/commands/"+id+"/status", map[string]string{"status": "done"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	rr, body = do(t, s, http.MethodPost, "/api/commands/"+id+"/status", map[string]string{"status": "error", "error": "bad arity"})
	if rr.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("status report failed: %s", rr.Body.String())
	}
	cmd, _ := s.Service().Command(id)
	if cmd.State != ledger.StateError || cmd.ErrorDetail != "bad arity" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestWebsocketRouteDeliversSubmissions(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+WebsocketPath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Service().Status().Clients != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	res, err := s.Service().Submit(context.Background(), "clear()", "")
	if err != nil || res.Delivered != 1 {
		t.Fatalf("submit res=%+v err=%v", res, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := wire.DecodeOutbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd, ok := msg.(wire.CanvasCommand); !ok || cmd.ID != res.CommandID {
		t.Fatalf("unexpected push: %#v", msg)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.DeliveryMode = "eager"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected config error")
	}
}
