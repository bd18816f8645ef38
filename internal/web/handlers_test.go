package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/SolGo/internal/hw/camera"
	"github.com/cjeanneret/SolGo/internal/logic/mode"
	"github.com/cjeanneret/SolGo/internal/logic/scheduler"
	"github.com/cjeanneret/SolGo/internal/logic/sun"
	"github.com/cjeanneret/SolGo/internal/state"
)

func newTestServer(t *testing.T) (*Server, *mode.Controller, *camera.Mock, *LogHub) {
	t.Helper()
	dir := t.TempDir()
	cam := camera.NewMock()
	ctrl, err := mode.NewController(cam, state.NewStore(filepath.Join(dir, "state.json")), dir)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	loc := sun.Location{Latitude: 48.8566, Longitude: 2.3522, Timezone: time.UTC}
	sched := scheduler.New(ctrl, nil, loc, 1, 1, 5*time.Minute)
	hub := NewLogHub(100)

	srv := &Server{
		addr: ":0",
		handlers: NewHandlers(ctrl, sched, hub, filepath.Join(dir, "solgo.log"), fstest.MapFS{
			"index.html": &fstest.MapFile{Data: []byte("<html>solgo</html>")},
		}),
	}
	return srv, ctrl, cam, hub
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("%s %s: bad JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, parsed
}

func TestServeIndex(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Mux(), "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "solgo") {
		t.Error("index body not served")
	}
}

func TestHandleStatus(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)
	if _, err := ctrl.CaptureOnce(); err != nil {
		t.Fatal(err)
	}

	rec, body := doJSON(t, srv.Mux(), "GET", "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", rec.Code)
	}
	if body["enabled"] != true {
		t.Errorf("enabled = %v", body["enabled"])
	}
	if body["mode"] != "scheduled" {
		t.Errorf("mode = %v", body["mode"])
	}
	if body["last_capture_time"] == nil {
		t.Error("last_capture_time missing after a capture")
	}
	if body["status_message"] == nil {
		t.Error("status_message missing")
	}
}

func TestCaptureStartStop(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)
	mux := srv.Mux()

	rec, _ := doJSON(t, mux, "POST", "/capture/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /capture/stop = %d", rec.Code)
	}
	if ctrl.Snapshot().Enabled {
		t.Error("capture should be disabled")
	}

	rec, _ = doJSON(t, mux, "POST", "/capture/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /capture/start = %d", rec.Code)
	}
	if !ctrl.Snapshot().Enabled {
		t.Error("capture should be enabled")
	}
}

func TestModeRoutes(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)
	mux := srv.Mux()

	// Exit before enter: conflict.
	rec, _ := doJSON(t, mux, "POST", "/mode/capture", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("POST /mode/capture before preview = %d, want 409", rec.Code)
	}

	rec, _ = doJSON(t, mux, "POST", "/mode/preview", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /mode/preview = %d", rec.Code)
	}
	if got := ctrl.Snapshot().Mode; got != mode.Preview {
		t.Errorf("mode = %v, want Preview", got)
	}

	rec, _ = doJSON(t, mux, "POST", "/mode/capture", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /mode/capture = %d", rec.Code)
	}
	if got := ctrl.Snapshot().Mode; got != mode.Scheduled {
		t.Errorf("mode = %v, want Scheduled", got)
	}
}

func TestLastImage(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)
	mux := srv.Mux()

	rec, _ := doJSON(t, mux, "GET", "/last_image", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /last_image before capture = %d, want 404", rec.Code)
	}

	if _, err := ctrl.CaptureOnce(); err != nil {
		t.Fatal(err)
	}
	rec, _ = doJSON(t, mux, "GET", "/last_image", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /last_image after capture = %d", rec.Code)
	}
}

func TestLastCaptureTime(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)
	mux := srv.Mux()

	rec, _ := doJSON(t, mux, "GET", "/last_capture_time", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("before capture = %d, want 404", rec.Code)
	}

	if _, err := ctrl.CaptureOnce(); err != nil {
		t.Fatal(err)
	}
	rec, body := doJSON(t, mux, "GET", "/last_capture_time", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("after capture = %d", rec.Code)
	}
	raw, _ := body["last_capture_time"].(string)
	if _, err := time.Parse(time.RFC3339, raw); err != nil {
		t.Errorf("last_capture_time %q not RFC3339: %v", raw, err)
	}
}

func TestFocusSet(t *testing.T) {
	srv, _, cam, _ := newTestServer(t)
	mux := srv.Mux()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"valid", `{"value": 42}`, http.StatusOK},
		{"zero", `{"value": 0}`, http.StatusOK},
		{"max", `{"value": 100}`, http.StatusOK},
		{"negative", `{"value": -1}`, http.StatusBadRequest},
		{"too_large", `{"value": 101}`, http.StatusBadRequest},
		{"garbage", `{nope`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doJSON(t, mux, "POST", "/focus/set", tc.body)
			if rec.Code != tc.code {
				t.Errorf("code = %d, want %d", rec.Code, tc.code)
			}
		})
	}

	if got := cam.Focus(); got != 100 {
		t.Errorf("final focus = %g, want 100", got)
	}

	rec, _ := doJSON(t, mux, "POST", "/focus/auto", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /focus/auto = %d", rec.Code)
	}
	if got := cam.Focus(); got != -1 {
		t.Errorf("focus after auto = %g, want -1", got)
	}
}

func TestLogsRecent(t *testing.T) {
	srv, _, _, hub := newTestServer(t)
	mux := srv.Mux()

	for _, line := range []string{"one", "two", "three"} {
		hub.Append(line)
	}

	rec, _ := doJSON(t, mux, "GET", "/logs/recent?lines=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /logs/recent = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "two\nthree\n" {
		t.Errorf("body = %q, want last two lines", got)
	}

	rec, _ = doJSON(t, mux, "GET", "/logs/recent?lines=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad lines param = %d, want 400", rec.Code)
	}
}

func TestLogsLatest_NoFile(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Mux(), "GET", "/logs/latest", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /logs/latest without file = %d, want 404", rec.Code)
	}
}

func TestStream_RefcountsPreview(t *testing.T) {
	srv, ctrl, _, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %s", ct)
	}

	// The first boundary proves a preview frame was delivered, which in
	// turn proves the handler switched the controller into preview mode.
	br := bufio.NewReader(resp.Body)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !strings.HasPrefix(line, "--frame") {
		t.Errorf("first line = %q, want frame boundary", line)
	}
	if got := ctrl.Snapshot().Mode; got != mode.Preview {
		t.Errorf("mode during stream = %v, want Preview", got)
	}

	// Wait for the client context to expire and the handler to unwind.
	<-ctx.Done()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Snapshot().Mode == mode.Scheduled {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("mode after stream = %v, want Scheduled", ctrl.Snapshot().Mode)
}
