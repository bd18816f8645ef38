package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/logic/mode"
	"github.com/cjeanneret/SolGo/internal/logic/scheduler"
)

// streamFrameDelay paces the MJPEG stream at roughly 10 fps.
const streamFrameDelay = 100 * time.Millisecond

// StatusResponse is the GET /status JSON document.
type StatusResponse struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode"`
	LastCaptureTime string `json:"last_capture_time,omitempty"`
	LastCapturePath string `json:"last_capture_path,omitempty"`
	WindowStart     string `json:"window_start,omitempty"`
	WindowEnd       string `json:"window_end,omitempty"`
	StatusMessage   string `json:"status_message"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	ctrl     *mode.Controller
	sched    *scheduler.Scheduler
	hub      *LogHub
	logPath  string
	staticFS fs.FS

	previewMu   sync.Mutex
	previewRefs int
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(ctrl *mode.Controller, sched *scheduler.Scheduler, hub *LogHub, logPath string, staticFS fs.FS) *Handlers {
	return &Handlers{
		ctrl:     ctrl,
		sched:    sched,
		hub:      hub,
		logPath:  logPath,
		staticFS: staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Snapshot()
	resp := StatusResponse{
		Enabled:       st.Enabled,
		Mode:          st.Mode.String(),
		StatusMessage: h.sched.StatusMessage(),
	}
	if !st.LastCaptureTime.IsZero() {
		resp.LastCaptureTime = st.LastCaptureTime.Format(time.RFC3339)
		resp.LastCapturePath = st.LastCapturePath
	}
	if win := h.sched.Window(); !win.IsZero() {
		resp.WindowStart = win.Start.Format(time.RFC3339)
		resp.WindowEnd = win.End.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCaptureStart handles POST /capture/start.
func (h *Handlers) HandleCaptureStart(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.EnableCapture(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// HandleCaptureStop handles POST /capture/stop.
func (h *Handlers) HandleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DisableCapture(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// HandleModePreview handles POST /mode/preview.
func (h *Handlers) HandleModePreview(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.EnterPreview(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": "preview"})
}

// HandleModeCapture handles POST /mode/capture.
func (h *Handlers) HandleModeCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ExitPreview(); err != nil {
		if errors.Is(err, mode.ErrNotPreview) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": "scheduled"})
}

// acquirePreview enters preview mode for the first stream client and counts
// references for the rest.
func (h *Handlers) acquirePreview() error {
	h.previewMu.Lock()
	defer h.previewMu.Unlock()
	if h.previewRefs == 0 {
		if err := h.ctrl.EnterPreview(); err != nil {
			return err
		}
	}
	h.previewRefs++
	return nil
}

// releasePreview exits preview mode when the last stream client leaves.
func (h *Handlers) releasePreview() {
	h.previewMu.Lock()
	defer h.previewMu.Unlock()
	h.previewRefs--
	if h.previewRefs == 0 {
		if err := h.ctrl.ExitPreview(); err != nil && !errors.Is(err, mode.ErrNotPreview) {
			debug.Error(fmt.Errorf("exiting preview after last stream client: %w", err))
		}
	}
}

// HandleStream handles GET /stream: a multipart MJPEG stream of the live
// preview. Entering/exiting preview mode is refcounted across clients.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if err := h.acquirePreview(); err != nil {
		http.Error(w, "preview unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.releasePreview()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	debug.Verbose("MJPEG stream client connected")
	defer debug.Verbose("MJPEG stream client disconnected")

	for {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(streamFrameDelay):
		}

		frame, err := h.ctrl.PreviewFrame()
		if err != nil {
			// Camera may still be warming up; keep the connection open.
			continue
		}
		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
		if _, err := w.Write(frame); err != nil {
			return
		}
		fmt.Fprint(w, "\r\n")
		flusher.Flush()
	}
}

// HandleLastImage handles GET /last_image.
func (h *Handlers) HandleLastImage(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Snapshot()
	if st.LastCapturePath == "" {
		http.Error(w, "no capture yet", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, st.LastCapturePath)
}

// HandleLastCaptureTime handles GET /last_capture_time.
func (h *Handlers) HandleLastCaptureTime(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Snapshot()
	if st.LastCaptureTime.IsZero() {
		http.Error(w, "no capture yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"last_capture_time": st.LastCaptureTime.Format(time.RFC3339),
	})
}

// HandleFocusSet handles POST /focus/set with body {"value": 0-100}.
func (h *Handlers) HandleFocusSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Value < 0 || req.Value > 100 {
		http.Error(w, "value must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if err := h.ctrl.SetFocus(req.Value); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"value": req.Value})
}

// HandleFocusAuto handles POST /focus/auto.
func (h *Handlers) HandleFocusAuto(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.AutoFocus(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"focus": "auto"})
}

// HandleLogsLatest handles GET /logs/latest: the full current log file.
func (h *Handlers) HandleLogsLatest(w http.ResponseWriter, r *http.Request) {
	if h.logPath == "" {
		http.Error(w, "no log file configured", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(h.logPath); err != nil {
		http.Error(w, "log file not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, h.logPath)
}

// HandleLogsRecent handles GET /logs/recent?lines=N from the in-memory ring.
func (h *Handlers) HandleLogsRecent(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	lines := h.hub.Recent(n)
	if len(lines) > 0 {
		fmt.Fprint(w, strings.Join(lines, "\n")+"\n")
	}
}

// HandleLogsStream handles GET /logs/stream for SSE live log tailing.
func (h *Handlers) HandleLogsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.hub.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + line + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
