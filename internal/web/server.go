package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/cjeanneret/SolGo/internal/logic/mode"
	"github.com/cjeanneret/SolGo/internal/logic/scheduler"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, ctrl *mode.Controller, sched *scheduler.Scheduler, hub *LogHub, logPath string) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:     addr,
		handlers: NewHandlers(ctrl, sched, hub, logPath, subFS),
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("POST /capture/start", s.handlers.HandleCaptureStart)
	mux.HandleFunc("POST /capture/stop", s.handlers.HandleCaptureStop)
	mux.HandleFunc("POST /mode/preview", s.handlers.HandleModePreview)
	mux.HandleFunc("POST /mode/capture", s.handlers.HandleModeCapture)
	mux.HandleFunc("GET /stream", s.handlers.HandleStream)
	mux.HandleFunc("GET /last_image", s.handlers.HandleLastImage)
	mux.HandleFunc("GET /last_capture_time", s.handlers.HandleLastCaptureTime)
	mux.HandleFunc("POST /focus/set", s.handlers.HandleFocusSet)
	mux.HandleFunc("POST /focus/auto", s.handlers.HandleFocusAuto)
	mux.HandleFunc("GET /logs/latest", s.handlers.HandleLogsLatest)
	mux.HandleFunc("GET /logs/recent", s.handlers.HandleLogsRecent)
	mux.HandleFunc("GET /logs/stream", s.handlers.HandleLogsStream)
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
