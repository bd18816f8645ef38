package web

import (
	"strings"
	"sync"
)

// LogHub keeps the most recent log lines in a ring buffer and distributes
// new lines to SSE clients. The debug logger is teed into it via Writer, so
// the web interface shows exactly what goes to the log file.
type LogHub struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	ring    []string
	next    int
	full    bool
}

// NewLogHub creates a hub retaining up to capacity lines.
func NewLogHub(capacity int) *LogHub {
	if capacity <= 0 {
		capacity = 200
	}
	return &LogHub{
		clients: make(map[chan string]struct{}),
		ring:    make([]string, capacity),
	}
}

// Subscribe returns a channel receiving new log lines and a cleanup
// function. The caller must call the cleanup on client disconnect.
func (h *LogHub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Append stores a line and broadcasts it. Slow clients may miss lines
// (non-blocking, buffered).
func (h *LogHub) Append(line string) {
	h.mu.Lock()
	h.ring[h.next] = line
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}
	for ch := range h.clients {
		select {
		case ch <- line:
		default:
			// channel full, skip
		}
	}
	h.mu.Unlock()
}

// Recent returns up to n of the most recent lines, oldest first.
func (h *LogHub) Recent(n int) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.ring)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]string, 0, n)
	start := h.next - n
	if start < 0 {
		start += len(h.ring)
	}
	for i := 0; i < n; i++ {
		out = append(out, h.ring[(start+i)%len(h.ring)])
	}
	return out
}

// Writer adapts the hub as io.Writer for the debug logger: each write is
// split into lines and appended.
func (h *LogHub) Writer() *hubWriter {
	return &hubWriter{hub: h}
}

type hubWriter struct {
	hub *LogHub
}

func (w *hubWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			w.hub.Append(line)
		}
	}
	return len(p), nil
}
