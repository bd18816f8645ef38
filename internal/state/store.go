// Package state persists the capture-enabled flag across restarts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
)

// persisted is the on-disk format: {"enabled": bool, "last_update": ISO8601}.
type persisted struct {
	Enabled    bool   `json:"enabled"`
	LastUpdate string `json:"last_update"`
}

// Store reads and rewrites the JSON state file. The camera mode is never
// persisted; only the enabled flag survives a restart.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Load returns the persisted enabled flag. A missing file means capture is
// enabled (first boot default).
func (s *Store) Load() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		debug.Verbose("No state file at %s, capture enabled by default", s.path)
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read state file: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return true, fmt.Errorf("parse state file: %w", err)
	}
	return p.Enabled, nil
}

// Save rewrites the state file with the given flag. The write goes through a
// temp file and rename so a crash never leaves a truncated state file.
func (s *Store) Save(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := persisted{
		Enabled:    enabled,
		LastUpdate: s.now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	debug.Verbose("State saved: enabled=%v", enabled)
	return nil
}
