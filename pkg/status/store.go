// Package status tracks the most recent task state in memory and exposes it
// over a minimal HTTP endpoint.
package status

import (
	"maps"
	"sync"
	"time"
)

// Snapshot is the latest known task state. Only the most recent snapshot is
// retained; every update overwrites the previous one.
type Snapshot struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data"`
	UpdatedAt string         `json:"updated_at"`
	IsRunning bool           `json:"is_running"`
}

// Store is a concurrency-safe single-slot status cache.
type Store struct {
	mu      sync.Mutex
	current *Snapshot
	now     func() time.Time
}

// NewStore creates an empty status store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Update overwrites the stored snapshot and returns the new value.
func (s *Store) Update(taskID, status string, data map[string]any) Snapshot {
	snapshot := Snapshot{
		TaskID:    taskID,
		Status:    status,
		Data:      copyData(data),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
		IsRunning: isRunning(status),
	}
	s.mu.Lock()
	s.current = &snapshot
	s.mu.Unlock()
	return snapshot
}

// Snapshot returns a copy of the most recent status, or nil if nothing has
// ever been recorded.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	out.Data = copyData(s.current.Data)
	return &out
}

// Clear resets the stored status information.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func isRunning(status string) bool {
	return status != "completed" && status != "failed"
}

func copyData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	maps.Copy(out, data)
	return out
}
