package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBeforeAnyUpdate(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.Snapshot())
}

func TestUpdateOverwritesPreviousSnapshot(t *testing.T) {
	store := NewStore()
	store.Update("task-1", "cloning", map[string]any{"repo": "a"})
	store.Update("task-1", "coding", map[string]any{"plan": "b"})

	snapshot := store.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "coding", snapshot.Status)
	assert.Equal(t, "b", snapshot.Data["plan"])
	assert.NotContains(t, snapshot.Data, "repo", "only the latest snapshot survives")
}

func TestIsRunningDerivation(t *testing.T) {
	store := NewStore()
	for _, status := range []string{"started", "cloning", "analyzing", "coding", "testing", "committing"} {
		snapshot := store.Update("task-1", status, nil)
		assert.True(t, snapshot.IsRunning, "status %q should be running", status)
	}
	for _, status := range []string{"completed", "failed"} {
		snapshot := store.Update("task-1", status, nil)
		assert.False(t, snapshot.IsRunning, "status %q should not be running", status)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Update("task-1", "coding", map[string]any{"k": "v"})

	first := store.Snapshot()
	first.Data["k"] = "mutated"

	second := store.Snapshot()
	assert.Equal(t, "v", second.Data["k"], "mutating a snapshot must not affect the store")
}

func TestUpdatedAtMonotonic(t *testing.T) {
	store := NewStore()
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		current = current.Add(time.Millisecond)
		return current
	}

	a := store.Update("task-1", "cloning", nil)
	b := store.Update("task-1", "coding", nil)
	ta, err := time.Parse(time.RFC3339Nano, a.UpdatedAt)
	require.NoError(t, err)
	tb, err := time.Parse(time.RFC3339Nano, b.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, tb.Before(ta))
}

func TestClear(t *testing.T) {
	store := NewStore()
	store.Update("task-1", "coding", nil)
	store.Clear()
	assert.Nil(t, store.Snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Update("task-1", "coding", map[string]any{"j": j})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if s := store.Snapshot(); s != nil {
					_ = s.Data["j"]
				}
			}
		}()
	}
	wg.Wait()
}
