package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"go.uber.org/zap"
)

func newTestQueue() (*Queue, *driver.MemoryStore) {
	store := driver.NewMemoryStore()
	return NewQueue(store, zap.NewNop()), store
}

func TestQueueKeepsLatestUpdatePerResource(t *testing.T) {
	q, _ := newTestQueue()

	q.SaveUpdate(Update{ResourceID: "mat-1", ProgressPercent: 10, TimeSpentSeconds: 30})
	q.SaveUpdate(Update{ResourceID: "mat-1", ProgressPercent: 55, TimeSpentSeconds: 90})
	q.SaveUpdate(Update{ResourceID: "mat-1", ProgressPercent: 80, TimeSpentSeconds: 120})

	updates := q.ListUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "mat-1", updates[0].ResourceID)
	assert.Equal(t, float64(80), updates[0].ProgressPercent)
	assert.Equal(t, 120, updates[0].TimeSpentSeconds)
}

func TestQueueClampsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name         string
		progress     float64
		timeSpent    int
		wantProgress float64
		wantSeconds  int
	}{
		{name: "progress above range", progress: 150, timeSpent: 10, wantProgress: 100, wantSeconds: 10},
		{name: "progress below range", progress: -5, timeSpent: 10, wantProgress: 0, wantSeconds: 10},
		{name: "negative time spent", progress: 40, timeSpent: -10, wantProgress: 40, wantSeconds: 0},
		{name: "in range untouched", progress: 42, timeSpent: 7, wantProgress: 42, wantSeconds: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue()
			q.SaveUpdate(Update{ResourceID: "mat-42", ProgressPercent: tt.progress, TimeSpentSeconds: tt.timeSpent})

			updates := q.ListUpdates()
			require.Len(t, updates, 1)
			assert.Equal(t, tt.wantProgress, updates[0].ProgressPercent)
			assert.Equal(t, tt.wantSeconds, updates[0].TimeSpentSeconds)
		})
	}
}

func TestQueueTreatsCorruptedBlobAsEmpty(t *testing.T) {
	q, store := newTestQueue()
	require.NoError(t, store.Set(StorageKey, "{definitely not json"))

	assert.Empty(t, q.ListUpdates())

	// the queue must stay usable after discarding the corrupted blob
	q.SaveUpdate(Update{ResourceID: "mat-1", ProgressPercent: 50})
	assert.Equal(t, 1, q.Len())
}

func TestQueueReloadsFromStorage(t *testing.T) {
	q1, store := newTestQueue()
	q1.SaveUpdate(Update{ResourceID: "mat-9", ProgressPercent: 66, TimeSpentSeconds: 12})

	// a fresh queue over the same store simulates an agent restart
	q2 := NewQueue(store, zap.NewNop())
	updates := q2.ListUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "mat-9", updates[0].ResourceID)
	assert.Equal(t, float64(66), updates[0].ProgressPercent)
	assert.NotEmpty(t, updates[0].Timestamp)
}

func TestQueueRemoveUpdate(t *testing.T) {
	q, _ := newTestQueue()
	q.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})
	q.SaveUpdate(Update{ResourceID: "b", ProgressPercent: 20})

	q.RemoveUpdate("a")

	updates := q.ListUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "b", updates[0].ResourceID)

	// removing an absent resource is a no-op
	q.RemoveUpdate("ghost")
	assert.Equal(t, 1, q.Len())
}

func TestQueueClearAll(t *testing.T) {
	q, store := newTestQueue()
	q.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})
	q.SaveUpdate(Update{ResourceID: "b", ProgressPercent: 20})

	q.ClearAll()

	assert.Zero(t, q.Len())
	_, err := store.Get(StorageKey)
	assert.Equal(t, driver.ErrKeyNotFound, err)
}
