package progress

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"go.uber.org/zap"
)

// Queue is the durable store of not-yet-acknowledged progress updates.
//
// The queue owns its storage exclusively and never surfaces storage faults
// to callers: a corrupted blob reads as empty, a failed write is logged and
// dropped. Losing one update is preferable to crashing the recording path.
// All operations are serialized behind a mutex since the agent is genuinely
// concurrent
type Queue struct {
	mu     sync.Mutex
	store  driver.KeyValueDB
	logger *zap.Logger

	nowFunc func() time.Time
}

// NewQueue create a Queue over the given store
func NewQueue(store driver.KeyValueDB, logger *zap.Logger) *Queue {
	return &Queue{
		store:   store,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SaveUpdate upsert an update by resource ID, last write wins.
// Progress is clamped to [0,100] and time spent to >= 0
func (q *Queue) SaveUpdate(u Update) {
	q.mu.Lock()
	defer q.mu.Unlock()

	u.ProgressPercent = clampPercent(u.ProgressPercent)
	u.TimeSpentSeconds = clampSeconds(u.TimeSpentSeconds)
	u.Timestamp = q.nowFunc().UTC().Format(time.RFC3339)
	u.Synced = false

	entries := q.loadLocked()
	replaced := false
	for i := range entries {
		if entries[i].ResourceID == u.ResourceID {
			entries[i] = u
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, u)
	}
	q.persistLocked(entries)
}

// ListUpdates return all pending updates in enumeration order
func (q *Queue) ListUpdates() []Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked()
}

// RemoveUpdate delete the update for one resource, a no-op when absent
func (q *Queue) RemoveUpdate(resourceID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.loadLocked()
	kept := entries[:0]
	for _, e := range entries {
		if e.ResourceID != resourceID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return
	}
	q.persistLocked(kept)
}

// ClearAll drop every pending update
func (q *Queue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Del(StorageKey); err != nil {
		q.logger.Error("failed to clear pending updates", zap.Error(err))
	}
}

// Len number of pending updates
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.loadLocked())
}

func (q *Queue) loadLocked() []Update {
	blob, err := q.store.Get(StorageKey)
	if err != nil {
		if err != driver.ErrKeyNotFound {
			q.logger.Error("failed to read pending updates", zap.Error(err))
		}
		return nil
	}
	var entries []Update
	if err := json.Unmarshal([]byte(blob), &entries); err != nil {
		q.logger.Warn("pending update blob is corrupted, treating as empty", zap.Error(err))
		return nil
	}
	return entries
}

func (q *Queue) persistLocked(entries []Update) {
	blob, err := json.Marshal(entries)
	if err != nil {
		q.logger.Error("failed to encode pending updates", zap.Error(err))
		return
	}
	if err := q.store.Set(StorageKey, string(blob)); err != nil {
		q.logger.Error("failed to persist pending updates", zap.Error(err))
	}
}
