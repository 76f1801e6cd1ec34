package submission

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"github.com/studylane/sync-agent/internal/infrastructure/uuid"
	"go.uber.org/zap"
)

// AttemptStatus lifecycle state of a tracked attempt
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptFailed     AttemptStatus = "failed"
)

// ErrNoCurrentAttempt no attempt is in progress for the assignment
var ErrNoCurrentAttempt = errors.New("no attempt in progress")

// FileRef points at an attachment staged for upload
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Attempt is one tracked submission attempt for an assignment
type Attempt struct {
	ID        string                 `json:"id"`
	StartTime int64                  `json:"start_time"` // epoch milliseconds
	EndTime   int64                  `json:"end_time,omitempty"`
	Answers   map[string]interface{} `json:"answers"`
	Files     []FileRef              `json:"files"`
	Status    AttemptStatus          `json:"status"`
}

// Tracker keeps the append-only attempt history of one assignment,
// persisted under submission-tracking-{assignmentID}.
// At most one attempt is in progress at a time
type Tracker struct {
	mu           sync.Mutex
	assignmentID string
	store        driver.KeyValueDB
	idgen        uuid.Generator
	logger       *zap.Logger

	nowFunc func() time.Time
}

// NewTracker create a Tracker for one assignment
func NewTracker(assignmentID string, store driver.KeyValueDB, idgen uuid.Generator, logger *zap.Logger) *Tracker {
	return &Tracker{
		assignmentID: assignmentID,
		store:        store,
		idgen:        idgen,
		logger:       logger,
		nowFunc:      time.Now,
	}
}

// Start open a new attempt. A still-open prior attempt is closed as
// failed (abandoned) first
func (t *Tracker) Start() (*Attempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.loadLocked()
	if current := currentOf(attempts); current != nil {
		current.Status = AttemptFailed
		current.EndTime = t.epochMillis()
		t.logger.Info("abandoning unfinished attempt",
			zap.String("assignment.id", t.assignmentID),
			zap.String("attempt.id", current.ID),
		)
	}

	id, err := t.idgen.Generate()
	if err != nil {
		return nil, err
	}
	attempt := Attempt{
		ID:        id,
		StartTime: t.epochMillis(),
		Answers:   make(map[string]interface{}),
		Status:    AttemptInProgress,
	}
	attempts = append(attempts, attempt)
	t.persistLocked(attempts)
	return &attempt, nil
}

// RecordAnswer set the answer of one question on the current attempt
func (t *Tracker) RecordAnswer(questionID string, answer interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.loadLocked()
	current := currentOf(attempts)
	if current == nil {
		return ErrNoCurrentAttempt
	}
	current.Answers[questionID] = answer
	t.persistLocked(attempts)
	return nil
}

// AttachFile stage a file on the current attempt
func (t *Tracker) AttachFile(f FileRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.loadLocked()
	current := currentOf(attempts)
	if current == nil {
		return ErrNoCurrentAttempt
	}
	current.Files = append(current.Files, f)
	t.persistLocked(attempts)
	return nil
}

// Finish close the current attempt with the given terminal status
func (t *Tracker) Finish(status AttemptStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.loadLocked()
	current := currentOf(attempts)
	if current == nil {
		return ErrNoCurrentAttempt
	}
	current.Status = status
	current.EndTime = t.epochMillis()
	t.persistLocked(attempts)
	return nil
}

// Current the attempt in progress, nil when none is open
func (t *Tracker) Current() *Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := currentOf(t.loadLocked())
	if current == nil {
		return nil
	}
	clone := *current
	return &clone
}

// History every recorded attempt, oldest first
func (t *Tracker) History() []Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

func (t *Tracker) storageKey() string {
	return "submission-tracking-" + t.assignmentID
}

func (t *Tracker) epochMillis() int64 {
	return t.nowFunc().UnixNano() / int64(time.Millisecond)
}

func (t *Tracker) loadLocked() []Attempt {
	blob, err := t.store.Get(t.storageKey())
	if err != nil {
		if err != driver.ErrKeyNotFound {
			t.logger.Error("failed to read attempt history", zap.Error(err))
		}
		return nil
	}
	var attempts []Attempt
	if err := json.Unmarshal([]byte(blob), &attempts); err != nil {
		t.logger.Warn("attempt history blob is corrupted, treating as empty", zap.Error(err))
		return nil
	}
	return attempts
}

func (t *Tracker) persistLocked(attempts []Attempt) {
	blob, err := json.Marshal(attempts)
	if err != nil {
		t.logger.Error("failed to encode attempt history", zap.Error(err))
		return
	}
	if err := t.store.Set(t.storageKey(), string(blob)); err != nil {
		t.logger.Error("failed to persist attempt history", zap.Error(err))
	}
}

func currentOf(attempts []Attempt) *Attempt {
	for i := range attempts {
		if attempts[i].Status == AttemptInProgress {
			return &attempts[i]
		}
	}
	return nil
}

// Registry hands out one Tracker per assignment
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker

	store  driver.KeyValueDB
	idgen  uuid.Generator
	logger *zap.Logger
}

// NewRegistry create a Registry instance
func NewRegistry(store driver.KeyValueDB, idgen uuid.Generator, logger *zap.Logger) *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
		store:    store,
		idgen:    idgen,
		logger:   logger,
	}
}

// For the tracker of one assignment, created on first use
func (r *Registry) For(assignmentID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[assignmentID]; ok {
		return t
	}
	t := NewTracker(assignmentID, r.store, r.idgen, r.logger)
	r.trackers[assignmentID] = t
	return t
}
