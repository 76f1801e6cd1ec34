package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/studylane/sync-agent/internal/notify"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ErrOffline manual sync was requested without connectivity
var ErrOffline = errors.New("cannot sync while offline")

// ProgressAPI is the slice of the platform client the syncer drains against
type ProgressAPI interface {
	UpdateProgress(ctx context.Context, resourceID string, percent float64, timeSpent int) error
}

// ConnectivitySource reports whether the platform is currently reachable
type ConnectivitySource interface {
	Online() bool
}

// Report aggregate outcome of one sync pass
type Report struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// Syncer drains the durable queue against the platform when connectivity
// is available.
//
// At most one pass runs at a time, entries are delivered sequentially and
// one rejected entry never aborts the batch. An update saved while a pass
// is in flight is only picked up by the next pass
type Syncer struct {
	mu      sync.Mutex
	syncing bool
	timer   *time.Timer
	closed  bool

	queue    *Queue
	api      ProgressAPI
	source   ConnectivitySource
	notifier notify.Notifier
	debounce time.Duration
	logger   *zap.Logger
}

// NewSyncer create a Syncer instance
func NewSyncer(
	queue *Queue,
	api ProgressAPI,
	source ConnectivitySource,
	notifier notify.Notifier,
	debounce time.Duration,
	logger *zap.Logger,
) *Syncer {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Syncer{
		queue:    queue,
		api:      api,
		source:   source,
		notifier: notifier,
		debounce: debounce,
		logger:   logger,
	}
}

// SyncPending drain the queue once. No-op when offline, when a pass is
// already in flight, or when the queue is empty
func (s *Syncer) SyncPending(ctx context.Context) Report {
	apmSpan, ctx := apm.StartSpan(ctx, "Syncer.SyncPending", "service")
	defer apmSpan.End()

	s.mu.Lock()
	if s.syncing || s.closed || !s.source.Online() {
		s.mu.Unlock()
		return Report{}
	}
	entries := s.queue.ListUpdates()
	if len(entries) == 0 {
		s.mu.Unlock()
		return Report{}
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	report := Report{Attempted: len(entries)}
	for _, entry := range entries {
		err := s.api.UpdateProgress(ctx, entry.ResourceID, entry.ProgressPercent, entry.TimeSpentSeconds)
		if err != nil {
			report.Failed++
			s.logger.Warn("failed to sync pending update",
				zap.String("resource.id", entry.ResourceID),
				zap.Error(err),
			)
			continue
		}
		s.queue.RemoveUpdate(entry.ResourceID)
		report.Synced++
	}

	s.logger.Info("sync pass finished",
		zap.Int("sync.attempted", report.Attempted),
		zap.Int("sync.synced", report.Synced),
		zap.Int("sync.failed", report.Failed),
	)
	s.notifyResult(report)
	return report
}

// SyncNow manual drain, rejected while offline
func (s *Syncer) SyncNow(ctx context.Context) (Report, error) {
	if !s.source.Online() {
		return Report{}, ErrOffline
	}
	return s.SyncPending(ctx), nil
}

// OnOnline implement netmon.StatusListener.
// Schedules a debounced drain so rapid connectivity flapping never
// launches overlapping passes
func (s *Syncer) OnOnline() {
	if s.queue.Len() == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.SyncPending(context.Background())
	})
	s.mu.Unlock()
}

// OnOffline implement netmon.StatusListener, cancelling a pending drain
func (s *Syncer) OnOffline() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

// Close cancel pending timers and refuse further passes
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}

func (s *Syncer) notifyResult(report Report) {
	if s.notifier == nil || report.Attempted == 0 {
		return
	}
	if report.Failed == 0 {
		s.notifier.Notify(notify.NewEvent(notify.TypeSyncResult,
			"Progress synced",
			fmt.Sprintf("%d pending update(s) delivered", report.Synced),
		))
		return
	}
	s.notifier.Notify(notify.NewEvent(notify.TypeSyncResult,
		"Some updates failed to sync",
		fmt.Sprintf("%d of %d pending update(s) delivered, the rest stay queued", report.Synced, report.Attempted),
	))
}
