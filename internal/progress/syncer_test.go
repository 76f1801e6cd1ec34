package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"github.com/studylane/sync-agent/internal/notify"
	"go.uber.org/zap"
)

type fakeProgressAPI struct {
	mu      sync.Mutex
	calls   []string
	reject  map[string]bool
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeProgressAPI) UpdateProgress(ctx context.Context, resourceID string, percent float64, timeSpent int) error {
	f.mu.Lock()
	f.calls = append(f.calls, resourceID)
	f.mu.Unlock()
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.reject[resourceID] {
		return errors.New("rejected by server")
	}
	return nil
}

func (f *fakeProgressAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSource struct {
	mu     sync.Mutex
	online bool
}

func (f *fakeSource) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (cn *captureNotifier) Notify(ev notify.Event) {
	cn.mu.Lock()
	cn.events = append(cn.events, ev)
	cn.mu.Unlock()
}

func (cn *captureNotifier) all() []notify.Event {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	out := make([]notify.Event, len(cn.events))
	copy(out, cn.events)
	return out
}

func newTestSyncer(api *fakeProgressAPI, online bool) (*Syncer, *Queue, *captureNotifier) {
	queue := NewQueue(driver.NewMemoryStore(), zap.NewNop())
	notifier := &captureNotifier{}
	syncer := NewSyncer(queue, api, &fakeSource{online: online}, notifier, 10*time.Millisecond, zap.NewNop())
	return syncer, queue, notifier
}

func TestSyncIsolatesPerItemFailures(t *testing.T) {
	api := &fakeProgressAPI{reject: map[string]bool{"b": true}}
	syncer, queue, notifier := newTestSyncer(api, true)
	queue.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})
	queue.SaveUpdate(Update{ResourceID: "b", ProgressPercent: 20})

	report := syncer.SyncPending(context.Background())

	assert.Equal(t, Report{Attempted: 2, Synced: 1, Failed: 1}, report)
	updates := queue.ListUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "b", updates[0].ResourceID)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TypeSyncResult, events[0].Type)
}

func TestSyncNoopWhenOffline(t *testing.T) {
	api := &fakeProgressAPI{}
	syncer, queue, _ := newTestSyncer(api, false)
	queue.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})

	report := syncer.SyncPending(context.Background())

	assert.Zero(t, report.Attempted)
	assert.Zero(t, api.callCount())

	_, err := syncer.SyncNow(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
}

func TestSyncNoopWhenQueueEmpty(t *testing.T) {
	api := &fakeProgressAPI{}
	syncer, _, notifier := newTestSyncer(api, true)

	report := syncer.SyncPending(context.Background())

	assert.Zero(t, report.Attempted)
	assert.Zero(t, api.callCount())
	assert.Empty(t, notifier.all())
}

func TestSyncSingleFlight(t *testing.T) {
	api := &fakeProgressAPI{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer, queue, _ := newTestSyncer(api, true)
	queue.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})

	done := make(chan Report, 1)
	go func() {
		done <- syncer.SyncPending(context.Background())
	}()
	<-api.started

	// a concurrent call while a pass is in flight returns at once
	report := syncer.SyncPending(context.Background())
	assert.Zero(t, report.Attempted)

	close(api.release)
	first := <-done
	assert.Equal(t, 1, first.Attempted)
	assert.Equal(t, 1, api.callCount())
}

func TestSyncDrainEmptiesStorage(t *testing.T) {
	api := &fakeProgressAPI{}
	store := driver.NewMemoryStore()
	queue := NewQueue(store, zap.NewNop())
	syncer := NewSyncer(queue, api, &fakeSource{online: true}, &captureNotifier{}, time.Millisecond, zap.NewNop())

	queue.SaveUpdate(Update{ResourceID: "mat-1", ProgressPercent: 100, TimeSpentSeconds: 60})
	syncer.SyncPending(context.Background())

	// a queue rebuilt from the same storage observes the drain
	reloaded := NewQueue(store, zap.NewNop())
	assert.Zero(t, reloaded.Len())
}

func TestAutoSyncAfterReconnect(t *testing.T) {
	api := &fakeProgressAPI{}
	syncer, queue, _ := newTestSyncer(api, true)
	queue.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})

	syncer.OnOnline()

	require.Eventually(t, func() bool {
		return queue.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, api.callCount())
}

func TestAutoSyncCancelledByOffline(t *testing.T) {
	api := &fakeProgressAPI{}
	syncer, queue, _ := newTestSyncer(api, true)
	queue.SaveUpdate(Update{ResourceID: "a", ProgressPercent: 10})

	syncer.OnOnline()
	syncer.OnOffline()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, api.callCount())
	assert.Equal(t, 1, queue.Len())
}
