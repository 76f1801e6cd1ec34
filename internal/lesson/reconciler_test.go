package lesson

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"github.com/studylane/sync-agent/internal/notify"
	"github.com/studylane/sync-agent/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompletionAPI struct {
	check       *platform.CompletionCheck
	checkErr    error
	result      *platform.CompletionResult
	completeErr error

	checkCalls    int
	completeCalls int
}

func (f *fakeCompletionAPI) CheckCompletion(ctx context.Context, lessonID, graphLessonID, studentID string) (*platform.CompletionCheck, error) {
	f.checkCalls++
	return f.check, f.checkErr
}

func (f *fakeCompletionAPI) CompleteLesson(ctx context.Context, graphID, lessonID, graphLessonID, studentID string) (*platform.CompletionResult, error) {
	f.completeCalls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	// the platform reports the lesson complete from now on
	f.check = &platform.CompletionCheck{AlreadyComplete: true}
	return f.result, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (cn *captureNotifier) Notify(e notify.Event) {
	cn.mu.Lock()
	cn.events = append(cn.events, e)
	cn.mu.Unlock()
}

func (cn *captureNotifier) ofType(eventType string) []notify.Event {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	var matched []notify.Event
	for _, e := range cn.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func newTestReconciler(api CompletionAPI) (*Reconciler, *ViewCache, *captureNotifier) {
	views := NewViewCache(driver.NewMemoryStore(), time.Minute, zap.NewNop())
	notifier := &captureNotifier{}
	return NewReconciler(api, views, notifier, zap.NewNop()), views, notifier
}

func TestReconcilerNotReadyReturnsNil(t *testing.T) {
	api := &fakeCompletionAPI{check: &platform.CompletionCheck{Ready: false}}
	r, _, notifier := newTestReconciler(api)

	result := r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1")

	assert.Nil(t, result)
	assert.Zero(t, api.completeCalls)
	assert.Empty(t, notifier.events)
}

func TestReconcilerAlreadyCompleteIsInert(t *testing.T) {
	api := &fakeCompletionAPI{check: &platform.CompletionCheck{AlreadyComplete: true}}
	r, views, notifier := newTestReconciler(api)
	views.Put(GraphKey("g1", "st1"), `{"progress":50}`)

	result := r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1")

	require.NotNil(t, result)
	assert.False(t, result.Completed)
	assert.Zero(t, api.completeCalls)
	assert.Empty(t, notifier.events)
	_, ok := views.Get(GraphKey("g1", "st1"))
	assert.True(t, ok)
}

func TestReconcilerCompletesAndAggregatesUnlocks(t *testing.T) {
	api := &fakeCompletionAPI{
		check: &platform.CompletionCheck{Ready: true},
		result: &platform.CompletionResult{
			LessonID:  "ls1",
			Completed: true,
			UnlockedLessons: []platform.UnlockedLesson{
				{LessonID: "ls2", LessonTitle: "Fractions"},
				{LessonID: "ls3", LessonTitle: "Decimals"},
			},
		},
	}
	r, views, notifier := newTestReconciler(api)
	views.Put(GraphKey("g1", "st1"), `{"progress":50}`)
	views.Put(LessonKey("ls1", "st1"), `{"done":false}`)

	result := r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1")

	require.NotNil(t, result)
	assert.True(t, result.Completed)
	assert.Equal(t, []string{"ls2", "ls3"}, UnlockedIDs(result))

	_, ok := views.Get(GraphKey("g1", "st1"))
	assert.False(t, ok)
	_, ok = views.Get(LessonKey("ls1", "st1"))
	assert.False(t, ok)

	assert.Len(t, notifier.ofType(notify.TypeLessonCompleted), 1)
	unlocks := notifier.ofType(notify.TypeLessonsUnlocked)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "2 lesson(s) unlocked", unlocks[0].Title)
	assert.Equal(t, "Fractions, Decimals", unlocks[0].Detail)
}

func TestReconcilerNoUnlockNoticeWhenNothingOpened(t *testing.T) {
	api := &fakeCompletionAPI{
		check:  &platform.CompletionCheck{Ready: true},
		result: &platform.CompletionResult{LessonID: "ls1", Completed: true},
	}
	r, _, notifier := newTestReconciler(api)

	r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1")

	assert.Len(t, notifier.ofType(notify.TypeLessonCompleted), 1)
	assert.Empty(t, notifier.ofType(notify.TypeLessonsUnlocked))
}

func TestReconcilerSwallowsNetworkFailures(t *testing.T) {
	api := &fakeCompletionAPI{checkErr: errors.New("connection refused")}
	r, _, notifier := newTestReconciler(api)

	assert.Nil(t, r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1"))
	assert.Empty(t, notifier.events)

	api = &fakeCompletionAPI{
		check:       &platform.CompletionCheck{Ready: true},
		completeErr: errors.New("internal server error"),
	}
	r, _, notifier = newTestReconciler(api)

	assert.Nil(t, r.CompleteLessonIfReady(context.Background(), "g1", "ls1", "gl1", "st1"))
	assert.Empty(t, notifier.events)
}

func TestSyncProgressIsIdempotent(t *testing.T) {
	api := &fakeCompletionAPI{
		check: &platform.CompletionCheck{Ready: true},
		result: &platform.CompletionResult{
			LessonID:        "ls1",
			Completed:       true,
			UnlockedLessons: []platform.UnlockedLesson{{LessonID: "ls2", LessonTitle: "Fractions"}},
		},
	}
	r, _, notifier := newTestReconciler(api)

	first := r.SyncProgress(context.Background(), "g1", "ls1", "gl1", "st1")
	require.NotNil(t, first)
	assert.True(t, first.Completed)

	second := r.SyncProgress(context.Background(), "g1", "ls1", "gl1", "st1")
	require.NotNil(t, second)
	assert.False(t, second.Completed)

	assert.Equal(t, 1, api.completeCalls)
	assert.Len(t, notifier.ofType(notify.TypeLessonsUnlocked), 1)
}

func TestSyncProgressInvalidatesViewsEvenWhenNotReady(t *testing.T) {
	api := &fakeCompletionAPI{check: &platform.CompletionCheck{Ready: false}}
	r, views, _ := newTestReconciler(api)
	views.Put(GraphKey("g1", "st1"), `{"progress":50}`)
	views.Put(LessonKey("ls1", "st1"), `{"done":false}`)

	assert.Nil(t, r.SyncProgress(context.Background(), "g1", "ls1", "gl1", "st1"))

	_, ok := views.Get(GraphKey("g1", "st1"))
	assert.False(t, ok)
	_, ok = views.Get(LessonKey("ls1", "st1"))
	assert.False(t, ok)
}
