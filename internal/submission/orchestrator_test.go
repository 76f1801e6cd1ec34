package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubmitter struct {
	calls   int
	results []Result
	last    Params
	pending int
}

func (f *fakeSubmitter) Submit(ctx context.Context, p Params) Result {
	f.last = p
	result := f.results[f.calls%len(f.results)]
	f.calls++
	return result
}

func (f *fakeSubmitter) PendingCount() int { return f.pending }

func TestOrchestratorSettlesPerResult(t *testing.T) {
	tests := []struct {
		name      string
		result    Result
		status    Status
		lastError string
	}{
		{"success", Result{Success: true}, StatusSuccess, ""},
		{"cached maps to offline", Result{Cached: true}, StatusOffline, ""},
		{"rejection", Result{Error: "answer already graded"}, StatusError, "answer already graded"},
		{"failure without detail", Result{}, StatusError, "submission failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeSubmitter{results: []Result{tc.result}}
			o := NewOrchestrator(svc, time.Minute, zap.NewNop())
			defer o.Close()

			o.Submit(context.Background(), Params{ElementID: "el-1"})

			state := o.State()
			assert.Equal(t, tc.status, state.Status)
			assert.Equal(t, tc.lastError, state.Error)
		})
	}
}

func TestOrchestratorSuccessRevertsToIdle(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Success: true}}}
	o := NewOrchestrator(svc, 20*time.Millisecond, zap.NewNop())
	defer o.Close()

	o.Submit(context.Background(), Params{ElementID: "el-1"})
	require.Equal(t, StatusSuccess, o.State().Status)

	require.Eventually(t, func() bool {
		return o.State().Status == StatusIdle
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestratorOfflineSticksUntilNextAttempt(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Cached: true}}}
	o := NewOrchestrator(svc, 20*time.Millisecond, zap.NewNop())
	defer o.Close()

	o.Submit(context.Background(), Params{ElementID: "el-1"})
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusOffline, o.State().Status)
}

func TestOrchestratorRetryReplaysLastParams(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Cached: true}, {Success: true}}}
	o := NewOrchestrator(svc, time.Minute, zap.NewNop())
	defer o.Close()

	params := Params{ElementID: "el-1", LessonID: "ls-1", Answer: "42"}
	o.Submit(context.Background(), params)
	require.Equal(t, StatusOffline, o.State().Status)

	result, retried := o.Retry(context.Background())
	require.True(t, retried)
	assert.True(t, result.Success)
	assert.Equal(t, params, svc.last)
	assert.Equal(t, 2, svc.calls)
	assert.Equal(t, StatusSuccess, o.State().Status)
}

func TestOrchestratorRetryWithoutPriorAttempt(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Success: true}}}
	o := NewOrchestrator(svc, time.Minute, zap.NewNop())
	defer o.Close()

	_, retried := o.Retry(context.Background())
	assert.False(t, retried)
	assert.Zero(t, svc.calls)
	assert.Equal(t, StatusIdle, o.State().Status)
}

func TestOrchestratorRefreshesPendingCount(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Cached: true}}, pending: 3}
	o := NewOrchestrator(svc, time.Minute, zap.NewNop())
	defer o.Close()

	assert.Zero(t, o.State().PendingCount)
	o.Submit(context.Background(), Params{ElementID: "el-1"})
	assert.Equal(t, 3, o.State().PendingCount)
}

func TestOrchestratorClosedRefusesAttempts(t *testing.T) {
	svc := &fakeSubmitter{results: []Result{{Success: true}}}
	o := NewOrchestrator(svc, time.Minute, zap.NewNop())
	o.Close()

	result := o.Submit(context.Background(), Params{ElementID: "el-1"})
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, svc.calls)
}
