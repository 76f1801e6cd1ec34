package submission

import (
	"context"
	"sync"
	"time"

	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Submitter lower-level submission service the orchestrator delegates to
type Submitter interface {
	Submit(ctx context.Context, p Params) Result
	PendingCount() int
}

// Orchestrator per-interaction submission state machine.
//
// It does not detect connectivity itself, it only reacts to the Result the
// service reports: Cached maps to offline, Success to success, anything
// else to error. The parameters of every attempt are retained so Retry can
// be invoked with no arguments
type Orchestrator struct {
	mu          sync.Mutex
	status      Status
	lastError   string
	lastParams  *Params
	pending     int
	revertTimer *time.Timer
	closed      bool

	svc         Submitter
	revertDelay time.Duration
	logger      *zap.Logger
}

// NewOrchestrator create an Orchestrator instance
func NewOrchestrator(svc Submitter, revertDelay time.Duration, logger *zap.Logger) *Orchestrator {
	if revertDelay <= 0 {
		revertDelay = 2 * time.Second
	}
	return &Orchestrator{
		status:      StatusIdle,
		svc:         svc,
		revertDelay: revertDelay,
		logger:      logger,
	}
}

// Submit run one submission attempt and settle the state machine
func (o *Orchestrator) Submit(ctx context.Context, p Params) Result {
	apmSpan, ctx := apm.StartSpan(ctx, "Orchestrator.Submit", "service")
	defer apmSpan.End()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Result{Error: "agent is shutting down"}
	}
	o.cancelRevertLocked()
	o.status = StatusLoading
	o.lastError = ""
	params := p
	o.lastParams = &params
	o.mu.Unlock()

	result := o.svc.Submit(ctx, p)
	o.settle(result)
	return result
}

// Retry re-run the last attempt. With no prior attempt it reports a no-op
// and never touches the network layer
func (o *Orchestrator) Retry(ctx context.Context) (Result, bool) {
	o.mu.Lock()
	if o.lastParams == nil {
		o.mu.Unlock()
		o.logger.Debug("retry requested without a prior submission")
		return Result{}, false
	}
	params := *o.lastParams
	o.mu.Unlock()

	return o.Submit(ctx, params), true
}

// State current state machine snapshot
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Status:       o.status,
		Error:        o.lastError,
		PendingCount: o.pending,
	}
}

// Close cancel the revert timer and refuse further attempts
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.cancelRevertLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) settle(result Result) {
	// offline-accumulated answers become visible through the pending
	// count even though the orchestrator does not own the queue
	pending := o.svc.PendingCount()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = pending
	switch {
	case result.Cached:
		o.status = StatusOffline
	case result.Success:
		o.status = StatusSuccess
		o.cancelRevertLocked()
		o.revertTimer = time.AfterFunc(o.revertDelay, o.revertToIdle)
	default:
		o.status = StatusError
		o.lastError = result.Error
		if o.lastError == "" {
			o.lastError = "submission failed"
		}
	}
}

func (o *Orchestrator) revertToIdle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.status != StatusSuccess {
		return
	}
	o.status = StatusIdle
}

func (o *Orchestrator) cancelRevertLocked() {
	if o.revertTimer != nil {
		o.revertTimer.Stop()
		o.revertTimer = nil
	}
}
