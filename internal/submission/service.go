package submission

import (
	"context"
	"errors"

	"github.com/studylane/sync-agent/internal/platform"
	"github.com/studylane/sync-agent/internal/progress"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// AnswerAPI is the slice of the platform client used for direct submission
type AnswerAPI interface {
	SubmitAnswer(ctx context.Context, params platform.AnswerParams) (*platform.AnswerResult, error)
}

// Connectivity is the slice of the network monitor the service consults
type Connectivity interface {
	Online() bool
	SetOffline()
}

// Service decides, for a single user answer, whether to call the network
// immediately or fall back to the durable queue
type Service struct {
	api     AnswerAPI
	queue   *progress.Queue
	monitor Connectivity
	logger  *zap.Logger
}

// NewService create a Service instance
func NewService(api AnswerAPI, queue *progress.Queue, monitor Connectivity, logger *zap.Logger) *Service {
	return &Service{
		api:     api,
		queue:   queue,
		monitor: monitor,
		logger:  logger,
	}
}

// Submit deliver one answer, queueing it locally when the platform is
// unreachable. Never returns an error, the outcome is encoded in Result
func (s *Service) Submit(ctx context.Context, p Params) Result {
	apmSpan, ctx := apm.StartSpan(ctx, "Service.Submit", "service")
	defer apmSpan.End()

	if !s.monitor.Online() {
		s.queueFallback(p)
		return Result{Cached: true}
	}

	res, err := s.api.SubmitAnswer(ctx, platform.AnswerParams{
		ElementID:     p.ElementID,
		LessonID:      p.LessonID,
		GraphID:       p.GraphID,
		GraphLessonID: p.GraphLessonID,
		Answer:        p.Answer,
	})
	if err != nil {
		if errors.Is(err, platform.ErrUnreachable) {
			// the transport just proved the monitor stale
			s.monitor.SetOffline()
			s.queueFallback(p)
			return Result{Cached: true}
		}
		s.logger.Warn("answer submission rejected", zap.String("element.id", p.ElementID), zap.Error(err))
		return Result{Error: err.Error()}
	}
	return Result{Success: res.Success, Cached: res.Cached, Error: res.Error}
}

// PendingCount number of answers waiting in the durable queue
func (s *Service) PendingCount() int {
	return s.queue.Len()
}

func (s *Service) queueFallback(p Params) {
	percent := p.Progress
	if percent == 0 {
		// an answered element counts as fully worked through locally,
		// the server recomputes authoritative progress on sync
		percent = 100
	}
	s.queue.SaveUpdate(progress.Update{
		ResourceID:       p.ElementID,
		ProgressPercent:  percent,
		TimeSpentSeconds: p.TimeSpentSeconds,
	})
	s.logger.Info("answer queued for later sync", zap.String("element.id", p.ElementID))
}
