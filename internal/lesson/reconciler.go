package lesson

import (
	"context"
	"fmt"

	"github.com/studylane/sync-agent/internal/notify"
	"github.com/studylane/sync-agent/internal/platform"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// CompletionAPI is the slice of the platform client the reconciler talks to
type CompletionAPI interface {
	CheckCompletion(ctx context.Context, lessonID, graphLessonID, studentID string) (*platform.CompletionCheck, error)
	CompleteLesson(ctx context.Context, graphID, lessonID, graphLessonID, studentID string) (*platform.CompletionResult, error)
}

// Reconciler aligns locally cached lesson and graph views with the
// server-confirmed completion state after an element is completed.
//
// Network errors are never fatal to the caller: a failed check reads as
// "not ready" with a log line, per the pipeline's propagation policy
type Reconciler struct {
	api      CompletionAPI
	views    *ViewCache
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewReconciler create a Reconciler instance
func NewReconciler(api CompletionAPI, views *ViewCache, notifier notify.Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		api:      api,
		views:    views,
		notifier: notifier,
		logger:   logger,
	}
}

// CompleteLessonIfReady ask the server whether the lesson's completion
// criteria are met. Returns nil when not ready. A non-nil result with
// Completed false means the lesson was already complete, so no views are
// invalidated and no notices are emitted
func (r *Reconciler) CompleteLessonIfReady(ctx context.Context, graphID, lessonID, graphLessonID, studentID string) *platform.CompletionResult {
	apmSpan, ctx := apm.StartSpan(ctx, "Reconciler.CompleteLessonIfReady", "service")
	defer apmSpan.End()

	check, err := r.api.CheckCompletion(ctx, lessonID, graphLessonID, studentID)
	if err != nil {
		r.logger.Warn("completion check failed",
			zap.String("lesson.id", lessonID),
			zap.Error(err),
		)
		return nil
	}
	if check.AlreadyComplete {
		return &platform.CompletionResult{LessonID: lessonID, Completed: false}
	}
	if !check.Ready {
		return nil
	}

	result, err := r.api.CompleteLesson(ctx, graphID, lessonID, graphLessonID, studentID)
	if err != nil {
		r.logger.Warn("failed to mark lesson complete",
			zap.String("lesson.id", lessonID),
			zap.Error(err),
		)
		return nil
	}

	r.views.Invalidate(
		GraphKey(graphID, studentID),
		LessonKey(lessonID, studentID),
	)
	r.notifier.Notify(notify.NewEvent(notify.TypeLessonCompleted, "Lesson completed", lessonID))
	if n := len(result.UnlockedLessons); n > 0 {
		// one aggregate notice regardless of how many lessons opened up
		r.notifier.Notify(notify.NewEvent(notify.TypeLessonsUnlocked,
			fmt.Sprintf("%d lesson(s) unlocked", n),
			joinTitles(result.UnlockedLessons),
		))
	}
	return result
}

// SyncProgress superset operation invoked after any graph-affecting
// element completion: same completion check plus graph-level and
// lesson-level cache invalidation. Idempotent, a second call after one
// real completion observes "already complete" and unlocks nothing
func (r *Reconciler) SyncProgress(ctx context.Context, graphID, lessonID, graphLessonID, studentID string) *platform.CompletionResult {
	apmSpan, ctx := apm.StartSpan(ctx, "Reconciler.SyncProgress", "service")
	defer apmSpan.End()

	result := r.CompleteLessonIfReady(ctx, graphID, lessonID, graphLessonID, studentID)

	// dependent views refetch even when nothing newly completed, the
	// element completion itself changed graph progress numbers
	r.views.Invalidate(
		GraphKey(graphID, studentID),
		LessonKey(lessonID, studentID),
	)
	return result
}

// UnlockedIDs the lesson ids opened up by a completion result
func UnlockedIDs(result *platform.CompletionResult) []string {
	if result == nil {
		return nil
	}
	ids := make([]string, 0, len(result.UnlockedLessons))
	for _, l := range result.UnlockedLessons {
		ids = append(ids, l.LessonID)
	}
	return ids
}

func joinTitles(lessons []platform.UnlockedLesson) string {
	detail := ""
	for i, l := range lessons {
		if i > 0 {
			detail += ", "
		}
		detail += l.LessonTitle
	}
	return detail
}
