package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/infrastructure/validate"
	"github.com/studylane/sync-agent/internal/lesson"
)

type LessonHandler struct {
	reconciler *lesson.Reconciler
	studentID  string
	validator  validate.Validator
}

func NewLessonHandler(reconciler *lesson.Reconciler, studentID string, validator validate.Validator) *LessonHandler {
	handler := &LessonHandler{reconciler, studentID, validator}
	return handler
}

type completeLessonPayload struct {
	GraphID       string `json:"graph_id" validate:"required"`
	LessonID      string `json:"lesson_id" validate:"required"`
	GraphLessonID string `json:"graph_lesson_id" validate:"required"`
	StudentID     string `json:"student_id"`
}

// HandleSyncProgress run the completion check plus cache invalidation
// after a graph-affecting element completion
func (lh *LessonHandler) HandleSyncProgress(c echo.Context) (err error) {
	payload := new(completeLessonPayload)
	if err := c.Bind(payload); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := lh.validator.Struct(payload); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}
	studentID := payload.StudentID
	if studentID == "" {
		studentID = lh.studentID
	}

	result := lh.reconciler.SyncProgress(c.Request().Context(),
		payload.GraphID, payload.LessonID, payload.GraphLessonID, studentID)
	if result == nil {
		return c.JSON(http.StatusOK, echo.Map{"completed": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"completed":        result.Completed,
		"lesson_id":        result.LessonID,
		"unlocked_lessons": result.UnlockedLessons,
		"unlocked_ids":     lesson.UnlockedIDs(result),
	})
}
