package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/infrastructure/validate"
	"github.com/studylane/sync-agent/internal/netmon"
	"github.com/studylane/sync-agent/internal/progress"
)

type ProgressHandler struct {
	queue     *progress.Queue
	syncer    *progress.Syncer
	monitor   *netmon.Monitor
	validator validate.Validator
}

func NewProgressHandler(
	queue *progress.Queue,
	syncer *progress.Syncer,
	monitor *netmon.Monitor,
	validator validate.Validator,
) *ProgressHandler {
	handler := &ProgressHandler{queue, syncer, monitor, validator}
	return handler
}

type recordProgressPayload struct {
	ResourceID       string  `json:"resource_id" validate:"required"`
	Progress         float64 `json:"progress"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}

// HandleRecordProgress accept a progress record as an optimistic local
// write, kicking a drain when the platform looks reachable
func (ph *ProgressHandler) HandleRecordProgress(c echo.Context) (err error) {
	payload := new(recordProgressPayload)
	if err := c.Bind(payload); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := ph.validator.Struct(payload); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}

	ph.queue.SaveUpdate(progress.Update{
		ResourceID:       payload.ResourceID,
		ProgressPercent:  payload.Progress,
		TimeSpentSeconds: payload.TimeSpentSeconds,
	})
	if ph.monitor.Online() {
		go ph.syncer.SyncPending(context.Background())
	}
	return c.JSON(http.StatusAccepted, echo.Map{"pending": ph.queue.Len()})
}

// HandleListQueue pending updates snapshot
func (ph *ProgressHandler) HandleListQueue(c echo.Context) (err error) {
	updates := ph.queue.ListUpdates()
	return c.JSON(http.StatusOK, echo.Map{
		"updates": updates,
		"count":   len(updates),
	})
}

// HandleClearQueue drop every pending update
func (ph *ProgressHandler) HandleClearQueue(c echo.Context) (err error) {
	ph.queue.ClearAll()
	return c.NoContent(http.StatusNoContent)
}

// HandleSyncNow manual drain, rejected while offline
func (ph *ProgressHandler) HandleSyncNow(c echo.Context) (err error) {
	report, err := ph.syncer.SyncNow(c.Request().Context())
	if err != nil {
		if errors.Is(err, progress.ErrOffline) {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, report)
}
