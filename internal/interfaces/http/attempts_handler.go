package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/infrastructure/validate"
	"github.com/studylane/sync-agent/internal/submission"
)

type AttemptHandler struct {
	registry  *submission.Registry
	validator validate.Validator
}

func NewAttemptHandler(registry *submission.Registry, validator validate.Validator) *AttemptHandler {
	handler := &AttemptHandler{registry, validator}
	return handler
}

// HandleStartAttempt open a new attempt for the assignment
func (ah *AttemptHandler) HandleStartAttempt(c echo.Context) (err error) {
	tracker := ah.registry.For(c.Param("id"))
	attempt, err := tracker.Start()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, attempt)
}

type recordAnswerPayload struct {
	QuestionID string      `json:"question_id" validate:"required"`
	Answer     interface{} `json:"answer" validate:"required"`
}

// HandleRecordAnswer set the answer of one question on the current attempt
func (ah *AttemptHandler) HandleRecordAnswer(c echo.Context) (err error) {
	payload := new(recordAnswerPayload)
	if err := c.Bind(payload); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := ah.validator.Struct(payload); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}

	tracker := ah.registry.For(c.Param("id"))
	if err := tracker.RecordAnswer(payload.QuestionID, payload.Answer); err != nil {
		if errors.Is(err, submission.ErrNoCurrentAttempt) {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, tracker.Current())
}

// HandleAttachFile stage a file on the current attempt
func (ah *AttemptHandler) HandleAttachFile(c echo.Context) (err error) {
	file := new(submission.FileRef)
	if err := c.Bind(file); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := ah.validator.Empty("name", file.Name); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}

	tracker := ah.registry.For(c.Param("id"))
	if err := tracker.AttachFile(*file); err != nil {
		if errors.Is(err, submission.ErrNoCurrentAttempt) {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, tracker.Current())
}

type finishAttemptPayload struct {
	Status string `json:"status" validate:"required,oneof=submitted failed"`
}

// HandleFinishAttempt close the current attempt
func (ah *AttemptHandler) HandleFinishAttempt(c echo.Context) (err error) {
	payload := new(finishAttemptPayload)
	if err := c.Bind(payload); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := ah.validator.Struct(payload); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}

	tracker := ah.registry.For(c.Param("id"))
	if err := tracker.Finish(submission.AttemptStatus(payload.Status)); err != nil {
		if errors.Is(err, submission.ErrNoCurrentAttempt) {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleListAttempts the recorded attempt history
func (ah *AttemptHandler) HandleListAttempts(c echo.Context) (err error) {
	tracker := ah.registry.For(c.Param("id"))
	return c.JSON(http.StatusOK, echo.Map{
		"attempts": tracker.History(),
		"current":  tracker.Current(),
	})
}
