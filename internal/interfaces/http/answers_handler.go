package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/infrastructure/validate"
	"github.com/studylane/sync-agent/internal/submission"
)

type AnswerHandler struct {
	orchestrator *submission.Orchestrator
	validator    validate.Validator
}

func NewAnswerHandler(orchestrator *submission.Orchestrator, validator validate.Validator) *AnswerHandler {
	handler := &AnswerHandler{orchestrator, validator}
	return handler
}

// HandleSubmitAnswer run one submission attempt
func (ah *AnswerHandler) HandleSubmitAnswer(c echo.Context) (err error) {
	params := new(submission.Params)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if errs := ah.validator.Struct(params); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate payload", errs))
	}

	result := ah.orchestrator.Submit(c.Request().Context(), *params)
	return c.JSON(http.StatusOK, echo.Map{
		"result": result,
		"state":  ah.orchestrator.State(),
	})
}

// HandleRetrySubmission re-run the last attempt
func (ah *AnswerHandler) HandleRetrySubmission(c echo.Context) (err error) {
	result, retried := ah.orchestrator.Retry(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{
		"retried": retried,
		"result":  result,
		"state":   ah.orchestrator.State(),
	})
}

// HandleGetSubmissionState current state machine snapshot
func (ah *AnswerHandler) HandleGetSubmissionState(c echo.Context) (err error) {
	return c.JSON(http.StatusOK, ah.orchestrator.State())
}
