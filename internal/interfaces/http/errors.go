package http

import (
	infra "github.com/studylane/sync-agent/internal/infrastructure"
	"github.com/studylane/sync-agent/internal/infrastructure/validate"
)

// NewRESTStandardError create a standard error response
func NewRESTStandardError(code int, title string) *infra.RESTStandardError {
	return infra.NewRESTStandardError(code, title)
}

// RESTValidationError standard validation error
type RESTValidationError struct {
	infra.RESTStandardError
	Errors []*validate.FieldError `json:"errors"`
}

func NewRESTValidationError(code int, title string, internal []*validate.FieldError) *RESTValidationError {
	return &RESTValidationError{
		RESTStandardError: infra.RESTStandardError{
			Code:  code,
			Title: title,
		},
		Errors: internal,
	}
}

func (rve RESTValidationError) Error() string {
	return rve.Detail
}
