package validate

// FieldError describes why a single field failed validation
type FieldError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// NewFieldError create a FieldError instance
func NewFieldError(domain, reason string) *FieldError {
	return &FieldError{
		Domain: domain,
		Reason: reason,
	}
}

// Validator common validation interface
type Validator interface {
	Struct(s interface{}) []*FieldError
	Empty(varName string, s interface{}) []*FieldError
}
