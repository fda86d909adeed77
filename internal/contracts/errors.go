package contracts

import (
	"fmt"
	"net/http"
)

// Provider-facing failure reasons surfaced verbatim to the caller.
const (
	CodeMissingPayer          = "MISSING_PAYER"
	CodeCompanyNotFound       = "COMPANY_NOT_FOUND"
	CodeTemplateNotConfigured = "TEMPLATE_NOT_CONFIGURED"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	CodeProviderRejected      = "PROVIDER_REJECTED"
)

// GenerationError is a domain failure of contract generation. Code and Status
// are shown to the caller as-is; anything else is treated as an internal error.
type GenerationError struct {
	Code   string
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contract generation %s: %v", e.Code, e.Err)
	}
	return "contract generation " + e.Code
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(code string, status int, err error) *GenerationError {
	if status == 0 {
		status = http.StatusUnprocessableEntity
	}
	return &GenerationError{Code: code, Status: status, Err: err}
}
