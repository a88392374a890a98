package facade

import (
	"errors"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// ErrorPayload is the typed error envelope returned to callers.
type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// AsErrorPayload converts any error to the wire envelope. Errors without a
// stable code fall back to INTERNAL_ERROR.
func AsErrorPayload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	var ce *cerr.CodeError
	if errors.As(err, &ce) {
		return &ErrorPayload{Code: ce.Code, Message: ce.Message, Details: ce.Details}
	}
	return &ErrorPayload{Code: "INTERNAL_ERROR", Message: err.Error()}
}
