package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joelkehle/kundali/internal/store"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

func invalidJSON(err error) *Error {
	return newError(CodeValidation, "invalid json: "+err.Error())
}

// classify maps store and context failures onto API errors.
func classify(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, err.Error())
	default:
		return newError(CodeInternal, err.Error())
	}
}
