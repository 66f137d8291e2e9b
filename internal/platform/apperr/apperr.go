package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is an application error carrying a stable code and optional field
// details. It unwraps to one of the sentinel errors above.
type Error struct {
	Err     error             `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports that the named resource does not exist.
func NotFound(resource, id string) *Error {
	return &Error{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// InvalidInput reports a request that is missing required identifying fields.
func InvalidInput(message string, details map[string]string) *Error {
	return &Error{
		Err:     ErrInvalidInput,
		Code:    "INVALID_INPUT",
		Message: message,
		Details: details,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// HTTP converts err into an echo HTTP error. Errors outside the taxonomy are
// reported as 500 without leaking their text.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ae *Error
	if errors.As(err, &ae) {
		switch {
		case errors.Is(ae, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, ae)
		case errors.Is(ae, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, ae)
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
