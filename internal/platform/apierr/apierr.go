package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidGraphReference = errors.New("invalid graph reference")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrConfiguration         = errors.New("configuration error")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(kind, id string) *Error {
	return New(http.StatusNotFound, "not_found", fmt.Errorf("%s %q: %w", kind, id, ErrNotFound))
}

func InvalidGraphReference(source, target string) *Error {
	return New(http.StatusUnprocessableEntity, "invalid_graph_reference",
		fmt.Errorf("edge %s -> %s: %w", source, target, ErrInvalidGraphReference))
}

func InsufficientData(what string, have, need int) *Error {
	return New(http.StatusUnprocessableEntity, "insufficient_data",
		fmt.Errorf("%s: have %d, need %d: %w", what, have, need, ErrInsufficientData))
}

func Configuration(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, "configuration_error",
		fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration))
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
