package filters

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusCoder is implemented by errors that select the status of the error
// response.
type StatusCoder interface {
	StatusCode() int
}

// StatusError is a failure answered with a given status.
type StatusError struct {
	Code int
	Err  error
}

func NewStatusError(code int, err error) *StatusError {
	return &StatusError{Code: code, Err: err}
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}

	return fmt.Sprintf("%d %s: %v", e.Code, http.StatusText(e.Code), e.Err)
}

func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) StatusCode() int { return e.Code }

// NotFoundError signals that no route or no service instance serves the
// request. It is answered with 503, or with 404 when Use404 is set.
type NotFoundError struct {
	Message string
	Use404  bool
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int {
	if e.Use404 {
		return http.StatusNotFound
	}

	return http.StatusServiceUnavailable
}

// ErrorStatus returns the status code selected by err, or 500.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	return http.StatusInternalServerError
}
