// Package apperr holds the error taxonomy shared by every component. Errors
// are wrapped with github.com/pkg/errors and classified with errors.Is, so a
// sentinel survives any number of Wrap calls.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound means the content, company or following does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateState means the operation is a no-op, for example already
	// following or already summarized.
	ErrDuplicateState = errors.New("duplicate state")
	// ErrTransientDependency means cache, AI provider or durable store failed.
	ErrTransientDependency = errors.New("transient dependency failure")
	// ErrDataIntegrity means a write collided with a unique constraint.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrInvalidArgument means the caller sent a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Response codes returned in the "code" field of failed API responses.
const (
	CodeOK              = 0
	CodeInvalidArgument = 40001
	CodeNotFound        = 40401
	CodeDuplicateState  = 40901
	CodeInternal        = 50001
	CodeUnavailable     = 50301
)

func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

type transientError struct {
	cause error
	msg   string
}

func (e *transientError) Error() string {
	return e.msg + ": " + e.cause.Error()
}

func (e *transientError) Unwrap() error {
	return e.cause
}

func (e *transientError) Is(target error) bool {
	return target == ErrTransientDependency
}

// Transient marks err as a failure of an external dependency while keeping
// err reachable through errors.Is and errors.Cause.
func Transient(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err, msg: msg}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientDependency)
}

// HTTPStatus maps an error onto the status code and response code the API
// answers with.
func HTTPStatus(err error) (int, int) {
	switch {
	case err == nil:
		return http.StatusOK, CodeOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrDuplicateState), errors.Is(err, ErrDataIntegrity):
		return http.StatusConflict, CodeDuplicateState
	case errors.Is(err, ErrTransientDependency):
		return http.StatusServiceUnavailable, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}
