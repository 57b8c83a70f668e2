package router

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is returned for submissions that can no longer run
	// because the worker stopped after a fatal host refusal.
	ErrTerminated = errors.New("router: terminated after fatal host refusal")

	// ErrResumeSignalRequired is returned by Attach when the POSTPONE policy
	// is selected but the lifecycle has no resume signal.
	ErrResumeSignalRequired = errors.New("router: postpone policy requires a resume signal")

	// ErrAlreadyAttached is returned by Attach on an attached router.
	ErrAlreadyAttached = errors.New("router: already attached")

	// ErrReentrant is returned when a blocking router call is made from the
	// worker goroutine, for example waiting on a handle inside a unit body.
	ErrReentrant = errors.New("router: blocking call from the worker goroutine")
)

// RouterError is a failure attached to one submission.
//
// The wrapped error stays reachable with errors.Is/errors.As, so callers can
// still test for navigator.ErrStateLoss or tag.UnsupportedSourceError.
type RouterError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Submission is the id of the affected call.
	Submission int64

	// Err is the underlying failure.
	Err error
}

// ErrorCode categorizes router errors.
type ErrorCode string

const (
	// ErrCodeHostRefused indicates the host refused a mutation under the ERROR policy.
	ErrCodeHostRefused ErrorCode = "HOST_REFUSED"

	// ErrCodeSourceFailed indicates a reactive unit's source failed.
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"

	// ErrCodeUnitFailed indicates a unit body returned an error other than a refusal.
	ErrCodeUnitFailed ErrorCode = "UNIT_FAILED"

	// ErrCodeInvalidUnit indicates the call's unit could not be built, for
	// example because a screen has no tag. Such calls are never queued.
	ErrCodeInvalidUnit ErrorCode = "INVALID_UNIT"
)

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("%s (submission=%d): %v", e.Code, e.Submission, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// IsRefusal reports whether err is a fatal host refusal.
func IsRefusal(err error) bool {
	return hasCode(err, ErrCodeHostRefused)
}

// IsSourceFailure reports whether err comes from a failed reactive source.
func IsSourceFailure(err error) bool {
	return hasCode(err, ErrCodeSourceFailed)
}

// IsUnitFailure reports whether err comes from a failing unit body.
func IsUnitFailure(err error) bool {
	return hasCode(err, ErrCodeUnitFailed)
}

// IsInvalidUnit reports whether err rejected a call whose unit could not be
// built.
func IsInvalidUnit(err error) bool {
	return hasCode(err, ErrCodeInvalidUnit)
}

func hasCode(err error, code ErrorCode) bool {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
