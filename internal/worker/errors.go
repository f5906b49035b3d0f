package worker

import (
	"errors"
	"fmt"
)

// Sentinel errors for easy checking.
var (
	ErrUnauthorized   = errors.New("Unauthorized")
	ErrStreamStatus   = errors.New("Stream Error")
	ErrRequestTimeout = errors.New("request timed out")
	ErrInvalidChunk   = errors.New("invalid stream chunk")
)

// StatusError is returned when the worker answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Err        error // ErrUnauthorized or ErrStreamStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Err, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func newStatusError(statusCode int) *StatusError {
	if statusCode == 401 {
		return &StatusError{StatusCode: statusCode, Err: ErrUnauthorized}
	}
	return &StatusError{StatusCode: statusCode, Err: ErrStreamStatus}
}
