package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means the model server could not be
	// reached after the configured retries.
	ErrBackendUnavailable = errors.New("inference backend unavailable")
	// ErrTimeout means the call (or its overall deadline) timed out.
	ErrTimeout = errors.New("inference request timed out")
)

// BackendError is a well-formed error response from the model server.
// These are not retried: the server was reached and answered.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("inference backend returned %d: %s", e.Status, e.Message)
}
