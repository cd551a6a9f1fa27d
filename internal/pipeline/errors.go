package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when both source lists are empty or missing.
var ErrNoSources = errors.New("no feeds or urls configured")

// PersistenceError reports a failed write of run output. The cursor is not
// advanced when a run ends with this error.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
