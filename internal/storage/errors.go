package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

// OperationError reports a failed external storage command.
type OperationError struct {
	// Op names the storage operation, e.g. "create volume group".
	Op string
	// Command is the command line that failed.
	Command string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s (%s): %v", e.Op, e.Command, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsOperationError reports whether err is, or wraps, an OperationError.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}
