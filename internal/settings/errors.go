package settings

import (
	"errors"
	"fmt"
)

// Manager errors.
var (
	// ErrDisposed is returned by operations on a disposed Manager.
	ErrDisposed = errors.New("settings manager disposed")

	// ErrNilStore is returned by New without a store.
	ErrNilStore = errors.New("settings store is nil")
)

// OperationError reports which Manager operation failed.
type OperationError struct {
	Op  string // Operation name (e.g., "export", "applyPreset")
	Err error  // Underlying error
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func disposedError(op string) error {
	return &OperationError{Op: op, Err: ErrDisposed}
}
