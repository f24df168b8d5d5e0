package dispatcher

import "fmt"

// ValidationError represents a fatal validation error: the job can never
// succeed, so it must not be retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// StorageError wraps a storage backend failure. These are transient: the
// backend is expected to recover, so the job is retried later.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
