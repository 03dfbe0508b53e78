package domain

import "fmt"

// ValidationError reports rejected caller input (bad or missing image,
// oversized upload, malformed parameters).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PersistenceError wraps a durable-store read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup for an entry id that does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("waste entry %d not found", e.ID)
}
