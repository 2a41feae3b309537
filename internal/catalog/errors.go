package catalog

import "fmt"

// StoreError wraps a local database failure inside a refresh unit. The
// transaction is rolled back before it surfaces.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("catalog %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError reports a detail entity that is still missing after a
// refresh attempt.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
