package database

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a requested record does not exist.
var ErrNotFound = errors.New("database: not found")

// SchemaError reports a failed schema migration. Nothing is scanned after
// one.
type SchemaError struct {
	Version int
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("initializing schema: %v", e.Err)
	}
	return fmt.Sprintf("schema migration %d: %v", e.Version, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError reports a failed reconciliation. The transaction has
// been rolled back when it is returned.
type PersistenceError struct {
	Stage     string
	Thing     string
	MessageID string
	Err       error
}

func (e *PersistenceError) Error() string {
	msg := "reconcile " + e.Stage
	if e.Thing != "" {
		msg += fmt.Sprintf(" thing=%q", e.Thing)
	}
	if e.MessageID != "" {
		msg += " message=" + e.MessageID
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
