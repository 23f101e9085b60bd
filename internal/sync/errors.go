package sync

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a mutation is submitted for an entity that already
// has one in flight. The command is rejected synchronously and the store is
// left untouched.
var ErrBusy = errors.New("entity has a mutation in flight")

// ValidationError is a local precondition failure. It is raised before any
// network call and never touches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}
