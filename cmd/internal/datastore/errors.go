package datastore

import "fmt"

// GenericMessage is the only failure text callers see.
const GenericMessage = "An unknown error occurred!"

// Error is returned for every failed remote operation. Its message is always GenericMessage;
// Op, Collection, Status and Cause are kept for logs.
type Error struct {
	Op         string
	Collection string
	Status     int
	Cause      error
}

func (e *Error) Error() string { return GenericMessage }

func (e *Error) Unwrap() error { return e.Cause }

// Detail renders the fields for logging.
func (e *Error) Detail() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.Collection, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Cause)
}
