package db

import "fmt"

// Op identifies the store operation that failed.
type Op string

// Store operations.
const (
	OpListReplace  Op = "list_replace"
	OpListRange    Op = "list_range"
	OpListRemoveAt Op = "list_remove_at"
	OpDel          Op = "del"
	OpPing         Op = "ping"
)

// Error wraps a driver error with the operation that produced it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
