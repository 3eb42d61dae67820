package pagestore

import (
	"errors"
	"fmt"
)

var (
	// ErrPageNotFound is returned for ids that were never allocated or were disposed.
	ErrPageNotFound = errors.New("page not found")

	// ErrHeaderPage is returned when the header page is used where a data page is expected.
	ErrHeaderPage = errors.New("header page cannot be used as data page")

	// ErrPageSize is returned when a page does not match the manager's page size.
	ErrPageSize = errors.New("page size mismatch")

	// ErrCorruptFile is returned when a backing file has an invalid preamble.
	ErrCorruptFile = errors.New("corrupt page file")

	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("page manager is closed")

	// ErrUnknownClient is returned by the page server for unregistered clients.
	ErrUnknownClient = errors.New("unknown client")
)

// PageError records the page and operation that failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type PageError struct {
	Op  string
	ID  PageID
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s page %d: %v", e.Op, e.ID, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

func pageError(op string, id PageID, err error) error {
	return &PageError{Op: op, ID: id, Err: err}
}
