package gomam

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidRadius is returned for negative or NaN radii and inverted rings.
	ErrInvalidRadius = errors.New("invalid radius")

	// ErrNotSupported is returned for queries the tree cannot answer.
	ErrNotSupported = index.ErrNotSupported

	// ErrNotBuilt is returned by queries on a VP index that was never built.
	ErrNotBuilt = index.ErrNotBuilt

	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("index is closed")
)

// ErrUnknownKind indicates a tree kind Open does not know.
type ErrUnknownKind struct {
	Kind Kind
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown tree kind: %s", e.Kind)
}

// OpError records the operation and tree kind behind a failure.
//
// The underlying error can be accessed via errors.Unwrap.
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsCorrupt reports whether err was caused by malformed pages or headers.
func IsCorrupt(err error) bool {
	return errors.Is(err, index.ErrCorruptHeader) ||
		errors.Is(err, node.ErrCorruptNode) ||
		errors.Is(err, pagestore.ErrCorruptFile)
}

func (x *Index[T]) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: x.kind, Err: err}
}
