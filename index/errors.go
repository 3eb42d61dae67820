package index

import "errors"

var (
	// ErrNotReady is returned by operations on a tree without a valid header.
	ErrNotReady = errors.New("tree is not ready")

	// ErrCorruptHeader is returned when page 0 does not hold a tree header.
	ErrCorruptHeader = errors.New("corrupt tree header")

	// ErrKindMismatch is returned when page 0 belongs to another tree kind.
	ErrKindMismatch = errors.New("tree kind mismatch")

	// ErrNotSupported is returned for queries a tree does not implement.
	ErrNotSupported = errors.New("query not supported")

	// ErrObjectTooLarge is returned when an encoded object cannot fit in an empty node.
	ErrObjectTooLarge = errors.New("object too large for page")

	// ErrNotBuilt is returned by queries on a tree that must be built first.
	ErrNotBuilt = errors.New("tree is not built")
)
