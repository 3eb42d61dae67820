package vp

import (
	"log/slog"

	"github.com/hupe1980/gomam/index"
)

const (
	// DefaultBufferIncrement is the growth step of the insertion buffer.
	DefaultBufferIncrement = 1024

	// DefaultSeed seeds vantage point sampling.
	DefaultSeed = 1

	minSample     = 50
	maxSample     = 500
	samplePercent = 9
)

// Option configures a Tree.
type Option func(*options)

type options struct {
	increment int
	seed      uint64
	treeOpts  []index.Option
}

// WithBufferIncrement sets the growth step of the insertion buffer.
func WithBufferIncrement(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.increment = n
		}
	}
}

// WithSeed seeds vantage point sampling of a new tree. A reopened tree keeps
// its persisted seed.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithLogger sets the logger of the tree.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.treeOpts = append(o.treeOpts, index.WithLogger(l)) }
}
