package mm

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/gomam/index"
)

// InsertMode selects what happens when an insertion needs a new node.
type InsertMode uint8

const (
	// NoBalance always creates the node.
	NoBalance InsertMode = iota
	// TryBalance first redistributes the objects of the receiving node and
	// its leaf children, then of its parent, and creates a node only when
	// neither fits into the existing pages.
	TryBalance
)

func (m InsertMode) String() string {
	switch m {
	case NoBalance:
		return "no-balance"
	case TryBalance:
		return "try-balance"
	default:
		return fmt.Sprintf("InsertMode(%d)", uint8(m))
	}
}

// ParseInsertMode parses the name of an insertion mode.
func ParseInsertMode(s string) (InsertMode, error) {
	for _, m := range []InsertMode{NoBalance, TryBalance} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown insert mode %q", s)
}

// SearchMode selects the traversal order of nearest-neighbor queries.
type SearchMode uint8

const (
	// SearchBestFirst visits subtrees by ascending lower bound.
	SearchBestFirst SearchMode = iota
	// SearchGuided descends depth first, entering the region that contains
	// the sample before the others.
	SearchGuided
)

func (m SearchMode) String() string {
	switch m {
	case SearchBestFirst:
		return "best-first"
	case SearchGuided:
		return "guided"
	default:
		return fmt.Sprintf("SearchMode(%d)", uint8(m))
	}
}

// ParseSearchMode parses the name of a search mode.
func ParseSearchMode(s string) (SearchMode, error) {
	for _, m := range []SearchMode{SearchBestFirst, SearchGuided} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown search mode %q", s)
}

// Option configures a Tree. Modes apply when the tree is created; a reopened
// tree keeps its persisted modes.
type Option func(*options)

type options struct {
	insert   InsertMode
	search   SearchMode
	treeOpts []index.Option
}

// WithInsertMode sets the insertion mode.
func WithInsertMode(m InsertMode) Option {
	return func(o *options) { o.insert = m }
}

// WithSearchMode sets the nearest-neighbor traversal.
func WithSearchMode(m SearchMode) Option {
	return func(o *options) { o.search = m }
}

// WithLogger sets the logger of the tree.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.treeOpts = append(o.treeOpts, index.WithLogger(l)) }
}
