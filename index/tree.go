package index

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
)

// MetricAccessMethod is the contract shared by every tree.
type MetricAccessMethod[T any] interface {
	// Add inserts an object.
	Add(obj T) error

	// RangeQuery returns every object within radius of sample.
	RangeQuery(sample T, radius float64) (*result.Result[T], error)

	// NearestQuery returns the k nearest objects to sample. With tie set,
	// objects at the same distance as the k-th are returned as well.
	NearestQuery(sample T, k int, tie bool) (*result.Result[T], error)

	Height() int
	NumberOfObjects() int
	NodeCount() int

	// WriteHeader persists the tree header.
	WriteHeader() error

	// Close persists a modified header and releases the header page.
	// The page manager stays open.
	Close() error
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateClosed
)

// Option configures a Tree.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger of the tree.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Tree is the engine embedded by every metric access method. It is not safe
// for concurrent use.
type Tree[T any] struct {
	mgr    pagestore.Manager
	eval   *distance.Evaluator[T]
	codec  codec.Codec[T]
	kind   Kind
	logger *slog.Logger

	page  *pagestore.Page
	hdr   Header
	state state
	dirty bool
}

// NewTree creates an uninitialized tree of kind over mgr.
func NewTree[T any](mgr pagestore.Manager, kind Kind, fn distance.Func[T], c codec.Codec[T], optFns ...Option) *Tree[T] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Tree[T]{
		mgr:    mgr,
		eval:   distance.NewEvaluator(fn),
		codec:  c,
		kind:   kind,
		logger: o.logger.With("tree", kind.String()),
	}
}

// Open loads the header, creating a new tree when page 0 is blank.
// It reports whether the tree was created.
func (t *Tree[T]) Open(init func(*Header)) (bool, error) {
	if err := t.LoadHeader(); err != nil {
		return false, err
	}
	if t.state == stateReady {
		return false, nil
	}
	return true, t.Create(init)
}

// LoadHeader reads page 0 once. A blank page leaves the tree uninitialized.
func (t *Tree[T]) LoadHeader() error {
	if t.state == stateClosed {
		return ErrNotReady
	}
	if t.page != nil {
		return nil
	}
	p, err := t.mgr.HeaderPage()
	if err != nil {
		return fmt.Errorf("load header: %w", err)
	}
	if len(p.Data()) < HeaderSize {
		t.mgr.ReleasePage(p)
		return fmt.Errorf("%w: header page of %d bytes", ErrCorruptHeader, len(p.Data()))
	}
	if isBlank(p.Data()) {
		t.page = p
		return nil
	}
	var h Header
	if err := h.Decode(p.Data()); err != nil {
		t.mgr.ReleasePage(p)
		return err
	}
	if h.Kind != t.kind {
		t.mgr.ReleasePage(p)
		return fmt.Errorf("%w: page 0 holds a %s tree, want %s", ErrKindMismatch, h.Kind, t.kind)
	}
	t.page, t.hdr, t.state = p, h, stateReady
	t.logger.Debug("header loaded", "root", h.Root, "objects", h.ObjectCount, "nodes", h.NodeCount)
	return nil
}

// Create writes a default header and makes the tree ready.
// init may adjust the defaults before they are written.
func (t *Tree[T]) Create(init func(*Header)) error {
	if err := t.LoadHeader(); err != nil {
		return err
	}
	t.hdr = Header{Kind: t.kind}
	if init != nil {
		init(&t.hdr)
	}
	t.state = stateReady
	t.dirty = true
	t.logger.Debug("tree created")
	return t.WriteHeader()
}

// Ready returns ErrNotReady unless the header is loaded and valid.
func (t *Tree[T]) Ready() error {
	if t.state != stateReady {
		return ErrNotReady
	}
	return nil
}

// Header returns the cached header. Callers that modify it must call MarkDirty.
func (t *Tree[T]) Header() *Header { return &t.hdr }

// MarkDirty records that the cached header differs from page 0.
func (t *Tree[T]) MarkDirty() { t.dirty = true }

// Dirty reports whether the cached header has unsaved changes.
func (t *Tree[T]) Dirty() bool { return t.dirty }

// WriteHeader persists the cached header.
func (t *Tree[T]) WriteHeader() error {
	if err := t.Ready(); err != nil {
		return err
	}
	if err := t.hdr.Encode(t.page.Data()); err != nil {
		return err
	}
	if err := t.mgr.WriteHeaderPage(t.page); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	t.dirty = false
	return nil
}

// Close flushes a dirty header and releases the header page.
func (t *Tree[T]) Close() error {
	if t.state == stateClosed {
		return nil
	}
	var err error
	if t.state == stateReady && t.dirty {
		err = t.WriteHeader()
	}
	if t.page != nil {
		t.mgr.ReleasePage(t.page)
		t.page = nil
	}
	t.state = stateClosed
	return err
}

// Kind returns the tree kind.
func (t *Tree[T]) Kind() Kind { return t.kind }

// Height returns the number of levels.
func (t *Tree[T]) Height() int { return int(t.hdr.Height) }

// NumberOfObjects returns the number of stored objects.
func (t *Tree[T]) NumberOfObjects() int { return int(t.hdr.ObjectCount) }

// NodeCount returns the number of node pages.
func (t *Tree[T]) NodeCount() int { return int(t.hdr.NodeCount) }

// Manager returns the page manager.
func (t *Tree[T]) Manager() pagestore.Manager { return t.mgr }

// Evaluator returns the counting distance evaluator.
func (t *Tree[T]) Evaluator() *distance.Evaluator[T] { return t.eval }

// Logger returns the tree logger.
func (t *Tree[T]) Logger() *slog.Logger { return t.logger }

// Distance evaluates and counts the distance between a and b.
func (t *Tree[T]) Distance(a, b T) float64 { return t.eval.Distance(a, b) }

// Encode serializes obj and checks that it fits in an empty node of layout
// maxObject bytes.
func (t *Tree[T]) Encode(obj T, maxObject int) ([]byte, error) {
	b, err := t.codec.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	if len(b) > maxObject {
		return nil, fmt.Errorf("%w: %d bytes, at most %d", ErrObjectTooLarge, len(b), maxObject)
	}
	return b, nil
}

// Decode deserializes an object read from a node.
func (t *Tree[T]) Decode(b []byte) (T, error) {
	obj, err := t.codec.Unmarshal(b)
	if err != nil {
		return obj, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

// WithPage reads page id, runs fn and releases the page on every path.
func (t *Tree[T]) WithPage(id pagestore.PageID, fn func(p *pagestore.Page) error) error {
	p, err := t.mgr.ReadPage(id)
	if err != nil {
		return err
	}
	defer t.mgr.ReleasePage(p)
	return fn(p)
}

// UpdatePage is WithPage followed by a write when fn succeeds.
func (t *Tree[T]) UpdatePage(id pagestore.PageID, fn func(p *pagestore.Page) error) error {
	return t.WithPage(id, func(p *pagestore.Page) error {
		if err := fn(p); err != nil {
			return err
		}
		return t.mgr.WritePage(p)
	})
}

// WithNewPage allocates a page, runs fn and writes it. The page is disposed
// when fn fails.
func (t *Tree[T]) WithNewPage(fn func(p *pagestore.Page) error) (pagestore.PageID, error) {
	p, err := t.mgr.AllocatePage()
	if err != nil {
		return 0, err
	}
	id := p.ID()
	if err := fn(p); err != nil {
		return 0, errors.Join(err, t.mgr.DisposePage(p))
	}
	if err := t.mgr.WritePage(p); err != nil {
		return 0, errors.Join(err, t.mgr.DisposePage(p))
	}
	t.mgr.ReleasePage(p)
	return id, nil
}

// DisposePage frees page id.
func (t *Tree[T]) DisposePage(id pagestore.PageID) error {
	p, err := t.mgr.ReadPage(id)
	if err != nil {
		return err
	}
	return t.mgr.DisposePage(p)
}
