package gomam

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/index/dummy"
	"github.com/hupe1980/gomam/index/gh"
	"github.com/hupe1980/gomam/index/mm"
	"github.com/hupe1980/gomam/index/vp"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
)

// Kind identifies a tree.
type Kind = index.Kind

const (
	KindDummy = index.KindDummy
	KindGH    = index.KindGH
	KindMM    = index.KindMM
	KindVP    = index.KindVP
)

// ParseKind parses "dummy", "gh", "mm" or "vp".
func ParseKind(s string) (Kind, error) { return index.ParseKind(s) }

// QueryStats describes the cost of one query.
type QueryStats struct {
	Type      result.QueryType
	Results   int
	Distances uint64
	PageReads uint64
	Duration  time.Duration
}

// Stats describes an Index.
type Stats struct {
	Kind     Kind
	Objects  int
	Buffered int
	Nodes    int
	Height   int
	Pages    int
	Store    pagestore.Stats
}

type builder interface {
	Build() error
	Buffered() int
}

// Index is an instrumented metric access method. It serializes operations,
// so it is safe for concurrent use.
//
// The page manager belongs to the caller: Close releases the tree but keeps
// the manager open.
type Index[T any] struct {
	mu      sync.Mutex
	kind    Kind
	tree    index.MetricAccessMethod[T]
	eval    *distance.Evaluator[T]
	mgr     pagestore.Manager
	logger  *Logger
	metrics MetricsCollector
	closed  bool
}

// Open opens the tree of the given kind stored in mgr, creating it when mgr
// holds no tree.
func Open[T any](mgr pagestore.Manager, kind Kind, fn distance.Func[T], c codec.Codec[T], optFns ...Option) (*Index[T], error) {
	o := applyOptions(optFns)
	logger := o.logger.WithKind(kind)

	var (
		tree index.MetricAccessMethod[T]
		eval *distance.Evaluator[T]
		err  error
	)
	switch kind {
	case KindDummy:
		var t *dummy.Tree[T]
		t, err = dummy.New(mgr, fn, c, index.WithLogger(logger.Logger))
		if err == nil {
			tree, eval = t, t.Evaluator()
		}
	case KindGH:
		var t *gh.Tree[T]
		t, err = gh.New(mgr, fn, c, index.WithLogger(logger.Logger))
		if err == nil {
			tree, eval = t, t.Evaluator()
		}
	case KindMM:
		var t *mm.Tree[T]
		t, err = mm.New(mgr, fn, c,
			mm.WithInsertMode(o.insertMode),
			mm.WithSearchMode(o.searchMode),
			mm.WithLogger(logger.Logger),
		)
		if err == nil {
			tree, eval = t, t.Evaluator()
		}
	case KindVP:
		var t *vp.Tree[T]
		t, err = vp.New(mgr, fn, c,
			vp.WithSeed(o.seed),
			vp.WithBufferIncrement(o.bufferIncrement),
			vp.WithLogger(logger.Logger),
		)
		if err == nil {
			tree, eval = t, t.Evaluator()
		}
	default:
		return nil, &ErrUnknownKind{Kind: kind}
	}
	if err != nil {
		return nil, &OpError{Op: "open", Kind: kind, Err: err}
	}

	logger.Debug("index opened", "objects", tree.NumberOfObjects(), "nodes", tree.NodeCount())
	return &Index[T]{
		kind:    kind,
		tree:    tree,
		eval:    eval,
		mgr:     mgr,
		logger:  logger,
		metrics: o.metricsCollector,
	}, nil
}

// Kind returns the tree kind.
func (x *Index[T]) Kind() Kind { return x.kind }

// Tree returns the underlying tree.
func (x *Index[T]) Tree() index.MetricAccessMethod[T] { return x.tree }

// Supports reports whether the index answers queries of type q.
func (x *Index[T]) Supports(q result.QueryType) bool {
	return index.Supports(x.tree, q)
}

// Add inserts obj. A VP index buffers it until the next Build.
func (x *Index[T]) Add(ctx context.Context, obj T) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}

	start := time.Now()
	err := x.wrap("add", x.tree.Add(obj))
	x.metrics.RecordAdd(time.Since(start), err)
	x.logger.LogAdd(ctx, 1, err)
	return err
}

// AddAll inserts objs in order and stops at the first failure or when ctx is
// done.
func (x *Index[T]) AddAll(ctx context.Context, objs []T) error {
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.Add(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

// Build builds a VP index from its buffered and persisted objects. It is a
// no-op for the other trees.
func (x *Index[T]) Build(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}
	b, ok := x.tree.(builder)
	if !ok {
		return nil
	}

	start := time.Now()
	err := x.wrap("build", b.Build())
	d := time.Since(start)
	x.metrics.RecordBuild(x.tree.NumberOfObjects(), d, err)
	x.logger.LogBuild(ctx, x.tree.NumberOfObjects(), d, err)
	return err
}

// Search answers q and reports what the query cost.
func (x *Index[T]) Search(ctx context.Context, q result.Query[T]) (*result.Result[T], QueryStats, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	stats := QueryStats{Type: q.Type}
	if x.closed {
		return nil, stats, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if err := validate(q); err != nil {
		return nil, stats, err
	}

	x.eval.ResetCount()
	before := x.mgr.Stats()
	start := time.Now()

	res, err := x.dispatch(q)
	err = x.wrap(q.Type.String(), err)

	stats.Duration = time.Since(start)
	stats.Distances = x.eval.Count()
	stats.PageReads = x.mgr.Stats().Reads - before.Reads
	if res != nil {
		stats.Results = res.Len()
	}
	x.metrics.RecordQuery(stats, err)
	x.logger.LogQuery(ctx, stats, err)
	if err != nil {
		return nil, stats, err
	}
	return res, stats, nil
}

func (x *Index[T]) dispatch(q result.Query[T]) (*result.Result[T], error) {
	switch q.Type {
	case result.Range:
		return x.tree.RangeQuery(q.Sample, q.Radius)
	case result.KNN:
		return x.tree.NearestQuery(q.Sample, q.K, q.Tie)
	case result.Point:
		return index.PointQuery(x.tree, q.Sample)
	case result.Ring:
		return index.RingQuery(x.tree, q.Sample, q.InnerRadius, q.Radius)
	case result.KAndRange:
		return index.KAndRangeQuery(x.tree, q.Sample, q.Radius, q.K, q.Tie)
	case result.KOrRange:
		return index.KOrRangeQuery(x.tree, q.Sample, q.Radius, q.K, q.Tie)
	case result.KRing:
		return index.KRingQuery(x.tree, q.Sample, q.InnerRadius, q.Radius, q.K, q.Tie)
	default:
		return nil, ErrNotSupported
	}
}

func validate[T any](q result.Query[T]) error {
	switch q.Type {
	case result.KNN, result.KAndRange, result.KOrRange, result.KRing:
		if q.K < 1 {
			return ErrInvalidK
		}
	}
	switch q.Type {
	case result.Range, result.KAndRange, result.KOrRange:
		if q.Radius < 0 || math.IsNaN(q.Radius) {
			return ErrInvalidRadius
		}
	case result.Ring, result.KRing:
		if q.InnerRadius < 0 || math.IsNaN(q.InnerRadius) || math.IsNaN(q.Radius) || q.InnerRadius > q.Radius {
			return ErrInvalidRadius
		}
	}
	return nil
}

// RangeQuery returns every object within radius of sample.
func (x *Index[T]) RangeQuery(ctx context.Context, sample T, radius float64) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.Range, Sample: sample, Radius: radius})
	return res, err
}

// NearestQuery returns the k nearest objects to sample.
func (x *Index[T]) NearestQuery(ctx context.Context, sample T, k int, tie bool) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.KNN, Sample: sample, K: k, Tie: tie})
	return res, err
}

// PointQuery returns the objects equal to sample under the metric.
func (x *Index[T]) PointQuery(ctx context.Context, sample T) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.Point, Sample: sample})
	return res, err
}

// RingQuery returns the objects with inner < d <= outer.
func (x *Index[T]) RingQuery(ctx context.Context, sample T, inner, outer float64) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.Ring, Sample: sample, InnerRadius: inner, Radius: outer})
	return res, err
}

// KAndRangeQuery returns the k nearest objects within radius.
func (x *Index[T]) KAndRangeQuery(ctx context.Context, sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.KAndRange, Sample: sample, Radius: radius, K: k, Tie: tie})
	return res, err
}

// KOrRangeQuery returns the k nearest objects or every object within radius,
// whichever is larger.
func (x *Index[T]) KOrRangeQuery(ctx context.Context, sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.KOrRange, Sample: sample, Radius: radius, K: k, Tie: tie})
	return res, err
}

// KRingQuery returns the k nearest objects with inner < d <= outer.
func (x *Index[T]) KRingQuery(ctx context.Context, sample T, inner, outer float64, k int, tie bool) (*result.Result[T], error) {
	res, _, err := x.Search(ctx, result.Query[T]{Type: result.KRing, Sample: sample, InnerRadius: inner, Radius: outer, K: k, Tie: tie})
	return res, err
}

// Stats describes the tree and its page manager.
func (x *Index[T]) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stats()
}

func (x *Index[T]) stats() Stats {
	s := Stats{
		Kind:    x.kind,
		Objects: x.tree.NumberOfObjects(),
		Nodes:   x.tree.NodeCount(),
		Height:  x.tree.Height(),
		Pages:   x.mgr.PageCount(),
		Store:   x.mgr.Stats(),
	}
	if b, ok := x.tree.(builder); ok {
		s.Buffered = b.Buffered()
	}
	return s
}

// Flush persists the tree header without closing the index.
func (x *Index[T]) Flush() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}
	return x.wrap("flush", x.tree.WriteHeader())
}

// Close persists the tree header and releases the tree. It is idempotent.
func (x *Index[T]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	s := x.stats()
	err := x.wrap("close", x.tree.Close())
	x.closed = true
	x.logger.LogClose(context.Background(), s, err)
	return err
}
