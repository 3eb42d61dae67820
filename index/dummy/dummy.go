// Package dummy implements a sequential scan over a linked list of pages.
//
// It is the reference answer for every query kind and supports all of them.
package dummy

import (
	"math"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
)

var (
	_ index.MetricAccessMethod[int] = (*Tree[int])(nil)
	_ index.PointQuerier[int]       = (*Tree[int])(nil)
	_ index.RingQuerier[int]        = (*Tree[int])(nil)
	_ index.KAndRangeQuerier[int]   = (*Tree[int])(nil)
	_ index.KOrRangeQuerier[int]    = (*Tree[int])(nil)
	_ index.KRingQuerier[int]       = (*Tree[int])(nil)
)

// Tree stores objects in insertion order.
type Tree[T any] struct {
	*index.Tree[T]
}

// New opens the tree stored in mgr, creating it when mgr holds no tree.
func New[T any](mgr pagestore.Manager, fn distance.Func[T], c codec.Codec[T], optFns ...index.Option) (*Tree[T], error) {
	base := index.NewTree(mgr, index.KindDummy, fn, c, optFns...)
	if _, err := base.Open(nil); err != nil {
		return nil, err
	}
	return &Tree[T]{Tree: base}, nil
}

// Add appends obj to the last page, linking a new page when it is full.
func (t *Tree[T]) Add(obj T) error {
	if err := t.Ready(); err != nil {
		return err
	}
	b, err := t.Encode(obj, node.DummyLayout.MaxObjectSize(t.Manager().PageSize()))
	if err != nil {
		return err
	}
	h := t.Header()

	if h.LastPage != 0 {
		added := false
		var next pagestore.PageID
		err := t.UpdatePage(h.LastPage, func(p *pagestore.Page) error {
			n, err := node.OpenDummy(p.Data())
			if err != nil {
				return err
			}
			if _, added = n.AddEntry(b); added {
				return nil
			}
			next, err = t.newPage(b)
			if err != nil {
				return err
			}
			n.SetNext(next)
			return nil
		})
		if err != nil {
			return err
		}
		if !added {
			h.LastPage = next
			h.NodeCount++
			h.Height++
		}
	} else {
		id, err := t.newPage(b)
		if err != nil {
			return err
		}
		h.Root, h.LastPage = id, id
		h.NodeCount, h.Height = 1, 1
	}
	h.ObjectCount++
	t.MarkDirty()
	return nil
}

func (t *Tree[T]) newPage(b []byte) (pagestore.PageID, error) {
	return t.WithNewPage(func(p *pagestore.Page) error {
		n, err := node.FormatDummy(p.Data())
		if err != nil {
			return err
		}
		n.AddEntry(b)
		return nil
	})
}

// scan visits every stored object with its distance to sample.
func (t *Tree[T]) scan(sample T, visit func(obj T, d float64)) error {
	if err := t.Ready(); err != nil {
		return err
	}
	for id := t.Header().Root; id != 0; {
		err := t.WithPage(id, func(p *pagestore.Page) error {
			n, err := node.OpenDummy(p.Data())
			if err != nil {
				return err
			}
			for i := range n.NumberOfEntries() {
				obj, err := t.Decode(n.UncheckedObject(i))
				if err != nil {
					return err
				}
				visit(obj, t.Distance(sample, obj))
			}
			id = n.Next()
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RangeQuery implements index.MetricAccessMethod.
func (t *Tree[T]) RangeQuery(sample T, radius float64) (*result.Result[T], error) {
	res := result.New(result.Query[T]{Type: result.Range, Sample: sample, Radius: radius})
	err := t.scan(sample, func(obj T, d float64) {
		if d <= radius {
			res.AddPair(obj, d)
		}
	})
	return res, err
}

// NearestQuery implements index.MetricAccessMethod.
func (t *Tree[T]) NearestQuery(sample T, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KNN, Sample: sample, K: k, Tie: tie}
	return t.nearest(q, math.Inf(1), func(float64) bool { return true })
}

// PointQuery implements index.PointQuerier.
func (t *Tree[T]) PointQuery(sample T) (*result.Result[T], error) {
	res, err := t.RangeQuery(sample, 0)
	if err != nil {
		return nil, err
	}
	return res.Retag(result.Query[T]{Type: result.Point, Sample: sample}), nil
}

// RingQuery implements index.RingQuerier.
func (t *Tree[T]) RingQuery(sample T, inner, outer float64) (*result.Result[T], error) {
	res := result.New(result.Query[T]{Type: result.Ring, Sample: sample, Radius: outer, InnerRadius: inner})
	err := t.scan(sample, func(obj T, d float64) {
		if index.InRing(d, inner, outer) {
			res.AddPair(obj, d)
		}
	})
	return res, err
}

// KAndRangeQuery implements index.KAndRangeQuerier.
func (t *Tree[T]) KAndRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KAndRange, Sample: sample, K: k, Radius: radius, Tie: tie}
	return t.nearest(q, radius, func(float64) bool { return true })
}

// KOrRangeQuery implements index.KOrRangeQuerier.
func (t *Tree[T]) KOrRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KOrRange, Sample: sample, K: k, Radius: radius, Tie: tie}
	near := index.NewNearest(result.New(q), k, math.Inf(1))
	var within []result.Pair[T]
	err := t.scan(sample, func(obj T, d float64) {
		near.Offer(obj, d)
		if d <= radius {
			within = append(within, result.Pair[T]{Object: obj, Distance: d})
		}
	})
	if err != nil {
		return nil, err
	}
	res := near.Result()
	if res.Len() > 0 && res.MaximumDistance() > radius {
		// the k nearest already include every object within radius
		return res, nil
	}
	out := result.New(q)
	for _, p := range within {
		out.AddPair(p.Object, p.Distance)
	}
	return out, nil
}

// KRingQuery implements index.KRingQuerier.
func (t *Tree[T]) KRingQuery(sample T, inner, outer float64, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KRing, Sample: sample, K: k, Radius: outer, InnerRadius: inner, Tie: tie}
	return t.nearest(q, outer, func(d float64) bool { return d > inner })
}

func (t *Tree[T]) nearest(q result.Query[T], limit float64, keep func(float64) bool) (*result.Result[T], error) {
	near := index.NewNearest(result.New(q), q.K, limit)
	err := t.scan(q.Sample, func(obj T, d float64) {
		if keep(d) {
			near.Offer(obj, d)
		}
	})
	if err != nil {
		return nil, err
	}
	return near.Result(), nil
}
