package vp

import (
	"math"

	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/queue"
	"github.com/hupe1980/gomam/result"
)

func (t *Tree[T]) queryable() error {
	if err := t.Ready(); err != nil {
		return err
	}
	if !t.Header().Built {
		return index.ErrNotBuilt
	}
	return nil
}

// visited is a node read during a query.
type visited struct {
	d           float64
	radius      float64
	left, right pagestore.PageID
}

// bounds returns the lower bounds of the left and right subtrees.
func (v *visited) bounds() (float64, float64) {
	return math.Max(v.d-v.radius, 0), math.Max(v.radius-v.d, 0)
}

func (t *Tree[T]) visit(id pagestore.PageID, sample T, report func(obj T, d float64)) (visited, error) {
	var v visited
	err := t.WithPage(id, func(p *pagestore.Page) error {
		n, err := node.OpenVP(p.Data())
		if err != nil {
			return err
		}
		obj, err := t.Decode(n.UncheckedObject(0))
		if err != nil {
			return err
		}
		v.d = t.Distance(sample, obj)
		v.radius, v.left, v.right = n.Radius(), n.Left(), n.Right()
		report(obj, v.d)
		return nil
	})
	return v, err
}

// RangeQuery implements index.MetricAccessMethod.
func (t *Tree[T]) RangeQuery(sample T, radius float64) (*result.Result[T], error) {
	if err := t.queryable(); err != nil {
		return nil, err
	}
	res := result.New(result.Query[T]{Type: result.Range, Sample: sample, Radius: radius})
	var stack []pagestore.PageID
	if root := t.Header().Root; root != 0 {
		stack = append(stack, root)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v, err := t.visit(id, sample, func(obj T, d float64) {
			if d <= radius {
				res.AddPair(obj, d)
			}
		})
		if err != nil {
			return nil, err
		}
		lbLeft, lbRight := v.bounds()
		if v.left != 0 && lbLeft <= radius {
			stack = append(stack, v.left)
		}
		if v.right != 0 && lbRight <= radius {
			stack = append(stack, v.right)
		}
	}
	return res, nil
}

// NearestQuery implements index.MetricAccessMethod.
func (t *Tree[T]) NearestQuery(sample T, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KNN, Sample: sample, K: k, Tie: tie}
	return t.nearest(q, math.Inf(1))
}

// PointQuery implements index.PointQuerier.
func (t *Tree[T]) PointQuery(sample T) (*result.Result[T], error) {
	res, err := t.RangeQuery(sample, 0)
	if err != nil {
		return nil, err
	}
	return res.Retag(result.Query[T]{Type: result.Point, Sample: sample}), nil
}

// KAndRangeQuery implements index.KAndRangeQuerier.
func (t *Tree[T]) KAndRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KAndRange, Sample: sample, K: k, Radius: radius, Tie: tie}
	return t.nearest(q, radius)
}

// KOrRangeQuery implements index.KOrRangeQuerier.
func (t *Tree[T]) KOrRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q := result.Query[T]{Type: result.KOrRange, Sample: sample, K: k, Radius: radius, Tie: tie}
	res, err := t.nearest(q, math.Inf(1))
	if err != nil {
		return nil, err
	}
	if res.Len() > 0 && res.MaximumDistance() > radius {
		// the k nearest already include every object within radius
		return res, nil
	}
	within, err := t.RangeQuery(sample, radius)
	if err != nil {
		return nil, err
	}
	return within.Retag(q), nil
}

func (t *Tree[T]) nearest(q result.Query[T], limit float64) (*result.Result[T], error) {
	if err := t.queryable(); err != nil {
		return nil, err
	}
	near := index.NewNearest(result.New(q), q.K, limit)
	root := t.Header().Root
	if root == 0 || q.K <= 0 {
		return near.Result(), nil
	}

	frontier := queue.New(2 * int(t.Header().Height))
	frontier.Add(queue.Entry{PageID: root})
	for {
		e, ok := frontier.Next()
		if !ok || e.Distance > near.Radius() {
			break
		}
		v, err := t.visit(e.PageID, q.Sample, near.Offer)
		if err != nil {
			return nil, err
		}
		lbLeft, lbRight := v.bounds()
		if v.left != 0 && lbLeft <= near.Radius() {
			frontier.Add(queue.Entry{PageID: v.left, Distance: lbLeft, Radius: v.radius})
		}
		if v.right != 0 && lbRight <= near.Radius() {
			frontier.Add(queue.Entry{PageID: v.right, Distance: lbRight})
		}
	}
	return near.Result(), nil
}
