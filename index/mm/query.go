package mm

import (
	"cmp"
	"math"
	"slices"

	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/queue"
	"github.com/hupe1980/gomam/result"
)

// scanned is a node visited by a query.
type scanned struct {
	pivots   int
	r        float64
	dq       [2]float64
	children [node.NumRegions]pagestore.PageID
}

func (s *scanned) lowerBound(reg int) float64 {
	return lowerBound(s.pivots, s.r, s.dq, reg)
}

// visit reads node id and reports every pivot with its distance to sample.
func (t *Tree[T]) visit(id pagestore.PageID, sample T, report func(obj T, d float64)) (scanned, error) {
	var s scanned
	err := t.WithPage(id, func(p *pagestore.Page) error {
		n, err := node.OpenMM(p.Data())
		if err != nil {
			return err
		}
		s.pivots = n.NumberOfEntries()
		s.r = n.Distance()
		for i := range s.pivots {
			obj, err := t.Decode(n.UncheckedObject(i))
			if err != nil {
				return err
			}
			s.dq[i] = t.Distance(sample, obj)
			report(obj, s.dq[i])
		}
		for reg := range node.NumRegions {
			s.children[reg], _ = n.Child(reg)
		}
		return nil
	})
	return s, err
}

// walk visits every node that may hold an object with keep(d) true, where
// the candidates of a subtree are bounded below by its lower bound and
// above by radius.
func (t *Tree[T]) walk(sample T, radius float64, report func(obj T, d float64)) error {
	if err := t.Ready(); err != nil {
		return err
	}
	var stack []pagestore.PageID
	if root := t.Header().Root; root != 0 {
		stack = append(stack, root)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s, err := t.visit(id, sample, report)
		if err != nil {
			return err
		}
		for reg, child := range s.children {
			if child != 0 && s.lowerBound(reg) <= radius {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

// RangeQuery implements index.MetricAccessMethod.
func (t *Tree[T]) RangeQuery(sample T, radius float64) (*result.Result[T], error) {
	res := result.New(result.Query[T]{Type: result.Range, Sample: sample, Radius: radius})
	err := t.walk(sample, radius, func(obj T, d float64) {
		if d <= radius {
			res.AddPair(obj, d)
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
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
	err := t.walk(sample, outer, func(obj T, d float64) {
		if index.InRing(d, inner, outer) {
			res.AddPair(obj, d)
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NearestQuery implements index.MetricAccessMethod using the tree's search mode.
func (t *Tree[T]) NearestQuery(sample T, k int, tie bool) (*result.Result[T], error) {
	if err := t.Ready(); err != nil {
		return nil, err
	}
	near := index.NewNearest(result.New(result.Query[T]{Type: result.KNN, Sample: sample, K: k, Tie: tie}), k, math.Inf(1))
	root := t.Header().Root
	if root == 0 || k <= 0 {
		return near.Result(), nil
	}
	var err error
	if t.SearchMode() == SearchGuided {
		err = t.guided(root, sample, near)
	} else {
		err = t.bestFirst(root, sample, near)
	}
	if err != nil {
		return nil, err
	}
	return near.Result(), nil
}

func (t *Tree[T]) bestFirst(root pagestore.PageID, sample T, near *index.Nearest[T]) error {
	frontier := queue.New(4 * int(t.Header().Height))
	frontier.Add(queue.Entry{PageID: root})
	for {
		e, ok := frontier.Next()
		if !ok || e.Distance > near.Radius() {
			return nil
		}
		s, err := t.visit(e.PageID, sample, near.Offer)
		if err != nil {
			return err
		}
		for reg, child := range s.children {
			if child == 0 {
				continue
			}
			if lb := s.lowerBound(reg); lb <= near.Radius() {
				frontier.Add(queue.Entry{PageID: child, Distance: lb})
			}
		}
	}
}

// guided descends depth first. At each node the region holding the sample
// comes first, the other regions follow by ascending lower bound.
func (t *Tree[T]) guided(id pagestore.PageID, sample T, near *index.Nearest[T]) error {
	s, err := t.visit(id, sample, near.Offer)
	if err != nil {
		return err
	}
	own := regionOf(s.pivots, s.r, s.dq[0], s.dq[1])

	type candidate struct {
		reg int
		lb  float64
	}
	var order []candidate
	for reg, child := range s.children {
		if child != 0 {
			order = append(order, candidate{reg: reg, lb: s.lowerBound(reg)})
		}
	}
	slices.SortStableFunc(order, func(a, b candidate) int {
		if (a.reg == own) != (b.reg == own) {
			if a.reg == own {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.lb, b.lb)
	})

	for _, c := range order {
		if c.lb > near.Radius() {
			continue
		}
		if err := t.guided(s.children[c.reg], sample, near); err != nil {
			return err
		}
	}
	return nil
}
