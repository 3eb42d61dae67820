// Package gh implements the generalized-hyperplane tree.
//
// Each node holds up to two representatives. An object below a full node
// lives in the subtree of its nearer representative, and every
// representative records the covering radius of its subtree. Queries prune
// with both the covering radius and the hyperplane between the pair.
package gh

import (
	"math"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/queue"
	"github.com/hupe1980/gomam/result"
)

var (
	_ index.MetricAccessMethod[int] = (*Tree[int])(nil)
	_ index.PointQuerier[int]       = (*Tree[int])(nil)
)

// Tree is a GH tree.
type Tree[T any] struct {
	*index.Tree[T]
}

// New opens the tree stored in mgr, creating it when mgr holds no tree.
func New[T any](mgr pagestore.Manager, fn distance.Func[T], c codec.Codec[T], optFns ...index.Option) (*Tree[T], error) {
	base := index.NewTree(mgr, index.KindGH, fn, c, optFns...)
	if _, err := base.Open(nil); err != nil {
		return nil, err
	}
	return &Tree[T]{Tree: base}, nil
}

// Add inserts obj below the nearer representative of every full node on its
// path, widening covering radii on the way down.
func (t *Tree[T]) Add(obj T) error {
	if err := t.Ready(); err != nil {
		return err
	}
	b, err := t.Encode(obj, node.GHLayout.MaxObjectSize(t.Manager().PageSize()))
	if err != nil {
		return err
	}
	h := t.Header()

	if h.Root == 0 {
		id, err := t.newLeaf(b)
		if err != nil {
			return err
		}
		h.Root, h.NodeCount, h.Height = id, 1, 1
		h.ObjectCount++
		t.MarkDirty()
		return nil
	}

	for cur, depth := h.Root, uint32(1); cur != 0; depth++ {
		var next pagestore.PageID
		err := t.UpdatePage(cur, func(p *pagestore.Page) error {
			n, err := node.OpenGH(p.Data())
			if err != nil {
				return err
			}
			if open(n) && n.CanAdd(len(b)) {
				if n.NumberOfEntries() == 1 {
					first, err := t.Decode(n.UncheckedObject(0))
					if err != nil {
						return err
					}
					n.SetDistance(t.Distance(first, obj))
				}
				n.AddEntry(b)
				h.Height = max(h.Height, depth)
				return nil
			}

			i, d, err := t.nearer(n, obj)
			if err != nil {
				return err
			}
			radius, _ := n.Radius(i)
			if d > radius {
				_ = n.SetRadius(i, d)
			}
			child, _ := n.Child(i)
			if child != 0 {
				next = child
				return nil
			}
			id, err := t.newLeaf(b)
			if err != nil {
				return err
			}
			_ = n.SetChild(i, id)
			h.NodeCount++
			h.Height = max(h.Height, depth+1)
			return nil
		})
		if err != nil {
			return err
		}
		cur = next
	}
	h.ObjectCount++
	t.MarkDirty()
	return nil
}

// open reports whether a node still accepts representatives. Once a child
// exists the representatives are fixed.
func open(n *node.GH) bool {
	for i := range n.NumberOfEntries() {
		if c, _ := n.Child(i); c != 0 {
			return false
		}
	}
	return true
}

// nearer returns the representative closest to obj, the first one on ties.
func (t *Tree[T]) nearer(n *node.GH, obj T) (int, float64, error) {
	best, bestD := -1, math.Inf(1)
	for i := range n.NumberOfEntries() {
		rep, err := t.Decode(n.UncheckedObject(i))
		if err != nil {
			return 0, 0, err
		}
		if d := t.Distance(rep, obj); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD, nil
}

func (t *Tree[T]) newLeaf(b []byte) (pagestore.PageID, error) {
	return t.WithNewPage(func(p *pagestore.Page) error {
		n, err := node.FormatGH(p.Data())
		if err != nil {
			return err
		}
		n.AddEntry(b)
		return nil
	})
}

// visited is a node read during a query.
type visited struct {
	dists    [2]float64
	children [2]pagestore.PageID
	radii    [2]float64
	count    int
}

// lowerBound is the smallest distance from the sample to any object below
// representative i.
func (v *visited) lowerBound(i int) float64 {
	lb := v.dists[i] - v.radii[i]
	if v.count == 2 {
		lb = math.Max(lb, (v.dists[i]-v.dists[1-i])/2)
	}
	return math.Max(lb, 0)
}

// visit reads node id, reports every representative with its distance and
// returns the child links.
func (t *Tree[T]) visit(id pagestore.PageID, sample T, report func(obj T, d float64)) (visited, error) {
	var v visited
	err := t.WithPage(id, func(p *pagestore.Page) error {
		n, err := node.OpenGH(p.Data())
		if err != nil {
			return err
		}
		v.count = n.NumberOfEntries()
		for i := range v.count {
			obj, err := t.Decode(n.UncheckedObject(i))
			if err != nil {
				return err
			}
			v.dists[i] = t.Distance(sample, obj)
			v.children[i], _ = n.Child(i)
			v.radii[i], _ = n.Radius(i)
			report(obj, v.dists[i])
		}
		return nil
	})
	return v, err
}

// RangeQuery implements index.MetricAccessMethod.
func (t *Tree[T]) RangeQuery(sample T, radius float64) (*result.Result[T], error) {
	if err := t.Ready(); err != nil {
		return nil, err
	}
	res := result.New(result.Query[T]{Type: result.Range, Sample: sample, Radius: radius})
	stack := []pagestore.PageID{}
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
		for i := range v.count {
			if v.children[i] != 0 && v.lowerBound(i) <= radius {
				stack = append(stack, v.children[i])
			}
		}
	}
	return res, nil
}

// NearestQuery implements index.MetricAccessMethod.
func (t *Tree[T]) NearestQuery(sample T, k int, tie bool) (*result.Result[T], error) {
	if err := t.Ready(); err != nil {
		return nil, err
	}
	near := index.NewNearest(result.New(result.Query[T]{Type: result.KNN, Sample: sample, K: k, Tie: tie}), k, math.Inf(1))
	root := t.Header().Root
	if root == 0 || k <= 0 {
		return near.Result(), nil
	}

	frontier := queue.New(int(t.Header().Height) * 2)
	frontier.Add(queue.Entry{PageID: root})
	for {
		e, ok := frontier.Next()
		if !ok || e.Distance > near.Radius() {
			break
		}
		v, err := t.visit(e.PageID, sample, near.Offer)
		if err != nil {
			return nil, err
		}
		for i := range v.count {
			if v.children[i] == 0 {
				continue
			}
			if lb := v.lowerBound(i); lb <= near.Radius() {
				frontier.Add(queue.Entry{PageID: v.children[i], Distance: lb, Radius: v.radii[i]})
			}
		}
	}
	return near.Result(), nil
}

// PointQuery implements index.PointQuerier.
func (t *Tree[T]) PointQuery(sample T) (*result.Result[T], error) {
	res, err := t.RangeQuery(sample, 0)
	if err != nil {
		return nil, err
	}
	return res.Retag(result.Query[T]{Type: result.Point, Sample: sample}), nil
}
