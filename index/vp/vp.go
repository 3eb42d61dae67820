// Package vp implements the vantage-point tree.
//
// The tree is built in bulk: Add only buffers objects and MakeVPTree
// partitions everything, persisted objects included, into a balanced tree.
// Each node holds a vantage point and the median distance of a sample to it;
// the left subtree holds the objects within that radius, the right subtree
// the objects beyond it.
package vp

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
)

var (
	_ index.MetricAccessMethod[int] = (*Tree[int])(nil)
	_ index.PointQuerier[int]       = (*Tree[int])(nil)
	_ index.KAndRangeQuerier[int]   = (*Tree[int])(nil)
	_ index.KOrRangeQuerier[int]    = (*Tree[int])(nil)
)

type item[T any] struct {
	obj T
	enc []byte
}

// Tree is a VP tree.
type Tree[T any] struct {
	*index.Tree[T]
	buffer    []item[T]
	increment int
}

// New opens the tree stored in mgr, creating it when mgr holds no tree.
func New[T any](mgr pagestore.Manager, fn distance.Func[T], c codec.Codec[T], optFns ...Option) (*Tree[T], error) {
	o := options{increment: DefaultBufferIncrement, seed: DefaultSeed}
	for _, fn := range optFns {
		fn(&o)
	}
	base := index.NewTree(mgr, index.KindVP, fn, c, o.treeOpts...)
	if _, err := base.Open(func(h *index.Header) { h.Seed = o.seed }); err != nil {
		return nil, err
	}
	return &Tree[T]{Tree: base, increment: o.increment}, nil
}

// Add buffers obj. It is not visible to queries before the next MakeVPTree.
func (t *Tree[T]) Add(obj T) error {
	if err := t.Ready(); err != nil {
		return err
	}
	b, err := t.Encode(obj, node.VPLayout.MaxObjectSize(t.Manager().PageSize()))
	if err != nil {
		return err
	}
	if len(t.buffer) == cap(t.buffer) {
		t.buffer = slices.Grow(t.buffer, t.increment)
	}
	t.buffer = append(t.buffer, item[T]{obj: obj, enc: b})
	return nil
}

// Buffered returns the number of objects waiting for MakeVPTree.
func (t *Tree[T]) Buffered() int { return len(t.buffer) }

// Built reports whether MakeVPTree has run.
func (t *Tree[T]) Built() bool { return t.Header().Built }

// NumberOfObjects returns the persisted and buffered objects.
func (t *Tree[T]) NumberOfObjects() int {
	return t.Tree.NumberOfObjects() + len(t.buffer)
}

// Build implements indextest.Builder and runs MakeVPTree.
func (t *Tree[T]) Build() error { return t.MakeVPTree() }

// MakeVPTree rebuilds the tree from the persisted and buffered objects.
// Old pages are disposed once the new tree is written.
func (t *Tree[T]) MakeVPTree() error {
	if err := t.Ready(); err != nil {
		return err
	}
	h := t.Header()

	items, old, err := t.collect(h.Root)
	if err != nil {
		return err
	}
	items = append(items, t.buffer...)

	b := builder[T]{t: t, rng: rand.New(rand.NewSource(int64(h.Seed)))}
	root, height, err := b.build(items)
	if err != nil {
		return err
	}
	for _, id := range old {
		if err := t.DisposePage(id); err != nil {
			return err
		}
	}

	h.Root = root
	h.Height = height
	h.NodeCount = b.nodes
	h.ObjectCount = uint64(len(items))
	h.Built = true
	t.MarkDirty()
	t.buffer = nil
	t.Logger().Debug("vp tree built", "objects", len(items), "nodes", b.nodes, "height", height)
	return nil
}

// Close warns about buffered objects that were never built and closes the tree.
func (t *Tree[T]) Close() error {
	if len(t.buffer) > 0 {
		t.Logger().Warn("closing with unbuilt objects", "dropped", len(t.buffer))
		t.buffer = nil
	}
	return t.Tree.Close()
}

// collect decodes every persisted object and lists the pages holding them.
func (t *Tree[T]) collect(root pagestore.PageID) ([]item[T], []pagestore.PageID, error) {
	var items []item[T]
	var pages []pagestore.PageID
	stack := []pagestore.PageID{}
	if root != 0 {
		stack = append(stack, root)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pages = append(pages, id)
		err := t.WithPage(id, func(p *pagestore.Page) error {
			n, err := node.OpenVP(p.Data())
			if err != nil {
				return err
			}
			if n.NumberOfEntries() == 1 {
				enc := append([]byte(nil), n.UncheckedObject(0)...)
				obj, err := t.Decode(enc)
				if err != nil {
					return err
				}
				items = append(items, item[T]{obj: obj, enc: enc})
			}
			for _, c := range []pagestore.PageID{n.Left(), n.Right()} {
				if c != 0 {
					stack = append(stack, c)
				}
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return items, pages, nil
}

// sampleSize returns clamp(9% of n, 50, 500), or n when n is smaller.
func sampleSize(n int) int {
	s := n * samplePercent / 100
	s = max(s, minSample)
	s = min(s, maxSample)
	return min(s, n)
}

type builder[T any] struct {
	t     *Tree[T]
	rng   *rand.Rand
	nodes uint32
}

func (b *builder[T]) sample(n int) []int {
	s := sampleSize(n)
	if s == n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return b.rng.Perm(n)[:s]
}

// vantage picks the sample member whose distances to the rest of the sample
// spread the most.
func (b *builder[T]) vantage(items []item[T]) int {
	if len(items) < 3 {
		return 0
	}
	sample := b.sample(len(items))
	best, bestSpread := sample[0], math.Inf(-1)
	ds := make([]float64, 0, len(sample))
	for _, c := range sample {
		ds = ds[:0]
		for _, o := range sample {
			if o != c {
				ds = append(ds, b.t.Distance(items[c].obj, items[o].obj))
			}
		}
		if spread := stat.Variance(ds, nil); spread > bestSpread {
			best, bestSpread = c, spread
		}
	}
	return best
}

func (b *builder[T]) build(items []item[T]) (pagestore.PageID, uint32, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}
	v := b.vantage(items)
	items[0], items[v] = items[v], items[0]
	vp, rest := items[0], items[1:]

	var radius float64
	var left, right []item[T]
	if len(rest) > 0 {
		ds := make([]float64, len(rest))
		for i, o := range rest {
			ds[i] = b.t.Distance(vp.obj, o.obj)
		}
		sample := b.sample(len(rest))
		sd := make([]float64, len(sample))
		for i, j := range sample {
			sd[i] = ds[j]
		}
		slices.Sort(sd)
		radius = stat.Quantile(0.5, stat.Empirical, sd, nil)

		for i, o := range rest {
			if ds[i] <= radius {
				left = append(left, o)
			} else {
				right = append(right, o)
			}
		}
	}

	leftID, lh, err := b.build(left)
	if err != nil {
		return 0, 0, err
	}
	rightID, rh, err := b.build(right)
	if err != nil {
		return 0, 0, err
	}

	id, err := b.t.WithNewPage(func(p *pagestore.Page) error {
		n, err := node.FormatVP(p.Data())
		if err != nil {
			return err
		}
		n.AddEntry(vp.enc)
		n.SetRadius(radius)
		n.SetLeft(leftID)
		n.SetRight(rightID)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	b.nodes++
	return id, 1 + max(lh, rh), nil
}
