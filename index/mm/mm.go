// Package mm implements the MM tree, a quadrant-partitioning metric tree.
//
// A node holds up to two pivots at distance r from each other. Objects below
// the node fall into one of four regions, by whether their distance to each
// pivot is below r. Only leaves accept new pivots.
package mm

import (
	"math"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
)

var (
	_ index.MetricAccessMethod[int] = (*Tree[int])(nil)
	_ index.PointQuerier[int]       = (*Tree[int])(nil)
	_ index.RingQuerier[int]        = (*Tree[int])(nil)
)

// Tree is an MM tree.
type Tree[T any] struct {
	*index.Tree[T]
}

// New opens the tree stored in mgr, creating it when mgr holds no tree.
func New[T any](mgr pagestore.Manager, fn distance.Func[T], c codec.Codec[T], optFns ...Option) (*Tree[T], error) {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}
	base := index.NewTree(mgr, index.KindMM, fn, c, o.treeOpts...)
	_, err := base.Open(func(h *index.Header) {
		h.InsertMode = uint8(o.insert)
		h.SearchMode = uint8(o.search)
	})
	if err != nil {
		return nil, err
	}
	return &Tree[T]{Tree: base}, nil
}

// InsertMode returns the insertion mode.
func (t *Tree[T]) InsertMode() InsertMode { return InsertMode(t.Header().InsertMode) }

// SetInsertMode changes the insertion mode. The change is persisted by WriteHeader.
func (t *Tree[T]) SetInsertMode(m InsertMode) {
	t.Header().InsertMode = uint8(m)
	t.MarkDirty()
}

// SearchMode returns the nearest-neighbor traversal.
func (t *Tree[T]) SearchMode() SearchMode { return SearchMode(t.Header().SearchMode) }

// SetSearchMode changes the nearest-neighbor traversal. The change is
// persisted by WriteHeader.
func (t *Tree[T]) SetSearchMode(m SearchMode) {
	t.Header().SearchMode = uint8(m)
	t.MarkDirty()
}

// item is a decoded object with its encoding.
type item[T any] struct {
	obj T
	enc []byte
}

// snapshot is a decoded node.
type snapshot[T any] struct {
	pivots   []item[T]
	r        float64
	children [node.NumRegions]pagestore.PageID
	leaf     bool
	free     int
}

func (s *snapshot[T]) canAdd(size int) bool {
	return s.leaf && len(s.pivots) < node.MMLayout.MaxEntries && s.free >= node.MMLayout.EntrySize+size
}

func (t *Tree[T]) read(id pagestore.PageID) (snapshot[T], error) {
	var s snapshot[T]
	err := t.WithPage(id, func(p *pagestore.Page) error {
		n, err := node.OpenMM(p.Data())
		if err != nil {
			return err
		}
		for i := range n.NumberOfEntries() {
			enc := n.UncheckedObject(i)
			obj, err := t.Decode(enc)
			if err != nil {
				return err
			}
			s.pivots = append(s.pivots, item[T]{obj: obj, enc: append([]byte(nil), enc...)})
		}
		for r := range node.NumRegions {
			s.children[r], _ = n.Child(r)
		}
		s.r = n.Distance()
		s.leaf = n.IsLeaf()
		s.free = n.Free()
		return nil
	})
	return s, err
}

// regionOf returns the region of an object at distances d1 and d2 from the
// pivots. Nodes with a single pivot route everything to RegionFar.
func regionOf(pivots int, r, d1, d2 float64) int {
	if pivots < 2 {
		return node.RegionFar
	}
	reg := 0
	if d1 >= r {
		reg += 2
	}
	if d2 >= r {
		reg++
	}
	return reg
}

// lowerBound is the smallest distance from a sample at dq from the pivots to
// any object of region reg.
func lowerBound(pivots int, r float64, dq [2]float64, reg int) float64 {
	if pivots < 2 {
		return 0
	}
	lb := 0.0
	for j, far := range [2]bool{reg&2 != 0, reg&1 != 0} {
		if far {
			lb = math.Max(lb, r-dq[j])
		} else {
			lb = math.Max(lb, dq[j]-r)
		}
	}
	return lb
}

// Add inserts obj into the first leaf with room on its region path.
func (t *Tree[T]) Add(obj T) error {
	if err := t.Ready(); err != nil {
		return err
	}
	b, err := t.Encode(obj, node.MMLayout.MaxObjectSize(t.Manager().PageSize()))
	if err != nil {
		return err
	}
	h := t.Header()
	it := item[T]{obj: obj, enc: b}

	if h.Root == 0 {
		id, err := t.newNode([]item[T]{it}, 0)
		if err != nil {
			return err
		}
		h.Root, h.NodeCount, h.Height = id, 1, 1
		h.ObjectCount++
		t.MarkDirty()
		return nil
	}

	var path []pagestore.PageID
	for cur, depth := h.Root, uint32(1); ; depth++ {
		s, err := t.read(cur)
		if err != nil {
			return err
		}

		if s.canAdd(len(b)) {
			err := t.UpdatePage(cur, func(p *pagestore.Page) error {
				n, err := node.OpenMM(p.Data())
				if err != nil {
					return err
				}
				if len(s.pivots) == 1 {
					n.SetDistance(t.Distance(s.pivots[0].obj, obj))
				}
				n.AddEntry(b)
				return nil
			})
			if err != nil {
				return err
			}
			h.Height = max(h.Height, depth)
			break
		}

		var d [2]float64
		for j, pv := range s.pivots {
			d[j] = t.Distance(pv.obj, obj)
		}
		reg := regionOf(len(s.pivots), s.r, d[0], d[1])
		if child := s.children[reg]; child != 0 {
			path = append(path, cur)
			cur = child
			continue
		}

		if t.InsertMode() == TryBalance {
			ok, err := t.balance(cur, it)
			if err != nil {
				return err
			}
			if !ok && len(path) > 0 {
				ok, err = t.balance(path[len(path)-1], it)
				if err != nil {
					return err
				}
			}
			if ok {
				break
			}
		}

		id, err := t.newNode([]item[T]{it}, 0)
		if err != nil {
			return err
		}
		err = t.UpdatePage(cur, func(p *pagestore.Page) error {
			n, err := node.OpenMM(p.Data())
			if err != nil {
				return err
			}
			return n.SetChild(reg, id)
		})
		if err != nil {
			return err
		}
		h.NodeCount++
		h.Height = max(h.Height, depth+1)
		break
	}
	h.ObjectCount++
	t.MarkDirty()
	return nil
}

// newNode allocates a leaf holding items, whose pivot distance is r.
func (t *Tree[T]) newNode(items []item[T], r float64) (pagestore.PageID, error) {
	return t.WithNewPage(func(p *pagestore.Page) error {
		return t.fill(p, items, r)
	})
}

func (t *Tree[T]) fill(p *pagestore.Page, items []item[T], r float64) error {
	n, err := node.FormatMM(p.Data())
	if err != nil {
		return err
	}
	for _, it := range items {
		if _, ok := n.AddEntry(it.enc); !ok {
			return node.ErrCorruptNode
		}
	}
	n.SetDistance(r)
	return nil
}
