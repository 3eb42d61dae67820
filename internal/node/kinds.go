package node

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/gomam/pagestore"
)

// Layouts of the node kinds.
var (
	// DummyLayout: occupation u32 | next u32; entry: offset u32.
	DummyLayout = Layout{HeaderSize: 8, EntrySize: 4, countAt: 0}

	// GHLayout: occupation u32 | pad u32 | distance f64;
	// entry: offset u32 | child u32 | radius f64.
	GHLayout = Layout{HeaderSize: 16, EntrySize: 16, MaxEntries: 2, countAt: 0}

	// MMLayout: occupation u32 | pad u32 | distance f64 | 4 x child u32;
	// entry: offset u32.
	MMLayout = Layout{HeaderSize: 32, EntrySize: 4, MaxEntries: 2, countAt: 0}

	// VPLayout: radius f64 | left u32 | right u32; entry: offset u32.
	VPLayout = Layout{HeaderSize: 16, EntrySize: 4, MaxEntries: 1, countAt: -1}
)

// Dummy is a node of a sequential list of pages.
type Dummy struct{ slotted }

// FormatDummy initialises buf as an empty Dummy node.
func FormatDummy(buf []byte) (*Dummy, error) {
	s, err := format(buf, DummyLayout)
	if err != nil {
		return nil, err
	}
	return &Dummy{s}, nil
}

// OpenDummy views buf as a Dummy node.
func OpenDummy(buf []byte) (*Dummy, error) {
	s, err := open(buf, DummyLayout)
	if err != nil {
		return nil, err
	}
	return &Dummy{s}, nil
}

// Next returns the id of the following page, or 0 at the end of the list.
func (n *Dummy) Next() pagestore.PageID {
	return pagestore.PageID(binary.LittleEndian.Uint32(n.buf[4:]))
}

// SetNext links the following page.
func (n *Dummy) SetNext(id pagestore.PageID) {
	binary.LittleEndian.PutUint32(n.buf[4:], uint32(id))
}

// GH is a generalized-hyperplane node with up to two representatives.
// Each representative owns a child subtree and its covering radius.
type GH struct{ slotted }

// FormatGH initialises buf as an empty GH node.
func FormatGH(buf []byte) (*GH, error) {
	s, err := format(buf, GHLayout)
	if err != nil {
		return nil, err
	}
	return &GH{s}, nil
}

// OpenGH views buf as a GH node.
func OpenGH(buf []byte) (*GH, error) {
	s, err := open(buf, GHLayout)
	if err != nil {
		return nil, err
	}
	return &GH{s}, nil
}

// Distance returns the distance between the two representatives.
func (n *GH) Distance() float64 { return getFloat(n.buf[8:]) }

// SetDistance stores the distance between the two representatives.
func (n *GH) SetDistance(d float64) { putFloat(n.buf[8:], d) }

// Child returns the subtree of representative i.
func (n *GH) Child(i int) (pagestore.PageID, error) {
	if err := n.check(i); err != nil {
		return 0, err
	}
	return pagestore.PageID(binary.LittleEndian.Uint32(n.entry(i)[4:])), nil
}

// SetChild links the subtree of representative i.
func (n *GH) SetChild(i int, id pagestore.PageID) error {
	if err := n.check(i); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(n.entry(i)[4:], uint32(id))
	return nil
}

// Radius returns the covering radius of the subtree of representative i.
func (n *GH) Radius(i int) (float64, error) {
	if err := n.check(i); err != nil {
		return 0, err
	}
	return getFloat(n.entry(i)[8:]), nil
}

// SetRadius stores the covering radius of the subtree of representative i.
func (n *GH) SetRadius(i int, r float64) error {
	if err := n.check(i); err != nil {
		return err
	}
	putFloat(n.entry(i)[8:], r)
	return nil
}

// Regions of an MM node, indexed by 2*(d1 >= r) + (d2 >= r) where d1 and d2
// are the distances to the pivots and r is the pivot distance.
const (
	RegionNearBoth   = iota // d1 < r, d2 < r
	RegionNearFirst         // d1 < r, d2 >= r
	RegionNearSecond        // d1 >= r, d2 < r
	RegionFar               // d1 >= r, d2 >= r
	NumRegions
)

// MM is a quadrant node: up to two pivots and four region children.
type MM struct{ slotted }

// FormatMM initialises buf as an empty MM node.
func FormatMM(buf []byte) (*MM, error) {
	s, err := format(buf, MMLayout)
	if err != nil {
		return nil, err
	}
	return &MM{s}, nil
}

// OpenMM views buf as an MM node.
func OpenMM(buf []byte) (*MM, error) {
	s, err := open(buf, MMLayout)
	if err != nil {
		return nil, err
	}
	return &MM{s}, nil
}

// Distance returns the distance between the two pivots.
func (n *MM) Distance() float64 { return getFloat(n.buf[8:]) }

// SetDistance stores the distance between the two pivots.
func (n *MM) SetDistance(d float64) { putFloat(n.buf[8:], d) }

// Child returns the child of region.
func (n *MM) Child(region int) (pagestore.PageID, error) {
	if region < 0 || region >= NumRegions {
		return 0, fmt.Errorf("%w: region %d", ErrIndexOutOfRange, region)
	}
	return pagestore.PageID(binary.LittleEndian.Uint32(n.buf[16+4*region:])), nil
}

// SetChild links the child of region.
func (n *MM) SetChild(region int, id pagestore.PageID) error {
	if region < 0 || region >= NumRegions {
		return fmt.Errorf("%w: region %d", ErrIndexOutOfRange, region)
	}
	binary.LittleEndian.PutUint32(n.buf[16+4*region:], uint32(id))
	return nil
}

// IsLeaf reports whether no region has a child.
func (n *MM) IsLeaf() bool {
	for r := range NumRegions {
		if binary.LittleEndian.Uint32(n.buf[16+4*r:]) != 0 {
			return false
		}
	}
	return true
}

// VP is a vantage-point node: one object, a radius and two children.
type VP struct{ slotted }

// FormatVP initialises buf as an empty VP node.
func FormatVP(buf []byte) (*VP, error) {
	s, err := format(buf, VPLayout)
	if err != nil {
		return nil, err
	}
	return &VP{s}, nil
}

// OpenVP views buf as a VP node.
func OpenVP(buf []byte) (*VP, error) {
	s, err := open(buf, VPLayout)
	if err != nil {
		return nil, err
	}
	return &VP{s}, nil
}

// Radius returns the partition radius.
func (n *VP) Radius() float64 { return getFloat(n.buf[0:]) }

// SetRadius stores the partition radius.
func (n *VP) SetRadius(r float64) { putFloat(n.buf[0:], r) }

// Left returns the subtree of objects within the radius.
func (n *VP) Left() pagestore.PageID {
	return pagestore.PageID(binary.LittleEndian.Uint32(n.buf[8:]))
}

// SetLeft links the subtree of objects within the radius.
func (n *VP) SetLeft(id pagestore.PageID) { binary.LittleEndian.PutUint32(n.buf[8:], uint32(id)) }

// Right returns the subtree of objects beyond the radius.
func (n *VP) Right() pagestore.PageID {
	return pagestore.PageID(binary.LittleEndian.Uint32(n.buf[12:]))
}

// SetRight links the subtree of objects beyond the radius.
func (n *VP) SetRight(id pagestore.PageID) { binary.LittleEndian.PutUint32(n.buf[12:], uint32(id)) }

func getFloat(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }

func putFloat(b []byte, f float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(f)) }
