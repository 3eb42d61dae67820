package node

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPageTooSmall is returned when a page cannot hold a header and one entry.
	ErrPageTooSmall = errors.New("page too small for node")

	// ErrCorruptNode is returned when page bytes do not form a valid node.
	ErrCorruptNode = errors.New("corrupt node")

	// ErrIndexOutOfRange is returned for entry indexes outside [0, n).
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

// Layout describes the fixed parts of a node kind.
type Layout struct {
	HeaderSize int
	EntrySize  int
	// MaxEntries bounds the number of entries. Zero means unbounded.
	MaxEntries int
	// countAt is the header offset of the occupation counter, or -1 when
	// the count is implied by a non-zero first offset.
	countAt int
}

// MaxObjectSize returns the largest object a node of this layout can hold
// on an empty page of pageSize bytes.
func (l Layout) MaxObjectSize(pageSize int) int {
	return pageSize - l.HeaderSize - l.EntrySize
}

// slotted implements the shared entry table over page bytes.
type slotted struct {
	buf    []byte
	layout Layout
}

func format(buf []byte, l Layout) (slotted, error) {
	if len(buf) < l.HeaderSize+l.EntrySize {
		return slotted{}, fmt.Errorf("%w: %d bytes", ErrPageTooSmall, len(buf))
	}
	clear(buf)
	return slotted{buf: buf, layout: l}, nil
}

func open(buf []byte, l Layout) (slotted, error) {
	if len(buf) < l.HeaderSize+l.EntrySize {
		return slotted{}, fmt.Errorf("%w: %d bytes", ErrPageTooSmall, len(buf))
	}
	s := slotted{buf: buf, layout: l}
	if err := s.validate(); err != nil {
		return slotted{}, err
	}
	return s, nil
}

func (s slotted) validate() error {
	n := 0
	if s.layout.countAt >= 0 {
		n = int(binary.LittleEndian.Uint32(s.buf[s.layout.countAt:]))
	} else if s.offset(0) != 0 {
		n = 1
	}
	if s.layout.MaxEntries > 0 && n > s.layout.MaxEntries {
		return fmt.Errorf("%w: %d entries exceed capacity %d", ErrCorruptNode, n, s.layout.MaxEntries)
	}
	tableEnd := s.layout.HeaderSize + n*s.layout.EntrySize
	if tableEnd > len(s.buf) {
		return fmt.Errorf("%w: entry table of %d entries overflows page", ErrCorruptNode, n)
	}
	prev := len(s.buf)
	for i := range n {
		off := s.offset(i)
		if off > prev || off < tableEnd {
			return fmt.Errorf("%w: entry %d offset %d out of bounds", ErrCorruptNode, i, off)
		}
		prev = off
	}
	return nil
}

func (s slotted) count() int {
	if s.layout.countAt < 0 {
		if s.offset(0) != 0 {
			return 1
		}
		return 0
	}
	return int(binary.LittleEndian.Uint32(s.buf[s.layout.countAt:]))
}

func (s slotted) setCount(n int) {
	if s.layout.countAt >= 0 {
		binary.LittleEndian.PutUint32(s.buf[s.layout.countAt:], uint32(n))
	}
}

func (s slotted) entry(i int) []byte {
	start := s.layout.HeaderSize + i*s.layout.EntrySize
	return s.buf[start : start+s.layout.EntrySize]
}

func (s slotted) offset(i int) int {
	return int(binary.LittleEndian.Uint32(s.entry(i)))
}

func (s slotted) setOffset(i, off int) {
	binary.LittleEndian.PutUint32(s.entry(i), uint32(off))
}

// end returns the exclusive end of object i.
func (s slotted) end(i int) int {
	if i == 0 {
		return len(s.buf)
	}
	return s.offset(i - 1)
}

func (s slotted) check(i int) error {
	if i < 0 || i >= s.count() {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, s.count())
	}
	return nil
}

// NumberOfEntries returns the number of stored objects.
func (s slotted) NumberOfEntries() int { return s.count() }

// Free returns the number of unused bytes.
func (s slotted) Free() int {
	n := s.count()
	return s.end(n) - s.layout.HeaderSize - n*s.layout.EntrySize
}

// CanAdd reports whether an object of size bytes fits.
func (s slotted) CanAdd(size int) bool {
	n := s.count()
	if s.layout.MaxEntries > 0 && n >= s.layout.MaxEntries {
		return false
	}
	return s.Free() >= s.layout.EntrySize+size
}

// AddEntry stores obj and returns its index. It returns false when the node
// is full or obj does not fit.
func (s slotted) AddEntry(obj []byte) (int, bool) {
	if !s.CanAdd(len(obj)) {
		return -1, false
	}
	n := s.count()
	off := s.end(n) - len(obj)
	copy(s.buf[off:], obj)
	clear(s.entry(n))
	s.setOffset(n, off)
	s.setCount(n + 1)
	return n, true
}

// Object returns the bytes of object i. The slice aliases the page.
func (s slotted) Object(i int) ([]byte, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	return s.UncheckedObject(i), nil
}

// UncheckedObject returns the bytes of object i without validating i.
// It panics for indexes outside [0, NumberOfEntries()).
func (s slotted) UncheckedObject(i int) []byte {
	return s.buf[s.offset(i):s.end(i)]
}

// ObjectSize returns the size of object i.
func (s slotted) ObjectSize(i int) (int, error) {
	if err := s.check(i); err != nil {
		return 0, err
	}
	return s.end(i) - s.offset(i), nil
}

// RemoveEntry deletes object i. Blobs stored below it move up by its size
// and later entries are renumbered, so indexes above i shift down by one.
//
// Blobs stay packed against the page end in entry order, which open checks,
// so the lower side is always the one that moves. The cost is the bytes
// stored below i, and removing the newest entry moves nothing.
func (s slotted) RemoveEntry(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	n := s.count()
	lowest := s.offset(n - 1)
	start, end := s.offset(i), s.end(i)
	size := end - start

	copy(s.buf[lowest+size:end], s.buf[lowest:start])
	clear(s.buf[lowest : lowest+size])

	for j := i; j < n-1; j++ {
		copy(s.entry(j), s.entry(j+1))
		s.setOffset(j, s.offset(j)+size)
	}
	clear(s.entry(n - 1))
	s.setCount(n - 1)
	return nil
}
