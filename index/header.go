package index

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/gomam/pagestore"
)

const (
	headerMagic   uint32 = 0x4d414d47 // "GMAM"
	headerVersion uint16 = 1

	// HeaderSize is the encoded size of a Header.
	HeaderSize = 48
)

// Kind identifies the tree that owns a header.
type Kind uint8

const (
	KindDummy Kind = iota + 1
	KindGH
	KindMM
	KindVP
)

func (k Kind) String() string {
	switch k {
	case KindDummy:
		return "dummy"
	case KindGH:
		return "gh"
	case KindMM:
		return "mm"
	case KindVP:
		return "vp"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind parses the name of a tree kind.
func ParseKind(s string) (Kind, error) {
	for k := KindDummy; k <= KindVP; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown tree kind %q", s)
}

// Header is the persisted state of a tree.
//
// Layout (little endian): magic u32 | version u16 | kind u8 | insertMode u8 |
// searchMode u8 | built u8 | reserved u16 | root u32 | lastPage u32 |
// objectCount u64 | nodeCount u32 | height u32 | seed u64 | reserved u32.
type Header struct {
	Kind        Kind
	InsertMode  uint8
	SearchMode  uint8
	Built       bool
	Root        pagestore.PageID
	LastPage    pagestore.PageID
	ObjectCount uint64
	NodeCount   uint32
	Height      uint32
	Seed        uint64
}

// Encode writes h into b, which must hold HeaderSize bytes.
func (h *Header) Encode(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptHeader, len(b))
	}
	le := binary.LittleEndian
	le.PutUint32(b[0:], headerMagic)
	le.PutUint16(b[4:], headerVersion)
	b[6] = byte(h.Kind)
	b[7] = h.InsertMode
	b[8] = h.SearchMode
	b[9] = 0
	if h.Built {
		b[9] = 1
	}
	le.PutUint16(b[10:], 0)
	le.PutUint32(b[12:], uint32(h.Root))
	le.PutUint32(b[16:], uint32(h.LastPage))
	le.PutUint64(b[20:], h.ObjectCount)
	le.PutUint32(b[28:], h.NodeCount)
	le.PutUint32(b[32:], h.Height)
	le.PutUint64(b[36:], h.Seed)
	le.PutUint32(b[44:], 0)
	return nil
}

// Decode reads a header from b.
func (h *Header) Decode(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptHeader, len(b))
	}
	le := binary.LittleEndian
	if m := le.Uint32(b[0:]); m != headerMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrCorruptHeader, m)
	}
	if v := le.Uint16(b[4:]); v != headerVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptHeader, v)
	}
	*h = Header{
		Kind:        Kind(b[6]),
		InsertMode:  b[7],
		SearchMode:  b[8],
		Built:       b[9] != 0,
		Root:        pagestore.PageID(le.Uint32(b[12:])),
		LastPage:    pagestore.PageID(le.Uint32(b[16:])),
		ObjectCount: le.Uint64(b[20:]),
		NodeCount:   le.Uint32(b[28:]),
		Height:      le.Uint32(b[32:]),
		Seed:        le.Uint64(b[36:]),
	}
	return nil
}

func isBlank(b []byte) bool {
	for _, c := range b[:HeaderSize] {
		if c != 0 {
			return false
		}
	}
	return true
}
