package pagestore

// PageID identifies a page inside a Manager. Id 0 is the header page.
type PageID uint32

// HeaderPageID is the id of the header page.
const HeaderPageID PageID = 0

// Page is a fixed-size byte buffer with an identifier.
//
// The first LockSize bytes are reserved for the owning manager and are not
// part of Data.
type Page struct {
	id       PageID
	buf      []byte
	lockSize int
}

// NewPage creates a zeroed page with size usable bytes.
func NewPage(id PageID, size int) *Page {
	return NewLockedPage(id, size, 0)
}

// NewLockedPage creates a zeroed page with size usable bytes preceded by
// lockSize reserved bytes.
func NewLockedPage(id PageID, size, lockSize int) *Page {
	return &Page{
		id:       id,
		buf:      make([]byte, lockSize+size),
		lockSize: lockSize,
	}
}

// ID returns the page id.
func (p *Page) ID() PageID { return p.id }

// SetID changes the page id.
func (p *Page) SetID(id PageID) { p.id = id }

// Data returns the usable bytes of the page.
func (p *Page) Data() []byte { return p.buf[p.lockSize:] }

// Size returns the number of usable bytes.
func (p *Page) Size() int { return len(p.buf) - p.lockSize }

// LockSize returns the number of reserved leading bytes.
func (p *Page) LockSize() int { return p.lockSize }

// Lock returns the reserved leading bytes.
func (p *Page) Lock() []byte { return p.buf[:p.lockSize] }

// Raw returns the whole buffer including the reserved bytes.
func (p *Page) Raw() []byte { return p.buf }

// Clear zeroes the whole buffer.
func (p *Page) Clear() {
	clear(p.buf)
}

// CopyFrom replaces the usable bytes with src. Extra bytes are zeroed.
func (p *Page) CopyFrom(src []byte) {
	n := copy(p.Data(), src)
	clear(p.Data()[n:])
}
