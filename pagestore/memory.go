package pagestore

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
)

// Compile time check to ensure MemoryManager satisfies the Manager interface.
var _ Manager = (*MemoryManager)(nil)

// MemoryManager keeps all pages in memory.
//
// Freed ids are tracked in a roaring bitmap and reused smallest first.
type MemoryManager struct {
	opts   options
	header []byte
	pages  [][]byte // index = id, pages[0] unused
	free   *roaring.Bitmap
	pool   *pagePool
	stats  Stats
	closed bool
	logger *slog.Logger
}

// NewMemoryManager creates an empty in-memory manager.
func NewMemoryManager(optFns ...Option) *MemoryManager {
	o := applyOptions(optFns)
	return &MemoryManager{
		opts:   o,
		pages:  make([][]byte, 1),
		free:   roaring.New(),
		pool:   newPagePool(o.pageSize, o.lockBytes, o.poolCapacity),
		logger: o.logger,
	}
}

// IsEmpty implements Manager.
func (m *MemoryManager) IsEmpty() bool {
	return m.PageCount() == 0
}

// HeaderPage implements Manager.
func (m *MemoryManager) HeaderPage() (*Page, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.header == nil {
		m.header = make([]byte, m.opts.headerSize)
	}
	p := NewLockedPage(HeaderPageID, m.opts.headerSize, m.opts.lockBytes)
	copy(p.Data(), m.header)
	m.stats.Reads++
	return p, nil
}

// ReadPage implements Manager.
func (m *MemoryManager) ReadPage(id PageID) (*Page, error) {
	if m.closed {
		return nil, ErrClosed
	}
	data, err := m.lookup(id)
	if err != nil {
		return nil, pageError("read", id, err)
	}
	p := m.pool.get(id)
	copy(p.Data(), data)
	m.stats.Reads++
	return p, nil
}

// AllocatePage implements Manager.
func (m *MemoryManager) AllocatePage() (*Page, error) {
	if m.closed {
		return nil, ErrClosed
	}
	var id PageID
	if !m.free.IsEmpty() {
		id = PageID(m.free.Minimum())
		m.free.Remove(uint32(id))
		m.pages[id] = make([]byte, m.opts.pageSize)
	} else {
		id = PageID(len(m.pages))
		m.pages = append(m.pages, make([]byte, m.opts.pageSize))
	}
	m.stats.Writes++
	return m.pool.get(id), nil
}

// WritePage implements Manager.
func (m *MemoryManager) WritePage(p *Page) error {
	if m.closed {
		return ErrClosed
	}
	if p.Size() != m.opts.pageSize {
		return pageError("write", p.ID(), ErrPageSize)
	}
	data, err := m.lookup(p.ID())
	if err != nil {
		return pageError("write", p.ID(), err)
	}
	copy(data, p.Data())
	m.stats.Writes++
	return nil
}

// WriteHeaderPage implements Manager.
func (m *MemoryManager) WriteHeaderPage(p *Page) error {
	if m.closed {
		return ErrClosed
	}
	if p.ID() != HeaderPageID || p.Size() != m.opts.headerSize {
		return pageError("write header", p.ID(), ErrPageSize)
	}
	if m.header == nil {
		m.header = make([]byte, m.opts.headerSize)
	}
	copy(m.header, p.Data())
	m.stats.Writes++
	return nil
}

// ReleasePage implements Manager.
func (m *MemoryManager) ReleasePage(p *Page) {
	m.pool.put(p)
}

// DisposePage implements Manager.
func (m *MemoryManager) DisposePage(p *Page) error {
	if m.closed {
		return ErrClosed
	}
	id := p.ID()
	if _, err := m.lookup(id); err != nil {
		return pageError("dispose", id, err)
	}
	m.pages[id] = nil
	m.free.Add(uint32(id))
	m.pool.put(p)
	m.logger.Debug("page disposed", "page", id)
	return nil
}

// PageSize implements Manager.
func (m *MemoryManager) PageSize() int { return m.opts.pageSize }

// MinimumPageSize implements Manager.
func (m *MemoryManager) MinimumPageSize() int { return MinimumPageSize }

// PageCount implements Manager.
func (m *MemoryManager) PageCount() int {
	return len(m.pages) - 1 - int(m.free.GetCardinality())
}

// Stats implements Manager.
func (m *MemoryManager) Stats() Stats {
	s := m.stats
	s.PoolHits, s.PoolMisses = m.pool.hits, m.pool.misses
	return s
}

// ResetStatistics implements Manager.
func (m *MemoryManager) ResetStatistics() {
	m.stats = Stats{}
	m.pool.resetStats()
}

// Close drops all pages.
func (m *MemoryManager) Close() error {
	m.pages = nil
	m.header = nil
	m.closed = true
	return nil
}

func (m *MemoryManager) lookup(id PageID) ([]byte, error) {
	if id == HeaderPageID {
		return nil, ErrHeaderPage
	}
	if int(id) >= len(m.pages) || m.pages[id] == nil {
		return nil, ErrPageNotFound
	}
	return m.pages[id], nil
}
