package pagestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gomam/internal/fs"
)

// Compile time check to ensure DiskManager satisfies the Manager interface.
var _ Manager = (*DiskManager)(nil)

const (
	diskMagic      uint32 = 0x464d4d47 // "GMMF"
	diskVersion    uint16 = 1
	preambleSize          = 32
	freeLinkOffset        = 0
)

// DiskManager stores pages in a single file.
//
// File layout:
//
//	[preamble 32B][header page: headerSize B][page 1][page 2]...
//
// The preamble holds magic, version, page size, header size, the highest
// allocated id and the head of the free chain. A disposed page stores the id
// of the next free page in its first four bytes. The chain is kept in
// ascending order, so its head is always the smallest free id.
type DiskManager struct {
	path       string
	file       fs.File
	opts       options
	pageSize   int
	headerSize int
	maxID      PageID
	freeHead   PageID
	free       *roaring.Bitmap
	pool       *pagePool
	stats      Stats
	logger     *slog.Logger
	unlock     func() error
}

// OpenDiskManager opens or creates the page file at path.
//
// For an existing file the page and header sizes stored in the file win over
// the options.
func OpenDiskManager(path string, optFns ...Option) (*DiskManager, error) {
	o := applyOptions(optFns)

	file, err := o.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open page file %s: %w", path, err)
	}

	unlock, err := lockFile(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to lock page file %s: %w", path, err)
	}

	m := &DiskManager{
		path:       path,
		file:       file,
		opts:       o,
		pageSize:   o.pageSize,
		headerSize: o.headerSize,
		free:       roaring.New(),
		logger:     o.logger.With("file", path),
		unlock:     unlock,
	}

	info, err := file.Stat()
	if err != nil {
		_ = m.closeFile()
		return nil, fmt.Errorf("failed to stat page file: %w", err)
	}

	if info.Size() == 0 {
		if err := m.writePreamble(); err != nil {
			_ = m.closeFile()
			return nil, err
		}
		m.logger.Debug("page file created", "page_size", m.pageSize, "header_size", m.headerSize)
	} else {
		if err := m.readPreamble(); err != nil {
			_ = m.closeFile()
			return nil, err
		}
		if err := m.loadFreeChain(); err != nil {
			_ = m.closeFile()
			return nil, err
		}
		m.logger.Debug("page file opened", "pages", m.PageCount(), "free", m.free.GetCardinality())
	}

	m.pool = newPagePool(m.pageSize, o.lockBytes, o.poolCapacity)
	return m, nil
}

// Path returns the file path.
func (m *DiskManager) Path() string { return m.path }

// IsEmpty implements Manager.
func (m *DiskManager) IsEmpty() bool {
	return m.PageCount() == 0
}

// HeaderPage implements Manager.
func (m *DiskManager) HeaderPage() (*Page, error) {
	if m.file == nil {
		return nil, ErrClosed
	}
	p := NewLockedPage(HeaderPageID, m.headerSize, m.opts.lockBytes)
	if err := m.readAt(p.Data(), preambleSize); err != nil {
		return nil, pageError("read header", HeaderPageID, err)
	}
	m.stats.Reads++
	return p, nil
}

// ReadPage implements Manager.
func (m *DiskManager) ReadPage(id PageID) (*Page, error) {
	if m.file == nil {
		return nil, ErrClosed
	}
	if err := m.check(id); err != nil {
		return nil, pageError("read", id, err)
	}
	p := m.pool.get(id)
	if err := m.readAt(p.Data(), m.offset(id)); err != nil {
		m.pool.put(p)
		return nil, pageError("read", id, err)
	}
	m.stats.Reads++
	return p, nil
}

// AllocatePage implements Manager.
func (m *DiskManager) AllocatePage() (*Page, error) {
	if m.file == nil {
		return nil, ErrClosed
	}

	var id PageID
	if m.freeHead != 0 {
		id = m.freeHead
		var link [4]byte
		if err := m.readAt(link[:], m.offset(id)+freeLinkOffset); err != nil {
			return nil, pageError("allocate", id, err)
		}
		m.freeHead = PageID(binary.LittleEndian.Uint32(link[:]))
		m.free.Remove(uint32(id))
	} else {
		id = m.maxID + 1
		m.maxID = id
	}

	p := m.pool.get(id)
	if _, err := m.file.WriteAt(p.Data(), m.offset(id)); err != nil {
		m.pool.put(p)
		return nil, pageError("allocate", id, err)
	}
	if err := m.writePreamble(); err != nil {
		m.pool.put(p)
		return nil, err
	}
	m.stats.Writes++
	return p, nil
}

// WritePage implements Manager.
func (m *DiskManager) WritePage(p *Page) error {
	if m.file == nil {
		return ErrClosed
	}
	if p.Size() != m.pageSize {
		return pageError("write", p.ID(), ErrPageSize)
	}
	if err := m.check(p.ID()); err != nil {
		return pageError("write", p.ID(), err)
	}
	if _, err := m.file.WriteAt(p.Data(), m.offset(p.ID())); err != nil {
		return pageError("write", p.ID(), err)
	}
	m.stats.Writes++
	return nil
}

// WriteHeaderPage implements Manager.
func (m *DiskManager) WriteHeaderPage(p *Page) error {
	if m.file == nil {
		return ErrClosed
	}
	if p.ID() != HeaderPageID || p.Size() != m.headerSize {
		return pageError("write header", p.ID(), ErrPageSize)
	}
	if _, err := m.file.WriteAt(p.Data(), preambleSize); err != nil {
		return pageError("write header", HeaderPageID, err)
	}
	m.stats.Writes++
	return nil
}

// ReleasePage implements Manager.
func (m *DiskManager) ReleasePage(p *Page) {
	m.pool.put(p)
}

// DisposePage implements Manager.
func (m *DiskManager) DisposePage(p *Page) error {
	if m.file == nil {
		return ErrClosed
	}
	id := p.ID()
	if err := m.check(id); err != nil {
		return pageError("dispose", id, err)
	}

	// Link id between its free neighbours.
	var prev, next PageID
	if rank := m.free.Rank(uint32(id)); rank > 0 {
		v, err := m.free.Select(uint32(rank - 1))
		if err != nil {
			return pageError("dispose", id, err)
		}
		prev = PageID(v)
		if rank < m.free.GetCardinality() {
			v, err := m.free.Select(uint32(rank))
			if err != nil {
				return pageError("dispose", id, err)
			}
			next = PageID(v)
		}
	} else {
		next = m.freeHead
	}

	if err := m.writeLink(id, next); err != nil {
		return pageError("dispose", id, err)
	}
	if prev == 0 {
		m.freeHead = id
	} else if err := m.writeLink(prev, id); err != nil {
		return pageError("dispose", id, err)
	}
	m.free.Add(uint32(id))
	if err := m.writePreamble(); err != nil {
		return err
	}
	m.pool.put(p)
	return nil
}

// PageSize implements Manager.
func (m *DiskManager) PageSize() int { return m.pageSize }

// HeaderSize returns the size of the header page.
func (m *DiskManager) HeaderSize() int { return m.headerSize }

// MinimumPageSize implements Manager.
func (m *DiskManager) MinimumPageSize() int { return MinimumPageSize }

// PageCount implements Manager.
func (m *DiskManager) PageCount() int {
	return int(m.maxID) - int(m.free.GetCardinality())
}

// Stats implements Manager.
func (m *DiskManager) Stats() Stats {
	s := m.stats
	s.PoolHits, s.PoolMisses = m.pool.hits, m.pool.misses
	return s
}

// ResetStatistics implements Manager.
func (m *DiskManager) ResetStatistics() {
	m.stats = Stats{}
	m.pool.resetStats()
}

// Sync flushes the file to stable storage.
func (m *DiskManager) Sync() error {
	if m.file == nil {
		return ErrClosed
	}
	return m.file.Sync()
}

// Close writes the preamble, syncs and closes the file.
func (m *DiskManager) Close() error {
	if m.file == nil {
		return nil
	}
	if err := m.writePreamble(); err != nil {
		_ = m.closeFile()
		return err
	}
	if err := m.file.Sync(); err != nil {
		_ = m.closeFile()
		return fmt.Errorf("failed to sync before close: %w", err)
	}
	m.logger.Debug("page file closed", "pages", m.PageCount())
	return m.closeFile()
}

func (m *DiskManager) closeFile() error {
	var err error
	if m.unlock != nil {
		err = m.unlock()
		m.unlock = nil
	}
	if cerr := m.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	m.file = nil
	return err
}

func (m *DiskManager) offset(id PageID) int64 {
	return int64(preambleSize) + int64(m.headerSize) + int64(id-1)*int64(m.pageSize)
}

func (m *DiskManager) check(id PageID) error {
	if id == HeaderPageID {
		return ErrHeaderPage
	}
	if id > m.maxID || m.free.Contains(uint32(id)) {
		return ErrPageNotFound
	}
	return nil
}

// readAt fills buf, treating a short read past the end of the file as zeros.
func (m *DiskManager) readAt(buf []byte, off int64) error {
	n, err := m.file.ReadAt(buf, off)
	if err == io.EOF {
		clear(buf[n:])
		return nil
	}
	return err
}

func (m *DiskManager) writePreamble() error {
	var b [preambleSize]byte
	binary.LittleEndian.PutUint32(b[0:], diskMagic)
	binary.LittleEndian.PutUint16(b[4:], diskVersion)
	binary.LittleEndian.PutUint32(b[8:], uint32(m.pageSize))
	binary.LittleEndian.PutUint32(b[12:], uint32(m.headerSize))
	binary.LittleEndian.PutUint32(b[16:], uint32(m.maxID))
	binary.LittleEndian.PutUint32(b[20:], uint32(m.freeHead))
	binary.LittleEndian.PutUint32(b[24:], uint32(m.free.GetCardinality()))
	if _, err := m.file.WriteAt(b[:], 0); err != nil {
		return fmt.Errorf("failed to write preamble: %w", err)
	}
	return nil
}

func (m *DiskManager) readPreamble() error {
	var b [preambleSize]byte
	if _, err := m.file.ReadAt(b[:], 0); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	if binary.LittleEndian.Uint32(b[0:]) != diskMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptFile)
	}
	if v := binary.LittleEndian.Uint16(b[4:]); v != diskVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptFile, v)
	}
	pageSize := int(binary.LittleEndian.Uint32(b[8:]))
	headerSize := int(binary.LittleEndian.Uint32(b[12:]))
	if pageSize < MinimumPageSize || headerSize < MinimumPageSize {
		return fmt.Errorf("%w: page size %d, header size %d", ErrCorruptFile, pageSize, headerSize)
	}
	if pageSize != m.opts.pageSize {
		m.logger.Debug("page size taken from file", "file", pageSize, "requested", m.opts.pageSize)
	}
	m.pageSize = pageSize
	m.headerSize = headerSize
	m.maxID = PageID(binary.LittleEndian.Uint32(b[16:]))
	m.freeHead = PageID(binary.LittleEndian.Uint32(b[20:]))
	return nil
}

func (m *DiskManager) writeLink(id, next PageID) error {
	var link [4]byte
	binary.LittleEndian.PutUint32(link[:], uint32(next))
	_, err := m.file.WriteAt(link[:], m.offset(id)+freeLinkOffset)
	return err
}

func (m *DiskManager) loadFreeChain() error {
	var (
		link [4]byte
		prev PageID
	)
	id := m.freeHead
	for id != 0 {
		if id > m.maxID || id <= prev {
			return fmt.Errorf("%w: broken free chain at page %d", ErrCorruptFile, id)
		}
		m.free.Add(uint32(id))
		if err := m.readAt(link[:], m.offset(id)+freeLinkOffset); err != nil {
			return fmt.Errorf("failed to read free chain: %w", err)
		}
		prev, id = id, PageID(binary.LittleEndian.Uint32(link[:]))
	}
	return nil
}
