// Package pebblestore keeps pages in a Pebble key-value store.
//
// Every page is one key, so a tree can share a Pebble instance with other
// data. Keys:
//
//	"h"           header page
//	"m"           page size, header size and highest allocated id
//	"f"           serialized roaring bitmap of free ids
//	"p/" + BE id  data page
package pebblestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/hupe1980/gomam/pagestore"
)

var (
	keyHeader = []byte("h")
	keyMeta   = []byte("m")
	keyFree   = []byte("f")
)

const metaSize = 12

func pageKey(id pagestore.PageID) []byte {
	k := make([]byte, 6)
	k[0], k[1] = 'p', '/'
	binary.BigEndian.PutUint32(k[2:], uint32(id))
	return k
}

// Options configures Open.
type Options struct {
	PageSize   int
	HeaderSize int

	// InMemory keeps the database in memory when FS is nil.
	InMemory bool

	// FS overrides the file system Pebble uses.
	FS vfs.FS

	// Sync makes every allocation and disposal durable before returning.
	Sync bool

	Logger *slog.Logger
}

// Compile time check to ensure Manager satisfies the pagestore.Manager interface.
var _ pagestore.Manager = (*Manager)(nil)

// Manager implements pagestore.Manager on top of Pebble.
type Manager struct {
	db         *pebble.DB
	pageSize   int
	headerSize int
	maxID      pagestore.PageID
	free       *roaring.Bitmap
	writeOpts  *pebble.WriteOptions
	stats      pagestore.Stats
	spare      []*pagestore.Page
	logger     *slog.Logger
}

// Open opens or creates the Pebble database in dir.
func Open(dir string, opts Options) (*Manager, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = pagestore.DefaultPageSize
	}
	if opts.HeaderSize <= 0 {
		opts.HeaderSize = pagestore.DefaultHeaderSize
	}
	if opts.PageSize < pagestore.MinimumPageSize {
		opts.PageSize = pagestore.MinimumPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	popts := &pebble.Options{FS: opts.FS}
	if popts.FS == nil && opts.InMemory {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}

	m := &Manager{
		db:         db,
		pageSize:   opts.PageSize,
		headerSize: opts.HeaderSize,
		free:       roaring.New(),
		writeOpts:  pebble.NoSync,
		logger:     opts.Logger.With("dir", dir),
	}
	if opts.Sync {
		m.writeOpts = pebble.Sync
	}

	if err := m.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) get(key []byte) ([]byte, error) {
	val, closer, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, nil
}

func (m *Manager) load() error {
	meta, err := m.get(keyMeta)
	if errors.Is(err, pebble.ErrNotFound) {
		m.logger.Debug("page store created", "page_size", m.pageSize)
		return m.db.Set(keyMeta, m.encodeMeta(), pebble.Sync)
	}
	if err != nil {
		return err
	}
	if len(meta) != metaSize {
		return fmt.Errorf("%w: bad meta record", pagestore.ErrCorruptFile)
	}
	m.pageSize = int(binary.LittleEndian.Uint32(meta[0:]))
	m.headerSize = int(binary.LittleEndian.Uint32(meta[4:]))
	m.maxID = pagestore.PageID(binary.LittleEndian.Uint32(meta[8:]))

	free, err := m.get(keyFree)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return err
	default:
		if err := m.free.UnmarshalBinary(free); err != nil {
			return fmt.Errorf("%w: bad free list: %v", pagestore.ErrCorruptFile, err)
		}
	}
	m.logger.Debug("page store opened", "pages", m.PageCount())
	return nil
}

func (m *Manager) encodeMeta() []byte {
	b := make([]byte, metaSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(m.pageSize))
	binary.LittleEndian.PutUint32(b[4:], uint32(m.headerSize))
	binary.LittleEndian.PutUint32(b[8:], uint32(m.maxID))
	return b
}

func (m *Manager) newPage(id pagestore.PageID) *pagestore.Page {
	if n := len(m.spare); n > 0 {
		p := m.spare[n-1]
		m.spare = m.spare[:n-1]
		p.Clear()
		p.SetID(id)
		m.stats.PoolHits++
		return p
	}
	m.stats.PoolMisses++
	return pagestore.NewPage(id, m.pageSize)
}

func (m *Manager) check(id pagestore.PageID) error {
	if m.db == nil {
		return pagestore.ErrClosed
	}
	if id == pagestore.HeaderPageID {
		return pagestore.ErrHeaderPage
	}
	if id > m.maxID || m.free.Contains(uint32(id)) {
		return pagestore.ErrPageNotFound
	}
	return nil
}

// IsEmpty implements pagestore.Manager.
func (m *Manager) IsEmpty() bool { return m.PageCount() == 0 }

// HeaderPage implements pagestore.Manager.
func (m *Manager) HeaderPage() (*pagestore.Page, error) {
	if m.db == nil {
		return nil, pagestore.ErrClosed
	}
	p := pagestore.NewPage(pagestore.HeaderPageID, m.headerSize)
	data, err := m.get(keyHeader)
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return nil, err
	}
	copy(p.Data(), data)
	m.stats.Reads++
	return p, nil
}

// ReadPage implements pagestore.Manager.
func (m *Manager) ReadPage(id pagestore.PageID) (*pagestore.Page, error) {
	if err := m.check(id); err != nil {
		return nil, &pagestore.PageError{Op: "read", ID: id, Err: err}
	}
	data, err := m.get(pageKey(id))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return nil, &pagestore.PageError{Op: "read", ID: id, Err: err}
	}
	p := m.newPage(id)
	copy(p.Data(), data)
	m.stats.Reads++
	return p, nil
}

// AllocatePage implements pagestore.Manager.
func (m *Manager) AllocatePage() (*pagestore.Page, error) {
	if m.db == nil {
		return nil, pagestore.ErrClosed
	}

	var id pagestore.PageID
	reused := !m.free.IsEmpty()
	if reused {
		id = pagestore.PageID(m.free.Minimum())
	} else {
		id = m.maxID + 1
	}

	b := m.db.NewBatch()
	defer b.Close()
	if err := b.Delete(pageKey(id), nil); err != nil {
		return nil, err
	}

	if reused {
		m.free.Remove(uint32(id))
	} else {
		m.maxID = id
	}
	if err := m.stageBookkeeping(b); err != nil {
		return nil, err
	}
	if err := b.Commit(m.writeOpts); err != nil {
		return nil, &pagestore.PageError{Op: "allocate", ID: id, Err: err}
	}
	m.stats.Writes++
	return m.newPage(id), nil
}

// WritePage implements pagestore.Manager.
func (m *Manager) WritePage(p *pagestore.Page) error {
	if p.Size() != m.pageSize {
		return &pagestore.PageError{Op: "write", ID: p.ID(), Err: pagestore.ErrPageSize}
	}
	if err := m.check(p.ID()); err != nil {
		return &pagestore.PageError{Op: "write", ID: p.ID(), Err: err}
	}
	if err := m.db.Set(pageKey(p.ID()), p.Data(), m.writeOpts); err != nil {
		return &pagestore.PageError{Op: "write", ID: p.ID(), Err: err}
	}
	m.stats.Writes++
	return nil
}

// WriteHeaderPage implements pagestore.Manager.
func (m *Manager) WriteHeaderPage(p *pagestore.Page) error {
	if m.db == nil {
		return pagestore.ErrClosed
	}
	if p.ID() != pagestore.HeaderPageID || p.Size() != m.headerSize {
		return &pagestore.PageError{Op: "write header", ID: p.ID(), Err: pagestore.ErrPageSize}
	}
	if err := m.db.Set(keyHeader, p.Data(), pebble.Sync); err != nil {
		return err
	}
	m.stats.Writes++
	return nil
}

// ReleasePage implements pagestore.Manager.
func (m *Manager) ReleasePage(p *pagestore.Page) {
	if p == nil || p.Size() != m.pageSize || len(m.spare) >= pagestore.DefaultPoolCapacity {
		return
	}
	for _, q := range m.spare {
		if q == p {
			return
		}
	}
	m.spare = append(m.spare, p)
}

// DisposePage implements pagestore.Manager.
func (m *Manager) DisposePage(p *pagestore.Page) error {
	id := p.ID()
	if err := m.check(id); err != nil {
		return &pagestore.PageError{Op: "dispose", ID: id, Err: err}
	}

	b := m.db.NewBatch()
	defer b.Close()
	if err := b.Delete(pageKey(id), nil); err != nil {
		return err
	}
	m.free.Add(uint32(id))
	if err := m.stageBookkeeping(b); err != nil {
		m.free.Remove(uint32(id))
		return err
	}
	if err := b.Commit(m.writeOpts); err != nil {
		m.free.Remove(uint32(id))
		return &pagestore.PageError{Op: "dispose", ID: id, Err: err}
	}
	m.ReleasePage(p)
	return nil
}

func (m *Manager) stageBookkeeping(b *pebble.Batch) error {
	if err := b.Set(keyMeta, m.encodeMeta(), nil); err != nil {
		return err
	}
	free, err := m.free.ToBytes()
	if err != nil {
		return err
	}
	return b.Set(keyFree, free, nil)
}

// PageSize implements pagestore.Manager.
func (m *Manager) PageSize() int { return m.pageSize }

// MinimumPageSize implements pagestore.Manager.
func (m *Manager) MinimumPageSize() int { return pagestore.MinimumPageSize }

// PageCount implements pagestore.Manager.
func (m *Manager) PageCount() int {
	return int(m.maxID) - int(m.free.GetCardinality())
}

// Stats implements pagestore.Manager.
func (m *Manager) Stats() pagestore.Stats { return m.stats }

// ResetStatistics implements pagestore.Manager.
func (m *Manager) ResetStatistics() { m.stats = pagestore.Stats{} }

// Flush persists the memtable.
func (m *Manager) Flush() error {
	if m.db == nil {
		return pagestore.ErrClosed
	}
	return m.db.Flush()
}

// Close closes the database.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
