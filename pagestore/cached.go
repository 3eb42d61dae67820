package pagestore

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	defaultCachePages  = 1024
	defaultBufferItems = 64
)

// CacheConfig configures a CachedManager.
type CacheConfig struct {
	// MaxPages bounds the number of cached page images.
	MaxPages int64

	// NumCounters is the number of admission counters, ten times MaxPages by default.
	NumCounters int64
}

// Compile time check to ensure CachedManager satisfies the Manager interface.
var _ Manager = (*CachedManager)(nil)

// CachedManager keeps recently read page images in a ristretto cache in front
// of another Manager. Writes go through to the inner manager.
//
// Cache hits are not counted as reads, so Stats reports the I/O the inner
// manager actually performed. Pages served from the cache never reach the
// inner manager, so they hold no lease on a RemoteManager's server; every
// other page is released through the inner manager.
type CachedManager struct {
	inner Manager
	cache *ristretto.Cache[uint32, []byte]
	pool  *pagePool
	local map[*Page]struct{}
	hits  uint64
}

// NewCachedManager wraps inner with a read cache.
func NewCachedManager(inner Manager, cfg CacheConfig) (*CachedManager, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultCachePages
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxPages * 10
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxPages,
		BufferItems: defaultBufferItems,
		// Cost counts pages, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	return &CachedManager{
		inner: inner,
		cache: cache,
		pool:  newPagePool(inner.PageSize(), 0, DefaultPoolCapacity),
		local: make(map[*Page]struct{}),
	}, nil
}

// Inner returns the wrapped manager.
func (m *CachedManager) Inner() Manager { return m.inner }

// CacheHits returns how many reads were served from the cache.
func (m *CachedManager) CacheHits() uint64 { return m.hits }

// IsEmpty implements Manager.
func (m *CachedManager) IsEmpty() bool { return m.inner.IsEmpty() }

// HeaderPage implements Manager.
func (m *CachedManager) HeaderPage() (*Page, error) { return m.inner.HeaderPage() }

// ReadPage implements Manager.
func (m *CachedManager) ReadPage(id PageID) (*Page, error) {
	if data, ok := m.cache.Get(uint32(id)); ok {
		m.hits++
		p := m.pool.get(id)
		copy(p.Data(), data)
		m.local[p] = struct{}{}
		return p, nil
	}

	p, err := m.inner.ReadPage(id)
	if err != nil {
		return nil, err
	}
	m.store(id, p.Data())
	return p, nil
}

// AllocatePage implements Manager.
func (m *CachedManager) AllocatePage() (*Page, error) {
	p, err := m.inner.AllocatePage()
	if err != nil {
		return nil, err
	}
	m.cache.Del(uint32(p.ID()))
	return p, nil
}

// WritePage implements Manager.
func (m *CachedManager) WritePage(p *Page) error {
	m.cache.Del(uint32(p.ID()))
	if err := m.inner.WritePage(p); err != nil {
		return err
	}
	m.store(p.ID(), p.Data())
	return nil
}

// WriteHeaderPage implements Manager.
func (m *CachedManager) WriteHeaderPage(p *Page) error { return m.inner.WriteHeaderPage(p) }

// ReleasePage implements Manager.
func (m *CachedManager) ReleasePage(p *Page) {
	if p == nil {
		return
	}
	if _, ok := m.local[p]; ok {
		delete(m.local, p)
		m.pool.put(p)
		return
	}
	m.inner.ReleasePage(p)
}

// DisposePage implements Manager.
func (m *CachedManager) DisposePage(p *Page) error {
	delete(m.local, p)
	m.cache.Del(uint32(p.ID()))
	m.cache.Wait()
	return m.inner.DisposePage(p)
}

// PageSize implements Manager.
func (m *CachedManager) PageSize() int { return m.inner.PageSize() }

// MinimumPageSize implements Manager.
func (m *CachedManager) MinimumPageSize() int { return m.inner.MinimumPageSize() }

// PageCount implements Manager.
func (m *CachedManager) PageCount() int { return m.inner.PageCount() }

// Stats implements Manager.
func (m *CachedManager) Stats() Stats {
	s := m.inner.Stats()
	s.PoolHits += m.pool.hits
	s.PoolMisses += m.pool.misses
	return s
}

// ResetStatistics implements Manager.
func (m *CachedManager) ResetStatistics() {
	m.inner.ResetStatistics()
	m.pool.resetStats()
	m.hits = 0
}

// Close clears the cache and closes the inner manager.
func (m *CachedManager) Close() error {
	m.cache.Close()
	return m.inner.Close()
}

func (m *CachedManager) store(id PageID, data []byte) {
	m.cache.Set(uint32(id), append([]byte(nil), data...), 1)
	m.cache.Wait()
}
