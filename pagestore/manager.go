package pagestore

// Manager allocates and persists pages.
//
// All backends implement this contract identically so that trees can be
// moved between them without changes.
type Manager interface {
	// IsEmpty reports whether only the header page exists.
	IsEmpty() bool

	// HeaderPage returns page 0, creating it on first use.
	HeaderPage() (*Page, error)

	// ReadPage returns the page with the given id or ErrPageNotFound.
	ReadPage(id PageID) (*Page, error)

	// AllocatePage returns a zeroed page with a fresh id, reusing freed ids first.
	AllocatePage() (*Page, error)

	// WritePage persists a data page without releasing it.
	WritePage(p *Page) error

	// WriteHeaderPage persists the header page without releasing it.
	WriteHeaderPage(p *Page) error

	// ReleasePage hands the page instance back to the manager.
	ReleasePage(p *Page)

	// DisposePage frees the page id for reuse and releases the instance.
	DisposePage(p *Page) error

	// PageSize returns the usable size of data pages.
	PageSize() int

	// MinimumPageSize returns the smallest page size this backend accepts.
	MinimumPageSize() int

	// PageCount returns the number of live data pages.
	PageCount() int

	// Stats returns the I/O counters.
	Stats() Stats

	// ResetStatistics zeroes the I/O counters.
	ResetStatistics()

	// Close releases backing resources.
	Close() error
}

// Stats holds instrumentation counters of a Manager.
type Stats struct {
	Reads      uint64
	Writes     uint64
	PoolHits   uint64
	PoolMisses uint64
}

// Add returns the element-wise sum of two Stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Reads:      s.Reads + o.Reads,
		Writes:     s.Writes + o.Writes,
		PoolHits:   s.PoolHits + o.PoolHits,
		PoolMisses: s.PoolMisses + o.PoolMisses,
	}
}

// Sub returns s minus o, used to measure the cost of a single operation.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Reads:      s.Reads - o.Reads,
		Writes:     s.Writes - o.Writes,
		PoolHits:   s.PoolHits - o.PoolHits,
		PoolMisses: s.PoolMisses - o.PoolMisses,
	}
}
