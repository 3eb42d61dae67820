package pagestore

// pagePool recycles page instances of a single size.
type pagePool struct {
	pageSize int
	lockSize int
	free     []*Page
	capacity int
	hits     uint64
	misses   uint64
}

func newPagePool(pageSize, lockSize, capacity int) *pagePool {
	return &pagePool{
		pageSize: pageSize,
		lockSize: lockSize,
		free:     make([]*Page, 0, capacity),
		capacity: capacity,
	}
}

// get returns a zeroed page with the given id.
func (pp *pagePool) get(id PageID) *Page {
	if n := len(pp.free); n > 0 {
		p := pp.free[n-1]
		pp.free[n-1] = nil
		pp.free = pp.free[:n-1]
		p.Clear()
		p.id = id
		pp.hits++
		return p
	}
	pp.misses++
	return NewLockedPage(id, pp.pageSize, pp.lockSize)
}

// put keeps p for reuse unless the pool is full or p has a foreign size.
func (pp *pagePool) put(p *Page) {
	if p == nil || p.Size() != pp.pageSize || p.lockSize != pp.lockSize {
		return
	}
	if len(pp.free) >= pp.capacity {
		return
	}
	for _, q := range pp.free {
		if q == p {
			return
		}
	}
	pp.free = append(pp.free, p)
}

func (pp *pagePool) resetStats() {
	pp.hits, pp.misses = 0, 0
}
