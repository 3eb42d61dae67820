package pagestore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// Compile time check to ensure MultipleManager satisfies the Manager interface.
var _ Manager = (*MultipleManager)(nil)

// MultipleManager spreads pages over several files of at most pagesPerShard
// pages each, named basename.0, basename.1, ...
//
// Logical id n maps to shard (n-1)/P and local id (n-1)%P+1, so n = P is the
// last page of shard 0 and n = P+1 the first page of shard 1. Only shard 0
// holds the header page.
type MultipleManager struct {
	basename      string
	pagesPerShard int
	optFns        []Option
	opts          options
	shards        []*DiskManager
	logger        *slog.Logger
}

// OpenMultipleManager opens all existing shards of basename or creates shard 0.
func OpenMultipleManager(basename string, pagesPerShard int, optFns ...Option) (*MultipleManager, error) {
	if pagesPerShard <= 0 {
		return nil, fmt.Errorf("pages per shard must be positive, got %d", pagesPerShard)
	}
	o := applyOptions(optFns)
	m := &MultipleManager{
		basename:      basename,
		pagesPerShard: pagesPerShard,
		optFns:        optFns,
		opts:          o,
		logger:        o.logger.With("basename", basename),
	}

	for i := 0; ; i++ {
		name := ShardFileName(basename, i)
		if i > 0 {
			if _, err := o.fs.Stat(name); errors.Is(err, os.ErrNotExist) {
				break
			} else if err != nil {
				_ = m.Close()
				return nil, fmt.Errorf("failed to stat shard %s: %w", name, err)
			}
		}
		if _, err := m.openShard(); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

// ShardFileName returns the file name of shard i.
func ShardFileName(basename string, i int) string {
	return fmt.Sprintf("%s.%d", basename, i)
}

// Locate maps a logical page id to its shard index and local id.
func Locate(id PageID, pagesPerShard int) (shard int, local PageID) {
	n := int(id) - 1
	return n / pagesPerShard, PageID(n%pagesPerShard + 1)
}

// LogicalID is the inverse of Locate.
func LogicalID(shard int, local PageID, pagesPerShard int) PageID {
	return PageID(shard*pagesPerShard) + local
}

// ShardCount returns the number of open shard files.
func (m *MultipleManager) ShardCount() int { return len(m.shards) }

// PagesPerShard returns the shard capacity.
func (m *MultipleManager) PagesPerShard() int { return m.pagesPerShard }

// IsEmpty implements Manager.
func (m *MultipleManager) IsEmpty() bool {
	return m.PageCount() == 0
}

// HeaderPage implements Manager.
func (m *MultipleManager) HeaderPage() (*Page, error) {
	if len(m.shards) == 0 {
		return nil, ErrClosed
	}
	return m.shards[0].HeaderPage()
}

// WriteHeaderPage implements Manager.
func (m *MultipleManager) WriteHeaderPage(p *Page) error {
	if len(m.shards) == 0 {
		return ErrClosed
	}
	return m.shards[0].WriteHeaderPage(p)
}

// ReadPage implements Manager.
func (m *MultipleManager) ReadPage(id PageID) (*Page, error) {
	s, local, err := m.route(id)
	if err != nil {
		return nil, pageError("read", id, err)
	}
	p, err := s.ReadPage(local)
	if err != nil {
		return nil, pageError("read", id, err)
	}
	p.SetID(id)
	return p, nil
}

// AllocatePage implements Manager.
func (m *MultipleManager) AllocatePage() (*Page, error) {
	if len(m.shards) == 0 {
		return nil, ErrClosed
	}
	idx := -1
	for i, s := range m.shards {
		if s.freeHead != 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		last := len(m.shards) - 1
		if int(m.shards[last].maxID) < m.pagesPerShard {
			idx = last
		} else {
			var err error
			if idx, err = m.openShard(); err != nil {
				return nil, err
			}
		}
	}

	p, err := m.shards[idx].AllocatePage()
	if err != nil {
		return nil, err
	}
	p.SetID(LogicalID(idx, p.ID(), m.pagesPerShard))
	return p, nil
}

// WritePage implements Manager.
func (m *MultipleManager) WritePage(p *Page) error {
	id := p.ID()
	s, local, err := m.route(id)
	if err != nil {
		return pageError("write", id, err)
	}
	p.SetID(local)
	err = s.WritePage(p)
	p.SetID(id)
	if err != nil {
		return pageError("write", id, err)
	}
	return nil
}

// ReleasePage implements Manager.
func (m *MultipleManager) ReleasePage(p *Page) {
	if p == nil || len(m.shards) == 0 {
		return
	}
	if p.ID() == HeaderPageID {
		m.shards[0].ReleasePage(p)
		return
	}
	if s, _, err := m.route(p.ID()); err == nil {
		s.ReleasePage(p)
	}
}

// DisposePage implements Manager.
func (m *MultipleManager) DisposePage(p *Page) error {
	id := p.ID()
	s, local, err := m.route(id)
	if err != nil {
		return pageError("dispose", id, err)
	}
	p.SetID(local)
	if err := s.DisposePage(p); err != nil {
		p.SetID(id)
		return pageError("dispose", id, err)
	}
	return nil
}

// PageSize implements Manager.
func (m *MultipleManager) PageSize() int {
	if len(m.shards) == 0 {
		return m.opts.pageSize
	}
	return m.shards[0].PageSize()
}

// MinimumPageSize implements Manager.
func (m *MultipleManager) MinimumPageSize() int { return MinimumPageSize }

// PageCount implements Manager.
func (m *MultipleManager) PageCount() int {
	n := 0
	for _, s := range m.shards {
		n += s.PageCount()
	}
	return n
}

// Stats implements Manager.
func (m *MultipleManager) Stats() Stats {
	var st Stats
	for _, s := range m.shards {
		st = st.Add(s.Stats())
	}
	return st
}

// ResetStatistics implements Manager.
func (m *MultipleManager) ResetStatistics() {
	for _, s := range m.shards {
		s.ResetStatistics()
	}
}

// Sync flushes all shard files.
func (m *MultipleManager) Sync() error {
	var g errgroup.Group
	for _, s := range m.shards {
		g.Go(s.Sync)
	}
	return g.Wait()
}

// Close closes all shard files.
func (m *MultipleManager) Close() error {
	var g errgroup.Group
	for _, s := range m.shards {
		g.Go(s.Close)
	}
	err := g.Wait()
	m.shards = nil
	return err
}

func (m *MultipleManager) route(id PageID) (*DiskManager, PageID, error) {
	if len(m.shards) == 0 {
		return nil, 0, ErrClosed
	}
	if id == HeaderPageID {
		return nil, 0, ErrHeaderPage
	}
	shard, local := Locate(id, m.pagesPerShard)
	if shard >= len(m.shards) {
		return nil, 0, ErrPageNotFound
	}
	return m.shards[shard], local, nil
}

func (m *MultipleManager) openShard() (int, error) {
	idx := len(m.shards)
	name := ShardFileName(m.basename, idx)
	s, err := OpenDiskManager(name, m.optFns...)
	if err != nil {
		return 0, fmt.Errorf("failed to open shard %d: %w", idx, err)
	}
	if idx > 0 && s.PageSize() != m.shards[0].PageSize() {
		_ = s.Close()
		return 0, fmt.Errorf("%w: shard %d has page size %d", ErrCorruptFile, idx, s.PageSize())
	}
	m.shards = append(m.shards, s)
	m.logger.Debug("shard opened", "shard", idx, "pages", s.PageCount())
	return idx, nil
}
