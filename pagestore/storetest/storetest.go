// Package storetest checks that a pagestore.Manager honors the page manager
// contract. Backends call Run from their own tests.
package storetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/pagestore"
)

// Factory creates an empty manager with the given data page size.
type Factory func(t *testing.T, pageSize int) pagestore.Manager

// Run executes the contract tests against managers made by newManager.
func Run(t *testing.T, newManager Factory) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, newManager(t, 256)) })
	t.Run("ReadWrite", func(t *testing.T) { testReadWrite(t, newManager(t, 256)) })
	t.Run("HeaderPage", func(t *testing.T) { testHeaderPage(t, newManager(t, 256)) })
	t.Run("DisposeReusesID", func(t *testing.T) { testDisposeReusesID(t, newManager(t, 256)) })
	t.Run("ReusesSmallestFreeID", func(t *testing.T) { testReusesSmallestFreeID(t, newManager(t, 128)) })
	t.Run("AllocatedPagesAreZeroed", func(t *testing.T) { testAllocatedZeroed(t, newManager(t, 128)) })
	t.Run("Errors", func(t *testing.T) { testErrors(t, newManager(t, 128)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newManager(t, 128)) })
}

func testEmpty(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, m.PageCount())
	assert.Equal(t, 256, m.PageSize())
	assert.LessOrEqual(t, m.MinimumPageSize(), m.PageSize())

	p, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, pagestore.PageID(1), p.ID())
	m.ReleasePage(p)

	assert.False(t, m.IsEmpty())
	assert.Equal(t, 1, m.PageCount())
}

func testReadWrite(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	ids := make([]pagestore.PageID, 0, 5)
	for i := 0; i < 5; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, 256, p.Size())
		for j := range p.Data() {
			p.Data()[j] = byte(i + 1)
		}
		require.NoError(t, m.WritePage(p))
		ids = append(ids, p.ID())
		m.ReleasePage(p)
	}

	for i, id := range ids {
		p, err := m.ReadPage(id)
		require.NoError(t, err)
		assert.Equal(t, id, p.ID())
		assert.Equal(t, byte(i+1), p.Data()[0])
		assert.Equal(t, byte(i+1), p.Data()[255])
		m.ReleasePage(p)
	}
	assert.Equal(t, 5, m.PageCount())
}

func testHeaderPage(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	h, err := m.HeaderPage()
	require.NoError(t, err)
	assert.Equal(t, pagestore.HeaderPageID, h.ID())
	copy(h.Data(), "tree header")
	require.NoError(t, m.WriteHeaderPage(h))
	m.ReleasePage(h)

	assert.True(t, m.IsEmpty(), "header page does not count as a data page")

	h, err = m.HeaderPage()
	require.NoError(t, err)
	assert.Equal(t, "tree header", string(h.Data()[:11]))
	m.ReleasePage(h)
}

func testDisposeReusesID(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	var pages []*pagestore.Page
	for i := 0; i < 3; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		pages = append(pages, p)
	}
	freed := pages[1].ID()
	require.NoError(t, m.DisposePage(pages[1]))
	assert.Equal(t, 2, m.PageCount())

	_, err := m.ReadPage(freed)
	assert.ErrorIs(t, err, pagestore.ErrPageNotFound)

	p, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, freed, p.ID())
	assert.Equal(t, 3, m.PageCount())

	m.ReleasePage(p)
	m.ReleasePage(pages[0])
	m.ReleasePage(pages[2])
}

func testReusesSmallestFreeID(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	var pages []*pagestore.Page
	for i := 0; i < 6; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		pages = append(pages, p)
	}
	low, high := pages[1].ID(), pages[4].ID()
	require.Less(t, low, high)
	require.NoError(t, m.DisposePage(pages[1]))
	require.NoError(t, m.DisposePage(pages[4]))

	p, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, low, p.ID(), "smallest free id first, whatever the dispose order")
	q, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, high, q.ID())

	for _, pg := range []*pagestore.Page{p, q, pages[0], pages[2], pages[3], pages[5]} {
		m.ReleasePage(pg)
	}
}

func testAllocatedZeroed(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	p, err := m.AllocatePage()
	require.NoError(t, err)
	for i := range p.Data() {
		p.Data()[i] = 0xff
	}
	require.NoError(t, m.WritePage(p))
	id := p.ID()
	require.NoError(t, m.DisposePage(p))

	p, err = m.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, id, p.ID())
	assert.Equal(t, make([]byte, 128), p.Data())
	require.NoError(t, m.WritePage(p))
	m.ReleasePage(p)

	p, err = m.ReadPage(id)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 128), p.Data())
	m.ReleasePage(p)
}

func testErrors(t *testing.T, m pagestore.Manager) {
	_, err := m.ReadPage(42)
	assert.ErrorIs(t, err, pagestore.ErrPageNotFound)

	_, err = m.ReadPage(pagestore.HeaderPageID)
	assert.Error(t, err)

	var pe *pagestore.PageError
	_, err = m.ReadPage(7)
	if errors.As(err, &pe) {
		assert.Equal(t, pagestore.PageID(7), pe.ID)
	}

	wrong := pagestore.NewPage(1, 64)
	p, err := m.AllocatePage()
	require.NoError(t, err)
	assert.Error(t, m.WritePage(wrong))
	m.ReleasePage(p)

	require.NoError(t, m.Close())
	_, err = m.AllocatePage()
	assert.Error(t, err)
}

func testStats(t *testing.T, m pagestore.Manager) {
	defer m.Close()

	p, err := m.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, m.WritePage(p))
	m.ReleasePage(p)

	m.ResetStatistics()
	assert.Equal(t, uint64(0), m.Stats().Reads)

	for i := 0; i < 3; i++ {
		p, err := m.ReadPage(1)
		require.NoError(t, err)
		m.ReleasePage(p)
	}
	before := m.Stats()
	p, err = m.ReadPage(1)
	require.NoError(t, err)
	m.ReleasePage(p)

	delta := m.Stats().Sub(before)
	assert.LessOrEqual(t, delta.Reads, uint64(1))
	assert.Equal(t, uint64(0), delta.Writes)
}
