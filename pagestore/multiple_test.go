package pagestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	const p = 4
	tests := []struct {
		id    PageID
		shard int
		local PageID
	}{
		{1, 0, 1},
		{p, 0, p},
		{p + 1, 1, 1},
		{2 * p, 1, p},
		{2*p + 1, 2, 1},
	}
	for _, tt := range tests {
		shard, local := Locate(tt.id, p)
		assert.Equal(t, tt.shard, shard, "id %d", tt.id)
		assert.Equal(t, tt.local, local, "id %d", tt.id)
		assert.Equal(t, tt.id, LogicalID(shard, local, p))
	}
}

func TestMultipleManager_Sharding(t *testing.T) {
	base := filepath.Join(t.TempDir(), "tree")
	m, err := OpenMultipleManager(base, 3, WithPageSize(64))
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		require.Equal(t, PageID(i), p.ID())
		p.Data()[0] = byte(i)
		require.NoError(t, m.WritePage(p))
		assert.Equal(t, PageID(i), p.ID(), "id restored after routing")
		m.ReleasePage(p)
	}
	assert.Equal(t, 3, m.ShardCount())
	assert.Equal(t, 3, m.PagesPerShard())
	for i := 0; i < 3; i++ {
		_, err := os.Stat(ShardFileName(base, i))
		require.NoError(t, err)
	}

	p, err := m.ReadPage(5)
	require.NoError(t, err)
	require.NoError(t, m.DisposePage(p))
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	m, err = OpenMultipleManager(base, 3)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 3, m.ShardCount())
	assert.Equal(t, 6, m.PageCount())

	for _, id := range []PageID{1, 3, 4, 6, 7} {
		p, err := m.ReadPage(id)
		require.NoError(t, err)
		assert.Equal(t, byte(id), p.Data()[0])
		m.ReleasePage(p)
	}

	_, err = m.ReadPage(5)
	assert.ErrorIs(t, err, ErrPageNotFound)
	_, err = m.ReadPage(10)
	assert.ErrorIs(t, err, ErrPageNotFound)

	p, err = m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(5), p.ID())
}

func TestMultipleManager_InvalidShardSize(t *testing.T) {
	_, err := OpenMultipleManager(filepath.Join(t.TempDir(), "tree"), 0)
	assert.Error(t, err)
}
