package pagestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/internal/fs"
)

func TestDiskManager_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")

	m, err := OpenDiskManager(path, WithPageSize(128), WithHeaderSize(96))
	require.NoError(t, err)

	h, err := m.HeaderPage()
	require.NoError(t, err)
	copy(h.Data(), "root=3")
	require.NoError(t, m.WriteHeaderPage(h))

	for i := 1; i <= 4; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		p.Data()[0] = byte(i * 10)
		require.NoError(t, m.WritePage(p))
		m.ReleasePage(p)
	}
	p, err := m.ReadPage(2)
	require.NoError(t, err)
	require.NoError(t, m.DisposePage(p))
	p, err = m.ReadPage(4)
	require.NoError(t, err)
	require.NoError(t, m.DisposePage(p))
	require.NoError(t, m.Close())

	// Options are overridden by the sizes stored in the file.
	m, err = OpenDiskManager(path, WithPageSize(4096))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 128, m.PageSize())
	assert.Equal(t, 96, m.HeaderSize())
	assert.Equal(t, 2, m.PageCount())

	h, err = m.HeaderPage()
	require.NoError(t, err)
	assert.Equal(t, "root=3", string(h.Data()[:6]))

	p, err = m.ReadPage(3)
	require.NoError(t, err)
	assert.Equal(t, byte(30), p.Data()[0])
	m.ReleasePage(p)

	_, err = m.ReadPage(2)
	assert.ErrorIs(t, err, ErrPageNotFound)

	// The persisted free chain hands out the smallest id first.
	p, err = m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(2), p.ID())
	p, err = m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(4), p.ID())
	p, err = m.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(5), p.ID())
}

func TestDiskManager_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	m, err := OpenDiskManager(path, WithPageSize(64), WithHeaderSize(64))
	require.NoError(t, err)

	p, err := m.AllocatePage()
	require.NoError(t, err)
	copy(p.Data(), "first")
	require.NoError(t, m.WritePage(p))
	require.NoError(t, m.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, preambleSize+64+64)
	assert.Equal(t, diskMagic, binary.LittleEndian.Uint32(raw[0:]))
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(raw[8:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw[16:]))
	assert.Equal(t, "first", string(raw[preambleSize+64:preambleSize+69]))
}

func TestDiskManager_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := OpenDiskManager(path)
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestDiskManager_FaultInjection(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("broken.db", fs.Fault{FailAfterBytes: preambleSize + 10})

		m, err := OpenDiskManager(filepath.Join(t.TempDir(), "broken.db"), WithPageSize(64), WithFileSystem(ffs))
		require.NoError(t, err)

		_, err = m.AllocatePage()
		assert.ErrorIs(t, err, fs.ErrInjected)
		var pe *PageError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("read", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tree.db")
		m, err := OpenDiskManager(path, WithPageSize(64))
		require.NoError(t, err)
		_, err = m.AllocatePage()
		require.NoError(t, err)
		require.NoError(t, m.Close())

		ffs := fs.NewFaultyFS(nil)
		m, err = OpenDiskManager(path, WithFileSystem(ffs))
		require.NoError(t, err)
		require.NoError(t, m.Close())

		ffs.AddRule("tree.db", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
		_, err = OpenDiskManager(path, WithFileSystem(ffs))
		assert.ErrorIs(t, err, ErrCorruptFile)
	})

	t.Run("sync", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("tree.db", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
		m, err := OpenDiskManager(filepath.Join(t.TempDir(), "tree.db"), WithFileSystem(ffs))
		require.NoError(t, err)
		assert.ErrorIs(t, m.Sync(), fs.ErrInjected)
		assert.ErrorIs(t, m.Close(), fs.ErrInjected)
	})
}
