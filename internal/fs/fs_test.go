package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	fpath := filepath.Join(tmp, "pages.db")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("hello"), 4)
	require.NoError(t, err)
	assert.NoError(t, f.Sync())

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size())

	require.NoError(t, f.Truncate(2))
	require.NoError(t, f.Close())

	info, err = lfs.Stat(fpath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size())

	require.NoError(t, lfs.Remove(fpath))
	_, err = lfs.Stat(fpath)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("bad", Fault{FailAfterBytes: 8, FailOnSync: true})
	ffs.AddRule("unreadable", Fault{FailAfterBytes: -1, FailOnRead: true})

	t.Run("WriteLimit", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(tmp, "bad.db"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer f.Close()

		_, err = f.WriteAt(make([]byte, 8), 0)
		require.NoError(t, err)
		_, err = f.WriteAt(make([]byte, 1), 8)
		assert.ErrorIs(t, err, ErrInjected)
		assert.ErrorIs(t, f.Sync(), ErrInjected)
	})

	t.Run("Read", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(tmp, "unreadable.db"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer f.Close()

		_, err = f.WriteAt([]byte("x"), 0)
		require.NoError(t, err)
		_, err = f.ReadAt(make([]byte, 1), 0)
		assert.ErrorIs(t, err, ErrInjected)
	})

	t.Run("NoRule", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(tmp, "good.db"), os.O_CREATE|os.O_RDWR, 0o644)
		require.NoError(t, err)
		defer f.Close()

		_, err = f.WriteAt(make([]byte, 64), 0)
		assert.NoError(t, err)
		assert.NoError(t, f.Sync())
	})
}
