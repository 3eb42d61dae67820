package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeFile(t, []byte("page-one|page-two")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 17, m.Len())
	require.NoError(t, m.Advise(HintSequential))

	buf := make([]byte, 8)
	n, err := m.ReadAt(buf, 9)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "page-two", string(buf))

	t.Run("partial", func(t *testing.T) {
		buf := make([]byte, 10)
		n, err := m.ReadAt(buf, 13)
		assert.Equal(t, 4, n)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("past end", func(t *testing.T) {
		n, err := m.ReadAt(buf, 100)
		assert.Equal(t, 0, n)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := m.ReadAt(buf, -1)
		assert.ErrorIs(t, err, ErrInvalidOffset)
	})
}

func TestMapping_Close(t *testing.T) {
	m, err := Open(writeFile(t, []byte("abc")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Advise(HintRandom), ErrClosed)
}

func TestMapping_EmptyFile(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Bytes())
}
