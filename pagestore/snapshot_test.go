package pagestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/blobstore"
	"github.com/hupe1980/gomam/resource"
)

// fillManager allocates n pages with a compressible pattern and disposes the
// ids in holes.
func fillManager(t *testing.T, m Manager, n int, holes ...PageID) {
	t.Helper()

	h, err := m.HeaderPage()
	require.NoError(t, err)
	copy(h.Data(), "GMAM header")
	require.NoError(t, m.WriteHeaderPage(h))
	m.ReleasePage(h)

	for i := 1; i <= n; i++ {
		p, err := m.AllocatePage()
		require.NoError(t, err)
		for j := range p.Data() {
			p.Data()[j] = byte(i + j%4)
		}
		require.NoError(t, m.WritePage(p))
		m.ReleasePage(p)
	}
	for _, id := range holes {
		p, err := m.ReadPage(id)
		require.NoError(t, err)
		require.NoError(t, m.DisposePage(p))
	}
}

func assertSameContent(t *testing.T, want, got Manager) {
	t.Helper()
	require.Equal(t, want.PageCount(), got.PageCount())

	wh, err := want.HeaderPage()
	require.NoError(t, err)
	gh, err := got.HeaderPage()
	require.NoError(t, err)
	assert.Equal(t, wh.Data(), gh.Data())

	for id := PageID(1); id <= PageID(want.PageCount()+4); id++ {
		wp, werr := want.ReadPage(id)
		gp, gerr := got.ReadPage(id)
		if werr != nil {
			assert.ErrorIs(t, gerr, ErrPageNotFound, "page %d", id)
			continue
		}
		require.NoError(t, gerr, "page %d", id)
		assert.Equal(t, wp.Data(), gp.Data(), "page %d", id)
		want.ReleasePage(wp)
		got.ReleasePage(gp)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			src := NewMemoryManager(WithPageSize(256))
			fillManager(t, src, 9, 3, 4, 9)

			var buf bytes.Buffer
			info, err := Export(src, &buf, c)
			require.NoError(t, err)
			assert.Equal(t, 6, info.Pages)
			assert.Equal(t, PageID(8), info.MaxID)
			if c != CompressionNone {
				assert.Less(t, buf.Len(), 6*256)
			}

			dst := NewMemoryManager(WithPageSize(256))
			got, err := Import(&buf, dst)
			require.NoError(t, err)
			assert.Equal(t, info, got)
			assertSameContent(t, src, dst)
		})
	}
}

func TestSnapshot_Errors(t *testing.T) {
	src := NewMemoryManager(WithPageSize(128))
	fillManager(t, src, 2)
	var buf bytes.Buffer
	_, err := Export(src, &buf, CompressionLZ4)
	require.NoError(t, err)
	data := buf.Bytes()

	t.Run("non-empty target", func(t *testing.T) {
		_, err := Import(bytes.NewReader(data), src)
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("page size mismatch", func(t *testing.T) {
		_, err := Import(bytes.NewReader(data), NewMemoryManager(WithPageSize(256)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] ^= 0xff
		_, err := Import(bytes.NewReader(bad), NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Import(bytes.NewReader(data[:len(data)-10]), NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})
}

func TestSnapshot_BackupRestore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})

	src := NewMemoryManager(WithPageSize(128))
	fillManager(t, src, 5, 2)

	info, err := Backup(ctx, src, store, "trees/mm.gmsn", CompressionZSTD, rc)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Pages)

	snaps, err := store.List(ctx, "trees/")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "trees/mm.gmsn", snaps[0].Name)

	dst := NewMemoryManager(WithPageSize(128))
	_, err = Restore(ctx, store, "trees/mm.gmsn", dst, nil)
	require.NoError(t, err)
	assertSameContent(t, src, dst)

	_, err = Restore(ctx, store, "missing", NewMemoryManager(WithPageSize(128)), nil)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSnapshot_BackupAbortsOnFailure(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := NewMemoryManager(WithPageSize(128))
	fillManager(t, src, 3)
	require.NoError(t, src.Close())

	_, err := Backup(ctx, src, store, "broken.gmsn", CompressionNone, nil)
	require.ErrorIs(t, err, ErrClosed)

	_, err = store.Open(ctx, "broken.gmsn")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSnapshot_BlockSizesChecked(t *testing.T) {
	src := NewMemoryManager(WithPageSize(128))
	fillManager(t, src, 2)
	var buf bytes.Buffer
	_, err := Export(src, &buf, CompressionNone)
	require.NoError(t, err)
	data := buf.Bytes()

	// The header block follows the preamble.
	sizeAt, storedAt := snapshotPreambleSize, snapshotPreambleSize+4
	patched := func(off int, v uint32) []byte {
		b := bytes.Clone(data)
		binary.LittleEndian.PutUint32(b[off:], v)
		return b
	}

	t.Run("oversized block", func(t *testing.T) {
		_, err := Import(bytes.NewReader(patched(sizeAt, 0xfffffff0)), NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("stored not smaller", func(t *testing.T) {
		_, err := Import(bytes.NewReader(patched(storedAt, 0xfffffff0)), NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("header larger than target", func(t *testing.T) {
		_, err := Import(bytes.NewReader(data), NewMemoryManager(WithPageSize(128), WithHeaderSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := Import(bytes.NewReader(append(bytes.Clone(data), 0)), NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})

	t.Run("shorter than recorded", func(t *testing.T) {
		blob := blobstore.NewBlob(io.NopCloser(bytes.NewReader(data[:len(data)-1])), int64(len(data)))
		_, err := Import(blob, NewMemoryManager(WithPageSize(128)))
		assert.ErrorIs(t, err, ErrBadSnapshot)
	})
}

func TestParseCompression(t *testing.T) {
	for s, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "lz4": CompressionLZ4, "zstd": CompressionZSTD} {
		got, err := ParseCompression(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}
