package node

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/pagestore"
)

// entries abstracts the slotted operations shared by every kind.
type entries interface {
	AddEntry(obj []byte) (int, bool)
	Object(i int) ([]byte, error)
	ObjectSize(i int) (int, error)
	RemoveEntry(i int) error
	Free() int
	NumberOfEntries() int
}

func formatters() map[string]struct {
	layout Layout
	format func([]byte) (entries, error)
} {
	return map[string]struct {
		layout Layout
		format func([]byte) (entries, error)
	}{
		"Dummy": {DummyLayout, func(b []byte) (entries, error) { return FormatDummy(b) }},
		"GH":    {GHLayout, func(b []byte) (entries, error) { return FormatGH(b) }},
		"MM":    {MMLayout, func(b []byte) (entries, error) { return FormatMM(b) }},
		"VP":    {VPLayout, func(b []byte) (entries, error) { return FormatVP(b) }},
	}
}

func TestNode_FreeSpaceInvariant(t *testing.T) {
	for name, tc := range formatters() {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			buf := make([]byte, 512)
			n, err := tc.format(buf)
			require.NoError(t, err)

			var model [][]byte
			checkInvariant := func() {
				used := 0
				for i, want := range model {
					got, err := n.Object(i)
					require.NoError(t, err)
					require.True(t, bytes.Equal(want, got), "object %d", i)
					size, err := n.ObjectSize(i)
					require.NoError(t, err)
					require.Equal(t, len(want), size)
					used += size
				}
				require.Equal(t, len(model), n.NumberOfEntries())
				require.Equal(t, len(buf)-tc.layout.HeaderSize-len(model)*tc.layout.EntrySize-used, n.Free())
			}

			for range 400 {
				if len(model) > 0 && rng.Intn(3) == 0 {
					i := rng.Intn(len(model))
					require.NoError(t, n.RemoveEntry(i))
					model = append(model[:i], model[i+1:]...)
				} else {
					obj := make([]byte, rng.Intn(40))
					rng.Read(obj)
					idx, ok := n.AddEntry(obj)
					if ok {
						require.Equal(t, len(model), idx)
						model = append(model, obj)
					} else {
						full := tc.layout.MaxEntries > 0 && len(model) == tc.layout.MaxEntries
						require.True(t, full || n.Free() < tc.layout.EntrySize+len(obj))
					}
				}
				checkInvariant()
			}
		})
	}
}

func TestNode_RemoveKeepsBlobsPacked(t *testing.T) {
	buf := make([]byte, 256)
	n, err := FormatDummy(buf)
	require.NoError(t, err)
	objs := [][]byte{[]byte("aaaaaaaa"), []byte("bbbb"), []byte("cccccccccccc"), []byte("dd"), []byte("eeeeee")}
	for _, o := range objs {
		_, ok := n.AddEntry(o)
		require.True(t, ok)
	}

	// Removing the newest entry moves nothing above it.
	above := bytes.Clone(buf[len(buf)-26:])
	require.NoError(t, n.RemoveEntry(4))
	assert.Equal(t, above, buf[len(buf)-26:])

	require.NoError(t, n.RemoveEntry(0))
	require.NoError(t, n.RemoveEntry(1))
	assert.Equal(t, 2, n.NumberOfEntries())

	got, err := n.Object(0)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(got))
	got, err = n.Object(1)
	require.NoError(t, err)
	assert.Equal(t, "dd", string(got))
	assert.Equal(t, "ddbbbb", string(buf[len(buf)-6:]), "blobs end at the page end")
	assert.Equal(t, make([]byte, 30), buf[len(buf)-36:len(buf)-6], "vacated bytes are cleared")

	reopened, err := OpenDummy(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.NumberOfEntries())

	// The free space is one contiguous gap.
	fill := bytes.Repeat([]byte("f"), n.Free()-DummyLayout.EntrySize)
	idx, ok := n.AddEntry(fill)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0, n.Free())
}

func TestNode_IndexChecks(t *testing.T) {
	n, err := FormatDummy(make([]byte, 64))
	require.NoError(t, err)
	_, ok := n.AddEntry([]byte("abc"))
	require.True(t, ok)

	_, err = n.Object(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = n.ObjectSize(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, n.RemoveEntry(5), ErrIndexOutOfRange)

	assert.Equal(t, []byte("abc"), n.UncheckedObject(0))
	assert.Panics(t, func() { n.UncheckedObject(40) })
}

func TestNode_PageTooSmall(t *testing.T) {
	_, err := FormatMM(make([]byte, 35))
	assert.ErrorIs(t, err, ErrPageTooSmall)
	_, err = OpenGH(make([]byte, 8))
	assert.ErrorIs(t, err, ErrPageTooSmall)

	assert.Equal(t, 64-8-4, DummyLayout.MaxObjectSize(64))
}

func TestNode_OpenValidates(t *testing.T) {
	buf := make([]byte, 128)
	n, err := FormatGH(buf)
	require.NoError(t, err)
	_, ok := n.AddEntry([]byte("first"))
	require.True(t, ok)

	reopened, err := OpenGH(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.NumberOfEntries())

	corrupt := bytes.Clone(buf)
	binary.LittleEndian.PutUint32(corrupt[0:], 3)
	_, err = OpenGH(corrupt)
	assert.ErrorIs(t, err, ErrCorruptNode)

	corrupt = bytes.Clone(buf)
	binary.LittleEndian.PutUint32(corrupt[GHLayout.HeaderSize:], 4)
	_, err = OpenGH(corrupt)
	assert.ErrorIs(t, err, ErrCorruptNode)

	corrupt = make([]byte, 64)
	binary.LittleEndian.PutUint32(corrupt[0:], 1000)
	_, err = OpenDummy(corrupt)
	assert.ErrorIs(t, err, ErrCorruptNode)
}

func TestDummy_Next(t *testing.T) {
	buf := make([]byte, 64)
	n, err := FormatDummy(buf)
	require.NoError(t, err)
	assert.Equal(t, pagestore.PageID(0), n.Next())

	n.SetNext(9)
	reopened, err := OpenDummy(buf)
	require.NoError(t, err)
	assert.Equal(t, pagestore.PageID(9), reopened.Next())
}

func TestGH_Fields(t *testing.T) {
	n, err := FormatGH(make([]byte, 128))
	require.NoError(t, err)

	_, err = n.Child(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, ok := n.AddEntry([]byte("a"))
	require.True(t, ok)
	_, ok = n.AddEntry([]byte("b"))
	require.True(t, ok)
	_, ok = n.AddEntry([]byte("c"))
	assert.False(t, ok, "GH nodes hold two representatives")

	n.SetDistance(2.5)
	require.NoError(t, n.SetChild(0, 11))
	require.NoError(t, n.SetChild(1, 12))
	require.NoError(t, n.SetRadius(0, 1.25))
	require.NoError(t, n.SetRadius(1, 3))

	require.NoError(t, n.RemoveEntry(0))
	child, err := n.Child(0)
	require.NoError(t, err)
	assert.Equal(t, pagestore.PageID(12), child, "entry fields move with the entry")
	radius, err := n.Radius(0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, radius)
	assert.Equal(t, 2.5, n.Distance())

	obj, err := n.Object(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), obj)
}

func TestMM_Fields(t *testing.T) {
	buf := make([]byte, 128)
	n, err := FormatMM(buf)
	require.NoError(t, err)
	assert.True(t, n.IsLeaf())

	require.NoError(t, n.SetChild(RegionFar, 7))
	assert.False(t, n.IsLeaf())
	assert.ErrorIs(t, n.SetChild(NumRegions, 1), ErrIndexOutOfRange)
	_, err = n.Child(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	n.SetDistance(4)
	reopened, err := OpenMM(buf)
	require.NoError(t, err)
	child, err := reopened.Child(RegionFar)
	require.NoError(t, err)
	assert.Equal(t, pagestore.PageID(7), child)
	assert.Equal(t, 4.0, reopened.Distance())
}

func TestVP_Fields(t *testing.T) {
	buf := make([]byte, 64)
	n, err := FormatVP(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n.NumberOfEntries())

	_, ok := n.AddEntry(nil)
	require.True(t, ok, "empty objects are valid")
	assert.Equal(t, 1, n.NumberOfEntries())
	_, ok = n.AddEntry([]byte("x"))
	assert.False(t, ok)

	n.SetRadius(1.5)
	n.SetLeft(3)
	n.SetRight(4)

	reopened, err := OpenVP(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.NumberOfEntries())
	assert.Equal(t, 1.5, reopened.Radius())
	assert.Equal(t, pagestore.PageID(3), reopened.Left())
	assert.Equal(t, pagestore.PageID(4), reopened.Right())

	require.NoError(t, reopened.RemoveEntry(0))
	assert.Equal(t, 0, reopened.NumberOfEntries())
	assert.Equal(t, 64-16, reopened.Free())
}
