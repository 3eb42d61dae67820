package index

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
)

func newTree(mgr pagestore.Manager, kind Kind) *Tree[[]float64] {
	return NewTree(mgr, kind, distance.Euclidean, codec.Codec[[]float64](codec.Float64Vector{}))
}

func TestHeader_EncodeDecode(t *testing.T) {
	h := Header{
		Kind:        KindMM,
		InsertMode:  1,
		SearchMode:  1,
		Built:       true,
		Root:        7,
		LastPage:    9,
		ObjectCount: 1 << 40,
		NodeCount:   12,
		Height:      3,
		Seed:        42,
	}
	buf := make([]byte, HeaderSize)
	require.NoError(t, h.Encode(buf))
	assert.Equal(t, []byte("GMAM"), buf[:4])

	var got Header
	require.NoError(t, got.Decode(buf))
	assert.Equal(t, h, got)

	buf[0] = 'X'
	assert.ErrorIs(t, got.Decode(buf), ErrCorruptHeader)
	assert.ErrorIs(t, got.Decode(buf[:10]), ErrCorruptHeader)
	assert.ErrorIs(t, h.Encode(buf[:47]), ErrCorruptHeader)
}

func TestKind_Parse(t *testing.T) {
	for _, k := range []Kind{KindDummy, KindGH, KindMM, KindVP} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("slim")
	assert.Error(t, err)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestTree_Lifecycle(t *testing.T) {
	mgr := pagestore.NewMemoryManager(pagestore.WithPageSize(256))

	tree := newTree(mgr, KindGH)
	assert.ErrorIs(t, tree.Ready(), ErrNotReady)

	created, err := tree.Open(func(h *Header) { h.Seed = 5 })
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, tree.Ready())
	assert.False(t, tree.Dirty())

	tree.Header().ObjectCount = 3
	tree.Header().Height = 2
	tree.MarkDirty()
	require.NoError(t, tree.Close())
	require.NoError(t, tree.Close())
	assert.ErrorIs(t, tree.WriteHeader(), ErrNotReady)

	reopened := newTree(mgr, KindGH)
	created, err = reopened.Open(nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 3, reopened.NumberOfObjects())
	assert.Equal(t, 2, reopened.Height())
	assert.Equal(t, uint64(5), reopened.Header().Seed)
	require.NoError(t, reopened.Close())

	wrong := newTree(mgr, KindVP)
	_, err = wrong.Open(nil)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestTree_HeaderNotFlushedWithoutWrite(t *testing.T) {
	mgr := pagestore.NewMemoryManager()

	tree := newTree(mgr, KindDummy)
	_, err := tree.Open(nil)
	require.NoError(t, err)
	tree.Header().ObjectCount = 10
	tree.MarkDirty()

	// a second handle only sees what was written
	other := newTree(mgr, KindDummy)
	_, err = other.Open(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, other.NumberOfObjects())

	require.NoError(t, tree.WriteHeader())
	require.NoError(t, tree.Close())

	third := newTree(mgr, KindDummy)
	_, err = third.Open(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, third.NumberOfObjects())
}

func TestTree_CorruptHeader(t *testing.T) {
	mgr := pagestore.NewMemoryManager()
	p, err := mgr.HeaderPage()
	require.NoError(t, err)
	copy(p.Data(), "garbage")
	require.NoError(t, mgr.WriteHeaderPage(p))
	mgr.ReleasePage(p)

	_, err = newTree(mgr, KindDummy).Open(nil)
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestTree_ScopedPages(t *testing.T) {
	mgr := pagestore.NewMemoryManager(pagestore.WithPageSize(128))
	tree := newTree(mgr, KindDummy)
	_, err := tree.Open(nil)
	require.NoError(t, err)

	id, err := tree.WithNewPage(func(p *pagestore.Page) error {
		copy(p.Data(), "hello")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.PageCount())

	require.NoError(t, tree.UpdatePage(id, func(p *pagestore.Page) error {
		p.Data()[0] = 'j'
		return nil
	}))
	require.NoError(t, tree.WithPage(id, func(p *pagestore.Page) error {
		assert.Equal(t, []byte("jello"), p.Data()[:5])
		return nil
	}))

	boom := errors.New("boom")
	_, err = tree.WithNewPage(func(*pagestore.Page) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mgr.PageCount(), "failed pages are disposed")

	require.NoError(t, tree.DisposePage(id))
	assert.Equal(t, 0, mgr.PageCount())
	assert.ErrorIs(t, tree.WithPage(id, func(*pagestore.Page) error { return nil }), pagestore.ErrPageNotFound)
}

func TestTree_Encode(t *testing.T) {
	tree := newTree(pagestore.NewMemoryManager(), KindDummy)

	b, err := tree.Encode([]float64{1, 2}, 16)
	require.NoError(t, err)
	obj, err := tree.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, obj)

	_, err = tree.Encode([]float64{1, 2, 3}, 16)
	assert.ErrorIs(t, err, ErrObjectTooLarge)

	_, err = tree.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, codec.ErrMalformed)

	assert.Equal(t, 5.0, tree.Distance([]float64{0, 0}, []float64{3, 4}))
	assert.Equal(t, uint64(1), tree.Evaluator().Count())
}

func TestNearest(t *testing.T) {
	t.Run("NoTie", func(t *testing.T) {
		n := NewNearest(result.New(result.Query[int]{K: 2}), 2, math.Inf(1))
		assert.True(t, math.IsInf(n.Radius(), 1))
		for i, d := range []float64{5, 3, 3, 1, 4} {
			n.Offer(i, d)
		}
		assert.Equal(t, []int{3, 1}, n.Result().Objects())
		assert.Equal(t, 3.0, n.Radius())
		assert.False(t, n.Accepts(3))
		assert.True(t, n.Accepts(2.5))
	})

	t.Run("Tie", func(t *testing.T) {
		n := NewNearest(result.New(result.Query[int]{K: 2, Tie: true}), 2, math.Inf(1))
		for i, d := range []float64{5, 3, 3, 1, 3} {
			n.Offer(i, d)
		}
		assert.Equal(t, []float64{1, 3, 3, 3}, n.Result().Distances())
	})

	t.Run("Limit", func(t *testing.T) {
		n := NewNearest(result.New(result.Query[int]{}), 3, 2)
		for i, d := range []float64{5, 1, 2, 2.5} {
			n.Offer(i, d)
		}
		assert.Equal(t, []float64{1, 2}, n.Result().Distances())
		assert.Equal(t, 2.0, n.Radius())
	})

	t.Run("ZeroK", func(t *testing.T) {
		n := NewNearest(result.New(result.Query[int]{}), 0, math.Inf(1))
		n.Offer(1, 0)
		assert.Equal(t, 0, n.Result().Len())
	})

	assert.True(t, InRing(2, 1, 2))
	assert.False(t, InRing(1, 1, 2))
}

type rangeOnly struct{ MetricAccessMethod[int] }

type pointAndRange struct{ MetricAccessMethod[int] }

func (pointAndRange) PointQuery(int) (*result.Result[int], error) {
	return result.New(result.Query[int]{Type: result.Point}), nil
}

func TestCapabilities(t *testing.T) {
	var m MetricAccessMethod[int] = rangeOnly{}
	assert.True(t, Supports(m, result.Range))
	assert.False(t, Supports(m, result.Point))
	assert.False(t, Supports(m, result.Unknown))

	_, err := PointQuery(m, 1)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = RingQuery(m, 1, 0, 1)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = KAndRangeQuery(m, 1, 1, 1, false)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = KOrRangeQuery(m, 1, 1, 1, false)
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = KRingQuery(m, 1, 0, 1, 1, false)
	assert.ErrorIs(t, err, ErrNotSupported)

	m = pointAndRange{}
	assert.True(t, Supports(m, result.Point))
	res, err := PointQuery(m, 1)
	require.NoError(t, err)
	assert.Equal(t, result.Point, res.Query().Type)
}
