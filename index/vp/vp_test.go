package vp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/codec"
	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/index/indextest"
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
	"github.com/hupe1980/gomam/testutil"
)

func newTree(t *testing.T, mgr pagestore.Manager, optFns ...Option) *Tree[[]float64] {
	tree, err := New(mgr, distance.Euclidean, codec.Codec[[]float64](codec.Float64Vector{}), optFns...)
	require.NoError(t, err)
	return tree
}

func TestTree_Contract(t *testing.T) {
	indextest.Run(t, func(t *testing.T, mgr pagestore.Manager) index.MetricAccessMethod[[]float64] {
		return newTree(t, mgr)
	})
}

func TestTree_Capabilities(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager())
	defer tree.Close()

	assert.True(t, index.Supports[[]float64](tree, result.Point))
	assert.True(t, index.Supports[[]float64](tree, result.KAndRange))
	assert.True(t, index.Supports[[]float64](tree, result.KOrRange))
	assert.False(t, index.Supports[[]float64](tree, result.Ring))
	assert.False(t, index.Supports[[]float64](tree, result.KRing))
}

func TestTree_NotBuilt(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager())
	require.NoError(t, tree.Add([]float64{1, 2}))

	_, err := tree.RangeQuery([]float64{1, 2}, 1)
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	_, err = tree.NearestQuery([]float64{1, 2}, 1, false)
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	assert.False(t, tree.Built())
	assert.Equal(t, 1, tree.Buffered())
	assert.Equal(t, 1, tree.NumberOfObjects())

	require.NoError(t, tree.MakeVPTree())
	assert.True(t, tree.Built())
	assert.Equal(t, 0, tree.Buffered())
	res, err := tree.PointQuery([]float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
}

func TestTree_BufferGrowth(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager(), WithBufferIncrement(4))
	for i := range 9 {
		require.NoError(t, tree.Add([]float64{float64(i)}))
	}
	assert.Equal(t, 9, tree.Buffered())
	assert.GreaterOrEqual(t, cap(tree.buffer), 9)
}

// subtree returns every object stored below id.
func subtree(t *testing.T, tree *Tree[[]float64], id pagestore.PageID) [][]float64 {
	items, _, err := tree.collect(id)
	require.NoError(t, err)
	out := make([][]float64, len(items))
	for i, it := range items {
		out[i] = it.obj
	}
	return out
}

func checkPartitions(t *testing.T, tree *Tree[[]float64], id pagestore.PageID) {
	if id == 0 {
		return
	}
	var vp []float64
	var radius float64
	var left, right pagestore.PageID
	require.NoError(t, tree.WithPage(id, func(p *pagestore.Page) error {
		n, err := node.OpenVP(p.Data())
		require.NoError(t, err)
		vp, err = tree.Decode(n.UncheckedObject(0))
		require.NoError(t, err)
		radius, left, right = n.Radius(), n.Left(), n.Right()
		return nil
	}))

	for _, o := range subtree(t, tree, left) {
		assert.LessOrEqual(t, distance.Euclidean(vp, o), radius)
	}
	for _, o := range subtree(t, tree, right) {
		assert.Greater(t, distance.Euclidean(vp, o), radius)
	}
	checkPartitions(t, tree, left)
	checkPartitions(t, tree, right)
}

func TestTree_PartitionInvariant(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager())
	indextest.Load(t, tree, testutil.NewRNG(21).ClusteredPoints(600, 3, 5, 4))

	checkPartitions(t, tree, tree.Header().Root)
	assert.Equal(t, 600, tree.NodeCount())
	// balanced median splits keep the tree shallow
	assert.Less(t, tree.Height(), 40)
}

func TestTree_Rebuild(t *testing.T) {
	mgr := pagestore.NewMemoryManager()
	tree := newTree(t, mgr, WithSeed(7))
	rng := testutil.NewRNG(22)
	first := rng.UniformPoints(100, 2, 0, 100)
	second := rng.UniformPoints(50, 2, 0, 100)

	indextest.Load(t, tree, first)
	indextest.Load(t, tree, second)

	all := append(append([][]float64(nil), first...), second...)
	assert.Equal(t, 150, tree.NumberOfObjects())
	assert.Equal(t, 150, tree.NodeCount())
	assert.Equal(t, 150, mgr.PageCount(), "old pages are disposed")
	indextest.CheckRange(t, tree, all, []float64{50, 50}, 20)
	indextest.CheckNearest(t, tree, all, []float64{10, 90}, 8, false)

	require.NoError(t, tree.Close())
	reopened := newTree(t, mgr, WithSeed(99))
	assert.Equal(t, uint64(7), reopened.Header().Seed)
	assert.True(t, reopened.Built())
}

func TestTree_ThousandPoints(t *testing.T) {
	rng := testutil.NewRNG(1000)
	points := rng.UniformPoints(1000, 2, 0, 100)
	sample := []float64{50, 50}

	tree := newTree(t, pagestore.NewMemoryManager())
	defer tree.Close()
	indextest.Load(t, tree, points)

	indextest.CheckRange(t, tree, points, sample, 10.0)
	indextest.CheckNearest(t, tree, points, sample, 5, false)
}

func TestTree_SampleSize(t *testing.T) {
	assert.Equal(t, 10, sampleSize(10))
	assert.Equal(t, 50, sampleSize(100))
	assert.Equal(t, 90, sampleSize(1000))
	assert.Equal(t, 500, sampleSize(100000))
}

func TestTree_ObjectTooLarge(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(64)))
	assert.ErrorIs(t, tree.Add(make([]float64, 6)), index.ErrObjectTooLarge)
	assert.NoError(t, tree.Add(make([]float64, 5)))
}
