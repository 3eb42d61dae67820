package mm

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
	modes := []struct {
		name   string
		insert InsertMode
		search SearchMode
	}{
		{"NoBalance", NoBalance, SearchBestFirst},
		{"NoBalanceGuided", NoBalance, SearchGuided},
		{"TryBalance", TryBalance, SearchBestFirst},
		{"TryBalanceGuided", TryBalance, SearchGuided},
	}
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			indextest.Run(t, func(t *testing.T, mgr pagestore.Manager) index.MetricAccessMethod[[]float64] {
				return newTree(t, mgr, WithInsertMode(m.insert), WithSearchMode(m.search))
			})
		})
	}
}

func TestTree_Capabilities(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager())
	defer tree.Close()

	assert.True(t, index.Supports[[]float64](tree, result.Point))
	assert.True(t, index.Supports[[]float64](tree, result.Ring))
	assert.False(t, index.Supports[[]float64](tree, result.KAndRange))
	assert.False(t, index.Supports[[]float64](tree, result.KOrRange))
	assert.False(t, index.Supports[[]float64](tree, result.KRing))
}

func TestTree_Regions(t *testing.T) {
	assert.Equal(t, node.RegionNearBoth, regionOf(2, 10, 5, 5))
	assert.Equal(t, node.RegionNearFirst, regionOf(2, 10, 5, 10))
	assert.Equal(t, node.RegionNearSecond, regionOf(2, 10, 10, 5))
	assert.Equal(t, node.RegionFar, regionOf(2, 10, 20, 10))
	assert.Equal(t, node.RegionFar, regionOf(1, 0, 3, 0))

	// sample at 2 and 12 from pivots 10 apart
	dq := [2]float64{2, 12}
	assert.Equal(t, 2.0, lowerBound(2, 10, dq, node.RegionNearBoth))
	assert.Equal(t, 8.0, lowerBound(2, 10, dq, node.RegionNearSecond))
	assert.Equal(t, 8.0, lowerBound(2, 10, dq, node.RegionFar))
	assert.Equal(t, 0.0, lowerBound(2, 10, dq, node.RegionNearFirst))
	assert.Equal(t, 0.0, lowerBound(1, 0, dq, node.RegionFar))
}

func TestTree_TryBalanceAvoidsNewNodes(t *testing.T) {
	points := [][]float64{{0}, {10}, {5}, {20}, {25}, {30}}

	plain := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(128)))
	balanced := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(128)), WithInsertMode(TryBalance))
	for _, p := range points {
		require.NoError(t, plain.Add(p))
		require.NoError(t, balanced.Add(p))
	}

	// 20 rebalances the root to {0,5} over the leaf {10,20}. Nothing can
	// absorb 25, so it opens a third level under {10,20}, and 30 rebalances
	// that leaf to {10,30} over {20,25}.
	assert.Equal(t, 4, plain.NodeCount())
	assert.Equal(t, 3, plain.Height())
	assert.Equal(t, 3, balanced.NodeCount())
	assert.Equal(t, 3, balanced.Manager().PageCount())
	assert.Equal(t, 3, balanced.Height())
	assert.Equal(t, 6, balanced.NumberOfObjects())
	assert.Equal(t, balanced.Height(), depth(t, balanced, balanced.Header().Root))

	for _, r := range []float64{0, 4, 12, 40} {
		indextest.CheckRange(t, balanced, points, []float64{7}, r)
		indextest.CheckRange(t, balanced, points, []float64{27}, r)
	}
	indextest.CheckNearest(t, balanced, points, []float64{22}, 3, false)
}

func TestTree_HeightMatchesDepth(t *testing.T) {
	for _, mode := range []InsertMode{NoBalance, TryBalance} {
		t.Run(mode.String(), func(t *testing.T) {
			tree := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(128)), WithInsertMode(mode))
			for _, p := range testutil.NewRNG(31).UniformPoints(300, 2, 0, 100) {
				require.NoError(t, tree.Add(p))
			}
			assert.Equal(t, tree.Height(), depth(t, tree, tree.Header().Root))
			assert.Equal(t, tree.NodeCount(), tree.Manager().PageCount())
		})
	}
}

// depth walks the subtree at id and returns its number of levels.
func depth(t *testing.T, tree *Tree[[]float64], id pagestore.PageID) int {
	t.Helper()
	if id == 0 {
		return 0
	}
	s, err := tree.read(id)
	require.NoError(t, err)
	deepest := 0
	for _, child := range s.children {
		deepest = max(deepest, depth(t, tree, child))
	}
	return deepest + 1
}

func TestTree_BalanceNeedsLeafChildren(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(128)), WithInsertMode(TryBalance))
	require.NoError(t, tree.Add([]float64{0}))
	require.NoError(t, tree.Add([]float64{10}))

	ok, err := tree.balance(tree.Header().Root, item[[]float64]{obj: []float64{3}, enc: codec.MustMarshal[[]float64](codec.Float64Vector{}, []float64{3})})
	require.NoError(t, err)
	assert.False(t, ok, "a leaf has no pages to spread into")
}

func TestTree_ModesPersist(t *testing.T) {
	mgr := pagestore.NewMemoryManager()
	tree := newTree(t, mgr, WithInsertMode(TryBalance))
	assert.Equal(t, TryBalance, tree.InsertMode())
	assert.Equal(t, SearchBestFirst, tree.SearchMode())
	tree.SetSearchMode(SearchGuided)
	require.NoError(t, tree.Close())

	reopened := newTree(t, mgr)
	assert.Equal(t, TryBalance, reopened.InsertMode())
	assert.Equal(t, SearchGuided, reopened.SearchMode())

	assert.Equal(t, "try-balance", TryBalance.String())
	assert.Equal(t, "guided", SearchGuided.String())
	assert.Equal(t, "SearchMode(7)", SearchMode(7).String())
}

func TestTree_ThousandPoints(t *testing.T) {
	rng := testutil.NewRNG(1000)
	points := rng.UniformPoints(1000, 2, 0, 100)
	sample := []float64{50, 50}

	for _, mode := range []SearchMode{SearchBestFirst, SearchGuided} {
		t.Run(mode.String(), func(t *testing.T) {
			tree := newTree(t, pagestore.NewMemoryManager(), WithInsertMode(NoBalance), WithSearchMode(mode))
			defer tree.Close()
			indextest.Load(t, tree, points)

			indextest.CheckRange(t, tree, points, sample, 10.0)
			indextest.CheckNearest(t, tree, points, sample, 5, false)
			assert.Equal(t, 1000, tree.NumberOfObjects())
		})
	}
}

func TestTree_SinglePivotNodes(t *testing.T) {
	// 64-byte pages fit one 3-D point per node
	mgr := pagestore.NewMemoryManager(pagestore.WithPageSize(64))
	tree := newTree(t, mgr)
	points := testutil.NewRNG(9).UniformPoints(20, 3, 0, 10)
	indextest.Load(t, tree, points)

	assert.Equal(t, 20, tree.NodeCount())
	indextest.CheckRange(t, tree, points, []float64{5, 5, 5}, 4)
	indextest.CheckNearest(t, tree, points, []float64{1, 2, 3}, 4, false)

	assert.ErrorIs(t, tree.Add([]float64{1, 2, 3, 4}), index.ErrObjectTooLarge)
}

func TestParseModes(t *testing.T) {
	im, err := ParseInsertMode("try-balance")
	require.NoError(t, err)
	assert.Equal(t, TryBalance, im)
	sm, err := ParseSearchMode("guided")
	require.NoError(t, err)
	assert.Equal(t, SearchGuided, sm)

	_, err = ParseInsertMode("sometimes")
	assert.Error(t, err)
	_, err = ParseSearchMode("")
	assert.Error(t, err)
}
