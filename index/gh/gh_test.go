package gh

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

func newTree(t *testing.T, mgr pagestore.Manager) *Tree[[]float64] {
	tree, err := New(mgr, distance.Euclidean, codec.Codec[[]float64](codec.Float64Vector{}))
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
	assert.False(t, index.Supports[[]float64](tree, result.Ring))
	_, err := index.RingQuery[[]float64](tree, []float64{0}, 0, 1)
	assert.ErrorIs(t, err, index.ErrNotSupported)
}

func TestTree_CoveringRadii(t *testing.T) {
	mgr := pagestore.NewMemoryManager(pagestore.WithPageSize(256))
	tree := newTree(t, mgr)
	points := testutil.NewRNG(11).UniformPoints(200, 2, 0, 100)
	indextest.Load(t, tree, points)

	// every object below representative i lies within its covering radius
	// and no farther from it than from the other representative
	var check func(id pagestore.PageID) [][]float64
	check = func(id pagestore.PageID) [][]float64 {
		var reps [][]float64
		var children []pagestore.PageID
		var radii []float64
		require.NoError(t, tree.WithPage(id, func(p *pagestore.Page) error {
			n, err := node.OpenGH(p.Data())
			require.NoError(t, err)
			for i := range n.NumberOfEntries() {
				obj, err := tree.Decode(n.UncheckedObject(i))
				require.NoError(t, err)
				reps = append(reps, obj)
				c, _ := n.Child(i)
				r, _ := n.Radius(i)
				children = append(children, c)
				radii = append(radii, r)
			}
			return nil
		}))

		all := append([][]float64(nil), reps...)
		for i, c := range children {
			if c == 0 {
				continue
			}
			for _, o := range check(c) {
				assert.LessOrEqual(t, distance.Euclidean(reps[i], o), radii[i]+1e-9)
				if len(reps) == 2 {
					assert.LessOrEqual(t, distance.Euclidean(reps[i], o), distance.Euclidean(reps[1-i], o)+1e-9)
				}
				all = append(all, o)
			}
		}
		return all
	}
	assert.Len(t, check(tree.Header().Root), 200)
	assert.Equal(t, tree.NodeCount(), mgr.PageCount())
}

func TestTree_OneRepresentativePerPage(t *testing.T) {
	// 64-byte pages fit a single 3-D representative
	tree := newTree(t, pagestore.NewMemoryManager(pagestore.WithPageSize(64)))
	points := testutil.NewRNG(12).UniformPoints(30, 3, 0, 10)
	indextest.Load(t, tree, points)

	assert.Equal(t, 30, tree.NodeCount())
	indextest.CheckRange(t, tree, points, []float64{5, 5, 5}, 3)
	indextest.CheckNearest(t, tree, points, []float64{0, 0, 0}, 6, false)
}

func TestTree_PruningSavesDistances(t *testing.T) {
	tree := newTree(t, pagestore.NewMemoryManager())
	points := testutil.NewRNG(13).UniformPoints(2000, 2, 0, 1000)
	indextest.Load(t, tree, points)

	tree.Evaluator().ResetCount()
	_, err := tree.RangeQuery([]float64{500, 500}, 5)
	require.NoError(t, err)
	assert.Less(t, tree.Evaluator().Count(), uint64(len(points)))
}
