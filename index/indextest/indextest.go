// Package indextest checks that a metric access method answers queries
// exactly like a linear scan. Trees call Run from their own tests.
package indextest

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/distance"
	"github.com/hupe1980/gomam/index"
	"github.com/hupe1980/gomam/pagestore"
	"github.com/hupe1980/gomam/result"
	"github.com/hupe1980/gomam/testutil"
)

// Point is the object type used by the suite.
type Point = []float64

// Factory opens the tree stored in mgr, creating it when mgr is empty.
type Factory func(t *testing.T, mgr pagestore.Manager) index.MetricAccessMethod[Point]

// Builder is implemented by trees that must be built before queries.
type Builder interface {
	Build() error
}

// Build builds m when it is a Builder.
func Build(t *testing.T, m index.MetricAccessMethod[Point]) {
	t.Helper()
	if b, ok := m.(Builder); ok {
		require.NoError(t, b.Build())
	}
}

// Load adds every point to m and builds it.
func Load(t *testing.T, m index.MetricAccessMethod[Point], points []Point) {
	t.Helper()
	for _, p := range points {
		require.NoError(t, m.Add(p))
	}
	Build(t, m)
}

// Run executes the query tests against trees made by newTree.
func Run(t *testing.T, newTree Factory) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, newTree) })
	t.Run("Range", func(t *testing.T) { testRange(t, newTree) })
	t.Run("Nearest", func(t *testing.T) { testNearest(t, newTree) })
	t.Run("Ties", func(t *testing.T) { testTies(t, newTree) })
	t.Run("Duplicates", func(t *testing.T) { testDuplicates(t, newTree) })
	t.Run("DerivedQueries", func(t *testing.T) { testDerived(t, newTree) })
	t.Run("Reopen", func(t *testing.T) { testReopen(t, newTree) })
	t.Run("DiskBackend", func(t *testing.T) { testDisk(t, newTree) })
}

func memory() pagestore.Manager {
	return pagestore.NewMemoryManager(pagestore.WithPageSize(256))
}

func testEmpty(t *testing.T, newTree Factory) {
	m := newTree(t, memory())
	defer m.Close()
	Build(t, m)

	res, err := m.RangeQuery(Point{1, 1}, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = m.NearestQuery(Point{1, 1}, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Equal(t, 0, m.NumberOfObjects())
}

// CheckRange compares a range query against a linear scan over points.
func CheckRange(t *testing.T, m index.MetricAccessMethod[Point], points []Point, q Point, r float64) {
	t.Helper()
	res, err := m.RangeQuery(q, r)
	require.NoError(t, err)
	want := testutil.BruteForceRange(points, q, r, distance.Euclidean)
	assertSame(t, points, want, res)
	assert.Equal(t, result.Range, res.Query().Type)
}

// CheckNearest compares a kNN query against a linear scan over points.
// Objects are compared only when the data has no tie at the k-th distance.
func CheckNearest(t *testing.T, m index.MetricAccessMethod[Point], points []Point, q Point, k int, tie bool) {
	t.Helper()
	res, err := m.NearestQuery(q, k, tie)
	require.NoError(t, err)
	want := testutil.BruteForceKNN(points, q, k, tie, distance.Euclidean)
	require.Equal(t, testutil.Distances(want), res.Distances(), "k=%d tie=%v", k, tie)
	if tie || !tiedAtBoundary(points, q, k) {
		assertSame(t, points, want, res)
	}
	assert.True(t, slices.IsSorted(res.Distances()))
}

func testRange(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(1)
	points := rng.UniformPoints(300, 2, 0, 100)
	m := newTree(t, memory())
	defer m.Close()
	Load(t, m, points)
	assert.Equal(t, len(points), m.NumberOfObjects())

	for _, q := range rng.UniformPoints(5, 2, 0, 100) {
		for _, r := range []float64{0, 5, 15, 40, 200} {
			CheckRange(t, m, points, q, r)
		}
	}
	// a stored point is found at distance zero
	CheckRange(t, m, points, points[17], 0)
}

func testNearest(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(2)
	points := rng.ClusteredPoints(300, 3, 4, 5)
	m := newTree(t, memory())
	defer m.Close()
	Load(t, m, points)

	for _, q := range rng.UniformPoints(5, 3, 0, 100) {
		for _, k := range []int{1, 5, 20, 400} {
			CheckNearest(t, m, points, q, k, false)
		}
	}

	res, err := m.NearestQuery(points[0], 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func testTies(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(3)
	points := rng.GridPoints(200, 2, 6)
	m := newTree(t, memory())
	defer m.Close()
	Load(t, m, points)

	for _, q := range []Point{{0, 0}, {2.5, 2.5}, {3, 1}, {5, 5}} {
		for _, k := range []int{1, 3, 10, 50} {
			CheckNearest(t, m, points, q, k, false)
			CheckNearest(t, m, points, q, k, true)

			res, err := m.NearestQuery(q, k, false)
			require.NoError(t, err)
			assert.Equal(t, min(k, len(points)), res.Len())
		}
		CheckRange(t, m, points, q, 2)
	}
}

func testDuplicates(t *testing.T, newTree Factory) {
	points := make([]Point, 0, 40)
	for range 20 {
		points = append(points, Point{7, 7})
	}
	for i := range 20 {
		points = append(points, Point{float64(i), 0})
	}
	m := newTree(t, memory())
	defer m.Close()
	Load(t, m, points)

	res, err := m.RangeQuery(Point{7, 7}, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Len())

	CheckNearest(t, m, points, Point{7, 7}, 5, true)
	CheckRange(t, m, points, Point{7, 3}, 5)
}

func testDerived(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(4)
	points := rng.GridPoints(250, 2, 20)
	m := newTree(t, memory())
	defer m.Close()
	Load(t, m, points)

	all := func(q Point) []testutil.Neighbor {
		return testutil.BruteForceKNN(points, q, len(points), false, distance.Euclidean)
	}
	filter := func(ns []testutil.Neighbor, keep func(float64) bool) []testutil.Neighbor {
		var out []testutil.Neighbor
		for _, n := range ns {
			if keep(n.Distance) {
				out = append(out, n)
			}
		}
		return out
	}

	for _, q := range []Point{{0, 0}, {10, 10}, points[3], {7.5, 12}} {
		t.Run("Point", func(t *testing.T) {
			res, err := index.PointQuery(m, q)
			if !index.Supports(m, result.Point) {
				assert.ErrorIs(t, err, index.ErrNotSupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, result.Point, res.Query().Type)
			assertSame(t, points, filter(all(q), func(d float64) bool { return d == 0 }), res)
		})

		t.Run("Ring", func(t *testing.T) {
			res, err := index.RingQuery(m, q, 2, 5)
			if !index.Supports(m, result.Ring) {
				assert.ErrorIs(t, err, index.ErrNotSupported)
				return
			}
			require.NoError(t, err)
			assertSame(t, points, filter(all(q), func(d float64) bool { return index.InRing(d, 2, 5) }), res)
		})

		t.Run("KAndRange", func(t *testing.T) {
			for _, tie := range []bool{false, true} {
				res, err := index.KAndRangeQuery(m, q, 4, 6, tie)
				if !index.Supports(m, result.KAndRange) {
					assert.ErrorIs(t, err, index.ErrNotSupported)
					return
				}
				require.NoError(t, err)
				within := filter(all(q), func(d float64) bool { return d <= 4 })
				assert.Equal(t, testutil.Distances(cut(within, 6, tie)), res.Distances())
			}
		})

		t.Run("KOrRange", func(t *testing.T) {
			for _, tc := range []struct {
				r float64
				k int
			}{{3, 2}, {1, 12}, {0, 1}} {
				res, err := index.KOrRangeQuery(m, q, tc.r, tc.k, true)
				if !index.Supports(m, result.KOrRange) {
					assert.ErrorIs(t, err, index.ErrNotSupported)
					return
				}
				require.NoError(t, err)
				ns := all(q)
				knn := cut(ns, tc.k, true)
				want := filter(ns, func(d float64) bool { return d <= tc.r })
				if len(knn) > len(want) {
					want = knn
				}
				assertSame(t, points, want, res)
			}
		})

		t.Run("KRing", func(t *testing.T) {
			res, err := index.KRingQuery(m, q, 1, 6, 5, true)
			if !index.Supports(m, result.KRing) {
				assert.ErrorIs(t, err, index.ErrNotSupported)
				return
			}
			require.NoError(t, err)
			ring := filter(all(q), func(d float64) bool { return index.InRing(d, 1, 6) })
			assertSame(t, points, cut(ring, 5, true), res)
		})
	}
}

func testReopen(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(5)
	points := rng.UniformPoints(120, 2, 0, 50)
	mgr := memory()

	m := newTree(t, mgr)
	Load(t, m, points)
	height, nodes := m.Height(), m.NodeCount()
	require.NoError(t, m.Close())

	m = newTree(t, mgr)
	defer m.Close()
	assert.Equal(t, len(points), m.NumberOfObjects())
	assert.Equal(t, height, m.Height())
	assert.Equal(t, nodes, m.NodeCount())
	assert.Equal(t, nodes, mgr.PageCount())
	CheckRange(t, m, points, Point{25, 25}, 10)
	CheckNearest(t, m, points, Point{10, 40}, 7, false)
}

func testDisk(t *testing.T, newTree Factory) {
	rng := testutil.NewRNG(6)
	points := rng.UniformPoints(150, 4, -10, 10)
	path := filepath.Join(t.TempDir(), "tree.db")

	mgr, err := pagestore.OpenDiskManager(path, pagestore.WithPageSize(512))
	require.NoError(t, err)
	m := newTree(t, mgr)
	Load(t, m, points)
	require.NoError(t, m.Close())
	require.NoError(t, mgr.Close())

	mgr, err = pagestore.OpenDiskManager(path)
	require.NoError(t, err)
	defer mgr.Close()
	m = newTree(t, mgr)
	defer m.Close()

	CheckRange(t, m, points, Point{0, 0, 0, 0}, 12)
	CheckNearest(t, m, points, Point{1, -1, 1, -1}, 10, false)
}

func cut(ns []testutil.Neighbor, k int, tie bool) []testutil.Neighbor {
	if len(ns) <= k {
		return ns
	}
	n := k
	if tie && k > 0 {
		for n < len(ns) && ns[n].Distance == ns[k-1].Distance {
			n++
		}
	}
	return ns[:n]
}

func tiedAtBoundary(points []Point, q Point, k int) bool {
	all := testutil.BruteForceKNN(points, q, len(points), false, distance.Euclidean)
	return k > 0 && k < len(all) && all[k].Distance == all[k-1].Distance
}

func assertSame(t *testing.T, points []Point, want []testutil.Neighbor, res *result.Result[Point]) {
	t.Helper()
	require.Equal(t, testutil.Distances(want), res.Distances())
	expected := make([]Point, len(want))
	for i, n := range want {
		expected[i] = points[n.Index]
	}
	if len(expected) == 0 {
		assert.Equal(t, 0, res.Len())
		return
	}
	assert.ElementsMatch(t, expected, res.Objects())
	for _, p := range res.Pairs() {
		assert.False(t, math.IsNaN(p.Distance))
	}
}
