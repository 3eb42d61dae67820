package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/gomam/distance"
)

// Neighbor is an object of a dataset identified by its index.
type Neighbor struct {
	Index    int
	Distance float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformPoints generates num points with coordinates in [lo, hi).
// Uses a single backing array for efficiency.
func (r *RNG) UniformPoints(num, dim int, lo, hi float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	for i := range data {
		data[i] = lo + r.rand.Float64()*(hi-lo)
	}
	return split(data, num, dim)
}

// GaussianPoints generates num points from a standard normal distribution.
func (r *RNG) GaussianPoints(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	for i := range data {
		data[i] = r.rand.NormFloat64()
	}
	return split(data, num, dim)
}

// GridPoints generates num points with integer coordinates in [0, side).
// Integer grids produce many equal distances and exercise tie handling.
func (r *RNG) GridPoints(num, dim, side int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	for i := range data {
		data[i] = float64(r.rand.Intn(side))
	}
	return split(data, num, dim)
}

// ClusteredPoints generates points around random centroids in [0, 100).
func (r *RNG) ClusteredPoints(num, dim, clusters int, spread float64) [][]float64 {
	centroids := r.UniformPoints(clusters, dim, 0, 100)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	for i := range num {
		c := centroids[r.rand.Intn(clusters)]
		for j := range dim {
			data[i*dim+j] = c[j] + r.rand.NormFloat64()*spread
		}
	}
	return split(data, num, dim)
}

// Words generates num lowercase words of length 1..maxLen over a small alphabet.
func (r *RNG) Words(num, maxLen int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	const alphabet = "abcde"
	words := make([]string, num)
	for i := range words {
		b := make([]byte, 1+r.rand.Intn(maxLen))
		for j := range b {
			b[j] = alphabet[r.rand.Intn(len(alphabet))]
		}
		words[i] = string(b)
	}
	return words
}

func split(data []float64, num, dim int) [][]float64 {
	points := make([][]float64, num)
	for i := range points {
		points[i] = data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return points
}

// BruteForceRange returns every object within radius of query, ascending by distance.
func BruteForceRange[T any](objects []T, query T, radius float64, fn distance.Func[T]) []Neighbor {
	var out []Neighbor
	for i, o := range objects {
		if d := fn(query, o); d <= radius {
			out = append(out, Neighbor{Index: i, Distance: d})
		}
	}
	sortNeighbors(out)
	return out
}

// BruteForceKNN returns the k nearest objects to query, ascending by distance.
// With tie set, every object at the k-th distance is kept.
func BruteForceKNN[T any](objects []T, query T, k int, tie bool, fn distance.Func[T]) []Neighbor {
	all := make([]Neighbor, len(objects))
	for i, o := range objects {
		all[i] = Neighbor{Index: i, Distance: fn(query, o)}
	}
	sortNeighbors(all)
	if k <= 0 {
		return nil
	}
	if len(all) <= k {
		return all
	}
	n := k
	if tie {
		for n < len(all) && all[n].Distance == all[k-1].Distance {
			n++
		}
	}
	return all[:n]
}

// Distances returns the distances of ns in order.
func Distances(ns []Neighbor) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = n.Distance
	}
	return out
}

// ComputeRecall returns the fraction of groundTruth indexes present in approximate.
func ComputeRecall(groundTruth, approximate []Neighbor) float64 {
	if len(groundTruth) == 0 {
		return 1
	}
	seen := make(map[int]struct{}, len(approximate))
	for _, n := range approximate {
		seen[n.Index] = struct{}{}
	}
	hits := 0
	for _, n := range groundTruth {
		if _, ok := seen[n.Index]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}

func sortNeighbors(ns []Neighbor) {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.Index - b.Index
		}
	})
}
