package distance

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Func computes the distance between two objects.
//
// Pruning in every tree assumes Func is a metric: d(x,x)=0, symmetry and the
// triangle inequality. Results are unspecified otherwise.
type Func[T any] func(a, b T) float64

// Euclidean returns the L2 distance of two vectors of equal length.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Manhattan returns the L1 distance of two vectors of equal length.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// Chebyshev returns the L-infinity distance of two vectors of equal length.
func Chebyshev(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}

// Minkowski returns the Lp distance function for p >= 1.
func Minkowski(p float64) (Func[[]float64], error) {
	if p < 1 || math.IsNaN(p) {
		return nil, fmt.Errorf("minkowski order must be >= 1, got %v", p)
	}
	return func(a, b []float64) float64 {
		return floats.Distance(a, b, p)
	}, nil
}

// Hamming returns the number of differing bits of two byte slices.
// Missing bytes of the shorter slice count as zero bytes.
func Hamming(a, b []byte) float64 {
	if len(a) < len(b) {
		a, b = b, a
	}
	n := 0
	for i := range b {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	for _, c := range a[len(b):] {
		n += bits.OnesCount8(c)
	}
	return float64(n)
}

// Levenshtein returns the edit distance of two strings, counted in runes.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return float64(prev[len(rb)])
}

// Metric names a built-in vector metric.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricManhattan
	MetricChebyshev
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricChebyshev:
		return "chebyshev"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseMetric parses the name of a vector metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "euclidean", "l2", "":
		return MetricEuclidean, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	case "chebyshev", "linf":
		return MetricChebyshev, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func[[]float64], error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricChebyshev:
		return Chebyshev, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
