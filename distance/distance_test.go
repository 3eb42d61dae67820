package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorMetrics(t *testing.T) {
	tests := []struct {
		name      string
		a, b      []float64
		euclidean float64
		manhattan float64
		chebyshev float64
	}{
		{"Simple", []float64{1, 2, 3}, []float64{4, 6, 3}, 5, 7, 4},
		{"Zero", []float64{0, 0}, []float64{0, 0}, 0, 0, 0},
		{"Negative", []float64{-1, 1}, []float64{1, -1}, math.Sqrt(8), 4, 2},
		{"Empty", []float64{}, []float64{}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.euclidean, Euclidean(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.manhattan, Manhattan(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.chebyshev, Chebyshev(tt.a, tt.b), 1e-9)
		})
	}
}

func TestMinkowski(t *testing.T) {
	fn, err := Minkowski(3)
	require.NoError(t, err)
	assert.InDelta(t, math.Cbrt(16), fn([]float64{0, 0}, []float64{2, 2}), 1e-9)

	_, err = Minkowski(0.5)
	assert.Error(t, err)
}

func TestHamming(t *testing.T) {
	assert.Equal(t, 0.0, Hamming([]byte{0xff}, []byte{0xff}))
	assert.Equal(t, 8.0, Hamming([]byte{0xff}, []byte{0x00}))
	assert.Equal(t, 3.0, Hamming([]byte{0x01, 0x03}, []byte{0x00}))
	assert.Equal(t, Hamming([]byte{1, 2}, []byte{3}), Hamming([]byte{3}, []byte{1, 2}))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"über", "uber", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q/%q", tt.a, tt.b)
		assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a), "%q/%q", tt.b, tt.a)
	}
}

func TestProvider(t *testing.T) {
	for _, name := range []string{"euclidean", "L1", "chebyshev"} {
		m, err := ParseMetric(name)
		require.NoError(t, err)
		fn, err := Provider(m)
		require.NoError(t, err)
		assert.NotNil(t, fn)
	}

	_, err := ParseMetric("cosine")
	assert.Error(t, err)

	_, err = Provider(Metric(42))
	assert.Error(t, err)
	assert.Equal(t, "Unknown(42)", Metric(42).String())
}

func TestEvaluator(t *testing.T) {
	ev := NewEvaluator(Euclidean)
	assert.Equal(t, 5.0, ev.Distance([]float64{0, 0}, []float64{3, 4}))
	ev.UpdateDistanceCount()
	assert.Equal(t, uint64(2), ev.Count())

	ev.ResetCount()
	assert.Equal(t, uint64(0), ev.Count())
}
