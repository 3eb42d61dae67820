package result

import (
	"fmt"
	"sort"
)

// QueryType names the query that produced a Result.
type QueryType int

const (
	Unknown QueryType = iota
	Range
	KNN
	Point
	Ring
	KAndRange
	KOrRange
	KRing
)

func (q QueryType) String() string {
	switch q {
	case Unknown:
		return "unknown"
	case Range:
		return "range"
	case KNN:
		return "knn"
	case Point:
		return "point"
	case Ring:
		return "ring"
	case KAndRange:
		return "k-and-range"
	case KOrRange:
		return "k-or-range"
	case KRing:
		return "k-ring"
	default:
		return fmt.Sprintf("QueryType(%d)", int(q))
	}
}

// Query is the metadata of the query that produced a Result.
type Query[T any] struct {
	Type        QueryType
	Sample      T
	K           int
	Radius      float64
	InnerRadius float64
	Tie         bool
}

// Pair is an object and its distance to the query sample.
type Pair[T any] struct {
	Object   T
	Distance float64
}

// Result is an ascending sequence of pairs.
type Result[T any] struct {
	query Query[T]
	pairs []Pair[T]
}

// New creates an empty result for q.
func New[T any](q Query[T]) *Result[T] {
	return &Result[T]{query: q}
}

// Query returns the query metadata.
func (r *Result[T]) Query() Query[T] { return r.query }

// Tie reports whether truncation keeps ties with the boundary entry.
func (r *Result[T]) Tie() bool { return r.query.Tie }

// Len returns the number of pairs.
func (r *Result[T]) Len() int { return len(r.pairs) }

// At returns the i-th pair.
func (r *Result[T]) At(i int) Pair[T] { return r.pairs[i] }

// Pairs returns the pairs in ascending order. The slice must not be modified.
func (r *Result[T]) Pairs() []Pair[T] { return r.pairs }

// Objects returns the objects in ascending distance order.
func (r *Result[T]) Objects() []T {
	out := make([]T, len(r.pairs))
	for i, p := range r.pairs {
		out[i] = p.Object
	}
	return out
}

// Distances returns the distances in ascending order.
func (r *Result[T]) Distances() []float64 {
	out := make([]float64, len(r.pairs))
	for i, p := range r.pairs {
		out[i] = p.Distance
	}
	return out
}

// AddPair inserts obj after every pair with a distance <= d.
func (r *Result[T]) AddPair(obj T, d float64) {
	i := sort.Search(len(r.pairs), func(i int) bool { return r.pairs[i].Distance > d })
	r.pairs = append(r.pairs, Pair[T]{})
	copy(r.pairs[i+1:], r.pairs[i:])
	r.pairs[i] = Pair[T]{Object: obj, Distance: d}
}

// RemoveFirst removes the nearest pair.
func (r *Result[T]) RemoveFirst() (Pair[T], bool) {
	if len(r.pairs) == 0 {
		return Pair[T]{}, false
	}
	p := r.pairs[0]
	r.pairs = append(r.pairs[:0], r.pairs[1:]...)
	return p, true
}

// RemoveLast removes the farthest pair.
func (r *Result[T]) RemoveLast() (Pair[T], bool) {
	n := len(r.pairs)
	if n == 0 {
		return Pair[T]{}, false
	}
	p := r.pairs[n-1]
	r.pairs[n-1] = Pair[T]{}
	r.pairs = r.pairs[:n-1]
	return p, true
}

// MinimumDistance returns the smallest distance, or -1 when empty.
func (r *Result[T]) MinimumDistance() float64 {
	if len(r.pairs) == 0 {
		return -1
	}
	return r.pairs[0].Distance
}

// MaximumDistance returns the largest distance, or -1 when empty.
func (r *Result[T]) MaximumDistance() float64 {
	if len(r.pairs) == 0 {
		return -1
	}
	return r.pairs[len(r.pairs)-1].Distance
}

// Cut keeps the limit nearest pairs. With ties enabled, pairs at the same
// distance as the limit-th pair are kept as well.
func (r *Result[T]) Cut(limit int) {
	if limit < 0 {
		limit = 0
	}
	if len(r.pairs) <= limit {
		return
	}
	n := limit
	if r.query.Tie && limit > 0 {
		boundary := r.pairs[limit-1].Distance
		for n < len(r.pairs) && r.pairs[n].Distance == boundary {
			n++
		}
	}
	clear(r.pairs[n:])
	r.pairs = r.pairs[:n]
}

// CutFirst keeps the limit farthest pairs. With ties enabled, pairs at the
// same distance as the nearest kept pair are kept as well.
func (r *Result[T]) CutFirst(limit int) {
	if limit < 0 {
		limit = 0
	}
	if len(r.pairs) <= limit {
		return
	}
	start := len(r.pairs) - limit
	if r.query.Tie && limit > 0 {
		boundary := r.pairs[start].Distance
		for start > 0 && r.pairs[start-1].Distance == boundary {
			start--
		}
	}
	r.pairs = append(r.pairs[:0], r.pairs[start:]...)
}

// Reset removes every pair and keeps the query metadata.
func (r *Result[T]) Reset() {
	clear(r.pairs)
	r.pairs = r.pairs[:0]
}

// Clone returns an independent copy.
func (r *Result[T]) Clone() *Result[T] {
	c := &Result[T]{query: r.query, pairs: make([]Pair[T], len(r.pairs))}
	copy(c.pairs, r.pairs)
	return c
}

// Retag returns a result holding the same pairs under query q.
func (r *Result[T]) Retag(q Query[T]) *Result[T] {
	return &Result[T]{query: q, pairs: r.pairs}
}
