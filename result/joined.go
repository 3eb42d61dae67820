package result

import "sort"

// Triple is a pair of joined objects and their distance.
type Triple[T any] struct {
	Object   T
	Joined   T
	Distance float64
}

// JoinedResult is an ascending sequence of triples produced by join queries.
type JoinedResult[T any] struct {
	query   Query[T]
	triples []Triple[T]
}

// NewJoined creates an empty joined result for q.
func NewJoined[T any](q Query[T]) *JoinedResult[T] {
	return &JoinedResult[T]{query: q}
}

// Query returns the query metadata.
func (r *JoinedResult[T]) Query() Query[T] { return r.query }

// Len returns the number of triples.
func (r *JoinedResult[T]) Len() int { return len(r.triples) }

// Triples returns the triples in ascending order. The slice must not be modified.
func (r *JoinedResult[T]) Triples() []Triple[T] { return r.triples }

// AddTriple inserts a triple after every triple with a distance <= d.
func (r *JoinedResult[T]) AddTriple(obj, joined T, d float64) {
	i := sort.Search(len(r.triples), func(i int) bool { return r.triples[i].Distance > d })
	r.triples = append(r.triples, Triple[T]{})
	copy(r.triples[i+1:], r.triples[i:])
	r.triples[i] = Triple[T]{Object: obj, Joined: joined, Distance: d}
}

// MinimumDistance returns the smallest distance, or -1 when empty.
func (r *JoinedResult[T]) MinimumDistance() float64 {
	if len(r.triples) == 0 {
		return -1
	}
	return r.triples[0].Distance
}

// MaximumDistance returns the largest distance, or -1 when empty.
func (r *JoinedResult[T]) MaximumDistance() float64 {
	if len(r.triples) == 0 {
		return -1
	}
	return r.triples[len(r.triples)-1].Distance
}

// Cut keeps the limit nearest triples, plus ties when enabled.
func (r *JoinedResult[T]) Cut(limit int) {
	if limit < 0 {
		limit = 0
	}
	if len(r.triples) <= limit {
		return
	}
	n := limit
	if r.query.Tie && limit > 0 {
		boundary := r.triples[limit-1].Distance
		for n < len(r.triples) && r.triples[n].Distance == boundary {
			n++
		}
	}
	clear(r.triples[n:])
	r.triples = r.triples[:n]
}
