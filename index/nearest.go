package index

import (
	"math"

	"github.com/hupe1980/gomam/result"
)

// Nearest accumulates the k nearest objects seen during a traversal.
//
// Its Radius shrinks to the current k-th distance once k objects are held,
// never exceeding the initial limit.
type Nearest[T any] struct {
	res   *result.Result[T]
	k     int
	limit float64
}

// NewNearest collects into res at most k objects (more with ties) with a
// distance <= limit. Use math.Inf(1) for an unbounded query.
func NewNearest[T any](res *result.Result[T], k int, limit float64) *Nearest[T] {
	return &Nearest[T]{res: res, k: k, limit: limit}
}

// Radius returns the distance an object must not exceed to qualify.
func (n *Nearest[T]) Radius() float64 {
	if n.res.Len() < n.k {
		return n.limit
	}
	return math.Min(n.limit, n.res.MaximumDistance())
}

// Full reports whether k objects are held.
func (n *Nearest[T]) Full() bool { return n.res.Len() >= n.k }

// Accepts reports whether an object at distance d would be kept.
func (n *Nearest[T]) Accepts(d float64) bool {
	if n.k <= 0 || d > n.Radius() {
		return false
	}
	return !(n.Full() && d == n.Radius() && !n.res.Tie())
}

// Offer adds obj when it qualifies.
func (n *Nearest[T]) Offer(obj T, d float64) {
	if !n.Accepts(d) {
		return
	}
	n.res.AddPair(obj, d)
	if n.res.Len() > n.k {
		n.res.Cut(n.k)
	}
}

// Result returns the collected result.
func (n *Nearest[T]) Result() *result.Result[T] { return n.res }

// InRing reports whether d lies in the ring (inner, outer].
func InRing(d, inner, outer float64) bool {
	return d > inner && d <= outer
}
