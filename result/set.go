package result

import "slices"

// EqualFunc reports whether two objects are the same.
type EqualFunc[T any] func(a, b T) bool

// Equal is the EqualFunc of comparable types.
func Equal[T comparable](a, b T) bool { return a == b }

// SliceEqual is the EqualFunc of slices with comparable elements.
func SliceEqual[E comparable](a, b []E) bool { return slices.Equal(a, b) }

func (r *Result[T]) contains(obj T, eq EqualFunc[T]) bool {
	for _, p := range r.pairs {
		if eq(p.Object, obj) {
			return true
		}
	}
	return false
}

// Intersection returns the pairs of r whose objects are also in other.
func (r *Result[T]) Intersection(other *Result[T], eq EqualFunc[T]) *Result[T] {
	out := New(r.query)
	for _, p := range r.pairs {
		if other.contains(p.Object, eq) {
			out.pairs = append(out.pairs, p)
		}
	}
	return out
}

// Union returns the pairs of r plus the pairs of other whose objects are not in r.
func (r *Result[T]) Union(other *Result[T], eq EqualFunc[T]) *Result[T] {
	out := r.Clone()
	for _, p := range other.pairs {
		if !r.contains(p.Object, eq) {
			out.AddPair(p.Object, p.Distance)
		}
	}
	return out
}

// IsEqual reports whether both results hold the same objects at the same
// distances. Pairs at equal distances may appear in any order.
func (r *Result[T]) IsEqual(other *Result[T], eq EqualFunc[T]) bool {
	if len(r.pairs) != len(other.pairs) {
		return false
	}
	for i := range r.pairs {
		if r.pairs[i].Distance != other.pairs[i].Distance {
			return false
		}
	}
	used := make([]bool, len(other.pairs))
	for _, p := range r.pairs {
		found := false
		for j, o := range other.pairs {
			if !used[j] && o.Distance == p.Distance && eq(o.Object, p.Object) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Precision returns the fraction of reference objects found in r.
// An empty reference yields 1.
func (r *Result[T]) Precision(reference *Result[T], eq EqualFunc[T]) float64 {
	if len(reference.pairs) == 0 {
		return 1
	}
	hits := 0
	for _, p := range reference.pairs {
		if r.contains(p.Object, eq) {
			hits++
		}
	}
	return float64(hits) / float64(len(reference.pairs))
}
