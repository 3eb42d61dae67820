package index

import "github.com/hupe1980/gomam/result"

// PointQuerier finds objects at distance zero from sample.
type PointQuerier[T any] interface {
	PointQuery(sample T) (*result.Result[T], error)
}

// RingQuerier finds objects with inner < d <= outer.
type RingQuerier[T any] interface {
	RingQuery(sample T, inner, outer float64) (*result.Result[T], error)
}

// KAndRangeQuerier finds the k nearest objects among those within radius.
type KAndRangeQuerier[T any] interface {
	KAndRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error)
}

// KOrRangeQuerier finds the union of the k nearest objects and those within radius.
type KOrRangeQuerier[T any] interface {
	KOrRangeQuery(sample T, radius float64, k int, tie bool) (*result.Result[T], error)
}

// KRingQuerier finds the k nearest objects among those with inner < d <= outer.
type KRingQuerier[T any] interface {
	KRingQuery(sample T, inner, outer float64, k int, tie bool) (*result.Result[T], error)
}

// Supports reports whether m answers queries of type q.
func Supports[T any](m MetricAccessMethod[T], q result.QueryType) bool {
	switch q {
	case result.Range, result.KNN:
		return true
	case result.Point:
		_, ok := m.(PointQuerier[T])
		return ok
	case result.Ring:
		_, ok := m.(RingQuerier[T])
		return ok
	case result.KAndRange:
		_, ok := m.(KAndRangeQuerier[T])
		return ok
	case result.KOrRange:
		_, ok := m.(KOrRangeQuerier[T])
		return ok
	case result.KRing:
		_, ok := m.(KRingQuerier[T])
		return ok
	default:
		return false
	}
}

// PointQuery runs a point query or returns ErrNotSupported.
func PointQuery[T any](m MetricAccessMethod[T], sample T) (*result.Result[T], error) {
	q, ok := m.(PointQuerier[T])
	if !ok {
		return nil, ErrNotSupported
	}
	return q.PointQuery(sample)
}

// RingQuery runs a ring query or returns ErrNotSupported.
func RingQuery[T any](m MetricAccessMethod[T], sample T, inner, outer float64) (*result.Result[T], error) {
	q, ok := m.(RingQuerier[T])
	if !ok {
		return nil, ErrNotSupported
	}
	return q.RingQuery(sample, inner, outer)
}

// KAndRangeQuery runs a k-and-range query or returns ErrNotSupported.
func KAndRangeQuery[T any](m MetricAccessMethod[T], sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q, ok := m.(KAndRangeQuerier[T])
	if !ok {
		return nil, ErrNotSupported
	}
	return q.KAndRangeQuery(sample, radius, k, tie)
}

// KOrRangeQuery runs a k-or-range query or returns ErrNotSupported.
func KOrRangeQuery[T any](m MetricAccessMethod[T], sample T, radius float64, k int, tie bool) (*result.Result[T], error) {
	q, ok := m.(KOrRangeQuerier[T])
	if !ok {
		return nil, ErrNotSupported
	}
	return q.KOrRangeQuery(sample, radius, k, tie)
}

// KRingQuery runs a k-ring query or returns ErrNotSupported.
func KRingQuery[T any](m MetricAccessMethod[T], sample T, inner, outer float64, k int, tie bool) (*result.Result[T], error) {
	q, ok := m.(KRingQuerier[T])
	if !ok {
		return nil, ErrNotSupported
	}
	return q.KRingQuery(sample, inner, outer, k, tie)
}
