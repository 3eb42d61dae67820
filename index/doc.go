// Package index provides the engine shared by the metric access methods.
//
// A Tree binds a page manager, a distance function and an object codec. It
// owns the persisted header on page 0: the header is loaded once, cached for
// the lifetime of the handle and written back only by WriteHeader or by Close.
// Mutations that are not followed by either are lost.
//
// The concrete trees live in the subpackages dummy, gh, mm and vp. They all
// satisfy MetricAccessMethod. Derived queries are optional capabilities:
//
//	res, err := index.RingQuery(tree, sample, 1, 2)
//	if errors.Is(err, index.ErrNotSupported) { ... }
package index
