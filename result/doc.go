// Package result holds the answers of metric queries.
//
// A Result is a sequence of (object, distance) pairs kept in ascending
// distance order. Duplicates are legal. Each Result remembers the query
// that produced it, which drives tie-aware truncation:
//
//	r := result.New[[]float64](result.Query[[]float64]{Type: result.KNN, K: 5})
//	r.AddPair(obj, 1.5)
//	r.Cut(5)
package result
