// Package distance defines the distance boundary of the metric access methods.
//
// A distance is any Func[T]. Trees evaluate it through an Evaluator, which
// counts evaluations for instrumentation.
//
// # Built-in Metrics
//
//   - Euclidean, Manhattan, Chebyshev, Minkowski: vectors of float64
//   - Hamming: byte slices
//   - Levenshtein: strings
//
// # Usage
//
//	ev := distance.NewEvaluator(distance.Euclidean)
//	d := ev.Distance(a, b)
//	n := ev.Count()
package distance
