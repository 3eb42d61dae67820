package distance

// Evaluator wraps a Func and counts how often it is evaluated.
//
// Evaluator is not safe for concurrent use.
type Evaluator[T any] struct {
	fn    Func[T]
	count uint64
}

// NewEvaluator creates an evaluator for fn.
func NewEvaluator[T any](fn Func[T]) *Evaluator[T] {
	return &Evaluator[T]{fn: fn}
}

// Distance evaluates the wrapped function and counts the call.
func (e *Evaluator[T]) Distance(a, b T) float64 {
	e.count++
	return e.fn(a, b)
}

// UpdateDistanceCount counts a distance that was obtained without calling
// Distance, e.g. one read back from a node.
func (e *Evaluator[T]) UpdateDistanceCount() { e.count++ }

// Count returns the number of counted evaluations.
func (e *Evaluator[T]) Count() uint64 { return e.count }

// ResetCount zeroes the counter.
func (e *Evaluator[T]) ResetCount() { e.count = 0 }

// Func returns the wrapped function.
func (e *Evaluator[T]) Func() Func[T] { return e.fn }
