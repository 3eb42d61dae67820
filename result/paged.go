package result

// Paged exposes a Result in fixed-size pages for external pagination.
type Paged[T any] struct {
	*Result[T]
	pageSize int
}

// NewPaged wraps r. A pageSize below 1 is treated as 1.
func NewPaged[T any](r *Result[T], pageSize int) *Paged[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Paged[T]{Result: r, pageSize: pageSize}
}

// PageSize returns the number of pairs per page.
func (p *Paged[T]) PageSize() int { return p.pageSize }

// NumPages returns the number of pages.
func (p *Paged[T]) NumPages() int {
	return (p.Len() + p.pageSize - 1) / p.pageSize
}

// Page returns the pairs of page i, or nil when i is out of range.
func (p *Paged[T]) Page(i int) []Pair[T] {
	if i < 0 || i >= p.NumPages() {
		return nil
	}
	start := i * p.pageSize
	end := min(start+p.pageSize, p.Len())
	return p.pairs[start:end:end]
}
