// Package queue provides the frontier used by branch-and-bound traversals.
package queue

import (
	"container/heap"

	"github.com/hupe1980/gomam/pagestore"
)

// Compile time check to ensure Frontier satisfies the heap interface.
var _ heap.Interface = (*Frontier)(nil)

// Entry is a pending subtree of a query traversal.
type Entry struct {
	PageID   pagestore.PageID // PageID is the root page of the subtree.
	Distance float64          // Distance is the lower bound of any object in the subtree.
	Radius   float64          // Radius is the covering radius of the subtree, if known.
}

// less orders by lower bound, then by smaller radius, then by page id.
func less(a, b Entry) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Radius != b.Radius {
		return a.Radius < b.Radius
	}
	return a.PageID < b.PageID
}

// Frontier is a binary min-heap of entries.
type Frontier struct {
	items []Entry
}

// New creates a frontier with room for capacity entries.
func New(capacity int) *Frontier {
	return &Frontier{items: make([]Entry, 0, capacity)}
}

// Len returns the number of entries in the frontier.
func (f *Frontier) Len() int { return len(f.items) }

// Less reports whether the entry with index i should be visited before j.
func (f *Frontier) Less(i, j int) bool { return less(f.items[i], f.items[j]) }

// Swap swaps the entries with indexes i and j.
func (f *Frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }

// Push implements heap.Interface. Use Add instead.
func (f *Frontier) Push(x any) { f.items = append(f.items, x.(Entry)) }

// Pop implements heap.Interface. Use Next instead.
func (f *Frontier) Pop() any {
	n := len(f.items)
	e := f.items[n-1]
	f.items = f.items[:n-1]
	return e
}

// Add inserts an entry.
func (f *Frontier) Add(e Entry) { heap.Push(f, e) }

// Next removes and returns the entry with the smallest lower bound.
func (f *Frontier) Next() (Entry, bool) {
	if len(f.items) == 0 {
		return Entry{}, false
	}
	return heap.Pop(f).(Entry), true
}

// Peek returns the entry with the smallest lower bound without removing it.
func (f *Frontier) Peek() (Entry, bool) {
	if len(f.items) == 0 {
		return Entry{}, false
	}
	return f.items[0], true
}

// Reset removes all entries and keeps the allocated storage.
func (f *Frontier) Reset() { f.items = f.items[:0] }
