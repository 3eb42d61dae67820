package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/pagestore"
)

func TestFrontier_Order(t *testing.T) {
	f := New(4)
	f.Add(Entry{PageID: 1, Distance: 3})
	f.Add(Entry{PageID: 2, Distance: 1, Radius: 5})
	f.Add(Entry{PageID: 3, Distance: 1, Radius: 2})
	f.Add(Entry{PageID: 5, Distance: 0.5})
	f.Add(Entry{PageID: 4, Distance: 1, Radius: 2})

	var got []pagestore.PageID
	for {
		e, ok := f.Next()
		if !ok {
			break
		}
		got = append(got, e.PageID)
	}

	assert.Equal(t, []pagestore.PageID{5, 3, 4, 2, 1}, got)
	assert.Equal(t, 0, f.Len())
}

func TestFrontier_PeekReset(t *testing.T) {
	f := New(0)

	_, ok := f.Peek()
	assert.False(t, ok)

	f.Add(Entry{PageID: 7, Distance: 2})
	f.Add(Entry{PageID: 8, Distance: 1})

	e, ok := f.Peek()
	require.True(t, ok)
	assert.Equal(t, pagestore.PageID(8), e.PageID)
	assert.Equal(t, 2, f.Len())

	f.Reset()
	assert.Equal(t, 0, f.Len())
	_, ok = f.Next()
	assert.False(t, ok)
}
