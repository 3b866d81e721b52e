package ring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_EmptyState(t *testing.T) {
	b := New[int](3)
	assert.True(t, b.IsEmpty())
	assert.False(t, b.IsFull())
	assert.Equal(t, 0, b.Count())
	_, ok := b.Oldest()
	assert.False(t, ok)
	_, ok = b.Newest()
	assert.False(t, ok)
}

// S7 — capacity 3, push 1,2,3,4,5 -> get(0..2) = 3,4,5; newest=5; oldest=3; count=3.
func TestBuffer_OverwriteOldest(t *testing.T) {
	b := New[int](3)
	for _, v := range []int{1, 2, 3, 4, 5} {
		b.Push(v)
	}

	require.Equal(t, 3, b.Count())
	require.True(t, b.IsFull())

	v0, _ := b.Get(0)
	v1, _ := b.Get(1)
	v2, _ := b.Get(2)
	assert.Equal(t, 3, v0)
	assert.Equal(t, 4, v1)
	assert.Equal(t, 5, v2)

	newest, _ := b.Newest()
	oldest, _ := b.Oldest()
	assert.Equal(t, 5, newest)
	assert.Equal(t, 3, oldest)
}

func TestBuffer_GetOutOfRange(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	_, ok := b.Get(-1)
	assert.False(t, ok)
	_, ok = b.Get(1)
	assert.False(t, ok)
}

func TestBuffer_Clear(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Clear()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.Count())
	b.Push(9)
	v, _ := b.Oldest()
	assert.Equal(t, 9, v)
}

func TestBuffer_CopyToSlice(t *testing.T) {
	b := New[int](4)
	for _, v := range []int{1, 2, 3} {
		b.Push(v)
	}
	dst := make([]int, 4)
	n := b.CopyToSlice(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3, 0}, dst)
}

// Invariant 1 — for any sequence of N pushes into a buffer of capacity C,
// count = min(N,C), get(0) is the (N-count)-th pushed element, and
// get(count-1) is the last pushed element.
func TestBuffer_OverwriteProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("ring overwrite invariant", prop.ForAll(
		func(capacity int, pushes []int) bool {
			b := New[int](capacity)
			for _, v := range pushes {
				b.Push(v)
			}

			n := len(pushes)
			wantCount := n
			if wantCount > capacity {
				wantCount = capacity
			}
			if b.Count() != wantCount {
				return false
			}
			if wantCount == 0 {
				return true
			}

			oldestWant := pushes[n-wantCount]
			newestWant := pushes[n-1]

			oldest, _ := b.Oldest()
			newest, _ := b.Newest()
			return oldest == oldestWant && newest == newestWant
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
