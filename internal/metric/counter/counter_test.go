package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts[K comparable](c *Counter[K]) map[K]int {
	out := make(map[K]int, c.Len())
	c.Each(func(k K, n int) { out[k] = n })
	return out
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want map[string]int
	}{
		{
			name: "minimum count of shared keys",
			a:    []string{"the", "the", "the", "cat"},
			b:    []string{"the", "the", "cat", "cat", "mat"},
			want: map[string]int{"the": 2, "cat": 1},
		},
		{
			name: "disjoint",
			a:    []string{"a", "b"},
			b:    []string{"c", "d", "e"},
			want: map[string]int{},
		},
		{
			name: "one side empty",
			a:    nil,
			b:    []string{"a"},
			want: map[string]int{},
		},
		{
			name: "identical",
			a:    []string{"x", "y", "y"},
			b:    []string{"x", "y", "y"},
			want: map[string]int{"x": 1, "y": 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := New(tt.a...), New(tt.b...)

			ab := a.Intersect(b)
			ba := b.Intersect(a)
			assert.Equal(t, tt.want, counts(ab))
			assert.Equal(t, counts(ab), counts(ba), "intersection must be symmetric")
			assert.Equal(t, len(tt.want), ab.Len())
		})
	}
}

func TestIntersectLeavesInputsUntouched(t *testing.T) {
	a := New("a", "a", "b")
	b := New("a")
	_ = a.Intersect(b)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts(a))
	assert.Equal(t, map[string]int{"a": 1}, counts(b))
}

func TestMergeMax(t *testing.T) {
	c := New("a", "a", "b")
	c.MergeMax(New("a", "b", "b", "b", "c"))
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "c": 1}, counts(c))

	c.MergeMax(New[string]())
	assert.Equal(t, map[string]int{"a": 2, "b": 3, "c": 1}, counts(c))
}

func TestCounterBasics(t *testing.T) {
	c := New(1, 2, 2)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Total())
	assert.Equal(t, 2, c.Count(2))
	assert.Zero(t, c.Count(7))
	assert.False(t, c.Contains(7))

	c.Add(7, 4)
	assert.True(t, c.Contains(7))
	assert.Equal(t, 4, c.Count(7))

	c.Set(7, -3)
	assert.True(t, c.Contains(7))
	assert.Zero(t, c.Count(7))
	assert.Equal(t, 3, c.Total())
}
