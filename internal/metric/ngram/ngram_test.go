package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tokens := []string{"a", "b", "c"}

	assert.Equal(t, []Gram{Of("a", "b"), Of("b", "c")}, Extract(tokens, 2))
	assert.Equal(t, []Gram{Of("a", "b", "c")}, Extract(tokens, 3))
	assert.Nil(t, Extract(tokens, 4))
	assert.Nil(t, Extract(tokens, 0))
	assert.Nil(t, Extract(nil, 1))
}

func TestCountRange(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		min, max   int
		wantLen    int
		wantTotal  int
		wantCounts map[Gram]int
	}{
		{
			name:      "orders one to two",
			line:      "the cat the cat",
			min:       1,
			max:       2,
			wantLen:   4,
			wantTotal: 7,
			wantCounts: map[Gram]int{
				Of("the"):        2,
				Of("cat"):        2,
				Of("the", "cat"): 2,
				Of("cat", "the"): 1,
			},
		},
		{
			name:       "empty line",
			line:       "",
			min:        1,
			max:        4,
			wantLen:    0,
			wantTotal:  0,
			wantCounts: map[Gram]int{},
		},
		{
			name:      "shorter than highest order",
			line:      "a b",
			min:       1,
			max:       4,
			wantLen:   2,
			wantTotal: 3,
			wantCounts: map[Gram]int{
				Of("a"):      1,
				Of("b"):      1,
				Of("a", "b"): 1,
			},
		},
		{
			name:      "lower bound skips unigrams",
			line:      "x y z",
			min:       2,
			max:       3,
			wantLen:   3,
			wantTotal: 3,
			wantCounts: map[Gram]int{
				Of("x", "y"):      1,
				Of("y", "z"):      1,
				Of("x", "y", "z"): 1,
			},
		},
		{
			name:       "extra whitespace",
			line:       "  a \t b  ",
			min:        2,
			max:        2,
			wantLen:    2,
			wantTotal:  1,
			wantCounts: map[Gram]int{Of("a", "b"): 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, n := CountRange(tt.line, tt.min, tt.max)
			assert.Equal(t, tt.wantLen, n)
			assert.Equal(t, tt.wantTotal, c.Total())

			got := make(map[Gram]int, c.Len())
			c.Each(func(g Gram, count int) { got[g] = count })
			assert.Equal(t, tt.wantCounts, got)
		})
	}
}

func TestGram(t *testing.T) {
	g := Of("new", "york", "city")
	assert.Equal(t, 3, g.N)
	assert.Equal(t, []string{"new", "york", "city"}, g.Tokens())
	assert.Equal(t, "new york city", g.String())

	prefix, ok := g.Prefix()
	assert.True(t, ok)
	assert.Equal(t, Of("new", "york"), prefix)

	_, ok = Of("new").Prefix()
	assert.False(t, ok)
	assert.Nil(t, Gram{}.Tokens())
}
