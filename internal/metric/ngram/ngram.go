// Package ngram extracts contiguous token windows and aggregates their counts.
package ngram

import (
	"strings"

	"github.com/ansonxing23/mt-evaluation/internal/metric/counter"
)

// sep joins tokens inside a Gram key. Tokens never contain it.
const sep = "\x00"

// Gram is a comparable n-gram: its tokens joined by a NUL byte, plus its order.
type Gram struct {
	Text string
	N    int
}

// Of builds the Gram for the given tokens.
func Of(tokens ...string) Gram {
	return Gram{Text: strings.Join(tokens, sep), N: len(tokens)}
}

// Tokens splits the Gram back into its tokens.
func (g Gram) Tokens() []string {
	if g.N == 0 {
		return nil
	}
	return strings.Split(g.Text, sep)
}

// Prefix returns the (n-1)-gram formed by all but the last token. The second
// result is false for unigrams, whose prefix is empty.
func (g Gram) Prefix() (Gram, bool) {
	if g.N <= 1 {
		return Gram{}, false
	}
	idx := strings.LastIndex(g.Text, sep)
	return Gram{Text: g.Text[:idx], N: g.N - 1}, true
}

// String renders the Gram with spaces between tokens.
func (g Gram) String() string {
	return strings.ReplaceAll(g.Text, sep, " ")
}

// Extract returns every window of n consecutive tokens, in order. It returns
// nil when n is not positive or exceeds the number of tokens.
func Extract(tokens []string, n int) []Gram {
	if n <= 0 || n > len(tokens) {
		return nil
	}
	grams := make([]Gram, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, Of(tokens[i:i+n]...))
	}
	return grams
}

// Count returns a Counter of the order-n windows of tokens.
func Count(tokens []string, n int) *counter.Counter[Gram] {
	return counter.New(Extract(tokens, n)...)
}

// CountRange counts all n-grams of orders minOrder..maxOrder (inclusive) of
// the whitespace-separated line and returns them with the token count.
func CountRange(line string, minOrder, maxOrder int) (*counter.Counter[Gram], int) {
	tokens := strings.Fields(line)
	c := counter.New[Gram]()
	for n := minOrder; n <= maxOrder; n++ {
		c.Update(Extract(tokens, n)...)
	}
	return c, len(tokens)
}
