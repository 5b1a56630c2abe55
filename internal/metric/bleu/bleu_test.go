package bleu

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

func newBLEU(t *testing.T, mutate func(*Config)) *BLEU {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestSelfMatchWithEffectiveOrder(t *testing.T) {
	b := newBLEU(t, func(c *Config) { c.EffectiveOrder = true })
	for _, h := range []string{"the cat sat", "a", "the quick brown fox jumps over the lazy dog"} {
		score, err := b.SentenceScore(context.Background(), h, []string{h})
		require.NoError(t, err)
		assert.InDelta(t, 100.0, score.Score, 1e-9, h)
		assert.Equal(t, 1.0, score.BP)
	}
}

func TestShortSentenceWithoutEffectiveOrderIsZero(t *testing.T) {
	b := newBLEU(t, func(c *Config) { c.SmoothMethod = SmoothNone })
	score, err := b.SentenceScore(context.Background(), "the cat sat", []string{"the cat sat"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score.Score, 1e-9)
}

func TestSmoothingMethods(t *testing.T) {
	// unigrams 3/4, bigrams 2/3, trigrams 1/2, 4-grams 0/1
	hyp, ref := "a b c d", "a b c e"
	tests := []struct {
		method string
		want   float64
	}{
		{SmoothExp, math.Pow(75*(200.0/3)*50*50, 0.25)},
		{SmoothFloor, math.Pow(75*(200.0/3)*50*10, 0.25)},
		{SmoothAddK, math.Pow(75*75*(200.0/3)*50, 0.25)},
		{SmoothNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			b := newBLEU(t, func(c *Config) { c.SmoothMethod = tt.method })
			score, err := b.SingleCorpusScore(context.Background(), []string{hyp}, []string{ref})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score.Score, 1e-6)
		})
	}
}

func TestBrevityPenalty(t *testing.T) {
	b := newBLEU(t, func(c *Config) { c.EffectiveOrder = true })
	score, err := b.SingleSentenceScore(context.Background(), "a b", "a b c d")
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), score.BP, 1e-9)
	assert.InDelta(t, 100*math.Exp(-1), score.Score, 1e-6)
	assert.Equal(t, 2.0, score.SysLen)
	assert.Equal(t, 4.0, score.RefLen)
}

func TestNoUnigramMatchesIsZero(t *testing.T) {
	b := newBLEU(t, nil)
	score, err := b.SingleCorpusScore(context.Background(), []string{"x y z"}, []string{"a b c"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
}

func TestClosestRefLen(t *testing.T) {
	assert.Equal(t, 2.0, closestRefLen(3, []float64{4, 2}))
	assert.Equal(t, 4.0, closestRefLen(4, []float64{7, 4, 2}))
	assert.Equal(t, 5.0, closestRefLen(9, []float64{1, 5}))
}

func TestMultipleReferencesUseMaxCounts(t *testing.T) {
	b := newBLEU(t, func(c *Config) { c.EffectiveOrder = true })
	score, err := b.SentenceScore(context.Background(), "the the cat", []string{"the cat", "the the dog"})
	require.NoError(t, err)
	// "the" clipped to 2 by the second reference, "cat" matched by the first.
	assert.Equal(t, 3.0, score.Counts[0])
	assert.Equal(t, 3.0, score.Totals[0])
}

func TestCachedReferencesMatchExplicit(t *testing.T) {
	ctx := context.Background()
	hyps := []string{"the cat sat on the mat", "a dog barked loudly"}
	refs := [][]string{
		{"the cat sat on a mat", "the dog barked"},
		{"a cat was sitting on the mat", "a dog was barking loudly"},
	}

	b := newBLEU(t, nil)
	explicit, err := b.CorpusScore(ctx, hyps, refs)
	require.NoError(t, err)

	require.NoError(t, b.CacheReferences(ctx, refs))
	cached, err := b.CorpusScore(ctx, hyps, nil)
	require.NoError(t, err)
	assert.InDelta(t, explicit.Score, cached.Score, 1e-12)
	assert.Equal(t, explicit.Counts, cached.Counts)
}

func TestCorpusErrors(t *testing.T) {
	ctx := context.Background()
	b := newBLEU(t, nil)

	_, err := b.CorpusScore(ctx, []string{"a", "b"}, [][]string{{"a"}})
	assert.ErrorIs(t, err, apperrors.ErrCountMismatch)

	_, err = b.CorpusScore(ctx, []string{"a"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoReferences)

	_, err = b.CorpusScore(ctx, []string{"a"}, [][]string{{""}, {""}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyReference)
}

func TestEmptyReferenceDocumentsAreSkipped(t *testing.T) {
	b := newBLEU(t, func(c *Config) { c.EffectiveOrder = true })
	score, err := b.SentenceScore(context.Background(), "the cat", []string{"", "the cat"})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score.Score, 1e-9)
}

func TestNewRejectsUnknownSmoothing(t *testing.T) {
	_, err := New(Config{SmoothMethod: "laplace"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestLowercase(t *testing.T) {
	b := newBLEU(t, func(c *Config) {
		c.Lowercase = true
		c.EffectiveOrder = true
	})
	score, err := b.SingleSentenceScore(context.Background(), "The Cat", "the cat")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score.Score, 1e-9)
}

func TestFormat(t *testing.T) {
	s := &Score{Score: 100, Precisions: []float64{100, 100, 100}, BP: 1, SysLen: 3, RefLen: 3}
	assert.Equal(t, "BLEU = 100.00 100.0/100.0/100.0 (BP = 1.000 ratio = 1.000 hyp_len = 3 ref_len = 3)", s.Format())
}

func BenchmarkCorpusScore(b *testing.B) {
	hyps := make([]string, 200)
	refs := make([]string, 200)
	for i := range hyps {
		hyps[i] = "the quick brown fox jumps over the lazy dog near the river bank"
		refs[i] = "a quick brown fox jumped over a lazy dog by the river bank"
	}
	engine, err := New(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SingleCorpusScore(ctx, hyps, refs); err != nil {
			b.Fatal(err)
		}
	}
}
