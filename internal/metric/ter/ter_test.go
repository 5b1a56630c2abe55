package ter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

func newTER(t *testing.T, cfg Config) *TER {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestSelfMatch(t *testing.T) {
	e := newTER(t, Config{})
	for _, h := range []string{"the cat sat", "a", "the quick brown fox jumps over the lazy dog"} {
		score, err := e.SentenceScore(context.Background(), h, []string{h})
		require.NoError(t, err)
		assert.Equal(t, 0.0, score.Score, h)
		assert.Equal(t, 0.0, score.NumEdits, h)
	}
}

func TestShiftReducesEdits(t *testing.T) {
	rate, err := TranslationEditRate(context.Background(), strings.Fields("b c a"), strings.Fields("a b c"))
	require.NoError(t, err)
	assert.Equal(t, EditRate{Edits: 1, RefLength: 3}, rate)

	e := newTER(t, Config{})
	score, err := e.SingleSentenceScore(context.Background(), "b c a", "a b c")
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, score.Score, 1e-9)
	assert.Equal(t, 1.0, score.NumEdits)
	assert.Equal(t, 3.0, score.RefLength)
}

// Plain edit distance for a full reversal is 4. Moving "d" to the front
// leaves two substitutions, so one shift beats it.
func TestReversalTakesOneShift(t *testing.T) {
	rate, err := TranslationEditRate(context.Background(), strings.Fields("a b c d"), strings.Fields("d c b a"))
	require.NoError(t, err)
	assert.Equal(t, EditRate{Edits: 3, RefLength: 4}, rate)
}

func TestEmptyReference(t *testing.T) {
	rate, err := TranslationEditRate(context.Background(), strings.Fields("a b c"), nil)
	require.NoError(t, err)
	assert.Equal(t, EditRate{Edits: 3, RefLength: 0}, rate)

	// a blank reference survives extraction but tokenizes to nothing
	e := newTER(t, Config{})
	score, err := e.SentenceScore(context.Background(), "a b c", []string{"   "})
	require.NoError(t, err)
	assert.Equal(t, 100.0, score.Score)
	assert.Equal(t, 3.0, score.NumEdits)
	assert.Equal(t, 0.0, score.RefLength)
}

func TestMultipleReferencesAverageLength(t *testing.T) {
	e := newTER(t, Config{})
	score, err := e.SentenceScore(context.Background(), "a b", []string{"a b c", "a b c d e"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.NumEdits)
	assert.Equal(t, 4.0, score.RefLength)
	assert.InDelta(t, 25.0, score.Score, 1e-9)
}

func TestCorpusScore(t *testing.T) {
	e := newTER(t, Config{})
	hyps := []string{"the cat sat", "b c a"}
	refs := [][]string{{"the cat sat", "a b c"}}

	score, err := e.CorpusScore(context.Background(), hyps, refs)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.NumEdits)
	assert.Equal(t, 6.0, score.RefLength)
	assert.InDelta(t, 100.0/6, score.Score, 1e-9)

	require.NoError(t, e.CacheReferences(context.Background(), refs))
	cached, err := e.CorpusScore(context.Background(), hyps, nil)
	require.NoError(t, err)
	assert.Equal(t, score, cached)
}

func TestCaseSensitivity(t *testing.T) {
	insensitive := newTER(t, Config{})
	score, err := insensitive.SingleSentenceScore(context.Background(), "The Cat", "the cat")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.NumEdits)

	sensitive := newTER(t, Config{CaseSensitive: true})
	score, err = sensitive.SingleSentenceScore(context.Background(), "The Cat", "the cat")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score.NumEdits)
}

func TestCountMismatch(t *testing.T) {
	e := newTER(t, Config{})
	_, err := e.CorpusScore(context.Background(), []string{"a", "b"}, [][]string{{"a"}})
	assert.True(t, errors.Is(err, apperrors.ErrCountMismatch))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TranslationEditRate(ctx, strings.Fields("b c a"), strings.Fields("a b c"))
	assert.ErrorIs(t, err, context.Canceled)

	e := newTER(t, Config{})
	_, err = e.SingleSentenceScore(ctx, "b c a", "a b c")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindShiftedPairs(t *testing.T) {
	assert.Empty(t, findShiftedPairs(strings.Fields("a b c"), strings.Fields("x y z")))

	assert.Equal(t, []shiftedPair{
		{startH: 0, startR: 1, length: 1},
		{startH: 0, startR: 1, length: 2},
		{startH: 1, startR: 2, length: 1},
	}, findShiftedPairs(strings.Fields("a b"), strings.Fields("x a b")))

	// starts too far apart
	ref := append(strings.Fields(strings.Repeat("z ", 55)), "a")
	assert.Empty(t, findShiftedPairs([]string{"a"}, ref))
}

func TestFindShiftedPairsCapsLength(t *testing.T) {
	words := strings.Fields(strings.Repeat("w ", 12))
	for _, p := range findShiftedPairs(words, words) {
		assert.LessOrEqual(t, p.length, maxShiftSize)
	}
}

func TestPerformShift(t *testing.T) {
	words := strings.Fields("a b c d e")
	assert.Equal(t, strings.Fields("d a b c e"), performShift(words, 3, 1, 0))
	assert.Equal(t, strings.Fields("b c a d e"), performShift(words, 0, 1, 3))
	assert.Equal(t, strings.Fields("a d b c e"), performShift(words, 1, 2, 2))
	assert.Equal(t, strings.Fields("a b c d e"), words)
}

func TestFlipTrace(t *testing.T) {
	assert.Equal(t, "dis ", flipTrace("ids "))
}

func TestTraceToAlignment(t *testing.T) {
	align, refErr, hypErr, err := traceToAlignment("d  i")
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 0, 1}, align)
	assert.Equal(t, []int{1, 0, 0}, refErr)
	assert.Equal(t, []int{0, 0, 1}, hypErr)

	_, _, _, err = traceToAlignment("q")
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestBeamEditDistance(t *testing.T) {
	ed := newBeamEditDistance(strings.Fields("a b"))
	cost, trace, err := ed.calculate(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cost)
	assert.Equal(t, "ii", trace)

	cost, trace, err = ed.calculate(strings.Fields("a x b"))
	require.NoError(t, err)
	assert.Equal(t, 1, cost)
	assert.Equal(t, " d ", trace)
}

func TestBeamEditDistanceCache(t *testing.T) {
	ed := newBeamEditDistance(strings.Fields("the cat sat on the mat"))
	hyp := strings.Fields("the cat sat on a mat")

	first, _, err := ed.calculate(hyp)
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, len(hyp), ed.cacheSize)

	start, rows := ed.findCache(hyp)
	assert.Equal(t, len(hyp), start)
	assert.Len(t, rows, len(hyp)+1)

	// a shared prefix adds only the new suffix rows
	_, _, err = ed.calculate(strings.Fields("the cat sat on the mat"))
	require.NoError(t, err)
	assert.Equal(t, len(hyp)+2, ed.cacheSize)

	again, _, err := ed.calculate(hyp)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestBeamEditDistanceCacheBound(t *testing.T) {
	ed := newBeamEditDistance(strings.Fields("a b c"))
	ed.cacheSize = maxCacheSize
	_, _, err := ed.calculate(strings.Fields("a b c"))
	require.NoError(t, err)
	assert.Equal(t, maxCacheSize, ed.cacheSize)
	assert.Empty(t, ed.root.children)
}

func TestBeamEditDistanceCacheStopsAtBound(t *testing.T) {
	ed := newBeamEditDistance(strings.Fields("a b c d e"))
	ed.cacheSize = maxCacheSize - 2
	first, _, err := ed.calculate(strings.Fields("a b c d e"))
	require.NoError(t, err)
	assert.Equal(t, maxCacheSize, ed.cacheSize)

	a, ok := ed.root.children["a"]
	require.True(t, ok)
	b, ok := a.children["b"]
	require.True(t, ok)
	assert.Empty(t, b.children)

	// the partial path is still a usable prefix
	again, _, err := ed.calculate(strings.Fields("a b c d e"))
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, maxCacheSize, ed.cacheSize)
}

func TestComputeFromStats(t *testing.T) {
	assert.Equal(t, &Score{Score: 50, NumEdits: 2, RefLength: 4}, ComputeFromStats([]float64{2, 4}))
	assert.Equal(t, &Score{Score: 100, NumEdits: 3}, ComputeFromStats([]float64{3, 0}))
	assert.Equal(t, &Score{}, ComputeFromStats(nil))
}

func BenchmarkTranslationEditRate(b *testing.B) {
	hyp := strings.Fields("the quick brown fox jumps over the lazy dog while the cat sleeps on a warm mat near the door")
	ref := strings.Fields("while the cat sleeps near the door on a warm mat the quick brown fox jumps over a lazy dog")
	b.ReportAllocs()
	for b.Loop() {
		if _, err := TranslationEditRate(context.Background(), hyp, ref); err != nil {
			b.Fatal(err)
		}
	}
}
