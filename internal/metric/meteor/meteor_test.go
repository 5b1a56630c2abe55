package meteor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

type mapLexicon map[string][]string

func (l mapLexicon) Synonyms(word string, pos wordnet.POS) []string {
	if pos != wordnet.Adjective {
		return nil
	}
	return l[word]
}

type identity struct{}

func (identity) Stem(word string) string { return word }

func newMETEOR(t *testing.T, mutate func(*Config)) *METEOR {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

// one chunk over n matches with default parameters
func contiguous(n float64) float64 {
	return 1 - 0.5*(1/n)*(1/n)*(1/n)
}

func TestSelfMatch(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.SingleSentenceScore(context.Background(), "the cat sat", "the cat sat")
	require.NoError(t, err)
	assert.InDelta(t, 0.981481, score.Score, 1e-6)
	assert.InDelta(t, contiguous(3), score.Score, 1e-12)
}

func TestNoMatch(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.SingleSentenceScore(context.Background(), "the cat sat", "a dog ran")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)

	score, err = m.SingleSentenceScore(context.Background(), "", "a dog ran")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
}

func TestStemMatch(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.SingleSentenceScore(context.Background(), "cats sitting", "cat sitting")
	require.NoError(t, err)
	assert.InDelta(t, contiguous(2), score.Score, 1e-12)
}

func TestSynonymMatch(t *testing.T) {
	lex := mapLexicon{"big": {"big", "large"}}
	with := newMETEOR(t, func(c *Config) { c.Wordnet = lex })
	score, err := with.SingleSentenceScore(context.Background(), "big dog", "large dog")
	require.NoError(t, err)
	assert.InDelta(t, contiguous(2), score.Score, 1e-12)

	without := newMETEOR(t, nil)
	score, err = without.SingleSentenceScore(context.Background(), "big dog", "large dog")
	require.NoError(t, err)
	// one match: P = R = F = 0.5, one chunk, penalty 0.5
	assert.InDelta(t, 0.25, score.Score, 1e-12)
}

func TestAlignmentOrder(t *testing.T) {
	m := newMETEOR(t, nil)

	// the rightmost hypothesis word is matched first
	assert.Equal(t, []match{{hyp: 1, ref: 0}}, m.align([]string{"a", "a"}, []string{"a"}))

	matches := m.align(strings.Fields("a b c d"), strings.Fields("c d a b"))
	assert.Equal(t, []match{{0, 2}, {1, 3}, {2, 0}, {3, 1}}, matches)
	assert.Equal(t, 2, countChunks(matches))
}

func TestMatchedWordsAreConsumed(t *testing.T) {
	// "cats" is taken by the exact pass, so "cat" has nothing left to stem-match
	m := newMETEOR(t, nil)
	matches := m.align(strings.Fields("cat cats"), strings.Fields("cats"))
	assert.Equal(t, []match{{hyp: 1, ref: 0}}, matches)
}

func TestFragmentationPenalty(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.SingleSentenceScore(context.Background(), "a b c d", "c d a b")
	require.NoError(t, err)
	assert.InDelta(t, 1-0.5*0.125, score.Score, 1e-12)
}

func TestBestReference(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.SentenceScore(context.Background(), "the cat", []string{"a dog", "the cat"})
	require.NoError(t, err)
	assert.InDelta(t, contiguous(2), score.Score, 1e-12)
}

func TestCorpusScoreIsMean(t *testing.T) {
	m := newMETEOR(t, nil)
	score, err := m.CorpusScore(context.Background(),
		[]string{"the cat sat", "xyz"},
		[][]string{{"the cat sat", "abc"}},
	)
	require.NoError(t, err)
	assert.InDelta(t, contiguous(3)/2, score.Score, 1e-12)

	single, err := m.SingleCorpusScore(context.Background(), []string{"the cat sat", "xyz"}, []string{"the cat sat", "abc"})
	require.NoError(t, err)
	assert.Equal(t, score, single)
}

func TestAsianSupport(t *testing.T) {
	m := newMETEOR(t, func(c *Config) { c.AsianSupport = true })
	score, err := m.SingleSentenceScore(context.Background(), "猫坐着", "猫 坐 着")
	require.NoError(t, err)
	assert.InDelta(t, contiguous(3), score.Score, 1e-12)
}

func TestLowercase(t *testing.T) {
	folded := newMETEOR(t, func(c *Config) { c.Stemmer = identity{} })
	score, err := folded.SingleSentenceScore(context.Background(), "The Cat", "the cat")
	require.NoError(t, err)
	assert.InDelta(t, contiguous(2), score.Score, 1e-12)

	cased := newMETEOR(t, func(c *Config) {
		c.Stemmer = identity{}
		c.Lowercase = false
	})
	score, err = cased.SingleSentenceScore(context.Background(), "The Cat", "the cat")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
}

func TestErrors(t *testing.T) {
	m := newMETEOR(t, nil)
	ctx := context.Background()

	_, err := m.CorpusScore(ctx, []string{"a", "b"}, [][]string{{"a"}})
	assert.ErrorIs(t, err, apperrors.ErrCountMismatch)

	_, err = m.CorpusScore(ctx, []string{"a"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoReferences)

	_, err = m.SentenceScore(ctx, "a", nil)
	assert.ErrorIs(t, err, apperrors.ErrNoReferences)

	_, err = m.CorpusScore(ctx, []string{"a"}, [][]string{{""}, {" "}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyReference)

	_, err = m.SingleSentenceScore(ctx, "a b", "")
	assert.ErrorIs(t, err, apperrors.ErrEmptyReference)

	_, err = m.SentenceScore(ctx, "a b", []string{"", " "})
	assert.ErrorIs(t, err, apperrors.ErrEmptyReference)

	score, err := m.SentenceScore(ctx, "a b", []string{"", "a b"})
	require.NoError(t, err)
	assert.InDelta(t, contiguous(2), score.Score, 1e-12)

	_, err = New(Config{Alpha: 1.5})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = New(Config{Alpha: 0.9, Beta: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newMETEOR(t, nil)
	_, err := m.CorpusScore(ctx, []string{"a"}, [][]string{{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkCorpusScore(b *testing.B) {
	m, err := New(DefaultConfig())
	require.NoError(b, err)
	hyps := make([]string, 200)
	refs := make([]string, 200)
	for i := range hyps {
		hyps[i] = "the quick brown foxes were jumping over the lazy dogs"
		refs[i] = "a quick brown fox jumped over the lazy dog"
	}
	b.ReportAllocs()
	for b.Loop() {
		if _, err := m.SingleCorpusScore(context.Background(), hyps, refs); err != nil {
			b.Fatal(err)
		}
	}
}
