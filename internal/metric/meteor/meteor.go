// Package meteor implements sentence and corpus METEOR (Banerjee & Lavie,
// 2005) with exact, stem and WordNet synonym matching.
package meteor

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/stemmer"
	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// Lexicon returns the single-word lemmas sharing a sense with word.
// *wordnet.Database implements it.
type Lexicon interface {
	Synonyms(word string, pos wordnet.POS) []string
}

// Config selects the METEOR parameters.
type Config struct {
	// Stemmer defaults to Porter.
	Stemmer stemmer.Stemmer
	// Wordnet may be nil, which disables synonym matching.
	Wordnet Lexicon
	// AsianSupport splits segments into characters instead of words.
	AsianSupport bool
	Lowercase    bool
	Alpha        float64
	Beta         float64
	Gamma        float64
	Concurrency  int
}

// DefaultConfig returns the parameters of NLTK's meteor_score.
func DefaultConfig() Config {
	return Config{
		Stemmer:   stemmer.Porter{},
		Lowercase: true,
		Alpha:     0.9,
		Beta:      3,
		Gamma:     0.5,
	}
}

// METEOR scores hypotheses with METEOR. It keeps no state between calls.
type METEOR struct {
	cfg Config
}

// New validates cfg and returns a METEOR engine.
func New(cfg Config) (*METEOR, error) {
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("%w: alpha %v outside [0, 1]", apperrors.ErrInvalidConfig, cfg.Alpha)
	}
	if cfg.Gamma < 0 || cfg.Gamma > 1 {
		return nil, fmt.Errorf("%w: gamma %v outside [0, 1]", apperrors.ErrInvalidConfig, cfg.Gamma)
	}
	if cfg.Beta < 0 {
		return nil, fmt.Errorf("%w: beta %v is negative", apperrors.ErrInvalidConfig, cfg.Beta)
	}
	if cfg.Stemmer == nil {
		cfg.Stemmer = stemmer.Porter{}
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &METEOR{cfg: cfg}, nil
}

// SentenceScore returns the best score of the hypothesis over references.
func (m *METEOR) SentenceScore(ctx context.Context, hypothesis string, references []string) (metric.Scalar, error) {
	if err := ctx.Err(); err != nil {
		return metric.Scalar{}, err
	}
	if len(references) == 0 {
		return metric.Scalar{}, apperrors.ErrNoReferences
	}
	if allEmpty(references) {
		return metric.Scalar{}, fmt.Errorf("%w: position 0", apperrors.ErrEmptyReference)
	}
	return metric.Scalar{Score: m.bestScore(hypothesis, references)}, nil
}

// SingleSentenceScore scores one hypothesis against one reference.
func (m *METEOR) SingleSentenceScore(ctx context.Context, hypothesis, reference string) (metric.Scalar, error) {
	return m.SentenceScore(ctx, hypothesis, []string{reference})
}

// SingleCorpusScore scores a corpus with one reference document.
func (m *METEOR) SingleCorpusScore(ctx context.Context, hypotheses, references []string) (metric.Scalar, error) {
	return m.CorpusScore(ctx, hypotheses, [][]string{references})
}

// CorpusScore is the mean of the sentence scores. Unlike the other metrics
// it is not computed from summed statistics.
func (m *METEOR) CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (metric.Scalar, error) {
	if len(references) == 0 {
		return metric.Scalar{}, apperrors.ErrNoReferences
	}
	if err := metric.CheckCorpusArgs(hypotheses, references); err != nil {
		return metric.Scalar{}, err
	}

	positions := metric.ByPosition(references)
	scores := make([]float64, len(hypotheses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, hyp := range hypotheses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if allEmpty(positions[i]) {
				return fmt.Errorf("%w: position %d", apperrors.ErrEmptyReference, i)
			}
			scores[i] = m.bestScore(hyp, positions[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return metric.Scalar{}, err
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return metric.Scalar{Score: total / float64(len(scores))}, nil
}

func (m *METEOR) bestScore(hypothesis string, references []string) float64 {
	best := 0.0
	for _, ref := range references {
		best = math.Max(best, m.score(hypothesis, ref))
	}
	return best
}

// score is the METEOR score of one hypothesis against one reference.
// Degenerate inputs score 0.
func (m *METEOR) score(hypothesis, reference string) float64 {
	hyp := m.words(hypothesis)
	ref := m.words(reference)
	matches := m.align(hyp, ref)
	if len(matches) == 0 {
		return 0
	}

	precision := float64(len(matches)) / float64(len(hyp))
	recall := float64(len(matches)) / float64(len(ref))
	denom := m.cfg.Alpha*precision + (1-m.cfg.Alpha)*recall
	if denom == 0 {
		return 0
	}
	fMean := precision * recall / denom
	frag := float64(countChunks(matches)) / float64(len(matches))
	penalty := m.cfg.Gamma * math.Pow(frag, m.cfg.Beta)
	s := (1 - penalty) * fMean
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// words splits a segment into words, or into characters with AsianSupport.
func (m *METEOR) words(sentence string) []string {
	if m.cfg.Lowercase {
		sentence = strings.ToLower(sentence)
	}
	if !m.cfg.AsianSupport {
		return strings.Fields(sentence)
	}
	out := make([]string, 0, len(sentence))
	for _, r := range sentence {
		if !unicode.IsSpace(r) {
			out = append(out, string(r))
		}
	}
	return out
}

type match struct {
	hyp, ref int
}

// align matches words in three passes: exact, stem, then synonym. A word
// matched by one pass is not available to later ones. The result is sorted
// by hypothesis position.
func (m *METEOR) align(hyp, ref []string) []match {
	a := newAligner(hyp, ref)
	a.pass(func(h, r int) bool { return hyp[h] == ref[r] })

	hypStems := stems(m.cfg.Stemmer, hyp)
	refStems := stems(m.cfg.Stemmer, ref)
	a.pass(func(h, r int) bool { return hypStems[h] == refStems[r] })

	if m.cfg.Wordnet != nil {
		var syns map[string]struct{}
		last := -1
		a.pass(func(h, r int) bool {
			if h != last {
				syns, last = synonymSet(m.cfg.Wordnet, hyp[h]), h
			}
			_, ok := syns[ref[r]]
			return ok
		})
	}

	sort.SliceStable(a.matches, func(i, j int) bool { return a.matches[i].hyp < a.matches[j].hyp })
	return a.matches
}

// aligner tracks which positions are already matched.
type aligner struct {
	hypUsed, refUsed []bool
	matches          []match
}

func newAligner(hyp, ref []string) *aligner {
	return &aligner{hypUsed: make([]bool, len(hyp)), refUsed: make([]bool, len(ref))}
}

// pass greedily matches unmatched positions right to left: each hypothesis
// word takes the rightmost unmatched reference word it matches.
func (a *aligner) pass(matches func(h, r int) bool) {
	for h := len(a.hypUsed) - 1; h >= 0; h-- {
		if a.hypUsed[h] {
			continue
		}
		for r := len(a.refUsed) - 1; r >= 0; r-- {
			if a.refUsed[r] || !matches(h, r) {
				continue
			}
			a.hypUsed[h], a.refUsed[r] = true, true
			a.matches = append(a.matches, match{hyp: h, ref: r})
			break
		}
	}
}

func stems(s stemmer.Stemmer, words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = s.Stem(w)
	}
	return out
}

// synonymSet is the word itself plus its synonyms in every part of speech.
func synonymSet(lex Lexicon, word string) map[string]struct{} {
	set := map[string]struct{}{word: {}}
	for _, pos := range wordnet.AllPOS {
		for _, syn := range lex.Synonyms(word, pos) {
			set[syn] = struct{}{}
		}
	}
	return set
}

// countChunks counts the runs of matches adjacent in both sentences.
func countChunks(matches []match) int {
	chunks := 1
	for i := 1; i < len(matches); i++ {
		if matches[i].hyp != matches[i-1].hyp+1 || matches[i].ref != matches[i-1].ref+1 {
			chunks++
		}
	}
	return chunks
}

func allEmpty(refs []string) bool {
	for _, r := range refs {
		if strings.TrimSpace(r) != "" {
			return false
		}
	}
	return true
}
