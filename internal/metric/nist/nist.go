// Package nist implements the NIST metric (Doddington, 2002): information
// weighted n-gram precision with a length penalty.
package nist

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/metric/counter"
	"github.com/ansonxing23/mt-evaluation/internal/metric/ngram"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

const (
	defaultNGram = 5
	epsilon      = 1e-5
)

// Config selects the NIST variant.
type Config struct {
	// AsianSupport splits segments into characters instead of words.
	AsianSupport bool
	NGram        int
	Concurrency  int
}

// NIST scores hypotheses with NIST. It keeps no state between calls.
type NIST struct {
	cfg Config
}

// New returns a NIST engine.
func New(cfg Config) (*NIST, error) {
	if cfg.NGram == 0 {
		cfg.NGram = defaultNGram
	}
	if cfg.NGram < 0 {
		return nil, fmt.Errorf("%w: n-gram order must be positive", apperrors.ErrInvalidConfig)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &NIST{cfg: cfg}, nil
}

// SentenceScore scores one hypothesis against its references.
func (n *NIST) SentenceScore(ctx context.Context, hypothesis string, references []string) (metric.Scalar, error) {
	return n.CorpusScore(ctx, []string{hypothesis}, metric.SentenceDocuments(references))
}

// SingleSentenceScore scores one hypothesis against one reference.
func (n *NIST) SingleSentenceScore(ctx context.Context, hypothesis, reference string) (metric.Scalar, error) {
	return n.SentenceScore(ctx, hypothesis, []string{reference})
}

// SingleCorpusScore scores a corpus with one reference document.
func (n *NIST) SingleCorpusScore(ctx context.Context, hypotheses, references []string) (metric.Scalar, error) {
	return n.CorpusScore(ctx, hypotheses, [][]string{references})
}

// CorpusScore scores the hypotheses against reference documents aligned with
// them. Information weights are computed from every reference in the call.
func (n *NIST) CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (metric.Scalar, error) {
	if len(references) == 0 {
		return metric.Scalar{}, apperrors.ErrNoReferences
	}
	if err := metric.CheckCorpusArgs(hypotheses, references); err != nil {
		return metric.Scalar{}, err
	}

	refsByPos := metric.ByPosition(references)
	refTokens := make([][][]string, len(refsByPos))
	for i, refs := range refsByPos {
		refTokens[i] = make([][]string, 0, len(refs))
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			refTokens[i] = append(refTokens[i], n.split(ref))
		}
		if len(refTokens[i]) == 0 {
			return metric.Scalar{}, fmt.Errorf("%w: position %d", apperrors.ErrEmptyReference, i)
		}
	}
	weights := n.informationWeights(refTokens)

	order := n.cfg.NGram
	stats := make([][]float64, len(hypotheses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.cfg.Concurrency)
	for i, hyp := range hypotheses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats[i] = n.segmentStatistics(n.split(hyp), refTokens[i], weights)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return metric.Scalar{}, err
	}

	total := metric.SumStats(stats)
	precision := 0.0
	for i := 0; i < order; i++ {
		precision += total[i] / (total[order+i] + epsilon)
	}
	refLen, sysLen := total[2*order], total[2*order+1]
	return metric.Scalar{Score: precision * LengthPenalty(refLen, sysLen)}, nil
}

func (n *NIST) split(sentence string) []string {
	if !n.cfg.AsianSupport {
		return strings.Fields(sentence)
	}
	tokens := make([]string, 0, len(sentence))
	for _, r := range sentence {
		s := string(r)
		if strings.TrimSpace(s) == "" {
			continue
		}
		tokens = append(tokens, s)
	}
	return tokens
}

// informationWeights computes Info(w_1..w_n) = log2(count(w_1..w_n-1) /
// count(w_1..w_n)) over all references, with the total reference word count
// standing in for the count of an absent prefix.
func (n *NIST) informationWeights(refTokens [][][]string) map[ngram.Gram]float64 {
	freq := counter.New[ngram.Gram]()
	totalWords := 0
	for _, refs := range refTokens {
		for _, ref := range refs {
			for order := 1; order <= n.cfg.NGram; order++ {
				freq.Update(ngram.Extract(ref, order)...)
			}
			totalWords += len(ref)
		}
	}

	weights := make(map[ngram.Gram]float64, freq.Len())
	freq.Each(func(g ngram.Gram, count int) {
		numerator := totalWords
		if prefix, ok := g.Prefix(); ok && freq.Contains(prefix) {
			numerator = freq.Count(prefix)
		}
		weights[g] = math.Log2(float64(numerator) / float64(count))
	})
	return weights
}

// candidate is the per-reference outcome at one order. Candidates compare
// by precision, then numerator, denominator and reference length.
type candidate struct {
	precision   float64
	numerator   float64
	denominator float64
	refLen      float64
}

func (c candidate) less(o candidate) bool {
	switch {
	case c.precision != o.precision:
		return c.precision < o.precision
	case c.numerator != o.numerator:
		return c.numerator < o.numerator
	case c.denominator != o.denominator:
		return c.denominator < o.denominator
	default:
		return c.refLen < o.refLen
	}
}

// segmentStatistics returns [numerator_1..N, denominator_1..N, refLen, sysLen]
// for one hypothesis, choosing the best reference independently per order.
func (n *NIST) segmentStatistics(hyp []string, refs [][]string, weights map[ngram.Gram]float64) []float64 {
	order := n.cfg.NGram
	stats := make([]float64, 2*order+2)
	for i := 1; i <= order; i++ {
		hypGrams := ngram.Count(hyp, i)
		denominator := float64(hypGrams.Total())

		var best candidate
		for j, ref := range refs {
			numerator := 0.0
			hypGrams.Intersect(ngram.Count(ref, i)).Each(func(g ngram.Gram, count int) {
				numerator += weights[g] * float64(count)
			})
			c := candidate{numerator: numerator, denominator: denominator, refLen: float64(len(ref))}
			if denominator != 0 {
				c.precision = numerator / denominator
			}
			if j == 0 || best.less(c) {
				best = c
			}
		}
		stats[i-1] += best.numerator
		stats[order+i-1] += best.denominator
		stats[2*order] += best.refLen
		stats[2*order+1] += float64(len(hyp))
	}
	return stats
}

// LengthPenalty is Eq. 3 of Doddington (2002). Beta makes the penalty 0.5
// when the hypothesis is 2/3 of the reference length.
func LengthPenalty(refLen, hypLen float64) float64 {
	ratio := hypLen / refLen
	if 0 < ratio && ratio < 1 {
		const ratioX, scoreX = 1.5, 0.5
		beta := math.Log(scoreX) / math.Pow(math.Log(ratioX), 2)
		return math.Exp(beta * math.Pow(math.Log(ratio), 2))
	}
	if math.IsNaN(ratio) {
		return 0
	}
	return math.Max(math.Min(ratio, 1), 0)
}
