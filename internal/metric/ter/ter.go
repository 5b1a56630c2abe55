// Package ter implements Translation Edit Rate (Snover et al., 2006) the way
// tercom computes it: a beam-pruned, cached edit distance plus a greedy
// search for block shifts.
package ter

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/tokenizer"
)

// Config selects the tercom normalization.
type Config struct {
	Normalized    bool
	NoPunct       bool
	AsianSupport  bool
	CaseSensitive bool
	Concurrency   int
}

// Score is a TER result. Score is on a 0-100 scale and may exceed 100.
type Score struct {
	Score     float64 `json:"score"`
	NumEdits  float64 `json:"num_edits"`
	RefLength float64 `json:"ref_length"`
}

func (s *Score) Value() float64 { return s.Score }

func (s *Score) Format() string {
	return fmt.Sprintf("TER = %.2f", s.Score)
}

// refInfo holds the tokenized references of one corpus position.
type refInfo struct {
	words [][]string
}

// TER scores hypotheses with TER. It is safe for concurrent use.
type TER struct {
	*metric.Aggregator[refInfo, *Score]
	cfg       Config
	tokenizer *tokenizer.Ter
}

// New returns a TER engine.
func New(cfg Config) (*TER, error) {
	t := &TER{
		cfg: cfg,
		tokenizer: tokenizer.NewTer(tokenizer.TerOptions{
			Normalized:    cfg.Normalized,
			NoPunct:       cfg.NoPunct,
			AsianSupport:  cfg.AsianSupport,
			CaseSensitive: cfg.CaseSensitive,
		}),
	}
	t.Aggregator = metric.NewAggregator[refInfo, *Score]("ter", hooks{t},
		metric.WithConcurrency(cfg.Concurrency),
	)
	return t, nil
}

// EditRate aligns one already tokenized hypothesis with one reference.
func (t *TER) EditRate(ctx context.Context, hypothesis, reference string) (EditRate, error) {
	return TranslationEditRate(ctx,
		strings.Fields(t.tokenizer.Parse(hypothesis)),
		strings.Fields(t.tokenizer.Parse(reference)),
	)
}

// ComputeFromStats computes TER from summed [edits, refLength] statistics.
func ComputeFromStats(stats []float64) *Score {
	if len(stats) < 2 {
		return &Score{}
	}
	edits, refLen := stats[0], stats[1]
	rate := 1.0
	if refLen > 0 {
		rate = edits / refLen
	}
	return &Score{Score: 100 * rate, NumEdits: edits, RefLength: refLen}
}

type hooks struct{ t *TER }

func (h hooks) PreprocessSegment(sentence string) string {
	return h.t.tokenizer.Parse(strings.TrimSpace(sentence))
}

func (h hooks) ExtractReferenceInfo(refs []string) (refInfo, error) {
	words := make([][]string, len(refs))
	for i, ref := range refs {
		words[i] = strings.Fields(ref)
	}
	return refInfo{words: words}, nil
}

// ComputeSegmentStatistics returns the fewest edits over all references and
// the average length of those references.
func (h hooks) ComputeSegmentStatistics(ctx context.Context, hypothesis string, ref refInfo) ([]float64, error) {
	hyp := strings.Fields(hypothesis)
	best := math.MaxInt
	refLengths := 0
	for _, words := range ref.words {
		rate, err := TranslationEditRate(ctx, hyp, words)
		if err != nil {
			return nil, err
		}
		refLengths += rate.RefLength
		best = min(best, rate.Edits)
	}
	if len(ref.words) == 0 {
		return []float64{0, 0}, nil
	}
	return []float64{float64(best), float64(refLengths) / float64(len(ref.words))}, nil
}

func (h hooks) AggregateAndCompute(stats [][]float64) *Score {
	return ComputeFromStats(metric.SumStats(stats))
}
