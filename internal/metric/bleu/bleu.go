// Package bleu implements corpus and sentence BLEU with the four smoothing
// methods of Chen & Cherry (2014).
package bleu

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/metric/counter"
	"github.com/ansonxing23/mt-evaluation/internal/metric/ngram"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// Smoothing methods.
const (
	SmoothNone  = "none"
	SmoothFloor = "floor"
	SmoothAddK  = "add-k"
	SmoothExp   = "exp"
)

const defaultMaxNgramOrder = 4

// logZero stands in for log(0) so a zero precision drives the score to 0.
const logZero = -9999999999.0

// SmoothDefaults holds the default smoothing value of each method. Methods
// that take no value map to nil.
var SmoothDefaults = map[string]*float64{
	SmoothNone:  nil,
	SmoothFloor: ptr(0.1),
	SmoothAddK:  ptr(1.0),
	SmoothExp:   nil,
}

func ptr(v float64) *float64 { return &v }

// Tokenizer turns a raw segment into space-joined tokens.
type Tokenizer interface {
	Parse(text string) string
}

// Config selects the BLEU variant.
type Config struct {
	Lowercase bool
	// Tokenizer defaults to whitespace normalization.
	Tokenizer    Tokenizer
	SmoothMethod string
	// SmoothValue overrides the method default when non-nil.
	SmoothValue    *float64
	MaxNgramOrder  int
	EffectiveOrder bool
	// Force disables the tokenized-input warning.
	Force       bool
	Concurrency int
}

// DefaultConfig returns corpus BLEU with exponential smoothing.
func DefaultConfig() Config {
	return Config{
		SmoothMethod:  SmoothExp,
		MaxNgramOrder: defaultMaxNgramOrder,
	}
}

// Score is a BLEU result with its sufficient statistics.
type Score struct {
	Score      float64   `json:"score"`
	Counts     []float64 `json:"counts"`
	Totals     []float64 `json:"totals"`
	Precisions []float64 `json:"precisions"`
	BP         float64   `json:"bp"`
	SysLen     float64   `json:"sys_len"`
	RefLen     float64   `json:"ref_len"`
}

func (s *Score) Value() float64 { return s.Score }

// Format renders the score the way sacreBLEU prints it.
func (s *Score) Format() string {
	precs := make([]string, len(s.Precisions))
	for i, p := range s.Precisions {
		precs[i] = fmt.Sprintf("%.1f", p)
	}
	ratio := 0.0
	if s.RefLen > 0 {
		ratio = s.SysLen / s.RefLen
	}
	return fmt.Sprintf("BLEU = %.2f %s (BP = %.3f ratio = %.3f hyp_len = %d ref_len = %d)",
		s.Score, strings.Join(precs, "/"), s.BP, ratio, int(s.SysLen), int(s.RefLen))
}

// refInfo is the merged reference n-gram table and the reference lengths of
// one corpus position.
type refInfo struct {
	ngrams *counter.Counter[ngram.Gram]
	lens   []float64
}

// BLEU scores hypotheses with BLEU. It is safe for concurrent use.
type BLEU struct {
	*metric.Aggregator[refInfo, *Score]
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns a BLEU engine.
func New(cfg Config) (*BLEU, error) {
	if cfg.SmoothMethod == "" {
		cfg.SmoothMethod = SmoothExp
	}
	if _, ok := SmoothDefaults[cfg.SmoothMethod]; !ok {
		return nil, fmt.Errorf("%w: unknown smoothing method %q", apperrors.ErrInvalidConfig, cfg.SmoothMethod)
	}
	if cfg.MaxNgramOrder == 0 {
		cfg.MaxNgramOrder = defaultMaxNgramOrder
	}
	if cfg.MaxNgramOrder < 0 {
		return nil, fmt.Errorf("%w: max n-gram order must be positive", apperrors.ErrInvalidConfig)
	}

	b := &BLEU{
		cfg:    cfg,
		logger: slog.Default().With("component", "bleu"),
	}
	b.Aggregator = metric.NewAggregator[refInfo, *Score]("bleu", hooks{b},
		metric.WithConcurrency(cfg.Concurrency),
		metric.WithTokenizedPeriodCheck(!cfg.Force),
	)
	return b, nil
}

// SentenceScore scores a single hypothesis. Sentence BLEU without effective
// order is almost always 0 for short sentences.
func (b *BLEU) SentenceScore(ctx context.Context, hypothesis string, references []string) (*Score, error) {
	if !b.cfg.EffectiveOrder {
		b.logger.Warn("it is recommended to enable effective order for sentence-level BLEU")
	}
	return b.Aggregator.SentenceScore(ctx, hypothesis, references)
}

// SingleSentenceScore scores a single hypothesis against one reference.
func (b *BLEU) SingleSentenceScore(ctx context.Context, hypothesis, reference string) (*Score, error) {
	return b.SentenceScore(ctx, hypothesis, []string{reference})
}

// ComputeFromStats computes BLEU from already summed statistics laid out as
// [hypLen, refLen, correct_1..N, total_1..N].
func (b *BLEU) ComputeFromStats(stats []float64) *Score {
	n := b.cfg.MaxNgramOrder
	if len(stats) < 2+2*n {
		return &Score{Precisions: make([]float64, n)}
	}
	correct := append([]float64(nil), stats[2:2+n]...)
	total := append([]float64(nil), stats[2+n:2+2*n]...)
	return computeBLEU(correct, total, stats[0], stats[1], b.cfg.SmoothMethod, b.cfg.SmoothValue, b.cfg.EffectiveOrder)
}

func computeBLEU(correct, total []float64, sysLen, refLen float64, method string, value *float64, effectiveOrder bool) *Score {
	smoothValue := SmoothDefaults[method]
	if value != nil {
		smoothValue = value
	}

	bp := 1.0
	if sysLen < refLen {
		bp = 0
		if sysLen > 0 {
			bp = math.Exp(1 - refLen/sysLen)
		}
	}

	maxOrder := len(correct)
	precisions := make([]float64, maxOrder)
	result := &Score{Counts: correct, Totals: total, Precisions: precisions, BP: bp, SysLen: sysLen, RefLen: refLen}

	if maxOrder == 0 || correct[0] == 0 {
		return result
	}

	smoothMteval := 1.0
	effOrder := maxOrder
	for n := 1; n <= maxOrder; n++ {
		i := n - 1
		if method == SmoothAddK && n > 1 && smoothValue != nil {
			correct[i] += *smoothValue
			total[i] += *smoothValue
		}
		if total[i] == 0 {
			break
		}
		if effectiveOrder {
			effOrder = n
		}
		if correct[i] == 0 {
			switch method {
			case SmoothExp:
				smoothMteval *= 2
				precisions[i] = 100 / (smoothMteval * total[i])
			case SmoothFloor:
				precisions[i] = 100 * *smoothValue / total[i]
			}
			continue
		}
		precisions[i] = 100 * correct[i] / total[i]
	}

	sum := 0.0
	for _, p := range precisions[:effOrder] {
		sum += safeLog(p)
	}
	result.Score = bp * math.Exp(sum/float64(effOrder))
	return result
}

func safeLog(x float64) float64 {
	if x == 0 {
		return logZero
	}
	return math.Log(x)
}

// closestRefLen picks the reference length closest to hypLen, preferring the
// shorter one on ties.
func closestRefLen(hypLen float64, refLens []float64) float64 {
	closestDiff, closestLen := -1.0, -1.0
	for _, l := range refLens {
		diff := math.Abs(hypLen - l)
		if closestDiff == -1 || diff < closestDiff {
			closestDiff, closestLen = diff, l
		} else if diff == closestDiff && l < closestLen {
			closestLen = l
		}
	}
	return closestLen
}

type hooks struct{ b *BLEU }

func (h hooks) PreprocessSegment(sentence string) string {
	if h.b.cfg.Lowercase {
		sentence = strings.ToLower(sentence)
	}
	sentence = strings.TrimSpace(sentence)
	if h.b.cfg.Tokenizer == nil {
		return strings.Join(strings.Fields(sentence), " ")
	}
	return h.b.cfg.Tokenizer.Parse(sentence)
}

func (h hooks) ExtractReferenceInfo(refs []string) (refInfo, error) {
	info := refInfo{ngrams: counter.New[ngram.Gram](), lens: make([]float64, 0, len(refs))}
	for _, ref := range refs {
		grams, n := ngram.CountRange(ref, 1, h.b.cfg.MaxNgramOrder)
		info.lens = append(info.lens, float64(n))
		info.ngrams.MergeMax(grams)
	}
	return info, nil
}

func (h hooks) ComputeSegmentStatistics(_ context.Context, hypothesis string, ref refInfo) ([]float64, error) {
	order := h.b.cfg.MaxNgramOrder
	hypGrams, hypLen := ngram.CountRange(hypothesis, 1, order)
	refLen := closestRefLen(float64(hypLen), ref.lens)

	stats := make([]float64, 2+2*order)
	stats[0] = float64(hypLen)
	stats[1] = refLen
	correct := stats[2 : 2+order]
	total := stats[2+order:]
	hypGrams.Each(func(g ngram.Gram, count int) {
		i := g.N - 1
		total[i] += float64(count)
		if ref.ngrams.Contains(g) {
			correct[i] += float64(min(count, ref.ngrams.Count(g)))
		}
	})
	return stats, nil
}

func (h hooks) AggregateAndCompute(stats [][]float64) *Score {
	return h.b.ComputeFromStats(metric.SumStats(stats))
}
