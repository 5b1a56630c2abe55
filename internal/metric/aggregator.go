package metric

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// tokenizedPeriodThreshold is the number of hypotheses ending in " ." after
// which the input is assumed to be tokenized.
const tokenizedPeriodThreshold = 100

// Hooks are the metric-specific steps the Aggregator drives. R is the
// reference information cached per corpus position; S is the final score.
type Hooks[R any, S Score] interface {
	// ExtractReferenceInfo precomputes what scoring needs from the
	// preprocessed, non-empty references of one sentence.
	ExtractReferenceInfo(refs []string) (R, error)
	// PreprocessSegment normalizes one raw segment (tokenize, case-fold).
	PreprocessSegment(sentence string) string
	// ComputeSegmentStatistics returns the sufficient statistics of one
	// preprocessed hypothesis against its reference information.
	ComputeSegmentStatistics(ctx context.Context, hypothesis string, ref R) ([]float64, error)
	// AggregateAndCompute reduces the per-segment statistics to a score.
	AggregateAndCompute(stats [][]float64) S
}

// Option configures an Aggregator.
type Option func(*options)

type options struct {
	concurrency    int
	checkTokenized bool
}

// WithConcurrency bounds the number of segments processed in parallel.
// Values below one mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithTokenizedPeriodCheck enables the advisory warning for hypotheses that
// look tokenized.
func WithTokenizedPeriodCheck(enabled bool) Option {
	return func(o *options) { o.checkTokenized = enabled }
}

// Aggregator implements corpus and sentence scoring on top of Hooks. The
// reference cache is the only state it keeps between calls; it is replaced
// wholesale and read without mutation, so concurrent scoring calls are safe.
type Aggregator[R any, S Score] struct {
	hooks  Hooks[R, S]
	opts   options
	logger *slog.Logger

	mu       sync.RWMutex
	refCache []R
}

// NewAggregator creates an Aggregator for the named metric.
func NewAggregator[R any, S Score](name string, hooks Hooks[R, S], opts ...Option) *Aggregator[R, S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = runtime.GOMAXPROCS(0)
	}
	return &Aggregator[R, S]{
		hooks:  hooks,
		opts:   o,
		logger: slog.Default().With("component", "aggregator", "metric", name),
	}
}

// CacheReferences extracts and stores reference information so later
// CorpusScore calls may omit the references.
func (a *Aggregator[R, S]) CacheReferences(ctx context.Context, references [][]string) error {
	cache, err := a.extractReferences(ctx, references)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.refCache = cache
	a.mu.Unlock()
	a.logger.Debug("references cached", "segments", len(cache), "documents", len(references))
	return nil
}

// CachedSegments returns the number of cached reference positions.
func (a *Aggregator[R, S]) CachedSegments() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.refCache)
}

// CorpusScore scores the hypotheses against reference documents, each
// aligned with the hypotheses. With no references the cached extraction is
// used.
func (a *Aggregator[R, S]) CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (S, error) {
	var zero S
	stats, err := a.CorpusStatistics(ctx, hypotheses, references)
	if err != nil {
		return zero, err
	}
	return a.hooks.AggregateAndCompute(stats), nil
}

// SentenceScore scores one hypothesis against its references.
func (a *Aggregator[R, S]) SentenceScore(ctx context.Context, hypothesis string, references []string) (S, error) {
	return a.CorpusScore(ctx, []string{hypothesis}, SentenceDocuments(references))
}

// SingleCorpusScore is CorpusScore with exactly one reference document.
func (a *Aggregator[R, S]) SingleCorpusScore(ctx context.Context, hypotheses, references []string) (S, error) {
	return a.CorpusScore(ctx, hypotheses, [][]string{references})
}

// SingleSentenceScore is SentenceScore with exactly one reference.
func (a *Aggregator[R, S]) SingleSentenceScore(ctx context.Context, hypothesis, reference string) (S, error) {
	return a.SentenceScore(ctx, hypothesis, []string{reference})
}

// CorpusStatistics returns the per-segment statistics, index-aligned with
// the hypotheses.
func (a *Aggregator[R, S]) CorpusStatistics(ctx context.Context, hypotheses []string, references [][]string) ([][]float64, error) {
	var refCache []R
	switch {
	case len(references) > 0:
		if err := CheckCorpusArgs(hypotheses, references); err != nil {
			return nil, err
		}
		cache, err := a.extractReferences(ctx, references)
		if err != nil {
			return nil, err
		}
		refCache = cache
	default:
		a.mu.RLock()
		refCache = a.refCache
		a.mu.RUnlock()
		if len(refCache) == 0 {
			return nil, apperrors.ErrNoReferences
		}
		if len(hypotheses) == 0 {
			return nil, fmt.Errorf("%w: no hypotheses", apperrors.ErrInvalidInput)
		}
	}
	if len(refCache) != len(hypotheses) {
		return nil, fmt.Errorf("%w: %d hypotheses, %d cached reference segments",
			apperrors.ErrCountMismatch, len(hypotheses), len(refCache))
	}

	if a.opts.checkTokenized {
		a.warnIfTokenized(hypotheses)
	}

	stats := make([][]float64, len(hypotheses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.concurrency)
	for i, hyp := range hypotheses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := a.hooks.ComputeSegmentStatistics(gctx, a.hooks.PreprocessSegment(hyp), refCache[i])
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (a *Aggregator[R, S]) extractReferences(ctx context.Context, references [][]string) ([]R, error) {
	if len(references) == 0 {
		return nil, apperrors.ErrNoReferences
	}
	for j, doc := range references {
		if len(doc) != len(references[0]) {
			return nil, fmt.Errorf("%w: reference document %d has %d segments, want %d",
				apperrors.ErrCountMismatch, j, len(doc), len(references[0]))
		}
	}

	positions := ByPosition(references)
	cache := make([]R, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.concurrency)
	for i, refs := range positions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lines := make([]string, 0, len(refs))
			for _, ref := range refs {
				if ref == "" {
					continue
				}
				lines = append(lines, a.hooks.PreprocessSegment(ref))
			}
			if len(lines) == 0 {
				return fmt.Errorf("%w: position %d", apperrors.ErrEmptyReference, i)
			}
			info, err := a.hooks.ExtractReferenceInfo(lines)
			if err != nil {
				return fmt.Errorf("reference %d: %w", i, err)
			}
			cache[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

func (a *Aggregator[R, S]) warnIfTokenized(hypotheses []string) {
	count := 0
	for _, hyp := range hypotheses {
		if strings.HasSuffix(hyp, " .") {
			count++
		}
	}
	if count >= tokenizedPeriodThreshold {
		a.logger.Warn("hypotheses look tokenized; detokenize the test data or the score may suffer",
			"lines_ending_in_tokenized_period", count,
		)
	}
}
