package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"

	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/resilience"
	"github.com/ansonxing23/mt-evaluation/pkg/tracing"
)

// MetricScore is the corpus score of one metric.
type MetricScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	// Detail is the metric's own rendering when it has one, e.g. the BLEU
	// precisions and brevity penalty.
	Detail string `json:"detail,omitempty"`
}

// Row holds the sentence scores of one corpus position. Scores follow the
// order of Report.Metrics.
type Row struct {
	Index      int       `json:"index"`
	Reference  string    `json:"reference"`
	Hypothesis string    `json:"hypothesis"`
	Scores     []float64 `json:"scores"`
}

// Report is the outcome of one evaluation.
type Report struct {
	JobID     string        `json:"job_id,omitempty"`
	Language  string        `json:"language"`
	Metrics   []MetricScore `json:"metrics"`
	Rows      []Row         `json:"rows"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Score returns the corpus score of the named metric.
func (r *Report) Score(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Score, true
		}
	}
	return 0, false
}

// ProgressFunc is told how many rows are done. Calls are serialized and done
// only grows.
type ProgressFunc func(done, total int)

type formatter interface {
	Format() string
}

// Evaluator scores corpora on a shared worker pool.
type Evaluator struct {
	pool            *ants.Pool
	sentenceTimeout time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSentenceTimeout bounds the scoring of each row.
func WithSentenceTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.sentenceTimeout = d }
}

// WithMetrics records scoring latency and segment counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// New creates an Evaluator whose pool runs at most workers rows at once.
func New(workers int, opts ...Option) (*Evaluator, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create evaluation pool: %w", err)
	}
	e := &Evaluator{
		pool:   pool,
		logger: slog.Default().With("component", "evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Release stops the worker pool.
func (e *Evaluator) Release() {
	e.pool.Release()
}

// Evaluate scores hyps against the aligned reference documents with every
// metric of suite. It fails if any metric fails on any row; all failures
// are reported together.
func (e *Evaluator) Evaluate(ctx context.Context, suite *Suite, hyps []string, refs [][]string, progress ProgressFunc) (*Report, error) {
	if err := metric.CheckCorpusArgs(hyps, refs); err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "evaluate")
	span.SetAttr("language", suite.Language.Code)
	span.SetAttr("sentences", len(hyps))
	log := logger.FromContext(ctx).With("component", "evaluator")

	report := &Report{
		Language:  suite.Language.Code,
		CreatedAt: start.UTC(),
	}

	var errs *multierror.Error
	for _, sc := range suite.Scorers() {
		ms, err := e.corpusScore(ctx, sc, hyps, refs)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		report.Metrics = append(report.Metrics, ms)
	}

	rows, err := e.rows(ctx, suite, hyps, refs, progress)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	report.Rows = rows
	report.Duration = time.Since(start)

	if err := errs.ErrorOrNil(); err != nil {
		span.EndWithError(err)
		log.Error("evaluation failed", "error", err, "duration_ms", report.Duration.Milliseconds())
		return nil, err
	}
	span.End()
	if e.metrics != nil {
		e.metrics.EvaluationDuration.Observe(report.Duration.Seconds())
	}
	log.Info("evaluation completed",
		"language", report.Language,
		"sentences", len(hyps),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (e *Evaluator) corpusScore(ctx context.Context, sc metric.Scorer, hyps []string, refs [][]string) (MetricScore, error) {
	ctx, span := tracing.StartChildSpan(ctx, sc.Name())
	start := time.Now()
	score, err := sc.CorpusScore(ctx, hyps, refs)
	e.observe(sc.Name(), "corpus", len(hyps), time.Since(start), err)
	if err != nil {
		span.EndWithError(err)
		return MetricScore{Name: sc.Name()}, err
	}
	span.SetAttr("score", score.Value())
	span.End()

	ms := MetricScore{Name: sc.Name(), Score: score.Value()}
	if f, ok := score.(formatter); ok {
		ms.Detail = f.Format()
	}
	return ms, nil
}

func (e *Evaluator) observe(name, level string, segments int, elapsed time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.ScoringRequestsTotal.WithLabelValues(name, level, result).Inc()
	e.metrics.ScoringLatency.WithLabelValues(name, level).Observe(elapsed.Seconds())
	if err == nil {
		e.metrics.SegmentsScoredTotal.WithLabelValues(name).Add(float64(segments))
	}
}

func (e *Evaluator) rows(ctx context.Context, suite *Suite, hyps []string, refs [][]string, progress ProgressFunc) ([]Row, error) {
	positions := metric.ByPosition(refs)
	rows := make([]Row, len(hyps))
	rowErrs := make([]error, len(hyps))

	var (
		wg     sync.WaitGroup
		progMu sync.Mutex
		done   int
	)
	for i, hyp := range hyps {
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			rows[i], rowErrs[i] = e.row(ctx, suite, i, hyp, positions[i])
			if progress != nil {
				progMu.Lock()
				done++
				progress(done, len(hyps))
				progMu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			rowErrs[i] = fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	wg.Wait()

	var errs *multierror.Error
	for _, err := range rowErrs {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return rows, errs.ErrorOrNil()
}

func (e *Evaluator) row(ctx context.Context, suite *Suite, i int, hyp string, refs []string) (Row, error) {
	row := Row{
		Index:      i + 1,
		Reference:  firstReference(refs),
		Hypothesis: hyp,
	}
	if err := ctx.Err(); err != nil {
		return row, fmt.Errorf("row %d: %w", row.Index, err)
	}
	// scores is only read once fn has returned without a timeout.
	scores := make([]float64, len(suite.Scorers()))
	err := resilience.WithTimeout(ctx, e.sentenceTimeout, "sentence scoring", func(ctx context.Context) error {
		for j, sc := range suite.Scorers() {
			start := time.Now()
			score, err := sc.SentenceScore(ctx, hyp, refs)
			e.observe(sc.Name(), "sentence", 1, time.Since(start), err)
			if err != nil {
				return err
			}
			scores[j] = score.Value()
		}
		return nil
	})
	if err != nil {
		return row, fmt.Errorf("row %d: %w", row.Index, err)
	}
	row.Scores = scores
	return row, nil
}

func firstReference(refs []string) string {
	for _, r := range refs {
		if r != "" {
			return r
		}
	}
	return ""
}
