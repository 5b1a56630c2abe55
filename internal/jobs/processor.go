package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/analytics"
	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/resilience"
	"github.com/ansonxing23/mt-evaluation/pkg/storage"
	"github.com/ansonxing23/mt-evaluation/pkg/tracing"
)

// SuiteProvider returns the metric suite of a language.
// *evaluator.Suites implements it.
type SuiteProvider interface {
	For(lang string) (*evaluator.Suite, error)
}

// ObjectStore reads corpora and writes CSV reports. *storage.Store
// implements it.
type ObjectStore interface {
	GetURI(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// EventTracker buffers analytics events. *collector.BatchCollector
// implements it.
type EventTracker interface {
	Track(key string, value any)
}

// Processor runs evaluation jobs taken from Kafka.
type Processor struct {
	suites       SuiteProvider
	evaluator    *evaluator.Evaluator
	objects      ObjectStore
	records      RecordSaver
	results      kafka.Publisher
	events       EventTracker
	metrics      *metrics.Metrics
	jobTimeout   time.Duration
	reportPrefix string
	retry        resilience.RetryConfig
	logger       *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithObjectStore enables s3:// corpora and CSV report upload.
func WithObjectStore(s ObjectStore, reportPrefix string) ProcessorOption {
	return func(p *Processor) {
		p.objects = s
		p.reportPrefix = reportPrefix
	}
}

// WithRecords stores each finished job.
func WithRecords(r RecordSaver) ProcessorOption {
	return func(p *Processor) { p.records = r }
}

// WithResults publishes a Result per finished job.
func WithResults(pub kafka.Publisher) ProcessorOption {
	return func(p *Processor) { p.results = pub }
}

// WithEvents tracks an analytics event per finished job.
func WithEvents(t EventTracker) ProcessorOption {
	return func(p *Processor) { p.events = t }
}

// WithJobMetrics counts jobs by status.
func WithJobMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithJobTimeout bounds each job.
func WithJobTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.jobTimeout = d }
}

// WithLoadRetry sets how corpus downloads are retried.
func WithLoadRetry(cfg resilience.RetryConfig) ProcessorOption {
	return func(p *Processor) { p.retry = cfg }
}

func NewProcessor(suites SuiteProvider, eval *evaluator.Evaluator, opts ...ProcessorOption) *Processor {
	p := &Processor{
		suites:    suites,
		evaluator: eval,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     20 * time.Second,
		},
		logger: slog.Default().With("component", "job-processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry.Retryable = func(err error) bool {
		return !errors.Is(err, storage.ErrNotFound)
	}
	return p
}

// Handle returns the Kafka handler of the evaluation jobs topic. Messages
// that cannot be decoded are logged and skipped.
func (p *Processor) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		job, err := kafka.DecodeJSON[Job](value)
		if err != nil {
			p.logger.Error("failed to decode evaluation job", "error", err, "key", string(key))
			return nil
		}
		_, err = p.Process(ctx, job)
		return err
	}
}

// Process runs job to completion. A failed evaluation is reported in the
// Result; the error is only set when the outcome could not be recorded.
func (p *Processor) Process(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	ctx = logger.WithJobID(ctx, job.ID)
	if job.RequestID != "" {
		ctx = logger.WithRequestID(ctx, job.RequestID)
	}
	log := logger.FromContext(ctx).With("component", "job-processor")
	ctx, span := tracing.StartSpan(ctx, "evaluation-job", job.ID)

	runCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	log.Info("evaluation job started", "language", job.Request.Language)
	rep, csvURI, err := p.run(runCtx, job, log)

	result := &Result{
		JobID:      job.ID,
		Language:   job.Request.Language,
		DurationMs: time.Since(start).Milliseconds(),
		FinishedAt: time.Now().UTC(),
		CSVURI:     csvURI,
	}
	rec := report.Record{
		JobID:    job.ID,
		Language: job.Request.Language,
		CSVURI:   csvURI,
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
		}
		result.Status = report.StatusFailed
		result.Error = err.Error()
		rec.Status = report.StatusFailed
		rec.Error = err.Error()
		span.EndWithError(err)
		log.Error("evaluation job failed", "error", err, "duration_ms", result.DurationMs)
	} else {
		result.Status = report.StatusCompleted
		result.Sentences = len(rep.Rows)
		result.Scores = make(map[string]float64, len(rep.Metrics))
		for _, m := range rep.Metrics {
			result.Scores[m.Name] = m.Score
		}
		rec.Status = report.StatusCompleted
		rec.Report = rep
		rec.Language = rep.Language
		span.End()
		log.Info("evaluation job completed",
			"sentences", result.Sentences,
			"duration_ms", result.DurationMs,
			"csv_uri", csvURI,
		)
	}
	span.Log(log)

	if p.metrics != nil {
		p.metrics.EvaluationJobsTotal.WithLabelValues(result.Status).Inc()
	}
	if p.events != nil {
		p.events.Track(job.ID, analytics.EvaluationEvent{
			Type:       analytics.EventEvaluation,
			JobID:      job.ID,
			Language:   result.Language,
			Status:     result.Status,
			Sentences:  result.Sentences,
			DurationMs: result.DurationMs,
			Scores:     result.Scores,
			Timestamp:  result.FinishedAt,
		})
	}

	// the job deadline must not stop the outcome from being recorded
	saveCtx := context.WithoutCancel(ctx)
	if p.records != nil {
		if err := p.records.Save(saveCtx, rec); err != nil {
			return result, fmt.Errorf("recording job %s: %w", job.ID, err)
		}
	}
	if p.results != nil {
		if err := p.results.Publish(saveCtx, kafka.Event{Key: job.ID, Value: result}); err != nil {
			log.Error("failed to publish job result", "error", err)
		}
	}
	return result, nil
}

func (p *Processor) run(ctx context.Context, job Job, log *slog.Logger) (*evaluator.Report, string, error) {
	suite, err := p.suites.For(job.Request.Language)
	if err != nil {
		return nil, "", err
	}
	hyps, refs, err := p.load(ctx, job.Request)
	if err != nil {
		return nil, "", err
	}

	rep, err := p.evaluator.Evaluate(ctx, suite, hyps, refs, progressLogger(log))
	if err != nil {
		return nil, "", err
	}
	rep.JobID = job.ID

	if p.objects == nil {
		return rep, "", nil
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rep); err != nil {
		return nil, "", err
	}
	key := path.Join(p.reportPrefix, job.ID, report.FileName(rep.CreatedAt))
	uri, err := p.objects.Put(ctx, key, &buf, "text/csv")
	if err != nil {
		// the report itself is still stored
		log.Error("report upload failed", "error", err)
		return rep, "", nil
	}
	return rep, uri, nil
}

func (p *Processor) load(ctx context.Context, req Request) ([]string, [][]string, error) {
	if req.Inline() {
		return req.Hypotheses, req.References, nil
	}
	if p.objects == nil {
		return nil, nil, fmt.Errorf("%w: object storage is not configured", apperrors.ErrInvalidInput)
	}

	hyps, err := p.loadLines(ctx, req.HypothesesURI)
	if err != nil {
		return nil, nil, err
	}
	refs := make([][]string, len(req.ReferencesURIs))
	for i, uri := range req.ReferencesURIs {
		if refs[i], err = p.loadLines(ctx, uri); err != nil {
			return nil, nil, err
		}
	}
	return hyps, refs, nil
}

func (p *Processor) loadLines(ctx context.Context, uri string) ([]string, error) {
	var data []byte
	err := resilience.Retry(ctx, "load "+uri, p.retry, func() error {
		var err error
		data, err = p.objects.GetURI(ctx, uri)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", uri, err)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits a corpus file into sentences. A trailing newline does not
// start an extra empty sentence, and CRLF endings are accepted.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// progressLogger logs every tenth of the corpus.
func progressLogger(log *slog.Logger) evaluator.ProgressFunc {
	return func(done, total int) {
		if done == total || done*10/total != (done-1)*10/total {
			log.Info("progress", "done", done, "total", total, "percent", float64(done)/float64(total)*100)
		}
	}
}
