// Package handler serves the scoring API: sentence and corpus scoring,
// evaluation job submission and lookup, and the score cache endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/analytics"
	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/jobs"
	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/internal/scorer/cache"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/middleware"
)

const (
	levelSentence = "sentence"
	levelCorpus   = "corpus"

	maxBodyBytes = 8 << 20
)

type SuiteProvider interface {
	For(lang string) (*evaluator.Suite, error)
}

type JobSubmitter interface {
	Submit(ctx context.Context, req *jobs.Request, requestID string) (*jobs.SubmitResponse, error)
}

type ReportReader interface {
	Get(ctx context.Context, jobID string) (*report.Record, error)
	List(ctx context.Context, limit int) ([]report.Summary, error)
}

// EventTracker takes analytics events. *analytics.Collector implements it.
type EventTracker interface {
	Track(event any)
}

// SentenceRequest is the body of POST /api/v1/score/sentence.
type SentenceRequest struct {
	Metric     string   `json:"metric"`
	Language   string   `json:"language,omitempty"`
	Hypothesis string   `json:"hypothesis"`
	References []string `json:"references"`
}

// CorpusRequest is the body of POST /api/v1/score/corpus. References holds
// one document per reference set, each aligned with Hypotheses.
type CorpusRequest struct {
	Metric     string     `json:"metric"`
	Language   string     `json:"language,omitempty"`
	Hypotheses []string   `json:"hypotheses"`
	References [][]string `json:"references"`
}

// ScoreResponse is returned by both scoring endpoints.
type ScoreResponse struct {
	Metric    string          `json:"metric"`
	Language  string          `json:"language"`
	Level     string          `json:"level"`
	Score     float64         `json:"score"`
	Details   json.RawMessage `json:"details,omitempty"`
	CacheHit  bool            `json:"cache_hit"`
	LatencyMs int64           `json:"latency_ms"`
}

type Handler struct {
	suites    SuiteProvider
	cache     *cache.ScoreCache
	submitter JobSubmitter
	reports   ReportReader
	events    EventTracker
	metrics   *metrics.Metrics
	analytics *httputil.ReverseProxy
	logger    *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.ScoreCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithJobs(s JobSubmitter, r ReportReader) Option {
	return func(h *Handler) {
		h.submitter = s
		h.reports = r
	}
}

func WithEvents(t EventTracker) Option {
	return func(h *Handler) { h.events = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAnalyticsURL forwards /api/v1/analytics to the analytics service.
func WithAnalyticsURL(target string) Option {
	return func(h *Handler) {
		u, err := url.Parse(target)
		if err != nil || u.Host == "" {
			h.logger.Warn("analytics proxy disabled", "url", target, "error", err)
			return
		}
		h.analytics = httputil.NewSingleHostReverseProxy(u)
	}
}

func New(suites SuiteProvider, opts ...Option) *Handler {
	h := &Handler{
		suites: suites,
		logger: slog.Default().With("component", "scoring-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ScoreSentence scores one hypothesis against its references.
func (h *Handler) ScoreSentence(w http.ResponseWriter, r *http.Request) {
	var req SentenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	creq := cache.Request{
		Metric:     req.Metric,
		Language:   req.Language,
		Level:      levelSentence,
		Hypotheses: []string{req.Hypothesis},
		References: metric.SentenceDocuments(req.References),
	}
	h.score(w, r, creq, func(ctx context.Context, sc metric.Scorer) (metric.Score, error) {
		return sc.SentenceScore(ctx, req.Hypothesis, req.References)
	})
}

// ScoreCorpus scores a corpus against one or more reference documents.
func (h *Handler) ScoreCorpus(w http.ResponseWriter, r *http.Request) {
	var req CorpusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Hypotheses) == 0 {
		h.writeError(w, http.StatusBadRequest, "hypotheses are required")
		return
	}
	creq := cache.Request{
		Metric:     req.Metric,
		Language:   req.Language,
		Level:      levelCorpus,
		Hypotheses: req.Hypotheses,
		References: req.References,
	}
	h.score(w, r, creq, func(ctx context.Context, sc metric.Scorer) (metric.Score, error) {
		return sc.CorpusScore(ctx, req.Hypotheses, req.References)
	})
}

type scoreFunc func(ctx context.Context, sc metric.Scorer) (metric.Score, error)

func (h *Handler) score(w http.ResponseWriter, r *http.Request, req cache.Request, fn scoreFunc) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if req.Metric == "" {
		h.writeError(w, http.StatusBadRequest, "metric is required")
		return
	}
	suite, err := h.suites.For(req.Language)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	sc, err := suite.Scorer(req.Metric)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	req.Metric = sc.Name()
	req.Language = suite.Language.Code

	compute := func() (*cache.Result, error) {
		score, err := fn(ctx, sc)
		if err != nil {
			return nil, err
		}
		details, err := json.Marshal(score)
		if err != nil {
			return nil, fmt.Errorf("encoding %s score: %w", req.Metric, err)
		}
		return &cache.Result{
			Metric:   req.Metric,
			Language: req.Language,
			Level:    req.Level,
			Score:    score.Value(),
			Details:  details,
		}, nil
	}

	var (
		result   *cache.Result
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, compute)
	} else {
		result, err = compute()
	}
	elapsed := time.Since(start)
	h.observe(req, elapsed, cacheHit, err)
	h.track(ctx, req, result, elapsed, cacheHit, err)

	if err != nil {
		if apperrors.IsInputError(err) {
			log.Info("scoring rejected", "metric", req.Metric, "level", req.Level, "error", err)
		} else {
			log.Error("scoring failed", "metric", req.Metric, "level", req.Level, "error", err)
		}
		h.writeErr(w, err)
		return
	}

	log.Info("scoring completed",
		"metric", req.Metric,
		"language", req.Language,
		"level", req.Level,
		"segments", len(req.Hypotheses),
		"score", result.Score,
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, ScoreResponse{
		Metric:    result.Metric,
		Language:  result.Language,
		Level:     result.Level,
		Score:     result.Score,
		Details:   result.Details,
		CacheHit:  cacheHit,
		LatencyMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) observe(req cache.Request, elapsed time.Duration, cacheHit bool, err error) {
	if h.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case cacheHit:
		result = "cached"
	}
	h.metrics.ScoringRequestsTotal.WithLabelValues(req.Metric, req.Level, result).Inc()
	h.metrics.ScoringLatency.WithLabelValues(req.Metric, req.Level).Observe(elapsed.Seconds())
	if err == nil && !cacheHit {
		h.metrics.SegmentsScoredTotal.WithLabelValues(req.Metric).Add(float64(len(req.Hypotheses)))
	}
}

func (h *Handler) track(ctx context.Context, req cache.Request, result *cache.Result, elapsed time.Duration, cacheHit bool, err error) {
	if h.events == nil {
		return
	}
	ev := analytics.ScoringEvent{
		Type:      analytics.EventScore,
		Metric:    req.Metric,
		Language:  req.Language,
		Level:     req.Level,
		Segments:  len(req.Hypotheses),
		LatencyMs: elapsed.Milliseconds(),
		CacheHit:  cacheHit,
		Failed:    err != nil,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if result != nil {
		ev.Score = result.Score
	}
	h.events.Track(ev)
}

// SubmitEvaluation queues an evaluation job and answers 202 with its ID.
func (h *Handler) SubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		h.writeError(w, http.StatusServiceUnavailable, "evaluation jobs are disabled")
		return
	}
	var req jobs.Request
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.submitter.Submit(r.Context(), &req, middleware.GetRequestID(r.Context()))
	var verr *jobs.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("job submission failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to queue evaluation job")
		return
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

// GetEvaluation returns the stored record of a job.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.writeError(w, http.StatusServiceUnavailable, "evaluation jobs are disabled")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	rec, err := h.reports.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrJobNotFound) {
			h.logger.Error("failed to fetch evaluation", "job_id", id, "error", err)
		}
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListEvaluations returns the newest jobs first.
func (h *Handler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.writeError(w, http.StatusServiceUnavailable, "evaluation jobs are disabled")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	list, err := h.reports.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list evaluations", "error", err)
		h.writeErr(w, err)
		return
	}
	if list == nil {
		list = []report.Summary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": list,
		"count":       len(list),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// ProxyAnalytics forwards analytics requests to the analytics service.
func (h *Handler) ProxyAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics is not configured")
		return
	}
	h.analytics.ServeHTTP(w, r)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.writeError(w, status, msg)
}
