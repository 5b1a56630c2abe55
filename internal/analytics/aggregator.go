package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
)

// maxLatencies bounds the latency window percentiles are computed over.
const maxLatencies = 10000

type AggregatedStats struct {
	TotalRequests        int64                  `json:"total_requests"`
	TotalSegments        int64                  `json:"total_segments"`
	FailedRequests       int64                  `json:"failed_requests"`
	CacheHits            int64                  `json:"cache_hits"`
	CacheMisses          int64                  `json:"cache_misses"`
	EvaluationsCompleted int64                  `json:"evaluations_completed"`
	EvaluationsFailed    int64                  `json:"evaluations_failed"`
	AvgLatencyMs         float64                `json:"avg_latency_ms"`
	P50LatencyMs         int64                  `json:"p50_latency_ms"`
	P95LatencyMs         int64                  `json:"p95_latency_ms"`
	P99LatencyMs         int64                  `json:"p99_latency_ms"`
	Metrics              map[string]MetricStats `json:"metrics"`
	TopLanguages         []LanguageCount        `json:"top_languages"`
	RequestsPerMinute    float64                `json:"requests_per_minute"`
}

// MetricStats are the totals of one metric.
type MetricStats struct {
	Requests  int64   `json:"requests"`
	Segments  int64   `json:"segments"`
	Failures  int64   `json:"failures"`
	MeanScore float64 `json:"mean_score"`
}

type LanguageCount struct {
	Language string `json:"language"`
	Count    int64  `json:"count"`
}

type metricTotals struct {
	requests, segments, failures int64
	scoreSum                     float64
	scored                       int64
}

type Aggregator struct {
	mu             sync.RWMutex
	totalRequests  atomic.Int64
	totalSegments  atomic.Int64
	failed         atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	evalsCompleted atomic.Int64
	evalsFailed    atomic.Int64
	latencies      []int64
	next           int
	metrics        map[string]*metricTotals
	languages      map[string]int64
	startTime      time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies: make([]int64, 0, 1024),
		metrics:   make(map[string]*metricTotals),
		languages: make(map[string]int64),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes scoring and evaluation events into agg. Undecodable
// messages are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var envelope struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}

		switch envelope.Type {
		case EventScore:
			event, err := kafka.DecodeJSON[ScoringEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode scoring event", "error", err)
				return nil
			}
			agg.RecordScoring(event)
		case EventEvaluation:
			event, err := kafka.DecodeJSON[EvaluationEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode evaluation event", "error", err)
				return nil
			}
			agg.RecordEvaluation(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordScoring(event ScoringEvent) {
	a.totalRequests.Add(1)
	a.totalSegments.Add(int64(event.Segments))
	if event.Failed {
		a.failed.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencies {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencies
	}

	m := a.metricLocked(event.Metric)
	m.requests++
	m.segments += int64(event.Segments)
	if event.Failed {
		m.failures++
	} else {
		m.scoreSum += event.Score
		m.scored++
	}
	if event.Language != "" {
		a.languages[event.Language]++
	}
}

func (a *Aggregator) RecordEvaluation(event EvaluationEvent) {
	if event.Status == "completed" {
		a.evalsCompleted.Add(1)
	} else {
		a.evalsFailed.Add(1)
	}
	a.totalSegments.Add(int64(event.Sentences))
	if event.Language != "" {
		a.mu.Lock()
		a.languages[event.Language]++
		a.mu.Unlock()
	}
}

// Restore seeds the totals from an earlier snapshot. Latency percentiles
// start over.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.totalRequests.Add(stats.TotalRequests)
	a.totalSegments.Add(stats.TotalSegments)
	a.failed.Add(stats.FailedRequests)
	a.cacheHits.Add(stats.CacheHits)
	a.cacheMisses.Add(stats.CacheMisses)
	a.evalsCompleted.Add(stats.EvaluationsCompleted)
	a.evalsFailed.Add(stats.EvaluationsFailed)

	a.mu.Lock()
	defer a.mu.Unlock()
	for name, ms := range stats.Metrics {
		m := a.metricLocked(name)
		m.requests += ms.Requests
		m.segments += ms.Segments
		m.failures += ms.Failures
		scored := ms.Requests - ms.Failures
		m.scored += scored
		m.scoreSum += ms.MeanScore * float64(scored)
	}
	for _, lc := range stats.TopLanguages {
		a.languages[lc.Language] += lc.Count
	}
}

func (a *Aggregator) metricLocked(name string) *metricTotals {
	m, ok := a.metrics[name]
	if !ok {
		m = &metricTotals{}
		a.metrics[name] = m
	}
	return m
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests:        a.totalRequests.Load(),
		TotalSegments:        a.totalSegments.Load(),
		FailedRequests:       a.failed.Load(),
		CacheHits:            a.cacheHits.Load(),
		CacheMisses:          a.cacheMisses.Load(),
		EvaluationsCompleted: a.evalsCompleted.Load(),
		EvaluationsFailed:    a.evalsFailed.Load(),
		Metrics:              make(map[string]MetricStats, len(a.metrics)),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	for name, m := range a.metrics {
		ms := MetricStats{Requests: m.requests, Segments: m.segments, Failures: m.failures}
		if m.scored > 0 {
			ms.MeanScore = m.scoreSum / float64(m.scored)
		}
		stats.Metrics[name] = ms
	}
	stats.TopLanguages = topN(a.languages, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []LanguageCount {
	result := make([]LanguageCount, 0, len(counts))
	for lang, count := range counts {
		result = append(result, LanguageCount{Language: lang, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Language < result[j].Language
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
