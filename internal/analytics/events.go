// Package analytics tracks scoring activity. Services publish events to
// Kafka through a Collector; the analytics service consumes them into an
// Aggregator and serves the aggregated stats.
package analytics

import "time"

type EventType string

const (
	EventScore      EventType = "score"
	EventEvaluation EventType = "evaluation"
)

// ScoringEvent describes one sentence or corpus scoring request.
type ScoringEvent struct {
	Type      EventType `json:"type"`
	Metric    string    `json:"metric"`
	Language  string    `json:"language"`
	Level     string    `json:"level"`
	Segments  int       `json:"segments"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Score     float64   `json:"score"`
	Failed    bool      `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// EvaluationEvent describes one finished evaluation job.
type EvaluationEvent struct {
	Type       EventType          `json:"type"`
	JobID      string             `json:"job_id"`
	Language   string             `json:"language"`
	Status     string             `json:"status"`
	Sentences  int                `json:"sentences"`
	DurationMs int64              `json:"duration_ms"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}
