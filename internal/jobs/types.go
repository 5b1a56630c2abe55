// Package jobs defines evaluation jobs: the request accepted by the scoring
// service, its validation and submission to Kafka, and the worker side that
// runs a job and publishes its result.
package jobs

import "time"

// Request is the body of an evaluation submission. Corpora are given either
// inline or as s3:// URIs of newline separated files, one sentence per line.
type Request struct {
	Language       string     `json:"language"`
	Hypotheses     []string   `json:"hypotheses,omitempty"`
	References     [][]string `json:"references,omitempty"`
	HypothesesURI  string     `json:"hypotheses_uri,omitempty"`
	ReferencesURIs []string   `json:"references_uris,omitempty"`
}

// Inline reports whether the corpora are carried in the request.
func (r *Request) Inline() bool {
	return r.HypothesesURI == "" && len(r.ReferencesURIs) == 0
}

// Job is the Kafka message of a queued evaluation.
type Job struct {
	ID          string    `json:"id"`
	Request     Request   `json:"request"`
	RequestID   string    `json:"request_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Result is published once a job has finished.
type Result struct {
	JobID      string             `json:"job_id"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Language   string             `json:"language"`
	Sentences  int                `json:"sentences"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	CSVURI     string             `json:"csv_uri,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	FinishedAt time.Time          `json:"finished_at"`
}
