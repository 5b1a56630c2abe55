package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
	"github.com/ansonxing23/mt-evaluation/pkg/postgres"
)

// Job statuses stored with a report.
const (
	StatusQueued    = "queued"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `CREATE TABLE IF NOT EXISTS evaluation_reports (
	job_id     TEXT PRIMARY KEY,
	language   TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	report     JSONB,
	csv_uri    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createdIndex = `CREATE INDEX IF NOT EXISTS evaluation_reports_created_at_idx
	ON evaluation_reports (created_at DESC)`

// Record is the stored outcome of one evaluation job. Report is nil when the
// job failed.
type Record struct {
	JobID     string            `json:"job_id"`
	Language  string            `json:"language"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Report    *evaluator.Report `json:"report,omitempty"`
	CSVURI    string            `json:"csv_uri,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Summary is a Record without its per-sentence rows.
type Summary struct {
	JobID     string                  `json:"job_id"`
	Language  string                  `json:"language"`
	Status    string                  `json:"status"`
	Metrics   []evaluator.MetricScore `json:"metrics,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// Store keeps evaluation records in the evaluation_reports table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a report store backed by PostgreSQL.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "report-store"),
	}
}

// Migrate creates the table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, schema, createdIndex)
}

// Save inserts rec, replacing an earlier record of the same job.
func (s *Store) Save(ctx context.Context, rec Record) error {
	var body []byte
	if rec.Report != nil {
		var err error
		if body, err = json.Marshal(rec.Report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO evaluation_reports (job_id, language, status, error, report, csv_uri, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (job_id) DO UPDATE SET
		   language = EXCLUDED.language,
		   status = EXCLUDED.status,
		   error = EXCLUDED.error,
		   report = EXCLUDED.report,
		   csv_uri = EXCLUDED.csv_uri,
		   created_at = EXCLUDED.created_at`,
		rec.JobID, rec.Language, rec.Status, rec.Error, nullJSON(body), rec.CSVURI, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", rec.JobID, err)
	}
	s.logger.Info("report saved", "job_id", rec.JobID, "status", rec.Status)
	return nil
}

// Get returns the record of jobID, or ErrJobNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	var (
		rec  Record
		body []byte
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT job_id, language, status, error, report, csv_uri, created_at
		 FROM evaluation_reports WHERE job_id = $1`,
		jobID,
	).Scan(&rec.JobID, &rec.Language, &rec.Status, &rec.Error, &body, &rec.CSVURI, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %s: %w", jobID, err)
	}
	if len(body) > 0 {
		rec.Report = &evaluator.Report{}
		if err := json.Unmarshal(body, rec.Report); err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", jobID, err)
		}
	}
	return &rec, nil
}

// List returns the newest records first, at most limit of them.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT job_id, language, status, report->'metrics', created_at
		 FROM evaluation_reports ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			metrics []byte
		)
		if err := rows.Scan(&sum.JobID, &sum.Language, &sum.Status, &metrics, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &sum.Metrics); err != nil {
				return nil, fmt.Errorf("decoding metrics of %s: %w", sum.JobID, err)
			}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
