package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/language"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
)

// RecordSaver stores job records. *report.Store implements it.
type RecordSaver interface {
	Save(ctx context.Context, rec report.Record) error
}

// Submitter validates evaluation requests and queues them on Kafka.
type Submitter struct {
	producer kafka.Publisher
	records  RecordSaver
	logger   *slog.Logger
}

// NewSubmitter creates a Submitter. records may be nil, in which case queued
// jobs are not visible until they finish.
func NewSubmitter(producer kafka.Publisher, records RecordSaver) *Submitter {
	return &Submitter{
		producer: producer,
		records:  records,
		logger:   slog.Default().With("component", "job-submitter"),
	}
}

// Submit validates req, records it as queued and publishes it.
func (s *Submitter) Submit(ctx context.Context, req *Request, requestID string) (*SubmitResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	lang, err := language.Resolve(req.Language)
	if err != nil {
		return nil, err
	}

	job := Job{
		ID:          newJobID(),
		Request:     *req,
		RequestID:   requestID,
		SubmittedAt: time.Now().UTC(),
	}
	job.Request.Language = lang.Code

	if s.records != nil {
		if err := s.records.Save(ctx, report.Record{
			JobID:     job.ID,
			Language:  lang.Code,
			Status:    report.StatusQueued,
			CreatedAt: job.SubmittedAt,
		}); err != nil {
			return nil, fmt.Errorf("recording job: %w", err)
		}
	}

	if err := s.producer.Publish(ctx, kafka.Event{Key: job.ID, Value: job}); err != nil {
		return nil, fmt.Errorf("queueing job %s: %w", job.ID, err)
	}
	s.logger.Info("evaluation job queued",
		"job_id", job.ID,
		"language", lang.Code,
		"inline", req.Inline(),
		"sentences", len(req.Hypotheses),
	)
	return &SubmitResponse{JobID: job.ID, Status: report.StatusQueued}, nil
}

func newJobID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
