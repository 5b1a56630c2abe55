package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansonxing23/mt-evaluation/internal/analytics"
	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/pkg/config"
	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/resilience"
	"github.com/ansonxing23/mt-evaluation/pkg/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type fakeRecords struct {
	mu      sync.Mutex
	records []report.Record
}

func (r *fakeRecords) Save(_ context.Context, rec report.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]string
	gets    int
}

func (o *fakeObjects) GetURI(_ context.Context, uri string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gets++
	data, ok := o.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, uri)
	}
	return []byte(data), nil
}

func (o *fakeObjects) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	uri := "s3://reports/" + key
	o.objects[uri] = string(data)
	return uri, nil
}

type trackedEvents struct {
	mu     sync.Mutex
	events []any
}

func (t *trackedEvents) Track(_ string, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, v)
}

func TestValidate(t *testing.T) {
	ok := &Request{Language: "en", Hypotheses: []string{"a", "b"}, References: [][]string{{"a", "b"}}}
	assert.NoError(t, Validate(ok))
	assert.NoError(t, Validate(&Request{Language: "German", HypothesesURI: "s3://c/h.txt", ReferencesURIs: []string{"s3://c/r.txt"}}))

	cases := map[string]struct {
		req   Request
		field string
	}{
		"no language":  {Request{Hypotheses: []string{"a"}, References: [][]string{{"a"}}}, "language"},
		"bad language": {Request{Language: "Klingonese", Hypotheses: []string{"a"}, References: [][]string{{"a"}}}, "language"},
		"nothing":      {Request{Language: "en"}, "hypotheses"},
		"both forms":   {Request{Language: "en", Hypotheses: []string{"a"}, HypothesesURI: "s3://c/h"}, "request"},
		"no refs":      {Request{Language: "en", Hypotheses: []string{"a"}}, "references"},
		"misaligned":   {Request{Language: "en", Hypotheses: []string{"a"}, References: [][]string{{"a", "b"}}}, "references"},
		"bad hyp uri":  {Request{Language: "en", HypothesesURI: "http://c/h", ReferencesURIs: []string{"s3://c/r"}}, "hypotheses_uri"},
		"no ref uris":  {Request{Language: "en", HypothesesURI: "s3://c/h"}, "references_uris"},
		"bad ref uri":  {Request{Language: "en", HypothesesURI: "s3://c/h", ReferencesURIs: []string{"c/r"}}, "references_uris"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(&tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestSubmit(t *testing.T) {
	pub := &fakePublisher{}
	records := &fakeRecords{}
	s := NewSubmitter(pub, records)

	resp, err := s.Submit(context.Background(), &Request{
		Language:   "English",
		Hypotheses: []string{"the cat"},
		References: [][]string{{"the cat"}},
	}, "req-1")
	require.NoError(t, err)
	assert.Len(t, resp.JobID, 32)
	assert.Equal(t, report.StatusQueued, resp.Status)

	require.Len(t, pub.events, 1)
	job := pub.events[0].Value.(Job)
	assert.Equal(t, resp.JobID, pub.events[0].Key)
	assert.Equal(t, "en", job.Request.Language)
	assert.Equal(t, "req-1", job.RequestID)

	require.Len(t, records.records, 1)
	assert.Equal(t, report.StatusQueued, records.records[0].Status)

	_, err = s.Submit(context.Background(), &Request{Language: "en"}, "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	pub.err = errors.New("broker down")
	_, err = s.Submit(context.Background(), &Request{Language: "en", Hypotheses: []string{"a"}, References: [][]string{{"a"}}}, "")
	assert.Error(t, err)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\r\n\r\nb"))
	assert.Nil(t, SplitLines(""))
}

func newProcessor(t *testing.T, opts ...ProcessorOption) *Processor {
	t.Helper()
	eval, err := evaluator.New(2)
	require.NoError(t, err)
	t.Cleanup(eval.Release)
	return NewProcessor(evaluator.NewSuites(config.Default().Evaluation, nil), eval, opts...)
}

func TestProcessInlineJob(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{}}
	records := &fakeRecords{}
	results := &fakePublisher{}
	events := &trackedEvents{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	p := newProcessor(t,
		WithObjectStore(objects, "reports"),
		WithRecords(records),
		WithResults(results),
		WithEvents(events),
		WithJobMetrics(m),
		WithJobTimeout(time.Minute),
	)

	job := Job{ID: "job-1", Request: Request{
		Language:   "en",
		Hypotheses: []string{"the cat sat on the mat", "hello world"},
		References: [][]string{{"the cat sat on the mat", "hello world"}},
	}}
	value, err := encodeJob(job)
	require.NoError(t, err)
	require.NoError(t, p.Handle()(context.Background(), []byte(job.ID), value))

	require.Len(t, records.records, 1)
	rec := records.records[0]
	assert.Equal(t, report.StatusCompleted, rec.Status)
	require.NotNil(t, rec.Report)
	assert.Equal(t, "job-1", rec.Report.JobID)
	assert.True(t, strings.HasPrefix(rec.CSVURI, "s3://reports/reports/job-1/evaluate_result_"))
	assert.True(t, strings.HasPrefix(objects.objects[rec.CSVURI], "No.,Reference,Hypothesis,Bleu: 100"))

	require.Len(t, results.events, 1)
	result := results.events[0].Value.(*Result)
	assert.Equal(t, report.StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Sentences)
	assert.InDelta(t, 100.0, result.Scores["bleu"], 1e-9)

	require.Len(t, events.events, 1)
	assert.Equal(t, analytics.EventEvaluation, events.events[0].(analytics.EvaluationEvent).Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationJobsTotal.WithLabelValues("completed")))
}

func TestProcessS3Job(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{
		"s3://corpora/hyp.txt": "the cat sat\nhello there\n",
		"s3://corpora/ref.txt": "the cat sat\r\nhello there\r\n",
	}}
	records := &fakeRecords{}
	p := newProcessor(t, WithObjectStore(objects, ""), WithRecords(records))

	result, err := p.Process(context.Background(), Job{ID: "job-2", Request: Request{
		Language:       "en",
		HypothesesURI:  "s3://corpora/hyp.txt",
		ReferencesURIs: []string{"s3://corpora/ref.txt"},
	}})
	require.NoError(t, err)
	assert.Equal(t, report.StatusCompleted, result.Status, result.Error)
	assert.Equal(t, 2, result.Sentences)
	assert.InDelta(t, 0.0, result.Scores["ter"], 1e-9)
}

func TestProcessMissingObjectFailsWithoutRetry(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{}}
	records := &fakeRecords{}
	p := newProcessor(t,
		WithObjectStore(objects, ""),
		WithRecords(records),
		WithLoadRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}),
	)

	result, err := p.Process(context.Background(), Job{ID: "job-3", Request: Request{
		Language:       "en",
		HypothesesURI:  "s3://corpora/missing.txt",
		ReferencesURIs: []string{"s3://corpora/ref.txt"},
	}})
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "object not found")
	assert.Equal(t, 1, objects.gets)
	assert.Equal(t, report.StatusFailed, records.records[0].Status)
}

func TestProcessFailsOnEmptyReference(t *testing.T) {
	p := newProcessor(t)
	result, err := p.Process(context.Background(), Job{ID: "job-4", Request: Request{
		Language:   "en",
		Hypotheses: []string{"a"},
		References: [][]string{{""}},
	}})
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "empty reference")
}

func TestHandleSkipsUndecodableMessages(t *testing.T) {
	p := newProcessor(t)
	assert.NoError(t, p.Handle()(context.Background(), nil, []byte("{")))
}

func encodeJob(job Job) ([]byte, error) {
	return json.Marshal(job)
}
