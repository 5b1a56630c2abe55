// Package metric holds the scoring contract shared by every engine: the Score
// and Scorer interfaces, corpus argument validation, and the generic
// Aggregator that turns per-segment sufficient statistics into a corpus score.
package metric

import (
	"context"
	"fmt"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// Score is the result of a scoring call.
type Score interface {
	// Value returns the headline number of the score.
	Value() float64
}

// Scalar is a Score with no auxiliary fields. NIST and METEOR return it.
type Scalar struct {
	Score float64 `json:"score"`
}

func (s Scalar) Value() float64 { return s.Score }

// Engine is implemented by each metric with its concrete score type.
type Engine[S Score] interface {
	SentenceScore(ctx context.Context, hypothesis string, references []string) (S, error)
	CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (S, error)
}

// Scorer is the type-erased surface the services program against.
type Scorer interface {
	Name() string
	SentenceScore(ctx context.Context, hypothesis string, references []string) (Score, error)
	CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (Score, error)
	SingleSentenceScore(ctx context.Context, hypothesis, reference string) (Score, error)
	SingleCorpusScore(ctx context.Context, hypotheses, references []string) (Score, error)
}

type scorer[S Score] struct {
	name   string
	engine Engine[S]
}

// NewScorer wraps an engine as a named Scorer.
func NewScorer[S Score](name string, engine Engine[S]) Scorer {
	return &scorer[S]{name: name, engine: engine}
}

func (s *scorer[S]) Name() string { return s.name }

func (s *scorer[S]) SentenceScore(ctx context.Context, hypothesis string, references []string) (Score, error) {
	score, err := s.engine.SentenceScore(ctx, hypothesis, references)
	if err != nil {
		return nil, fmt.Errorf("%s sentence score: %w", s.name, err)
	}
	return score, nil
}

func (s *scorer[S]) CorpusScore(ctx context.Context, hypotheses []string, references [][]string) (Score, error) {
	score, err := s.engine.CorpusScore(ctx, hypotheses, references)
	if err != nil {
		return nil, fmt.Errorf("%s corpus score: %w", s.name, err)
	}
	return score, nil
}

func (s *scorer[S]) SingleSentenceScore(ctx context.Context, hypothesis, reference string) (Score, error) {
	return s.SentenceScore(ctx, hypothesis, []string{reference})
}

func (s *scorer[S]) SingleCorpusScore(ctx context.Context, hypotheses, references []string) (Score, error) {
	return s.CorpusScore(ctx, hypotheses, [][]string{references})
}

// SentenceDocuments turns the references of one sentence into one-element
// reference documents, the layout CorpusScore expects.
func SentenceDocuments(references []string) [][]string {
	docs := make([][]string, len(references))
	for i, ref := range references {
		docs[i] = []string{ref}
	}
	return docs
}

// CheckCorpusArgs verifies that every reference document is aligned with the
// hypotheses.
func CheckCorpusArgs(hypotheses []string, references [][]string) error {
	if len(hypotheses) == 0 {
		return fmt.Errorf("%w: no hypotheses", apperrors.ErrInvalidInput)
	}
	for j, doc := range references {
		if len(doc) != len(hypotheses) {
			return fmt.Errorf("%w: reference document %d has %d segments, want %d",
				apperrors.ErrCountMismatch, j, len(doc), len(hypotheses))
		}
	}
	return nil
}

// ByPosition transposes reference documents into the list of references of
// each sentence position. Documents are assumed aligned.
func ByPosition(references [][]string) [][]string {
	if len(references) == 0 {
		return nil
	}
	out := make([][]string, len(references[0]))
	for i := range out {
		refs := make([]string, len(references))
		for j, doc := range references {
			refs[j] = doc[i]
		}
		out[i] = refs
	}
	return out
}

// SumStats adds per-segment statistic vectors elementwise.
func SumStats(stats [][]float64) []float64 {
	if len(stats) == 0 {
		return nil
	}
	total := make([]float64, len(stats[0]))
	for _, s := range stats {
		for i := range total {
			total[i] += s[i]
		}
	}
	return total
}
