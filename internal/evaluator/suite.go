// Package evaluator builds the metric suite of a language and scores whole
// corpora with it, producing the corpus scores and per-sentence rows of an
// evaluation report.
package evaluator

import (
	"fmt"
	"sync"

	"github.com/ansonxing23/mt-evaluation/internal/language"
	"github.com/ansonxing23/mt-evaluation/internal/metric"
	"github.com/ansonxing23/mt-evaluation/internal/metric/bleu"
	"github.com/ansonxing23/mt-evaluation/internal/metric/meteor"
	"github.com/ansonxing23/mt-evaluation/internal/metric/nist"
	"github.com/ansonxing23/mt-evaluation/internal/metric/ter"
	"github.com/ansonxing23/mt-evaluation/internal/stemmer"
	"github.com/ansonxing23/mt-evaluation/internal/tokenizer"
	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	"github.com/ansonxing23/mt-evaluation/pkg/config"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// Metric names, in report column order.
const (
	MetricBLEU   = "bleu"
	MetricTER    = "ter"
	MetricNIST   = "nist"
	MetricMETEOR = "meteor"
)

// MetricNames lists every metric of a suite in report column order.
var MetricNames = []string{MetricBLEU, MetricTER, MetricNIST, MetricMETEOR}

// Suite holds the four engines configured for one language.
type Suite struct {
	Language language.Language
	scorers  []metric.Scorer
}

// NewSuite builds the engines for cfg.Language. wn may be nil, which turns
// off METEOR synonym matching.
func NewSuite(cfg config.EvaluationConfig, wn *wordnet.Database) (*Suite, error) {
	lang, err := language.Resolve(cfg.Language)
	if err != nil {
		return nil, err
	}
	asian := lang.IsAsian()

	tok, err := tokenizer.ForLanguage(lang)
	if err != nil {
		return nil, fmt.Errorf("tokenizer for %s: %w", lang, err)
	}
	b, err := bleu.New(bleu.Config{
		Lowercase:      cfg.BLEU.Lowercase,
		Tokenizer:      tok,
		SmoothMethod:   cfg.BLEU.SmoothMethod,
		SmoothValue:    cfg.BLEU.SmoothValue,
		MaxNgramOrder:  cfg.BLEU.MaxNgramOrder,
		EffectiveOrder: cfg.BLEU.EffectiveOrder,
		Concurrency:    cfg.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	t, err := ter.New(ter.Config{
		Normalized:    cfg.TER.Normalized,
		NoPunct:       cfg.TER.NoPunct,
		AsianSupport:  asian,
		CaseSensitive: cfg.TER.CaseSensitive,
		Concurrency:   cfg.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	n, err := nist.New(nist.Config{
		AsianSupport: asian,
		NGram:        cfg.NIST.NGram,
		Concurrency:  cfg.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	mcfg := meteor.Config{
		Stemmer:      stemmer.ForLanguage(lang),
		AsianSupport: splitsCharacters(lang),
		Lowercase:    cfg.METEOR.Lowercase,
		Alpha:        cfg.METEOR.Alpha,
		Beta:         cfg.METEOR.Beta,
		Gamma:        cfg.METEOR.Gamma,
		Concurrency:  cfg.Concurrency,
	}
	if wn != nil {
		mcfg.Wordnet = wn
	}
	m, err := meteor.New(mcfg)
	if err != nil {
		return nil, err
	}

	return &Suite{
		Language: lang,
		scorers: []metric.Scorer{
			metric.NewScorer(MetricBLEU, b),
			metric.NewScorer(MetricTER, t),
			metric.NewScorer(MetricNIST, n),
			metric.NewScorer(MetricMETEOR, m),
		},
	}, nil
}

// METEOR only splits characters for the CJK languages.
func splitsCharacters(lang language.Language) bool {
	switch lang.Code {
	case language.Chinese.Code, language.Japanese.Code, language.Korean.Code:
		return true
	}
	return false
}

// Scorers returns the engines in report column order.
func (s *Suite) Scorers() []metric.Scorer {
	return s.scorers
}

// Scorer returns the engine called name.
func (s *Suite) Scorer(name string) (metric.Scorer, error) {
	for _, sc := range s.scorers {
		if sc.Name() == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownMetric, name)
}

// Suites builds suites lazily, one per language, sharing one WordNet.
type Suites struct {
	cfg config.EvaluationConfig
	wn  *wordnet.Database

	mu     sync.Mutex
	byLang map[string]*Suite
}

// NewSuites returns a per-language suite cache over cfg.
func NewSuites(cfg config.EvaluationConfig, wn *wordnet.Database) *Suites {
	return &Suites{cfg: cfg, wn: wn, byLang: make(map[string]*Suite)}
}

// For returns the suite of lang, or of the configured language when lang is
// empty.
func (s *Suites) For(lang string) (*Suite, error) {
	if lang == "" {
		lang = s.cfg.Language
	}
	resolved, err := language.Resolve(lang)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if suite, ok := s.byLang[resolved.Code]; ok {
		return suite, nil
	}
	cfg := s.cfg
	cfg.Language = resolved.Code
	suite, err := NewSuite(cfg, s.wn)
	if err != nil {
		return nil, err
	}
	s.byLang[resolved.Code] = suite
	return suite, nil
}
