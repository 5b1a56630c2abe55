// Package router wires the scoring service routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/scorer/handler"
	"github.com/ansonxing23/mt-evaluation/pkg/health"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/middleware"
)

// Config selects the optional middleware.
type Config struct {
	// Limiter enables per-client rate limiting when set.
	Limiter        *middleware.Limiter
	RequestTimeout time.Duration
	CORSOrigins    []string
	Metrics        *metrics.Metrics
}

// New builds the scoring service HTTP handler.
//
// Route table:
//
//	POST   /api/v1/score/sentence      score one sentence
//	POST   /api/v1/score/corpus        score a corpus
//	POST   /api/v1/evaluations         queue an evaluation job
//	GET    /api/v1/evaluations         list jobs
//	GET    /api/v1/evaluations/{id}    job record and report
//	GET    /api/v1/cache/stats         score cache stats
//	POST   /api/v1/cache/invalidate    drop cached scores
//	GET    /api/v1/analytics           analytics service (proxy)
//	GET    /health/live, /health/ready
//	GET    /metrics
//
// Middleware chain (outermost first):
//
//	RequestID -> CORS -> Metrics -> RateLimit -> Timeout -> mux
func New(h *handler.Handler, checker *health.Checker, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/score/sentence", h.ScoreSentence)
	mux.HandleFunc("POST /api/v1/score/corpus", h.ScoreCorpus)

	mux.HandleFunc("POST /api/v1/evaluations", h.SubmitEvaluation)
	mux.HandleFunc("GET /api/v1/evaluations", h.ListEvaluations)
	mux.HandleFunc("GET /api/v1/evaluations/{id}", h.GetEvaluation)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", h.ProxyAnalytics)

	if checker != nil {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	if cfg.RequestTimeout > 0 {
		chain = middleware.Timeout(cfg.RequestTimeout)(chain)
	}
	if cfg.Limiter != nil {
		chain = middleware.RateLimit(cfg.Limiter, cfg.Metrics)(chain)
	}
	if cfg.Metrics != nil {
		chain = middleware.Metrics(cfg.Metrics)(chain)
	}
	if len(cfg.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins))(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
