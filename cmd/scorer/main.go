// Command scorer starts the scoring API.
//
// It scores sentences and corpora with BLEU, TER, NIST and METEOR on
// request, caches results in Redis, queues whole-corpus evaluation jobs on
// Kafka and serves their stored reports.
//
// Usage:
//
//	go run ./cmd/scorer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/analytics"
	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/jobs"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/internal/scorer/cache"
	"github.com/ansonxing23/mt-evaluation/internal/scorer/handler"
	"github.com/ansonxing23/mt-evaluation/internal/scorer/router"
	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	"github.com/ansonxing23/mt-evaluation/pkg/config"
	"github.com/ansonxing23/mt-evaluation/pkg/health"
	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/middleware"
	"github.com/ansonxing23/mt-evaluation/pkg/postgres"
	pkgredis "github.com/ansonxing23/mt-evaluation/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scoring service", "port", cfg.Server.Port, "language", cfg.Evaluation.Language)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var wn *wordnet.Database
	if cfg.Evaluation.WordnetDir != "" {
		wn, err = wordnet.Open(cfg.Evaluation.WordnetDir)
		if err != nil {
			slog.Error("failed to load wordnet", "dir", cfg.Evaluation.WordnetDir, "error", err)
			os.Exit(1)
		}
		slog.Info("wordnet loaded", "dir", cfg.Evaluation.WordnetDir)
	}
	suites := evaluator.NewSuites(cfg.Evaluation, wn)
	if _, err := suites.For(""); err != nil {
		slog.Error("default language is not supported", "language", cfg.Evaluation.Language, "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	opts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithAnalyticsURL(cfg.Analytics.URL),
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, score caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		opts = append(opts, handler.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL, m)))
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
		slog.Info("score cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, evaluation jobs disabled", "error", err)
	} else {
		defer db.Close()
		reports := report.NewStore(db)
		if err := reports.Migrate(ctx); err != nil {
			slog.Error("report migration failed", "error", err)
			os.Exit(1)
		}
		jobProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationJobs)
		defer jobProducer.Close()
		opts = append(opts, handler.WithJobs(jobs.NewSubmitter(jobProducer, reports), reports))
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ScoringEvents)
	defer eventProducer.Close()
	collector := analytics.NewCollector(eventProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	opts = append(opts, handler.WithEvents(collector))

	routes := router.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Metrics:        m,
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		routes.Limiter = limiter
		go cleanupLimiter(ctx, limiter)
	}

	h := handler.New(suites, opts...)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(h, checker, routes),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("scoring service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("scoring service stopped")
}

func cleanupLimiter(ctx context.Context, limiter *middleware.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				slog.Debug("rate limiter cleanup", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
