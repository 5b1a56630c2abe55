// Command worker runs queued evaluation jobs.
//
// It consumes jobs from Kafka, loads the corpora (inline or from S3), scores
// them with the four metrics, stores the report in PostgreSQL, uploads the
// CSV report to S3 and publishes the job result.
//
// Usage:
//
//	go run ./cmd/worker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansonxing23/mt-evaluation/internal/analytics/collector"
	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/jobs"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	"github.com/ansonxing23/mt-evaluation/pkg/config"
	"github.com/ansonxing23/mt-evaluation/pkg/kafka"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	"github.com/ansonxing23/mt-evaluation/pkg/postgres"
	"github.com/ansonxing23/mt-evaluation/pkg/storage"
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
	slog.Info("starting evaluation worker", "concurrency", cfg.Evaluation.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	var wn *wordnet.Database
	if cfg.Evaluation.WordnetDir != "" {
		wn, err = wordnet.Open(cfg.Evaluation.WordnetDir)
		if err != nil {
			slog.Error("failed to load wordnet", "dir", cfg.Evaluation.WordnetDir, "error", err)
			os.Exit(1)
		}
		slog.Info("wordnet loaded", "dir", cfg.Evaluation.WordnetDir)
	} else {
		slog.Warn("no wordnet directory configured, METEOR synonym matching disabled")
	}

	eval, err := evaluator.New(cfg.Evaluation.Concurrency,
		evaluator.WithSentenceTimeout(cfg.Evaluation.SentenceTimeout),
		evaluator.WithMetrics(m),
	)
	if err != nil {
		slog.Error("failed to create evaluator", "error", err)
		os.Exit(1)
	}
	defer eval.Release()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	reports := report.NewStore(db)
	if err := reports.Migrate(ctx); err != nil {
		slog.Error("report migration failed", "error", err)
		os.Exit(1)
	}

	resultProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationResults)
	defer resultProducer.Close()

	eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ScoringEvents)
	defer eventProducer.Close()
	events := collector.NewBatchCollector(eventProducer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	events.Start(ctx)
	defer events.Close()

	opts := []jobs.ProcessorOption{
		jobs.WithRecords(reports),
		jobs.WithResults(resultProducer),
		jobs.WithEvents(events),
		jobs.WithJobMetrics(m),
		jobs.WithJobTimeout(cfg.Evaluation.JobTimeout),
	}
	if cfg.Storage.Bucket != "" {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			slog.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		opts = append(opts, jobs.WithObjectStore(store, cfg.Storage.ReportPrefix))
		slog.Info("object storage enabled", "bucket", cfg.Storage.Bucket)
	}

	processor := jobs.NewProcessor(evaluator.NewSuites(cfg.Evaluation, wn), eval, opts...)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EvaluationJobs, processor.Handle(), kafka.FromFirstOffset())

	slog.Info("evaluation worker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.EvaluationJobs,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("evaluation worker stopped")
}
