// Command evaluate scores a hypothesis file against a reference file and
// writes a CSV report with the corpus and per-sentence BLEU, TER, NIST and
// METEOR scores.
//
// Usage:
//
//	evaluate [-config path] [-wordnet dir] [-out dir] <lang> <reference file> <hypothesis file>
//
// Files hold one sentence per line. Either file may be an s3:// URI when
// object storage is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
	"github.com/ansonxing23/mt-evaluation/internal/jobs"
	"github.com/ansonxing23/mt-evaluation/internal/report"
	"github.com/ansonxing23/mt-evaluation/internal/wordnet"
	"github.com/ansonxing23/mt-evaluation/pkg/config"
	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
	"github.com/ansonxing23/mt-evaluation/pkg/logger"
	"github.com/ansonxing23/mt-evaluation/pkg/storage"
)

const defaultWordnetDir = "wordnet"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	wordnetDir := fs.String("wordnet", "", "WordNet dict directory (default ./wordnet when present)")
	outDir := fs.String("out", "", "directory of the CSV report (default evaluation.outputDir)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: evaluate [flags] <lang> <reference file> <hypothesis file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("%w: expected 3 arguments, got %d", apperrors.ErrInvalidInput, fs.NArg())
	}
	lang, refPath, hypPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Evaluation.Language = lang
	if *outDir != "" {
		cfg.Evaluation.OutputDir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.SetupWriter(stderr, cfg.Logging.Level, "text")

	wn, err := openWordnet(*wordnetDir, cfg.Evaluation.WordnetDir)
	if err != nil {
		return err
	}
	suite, err := evaluator.NewSuite(cfg.Evaluation, wn)
	if err != nil {
		return err
	}

	var store *storage.Store
	if storage.IsURI(refPath) || storage.IsURI(hypPath) {
		if store, err = storage.New(ctx, cfg.Storage); err != nil {
			return err
		}
	}
	refs, err := readLines(ctx, store, refPath)
	if err != nil {
		return err
	}
	hyps, err := readLines(ctx, store, hypPath)
	if err != nil {
		return err
	}
	if len(refs) != len(hyps) {
		return fmt.Errorf("%w: %s has %d lines, %s has %d", apperrors.ErrCountMismatch, refPath, len(refs), hypPath, len(hyps))
	}

	eval, err := evaluator.New(cfg.Evaluation.Concurrency, evaluator.WithSentenceTimeout(cfg.Evaluation.SentenceTimeout))
	if err != nil {
		return err
	}
	defer eval.Release()

	slog.Info("evaluating", "language", suite.Language.Name, "sentences", len(hyps))
	rep, err := eval.Evaluate(ctx, suite, hyps, [][]string{refs}, func(done, total int) {
		slog.Info("progress", "percent", float64(done)/float64(total)*100)
	})
	if err != nil {
		return err
	}

	path, err := report.SaveCSV(cfg.Evaluation.OutputDir, rep)
	if err != nil {
		return err
	}
	for _, m := range rep.Metrics {
		fmt.Fprintf(stdout, "%s\t%s\n", m.Name, report.FormatScore(m.Score))
	}
	fmt.Fprintln(stdout, path)
	slog.Info("completed", "report", path, "duration", rep.Duration)
	return nil
}

// openWordnet loads the flag directory, else the configured one, else
// ./wordnet when it exists. No directory at all disables synonym matching.
func openWordnet(flagDir, cfgDir string) (*wordnet.Database, error) {
	dir := flagDir
	if dir == "" {
		dir = cfgDir
	}
	if dir == "" {
		if _, err := os.Stat(defaultWordnetDir); err != nil {
			slog.Warn("no wordnet directory, METEOR synonym matching disabled")
			return nil, nil
		}
		dir = defaultWordnetDir
	}
	return wordnet.Open(dir)
}

func readLines(ctx context.Context, store *storage.Store, path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if storage.IsURI(path) {
		if store == nil {
			return nil, errors.New("object storage is not configured")
		}
		data, err = store.GetURI(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return jobs.SplitLines(string(data)), nil
}
