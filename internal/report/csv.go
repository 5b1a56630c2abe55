// Package report renders evaluation reports as CSV and persists them in
// PostgreSQL.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
)

// FileName is the default report file name for an evaluation finished at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("evaluate_result_%d.csv", t.UnixMilli())
}

// FormatScore floors v to two decimals and drops trailing zeros, so 33.4567
// renders as 33.45 and 100 as 100.
func FormatScore(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	// the nudge keeps values like 0.29 from flooring to 0.28
	floored := math.Floor(v*100+1e-9) / 100
	return strconv.FormatFloat(floored, 'f', -1, 64)
}

// WriteCSV writes the report: a header carrying the corpus scores, then one
// line per sentence with its reference, hypothesis and sentence scores.
func WriteCSV(w io.Writer, r *evaluator.Report) error {
	cw := csv.NewWriter(w)

	header := []string{"No.", "Reference", "Hypothesis"}
	for _, m := range r.Metrics {
		header = append(header, columnLabel(m.Name)+": "+FormatScore(m.Score))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range r.Rows {
		record := make([]string, 0, 3+len(row.Scores))
		record = append(record, strconv.Itoa(row.Index), row.Reference, row.Hypothesis)
		for _, s := range row.Scores {
			record = append(record, FormatScore(s))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", row.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the report into dir under FileName and returns the path.
func SaveCSV(dir string, r *evaluator.Report) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, FileName(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	if err := WriteCSV(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing report file: %w", err)
	}
	return path, nil
}

// bleu -> Bleu
func columnLabel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
