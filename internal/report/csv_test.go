package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansonxing23/mt-evaluation/internal/evaluator"
)

func sampleReport() *evaluator.Report {
	return &evaluator.Report{
		Language: "en",
		Metrics: []evaluator.MetricScore{
			{Name: "bleu", Score: 33.4567},
			{Name: "ter", Score: 50},
			{Name: "nist", Score: 1.999},
			{Name: "meteor", Score: 0.29},
		},
		Rows: []evaluator.Row{
			{Index: 1, Reference: `he said "hi", then left`, Hypothesis: "he left", Scores: []float64{12.345, 60, 0.5, 0.456}},
		},
	}
}

func TestFormatScore(t *testing.T) {
	cases := map[float64]string{
		33.4567: "33.45",
		100:     "100",
		0.29:    "0.29",
		1.999:   "1.99",
		0:       "0",
		12.3:    "12.3",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatScore(in), "%v", in)
	}
	assert.Equal(t, "NaN", FormatScore(math.NaN()))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"No.", "Reference", "Hypothesis", "Bleu: 33.45", "Ter: 50", "Nist: 1.99", "Meteor: 0.29"}, records[0])
	assert.Equal(t, []string{"1", `he said "hi", then left`, "he left", "12.34", "60", "0.5", "0.45"}, records[1])
}

func TestSaveCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := SaveCSV(dir, sampleReport())
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "evaluate_result_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "No.,Reference,Hypothesis,Bleu: 33.45"))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "evaluate_result_1645437660000.csv", FileName(time.UnixMilli(1645437660000)))
}
