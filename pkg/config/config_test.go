package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "en", cfg.Evaluation.Language)
	assert.Equal(t, 5, cfg.Evaluation.NIST.NGram)
	assert.Equal(t, "exp", cfg.Evaluation.BLEU.SmoothMethod)
	assert.Equal(t, "evaluation-jobs", cfg.Kafka.Topics.EvaluationJobs)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
evaluation:
  language: zh
  sentenceTimeout: 2s
  bleu:
    smoothMethod: floor
    smoothValue: 0.05
  meteor:
    alpha: 0.8
kafka:
  brokers: [a:9092, b:9092]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("MTE_EVALUATION_LANGUAGE", "ja")
	t.Setenv("MTE_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ja", cfg.Evaluation.Language)
	assert.Equal(t, 2*time.Second, cfg.Evaluation.SentenceTimeout)
	assert.Equal(t, "floor", cfg.Evaluation.BLEU.SmoothMethod)
	require.NotNil(t, cfg.Evaluation.BLEU.SmoothValue)
	assert.Equal(t, 0.05, *cfg.Evaluation.BLEU.SmoothValue)
	assert.Equal(t, 0.8, cfg.Evaluation.METEOR.Alpha)
	// untouched keys keep their defaults
	assert.Equal(t, 0.5, cfg.Evaluation.METEOR.Gamma)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Evaluation.BLEU.SmoothMethod = "laplace"
	cfg.Evaluation.NIST.NGram = 0
	cfg.Evaluation.METEOR.Alpha = 2

	err := cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
	assert.Contains(t, err.Error(), "smoothMethod")
}
