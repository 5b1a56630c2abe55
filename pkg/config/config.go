// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Storage, Evaluation, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// CORSOrigins lists the origins allowed to call the API. "*" allows any.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	EvaluationJobs    string `yaml:"evaluationJobs"`
	EvaluationResults string `yaml:"evaluationResults"`
	ScoringEvents     string `yaml:"scoringEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// StorageConfig points at the S3 bucket holding corpora and reports. An
// empty Bucket disables object storage.
type StorageConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	// ReportPrefix is the key prefix of uploaded CSV reports.
	ReportPrefix string `yaml:"reportPrefix"`
}

// EvaluationConfig controls how a corpus is scored.
type EvaluationConfig struct {
	Language string `yaml:"language"`
	// WordnetDir is the WordNet dict directory. Empty disables METEOR
	// synonym matching.
	WordnetDir      string        `yaml:"wordnetDir"`
	Concurrency     int           `yaml:"concurrency"`
	SentenceTimeout time.Duration `yaml:"sentenceTimeout"`
	JobTimeout      time.Duration `yaml:"jobTimeout"`
	OutputDir       string        `yaml:"outputDir"`
	BLEU            BLEUConfig    `yaml:"bleu"`
	TER             TERConfig     `yaml:"ter"`
	NIST            NISTConfig    `yaml:"nist"`
	METEOR          METEORConfig  `yaml:"meteor"`
}

type BLEUConfig struct {
	Lowercase      bool     `yaml:"lowercase"`
	SmoothMethod   string   `yaml:"smoothMethod"`
	SmoothValue    *float64 `yaml:"smoothValue"`
	MaxNgramOrder  int      `yaml:"maxNgramOrder"`
	EffectiveOrder bool     `yaml:"effectiveOrder"`
}

type TERConfig struct {
	Normalized    bool `yaml:"normalized"`
	NoPunct       bool `yaml:"noPunct"`
	CaseSensitive bool `yaml:"caseSensitive"`
}

type NISTConfig struct {
	NGram int `yaml:"ngram"`
}

type METEORConfig struct {
	Lowercase bool    `yaml:"lowercase"`
	Alpha     float64 `yaml:"alpha"`
	Beta      float64 `yaml:"beta"`
	Gamma     float64 `yaml:"gamma"`
}

// RateLimitConfig controls the per-client token bucket of the scoring API.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// AnalyticsConfig controls the scoring analytics service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	BatchSize        int           `yaml:"batchSize"`
	// URL is where the scoring service forwards /api/v1/analytics. Empty
	// disables the route.
	URL string `yaml:"url"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls tracing (sample rate, endpoint).
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

var smoothMethods = map[string]bool{"none": true, "floor": true, "add-k": true, "exp": true}

// Validate reports every malformed setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Server.Port <= 0 {
		result = multierror.Append(result, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}
	e := c.Evaluation
	if strings.TrimSpace(e.Language) == "" {
		result = multierror.Append(result, errors.New("evaluation.language is required"))
	}
	if e.Concurrency < 0 {
		result = multierror.Append(result, fmt.Errorf("evaluation.concurrency must not be negative, got %d", e.Concurrency))
	}
	if !smoothMethods[e.BLEU.SmoothMethod] {
		result = multierror.Append(result, fmt.Errorf("evaluation.bleu.smoothMethod %q is not one of none, floor, add-k, exp", e.BLEU.SmoothMethod))
	}
	if e.BLEU.MaxNgramOrder <= 0 {
		result = multierror.Append(result, fmt.Errorf("evaluation.bleu.maxNgramOrder must be positive, got %d", e.BLEU.MaxNgramOrder))
	}
	if e.NIST.NGram <= 0 {
		result = multierror.Append(result, fmt.Errorf("evaluation.nist.ngram must be positive, got %d", e.NIST.NGram))
	}
	if e.METEOR.Alpha < 0 || e.METEOR.Alpha > 1 {
		result = multierror.Append(result, fmt.Errorf("evaluation.meteor.alpha must be in [0, 1], got %v", e.METEOR.Alpha))
	}
	if e.METEOR.Gamma < 0 || e.METEOR.Gamma > 1 {
		result = multierror.Append(result, fmt.Errorf("evaluation.meteor.gamma must be in [0, 1], got %v", e.METEOR.Gamma))
	}
	if e.METEOR.Beta < 0 {
		result = multierror.Append(result, fmt.Errorf("evaluation.meteor.beta must not be negative, got %v", e.METEOR.Beta))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		result = multierror.Append(result, errors.New("rateLimit.requestsPerSecond and rateLimit.burst must be positive"))
	}
	return result.ErrorOrNil()
}

// Load reads a .env file from the working directory when present, then the
// YAML config file (if provided), then applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "mteval",
			User:            "mteval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "mteval-worker",
			Topics: KafkaTopics{
				EvaluationJobs:    "evaluation-jobs",
				EvaluationResults: "evaluation-results",
				ScoringEvents:     "scoring-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Storage: StorageConfig{
			Region:       "us-east-1",
			ReportPrefix: "reports/",
		},
		Evaluation: EvaluationConfig{
			Language:        "en",
			SentenceTimeout: 10 * time.Second,
			JobTimeout:      30 * time.Minute,
			OutputDir:       ".",
			BLEU: BLEUConfig{
				SmoothMethod:   "exp",
				MaxNgramOrder:  4,
				EffectiveOrder: true,
			},
			TER: TERConfig{
				Normalized: true,
			},
			NIST: NISTConfig{
				NGram: 5,
			},
			METEOR: METEORConfig{
				Lowercase: true,
				Alpha:     0.9,
				Beta:      3,
				Gamma:     0.5,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			SnapshotInterval: time.Minute,
			FlushInterval:    5 * time.Second,
			BatchSize:        100,
			URL:              "http://localhost:8083",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MTE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	envInt("MTE_SERVER_PORT", &cfg.Server.Port)
	envString("MTE_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("MTE_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("MTE_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("MTE_POSTGRES_USER", &cfg.Postgres.User)
	envString("MTE_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("MTE_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("MTE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	envString("MTE_REDIS_ADDR", &cfg.Redis.Addr)
	envString("MTE_REDIS_PASSWORD", &cfg.Redis.Password)
	envString("MTE_STORAGE_BUCKET", &cfg.Storage.Bucket)
	envString("MTE_STORAGE_REGION", &cfg.Storage.Region)
	envString("MTE_STORAGE_ENDPOINT", &cfg.Storage.Endpoint)
	envString("MTE_STORAGE_ACCESS_KEY", &cfg.Storage.AccessKey)
	envString("MTE_STORAGE_SECRET_KEY", &cfg.Storage.SecretKey)
	envString("MTE_EVALUATION_LANGUAGE", &cfg.Evaluation.Language)
	envString("MTE_EVALUATION_WORDNET_DIR", &cfg.Evaluation.WordnetDir)
	envInt("MTE_EVALUATION_CONCURRENCY", &cfg.Evaluation.Concurrency)
	envString("MTE_EVALUATION_OUTPUT_DIR", &cfg.Evaluation.OutputDir)
	envString("MTE_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("MTE_LOGGING_FORMAT", &cfg.Logging.Format)
	envInt("MTE_ANALYTICS_PORT", &cfg.Analytics.Port)
	envString("MTE_ANALYTICS_URL", &cfg.Analytics.URL)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
