// Package cache stores scoring results in Redis. Identical concurrent
// requests are computed once, and Redis calls go through a circuit breaker
// so an unreachable Redis degrades to uncached scoring.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
	pkgredis "github.com/ansonxing23/mt-evaluation/pkg/redis"
	"github.com/ansonxing23/mt-evaluation/pkg/resilience"
)

const keyPrefix = "score:"

// Backend is the Redis surface the cache needs. *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// Result is a cached scoring result.
type Result struct {
	Metric   string          `json:"metric"`
	Language string          `json:"language"`
	Level    string          `json:"level"`
	Score    float64         `json:"score"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// Request identifies a scoring computation. References are laid out as
// reference documents, one per reference set.
type Request struct {
	Metric     string
	Language   string
	Level      string
	Hypotheses []string
	References [][]string
}

// Key returns the cache key of r.
func (r Request) Key() string {
	h := sha256.New()
	writeField(h, r.Metric)
	writeField(h, r.Language)
	writeField(h, r.Level)
	writeCount(h, len(r.Hypotheses))
	for _, hyp := range r.Hypotheses {
		writeField(h, hyp)
	}
	writeCount(h, len(r.References))
	for _, doc := range r.References {
		writeCount(h, len(doc))
		for _, ref := range doc {
			writeField(h, ref)
		}
	}
	return fmt.Sprintf("%s%s:%x", keyPrefix, r.Metric, h.Sum(nil)[:16])
}

// length prefixes keep ["ab", "c"] and ["a", "bc"] apart
func writeField(h hash.Hash, s string) {
	writeCount(h, len(s))
	h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

type ScoreCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *ScoreCache {
	c := &ScoreCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "score-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get looks up a result. Redis errors count as misses.
func (c *ScoreCache) Get(ctx context.Context, key string) (*Result, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores a result. Failures are logged and otherwise ignored.
func (c *ScoreCache) Set(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result of req or computes and stores it.
// The boolean reports a cache hit.
func (c *ScoreCache) GetOrCompute(ctx context.Context, req Request, compute func() (*Result, error)) (*Result, bool, error) {
	key := req.Key()
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Result), false, nil
}

// Invalidate deletes every cached result.
func (c *ScoreCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats holds the hit counters of this process and the key count in Redis.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Keys    int64  `json:"keys"`
	Breaker string `json:"breaker"`
}

func (c *ScoreCache) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Keys:    -1,
		Breaker: c.breaker.GetState().String(),
	}
	s.Total = s.Hits + s.Misses
	var rate float64
	if s.Total > 0 {
		rate = float64(s.Hits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", rate)
	if n, err := c.backend.CountByPattern(ctx, keyPrefix+"*"); err == nil {
		s.Keys = n
	}
	return s
}

func (c *ScoreCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
