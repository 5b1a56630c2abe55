package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansonxing23/mt-evaluation/pkg/metrics"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemBackend() *memBackend { return &memBackend{data: map[string][]byte{}} }

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memBackend) CountByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			n++
		}
	}
	return n, nil
}

func sentenceRequest(hyp string, refs ...string) Request {
	docs := make([][]string, len(refs))
	for i, r := range refs {
		docs[i] = []string{r}
	}
	return Request{Metric: "bleu", Language: "en", Level: "sentence", Hypotheses: []string{hyp}, References: docs}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	a := sentenceRequest("ab", "c").Key()
	assert.Equal(t, a, sentenceRequest("ab", "c").Key())
	assert.NotEqual(t, a, sentenceRequest("a", "bc").Key())
	assert.NotEqual(t, a, sentenceRequest("ab", "c", "").Key())

	other := sentenceRequest("ab", "c")
	other.Metric = "ter"
	assert.NotEqual(t, a, other.Key())
	assert.True(t, strings.HasPrefix(other.Key(), "score:ter:"))
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newMemBackend(), time.Minute, m)
	ctx := context.Background()
	req := sentenceRequest("the cat", "the cat")

	calls := 0
	compute := func() (*Result, error) {
		calls++
		return &Result{Metric: "bleu", Score: 100}, nil
	}

	res, hit, err := c.GetOrCompute(ctx, req, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 100.0, res.Score)

	res, hit, err = c.GetOrCompute(ctx, req, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))

	stats := c.Stats(ctx)
	assert.Equal(t, int64(1), stats.Keys)
	assert.Equal(t, "50.0%", stats.HitRate)
	assert.Equal(t, "closed", stats.Breaker)
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), sentenceRequest("a", "b"), func() (*Result, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), c.Stats(context.Background()).Keys)
}

func TestSingleflightDeduplicates(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	req := sentenceRequest("a b c", "a b c")

	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), req, func() (*Result, error) {
				calls.Add(1)
				<-release
				return &Result{Score: 1}, nil
			})
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestRedisDownDegradesToCompute(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("connection refused")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(backend, time.Minute, m)

	for i := 0; i < 5; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), sentenceRequest("x", "y"), func() (*Result, error) {
			return &Result{Score: 2}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 2.0, res.Score)
	}
	assert.Equal(t, "open", c.breaker.GetState().String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis")))
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	backend.data["other:key"] = []byte("x")
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, sentenceRequest("a", "a").Key(), &Result{Score: 1})
	c.Set(ctx, sentenceRequest("b", "b").Key(), &Result{Score: 1})

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, backend.data, "other:key")
}
