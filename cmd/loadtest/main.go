// Command loadtest drives the scoring API with concurrent sentence scoring
// requests and prints throughput, latency percentiles and cache hit rate.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type pair struct {
	Hypothesis string
	Reference  string
}

// Config describes one load test run.
type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Metrics     []string
	Pairs       []pair
}

// Stats accumulates the outcome of every request.
type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	byStatus  map[int]int64
	byMetric  map[string][]time.Duration
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		byStatus:  make(map[int]int64),
		byMetric:  make(map[string][]time.Duration),
	}
}

func (s *Stats) Record(metric string, d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
	s.byStatus[status]++
	s.byMetric[metric] = append(s.byMetric[metric], d)
}

var samplePairs = []pair{
	{"the cat is on the mat", "the cat sat on the mat"},
	{"there is a cat on the mat", "the cat sat on the mat"},
	{"it is a guide to action which ensures that the military always obeys the commands of the party",
		"it is a guide to action that ensures that the military will forever heed party commands"},
	{"he read the book because he was interested in world history",
		"he was interested in world history because he read the book"},
	{"the weather is nice today", "today the weather is fine"},
	{"we will meet at the station tomorrow morning", "we are meeting at the station tomorrow morning"},
	{"the committee approved the new budget", "the new budget was approved by the committee"},
	{"please send me the report by friday", "please send the report to me by friday"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the scoring service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	metricList := flag.String("metrics", "bleu,ter,nist,meteor", "comma separated metrics to request")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimSuffix(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Metrics:     strings.Split(*metricList, ","),
		Pairs:       samplePairs,
	}

	fmt.Println("=== Scoring Service Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Metrics:     %s\n", strings.Join(cfg.Metrics, ", "))
	fmt.Printf("Pairs:       %d unique\n", len(cfg.Pairs))
	fmt.Println()

	stats := run(cfg)
	if !printReport(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				metric := cfg.Metrics[i%len(cfg.Metrics)]
				p := cfg.Pairs[(i/len(cfg.Metrics))%len(cfg.Pairs)]
				start := time.Now()
				status, hit, err := scoreSentence(ctx, client, cfg.BaseURL, metric, p)
				if ctx.Err() != nil {
					return
				}
				stats.Record(metric, time.Since(start), status, hit, err)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func scoreSentence(ctx context.Context, client *http.Client, baseURL, metric string, p pair) (int, bool, error) {
	body, err := json.Marshal(map[string]any{
		"metric":     metric,
		"hypothesis": p.Hypothesis,
		"references": []string{p.Reference},
	})
	if err != nil {
		return 0, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/score/sentence", bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var out struct {
		CacheHit bool `json:"cache_hit"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.CacheHit, nil
}

// printReport prints the summary and reports whether any request completed.
func printReport(stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	failed := stats.failed.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", stats.success.Load())
	fmt.Printf("Errors:          %d\n", failed)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if len(stats.latencies) > 0 {
		latencies := slices.Clone(stats.latencies)
		slices.Sort(latencies)
		avg, stddev := meanStdDev(latencies)

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", stddev)

		fmt.Println()
		fmt.Println("=== P95 by Metric ===")
		metrics := make([]string, 0, len(stats.byMetric))
		for m := range stats.byMetric {
			metrics = append(metrics, m)
		}
		slices.Sort(metrics)
		for _, m := range metrics {
			ls := slices.Clone(stats.byMetric[m])
			slices.Sort(ls)
			fmt.Printf("  %-7s %s (%d requests)\n", m, percentile(ls, 95), len(ls))
		}
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.byStatus))
	for code := range stats.byStatus {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.byStatus[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func meanStdDev(ls []time.Duration) (time.Duration, time.Duration) {
	var sum time.Duration
	for _, l := range ls {
		sum += l
	}
	avg := sum / time.Duration(len(ls))
	var sq float64
	for _, l := range ls {
		d := float64(l - avg)
		sq += d * d
	}
	return avg, time.Duration(math.Sqrt(sq / float64(len(ls))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
