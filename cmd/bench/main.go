package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Load test for the model listing endpoint. Fires concurrent GET requests
// against /api/models and reports p50/p95 latency and throughput.

type sample struct {
	LatencyMs  float64
	StatusCode int
	OK         bool
	BytesLen   int
	Err        string
}

type taskResult struct {
	final    sample
	attempts int
}

type latencySummary struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type report struct {
	TimestampUTC     string         `json:"timestamp_utc"`
	BaseURL          string         `json:"base_url"`
	Endpoint         string         `json:"endpoint"`
	Requests         int            `json:"requests"`
	Concurrency      int            `json:"concurrency"`
	PageSize         int            `json:"page_size"`
	WarmupRequests   int            `json:"warmup_requests"`
	VaryParams       bool           `json:"vary_params"`
	MaxRetries       int            `json:"max_retries"`
	RetryBackoffMs   int            `json:"retry_backoff_ms"`
	TotalAttempts    int            `json:"total_attempts"`
	TotalDurationSec float64        `json:"total_duration_sec"`
	ThroughputRPS    float64        `json:"throughput_rps"`
	LatencyMs        latencySummary `json:"latency_ms"`
	SuccessCount     int            `json:"success_count"`
	ErrorCount       int            `json:"error_count"`
	StatusCounts     map[string]int `json:"status_counts"`
	ErrorsSample     []string       `json:"errors_sample"`
}

var (
	queryTerms  = []string{"", "Datejust", "Daytona", "116", "126"}
	collections = []string{"", "Datejust", "Submariner", "GMT-Master II", "Day-Date"}
)

func main() {
	baseURL := flag.String("base-url", "http://127.0.0.1:8084", "API base URL")
	requests := flag.Int("requests", 300, "Total request count")
	concurrency := flag.Int("concurrency", 20, "Parallel workers")
	pageSize := flag.Int("page-size", 25, "page_size query param")
	timeoutSec := flag.Float64("timeout-sec", 10.0, "Per-request timeout")
	warmup := flag.Int("warmup", 20, "Warmup request count")
	varyParams := flag.Bool("vary-params", false, "Vary query params across requests")
	maxRetries := flag.Int("max-retries", 3, "Retries per logical request on failure")
	retryBackoffMs := flag.Int("retry-backoff-ms", 50, "Backoff between retries in milliseconds")
	output := flag.String("output", "", "Optional JSON file output path")
	flag.Parse()

	rep := runBenchmark(benchConfig{
		baseURL:        strings.TrimRight(*baseURL, "/"),
		requests:       max(1, *requests),
		concurrency:    max(1, *concurrency),
		pageSize:       max(1, *pageSize),
		timeout:        time.Duration(math.Max(0.1, *timeoutSec) * float64(time.Second)),
		warmup:         max(0, *warmup),
		varyParams:     *varyParams,
		maxRetries:     max(0, *maxRetries),
		retryBackoffMs: max(0, *retryBackoffMs),
	})

	fmt.Println("Benchmark complete")
	fmt.Printf("Endpoint: %s%s\n", rep.BaseURL, rep.Endpoint)
	fmt.Printf("Requests: %d | Concurrency: %d | Warmup: %d\n", rep.Requests, rep.Concurrency, rep.WarmupRequests)
	fmt.Printf("Success: %d | Errors: %d | Throughput: %.2f rps\n", rep.SuccessCount, rep.ErrorCount, rep.ThroughputRPS)
	fmt.Printf("Retries: max=%d backoff_ms=%d | total_attempts=%d\n", rep.MaxRetries, rep.RetryBackoffMs, rep.TotalAttempts)
	fmt.Printf("Latency (ms): avg=%.2f p50=%.2f p95=%.2f min=%.2f max=%.2f\n",
		rep.LatencyMs.Avg, rep.LatencyMs.P50, rep.LatencyMs.P95, rep.LatencyMs.Min, rep.LatencyMs.Max)
	fmt.Printf("Status counts: %v\n", rep.StatusCounts)

	if *output != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal report: %v", err)
		}
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("Saved report: %s\n", *output)
	}
}

type benchConfig struct {
	baseURL        string
	requests       int
	concurrency    int
	pageSize       int
	timeout        time.Duration
	warmup         int
	varyParams     bool
	maxRetries     int
	retryBackoffMs int
}

func runBenchmark(cfg benchConfig) *report {
	client := &http.Client{Timeout: cfg.timeout}

	for i := 0; i < cfg.warmup; i++ {
		hitOnce(client, cfg.baseURL, cfg.pageSize, false, int64(i))
	}

	samples := make([]sample, cfg.requests)
	attempts := make([]int, cfg.requests)
	startedAt := time.Now()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result := hitWithRetries(client, cfg, int64(i))
				samples[i] = result.final
				attempts[i] = result.attempts
			}
		}()
	}
	for i := 0; i < cfg.requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	totalDuration := time.Since(startedAt).Seconds()
	if totalDuration <= 0 {
		totalDuration = 1e-9
	}

	latencies := make([]float64, 0, len(samples))
	totalAttempts := 0
	successCount := 0
	statusCounts := make(map[string]int)
	var errorsSample []string

	for i, s := range samples {
		latencies = append(latencies, s.LatencyMs)
		totalAttempts += attempts[i]
		if s.OK {
			successCount++
		} else if s.Err != "" && len(errorsSample) < 5 {
			errorsSample = append(errorsSample, s.Err)
		}
		statusCounts[fmt.Sprintf("%d", s.StatusCode)]++
	}
	sort.Float64s(latencies)

	avg := 0.0
	for _, v := range latencies {
		avg += v
	}
	if len(latencies) > 0 {
		avg /= float64(len(latencies))
	}

	minLat, maxLat := 0.0, 0.0
	if len(latencies) > 0 {
		minLat = latencies[0]
		maxLat = latencies[len(latencies)-1]
	}

	return &report{
		TimestampUTC:     time.Now().UTC().Format(time.RFC3339),
		BaseURL:          cfg.baseURL,
		Endpoint:         "/api/models",
		Requests:         cfg.requests,
		Concurrency:      cfg.concurrency,
		PageSize:         cfg.pageSize,
		WarmupRequests:   cfg.warmup,
		VaryParams:       cfg.varyParams,
		MaxRetries:       cfg.maxRetries,
		RetryBackoffMs:   cfg.retryBackoffMs,
		TotalAttempts:    totalAttempts,
		TotalDurationSec: round2(totalDuration),
		ThroughputRPS:    round2(float64(len(samples)) / totalDuration),
		LatencyMs: latencySummary{
			Avg: round2(avg),
			P50: round2(percentile(latencies, 50)),
			P95: round2(percentile(latencies, 95)),
			Min: round2(minLat),
			Max: round2(maxLat),
		},
		SuccessCount: successCount,
		ErrorCount:   len(samples) - successCount,
		StatusCounts: statusCounts,
		ErrorsSample: errorsSample,
	}
}

func hitWithRetries(client *http.Client, cfg benchConfig, seed int64) taskResult {
	attempts := 0
	last := sample{Err: "No attempts"}
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		attempts++
		s := hitOnce(client, cfg.baseURL, cfg.pageSize, cfg.varyParams, seed+int64(attempt))
		if s.OK {
			return taskResult{final: s, attempts: attempts}
		}
		last = s
		if attempt < cfg.maxRetries {
			time.Sleep(time.Duration(cfg.retryBackoffMs) * time.Millisecond)
		}
	}
	return taskResult{final: last, attempts: attempts}
}

func hitOnce(client *http.Client, baseURL string, pageSize int, varyParams bool, seed int64) sample {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("page_size", fmt.Sprintf("%d", pageSize))
	if varyParams {
		rng := rand.New(rand.NewSource(seed))
		params.Set("page", fmt.Sprintf("%d", rng.Intn(3)+1))
		if q := queryTerms[rng.Intn(len(queryTerms))]; q != "" {
			params.Set("q", q)
		}
		if col := collections[rng.Intn(len(collections))]; col != "" {
			params.Set("collection", col)
		}
	}

	reqURL := fmt.Sprintf("%s/api/models?%s", baseURL, params.Encode())
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return sample{Err: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := client.Do(req)
	latency := float64(time.Since(started).Microseconds()) / 1000.0
	if err != nil {
		return sample{LatencyMs: latency, Err: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	latency = float64(time.Since(started).Microseconds()) / 1000.0

	return sample{
		LatencyMs:  latency,
		StatusCode: resp.StatusCode,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		BytesLen:   len(body),
	}
}

// percentile computes the p-th percentile with linear interpolation over
// already sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	p = math.Max(0.0, math.Min(100.0, p))
	k := float64(len(sorted)-1) * (p / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
