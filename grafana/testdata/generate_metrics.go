// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without using real production data.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics for testing dashboards. Names, labels, and buckets mirror the
// families the pipeline and HTTP server expose in production.
var (
	// Pipeline metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopr_runs_total",
			Help: "Total pipeline runs by terminal outcome",
		},
		[]string{"outcome"},
	)
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopr_steps_total",
			Help: "Total pipeline step results by step and status",
		},
		[]string{"step", "status"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopr_step_duration_seconds",
			Help:    "Wall-clock duration of pipeline steps",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"step"},
	)

	// HTTP server metrics, as a collector would scrape them
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopr_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopr_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "endpoint"},
	)
)

// coreSteps in run order, with rough production duration ranges in seconds.
// generated covers the model call, validated the project's build and tests.
var coreSteps = []struct {
	name string
	min  float64
	max  float64
}{
	{"fetching", 0.2, 1.5},
	{"branch_created", 0.05, 0.5},
	{"analyzed", 0.01, 0.2},
	{"generated", 5, 45},
	{"written", 0.005, 0.05},
	{"staged", 0.005, 0.05},
	{"committed", 0.02, 0.2},
	{"validated", 10, 180},
	{"pushed", 0.5, 3},
}

var publishSteps = []struct {
	name string
	min  float64
	max  float64
}{
	{"pull_request", 0.3, 1.5},
	{"notify", 0.1, 0.8},
}

func init() {
	prometheus.MustRegister(
		runsTotal,
		stepsTotal,
		stepDuration,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	generateSampleData()

	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'autopr-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// simulateRun increments the step and run families the way one pipeline run
// would: ok and failed steps observe a duration, skipped steps only count.
func simulateRun() {
	roll := rand.Float64()
	switch {
	case roll < 0.60: // validated and pushed
		for _, s := range coreSteps {
			observeStep(s.name, "ok", s.min, s.max)
		}
		for _, s := range publishSteps {
			observeStep(s.name, "ok", s.min, s.max)
		}
		runsTotal.WithLabelValues("pushed").Inc()

	case roll < 0.85: // gate skipped the push, commit kept
		for _, s := range coreSteps[:len(coreSteps)-1] {
			observeStep(s.name, "ok", s.min, s.max)
		}
		stepsTotal.WithLabelValues("pushed", "skipped").Inc()
		runsTotal.WithLabelValues("skipped").Inc()

	case roll < 0.97: // a step failed, run aborted
		failAt := rand.Intn(len(coreSteps))
		for _, s := range coreSteps[:failAt] {
			observeStep(s.name, "ok", s.min, s.max)
		}
		failed := coreSteps[failAt]
		observeStep(failed.name, "failed", failed.min, failed.max)
		runsTotal.WithLabelValues("aborted").Inc()

	default: // operator cancelled mid-run
		stopAt := rand.Intn(len(coreSteps))
		for _, s := range coreSteps[:stopAt] {
			observeStep(s.name, "ok", s.min, s.max)
		}
		runsTotal.WithLabelValues("cancelled").Inc()
	}
}

func observeStep(step, status string, min, max float64) {
	stepsTotal.WithLabelValues(step, status).Inc()
	stepDuration.WithLabelValues(step).Observe(min + rand.Float64()*(max-min))
}

func generateSampleData() {
	for i := 0; i < 60; i++ {
		simulateRun()
	}

	// Probes and status polls dominate request volume; process requests are
	// rare and slow since they hold the request for the whole run.
	for i := 0; i < 300; i++ {
		endpoint := randomChoice([]string{"/healthz", "/api/v1/status", "/metrics"})
		httpRequestsTotal.WithLabelValues("GET", endpoint, "200").Inc()
		httpRequestDuration.WithLabelValues("GET", endpoint).Observe(rand.Float64() * 0.01)
	}
	for i := 0; i < 40; i++ {
		status := randomChoice([]string{"200", "200", "200", "409", "400"})
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/tickets/:key/process", status).Inc()
		if status == "200" {
			httpRequestDuration.WithLabelValues("POST", "/api/v1/tickets/:key/process").Observe(20 + rand.Float64()*200)
		} else {
			httpRequestDuration.WithLabelValues("POST", "/api/v1/tickets/:key/process").Observe(rand.Float64() * 0.01)
		}
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.Float64() > 0.6 {
				simulateRun()
				status := randomChoice([]string{"200", "200", "409"})
				httpRequestsTotal.WithLabelValues("POST", "/api/v1/tickets/:key/process", status).Inc()
				httpRequestDuration.WithLabelValues("POST", "/api/v1/tickets/:key/process").Observe(20 + rand.Float64()*200)
			}
			for i := 0; i < rand.Intn(5); i++ {
				endpoint := randomChoice([]string{"/healthz", "/api/v1/status"})
				httpRequestsTotal.WithLabelValues("GET", endpoint, "200").Inc()
				httpRequestDuration.WithLabelValues("GET", endpoint).Observe(rand.Float64() * 0.01)
			}
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
