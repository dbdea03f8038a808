package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Metrics holds the service's Prometheus series. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	reviewJobs     *CounterVec
	reviewJobTime  *HistogramVec
	reviewRunning  *GaugeVec
	reviewUnits    *CounterVec
	reviewComments *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

func Current() *Metrics { return instance }

// Init builds the process-wide metrics when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		log.Info("metrics enabled")
	})
	return instance
}

func newMetrics() *Metrics {
	durations := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	return &Metrics{
		apiRequests: NewCounterVec("vr_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("vr_api_request_duration_seconds", "API request latency.", []string{"method", "route"}, durations),
		apiInflight: NewGaugeVec("vr_api_inflight_requests", "In-flight API requests.", nil),

		llmRequests: NewCounterVec("vr_llm_requests_total", "Reasoning service requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("vr_llm_request_duration_seconds", "Reasoning service latency.", []string{"model", "endpoint"}, durations),
		llmTokens:   NewCounterVec("vr_llm_tokens_total", "Reasoning service tokens by model/direction.", []string{"model", "direction"}),

		reviewJobs:     NewCounterVec("vr_review_jobs_total", "Review jobs by media kind/outcome.", []string{"media_kind", "outcome"}),
		reviewJobTime:  NewHistogramVec("vr_review_job_duration_seconds", "Review job wall time.", []string{"media_kind"}, []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}),
		reviewRunning:  NewGaugeVec("vr_review_jobs_running", "Review jobs currently running.", nil),
		reviewUnits:    NewCounterVec("vr_review_units_total", "Review units by media kind/outcome.", []string{"media_kind", "outcome"}),
		reviewComments: NewCounterVec("vr_review_agent_comments_total", "Agent comments written by media kind.", []string{"media_kind"}),
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.reviewJobs, m.reviewJobTime, m.reviewRunning, m.reviewUnits, m.reviewComments,
	}
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

// StartServer serves /metrics on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// ReviewJobStarted marks a job running and returns the func that records its outcome.
func (m *Metrics) ReviewJobStarted(mediaKind string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.reviewRunning.Add(1)
	return func(outcome string) {
		m.reviewRunning.Add(-1)
		m.reviewJobs.Inc(mediaKind, outcome)
		m.reviewJobTime.Observe(time.Since(start).Seconds(), mediaKind)
	}
}

func (m *Metrics) ObserveReviewUnit(mediaKind, outcome string) {
	if m == nil {
		return
	}
	m.reviewUnits.Inc(mediaKind, outcome)
	if outcome == "ok" {
		m.reviewComments.Inc(mediaKind)
	}
}
