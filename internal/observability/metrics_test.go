package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	m.ObserveLLMRequest("gpt", "/v1/responses", "200", time.Second, 1, 2)
	m.ObserveReviewUnit("video", "ok")
	m.ReviewJobStarted("video")("done")
	m.APIInflight(1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus on nil: %v", err)
	}
}

func TestReviewMetrics(t *testing.T) {
	m := newMetrics()
	done := m.ReviewJobStarted("storyboard")
	if got := m.reviewRunning.Value(); got != 1 {
		t.Fatalf("running: want=1 got=%v", got)
	}
	m.ObserveReviewUnit("storyboard", "ok")
	m.ObserveReviewUnit("storyboard", "reasoning_timeout")
	m.ObserveReviewUnit("storyboard", "ok")
	done("done")

	if got := m.reviewRunning.Value(); got != 0 {
		t.Fatalf("running after done: want=0 got=%v", got)
	}
	if got := m.reviewUnits.Value("storyboard", "ok"); got != 2 {
		t.Fatalf("ok units: want=2 got=%v", got)
	}
	if got := m.reviewComments.Value("storyboard"); got != 2 {
		t.Fatalf("comments: want=2 got=%v", got)
	}
	if got := m.reviewJobs.Value("storyboard", "done"); got != 1 {
		t.Fatalf("jobs: want=1 got=%v", got)
	}
}

func TestPrometheusExposition(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("POST", "/api/review/async", 202, 30*time.Millisecond)
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`vr_api_requests_total{method="POST",route="/api/review/async",status="202"} 1`,
		`vr_api_request_duration_seconds_bucket{method="POST",route="/api/review/async",le="0.05"} 1`,
		`vr_api_request_duration_seconds_count{method="POST",route="/api/review/async"} 1`,
		"# TYPE vr_review_jobs_running gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`, ""})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: %s", got)
	}
	if got := withLe("", "+Inf"); got != `{le="+Inf"}` {
		t.Fatalf("withLe empty: %s", got)
	}
}

func TestOtelHeaders(t *testing.T) {
	h := otelHeaders("api-key=abc, x = y ,broken,=z")
	if len(h) != 2 || h["api-key"] != "abc" || h["x"] != "y" {
		t.Fatalf("otelHeaders: %v", h)
	}
	if otelHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
