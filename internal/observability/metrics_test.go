package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsAreExposed(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP("/v1/audio", http.MethodPost, http.StatusOK, 10*time.Millisecond)
	m.UpstreamObserver(1)("transcribe", http.StatusOK, time.Second)
	m.ObservePoolAcquire(5 * time.Millisecond)
	m.SetPoolInUse(2)
	m.ObserveJob("completed", time.Second)
	m.ObserveStage("diarization", time.Second)
	m.IncTranscriptionFallback()

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`scribeflow_http_requests_total{method="POST",route="/v1/audio",status="200"} 1`,
		`scribeflow_inference_requests_total{device="1",endpoint="transcribe",status="200"} 1`,
		`scribeflow_pool_slots_in_use 2`,
		`scribeflow_jobs_total{outcome="completed"} 1`,
		`scribeflow_transcription_fallback_total 1`,
		`scribeflow_job_stage_duration_seconds_count{stage="diarization"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in metrics output", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/", http.MethodGet, http.StatusOK, time.Millisecond)
	m.SetPoolInUse(1)
	m.ObserveJob("failed", time.Millisecond)
	m.IncTranscriptionFallback()
}
