package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faultlinehq/faultline/internal/engine"
	"github.com/faultlinehq/faultline/internal/events"
	"github.com/faultlinehq/faultline/pkg/types"
)

func okHandler(counter *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if counter != nil {
			counter.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"scenario":"normal","message":"Hello, World!","response_time_ms":5}`))
	}
}

func newTestRunner(t *testing.T, server *httptest.Server, cfg Config) *Runner {
	t.Helper()
	eng, err := engine.New(engine.Config{Timeouts: engine.Timeouts{
		Aggressive: 250 * time.Millisecond,
		Patient:    5 * time.Second,
	}}, engine.Dependencies{HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = server.URL
	}
	r, err := New(cfg, Dependencies{Engine: eng})
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return r
}

func TestRunStrategyIssuesExactlyConfiguredCalls(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(okHandler(&requests))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 25, MaxRetries: 3})
	total, err := r.RunStrategy(context.Background(), types.StrategyAggressive)
	if err != nil {
		t.Fatalf("RunStrategy: %v", err)
	}

	if requests.Load() != 25 {
		t.Fatalf("expected 25 requests, got %d", requests.Load())
	}
	if total.TotalCalls != 25 || total.TotalSuccess != 25 || total.TotalErrors != 0 {
		t.Fatalf("unexpected totals: %+v", total)
	}
	if len(total.ResponseTimes) != 25 {
		t.Fatalf("expected 25 samples, got %d", len(total.ResponseTimes))
	}
}

func TestRunStrategyConcurrentPreservesTotals(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(okHandler(&requests))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 40, MaxRetries: 2, Workers: 8})
	total, err := r.RunStrategy(context.Background(), types.StrategyPatient)
	if err != nil {
		t.Fatalf("RunStrategy: %v", err)
	}

	if requests.Load() != 40 {
		t.Fatalf("expected 40 requests, got %d", requests.Load())
	}
	if total.TotalCalls != 40 || total.TotalSuccess != 40 {
		t.Fatalf("unexpected totals: %+v", total)
	}
}

func TestRunStrategyFoldsFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every third request succeeds.
		if requests.Add(1)%3 == 0 {
			okHandler(nil)(w, r)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 5, MaxRetries: 3})
	total, err := r.RunStrategy(context.Background(), types.StrategyPatient)
	if err != nil {
		t.Fatalf("RunStrategy: %v", err)
	}

	if total.TotalSuccess == 0 {
		t.Fatalf("expected some successes, got %+v", total)
	}
	if total.TotalErrors == 0 {
		t.Fatalf("expected retries to be counted as errors, got %+v", total)
	}
	// Every received response contributes a sample.
	if total.TotalCalls != len(total.ResponseTimes) {
		t.Fatalf("sample count %d does not match total calls %d", len(total.ResponseTimes), total.TotalCalls)
	}
}

func TestRunStrategyZeroCalls(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 0, MaxRetries: 1})
	total, err := r.RunStrategy(context.Background(), types.StrategyAggressive)
	if err != nil {
		t.Fatalf("RunStrategy: %v", err)
	}
	if total.TotalCalls != 0 || total.TotalErrors != 0 || total.TotalSuccess != 0 {
		t.Fatalf("expected empty totals, got %+v", total)
	}
}

func TestRunStrategyPacedRunReportsCancellation(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	// Pacing at 5 calls/s puts ~200ms gaps between call starts, so the
	// cancellation lands while the limiter is blocking between calls.
	r := newTestRunner(t, server, Config{Calls: 10, MaxRetries: 1, RatePerSecond: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	total, err := r.RunStrategy(ctx, types.StrategyPatient)
	if err == nil {
		t.Fatalf("a run cut short by cancellation must not report success")
	}
	if !strings.Contains(err.Error(), "aborted") {
		t.Fatalf("expected an aborted-run error, got %v", err)
	}
	if total.TotalCalls >= 10 {
		t.Fatalf("expected a truncated run, got %d calls", total.TotalCalls)
	}
}

func TestRunStrategyRejectsUnknownStrategy(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 1, MaxRetries: 1})
	if _, err := r.RunStrategy(context.Background(), types.Strategy(42)); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestRunStrategyEmitsRunEvents(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	recorder := &events.CaptureRecorder{}
	eng, err := engine.New(engine.Config{Timeouts: engine.DefaultTimeouts()}, engine.Dependencies{HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	r, err := New(Config{TargetURL: server.URL, Calls: 2, MaxRetries: 1}, Dependencies{
		Engine:   eng,
		Recorder: recorder,
	})
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}

	if _, err := r.RunStrategy(context.Background(), types.StrategyPatient); err != nil {
		t.Fatalf("RunStrategy: %v", err)
	}

	if got := len(recorder.ByType(types.EventRunStart)); got != 1 {
		t.Fatalf("expected 1 RunStart event, got %d", got)
	}
	if got := len(recorder.ByType(types.EventRunComplete)); got != 1 {
		t.Fatalf("expected 1 RunComplete event, got %d", got)
	}
}

func TestRunAllBuildsFullReport(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 4, MaxRetries: 2})
	report, err := r.RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if report.ID == "" {
		t.Fatalf("expected a generated experiment ID")
	}
	if len(report.Summaries) != 2 {
		t.Fatalf("expected one summary per strategy, got %d", len(report.Summaries))
	}
	if len(report.Deltas) != 1 {
		t.Fatalf("expected one pairwise delta, got %d", len(report.Deltas))
	}
	delta := report.Deltas[0]
	if delta.Base != types.StrategyAggressive || delta.Other != types.StrategyPatient {
		t.Fatalf("unexpected delta orientation: %+v", delta)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("finished before started: %+v", report)
	}
	for _, summary := range report.Summaries {
		if summary.TotalCalls != 4 || summary.TotalSuccess != 4 {
			t.Fatalf("unexpected summary: %+v", summary)
		}
	}
}

func TestRunAllSkipsDeltasForEmptyRuns(t *testing.T) {
	server := httptest.NewServer(okHandler(nil))
	defer server.Close()

	r := newTestRunner(t, server, Config{Calls: 0, MaxRetries: 1})
	report, err := r.RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(report.Deltas) != 0 {
		t.Fatalf("zero-call runs must not produce deltas, got %+v", report.Deltas)
	}
	if len(report.Summaries) != 2 {
		t.Fatalf("summaries are still reported for empty runs, got %d", len(report.Summaries))
	}
}

func TestNewValidatesConfig(t *testing.T) {
	eng, err := engine.New(engine.Config{Timeouts: engine.DefaultTimeouts()}, engine.Dependencies{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing target", Config{Calls: 1, MaxRetries: 1}},
		{"negative calls", Config{TargetURL: "http://localhost", Calls: -1, MaxRetries: 1}},
		{"zero retries", Config{TargetURL: "http://localhost", Calls: 1, MaxRetries: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, Dependencies{Engine: eng}); err == nil {
				t.Fatalf("expected config validation error")
			}
		})
	}

	if _, err := New(Config{TargetURL: "http://localhost", Calls: 1, MaxRetries: 1}, Dependencies{}); err == nil {
		t.Fatalf("expected error when engine is missing")
	}
}
