package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunHealthyTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var out bytes.Buffer
	err := Run(context.Background(), []string{"-target", server.URL}, Dependencies{
		HTTPClient: server.Client(),
		Out:        &out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.ConfigValid || !report.TargetReachable {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if report.TargetURL != server.URL {
		t.Fatalf("target override lost: %q", report.TargetURL)
	}
}

func TestRunUnreachableTarget(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), []string{"-target", "http://127.0.0.1:1"}, Dependencies{
		Out: &out,
	})
	if err == nil {
		t.Fatalf("expected failure for dead target")
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TargetReachable {
		t.Fatalf("expected unreachable target, got %+v", report)
	}
	if report.TargetError == "" {
		t.Fatalf("expected probe error in report")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Setenv("FAULTLINE_RUN__MAX_RETRIES", "0")

	var out bytes.Buffer
	err := Run(context.Background(), nil, Dependencies{Out: &out})
	if err == nil {
		t.Fatalf("expected failure for invalid config")
	}

	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ConfigValid || report.ConfigError == "" {
		t.Fatalf("expected config failure in report, got %+v", report)
	}
}
