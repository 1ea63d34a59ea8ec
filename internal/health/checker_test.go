package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWaitReadyImmediate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(server.Client(), WithWaitTimeout(time.Second))
	if err := checker.WaitReady(context.Background(), server.URL); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
}

func TestWaitReadyAnyStatusCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	checker := NewChecker(server.Client(), WithWaitTimeout(time.Second))
	if err := checker.WaitReady(context.Background(), server.URL); err != nil {
		t.Fatalf("a 503 still proves the target is up: %v", err)
	}
}

func TestWaitReadyPollsUntilServerComesUp(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	// Bring the server up after a short delay on the now-free port.
	go func() {
		time.Sleep(300 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})}
		go srv.Serve(ln)
	}()

	checker := NewChecker(&http.Client{Timeout: time.Second},
		WithPollInterval(50*time.Millisecond),
		WithWaitTimeout(5*time.Second))
	if err := checker.WaitReady(context.Background(), "http://"+addr); err != nil {
		t.Fatalf("WaitReady never saw the late server: %v", err)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	checker := NewChecker(&http.Client{Timeout: 100 * time.Millisecond},
		WithPollInterval(50*time.Millisecond),
		WithWaitTimeout(300*time.Millisecond))

	start := time.Now()
	err := checker.WaitReady(context.Background(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatalf("expected timeout against a dead port")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("WaitReady overshot its budget: %s", elapsed)
	}
}
