package engine

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates the shared HTTP client used for experiment traffic.
// The client carries no global timeout; each attempt enforces its own
// deadline through its request context. workers sizes the idle connection
// pool for concurrent runs.
func NewHTTPClient(workers int) *http.Client {
	if workers < 1 {
		workers = 1
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
