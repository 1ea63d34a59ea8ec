// Package diag implements the preflight check command: it validates the
// effective configuration and probes the target once, reporting what an
// experiment run would see before any load is generated.
package diag

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/faultlinehq/faultline/internal/config"
	"github.com/faultlinehq/faultline/internal/health"
)

// Dependencies provides optional overrides for testing.
type Dependencies struct {
	Now        func() time.Time
	HTTPClient *http.Client
	Out        io.Writer
}

// Report is the JSON document the check command emits.
type Report struct {
	CheckedAt       time.Time `json:"checked_at"`
	ConfigPath      string    `json:"config_path,omitempty"`
	ConfigValid     bool      `json:"config_valid"`
	ConfigError     string    `json:"config_error,omitempty"`
	TargetURL       string    `json:"target_url,omitempty"`
	TargetReachable bool      `json:"target_reachable"`
	TargetError     string    `json:"target_error,omitempty"`
	ProbeMillis     float64   `json:"probe_ms,omitempty"`
}

func (r Report) healthy() bool {
	return r.ConfigValid && r.TargetReachable
}

// Run executes the preflight workflow and returns an error when either the
// configuration or the target fails the check.
func Run(ctx context.Context, args []string, deps Dependencies) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	targetOverride := fs.String("target", "", "Override for the target URL")
	probeTimeout := fs.Duration("timeout", 3*time.Second, "HTTP timeout for the target probe")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report := Report{CheckedAt: deps.Now().UTC(), ConfigPath: *configPath}

	cfg, err := config.Load(*configPath)
	if err != nil {
		report.ConfigError = err.Error()
	} else {
		report.ConfigValid = true
		report.TargetURL = cfg.Target.URL
	}
	if *targetOverride != "" {
		report.TargetURL = *targetOverride
	}

	if report.TargetURL != "" {
		client := deps.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: *probeTimeout}
		}
		checker := health.NewChecker(client)

		probeCtx, cancel := context.WithTimeout(ctx, *probeTimeout)
		start := deps.Now()
		probeErr := checker.Probe(probeCtx, report.TargetURL)
		cancel()

		if probeErr != nil {
			report.TargetError = probeErr.Error()
		} else {
			report.TargetReachable = true
			report.ProbeMillis = float64(deps.Now().Sub(start)) / float64(time.Millisecond)
		}
	}

	enc := json.NewEncoder(deps.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write check report: %w", err)
	}

	if !report.healthy() {
		return fmt.Errorf("preflight check failed")
	}
	return nil
}
