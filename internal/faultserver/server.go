// Package faultserver implements the probabilistic target endpoint used to
// exercise timeout strategies: mostly fast 200s, with injected intermittent
// 503s, hard 500s, and occasional responses held past any aggressive timeout.
package faultserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/faultlinehq/faultline/pkg/types"
)

const (
	ScenarioNormal            = "normal"
	ScenarioIntermittentError = "intermittent_error"
	ScenarioUnexpectedDelay   = "unexpected_delay"
	ScenarioError             = "error"
)

// Config sets the fault mix. Probabilities are cumulative draws from a single
// uniform sample, so their sum must not exceed 1; the remainder is the normal
// fast path.
type Config struct {
	IntermittentProbability float64
	DelayProbability        float64
	ErrorProbability        float64
	Delay                   time.Duration
	NormalMean              time.Duration
}

func DefaultConfig() Config {
	return Config{
		IntermittentProbability: 0.10,
		DelayProbability:        0.05,
		ErrorProbability:        0.05,
		Delay:                   10 * time.Second,
		NormalMean:              120 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	for _, p := range []float64{c.IntermittentProbability, c.DelayProbability, c.ErrorProbability} {
		if p < 0 || p > 1 {
			return fmt.Errorf("probability %v out of range [0, 1]", p)
		}
	}
	if sum := c.IntermittentProbability + c.DelayProbability + c.ErrorProbability; sum > 1 {
		return fmt.Errorf("fault probabilities sum to %v, must not exceed 1", sum)
	}
	if c.Delay < 0 {
		return errors.New("delay must not be negative")
	}
	if c.NormalMean <= 0 {
		return errors.New("normal mean delay must be positive")
	}
	return nil
}

// Server is the HTTP handler. The random source is injectable and guarded,
// so one handler can serve concurrent requests deterministically under test.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand

	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Server.
type Option func(*Server)

// WithRand replaces the random source, typically with a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(s *Server) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger attaches a logger for per-request scenario diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fault config: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		logger: zerolog.Nop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pick draws one scenario. The cumulative thresholds match the configured
// probabilities in declaration order.
func (s *Server) pick() string {
	s.mu.Lock()
	value := s.rng.Float64()
	s.mu.Unlock()

	cutoff := s.cfg.IntermittentProbability
	if value < cutoff {
		return ScenarioIntermittentError
	}
	cutoff += s.cfg.DelayProbability
	if value < cutoff {
		return ScenarioUnexpectedDelay
	}
	cutoff += s.cfg.ErrorProbability
	if value < cutoff {
		return ScenarioError
	}
	return ScenarioNormal
}

// normalDelay samples an exponentially distributed service time around the
// configured mean.
func (s *Server) normalDelay() time.Duration {
	s.mu.Lock()
	sample := s.rng.ExpFloat64()
	s.mu.Unlock()
	return time.Duration(sample * float64(s.cfg.NormalMean))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scenario := s.pick()
	s.logger.Info().Str("scenario", scenario).Msg("handling request")

	switch scenario {
	case ScenarioIntermittentError:
		writeJSON(w, http.StatusServiceUnavailable, types.ServerResponse{
			Scenario: scenario,
			Message:  "Service temporarily unavailable",
		})

	case ScenarioUnexpectedDelay:
		if err := s.sleep(r.Context(), s.cfg.Delay); err != nil {
			// Client gave up mid-delay, nothing left to send.
			return
		}
		writeJSON(w, http.StatusOK, types.ServerResponse{
			Scenario:     scenario,
			Message:      "Hello, World!",
			DelaySeconds: int(s.cfg.Delay / time.Second),
		})

	case ScenarioError:
		writeJSON(w, http.StatusInternalServerError, types.ServerResponse{
			Scenario: scenario,
			Message:  "Internal Server Error",
		})

	default:
		delay := s.normalDelay()
		if err := s.sleep(r.Context(), delay); err != nil {
			return
		}
		ms := math.Round(float64(delay)/float64(time.Millisecond)*100) / 100
		writeJSON(w, http.StatusOK, types.ServerResponse{
			Scenario:           scenario,
			Message:            "Hello, World!",
			ResponseTimeMillis: ms,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body types.ServerResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Run serves the handler on addr until ctx is canceled, then drains with a
// short shutdown grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", addr).Msg("fault server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown fault server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
