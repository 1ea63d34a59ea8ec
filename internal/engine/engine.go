package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/faultlinehq/faultline/internal/events"
	"github.com/faultlinehq/faultline/internal/stats"
	"github.com/faultlinehq/faultline/pkg/types"
)

// Timeouts is the closed strategy-to-timeout table. Both entries must be
// positive; adding a strategy means extending this struct and For.
type Timeouts struct {
	Aggressive time.Duration
	Patient    time.Duration
}

// DefaultTimeouts returns the canonical table: a short 300ms deadline for
// the aggressive strategy and a 35s one for the patient strategy.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Aggressive: 300 * time.Millisecond,
		Patient:    35 * time.Second,
	}
}

// Validate rejects non-positive timeout entries.
func (t Timeouts) Validate() error {
	if t.Aggressive <= 0 {
		return fmt.Errorf("aggressive timeout must be positive, got %s", t.Aggressive)
	}
	if t.Patient <= 0 {
		return fmt.Errorf("patient timeout must be positive, got %s", t.Patient)
	}
	return nil
}

// For resolves the per-attempt timeout for a strategy.
func (t Timeouts) For(strategy types.Strategy) (time.Duration, error) {
	switch strategy {
	case types.StrategyAggressive:
		return t.Aggressive, nil
	case types.StrategyPatient:
		return t.Patient, nil
	default:
		return 0, fmt.Errorf("no timeout configured for %s", strategy)
	}
}

// Config holds the static configuration for an Engine.
type Config struct {
	Timeouts Timeouts
}

// Dependencies allow overrides for HTTP client, clock, logging, and event
// observation. Zero values fall back to working defaults.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *zerolog.Logger
	Recorder   events.Recorder
	Now        func() time.Time
}

// Result is the terminal outcome of one logical call. Err is nil only on
// success; on failure it is ErrServerError, ErrRetryBudgetExhausted, or a
// *TransportError. The engine always returns a Result, never an escape.
type Result struct {
	Body     *types.ServerResponse
	Outcome  types.Outcome
	Attempts int
	Err      error
}

// Engine issues logical calls against a target endpoint, applying the
// per-strategy timeout and a bounded retry budget.
type Engine struct {
	httpClient *http.Client
	timeouts   Timeouts
	logger     zerolog.Logger
	recorder   events.Recorder
	now        func() time.Time
}

// New builds an Engine from configuration and dependencies.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if err := cfg.Timeouts.Validate(); err != nil {
		return nil, fmt.Errorf("timeout table: %w", err)
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(1)
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = events.NoopRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		httpClient: httpClient,
		timeouts:   cfg.Timeouts,
		logger:     logger,
		recorder:   recorder,
		now:        now,
	}, nil
}

// AttemptCall performs one logical call: up to maxRetries attempts under the
// strategy's timeout, classifying each received response. It returns the
// terminal result together with the attempt-level statistics. Attempts are
// strictly sequential; an attempt past its deadline is abandoned and counted
// as a transport failure.
func (e *Engine) AttemptCall(ctx context.Context, url string, maxRetries int, strategy types.Strategy) (Result, *stats.CallStats) {
	callStats := stats.New(strategy)

	timeout, err := e.timeouts.For(strategy)
	if err != nil {
		return Result{Outcome: types.OutcomeTransportFailure, Err: err}, callStats
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastOutcome types.Outcome
	for attempt := 1; attempt <= maxRetries; attempt++ {
		e.logger.Debug().
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Str("url", url).
			Dur("timeout", timeout).
			Msg("issuing request")

		status, body, elapsed, reqErr := e.doAttempt(ctx, url, timeout)
		if reqErr != nil {
			callStats.TotalErrors++
			terr := &TransportError{Attempt: attempt, Err: reqErr}
			e.record(types.EventTransportFailure, strategy, attempt, types.OutcomeTransportFailure)
			e.logger.Warn().Err(reqErr).Int("attempt", attempt).Msg("request failed")
			if attempt == maxRetries {
				return Result{Outcome: types.OutcomeTransportFailure, Attempts: attempt, Err: terr}, callStats
			}
			continue
		}

		callStats.Record(elapsed)
		outcome := classify(status, elapsed, timeout)
		lastOutcome = outcome

		switch outcome {
		case types.OutcomeSuccess:
			decoded, decErr := decodeBody(body)
			if decErr != nil {
				callStats.TotalErrors++
				terr := &TransportError{Attempt: attempt, Err: decErr}
				e.record(types.EventTransportFailure, strategy, attempt, types.OutcomeTransportFailure)
				if attempt == maxRetries {
					return Result{Outcome: types.OutcomeTransportFailure, Attempts: attempt, Err: terr}, callStats
				}
				continue
			}
			callStats.TotalSuccess++
			e.record(types.EventCallComplete, strategy, attempt, types.OutcomeSuccess)
			return Result{Body: decoded, Outcome: types.OutcomeSuccess, Attempts: attempt}, callStats

		case types.OutcomeServerError:
			callStats.TotalErrors++
			e.record(types.EventServerError, strategy, attempt, types.OutcomeServerError)
			return Result{Outcome: types.OutcomeServerError, Attempts: attempt, Err: ErrServerError}, callStats

		default:
			callStats.TotalErrors++
			if outcome.Retryable() && attempt < maxRetries {
				e.record(types.EventRetry, strategy, attempt, outcome)
				e.logger.Warn().Str("outcome", string(outcome)).Int("attempt", attempt).Msg("retrying")
			}
		}
	}

	e.record(types.EventRetryExhausted, strategy, maxRetries, lastOutcome)
	return Result{Outcome: lastOutcome, Attempts: maxRetries, Err: ErrRetryBudgetExhausted}, callStats
}

// doAttempt issues a single GET under a hard deadline. The elapsed duration
// covers request dispatch through full body receipt; it is only reported
// when a response actually arrived.
func (e *Engine) doAttempt(ctx context.Context, url string, timeout time.Duration) (status int, body []byte, elapsed time.Duration, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, e.now().Sub(start), nil
}

// classify applies the ordered outcome rule. The status-200 check runs
// before the elapsed check on purpose: a 200 that arrives past the deadline
// still counts as success. Statuses outside the collaborator contract fall
// through to the success branch, where the body decode decides.
func classify(status int, elapsed, timeout time.Duration) types.Outcome {
	switch {
	case status == http.StatusOK:
		return types.OutcomeSuccess
	case status == http.StatusServiceUnavailable:
		return types.OutcomeIntermittentError
	case elapsed > timeout:
		return types.OutcomeSlow
	case status == http.StatusInternalServerError:
		return types.OutcomeServerError
	default:
		return types.OutcomeSuccess
	}
}

func decodeBody(body []byte) (*types.ServerResponse, error) {
	var decoded types.ServerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return &decoded, nil
}

func (e *Engine) record(eventType types.EventType, strategy types.Strategy, attempt int, outcome types.Outcome) {
	e.recorder.Record(types.Event{
		Type:      eventType,
		Timestamp: e.now().UTC(),
		Strategy:  strategy.String(),
		Attempt:   attempt,
		Outcome:   outcome,
	})
}
