package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/faultlinehq/faultline/internal/engine"
	"github.com/faultlinehq/faultline/internal/events"
	"github.com/faultlinehq/faultline/internal/stats"
	"github.com/faultlinehq/faultline/pkg/types"
)

// Config controls how an experiment exercises the target.
type Config struct {
	TargetURL  string
	Calls      int
	MaxRetries int
	// Workers caps concurrent logical calls. 1 preserves strict sequential
	// execution; higher values interleave calls without changing the
	// per-strategy totals.
	Workers int
	// RatePerSecond paces call starts. Zero disables pacing.
	RatePerSecond float64
}

func (c Config) validate() error {
	if c.TargetURL == "" {
		return errors.New("target url is required")
	}
	if c.Calls < 0 {
		return fmt.Errorf("calls must not be negative, got %d", c.Calls)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

// Dependencies carries the runner's collaborators.
type Dependencies struct {
	Engine   *engine.Engine
	Logger   *zerolog.Logger
	Recorder events.Recorder
	Now      func() time.Time
	NewID    func() string
}

// Runner drives a fixed number of logical calls per strategy and folds the
// per-call statistics into strategy totals.
type Runner struct {
	cfg      Config
	engine   *engine.Engine
	logger   zerolog.Logger
	recorder events.Recorder
	now      func() time.Time
	newID    func() string
}

func New(cfg Config, deps Dependencies) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if deps.Engine == nil {
		return nil, errors.New("runner requires an engine")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	r := &Runner{
		cfg:      cfg,
		engine:   deps.Engine,
		logger:   zerolog.Nop(),
		recorder: events.NoopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if deps.Logger != nil {
		r.logger = *deps.Logger
	}
	if deps.Recorder != nil {
		r.recorder = deps.Recorder
	}
	if deps.Now != nil {
		r.now = deps.Now
	}
	if deps.NewID != nil {
		r.newID = deps.NewID
	}
	return r, nil
}

// RunStrategy executes the configured number of logical calls under one
// timeout strategy. Individual call failures are folded into the totals;
// only context cancellation aborts the run.
func (r *Runner) RunStrategy(ctx context.Context, strategy types.Strategy) (*stats.CallStats, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	r.recorder.Record(types.Event{
		Type:      types.EventRunStart,
		Timestamp: r.now(),
		Strategy:  strategy.String(),
		Details:   map[string]any{"calls": r.cfg.Calls, "workers": r.cfg.Workers},
	})
	r.logger.Info().
		Str("strategy", strategy.String()).
		Int("calls", r.cfg.Calls).
		Int("workers", r.cfg.Workers).
		Msg("starting run")

	collector := NewCollector(strategy)

	var limiter *rate.Limiter
	if r.cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RatePerSecond), 1)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.Workers)

	var waitErr error
	for i := 0; i < r.cfg.Calls; i++ {
		if limiter != nil {
			if err := limiter.Wait(groupCtx); err != nil {
				waitErr = err
				break
			}
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			result, callStats := r.engine.AttemptCall(groupCtx, r.cfg.TargetURL, r.cfg.MaxRetries, strategy)
			collector.Fold(callStats)
			if result.Err != nil && groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			return nil
		})
	}

	err := group.Wait()
	if err == nil {
		// A pacing wait cut short between calls still truncates the run.
		err = waitErr
	}
	total := collector.Stats()

	r.recorder.Record(types.Event{
		Type:      types.EventRunComplete,
		Timestamp: r.now(),
		Strategy:  strategy.String(),
		Details: map[string]any{
			"total_calls":   total.TotalCalls,
			"total_errors":  total.TotalErrors,
			"total_success": total.TotalSuccess,
		},
	})
	r.logger.Info().
		Str("strategy", strategy.String()).
		Int("total_calls", total.TotalCalls).
		Int("total_errors", total.TotalErrors).
		Int("total_success", total.TotalSuccess).
		Msg("run complete")

	if err != nil {
		return total, fmt.Errorf("run %s aborted: %w", strategy, err)
	}
	return total, nil
}

// RunAll executes every strategy in order and assembles the full report,
// including pairwise strategy comparisons.
func (r *Runner) RunAll(ctx context.Context, strategies []types.Strategy) (*types.ExperimentReport, error) {
	if len(strategies) == 0 {
		strategies = types.Strategies()
	}

	report := &types.ExperimentReport{
		ID:         r.newID(),
		TargetURL:  r.cfg.TargetURL,
		Calls:      r.cfg.Calls,
		MaxRetries: r.cfg.MaxRetries,
		Workers:    r.cfg.Workers,
		StartedAt:  r.now(),
	}

	totals := make([]*stats.CallStats, 0, len(strategies))
	for _, strategy := range strategies {
		total, err := r.RunStrategy(ctx, strategy)
		if err != nil {
			return nil, err
		}
		totals = append(totals, total)
		report.Summaries = append(report.Summaries, stats.Summarize(total))
	}

	for i := 0; i < len(totals); i++ {
		for j := i + 1; j < len(totals); j++ {
			delta, err := stats.Compare(totals[i], totals[j])
			if err != nil {
				r.logger.Warn().
					Err(err).
					Str("base", totals[i].Strategy.String()).
					Str("other", totals[j].Strategy.String()).
					Msg("skipping comparison")
				continue
			}
			report.Deltas = append(report.Deltas, delta)
		}
	}

	report.FinishedAt = r.now()
	return report, nil
}
