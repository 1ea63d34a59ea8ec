package types

import "time"

// RunSummary captures the derived statistics for one experiment run. All
// timing fields are float64 milliseconds; they are recomputed from the raw
// response-time samples whenever a summary is built.
type RunSummary struct {
	Strategy        Strategy `json:"strategy" yaml:"strategy"`
	TotalCalls      int      `json:"total_calls" yaml:"total_calls"`
	TotalErrors     int      `json:"total_errors" yaml:"total_errors"`
	TotalSuccess    int      `json:"total_success" yaml:"total_success"`
	TotalTimeMillis float64  `json:"total_time_ms" yaml:"total_time_ms"`
	MeanMillis      float64  `json:"mean_ms" yaml:"mean_ms"`
	StddevMillis    float64  `json:"stddev_ms" yaml:"stddev_ms"`
	MinMillis       float64  `json:"min_ms" yaml:"min_ms"`
	MaxMillis       float64  `json:"max_ms" yaml:"max_ms"`
	P50Millis       float64  `json:"p50_ms" yaml:"p50_ms"`
	P75Millis       float64  `json:"p75_ms" yaml:"p75_ms"`
	P95Millis       float64  `json:"p95_ms" yaml:"p95_ms"`
	P99Millis       float64  `json:"p99_ms" yaml:"p99_ms"`
	SuccessRate     float64  `json:"success_rate" yaml:"success_rate"`
}

// StrategyDelta compares two runs. Every diff is other minus base, so
// swapping the operands negates each field.
type StrategyDelta struct {
	Base                Strategy `json:"base" yaml:"base"`
	Other               Strategy `json:"other" yaml:"other"`
	TotalTimeDiffMillis float64  `json:"total_time_diff_ms" yaml:"total_time_diff_ms"`
	SuccessRateDiff     float64  `json:"success_rate_diff" yaml:"success_rate_diff"`
	MeanDiffMillis      float64  `json:"mean_diff_ms" yaml:"mean_diff_ms"`
}

// ExperimentReport is the exported record of a full experiment: one summary
// per strategy plus a delta for every ordered pair of strategy runs.
type ExperimentReport struct {
	ID         string          `json:"id" yaml:"id"`
	TargetURL  string          `json:"target_url" yaml:"target_url"`
	Calls      int             `json:"calls" yaml:"calls"`
	MaxRetries int             `json:"max_retries" yaml:"max_retries"`
	Workers    int             `json:"workers" yaml:"workers"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Summaries  []RunSummary    `json:"summaries" yaml:"summaries"`
	Deltas     []StrategyDelta `json:"deltas" yaml:"deltas"`
}
