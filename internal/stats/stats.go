package stats

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/faultlinehq/faultline/pkg/types"
)

// ErrNoCalls is returned by Compare when either run recorded zero calls and
// a success rate cannot be formed.
var ErrNoCalls = errors.New("cannot compare runs with zero calls")

// CallStats accumulates attempt-level counters and timings. An instance is
// created empty per logical call and again per run (the fold target); it is
// mutated only by its owner. Derived values are pure functions of
// ResponseTimes and are recomputed on every read.
//
// TotalCalls counts received responses, so it need not equal
// TotalSuccess + TotalErrors: retried attempts are counted individually and
// transport failures produce no timed sample.
type CallStats struct {
	Strategy      types.Strategy
	TotalCalls    int
	TotalErrors   int
	TotalSuccess  int
	TotalTime     time.Duration
	ResponseTimes []time.Duration
}

// New returns an empty aggregate bound to a strategy.
func New(strategy types.Strategy) *CallStats {
	return &CallStats{Strategy: strategy}
}

// Record adds one received-response sample.
func (s *CallStats) Record(elapsed time.Duration) {
	s.TotalCalls++
	s.ResponseTimes = append(s.ResponseTimes, elapsed)
	s.TotalTime += elapsed
}

// Merge folds a per-call aggregate into a run-level one: counters are
// summed, samples concatenated.
func (s *CallStats) Merge(other *CallStats) {
	if other == nil {
		return
	}
	s.TotalCalls += other.TotalCalls
	s.TotalErrors += other.TotalErrors
	s.TotalSuccess += other.TotalSuccess
	s.TotalTime += other.TotalTime
	s.ResponseTimes = append(s.ResponseTimes, other.ResponseTimes...)
}

// Mean returns the average sample, or 0 for an empty sequence.
func (s *CallStats) Mean() time.Duration {
	if len(s.ResponseTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, rt := range s.ResponseTimes {
		total += rt
	}
	return total / time.Duration(len(s.ResponseTimes))
}

// Stddev returns the sample standard deviation, or 0 with fewer than two
// samples.
func (s *CallStats) Stddev() time.Duration {
	n := len(s.ResponseTimes)
	if n < 2 {
		return 0
	}
	mean := float64(s.Mean())
	var sum float64
	for _, rt := range s.ResponseTimes {
		diff := float64(rt) - mean
		sum += diff * diff
	}
	return time.Duration(math.Sqrt(sum / float64(n-1)))
}

// Percentile returns the p-th percentile of the samples, or 0 for an empty
// sequence. The receiver's sample order is left untouched.
func (s *CallStats) Percentile(p int) time.Duration {
	if len(s.ResponseTimes) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(s.ResponseTimes))
	copy(sorted, s.ResponseTimes)
	slices.Sort(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// SuccessRate returns TotalSuccess/TotalCalls, or 0 for an empty run.
func (s *CallStats) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.TotalSuccess) / float64(s.TotalCalls)
}

// Summarize derives the reportable statistics from the raw samples.
func Summarize(s *CallStats) types.RunSummary {
	summary := types.RunSummary{
		Strategy:        s.Strategy,
		TotalCalls:      s.TotalCalls,
		TotalErrors:     s.TotalErrors,
		TotalSuccess:    s.TotalSuccess,
		TotalTimeMillis: millis(s.TotalTime),
		MeanMillis:      millis(s.Mean()),
		StddevMillis:    millis(s.Stddev()),
		SuccessRate:     s.SuccessRate(),
	}

	if len(s.ResponseTimes) == 0 {
		return summary
	}

	sorted := make([]time.Duration, len(s.ResponseTimes))
	copy(sorted, s.ResponseTimes)
	slices.Sort(sorted)

	summary.MinMillis = millis(sorted[0])
	summary.MaxMillis = millis(sorted[len(sorted)-1])
	summary.P50Millis = millis(percentileSorted(sorted, 50))
	summary.P75Millis = millis(percentileSorted(sorted, 75))
	summary.P95Millis = millis(percentileSorted(sorted, 95))
	summary.P99Millis = millis(percentileSorted(sorted, 99))
	return summary
}

// Compare reports other minus base for total time, success rate, and mean
// response time. Both runs must contain at least one call.
func Compare(base, other *CallStats) (types.StrategyDelta, error) {
	if base.TotalCalls == 0 || other.TotalCalls == 0 {
		return types.StrategyDelta{}, ErrNoCalls
	}
	return types.StrategyDelta{
		Base:                base.Strategy,
		Other:               other.Strategy,
		TotalTimeDiffMillis: millis(other.TotalTime) - millis(base.TotalTime),
		SuccessRateDiff:     other.SuccessRate() - base.SuccessRate(),
		MeanDiffMillis:      millis(other.Mean()) - millis(base.Mean()),
	}, nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
