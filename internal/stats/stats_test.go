package stats

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/faultlinehq/faultline/pkg/types"
)

func TestRecordAndMerge(t *testing.T) {
	run := New(types.StrategyAggressive)

	call := New(types.StrategyAggressive)
	call.Record(100 * time.Millisecond)
	call.Record(200 * time.Millisecond)
	call.TotalErrors = 1
	call.TotalSuccess = 1

	run.Merge(call)
	run.Merge(nil)

	if run.TotalCalls != 2 {
		t.Fatalf("expected 2 calls, got %d", run.TotalCalls)
	}
	if run.TotalTime != 300*time.Millisecond {
		t.Fatalf("unexpected total time: %s", run.TotalTime)
	}
	if len(run.ResponseTimes) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(run.ResponseTimes))
	}
	if run.TotalErrors != 1 || run.TotalSuccess != 1 {
		t.Fatalf("counters not merged: %+v", run)
	}
}

func TestMeanAndStddev(t *testing.T) {
	s := New(types.StrategyPatient)
	for _, d := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond} {
		s.Record(d)
	}

	if got := s.Mean(); got != 200*time.Millisecond {
		t.Fatalf("expected mean 200ms, got %s", got)
	}

	// Sample stddev of {100, 200, 300}ms is 100ms.
	got := s.Stddev()
	if math.Abs(float64(got-100*time.Millisecond)) > float64(time.Millisecond) {
		t.Fatalf("expected stddev ~100ms, got %s", got)
	}
}

func TestStddevFewerThanTwoSamples(t *testing.T) {
	s := New(types.StrategyPatient)
	if s.Stddev() != 0 {
		t.Fatalf("expected 0 stddev for empty stats")
	}
	s.Record(150 * time.Millisecond)
	if s.Stddev() != 0 {
		t.Fatalf("expected 0 stddev for a single sample")
	}
}

func TestPercentileDoesNotMutateSamples(t *testing.T) {
	s := New(types.StrategyAggressive)
	s.Record(300 * time.Millisecond)
	s.Record(100 * time.Millisecond)
	s.Record(200 * time.Millisecond)

	if got := s.Percentile(50); got != 200*time.Millisecond {
		t.Fatalf("expected p50 200ms, got %s", got)
	}
	if s.ResponseTimes[0] != 300*time.Millisecond {
		t.Fatalf("percentile must not reorder samples")
	}
	if got := s.Percentile(100); got != 300*time.Millisecond {
		t.Fatalf("expected p100 300ms, got %s", got)
	}
	if got := s.Percentile(0); got != 100*time.Millisecond {
		t.Fatalf("expected p0 100ms, got %s", got)
	}
}

func TestSummarizeEmptyRun(t *testing.T) {
	summary := Summarize(New(types.StrategyAggressive))

	if summary.TotalCalls != 0 || summary.TotalErrors != 0 || summary.TotalSuccess != 0 {
		t.Fatalf("expected zero counters: %+v", summary)
	}
	for name, v := range map[string]float64{
		"mean":   summary.MeanMillis,
		"stddev": summary.StddevMillis,
		"min":    summary.MinMillis,
		"max":    summary.MaxMillis,
		"p50":    summary.P50Millis,
		"p75":    summary.P75Millis,
		"p95":    summary.P95Millis,
		"p99":    summary.P99Millis,
	} {
		if v != 0 {
			t.Fatalf("expected zero %s on empty run, got %f", name, v)
		}
	}
}

func TestSummarizePopulatedRun(t *testing.T) {
	s := New(types.StrategyPatient)
	for i := 1; i <= 100; i++ {
		s.Record(time.Duration(i) * time.Millisecond)
	}
	s.TotalSuccess = 90
	s.TotalErrors = 10

	summary := Summarize(s)
	if summary.MinMillis != 1 || summary.MaxMillis != 100 {
		t.Fatalf("unexpected min/max: %f/%f", summary.MinMillis, summary.MaxMillis)
	}
	if summary.P95Millis != 96 {
		t.Fatalf("unexpected p95: %f", summary.P95Millis)
	}
	if summary.SuccessRate != 0.9 {
		t.Fatalf("unexpected success rate: %f", summary.SuccessRate)
	}
	if summary.Strategy != types.StrategyPatient {
		t.Fatalf("strategy lost in summary")
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	a := New(types.StrategyAggressive)
	a.Record(100 * time.Millisecond)
	a.Record(150 * time.Millisecond)
	a.TotalSuccess = 1

	b := New(types.StrategyPatient)
	b.Record(400 * time.Millisecond)
	b.TotalSuccess = 1

	ab, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare a,b: %v", err)
	}
	ba, err := Compare(b, a)
	if err != nil {
		t.Fatalf("compare b,a: %v", err)
	}

	if ab.TotalTimeDiffMillis != -ba.TotalTimeDiffMillis {
		t.Fatalf("total time diff not antisymmetric: %f vs %f", ab.TotalTimeDiffMillis, ba.TotalTimeDiffMillis)
	}
	if ab.SuccessRateDiff != -ba.SuccessRateDiff {
		t.Fatalf("success rate diff not antisymmetric")
	}
	if ab.MeanDiffMillis != -ba.MeanDiffMillis {
		t.Fatalf("mean diff not antisymmetric")
	}
	if ab.Base != types.StrategyAggressive || ab.Other != types.StrategyPatient {
		t.Fatalf("operands mislabeled: %+v", ab)
	}
}

func TestCompareZeroCallsFails(t *testing.T) {
	a := New(types.StrategyAggressive)
	b := New(types.StrategyPatient)
	b.Record(time.Millisecond)

	if _, err := Compare(a, b); !errors.Is(err, ErrNoCalls) {
		t.Fatalf("expected ErrNoCalls, got %v", err)
	}
	if _, err := Compare(b, a); !errors.Is(err, ErrNoCalls) {
		t.Fatalf("expected ErrNoCalls, got %v", err)
	}
}
