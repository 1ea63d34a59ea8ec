package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/faultlinehq/faultline/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Printer renders an experiment report for the terminal.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Print renders the full report: run header, one summary block per
// strategy, and the pairwise comparisons.
func (p *Printer) Print(report *types.ExperimentReport) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, headerStyle.Render("  EXPERIMENT "+report.ID))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("target:"), valueStyle.Render(report.TargetURL))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("calls per strategy:"),
		valueStyle.Render(fmt.Sprintf("%d (max %d attempts each, %d workers)", report.Calls, report.MaxRetries, report.Workers)))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("duration:"),
		valueStyle.Render(formatMillis(float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds()))))
	fmt.Fprintln(p.out)

	for _, summary := range report.Summaries {
		p.printSummary(summary)
	}

	for _, delta := range report.Deltas {
		p.printDelta(delta)
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) printSummary(s types.RunSummary) {
	fmt.Fprintln(p.out, headerStyle.Render("  "+strings.ToUpper(s.Strategy.String())))
	fmt.Fprintf(p.out, "  calls: %d  success: %d  errors: %d  success rate: %s\n",
		s.TotalCalls, s.TotalSuccess, s.TotalErrors, formatRate(s.SuccessRate))

	if s.TotalCalls == 0 {
		fmt.Fprintln(p.out, labelStyle.Render("  no responses received"))
		fmt.Fprintln(p.out)
		return
	}

	fmt.Fprintln(p.out, labelStyle.Render("     mean    stddev       min       max       p50       p75       p95       p99"))
	fmt.Fprintf(p.out, "  %s  %s  %s  %s  %s  %s  %s  %s\n",
		formatMillisFixed(s.MeanMillis),
		formatMillisFixed(s.StddevMillis),
		formatMillisFixed(s.MinMillis),
		formatMillisFixed(s.MaxMillis),
		formatMillisFixed(s.P50Millis),
		formatMillisFixed(s.P75Millis),
		formatMillisFixed(s.P95Millis),
		formatMillisFixed(s.P99Millis))
	fmt.Fprintf(p.out, "  total time: %s\n", formatMillis(s.TotalTimeMillis))
	fmt.Fprintln(p.out)
}

func (p *Printer) printDelta(d types.StrategyDelta) {
	fmt.Fprintln(p.out, headerStyle.Render(fmt.Sprintf("  %s vs %s", d.Other, d.Base)))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("total time:"), signedMillis(d.TotalTimeDiffMillis))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("mean:"), signedMillis(d.MeanDiffMillis))
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render("success rate:"), signedRate(d.SuccessRateDiff))
}

func formatMillis(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.2fms", ms)
	}
	if ms < 60_000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%dm%ds", int(ms/60_000), int(ms/1000)%60)
}

func formatMillisFixed(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%6.2fms", ms)
	}
	return fmt.Sprintf("%7.2fs", ms/1000)
}

func formatRate(rate float64) string {
	text := fmt.Sprintf("%.1f%%", rate*100)
	if rate >= 0.99 {
		return goodStyle.Render(text)
	}
	if rate < 0.5 {
		return badStyle.Render(text)
	}
	return valueStyle.Render(text)
}

// signedMillis renders a delta with an explicit sign; negative means the
// second operand was faster.
func signedMillis(ms float64) string {
	text := fmt.Sprintf("%+.2fms", ms)
	if ms < 0 {
		return goodStyle.Render(text)
	}
	if ms > 0 {
		return badStyle.Render(text)
	}
	return valueStyle.Render(text)
}

func signedRate(rate float64) string {
	text := fmt.Sprintf("%+.1f%%", rate*100)
	if rate > 0 {
		return goodStyle.Render(text)
	}
	if rate < 0 {
		return badStyle.Render(text)
	}
	return valueStyle.Render(text)
}
