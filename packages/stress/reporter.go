package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter handles output for stress runs
type Reporter struct {
	writer  io.Writer
	noColor bool
	verbose bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithVerbose adds the per-operation breakdown to the summary
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.green = color.New(color.FgGreen)
	r.red = color.New(color.FgRed)
	r.yellow = color.New(color.FgYellow)
	r.cyan = color.New(color.FgCyan)
	r.bold = color.New(color.Bold)
	if r.noColor {
		for _, c := range []*color.Color{r.green, r.red, r.yellow, r.cyan, r.bold} {
			c.DisableColor()
		}
	}
	return r
}

// Header prints what the run is about to do
func (r *Reporter) Header(config *Config) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "hitenv stress")

	var details []string
	if config.Rate > 0 {
		details = append(details, fmt.Sprintf("Target: %.0f ops/s", config.Rate))
	} else {
		details = append(details, "Target: unlimited")
	}
	details = append(details, fmt.Sprintf("Duration: %s", config.Duration))
	details = append(details, fmt.Sprintf("Workers: %d", config.Workers))
	details = append(details, fmt.Sprintf("Rows: %d", config.Rows))

	fmt.Fprintf(r.writer, "%s\n", strings.Join(details, " | "))
	r.cyan.Fprintf(r.writer, "Mix: %s\n", FormatWeights(config.Weights))
	fmt.Fprintln(r.writer)
}

// Summary prints the final summary
func (r *Reporter) Summary(res *Result) {
	s := res.Summary

	r.bold.Fprintln(r.writer, "STRESS SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprintf(r.writer, "Total:      ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(s.Total))
	fmt.Fprintf(r.writer, " operations (%.1f ops/s)\n", s.OPS)

	fmt.Fprintf(r.writer, "Applied:    ")
	r.green.Fprintf(r.writer, "%s\n", formatNumber(s.Success))

	fmt.Fprintf(r.writer, "Rejected:   ")
	if s.Rejected > 0 {
		r.yellow.Fprintf(r.writer, "%s", formatNumber(s.Rejected))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(s.Rejected))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.RejectedRate*100)

	fmt.Fprintf(r.writer, "Failed:     ")
	if s.Failed > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(s.Failed))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(s.Failed))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.ErrorRate*100)

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(s.P50),
		formatLatencyMs(s.P95),
		formatLatencyMs(s.P99),
		formatLatencyMs(s.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(s.Min),
		formatLatencyMs(s.Mean),
		formatLatencyMs(s.StdDev))

	if r.verbose && len(s.Breakdown) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "PER-OPERATION BREAKDOWN")
		for _, op := range sortedOps(s.Breakdown) {
			b := s.Breakdown[op]
			fmt.Fprintf(r.writer, "  %s:\n", op)
			fmt.Fprintf(r.writer, "    Total: %s | Applied: %s | Rejected: %s | Failed: %s\n",
				formatNumber(b.Total), formatNumber(b.Success), formatNumber(b.Rejected), formatNumber(b.Failed))
			fmt.Fprintf(r.writer, "    p50: %s | p95: %s | p99: %s\n",
				formatLatency(b.P50), formatLatency(b.P95), formatLatency(b.P99))
		}
	}

	fmt.Fprintln(r.writer)
	if res.InvariantErr != nil {
		r.red.Fprintf(r.writer, "✗ group rules broken: %v\n", res.InvariantErr)
	} else {
		r.green.Fprintln(r.writer, "✓ group rules held")
	}

	if len(res.Thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range res.Thresholds {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}
	}
	fmt.Fprintln(r.writer)
}

// JSONSummary outputs the result as JSON
func (r *Reporter) JSONSummary(res *Result) error {
	s := res.Summary
	output := map[string]any{
		"duration":      s.Duration.String(),
		"environmentId": res.EnvironmentID,
		"passed":        res.Passed,
		"operations": map[string]any{
			"total":    s.Total,
			"applied":  s.Success,
			"rejected": s.Rejected,
			"failed":   s.Failed,
		},
		"rates": map[string]any{
			"ops":          s.OPS,
			"rejectedRate": s.RejectedRate,
			"errorRate":    s.ErrorRate,
		},
		"latencyUs": map[string]any{
			"p50":    s.P50.Microseconds(),
			"p95":    s.P95.Microseconds(),
			"p99":    s.P99.Microseconds(),
			"min":    s.Min.Microseconds(),
			"max":    s.Max.Microseconds(),
			"mean":   s.Mean.Microseconds(),
			"stddev": s.StdDev.Microseconds(),
		},
	}
	if res.InvariantErr != nil {
		output["invariantError"] = res.InvariantErr.Error()
	}

	if len(res.Thresholds) > 0 {
		thresholds := make([]map[string]any, len(res.Thresholds))
		for i, tr := range res.Thresholds {
			thresholds[i] = map[string]any{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = thresholds
	}

	if len(s.Breakdown) > 0 {
		breakdown := make(map[string]any, len(s.Breakdown))
		for op, b := range s.Breakdown {
			breakdown[string(op)] = map[string]any{
				"total":    b.Total,
				"applied":  b.Success,
				"rejected": b.Rejected,
				"failed":   b.Failed,
				"p50Us":    b.P50.Microseconds(),
				"p95Us":    b.P95.Microseconds(),
				"p99Us":    b.P99.Microseconds(),
				"meanUs":   b.Mean.Microseconds(),
			}
		}
		output["breakdown"] = breakdown
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// Error prints an error message
func (r *Reporter) Error(format string, args ...any) {
	r.red.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

// formatLatency formats latency for display
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatLatencyMs formats latency in milliseconds
func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with commas
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	result := make([]byte, 0, len(s)+(len(s)-1)/3)

	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}

	return string(result)
}
