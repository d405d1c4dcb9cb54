// Package metrics turns stress run results into metric samples and writes
// them in the Prometheus text format.
package metrics

import (
	"sort"

	"github.com/abdul-hamid-achik/hitenv/packages/stress"
)

// Metric represents a single metric data point
type Metric struct {
	Name   string
	Help   string
	Type   MetricType
	Value  float64
	Labels map[string]string
}

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
)

const prefix = "hitenv_stress_"

// Collect flattens a stress result into samples. Every sample carries the
// extra labels, e.g. {"store": "sqlite"}.
func Collect(res *stress.Result, labels map[string]string) []Metric {
	s := res.Summary
	var out []Metric
	add := func(name, help string, typ MetricType, value float64, kv ...string) {
		l := make(map[string]string, len(labels)+len(kv)/2)
		for k, v := range labels {
			l[k] = v
		}
		for i := 0; i+1 < len(kv); i += 2 {
			l[kv[i]] = kv[i+1]
		}
		out = append(out, Metric{Name: prefix + name, Help: help, Type: typ, Value: value, Labels: l})
	}

	const opsHelp = "Operations issued, by kind and outcome"
	ops := make([]stress.Op, 0, len(s.Breakdown))
	for op := range s.Breakdown {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, op := range ops {
		b := s.Breakdown[op]
		add("operations_total", opsHelp, Counter, float64(b.Success), "op", string(op), "outcome", "succeeded")
		add("operations_total", opsHelp, Counter, float64(b.Rejected), "op", string(op), "outcome", "rejected")
		add("operations_total", opsHelp, Counter, float64(b.Failed), "op", string(op), "outcome", "failed")
	}

	const latencyHelp = "Operation latency in seconds"
	for _, q := range []struct {
		quantile string
		seconds  float64
	}{
		{"0.5", s.P50.Seconds()},
		{"0.95", s.P95.Seconds()},
		{"0.99", s.P99.Seconds()},
		{"1", s.Max.Seconds()},
	} {
		add("latency_seconds", latencyHelp, Gauge, q.seconds, "quantile", q.quantile)
	}

	add("ops_per_second", "Operations completed per second", Gauge, s.OPS)
	add("rejected_ratio", "Share of operations rejected with a coded error", Gauge, s.RejectedRate)
	add("error_ratio", "Share of operations that failed without a code", Gauge, s.ErrorRate)
	add("duration_seconds", "Wall time of the run", Gauge, s.Duration.Seconds())

	failed := 0
	for _, t := range res.Thresholds {
		if !t.Passed {
			failed++
		}
	}
	add("thresholds_failed", "Thresholds that did not hold", Gauge, float64(failed))
	add("invariant_broken", "1 when the scratch environment broke a group rule", Gauge, boolValue(res.InvariantErr != nil))
	add("passed", "1 when the run passed", Gauge, boolValue(res.Passed))
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
