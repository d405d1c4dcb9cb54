// Package stress drives concurrent link-group operations against a store and
// reports their latency. It is used to compare store backends and to check
// that the group rules still hold after heavy contention.
package stress

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Op names one kind of operation the runner issues.
type Op string

const (
	// OpSelect selects a random row on a linked variable
	OpSelect Op = "select"
	// OpSet overwrites the value of an unlinked variable
	OpSet Op = "set"
	// OpResolve reads the environment and resolves a template against it
	OpResolve Op = "resolve"
	// OpRow appends a row to the group and removes it again
	OpRow Op = "row"
	// OpRelink unlinks one group member and links it back
	OpRelink Op = "relink"
)

// Ops lists every operation in display order.
var Ops = []Op{OpSelect, OpSet, OpResolve, OpRow, OpRelink}

// Config holds all configuration for a stress run
type Config struct {
	Duration   time.Duration
	Rate       float64 // operations per second, 0 for as fast as possible
	Workers    int     // max concurrent operations
	Rows       int     // rows in the linked variables of the scratch environment
	Weights    map[Op]int
	Thresholds Thresholds
	// Keep leaves the scratch environment in the store after the run
	Keep bool
}

// Thresholds defines pass/fail criteria for the run
type Thresholds struct {
	P50          time.Duration // 50th percentile latency
	P95          time.Duration // 95th percentile latency
	P99          time.Duration // 99th percentile latency
	MaxLatency   time.Duration // maximum allowed latency
	ErrorRate    float64       // maximum store error rate (0.0 - 1.0)
	RejectedRate float64       // maximum rejected operation rate (0.0 - 1.0)
	MinOPS       float64       // minimum operations per second
}

// DefaultWeights mixes mostly reads and selections with a few structural
// changes.
func DefaultWeights() map[Op]int {
	return map[Op]int{
		OpSelect:  5,
		OpSet:     2,
		OpResolve: 5,
		OpRow:     1,
		OpRelink:  1,
	}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Duration: 10 * time.Second,
		Rate:     100,
		Workers:  8,
		Rows:     3,
		Weights:  DefaultWeights(),
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Rows < 2 {
		return fmt.Errorf("rows must be at least 2")
	}
	total := 0
	for op, w := range c.Weights {
		if !knownOp(op) {
			return fmt.Errorf("unknown operation: %s", op)
		}
		if w < 0 {
			return fmt.Errorf("weight of %s cannot be negative", op)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("at least one operation needs a positive weight")
	}
	return nil
}

func knownOp(op Op) bool {
	for _, known := range Ops {
		if op == known {
			return true
		}
	}
	return false
}

// ParseWeights parses a mix like "select=5,resolve=5,row=1". Operations that
// are not named get weight 0.
func ParseWeights(s string) (map[Op]int, error) {
	weights := make(map[Op]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight %q, expected op=weight", part)
		}
		op := Op(strings.ToLower(strings.TrimSpace(name)))
		if !knownOp(op) {
			return nil, fmt.Errorf("unknown operation: %s", name)
		}
		w, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || w < 0 {
			return nil, fmt.Errorf("invalid weight for %s: %s", op, value)
		}
		weights[op] = w
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	return weights, nil
}

// FormatWeights is the inverse of ParseWeights, in Ops order.
func FormatWeights(weights map[Op]int) string {
	parts := make([]string, 0, len(weights))
	for _, op := range Ops {
		if w := weights[op]; w > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", op, w))
		}
	}
	return strings.Join(parts, ",")
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<20ms,errors<0.1%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	if s == "" {
		return t, nil
	}

	parts := strings.Split(s, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := strings.TrimSpace(matches[3])
	upper := op == "<" || op == "<="

	latency := func(name string, dst *time.Duration) error {
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", name, valueStr)
		}
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", name)
		}
		*dst = d
		return nil
	}
	ratio := func(name string, dst *float64) error {
		f, err := strconv.ParseFloat(strings.TrimSuffix(valueStr, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", name, valueStr)
		}
		if strings.HasSuffix(valueStr, "%") {
			f = f / 100
		}
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", name)
		}
		*dst = f
		return nil
	}

	switch metric {
	case "p50":
		return latency("p50", &t.P50)
	case "p95":
		return latency("p95", &t.P95)
	case "p99":
		return latency("p99", &t.P99)
	case "max", "maxlatency":
		return latency("max latency", &t.MaxLatency)
	case "errors", "error", "errorrate":
		return ratio("error rate", &t.ErrorRate)
	case "rejected", "rejections":
		return ratio("rejected rate", &t.RejectedRate)
	case "ops", "rps", "rate":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return fmt.Errorf("invalid ops: %s", valueStr)
		}
		if upper {
			return fmt.Errorf("ops threshold must use > or >=")
		}
		t.MinOPS = f
		return nil
	}
	return fmt.Errorf("unknown threshold metric: %s", metric)
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 ||
		t.ErrorRate > 0 || t.RejectedRate > 0 || t.MinOPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

func sortedOps(m map[Op]*OpSummary) []Op {
	ops := make([]Op, 0, len(m))
	for op := range m {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
