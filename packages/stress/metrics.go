package stress

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Outcome classifies one finished operation.
type Outcome int

const (
	// Succeeded means the operation was applied
	Succeeded Outcome = iota
	// Rejected means the coordinator refused the operation, e.g. an index
	// that a concurrent row removal made invalid. Nothing was written.
	Rejected
	// Failed means the store returned an error
	Failed
)

// Classify maps an operation error to its outcome. Coded errors are
// rejections; anything else came from the store.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Succeeded
	case env.CodeOf(err) != env.CodeUnknown:
		return Rejected
	}
	return Failed
}

// Metrics collects and aggregates operation metrics
type Metrics struct {
	mu sync.RWMutex

	total    atomic.Int64
	success  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	ops map[Op]*OpMetrics

	startTime time.Time
	endTime   time.Time
}

// OpMetrics holds metrics for one operation kind
type OpMetrics struct {
	Op        Op
	Total     atomic.Int64
	Success   atomic.Int64
	Rejected  atomic.Int64
	Failed    atomic.Int64
	Histogram *hdrhistogram.Histogram
	mu        sync.Mutex
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		ops:       make(map[Op]*OpMetrics),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Record records one operation result
func (m *Metrics) Record(op Op, duration time.Duration, err error) {
	outcome := Classify(err)
	m.total.Add(1)
	switch outcome {
	case Succeeded:
		m.success.Add(1)
	case Rejected:
		m.rejected.Add(1)
	default:
		m.failed.Add(1)
	}

	latency := clampLatency(duration)

	m.mu.Lock()
	_ = m.histogram.RecordValue(latency)
	om, ok := m.ops[op]
	if !ok {
		om = &OpMetrics{
			Op:        op,
			Histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		}
		m.ops[op] = om
	}
	m.mu.Unlock()

	om.Total.Add(1)
	switch outcome {
	case Succeeded:
		om.Success.Add(1)
	case Rejected:
		om.Rejected.Add(1)
	default:
		om.Failed.Add(1)
	}

	om.mu.Lock()
	_ = om.Histogram.RecordValue(latency)
	om.mu.Unlock()
}

// Summary is the final metrics summary
type Summary struct {
	Duration time.Duration
	Total    int64
	Success  int64
	Rejected int64
	Failed   int64

	OPS          float64
	RejectedRate float64
	ErrorRate    float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Breakdown map[Op]*OpSummary
}

// OpSummary holds the summary of one operation kind
type OpSummary struct {
	Op       Op
	Total    int64
	Success  int64
	Rejected int64
	Failed   int64
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
	Mean     time.Duration
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	s := &Summary{
		Duration: duration,
		Total:    m.total.Load(),
		Success:  m.success.Load(),
		Rejected: m.rejected.Load(),
		Failed:   m.failed.Load(),
		P50:      us(m.histogram.ValueAtQuantile(50)),
		P95:      us(m.histogram.ValueAtQuantile(95)),
		P99:      us(m.histogram.ValueAtQuantile(99)),
		Min:      us(m.histogram.Min()),
		Max:      us(m.histogram.Max()),
		Mean:     time.Duration(m.histogram.Mean() * float64(time.Microsecond)),
		StdDev:   time.Duration(m.histogram.StdDev() * float64(time.Microsecond)),
	}
	if duration.Seconds() > 0 {
		s.OPS = float64(s.Total) / duration.Seconds()
	}
	if s.Total > 0 {
		s.RejectedRate = float64(s.Rejected) / float64(s.Total)
		s.ErrorRate = float64(s.Failed) / float64(s.Total)
	}

	s.Breakdown = make(map[Op]*OpSummary, len(m.ops))
	for op, om := range m.ops {
		om.mu.Lock()
		s.Breakdown[op] = &OpSummary{
			Op:       op,
			Total:    om.Total.Load(),
			Success:  om.Success.Load(),
			Rejected: om.Rejected.Load(),
			Failed:   om.Failed.Load(),
			P50:      us(om.Histogram.ValueAtQuantile(50)),
			P95:      us(om.Histogram.ValueAtQuantile(95)),
			P99:      us(om.Histogram.ValueAtQuantile(99)),
			Mean:     time.Duration(om.Histogram.Mean() * float64(time.Microsecond)),
		}
		om.mu.Unlock()
	}
	return s
}

// EvaluateThresholds checks the summary against t
func EvaluateThresholds(s *Summary, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max latency", t.MaxLatency, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}
	if t.RejectedRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "rejected rate",
			Passed:   s.RejectedRate <= t.RejectedRate,
			Expected: "< " + formatPercent(t.RejectedRate),
			Actual:   formatPercent(s.RejectedRate),
		})
	}
	if t.MinOPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min ops",
			Passed:   s.OPS >= t.MinOPS,
			Expected: "> " + formatFloat(t.MinOPS),
			Actual:   formatFloat(s.OPS),
		})
	}
	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
