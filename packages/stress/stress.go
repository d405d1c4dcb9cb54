package stress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

// Template is resolved by every resolve operation.
const Template = "{{baseUrl}}/v1?region={{region}}&token={{token}}"

// Runner executes a stress run against one scratch environment
type Runner struct {
	config    *Config
	repo      store.Repository
	coord     *linkgroup.Coordinator
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	logger    zerolog.Logger

	// scratch environment
	envID   string
	baseURL string
	region  string
	token   string
	sets    atomic.Int64
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithCoordinator shares an existing coordinator, so the run contends on
// the same per-environment locks as other callers.
func WithCoordinator(c *linkgroup.Coordinator) RunnerOption {
	return func(r *Runner) {
		r.coord = c
	}
}

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// NewRunner creates a new stress runner
func NewRunner(repo store.Repository, config *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		repo:      repo,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
		logger:    logging.GetLogger("stress"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.coord == nil {
		r.coord = linkgroup.NewCoordinator(repo)
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	return r
}

// Result holds the final result of a stress run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	// EnvironmentID is the scratch environment; it no longer exists unless
	// Config.Keep is set.
	EnvironmentID string
	// InvariantErr is set when the scratch environment broke a group rule.
	InvariantErr error
	Passed       bool
}

// HasThresholdFailures returns true if any thresholds failed
func (r *Result) HasThresholdFailures() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return true
		}
	}
	return false
}

// Run executes the stress run
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r.reporter.Header(r.config)
	if err := r.setup(ctx); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	r.metrics.Start()
	runCtx, cancel := context.WithTimeout(ctx, r.config.Duration)
	r.loop(runCtx)
	cancel()
	r.metrics.Stop()

	// the parent context may be done as well, teardown still has to run
	teardownCtx := context.WithoutCancel(ctx)
	res := &Result{EnvironmentID: r.envID}
	e, err := r.repo.Get(teardownCtx, r.envID)
	if err != nil {
		return nil, fmt.Errorf("read scratch environment: %w", err)
	}
	res.InvariantErr = e.Validate()
	if res.InvariantErr != nil {
		r.logger.Error().Err(res.InvariantErr).Str("env", r.envID).Msg("Scratch environment broke a group rule")
	}
	if !r.config.Keep {
		if err := r.coord.DeleteEnvironment(teardownCtx, r.envID); err != nil {
			r.reporter.Error("failed to delete scratch environment %s: %v", r.envID, err)
		}
	}

	res.Summary = r.metrics.GetSummary()
	if r.config.Thresholds.HasThresholds() {
		res.Thresholds = EvaluateThresholds(res.Summary, r.config.Thresholds)
	}
	res.Passed = res.InvariantErr == nil && !res.HasThresholdFailures()

	r.reporter.Summary(res)
	return res, nil
}

// setup creates the scratch environment: baseUrl and region linked with
// Config.Rows rows, and an unlinked secret token.
func (r *Runner) setup(ctx context.Context) error {
	e, err := r.coord.CreateEnvironment(ctx, "stress "+time.Now().UTC().Format(time.RFC3339), env.GlobalScope())
	if err != nil {
		return err
	}
	r.envID = e.ID

	base, err := r.coord.AddVariable(ctx, e.ID, "baseUrl", "http://stress-0.local")
	if err != nil {
		return err
	}
	region, err := r.coord.AddVariable(ctx, e.ID, "region", "region-0")
	if err != nil {
		return err
	}
	token, err := r.coord.AddVariable(ctx, e.ID, "token", "t-0")
	if err != nil {
		return err
	}
	r.baseURL, r.region, r.token = base.ID, region.ID, token.ID

	if _, err := r.coord.LinkVariables(ctx, e.ID, region.ID, base.ID); err != nil {
		return err
	}
	for i := 1; i < r.config.Rows; i++ {
		values := map[string]string{
			base.ID:   fmt.Sprintf("http://stress-%d.local", i),
			region.ID: fmt.Sprintf("region-%d", i),
		}
		if _, err := r.coord.AddValueRow(ctx, e.ID, base.ID, values); err != nil {
			return err
		}
	}
	r.logger.Debug().Str("env", e.ID).Int("rows", r.config.Rows).Msg("Scratch environment ready")
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}
		op := r.scheduler.SelectOp()
		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		wg.Add(1)
		go func(op Op) {
			defer wg.Done()
			defer r.scheduler.Release()

			start := time.Now()
			err := r.execute(ctx, op)
			if ctx.Err() != nil && err != nil {
				// cut off by the end of the run
				return
			}
			r.metrics.Record(op, time.Since(start), err)
		}(op)
	}
}

// execute issues one operation. Rows below Config.Rows are never removed, so
// selecting any of them is always in range.
func (r *Runner) execute(ctx context.Context, op Op) error {
	switch op {
	case OpSelect:
		_, err := r.coord.SelectValue(ctx, r.envID, r.baseURL, r.scheduler.Intn(r.config.Rows))
		return err

	case OpSet:
		_, err := r.coord.SetValue(ctx, r.envID, r.token, 0, fmt.Sprintf("t-%d", r.sets.Add(1)))
		return err

	case OpResolve:
		e, err := r.repo.Get(ctx, r.envID)
		if err != nil {
			return err
		}
		res := env.NewResolver(e)
		if res.HasUnresolvedVariables(Template) {
			return env.Newf(env.CodeNotFound, "unresolved: %v", res.GetUnresolvedVariables(Template))
		}
		_ = res.Resolve(Template)
		return nil

	case OpRow:
		values := map[string]string{r.baseURL: "http://stress-extra.local", r.region: "region-extra"}
		e, err := r.coord.AddValueRow(ctx, r.envID, r.baseURL, values)
		if err != nil {
			return err
		}
		v, ok := e.Variable(r.baseURL)
		if !ok {
			return env.NotFoundf("variable %s vanished", r.baseURL)
		}
		_, err = r.coord.RemoveValueRow(ctx, r.envID, r.baseURL, len(v.Values)-1)
		return err

	case OpRelink:
		if _, err := r.coord.Unlink(ctx, r.envID, r.region); err != nil {
			return err
		}
		_, err := r.coord.LinkVariables(ctx, r.envID, r.region, r.baseURL)
		if !env.IsErrorCode(err, env.CodeLengthMismatch) {
			return err
		}
		// a row operation ran while the two were apart
		if err := r.padPair(ctx); err != nil {
			return err
		}
		_, err = r.coord.LinkVariables(ctx, r.envID, r.region, r.baseURL)
		return err
	}
	return fmt.Errorf("unknown operation: %s", op)
}

func (r *Runner) padPair(ctx context.Context) error {
	e, err := r.repo.Get(ctx, r.envID)
	if err != nil {
		return err
	}
	length := 0
	for _, id := range []string{r.baseURL, r.region} {
		if v, ok := e.Variable(id); ok {
			length = max(length, len(v.Values))
		}
	}
	for _, id := range []string{r.baseURL, r.region} {
		if _, err := r.coord.PadRows(ctx, r.envID, id, length); err != nil {
			return err
		}
	}
	return nil
}
