package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
	"github.com/abdul-hamid-achik/hitenv/packages/stress"
)

var (
	stressDurationFlag  string
	stressRateFlag      float64
	stressWorkersFlag   int
	stressRowsFlag      int
	stressMixFlag       string
	stressThresholdFlag string
	stressKeepFlag      bool
	stressMetricsFlag   string
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Load the store with concurrent link-group operations",
	Long: `Run concurrent operations against a scratch environment in the configured
store and report their latency.

The scratch environment holds two linked variables and one plain variable.
Workers select rows, overwrite values, resolve templates, append and remove
rows and relink the group. Operations the rules refuse under contention are
counted as rejected; store errors are counted as failed. At the end the
environment is checked against the group rules and deleted.

The command exits with status 1 when a threshold fails or the rules were
broken.

Examples:
  hitenv stress --store sqlite:./hitenv.db
  hitenv stress -d 30s -r 0 -w 16 --store redis://localhost:6379/0
  hitenv stress --mix select=1,row=1 --threshold "p99<20ms,errors<0.1%"
  hitenv stress --metrics-file /var/lib/node_exporter/hitenv.prom`,
	Args: cobra.NoArgs,
	RunE: withApp(stressCommand),
}

func init() {
	def := stress.DefaultConfig()
	stressCmd.Flags().StringVarP(&stressDurationFlag, "duration", "d", def.Duration.String(), "Run duration (e.g., 10s, 1m)")
	stressCmd.Flags().Float64VarP(&stressRateFlag, "rate", "r", def.Rate, "Target operations per second (0 for unlimited)")
	stressCmd.Flags().IntVarP(&stressWorkersFlag, "workers", "w", def.Workers, "Maximum concurrent operations")
	stressCmd.Flags().IntVar(&stressRowsFlag, "rows", def.Rows, "Rows in the linked variables")
	stressCmd.Flags().StringVar(&stressMixFlag, "mix", stress.FormatWeights(def.Weights), "Operation weights")
	stressCmd.Flags().StringVar(&stressThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"p95<20ms,errors<0.1%\")")
	stressCmd.Flags().BoolVar(&stressKeepFlag, "keep", false, "Keep the scratch environment")
	stressCmd.Flags().StringVar(&stressMetricsFlag, "metrics-file", "", "Write the results in Prometheus text format to this file")
}

func stressCommand(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	cfg, err := buildStressConfig()
	if err != nil {
		return usageError("%v", err)
	}

	jsonOut := strings.EqualFold(a.cfg.Output, string(output.FormatJSON))
	reporterOut := cmd.OutOrStdout()
	if jsonOut {
		reporterOut = cmd.ErrOrStderr()
	}
	reporter := stress.NewReporter(
		stress.WithWriter(reporterOut),
		stress.WithNoColor(a.cfg.GetNoColor()),
		stress.WithVerbose(verboseFlag > 0),
	)

	runner := stress.NewRunner(a.store, cfg, stress.WithCoordinator(a.coord), stress.WithReporter(reporter))
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		if err := stress.NewReporter(stress.WithWriter(cmd.OutOrStdout())).JSONSummary(res); err != nil {
			return err
		}
	}
	if stressMetricsFlag != "" {
		store, _, _ := strings.Cut(a.cfg.Store, ":")
		if err := metrics.WriteFile(stressMetricsFlag, metrics.Collect(res, map[string]string{"store": store})); err != nil {
			return err
		}
	}
	if !res.Passed {
		if res.InvariantErr != nil {
			return &exitError{code: ExitRejected, err: fmt.Errorf("group rules broken: %w", res.InvariantErr)}
		}
		return &exitError{code: ExitRejected, err: fmt.Errorf("thresholds failed")}
	}
	return nil
}

func buildStressConfig() (*stress.Config, error) {
	cfg := stress.DefaultConfig()

	d, err := time.ParseDuration(stressDurationFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	cfg.Duration = d
	cfg.Rate = stressRateFlag
	cfg.Workers = stressWorkersFlag
	cfg.Rows = stressRowsFlag
	cfg.Keep = stressKeepFlag

	if cfg.Weights, err = stress.ParseWeights(stressMixFlag); err != nil {
		return nil, err
	}
	if cfg.Thresholds, err = stress.ParseThresholds(stressThresholdFlag); err != nil {
		return nil, fmt.Errorf("invalid threshold: %w", err)
	}
	return cfg, cfg.Validate()
}
