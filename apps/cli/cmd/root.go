package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/core/config"
	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/core/scope"
	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	storeFlag       string
	configFlag      string
	verboseFlag     int // 0=off, 1=-v, 2=-vv, 3=-vvv
	noColorFlag     bool
	outputFlag      string
	showSecretsFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "hitenv",
	Short: "Multi-value environments for API work. No magic.",
	Long: `hitenv manages environments of variables that hold several values each,
keeps linked variables on the same row, and resolves {{name}} placeholders
against the active environments.

Environments are global or belong to a collection. One global environment
is active at a time, and each collection may override it with one of its
own environments.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// app holds what a command needs once configuration and the store are
// ready. Commands reach it through withApp.
type app struct {
	cfg    *config.Config
	store  store.Store
	coord  *linkgroup.Coordinator
	scopes *scope.Manager
	out    output.Formatter
}

var current *app

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if current != nil && current.store != nil {
		if cerr := current.store.Close(); cerr != nil && err == nil {
			err = storeError(cerr)
		}
	}
	if err != nil {
		reportError(err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Store connection string: memory:, sqlite:PATH, file:PATH, redis://HOST (env: HITENV_STORE)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", os.Getenv("HITENV_CONFIG"), "Path to config file (env: HITENV_CONFIG)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv, -vvv for more detail)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: HITENV_NO_COLOR)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format: console, json (env: HITENV_OUTPUT)")
	rootCmd.PersistentFlags().BoolVar(&showSecretsFlag, "show-secrets", false, "Print secret values instead of masking them")

	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(varCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// setup loads configuration and applies flag overrides. The store is opened
// lazily by withApp so that version and completion work without one.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return configError(err)
	}

	flags := &config.Config{Store: storeFlag, Output: outputFlag}
	if cmd.Flags().Changed("no-color") {
		flags.NoColor = config.BoolPtr(noColorFlag)
	}
	if cmd.Flags().Changed("show-secrets") {
		flags.ShowSecrets = config.BoolPtr(showSecretsFlag)
	}
	if verboseFlag > 0 {
		flags.Verbose = config.BoolPtr(true)
	}
	cfg = cfg.Merge(flags)
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}

	verbosity := verboseFlag
	if verbosity == 0 && cfg.GetVerbose() {
		verbosity = 1
	}
	logging.Setup(verbosity, cmd.ErrOrStderr(), cfg.GetNoColor())

	var out output.Formatter
	if strings.EqualFold(cfg.Output, string(output.FormatJSON)) {
		out = output.NewJSONFormatter(
			output.WithJSONWriter(cmd.OutOrStdout()),
			output.WithJSONSecrets(cfg.GetShowSecrets()),
		)
	} else {
		out = output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithVerbose(verbosity > 0),
			output.WithNoColor(cfg.GetNoColor()),
			output.WithSecrets(cfg.GetShowSecrets()),
		)
	}
	current = &app{cfg: cfg, out: out}
	return nil
}

// withApp opens the configured store before running fn.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return configError(errors.New("configuration was not loaded"))
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if current.store == nil {
			s, err := store.Open(ctx, current.cfg.Store)
			if err != nil {
				return storeError(fmt.Errorf("open store %q: %w", current.cfg.Store, err))
			}
			current.store = s
			current.coord = linkgroup.NewCoordinator(s)
			current.scopes = scope.NewManager(s, s, scope.WithCoordinator(current.coord))
		}
		return fn(ctx, cmd, current, args)
	}
}

// collection returns the --collection value, falling back to the
// configured default collection.
func (a *app) collection(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("collection"); f != nil && f.Changed {
		return f.Value.String()
	}
	return a.cfg.DefaultCollection
}

// state reads which environments are active, for display.
func (a *app) state(ctx context.Context) (output.ActiveState, error) {
	var st output.ActiveState
	global, err := a.scopes.ActiveGlobal(ctx)
	if err != nil {
		return st, err
	}
	if global != nil {
		st.GlobalID = global.ID
	}
	st.Overrides, err = a.store.Overrides(ctx)
	return st, err
}

// findEnvironment accepts an environment id or a unique name.
func (a *app) findEnvironment(ctx context.Context, ref string) (*env.Environment, error) {
	e, err := a.store.Get(ctx, ref)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, env.ErrNotFound) {
		return nil, err
	}

	all, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*env.Environment
	for _, candidate := range all {
		if candidate.Name == ref {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, env.NotFoundf("no environment with id or name %q", ref)
	case 1:
		return matches[0], nil
	}
	return nil, env.Newf(env.CodeInvalidArgument, "%d environments are named %q, use the id", len(matches), ref)
}

// resolver binds the resolution scopes of cmd's collection. Placeholders
// that nothing defines are logged at warn.
func (a *app) resolver(ctx context.Context, cmd *cobra.Command) (*env.Resolver, error) {
	scopes, err := a.scopes.ResolutionScopes(ctx, a.collection(cmd))
	if err != nil {
		return nil, err
	}
	r := env.NewResolver(scopes...)
	logger := logging.GetLogger("resolve")
	r.SetWarnFunc(func(format string, args ...any) {
		logger.Warn().Msgf(format, args...)
	})
	return r, nil
}

// findVariable accepts a variable id or key.
func findVariable(e *env.Environment, ref string) (*env.Variable, error) {
	if v, ok := e.Variable(ref); ok {
		return v, nil
	}
	if v, ok := e.VariableByKey(ref); ok {
		return v, nil
	}
	return nil, env.NotFoundf("no variable with id or key %q in %q", ref, e.Name)
}
