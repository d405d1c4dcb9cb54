package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
)

var (
	envCollectionFlag  string
	envAllFlag         bool
	envDescriptionFlag string
	envExitCodeFlag    bool
)

var envCmd = &cobra.Command{
	Use:     "env",
	Aliases: []string{"environment", "environments"},
	Short:   "Create, inspect and activate environments",
}

var envListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List environments",
	Long: `List global environments, the environments of one collection, or all.

Active environments are marked with *.

Examples:
  hitenv env list
  hitenv env list --collection payments
  hitenv env list --all -o json`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		var (
			envs []*env.Environment
			err  error
		)
		switch {
		case envAllFlag:
			envs, err = a.store.List(ctx)
		case cmd.Flags().Changed("collection"):
			envs, err = a.store.ListByCollection(ctx, envCollectionFlag)
		default:
			envs, err = a.store.ListGlobal(ctx)
		}
		if err != nil {
			return err
		}
		st, err := a.state(ctx)
		if err != nil {
			return err
		}
		a.out.FormatEnvironments(envs, st)
		return nil
	}),
}

var envCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an empty environment",
	Long: `Create an empty environment. Without --collection it is global.

Examples:
  hitenv env create Staging
  hitenv env create "Payments sandbox" --collection payments`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		sc := env.GlobalScope()
		if envCollectionFlag != "" {
			sc = env.CollectionScope(envCollectionFlag)
		}
		e, err := a.coord.CreateEnvironment(ctx, args[0], sc)
		if err != nil {
			return err
		}
		if envDescriptionFlag != "" {
			e.Description = envDescriptionFlag
			e.Touch()
			if err := a.store.Put(ctx, e); err != nil {
				return err
			}
		}
		return show(ctx, a, e)
	}),
}

var envShowCmd = &cobra.Command{
	Use:   "show ENV",
	Short: "Show an environment with its variables and link groups",
	Long: `Show an environment. ENV is an id or a unique name.

Linked variables share a group letter; the selected row is marked.

Examples:
  hitenv env show Staging
  hitenv env show Staging --show-secrets`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var envDuplicateCmd = &cobra.Command{
	Use:   "duplicate ENV [NAME]",
	Short: "Copy an environment with fresh ids",
	Long: `Copy an environment. Values, selections and link groups are kept;
every id is new. The copy is inactive and named "<name> (Copy)" unless NAME
is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		src, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		e, err := a.coord.DuplicateEnvironment(ctx, src.ID, name)
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var envDeleteCmd = &cobra.Command{
	Use:     "delete ENV",
	Aliases: []string{"rm"},
	Short:   "Delete an environment",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		if !e.Scope.IsGlobal() {
			if id, err := a.scopes.Override(ctx, e.Scope.CollectionID); err == nil && id == e.ID {
				if err := a.scopes.ClearOverride(ctx, e.Scope.CollectionID); err != nil {
					return err
				}
			}
		}
		if err := a.coord.DeleteEnvironment(ctx, e.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", e.Name, e.ID)
		return nil
	}),
}

var envRenameCmd = &cobra.Command{
	Use:   "rename ENV NAME",
	Short: "Rename an environment",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		e, err = a.coord.RenameEnvironment(ctx, e.ID, args[1])
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var envActivateCmd = &cobra.Command{
	Use:   "activate ENV",
	Short: "Make an environment active",
	Long: `Activate an environment.

A global environment becomes the only active global environment. A
collection environment becomes the override for its collection and is
searched before the global one.

Examples:
  hitenv env activate Production
  hitenv env activate "Payments sandbox"`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.scopes.Activate(ctx, e.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Activated %s [%s]\n", e.Name, e.Scope)
		return nil
	}),
}

var envDeactivateCmd = &cobra.Command{
	Use:   "deactivate ENV",
	Short: "Deactivate an environment",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.scopes.Deactivate(ctx, e.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", e.Name)
		return nil
	}),
}

var envClearOverrideCmd = &cobra.Command{
	Use:   "clear-override COLLECTION",
	Short: "Stop overriding the global environment for a collection",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		if err := a.scopes.ClearOverride(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared override for %s\n", args[0])
		return nil
	}),
}

var envRepairCmd = &cobra.Command{
	Use:   "repair ENV",
	Short: "Fix selections and link groups that break the rules",
	Long: `Repair an environment: empty variables get one empty value, selections
are clamped, single-member groups are dissolved and group members are padded
to the same row count.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		fixes, err := a.coord.Repair(ctx, e.ID)
		if err != nil {
			return err
		}
		if len(fixes) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s needs no repair\n", e.Name)
			return nil
		}
		for _, fix := range fixes {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fix)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Repaired %s (%d fixes)\n", e.Name, len(fixes))
		return nil
	}),
}

var envDiffCmd = &cobra.Command{
	Use:   "diff LEFT RIGHT",
	Short: "Compare two environments key by key",
	Long: `Compare the variables of two environments by key. Selected values, value
rows, selections, link groups and flags are compared. Group names do not
matter, only which keys are grouped together.

Examples:
  hitenv env diff Staging Production
  hitenv env diff Staging Production -o json
  hitenv env diff Staging Production --exit-code`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		left, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		right, err := a.findEnvironment(ctx, args[1])
		if err != nil {
			return err
		}
		d := output.DiffEnvironments(left, right)
		a.out.FormatDiff(d)
		if envExitCodeFlag && d.HasChanges() {
			return &exitError{code: ExitRejected, err: fmt.Errorf("%s and %s differ", left.Name, right.Name), silent: true}
		}
		return nil
	}),
}

func init() {
	envListCmd.Flags().StringVar(&envCollectionFlag, "collection", "", "List the environments of a collection")
	envListCmd.Flags().BoolVar(&envAllFlag, "all", false, "List every environment")
	envCreateCmd.Flags().StringVar(&envCollectionFlag, "collection", "", "Create the environment in a collection")
	envCreateCmd.Flags().StringVar(&envDescriptionFlag, "description", "", "Environment description")

	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envCreateCmd)
	envCmd.AddCommand(envShowCmd)
	envCmd.AddCommand(envDuplicateCmd)
	envCmd.AddCommand(envDeleteCmd)
	envCmd.AddCommand(envRenameCmd)
	envCmd.AddCommand(envActivateCmd)
	envCmd.AddCommand(envDeactivateCmd)
	envCmd.AddCommand(envClearOverrideCmd)
	envCmd.AddCommand(envRepairCmd)

	envDiffCmd.Flags().BoolVar(&envExitCodeFlag, "exit-code", false, "Exit with 1 when the environments differ")
	envCmd.AddCommand(envDiffCmd)
}

func show(ctx context.Context, a *app, e *env.Environment) error {
	st, err := a.state(ctx)
	if err != nil {
		return err
	}
	a.out.FormatEnvironment(e, st)
	return nil
}
