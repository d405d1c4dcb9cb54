package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
)

var (
	varSecretFlag      bool
	varDisabledFlag    bool
	varDescriptionFlag string
	varKeyFlag         string
	varEnabledFlag     bool
	varRowFlag         int
	varRowValuesFlag   []string
	varPadFlag         bool
)

var varCmd = &cobra.Command{
	Use:     "var",
	Aliases: []string{"variable", "variables"},
	Short:   "Edit variables, their value rows and link groups",
	Long: `Edit the variables of an environment.

ENV is an environment id or unique name. VAR is a variable id or key.
Rows are zero-based.`,
}

var varAddCmd = &cobra.Command{
	Use:   "add ENV KEY [VALUE]",
	Short: "Add a variable with one value",
	Example: `  hitenv var add Staging baseUrl https://staging.example.com
  hitenv var add Staging token s3cr3t --secret`,
	Args: cobra.RangeArgs(2, 3),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		value := ""
		if len(args) == 3 {
			value = args[2]
		}
		v, err := a.coord.AddVariable(ctx, e.ID, args[1], value)
		if err != nil {
			return err
		}
		patch := linkgroup.VariablePatch{}
		if varSecretFlag {
			patch.IsSecret = &varSecretFlag
		}
		if varDisabledFlag {
			patch.Enabled = new(bool)
		}
		if varDescriptionFlag != "" {
			patch.Description = &varDescriptionFlag
		}
		if patch != (linkgroup.VariablePatch{}) {
			if e, err = a.coord.UpdateVariable(ctx, e.ID, v.ID, patch); err != nil {
				return err
			}
			return show(ctx, a, e)
		}
		return showID(ctx, a, e.ID)
	}),
}

var varRemoveCmd = &cobra.Command{
	Use:     "remove ENV VAR",
	Aliases: []string{"rm"},
	Short:   "Remove a variable",
	Long: `Remove a variable. A link group left with one member is dissolved.`,
	Args: cobra.ExactArgs(2),
	RunE: onVariable(func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, _ []string) (*env.Environment, error) {
		return a.coord.RemoveVariable(ctx, e.ID, v.ID)
	}),
}

var varSetCmd = &cobra.Command{
	Use:   "set ENV VAR VALUE",
	Short: "Overwrite one value row",
	Long: `Overwrite the value in one row. Without --row the selected row is written.`,
	Example: `  hitenv var set Staging baseUrl https://staging.example.com
  hitenv var set Staging baseUrl https://eu.example.com --row 1`,
	Args: cobra.ExactArgs(3),
	RunE: onVariable(func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, rest []string) (*env.Environment, error) {
		row := v.SelectedIndex
		if varRowFlag >= 0 {
			row = varRowFlag
		}
		return a.coord.SetValue(ctx, e.ID, v.ID, row, rest[0])
	}),
}

var varUpdateCmd = &cobra.Command{
	Use:   "update ENV VAR",
	Short: "Change a variable's key, description or flags",
	Example: `  hitenv var update Staging token --secret
  hitenv var update Staging baseUrl --key apiUrl --description "API root"
  hitenv var update Staging debug --enabled=false`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, v, err := a.target(ctx, args)
		if err != nil {
			return err
		}
		patch := linkgroup.VariablePatch{}
		if cmd.Flags().Changed("key") {
			patch.Key = &varKeyFlag
		}
		if cmd.Flags().Changed("description") {
			patch.Description = &varDescriptionFlag
		}
		if cmd.Flags().Changed("enabled") {
			patch.Enabled = &varEnabledFlag
		}
		if cmd.Flags().Changed("secret") {
			patch.IsSecret = &varSecretFlag
		}
		if patch == (linkgroup.VariablePatch{}) {
			return usageError("nothing to update: pass --key, --description, --enabled or --secret")
		}
		e, err = a.coord.UpdateVariable(ctx, e.ID, v.ID, patch)
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var varSelectCmd = &cobra.Command{
	Use:   "select ENV VAR ROW",
	Short: "Select a value row",
	Long: `Select a row. Every variable linked to VAR selects the same row.`,
	Example: `  hitenv var select Staging region 1`,
	Args:    cobra.ExactArgs(3),
	RunE: onVariable(func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, rest []string) (*env.Environment, error) {
		row, err := parseRow(rest[0])
		if err != nil {
			return nil, err
		}
		return a.coord.SelectValue(ctx, e.ID, v.ID, row)
	}),
}

var varAddRowCmd = &cobra.Command{
	Use:   "add-row ENV VAR [VALUE]",
	Short: "Append a value row",
	Long: `Append a row to VAR. When VAR is linked the row is appended to every
member of its group; pass --value KEY=VALUE for the other members, which
otherwise get an empty value.`,
	Example: `  hitenv var add-row Staging region eu-west-1
  hitenv var add-row Staging region eu-west-1 --value baseUrl=https://eu.example.com`,
	Args: cobra.RangeArgs(2, 3),
	RunE: onVariable(func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, rest []string) (*env.Environment, error) {
		values := make(map[string]string)
		if len(rest) == 1 {
			values[v.ID] = rest[0]
		}
		for _, kv := range varRowValuesFlag {
			ref, value, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, usageError("--value %q must be VAR=VALUE", kv)
			}
			other, err := findVariable(e, ref)
			if err != nil {
				return nil, err
			}
			values[other.ID] = value
		}
		return a.coord.AddValueRow(ctx, e.ID, v.ID, values)
	}),
}

var varRemoveRowCmd = &cobra.Command{
	Use:   "remove-row ENV VAR|GROUP ROW",
	Short: "Remove a value row",
	Long: `Remove a row from a variable, or from every member of its link group.
The second argument may also name a group directly.`,
	Args: cobra.ExactArgs(3),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		row, err := parseRow(args[2])
		if err != nil {
			return err
		}
		ref := args[1]
		if v, err := findVariable(e, ref); err == nil {
			ref = v.ID
		}
		e, err = a.coord.RemoveValueRow(ctx, e.ID, ref, row)
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var varLinkCmd = &cobra.Command{
	Use:   "link ENV SOURCE TARGET",
	Short: "Link two variables so they select rows together",
	Long: `Link SOURCE to TARGET. Both must have the same number of rows unless
--pad is given, which first pads the shorter one with empty values.

If TARGET is in a group SOURCE joins it. Otherwise a new group named after
SOURCE is created.`,
	Example: `  hitenv var link Staging baseUrl region
  hitenv var link Staging token region --pad`,
	Args: cobra.ExactArgs(3),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, src, err := a.target(ctx, args)
		if err != nil {
			return err
		}
		dst, err := findVariable(e, args[2])
		if err != nil {
			return err
		}
		if varPadFlag && len(src.Values) != len(dst.Values) {
			length := max(len(src.Values), len(dst.Values))
			for _, v := range []*env.Variable{src, dst} {
				if len(v.Values) < length {
					if _, err := a.coord.PadRows(ctx, e.ID, v.ID, length); err != nil {
						return err
					}
				}
			}
		}
		e, err = a.coord.LinkVariables(ctx, e.ID, src.ID, dst.ID)
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var varUnlinkCmd = &cobra.Command{
	Use:   "unlink ENV VAR",
	Short: "Take a variable out of its link group",
	Args:  cobra.ExactArgs(2),
	RunE: onVariable(func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, _ []string) (*env.Environment, error) {
		return a.coord.Unlink(ctx, e.ID, v.ID)
	}),
}

var varRenameGroupCmd = &cobra.Command{
	Use:   "rename-group ENV OLD NEW",
	Short: "Rename a link group",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		e, err = a.coord.RenameGroup(ctx, e.ID, args[1], args[2])
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

var varReorderCmd = &cobra.Command{
	Use:   "reorder ENV VAR...",
	Short: "Set the display order of variables",
	Long: `Reorder variables. Every variable of the environment must be listed once.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, err := a.findEnvironment(ctx, args[0])
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(args)-1)
		for _, ref := range args[1:] {
			v, err := findVariable(e, ref)
			if err != nil {
				return err
			}
			ids = append(ids, v.ID)
		}
		e, err = a.coord.Reorder(ctx, e.ID, ids)
		if err != nil {
			return err
		}
		return show(ctx, a, e)
	}),
}

func init() {
	varAddCmd.Flags().BoolVar(&varSecretFlag, "secret", false, "Mask the value in output")
	varAddCmd.Flags().BoolVar(&varDisabledFlag, "disabled", false, "Add the variable disabled")
	varAddCmd.Flags().StringVar(&varDescriptionFlag, "description", "", "Variable description")

	varSetCmd.Flags().IntVar(&varRowFlag, "row", -1, "Row to overwrite (default: the selected row)")

	varUpdateCmd.Flags().StringVar(&varKeyFlag, "key", "", "New key")
	varUpdateCmd.Flags().StringVar(&varDescriptionFlag, "description", "", "New description")
	varUpdateCmd.Flags().BoolVar(&varEnabledFlag, "enabled", true, "Enable or disable the variable")
	varUpdateCmd.Flags().BoolVar(&varSecretFlag, "secret", false, "Mark or unmark the variable as secret")

	varAddRowCmd.Flags().StringArrayVar(&varRowValuesFlag, "value", nil, "Value for another group member as VAR=VALUE (repeatable)")

	varLinkCmd.Flags().BoolVar(&varPadFlag, "pad", false, "Pad the shorter variable with empty rows first")

	varCmd.AddCommand(varAddCmd)
	varCmd.AddCommand(varRemoveCmd)
	varCmd.AddCommand(varSetCmd)
	varCmd.AddCommand(varUpdateCmd)
	varCmd.AddCommand(varSelectCmd)
	varCmd.AddCommand(varAddRowCmd)
	varCmd.AddCommand(varRemoveRowCmd)
	varCmd.AddCommand(varLinkCmd)
	varCmd.AddCommand(varUnlinkCmd)
	varCmd.AddCommand(varRenameGroupCmd)
	varCmd.AddCommand(varReorderCmd)
}

// target resolves the ENV VAR pair at the start of args.
func (a *app) target(ctx context.Context, args []string) (*env.Environment, *env.Variable, error) {
	e, err := a.findEnvironment(ctx, args[0])
	if err != nil {
		return nil, nil, err
	}
	v, err := findVariable(e, args[1])
	if err != nil {
		return nil, nil, err
	}
	return e, v, nil
}

// onVariable wraps commands shaped ENV VAR [ARGS...] that end by showing the
// updated environment.
func onVariable(fn func(ctx context.Context, a *app, e *env.Environment, v *env.Variable, rest []string) (*env.Environment, error)) func(*cobra.Command, []string) error {
	return withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		e, v, err := a.target(ctx, args)
		if err != nil {
			return err
		}
		updated, err := fn(ctx, a, e, v, args[2:])
		if err != nil {
			return err
		}
		return show(ctx, a, updated)
	})
}

func showID(ctx context.Context, a *app, envID string) error {
	e, err := a.store.Get(ctx, envID)
	if err != nil {
		return err
	}
	return show(ctx, a, e)
}

func parseRow(s string) (int, error) {
	row, err := strconv.Atoi(s)
	if err != nil {
		return 0, usageError("row %q is not a number", s)
	}
	return row, nil
}
