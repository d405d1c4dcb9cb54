package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/output"
)

var (
	resolveCollectionFlag string
	resolveStrictFlag     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [TEMPLATE]",
	Short: "Replace {{name}} placeholders with active values",
	Long: `Resolve a template against the active environments.

The collection override (if any) is searched first, then the active global
environment. Unknown placeholders are left as they are; with --strict they
also make the command exit with status 2. Pass - or no argument to read the
template from stdin.

Examples:
  hitenv resolve '{{baseUrl}}/users/{{userId}}'
  hitenv resolve '{{baseUrl}}' --collection payments
  cat request.http | hitenv resolve --strict`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		template, err := readTemplate(cmd, args)
		if err != nil {
			return err
		}
		res, err := a.resolver(ctx, cmd)
		if err != nil {
			return err
		}
		r := output.ResolveWith(template, res)
		a.out.FormatResolution(r)
		if missing := r.Unresolved(); resolveStrictFlag && len(missing) > 0 {
			return &exitError{
				code: ExitUnresolved,
				err:  fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", ")),
			}
		}
		return nil
	}),
}

var lookupCmd = &cobra.Command{
	Use:   "lookup KEY",
	Short: "Print the active value of one variable",
	Long: `Print the value KEY resolves to. An empty value is still found; an
undefined key exits with status 2. Use -v to see which environment
answered.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		res, err := a.resolver(ctx, cmd)
		if err != nil {
			return err
		}
		if !res.HasVariable(args[0]) {
			return &exitError{code: ExitUnresolved, err: fmt.Errorf("%s is not defined", args[0])}
		}
		a.out.FormatResolution(output.ResolveWith("{{"+args[0]+"}}", res))
		return nil
	}),
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCollectionFlag, "collection", "", "Resolve for a collection (default: defaultCollection from config)")
	resolveCmd.Flags().BoolVar(&resolveStrictFlag, "strict", false, "Exit with status 2 when a placeholder is unknown")
	lookupCmd.Flags().StringVar(&resolveCollectionFlag, "collection", "", "Look up for a collection (default: defaultCollection from config)")
}

func readTemplate(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", usageError("no template given and stdin is a terminal")
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}
