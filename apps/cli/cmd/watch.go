package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

var (
	watchTemplateFlag   string
	watchCollectionFlag string
)

var watchCmd = &cobra.Command{
	Use:   "watch [ENV]",
	Short: "Reprint an environment or template when the file store changes",
	Long: `Watch a file store (--store file:PATH) for changes made by other
processes, such as an editor or another hitenv. After each change the
environment ENV is shown again, or --template is resolved again.

Without ENV or --template the environment list is shown. Stop with Ctrl+C.

Examples:
  hitenv watch Staging --store file:./workspace.json
  hitenv watch --template '{{baseUrl}}/health' --store file:./workspace.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		fr, ok := a.store.(*store.FileRepository)
		if !ok {
			return usageError("watch needs a file store, got %q", a.cfg.Store)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		render := func() error {
			switch {
			case watchTemplateFlag != "":
				res, err := a.resolver(ctx, cmd)
				if err != nil {
					return err
				}
				a.out.FormatResolution(output.ResolveWith(watchTemplateFlag, res))
			case ref != "":
				e, err := a.findEnvironment(ctx, ref)
				if err != nil {
					return err
				}
				return show(ctx, a, e)
			default:
				envs, err := a.store.List(ctx)
				if err != nil {
					return err
				}
				st, err := a.state(ctx)
				if err != nil {
					return err
				}
				a.out.FormatEnvironments(envs, st)
			}
			return nil
		}

		if err := render(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", fr.Path())

		logger := logging.GetLogger("watch")
		return fr.Watch(ctx, a.cfg.WatchInterval, func(err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Reload failed")
				return
			}
			if err := render(); err != nil {
				a.out.FormatError(err)
			}
		})
	}),
}

func init() {
	watchCmd.Flags().StringVar(&watchTemplateFlag, "template", "", "Template to resolve after each change")
	watchCmd.Flags().StringVar(&watchCollectionFlag, "collection", "", "Resolve --template for a collection")
}
