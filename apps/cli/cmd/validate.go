package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/import/document"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate [FILE...]",
	Short: "Check environments against the link group rules",
	Long: `Check environments without changing them.

Without arguments every stored environment is checked. With files, each file
is imported into a scratch in-memory store and the repairs an import would
make are listed.

Examples:
  hitenv validate
  hitenv validate workspace.json staging.postman_environment.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return withApp(validateStored)(cmd, args)
		}
		return validateFiles(cmd, args)
	},
}

func validateStored(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	envs, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, e := range envs {
		if err := e.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %s (%s): %v\n", e.Name, e.ID, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", e.Name)
	}
	if failed > 0 {
		return &exitError{code: ExitRejected, err: fmt.Errorf("%d of %d environments are invalid; run hitenv env repair", failed, len(envs))}
	}
	return nil
}

func validateFiles(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	hasErrors := false
	for _, file := range files {
		n, err := dryRunImport(ctx, cmd, file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d environments)\n", file, n)
	}
	if hasErrors {
		return &exitError{code: ExitRejected, err: fmt.Errorf("validation failed")}
	}
	return nil
}

func dryRunImport(ctx context.Context, cmd *cobra.Command, path string) (int, error) {
	kind, err := detectKind(path)
	if err != nil {
		return 0, err
	}
	if kind != "workspace" {
		envs, err := convertFile(cmd, kind, path, fileScope())
		return len(envs), err
	}
	res, err := document.NewImporter(store.NewMemoryRepository()).ImportFile(ctx, path)
	if err != nil {
		return 0, err
	}
	for _, e := range res.Environments {
		printRepairs(cmd, e.Name, res.Repairs[e.ID])
	}
	return len(res.Environments), nil
}
