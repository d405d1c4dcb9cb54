package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/import/document"
	"github.com/abdul-hamid-achik/hitenv/packages/import/insomnia"
	"github.com/abdul-hamid-achik/hitenv/packages/import/postman"
)

var (
	importCollectionFlag string
	importNameFlag       string
	importActivateFlag   bool
	importBaseFlag       bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import environments from a workspace export, Postman, Insomnia or .env",
	Long: `Import environments. The file kind is detected from its content and
extension; use a subcommand to force one.

Supported kinds:
  workspace - a document written by "hitenv export" (JSON or YAML)
  postman   - a Postman environment, including multi-value entries
  insomnia  - environments from an Insomnia v4 export
  dotenv    - a .env file

Imported environments get fresh ids and are stored inactive. With
--activate the environment the file marks active (or the first imported
one) is activated.

Examples:
  hitenv import workspace.json
  hitenv import staging.postman_environment.json --collection payments
  hitenv import insomnia export.json
  hitenv import dotenv .env.local --name Local --activate`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		kind, err := detectKind(args[0])
		if err != nil {
			return err
		}
		return runImport(ctx, cmd, a, kind, args[0])
	}),
}

func importSubcommand(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return runImport(ctx, cmd, a, kind, args[0])
		}),
	}
}

var importShellCmd = &cobra.Command{
	Use:   "shell PREFIX",
	Short: "Import process environment variables that start with PREFIX",
	Long: `Create one environment from the process environment. Only variables
whose name starts with PREFIX are taken, and PREFIX is stripped from the key.

Examples:
  API_BASE_URL=https://api.example.com hitenv import shell API_ --name Shell`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		vars := env.LoadSystemEnv(args[0])
		if len(vars) == 0 {
			return env.Newf(env.CodeInvalidArgument, "no environment variables start with %q", args[0])
		}
		name := importNameFlag
		if name == "" {
			name = "Shell"
		}
		e := env.FromMap(name, fileScope(), vars)
		if err := a.store.Put(ctx, e); err != nil {
			return fmt.Errorf("save environment %q: %w", e.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %d variables)\n", e.Name, e.ID, len(e.Variables))
		if importActivateFlag {
			return activateImported(ctx, cmd, a, e)
		}
		return nil
	}),
}

func init() {
	subs := []*cobra.Command{
		importSubcommand("workspace", "Import a hitenv workspace document"),
		importSubcommand("postman", "Import a Postman environment"),
		importSubcommand("insomnia", "Import the environments of an Insomnia export"),
		importSubcommand("dotenv", "Import a .env file as one environment"),
	}
	for _, c := range append(subs, importCmd) {
		c.Flags().StringVar(&importCollectionFlag, "collection", "", "Import into a collection instead of the global scope (postman, insomnia, dotenv)")
		c.Flags().StringVar(&importNameFlag, "name", "", "Environment name (postman, dotenv)")
		c.Flags().BoolVar(&importActivateFlag, "activate", false, "Activate the imported environment")
		c.Flags().BoolVar(&importBaseFlag, "base", false, "Also import Insomnia base environments that have sub environments")
	}
	importShellCmd.Flags().StringVar(&importCollectionFlag, "collection", "", "Import into a collection instead of the global scope")
	importShellCmd.Flags().StringVar(&importNameFlag, "name", "", "Environment name (default Shell)")
	importShellCmd.Flags().BoolVar(&importActivateFlag, "activate", false, "Activate the imported environment")
	importCmd.AddCommand(subs...)
	importCmd.AddCommand(importShellCmd)
}

// detectKind guesses the import kind of path.
func detectKind(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.ToLower(filepath.Base(path))
	if base == ".env" || strings.HasPrefix(base, ".env.") || ext == ".env" {
		return "dotenv", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	switch {
	case postman.IsPostmanEnvironment(data):
		return "postman", nil
	case insomnia.IsInsomniaExport(data):
		return "insomnia", nil
	case gjson.ValidBytes(data) && gjson.GetBytes(data, "_postai_format").Exists():
		return "workspace", nil
	case ext == ".yaml" || ext == ".yml":
		return "workspace", nil
	}
	return "", usageError("cannot tell what kind of file %s is; use hitenv import workspace|postman|insomnia|dotenv", path)
}

// fileScope is the scope converted environments are placed in.
func fileScope() env.Scope {
	if importCollectionFlag != "" {
		return env.CollectionScope(importCollectionFlag)
	}
	return env.GlobalScope()
}

func runImport(ctx context.Context, cmd *cobra.Command, a *app, kind, path string) error {
	if kind == "workspace" {
		return importWorkspace(ctx, cmd, a, path)
	}

	envs, err := convertFile(cmd, kind, path, fileScope())
	if err != nil {
		return err
	}
	for _, e := range envs {
		if err := a.store.Put(ctx, e); err != nil {
			return fmt.Errorf("save environment %q: %w", e.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %d variables)\n", e.Name, e.ID, len(e.Variables))
	}
	if importActivateFlag {
		return activateImported(ctx, cmd, a, envs[0])
	}
	return nil
}

// convertFile reads a postman, insomnia or dotenv file into validated
// environments. Repairs made on the way are printed to stderr.
func convertFile(cmd *cobra.Command, kind, path string, sc env.Scope) ([]*env.Environment, error) {
	var envs []*env.Environment
	switch kind {
	case "postman":
		opts := []postman.Option{postman.WithScope(sc)}
		if importNameFlag != "" {
			opts = append(opts, postman.WithName(importNameFlag))
		}
		e, repairs, err := postman.NewConverter(opts...).ConvertFile(path)
		if err != nil {
			return nil, err
		}
		printRepairs(cmd, e.Name, repairs)
		envs = append(envs, e)
	case "insomnia":
		converted, err := insomnia.NewConverter(insomnia.WithScope(sc), insomnia.WithBase(importBaseFlag)).ConvertFile(path)
		if err != nil {
			return nil, err
		}
		envs = converted
	case "dotenv":
		name := importNameFlag
		if name == "" {
			name = strings.TrimPrefix(filepath.Base(path), ".")
		}
		e, err := env.FromDotEnv(path, name, sc)
		if err != nil {
			return nil, err
		}
		printRepairs(cmd, e.Name, linkgroup.RepairEnvironment(e))
		envs = append(envs, e)
	default:
		return nil, usageError("unknown import kind %q", kind)
	}
	if len(envs) == 0 {
		return nil, env.Newf(env.CodeInvalidArgument, "%s contains no environments", path)
	}

	for _, e := range envs {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("environment %q: %w", e.Name, err)
		}
	}
	return envs, nil
}

func importWorkspace(ctx context.Context, cmd *cobra.Command, a *app, path string) error {
	res, err := document.NewImporter(a.store, document.WithOverrides(a.store)).ImportFile(ctx, path)
	if err != nil {
		return err
	}
	for _, e := range res.Environments {
		printRepairs(cmd, e.Name, res.Repairs[e.ID])
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %d variables)\n", e.Name, e.ID, len(e.Variables))
	}
	if res.Overrides > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d collection overrides\n", res.Overrides)
	}
	if !importActivateFlag {
		return nil
	}
	for _, e := range res.Environments {
		if e.ID == res.ActiveGlobal {
			return activateImported(ctx, cmd, a, e)
		}
	}
	if len(res.Environments) > 0 {
		return activateImported(ctx, cmd, a, res.Environments[0])
	}
	return nil
}

func activateImported(ctx context.Context, cmd *cobra.Command, a *app, e *env.Environment) error {
	if err := a.scopes.Activate(ctx, e.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Activated %s [%s]\n", e.Name, e.Scope)
	return nil
}

func printRepairs(cmd *cobra.Command, name string, repairs []string) {
	for _, r := range repairs {
		fmt.Fprintf(cmd.ErrOrStderr(), "  repaired %s: %s\n", name, r)
	}
}
