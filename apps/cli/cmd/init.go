package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/core/config"
	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
)

var (
	forceInit bool
	seedInit  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitenv workspace",
	Long: `Initialize a hitenv workspace in the current directory.

This creates .hitenv.yaml with the default settings. With --seed it also
stores two example environments: Development (active) and Production, each
with a linked baseUrl/region pair.

Examples:
  hitenv init
  hitenv init --seed
  hitenv init --force --store file:./workspace.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedInit {
			return withApp(initCommand)(cmd, args)
		}
		return initCommand(cmd.Context(), cmd, current, args)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&seedInit, "seed", false, "Store example environments")
}

func initCommand(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	if _, err := os.Stat(configFile); err == nil && !forceInit {
		return fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile)
	}

	cfg := config.DefaultConfig()
	cfg.Store = a.cfg.Store
	if err := cfg.SaveConfig(configFile); err != nil {
		return configError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if seedInit {
		if err := seed(ctx, a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored example environments in %s\n", a.cfg.Store)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitenv workspace initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitenv env list' to see your environments.\n")
	return nil
}

func seed(ctx context.Context, a *app) error {
	examples := []struct {
		name    string
		baseURL []string
		region  []string
	}{
		{"Development", []string{"http://localhost:3000", "http://localhost:3001"}, []string{"local", "local-replica"}},
		{"Production", []string{"https://api.example.com", "https://eu.api.example.com"}, []string{"us-east-1", "eu-west-1"}},
	}

	var first *env.Environment
	for _, ex := range examples {
		e, err := a.coord.CreateEnvironment(ctx, ex.name, env.GlobalScope())
		if err != nil {
			return err
		}
		if first == nil {
			first = e
		}
		base, err := a.coord.AddVariable(ctx, e.ID, "baseUrl", ex.baseURL[0])
		if err != nil {
			return err
		}
		region, err := a.coord.AddVariable(ctx, e.ID, "region", ex.region[0])
		if err != nil {
			return err
		}
		if _, err := a.coord.LinkVariables(ctx, e.ID, base.ID, region.ID); err != nil {
			return err
		}
		values := map[string]string{base.ID: ex.baseURL[1], region.ID: ex.region[1]}
		if _, err := a.coord.AddValueRow(ctx, e.ID, base.ID, values); err != nil {
			return err
		}
		token, err := a.coord.AddVariable(ctx, e.ID, "token", "")
		if err != nil {
			return err
		}
		secret := true
		if _, err := a.coord.UpdateVariable(ctx, e.ID, token.ID, linkgroup.VariablePatch{IsSecret: &secret}); err != nil {
			return err
		}
	}
	return a.scopes.Activate(ctx, first.ID)
}
