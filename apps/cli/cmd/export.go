package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/export/workspace"
)

var (
	exportFormatFlag      string
	exportCollectionsFlag []string
	exportNoGlobalsFlag   bool
	exportEnvFlag         string
)

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write environments to a workspace document",
	Long: `Export environments, their values, selections, link groups and
collection overrides to a document that "hitenv import" reads back.

Without FILE (or with -) the document is written to stdout. The format
follows --format, then the file extension, then exportFormat from config.

--format postman writes a single environment (--env) as a Postman
environment holding each variable's selected value.

Examples:
  hitenv export workspace.json
  hitenv export backup.yaml --collection payments --no-globals
  hitenv export --format postman --env Staging > staging.postman_environment.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		postmanFormat := strings.EqualFold(exportFormatFlag, "postman")
		var format workspace.Format
		if !postmanFormat {
			f, err := workspaceFormat(exportFormatFlag, path, a.cfg.ExportFormat)
			if err != nil {
				return err
			}
			format = f
		}

		var w io.Writer = cmd.OutOrStdout()
		if path != "" && path != "-" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory: %w", err)
				}
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if postmanFormat {
			return exportPostman(ctx, a, w)
		}

		x := workspace.NewExporter(
			workspace.WithFormat(format),
			workspace.WithCollections(exportCollectionsFlag...),
			workspace.WithGlobals(!exportNoGlobalsFlag),
		)
		doc, err := x.Export(ctx, a.store, w)
		if err != nil {
			return err
		}
		if path != "" && path != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d environments to %s\n", len(doc.Environments), path)
		}
		return nil
	}),
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormatFlag, "format", "f", "", "Output format: json, yaml, postman")
	exportCmd.Flags().StringSliceVar(&exportCollectionsFlag, "collection", nil, "Only export these collections (repeatable)")
	exportCmd.Flags().BoolVar(&exportNoGlobalsFlag, "no-globals", false, "Leave global environments out")
	exportCmd.Flags().StringVar(&exportEnvFlag, "env", "", "Environment to export with --format postman")
}

func exportPostman(ctx context.Context, a *app, w io.Writer) error {
	if exportEnvFlag == "" {
		return usageError("--format postman needs --env")
	}
	e, err := a.findEnvironment(ctx, exportEnvFlag)
	if err != nil {
		return err
	}
	return workspace.Write(w, workspace.ToPostman(e, time.Now().UTC()), workspace.FormatJSON)
}

// workspaceFormat picks the export encoding from --format, the file
// extension and the configured default, in that order.
func workspaceFormat(flag, path, fallback string) (workspace.Format, error) {
	if flag != "" {
		return workspace.ParseFormat(flag)
	}
	if path != "" && path != "-" {
		return workspace.FormatForPath(path), nil
	}
	if fallback != "" {
		return workspace.ParseFormat(fallback)
	}
	return workspace.FormatJSON, nil
}
