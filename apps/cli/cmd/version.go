package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitenv/packages/core/config"
	"github.com/abdul-hamid-achik/hitenv/packages/export/workspace"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

// buildInfo describes this binary and the formats it speaks.
type buildInfo struct {
	Version         string   `json:"version"`
	BuildTime       string   `json:"buildTime"`
	Commit          string   `json:"commit,omitempty"`
	Modified        bool     `json:"modified,omitempty"`
	GoVersion       string   `json:"goVersion"`
	Platform        string   `json:"platform"`
	DocumentVersion string   `json:"documentVersion"`
	DefaultStore    string   `json:"defaultStore"`
	Stores          []string `json:"stores"`
}

func currentBuild() buildInfo {
	info := buildInfo{
		Version:         version,
		BuildTime:       buildTime,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
		DocumentVersion: workspace.Version,
		DefaultStore:    config.DefaultStore,
		Stores:          store.Backends,
	}
	// go install builds carry no ldflags; fall back to module and VCS stamps.
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.time":
				if info.BuildTime == "unknown" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

func (b buildInfo) write(w io.Writer) {
	commit := b.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	} else if b.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(w, "hitenv %s\n", b.Version)
	fmt.Fprintf(w, "  built:     %s\n", b.BuildTime)
	fmt.Fprintf(w, "  commit:    %s\n", commit)
	fmt.Fprintf(w, "  go:        %s %s\n", b.GoVersion, b.Platform)
	fmt.Fprintf(w, "  documents: _postai_version %s\n", b.DocumentVersion)
	fmt.Fprintf(w, "  stores:    %s (default %s)\n", strings.Join(b.Stores, ", "), b.DefaultStore)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and format information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuild()
		if output.Format(outputFlag) == output.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		info.write(cmd.OutOrStdout())
		return nil
	},
}
