package config

import "time"

const (
	DefaultStore         = "sqlite:./hitenv.db"
	DefaultExportFormat  = "json"
	DefaultOutput        = "console"
	DefaultWatchInterval = 250 * time.Millisecond
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Store:         DefaultStore,
		ExportFormat:  DefaultExportFormat,
		Output:        DefaultOutput,
		WatchInterval: DefaultWatchInterval,
		Verbose:       BoolPtr(false),
		NoColor:       BoolPtr(false),
		ShowSecrets:   BoolPtr(false),
	}
}

// defaultValues is DefaultConfig as a koanf map.
func defaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"store":         d.Store,
		"exportFormat":  d.ExportFormat,
		"output":        d.Output,
		"watchInterval": d.WatchInterval.String(),
		"verbose":       *d.Verbose,
		"noColor":       *d.NoColor,
		"showSecrets":   *d.ShowSecrets,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Store == defaults.Store &&
		c.DefaultCollection == defaults.DefaultCollection &&
		c.ExportFormat == defaults.ExportFormat &&
		c.Output == defaults.Output &&
		c.WatchInterval == defaults.WatchInterval &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.GetShowSecrets() == defaults.GetShowSecrets()
}
