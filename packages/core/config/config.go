package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override the
// configuration, e.g. HITENV_STORE or HITENV_DEFAULT_COLLECTION.
const EnvPrefix = "HITENV_"

// Config represents the hitenv configuration
type Config struct {
	Store             string        `koanf:"store" json:"store,omitempty" yaml:"store,omitempty"`                                     // store connection string
	DefaultCollection string        `koanf:"defaultCollection" json:"defaultCollection,omitempty" yaml:"defaultCollection,omitempty"` // used when --collection is not given
	ExportFormat      string        `koanf:"exportFormat" json:"exportFormat,omitempty" yaml:"exportFormat,omitempty"`
	Output            string        `koanf:"output" json:"output,omitempty" yaml:"output,omitempty"` // console or json
	WatchInterval     time.Duration `koanf:"watchInterval" json:"watchInterval,omitempty" yaml:"watchInterval,omitempty"`
	Verbose           *bool         `koanf:"verbose" json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor           *bool         `koanf:"noColor" json:"noColor,omitempty" yaml:"noColor,omitempty"`
	ShowSecrets       *bool         `koanf:"showSecrets" json:"showSecrets,omitempty" yaml:"showSecrets,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetShowSecrets returns the show secrets setting, defaulting to false
func (c *Config) GetShowSecrets() bool {
	return getBool(c.ShowSecrets, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitenv.yaml",
	".hitenv.yml",
	"hitenv.yaml",
	".hitenv.json",
	".hitenvrc",
}

// LoadConfig loads configuration from the specified path or searches for
// config files in the current directory.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return load(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory.
// Defaults and environment overrides apply even when none is found.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return load(configPath)
		}
	}
	return load("")
}

// load layers defaults, the file at path (if any) and HITENV_ variables.
func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		// the YAML parser reads JSON as well
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HITENV_DEFAULT_COLLECTION to defaultCollection. Unknown
// variables map to "" and are skipped.
func envKey(name string) string {
	flat := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", "")
	for key := range defaultValues() {
		if strings.ToLower(key) == flat {
			return key
		}
	}
	if flat == "defaultcollection" {
		return "defaultCollection"
	}
	return ""
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.ExportFormat) {
	case "", "json", "yaml", "yml":
	default:
		problems = append(problems, fmt.Sprintf("exportFormat %q must be json or yaml", c.ExportFormat))
	}
	switch strings.ToLower(c.Output) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("output %q must be console or json", c.Output))
	}
	if c.WatchInterval < 0 {
		problems = append(problems, "watchInterval cannot be negative")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Store != "" {
		result.Store = other.Store
	}
	if other.DefaultCollection != "" {
		result.DefaultCollection = other.DefaultCollection
	}
	if other.ExportFormat != "" {
		result.ExportFormat = other.ExportFormat
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.WatchInterval > 0 {
		result.WatchInterval = other.WatchInterval
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.ShowSecrets != nil {
		result.ShowSecrets = other.ShowSecrets
	}

	return &result
}

// SaveConfig saves the configuration to a file, as JSON for .json paths and
// YAML otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yamlv3.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
