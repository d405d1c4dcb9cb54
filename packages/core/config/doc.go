// Package config handles configuration loading and management for hitenv.
//
// It provides functionality for:
//   - Loading configuration from .hitenv.yaml, .hitenv.json or .hitenvrc files
//   - Overriding any setting with HITENV_ environment variables
//   - Default configuration values
package config
