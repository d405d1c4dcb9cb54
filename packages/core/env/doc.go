// Package env holds the environment variable model and template resolution
// for hitenv.
//
// It provides functionality for:
//   - Environments scoped globally or to a single collection
//   - Multi-value variables with a selected row and optional link group
//   - Invariant checking for values, selection and link groups
//   - Variable interpolation using {{variable}} syntax over a scope list
//   - Loading variables from .env files and the process environment
package env
