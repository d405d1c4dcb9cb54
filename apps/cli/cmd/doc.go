// Package cmd implements the hitenv CLI commands using Cobra.
//
// Available commands:
//   - env: Create, list, show, duplicate, rename, delete and activate environments
//   - var: Edit variables, value rows and link groups
//   - resolve, lookup: Substitute {{name}} placeholders with active values
//   - export, import: Move environments between stores and other tools
//   - watch: Follow a file store that other processes write to
//   - init: Write a starter configuration
//   - version: Show hitenv version information
//
// Every command that touches environments opens the store named by --store,
// HITENV_STORE or the config file, in that order.
package cmd
