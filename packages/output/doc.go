// Package output provides formatters for displaying environments and
// template resolutions.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Each formatter implements the Formatter interface.
package output
