package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

type ConsoleFormatter struct {
	writer      io.Writer
	verbose     bool
	noColor     bool
	showSecrets bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithSecrets prints secret values instead of a mask.
func WithSecrets(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.showSecrets = show
	}
}

func (f *ConsoleFormatter) FormatEnvironments(envs []*env.Environment, state ActiveState) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if len(envs) == 0 {
		fmt.Fprintf(f.writer, "No environments\n")
		return
	}
	for _, e := range envs {
		marker := " "
		if state.IsActive(e) {
			marker = green("*")
		}
		fmt.Fprintf(f.writer, "%s %s %s %s\n", marker, e.Name, cyan("("+scopeLabel(e)+")"),
			faint(fmt.Sprintf("%d vars  %s", len(e.Variables), e.ID)))
	}
}

func (f *ConsoleFormatter) FormatEnvironment(e *env.Environment, state ActiveState) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	title := bold(e.Name)
	if state.IsActive(e) {
		title += " " + green("(active)")
	}
	fmt.Fprintf(f.writer, "\n%s %s\n", title, cyan("["+scopeLabel(e)+"]"))
	if e.Description != "" {
		fmt.Fprintf(f.writer, "%s\n", e.Description)
	}
	if f.verbose {
		fmt.Fprintf(f.writer, "%s\n", faint("id: "+e.ID))
	}
	fmt.Fprintf(f.writer, "\n")

	if len(e.Variables) == 0 {
		fmt.Fprintf(f.writer, "  No variables\n\n")
		return
	}

	letters := GroupLetters(e)
	for _, v := range e.Variables {
		badge := "   "
		if v.Linked() {
			badge = yellow("[" + letters[v.LinkGroup] + "]")
		}
		key := v.Key
		if !v.Enabled {
			key = faint(key + " (disabled)")
		}
		fmt.Fprintf(f.writer, "  %s %s = %s", badge, key,
			formatValue(displayValue(v, v.CurrentValue(), f.showSecrets), 80))
		if len(v.Values) > 1 {
			fmt.Fprintf(f.writer, " %s", faint(fmt.Sprintf("(%d/%d)", v.SelectedIndex+1, len(v.Values))))
		}
		fmt.Fprintf(f.writer, "\n")

		if f.verbose {
			if len(v.Values) > 1 {
				for i, value := range v.Values {
					pointer := " "
					if i == v.SelectedIndex {
						pointer = green("→")
					}
					fmt.Fprintf(f.writer, "        %s %d: %s\n", pointer, i, formatValue(displayValue(v, value, f.showSecrets), 80))
				}
			}
			fmt.Fprintf(f.writer, "        %s\n", faint("id: "+v.ID))
		}
	}

	if len(letters) > 0 {
		fmt.Fprintf(f.writer, "\n  Link groups:")
		for _, name := range e.GroupNames() {
			fmt.Fprintf(f.writer, " %s %s", yellow("["+letters[name]+"]"), name)
		}
		fmt.Fprintf(f.writer, "\n")
	}
	fmt.Fprintf(f.writer, "\n")
}

// FormatResolution prints the resolved string followed by the template with
// known tokens in green and unknown tokens in red.
func (f *ConsoleFormatter) FormatResolution(r *Resolution) {
	fmt.Fprintf(f.writer, "%s\n", r.Result)
	if !f.verbose || len(r.Tokens) == 0 {
		return
	}
	fmt.Fprintf(f.writer, "%s\n", f.highlight(r))
	for _, t := range r.Tokens {
		if !t.Found {
			fmt.Fprintf(f.writer, "  %s %s\n", color.RedString("✗"), t.Raw)
			continue
		}
		value := t.Match.Value
		if t.Secret && !f.showSecrets {
			value = secretMask
		}
		fmt.Fprintf(f.writer, "  %s %s = %s\n", color.GreenString("✓"), t.Key, formatValue(value, 80))
	}
}

func (f *ConsoleFormatter) highlight(r *Resolution) string {
	known := color.New(color.FgGreen, color.Bold).SprintFunc()
	unknown := color.New(color.FgRed, color.Underline).SprintFunc()

	var sb strings.Builder
	last := 0
	for _, t := range r.Tokens {
		sb.WriteString(r.Template[last:t.Start])
		if t.Found {
			sb.WriteString(known(t.Raw))
		} else {
			sb.WriteString(unknown(t.Raw))
		}
		last = t.End
	}
	sb.WriteString(r.Template[last:])
	return sb.String()
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitenv"), version)
}
