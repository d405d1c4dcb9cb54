package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// Formatter renders hitenv data for a terminal or a program.
type Formatter interface {
	FormatEnvironments(envs []*env.Environment, state ActiveState)
	FormatEnvironment(e *env.Environment, state ActiveState)
	FormatResolution(r *Resolution)
	FormatDiff(d *Diff)
	FormatError(err error)
}

// ActiveState says which environments are currently in use.
type ActiveState struct {
	GlobalID string
	// Overrides maps collection ids to the overriding environment id.
	Overrides map[string]string
}

// IsActive reports whether e is the active global environment or the
// override of its collection.
func (s ActiveState) IsActive(e *env.Environment) bool {
	if e.Scope.IsGlobal() {
		return e.ID == s.GlobalID
	}
	return s.Overrides[e.Scope.CollectionID] == e.ID
}

// Format names an output format.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// New returns the formatter for format, writing to w.
func New(format string, w io.Writer, noColor, showSecrets bool) (Formatter, error) {
	switch Format(strings.ToLower(format)) {
	case "", FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithNoColor(noColor), WithSecrets(showSecrets)), nil
	case FormatJSON:
		return NewJSONFormatter(WithJSONWriter(w), WithJSONSecrets(showSecrets)), nil
	}
	return nil, env.Newf(env.CodeInvalidArgument, "unknown output format %q (console, json)", format)
}

// GroupLetters assigns display letters to the link groups of e: group names
// are sorted and labelled A, B, ... Z, AA, AB and so on. The letters are for
// display only and change when groups are added or removed.
func GroupLetters(e *env.Environment) map[string]string {
	names := e.GroupNames()
	letters := make(map[string]string, len(names))
	for i, name := range names {
		letters[name] = letter(i)
	}
	return letters
}

func letter(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

const secretMask = "••••••"

func displayValue(v *env.Variable, value string, showSecrets bool) string {
	if v.IsSecret && !showSecrets {
		return secretMask
	}
	return value
}

// formatValue truncates long values for display
func formatValue(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// Resolution is a template resolved against a scope list, with the status of
// every token for highlighting.
type Resolution struct {
	Template string
	Result   string
	Tokens   []TokenStatus
}

// TokenStatus is one token and what it resolved to.
type TokenStatus struct {
	env.Token
	Found bool
	Match env.Match
	// Secret is set when the supplying variable is marked secret.
	Secret bool
}

// Resolve builds a Resolution of template against scopes.
func Resolve(template string, scopes []*env.Environment) *Resolution {
	return ResolveWith(template, env.NewResolver(scopes...))
}

// ResolveWith builds a Resolution through res, so its warn hook sees every
// unresolved placeholder.
func ResolveWith(template string, res *env.Resolver) *Resolution {
	scopes := res.Scopes()
	r := &Resolution{
		Template: template,
		Result:   res.Resolve(template),
	}
	for _, tok := range env.Tokens(template) {
		status := TokenStatus{Token: tok}
		status.Match, status.Found = res.Lookup(tok.Key)
		if status.Found {
			status.Secret = isSecret(scopes, status.Match)
		}
		r.Tokens = append(r.Tokens, status)
	}
	return r
}

// Unresolved returns the keys of tokens that found no value.
func (r *Resolution) Unresolved() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range r.Tokens {
		if t.Found {
			continue
		}
		key := t.Key
		if key == "" {
			key = t.Raw
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func isSecret(scopes []*env.Environment, m env.Match) bool {
	for _, e := range scopes {
		if e == nil || e.ID != m.EnvironmentID {
			continue
		}
		if v, ok := e.Variable(m.VariableID); ok {
			return v.IsSecret
		}
	}
	return false
}

func scopeLabel(e *env.Environment) string {
	if e.Scope.IsGlobal() {
		return "global"
	}
	return fmt.Sprintf("collection %s", e.Scope.CollectionID)
}
