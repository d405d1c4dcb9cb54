package env

import (
	"regexp"
	"strings"
	"sync"
)

// tokenPattern matches {{ ... }} placeholders. The lazy quantifier stops each
// token at the first closing delimiter.
var tokenPattern = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)

// Token is one placeholder found in a template.
type Token struct {
	Key   string // trimmed content, "" when the placeholder is blank
	Raw   string // the placeholder including delimiters
	Start int    // byte offset of the opening delimiter
	End   int    // byte offset just past the closing delimiter
}

// Match is a successful lookup and where it came from.
type Match struct {
	Key           string
	Value         string
	EnvironmentID string
	VariableID    string
}

// Tokens returns every placeholder in template, left to right.
func Tokens(template string) []Token {
	locs := tokenPattern.FindAllStringSubmatchIndex(template, -1)
	if len(locs) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{
			Key:   strings.TrimSpace(template[loc[2]:loc[3]]),
			Raw:   template[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return tokens
}

// Lookup searches scopes in priority order for an enabled variable named key
// and returns its selected value. An empty value is still a match.
func Lookup(key string, scopes []*Environment) (Match, bool) {
	if key == "" {
		return Match{}, false
	}
	for _, e := range scopes {
		if e == nil {
			continue
		}
		for _, v := range e.Variables {
			if !v.Enabled || v.Key != key {
				continue
			}
			return Match{
				Key:           key,
				Value:         v.CurrentValue(),
				EnvironmentID: e.ID,
				VariableID:    v.ID,
			}, true
		}
	}
	return Match{}, false
}

// Resolve substitutes every placeholder that Lookup can answer. Unknown
// placeholders are kept verbatim, delimiters included.
func Resolve(template string, scopes []*Environment) string {
	return resolve(template, scopes, nil)
}

// Unresolved returns the distinct keys in template that no scope defines,
// in order of first appearance.
func Unresolved(template string, scopes []*Environment) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, tok := range Tokens(template) {
		if _, ok := Lookup(tok.Key, scopes); ok {
			continue
		}
		key := tok.Key
		if key == "" {
			key = tok.Raw
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		missing = append(missing, key)
	}
	return missing
}

func resolve(template string, scopes []*Environment, warn WarnFunc) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(raw string) string {
		key := strings.TrimSpace(raw[2 : len(raw)-2])
		if m, ok := Lookup(key, scopes); ok {
			return m.Value
		}
		if warn != nil {
			warn("unresolved variable: %s", raw)
		}
		return raw
	})
}

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver binds a scope list so callers can resolve many strings against
// the same snapshot. It is safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	scopes   []*Environment
	warnFunc WarnFunc
}

func NewResolver(scopes ...*Environment) *Resolver {
	return &Resolver{scopes: scopes}
}

// SetWarnFunc sets a function to be called for every unresolved placeholder
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// SetScopes replaces the scope list, highest priority first.
func (r *Resolver) SetScopes(scopes ...*Environment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = scopes
}

func (r *Resolver) Scopes() []*Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Environment(nil), r.scopes...)
}

func (r *Resolver) Resolve(input string) string {
	r.mu.RLock()
	scopes, warn := r.scopes, r.warnFunc
	r.mu.RUnlock()
	return resolve(input, scopes, warn)
}

func (r *Resolver) Lookup(key string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Lookup(key, r.scopes)
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// HasUnresolvedVariables reports whether any placeholder in input is unknown.
func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

// GetUnresolvedVariables returns the unknown keys in input, or nil.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Unresolved(input, r.scopes)
}
