package env

import (
	"os"
	"sort"
	"strings"
)

// FromMap builds a new environment from plain key/value pairs. Keys are
// added in sorted order so the result is deterministic.
func FromMap(name string, scope Scope, vars map[string]string) *Environment {
	e := NewEnvironment(name, scope)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Variables = append(e.Variables, NewVariable(k, vars[k]))
	}
	return e
}

// LoadSystemEnv returns process environment variables whose name starts
// with prefix, with the prefix stripped. An empty prefix returns everything.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
