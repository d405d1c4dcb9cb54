// Package insomnia converts the environments of an Insomnia export into
// hitenv environments.
package insomnia

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

var (
	prefixedVar   = regexp.MustCompile(`\{\{\s*_\.([\w.]+)\s*\}\}`)
	spacedVar     = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)
	resourceTypes = map[string]bool{"environment": true}
)

// Converter converts Insomnia exports to environments.
type Converter struct {
	scope       env.Scope
	includeBase bool
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithScope sets the scope of every created environment. Global by default.
func WithScope(s env.Scope) Option {
	return func(c *Converter) {
		c.scope = s
	}
}

// WithBase configures whether the base environment is imported on its own
// when it has sub environments. A base environment without sub
// environments is always imported.
func WithBase(include bool) Option {
	return func(c *Converter) {
		c.includeBase = include
	}
}

// NewConverter creates a new Insomnia converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		scope: env.GlobalScope(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export represents an Insomnia export file.
type Export struct {
	Type         string     `json:"_type"`
	ExportFormat int        `json:"__export_format"`
	Resources    []Resource `json:"resources"`
}

// Resource represents an Insomnia resource. Only environment fields are
// decoded.
type Resource struct {
	ID                string              `json:"_id"`
	Type              string              `json:"_type"`
	ParentID          string              `json:"parentId"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	Data              map[string]any      `json:"data,omitempty"`
	DataPropertyOrder map[string][]string `json:"dataPropertyOrder,omitempty"`
	MetaSortKey       float64             `json:"metaSortKey,omitempty"`
}

// IsInsomniaExport reports whether data looks like an Insomnia export.
func IsInsomniaExport(data []byte) bool {
	var header struct {
		Type   string `json:"_type"`
		Format int    `json:"__export_format"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return false
	}
	return header.Type == "export" || header.Format > 0
}

// ConvertFile converts an Insomnia export file.
func (c *Converter) ConvertFile(path string) ([]*env.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return c.Convert(data)
}

// Convert returns one environment per sub environment, with the base
// environment's data merged underneath. Values are flattened to dotted keys
// and Insomnia's {{ _.name }} references become {{name}}.
func (c *Converter) Convert(data []byte) ([]*env.Environment, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, env.Wrap(err, env.CodeInvalidArgument, "failed to parse Insomnia export")
	}

	// Build parent-child relationships
	envs := make(map[string]Resource)
	children := make(map[string][]Resource)
	for _, res := range export.Resources {
		if !resourceTypes[res.Type] {
			continue
		}
		envs[res.ID] = res
	}
	var bases []Resource
	for _, res := range envs {
		if _, ok := envs[res.ParentID]; ok {
			children[res.ParentID] = append(children[res.ParentID], res)
		} else {
			bases = append(bases, res)
		}
	}
	sortResources(bases)

	out := make([]*env.Environment, 0, len(envs))
	for _, base := range bases {
		subs := children[base.ID]
		sortResources(subs)
		if len(subs) == 0 || c.includeBase {
			out = append(out, c.build(base.Name, base.Description, base))
		}
		for _, sub := range subs {
			out = append(out, c.build(sub.Name, sub.Description, base, sub))
		}
	}
	return out, nil
}

// build merges layers left to right; later layers win but keep the position
// of the first definition.
func (c *Converter) build(name, description string, layers ...Resource) *env.Environment {
	if strings.TrimSpace(name) == "" {
		name = "Insomnia environment"
	}
	e := env.NewEnvironment(name, c.scope)
	e.Description = description

	for _, layer := range layers {
		for _, kv := range flatten(layer) {
			value := c.convertVariable(kv.value)
			if v, ok := e.VariableByKey(kv.key); ok {
				v.Values[0] = value
				continue
			}
			e.Variables = append(e.Variables, env.NewVariable(kv.key, value))
		}
	}
	return e
}

type pair struct {
	key   string
	value string
}

// flatten walks res.Data in dataPropertyOrder when present, sorted
// otherwise, producing dotted keys for nested objects.
func flatten(res Resource) []pair {
	var out []pair
	var walk func(prefix string, data map[string]any, order []string)
	walk = func(prefix string, data map[string]any, order []string) {
		for _, k := range orderedKeys(data, order) {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch val := data[k].(type) {
			case map[string]any:
				walk(key, val, res.DataPropertyOrder["&."+key])
			case string:
				out = append(out, pair{key, val})
			case nil:
				out = append(out, pair{key, ""})
			default:
				raw, err := json.Marshal(val)
				if err != nil {
					raw = []byte(fmt.Sprintf("%v", val))
				}
				out = append(out, pair{key, string(raw)})
			}
		}
	}
	walk("", res.Data, res.DataPropertyOrder["&"])
	return out
}

func orderedKeys(data map[string]any, order []string) []string {
	keys := make([]string, 0, len(data))
	seen := make(map[string]bool, len(data))
	for _, k := range order {
		if _, ok := data[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func sortResources(rs []Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].MetaSortKey != rs[j].MetaSortKey {
			return rs[i].MetaSortKey < rs[j].MetaSortKey
		}
		return rs[i].ID < rs[j].ID
	})
}

// convertVariable converts Insomnia variable syntax to hitenv syntax.
// Insomnia uses {{ _.variableName }} or {{ variableName }}
func (c *Converter) convertVariable(s string) string {
	// Convert {{ _.variableName }} to {{variableName}}
	s = prefixedVar.ReplaceAllString(s, "{{$1}}")
	// Convert {{ variableName }} to {{variableName}} (normalize spaces)
	s = spacedVar.ReplaceAllString(s, "{{$1}}")
	return s
}
