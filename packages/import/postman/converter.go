// Package postman imports Postman environment exports.
//
// Both Postman's own layout (one value per entry) and the multi-value layout
// with a values array, selected_value_index and link_group are accepted.
package postman

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
)

// Converter turns Postman environment JSON into environments.
type Converter struct {
	scope env.Scope
	name  string
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithScope sets the scope of the created environment. Global by default.
func WithScope(s env.Scope) Option {
	return func(c *Converter) {
		c.scope = s
	}
}

// WithName overrides the environment name found in the export.
func WithName(name string) Option {
	return func(c *Converter) {
		c.name = name
	}
}

// NewConverter creates a new Postman converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{scope: env.GlobalScope()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsPostmanEnvironment reports whether data looks like a Postman
// environment export.
func IsPostmanEnvironment(data []byte) bool {
	if !gjson.ValidBytes(data) {
		return false
	}
	if gjson.GetBytes(data, "_postman_variable_scope").Exists() {
		return true
	}
	values := gjson.GetBytes(data, "values")
	return values.IsArray() && gjson.GetBytes(data, "name").Exists() && !gjson.GetBytes(data, "environments").Exists()
}

// ConvertFile reads and converts a Postman environment file.
func (c *Converter) ConvertFile(path string) (*env.Environment, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return c.Convert(data)
}

// Convert builds an environment from data and returns it with the list of
// repairs applied to keep link groups consistent.
func (c *Converter) Convert(data []byte) (*env.Environment, []string, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, env.New(env.CodeInvalidArgument, "failed to parse Postman environment: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	values := root.Get("values")
	if !values.IsArray() {
		return nil, nil, env.New(env.CodeInvalidArgument, "Postman environment has no values array")
	}

	name := c.name
	if name == "" {
		name = strings.TrimSpace(root.Get("name").String())
	}
	if name == "" {
		name = "Postman environment"
	}
	e := env.NewEnvironment(name, c.scope)

	byKey := make(map[string]*env.Variable)
	for _, item := range values.Array() {
		key := strings.TrimSpace(item.Get("key").String())
		if key == "" {
			continue
		}
		v := convertValue(key, item)
		if existing, ok := byKey[key]; ok {
			// later entries win, keeping the first position
			v.ID = existing.ID
			*existing = *v
			continue
		}
		byKey[key] = v
		e.Variables = append(e.Variables, v)
	}

	changes := linkgroup.RepairEnvironment(e)
	return e, changes, nil
}

func convertValue(key string, item gjson.Result) *env.Variable {
	v := env.NewVariable(key, "")

	if multi := item.Get("values"); multi.IsArray() {
		v.Values = v.Values[:0]
		for _, s := range multi.Array() {
			v.Values = append(v.Values, s.String())
		}
		v.SelectedIndex = int(item.Get("selected_value_index").Int())
		v.LinkGroup = item.Get("link_group").String()
	} else {
		// numbers and booleans keep their JSON text
		v.Values[0] = item.Get("value").String()
	}

	if enabled := item.Get("enabled"); enabled.Exists() {
		v.Enabled = enabled.Bool()
	}
	v.IsSecret = item.Get("type").String() == "secret" || item.Get("is_secret").Bool()
	v.Description = item.Get("description").String()
	return v
}
