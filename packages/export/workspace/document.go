// Package workspace writes environments to portable exchange documents.
//
// The workspace document carries every environment with all of its rows,
// selections and link groups, plus the collection overrides, so a second
// installation can import it without losing state. A single environment can
// also be written in Postman's environment format, which only has room for
// the selected value of each variable.
package workspace

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

const (
	// Version of the document layout written by this package.
	Version = "1.0"
	// TypeEnvironments marks a document holding environments only.
	TypeEnvironments = "environments"
)

// Document is the top level exchange document.
type Document struct {
	Format       bool          `json:"_postai_format" yaml:"_postai_format"`
	Version      string        `json:"_postai_version" yaml:"_postai_version"`
	Type         string        `json:"_postai_type" yaml:"_postai_type"`
	ExportedAt   string        `json:"_exported_at,omitempty" yaml:"_exported_at,omitempty"`
	Environments []Environment `json:"environments" yaml:"environments"`
	// ActiveEnvironments maps collection ids to the id of the environment
	// overriding them, using the ids found in Environments.
	ActiveEnvironments map[string]string `json:"active_environments,omitempty" yaml:"active_environments,omitempty"`
}

// Environment is one exported environment.
type Environment struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Description  string  `json:"description" yaml:"description"`
	CollectionID string  `json:"collection_id,omitempty" yaml:"collection_id,omitempty"`
	IsActive     bool    `json:"is_active" yaml:"is_active"`
	Values       []Value `json:"values" yaml:"values"`
}

// Value is one exported variable.
type Value struct {
	Key                string   `json:"key" yaml:"key"`
	Values             []string `json:"values" yaml:"values"`
	SelectedValueIndex int      `json:"selected_value_index" yaml:"selected_value_index"`
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	IsSecret           bool     `json:"is_secret" yaml:"is_secret"`
	LinkGroup          *string  `json:"link_group" yaml:"link_group"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// NewDocument returns an empty document with the format markers set.
func NewDocument() *Document {
	return &Document{
		Format:       true,
		Version:      Version,
		Type:         TypeEnvironments,
		Environments: []Environment{},
	}
}

// FromEnvironment converts an environment to its exported form.
func FromEnvironment(e *env.Environment) Environment {
	out := Environment{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		IsActive:    e.IsActive,
		Values:      make([]Value, 0, len(e.Variables)),
	}
	if !e.Scope.IsGlobal() {
		out.CollectionID = e.Scope.CollectionID
	}
	for _, v := range e.Variables {
		val := Value{
			Key:                v.Key,
			Values:             append([]string(nil), v.Values...),
			SelectedValueIndex: v.SelectedIndex,
			Enabled:            v.Enabled,
			IsSecret:           v.IsSecret,
			Description:        v.Description,
		}
		if v.LinkGroup != "" {
			group := v.LinkGroup
			val.LinkGroup = &group
		}
		out.Values = append(out.Values, val)
	}
	return out
}

// Scope returns the scope the environment belongs to.
func (e Environment) Scope() env.Scope {
	if e.CollectionID == "" {
		return env.GlobalScope()
	}
	return env.CollectionScope(e.CollectionID)
}

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (v *Value) UnmarshalJSON(data []byte) error {
	type plain Value
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = Value(p)
	return nil
}

// UnmarshalYAML defaults Enabled to true when the field is absent.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	type plain Value
	p := plain{Enabled: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = Value(p)
	return nil
}
