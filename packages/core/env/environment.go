package env

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ScopeKind distinguishes global environments from collection environments.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeCollection ScopeKind = "collection"
)

// Scope says where an environment applies.
type Scope struct {
	Kind         ScopeKind `json:"kind" yaml:"kind"`
	CollectionID string    `json:"collectionId,omitempty" yaml:"collectionId,omitempty"`
}

// GlobalScope returns the scope of a user-level environment.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// CollectionScope returns the scope of an environment owned by a collection.
func CollectionScope(collectionID string) Scope {
	return Scope{Kind: ScopeCollection, CollectionID: collectionID}
}

func (s Scope) IsGlobal() bool {
	return s.Kind != ScopeCollection
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s(%s)", ScopeCollection, s.CollectionID)
}

// Variable is a named list of candidate values with one selected row.
type Variable struct {
	ID            string   `json:"id" yaml:"id"`
	Key           string   `json:"key" yaml:"key"`
	Values        []string `json:"values" yaml:"values"`
	SelectedIndex int      `json:"selectedIndex" yaml:"selectedIndex"`
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	IsSecret      bool     `json:"isSecret" yaml:"isSecret"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	LinkGroup     string   `json:"linkGroup,omitempty" yaml:"linkGroup,omitempty"`
}

// NewVariable creates an enabled, ungrouped variable holding a single value.
func NewVariable(key, value string) *Variable {
	return &Variable{
		ID:      uuid.New().String(),
		Key:     key,
		Values:  []string{value},
		Enabled: true,
	}
}

// CurrentValue returns the selected value, or "" if the selection is invalid.
func (v *Variable) CurrentValue() string {
	if v.SelectedIndex < 0 || v.SelectedIndex >= len(v.Values) {
		return ""
	}
	return v.Values[v.SelectedIndex]
}

// Linked reports whether the variable carries a link group label.
func (v *Variable) Linked() bool {
	return v.LinkGroup != ""
}

func (v *Variable) clone() *Variable {
	c := *v
	c.Values = append([]string(nil), v.Values...)
	return &c
}

// Environment is the aggregate every store reads and writes as a whole.
type Environment struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       Scope       `json:"scope" yaml:"scope"`
	IsActive    bool        `json:"isActive" yaml:"isActive"`
	Variables   []*Variable `json:"variables" yaml:"variables"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// NewEnvironment creates an empty, inactive environment.
func NewEnvironment(name string, scope Scope) *Environment {
	now := time.Now().UTC()
	return &Environment{
		ID:        uuid.New().String(),
		Name:      name,
		Scope:     scope,
		Variables: []*Variable{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy that keeps every id.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	c := *e
	c.Variables = make([]*Variable, len(e.Variables))
	for i, v := range e.Variables {
		c.Variables[i] = v.clone()
	}
	return &c
}

// Duplicate returns a deep copy with fresh environment and variable ids.
// Link groups are kept as-is since they only have meaning inside one
// environment.
func (e *Environment) Duplicate(name string) *Environment {
	d := e.Clone()
	now := time.Now().UTC()
	d.ID = uuid.New().String()
	d.Name = name
	d.IsActive = false
	d.CreatedAt = now
	d.UpdatedAt = now
	for _, v := range d.Variables {
		v.ID = uuid.New().String()
	}
	return d
}

// Variable returns the variable with the given id.
func (e *Environment) Variable(id string) (*Variable, bool) {
	for _, v := range e.Variables {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// VariableByKey returns the first variable with the given key.
func (e *Environment) VariableByKey(key string) (*Variable, bool) {
	for _, v := range e.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return nil, false
}

// Group returns the members of a link group in variable order.
func (e *Environment) Group(name string) []*Variable {
	if name == "" {
		return nil
	}
	var members []*Variable
	for _, v := range e.Variables {
		if v.LinkGroup == name {
			members = append(members, v)
		}
	}
	return members
}

// Members returns the variables that move together with v, v included.
func (e *Environment) Members(v *Variable) []*Variable {
	if !v.Linked() {
		return []*Variable{v}
	}
	return e.Group(v.LinkGroup)
}

// GroupNames returns the sorted set of link group labels in use.
func (e *Environment) GroupNames() []string {
	seen := make(map[string]struct{})
	for _, v := range e.Variables {
		if v.Linked() {
			seen[v.LinkGroup] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Touch stamps the update time.
func (e *Environment) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Validate checks the variable invariants and returns the first violation.
func (e *Environment) Validate() error {
	for _, v := range e.Variables {
		if len(v.Values) == 0 {
			return Newf(CodeInvariant, "variable %q has no values", v.Key).WithDetail("variable", v.ID)
		}
		if v.SelectedIndex < 0 || v.SelectedIndex >= len(v.Values) {
			return Newf(CodeInvariant, "variable %q selects row %d of %d", v.Key, v.SelectedIndex, len(v.Values)).
				WithDetail("variable", v.ID)
		}
	}
	for _, name := range e.GroupNames() {
		members := e.Group(name)
		if len(members) < 2 {
			return Newf(CodeInvariant, "link group %q has a single member", name).WithDetail("group", name)
		}
		first := members[0]
		for _, m := range members[1:] {
			if len(m.Values) != len(first.Values) {
				return Newf(CodeInvariant, "link group %q has members with %d and %d rows",
					name, len(first.Values), len(m.Values)).WithDetail("group", name)
			}
			if m.SelectedIndex != first.SelectedIndex {
				return Newf(CodeInvariant, "link group %q has members selecting rows %d and %d",
					name, first.SelectedIndex, m.SelectedIndex).WithDetail("group", name)
			}
		}
	}
	return nil
}
