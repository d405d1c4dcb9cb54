package linkgroup

import (
	"context"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// VariablePatch lists the plain fields UpdateVariable may change. Nil fields
// are left alone. Values, selection and group membership have dedicated
// operations.
type VariablePatch struct {
	Key         *string
	Description *string
	Enabled     *bool
	IsSecret    *bool
}

// AddVariable appends a new single-value, ungrouped variable.
func (c *Coordinator) AddVariable(ctx context.Context, envID, key, value string) (*env.Variable, error) {
	var added *env.Variable
	_, err := c.update(ctx, "add_variable", envID, func(e *env.Environment) error {
		if err := checkKey(e, key, ""); err != nil {
			return err
		}
		added = env.NewVariable(key, value)
		e.Variables = append(e.Variables, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveVariable deletes a variable and dissolves a group it leaves with a
// single member.
func (c *Coordinator) RemoveVariable(ctx context.Context, envID, varID string) (*env.Environment, error) {
	return c.update(ctx, "remove_variable", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		detach(e, v)
		kept := e.Variables[:0]
		for _, other := range e.Variables {
			if other.ID != varID {
				kept = append(kept, other)
			}
		}
		e.Variables = kept
		return nil
	})
}

// UpdateVariable applies patch to a variable.
func (c *Coordinator) UpdateVariable(ctx context.Context, envID, varID string, patch VariablePatch) (*env.Environment, error) {
	return c.update(ctx, "update_variable", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		if patch.Key != nil && *patch.Key != v.Key {
			if err := checkKey(e, *patch.Key, v.ID); err != nil {
				return err
			}
			v.Key = *patch.Key
		}
		if patch.Description != nil {
			v.Description = *patch.Description
		}
		if patch.Enabled != nil {
			v.Enabled = *patch.Enabled
		}
		if patch.IsSecret != nil {
			v.IsSecret = *patch.IsSecret
		}
		return nil
	})
}

// SetValue replaces the value at row of one variable. Other group members
// are not touched; a row is a configuration, not a shared value.
func (c *Coordinator) SetValue(ctx context.Context, envID, varID string, row int, value string) (*env.Environment, error) {
	return c.update(ctx, "set_value", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		if row < 0 || row >= len(v.Values) {
			return outOfRange(v, row)
		}
		v.Values[row] = value
		return nil
	})
}

// PadRows appends empty rows to a variable, and to its group when linked,
// until it has length rows. Used before linking variables whose row counts
// differ. Already long enough is a no-op.
func (c *Coordinator) PadRows(ctx context.Context, envID, varID string, length int) (*env.Environment, error) {
	return c.update(ctx, "pad_rows", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		for _, m := range e.Members(v) {
			for len(m.Values) < length {
				m.Values = append(m.Values, "")
			}
		}
		return nil
	})
}

// Reorder sets the display order of the variables. orderedIDs must be a
// permutation of the current variable ids.
func (c *Coordinator) Reorder(ctx context.Context, envID string, orderedIDs []string) (*env.Environment, error) {
	return c.update(ctx, "reorder", envID, func(e *env.Environment) error {
		if len(orderedIDs) != len(e.Variables) {
			return env.Newf(env.CodeInvalidArgument, "expected %d variable ids, got %d", len(e.Variables), len(orderedIDs))
		}
		seen := make(map[string]bool, len(orderedIDs))
		ordered := make([]*env.Variable, 0, len(orderedIDs))
		for _, id := range orderedIDs {
			v, err := variable(e, id)
			if err != nil {
				return err
			}
			if seen[id] {
				return env.Newf(env.CodeInvalidArgument, "variable %q listed twice", id)
			}
			seen[id] = true
			ordered = append(ordered, v)
		}
		e.Variables = ordered
		return nil
	})
}

func checkKey(e *env.Environment, key, selfID string) error {
	if key == "" {
		return env.New(env.CodeInvalidArgument, "variable key cannot be empty")
	}
	for _, v := range e.Variables {
		if v.Key == key && v.ID != selfID {
			return env.Newf(env.CodeDuplicateKey, "variable %q already exists in environment %q", key, e.Name).
				WithDetail("variable", v.ID)
		}
	}
	return nil
}
