package linkgroup

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

// Coordinator applies link-group aware mutations to environments held in a
// repository.
type Coordinator struct {
	repo   store.Repository
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator creates a coordinator over repo.
func NewCoordinator(repo store.Repository) *Coordinator {
	return &Coordinator{
		repo:   repo,
		logger: logging.GetLogger("linkgroup"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) lock(envID string) func() {
	c.mu.Lock()
	l, ok := c.locks[envID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[envID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// update runs fn against a working copy of the environment and stores the
// result once fn succeeded and the invariants hold.
func (c *Coordinator) update(ctx context.Context, op, envID string, fn func(e *env.Environment) error) (*env.Environment, error) {
	unlock := c.lock(envID)
	defer unlock()
	done := logging.LogOperationStart(c.logger, op)
	defer done()

	current, err := c.repo.Get(ctx, envID)
	if err != nil {
		return nil, c.reject(op, envID, err)
	}
	work := current.Clone()
	if err := fn(work); err != nil {
		return nil, c.reject(op, envID, err)
	}
	if err := work.Validate(); err != nil {
		return nil, c.reject(op, envID, err)
	}
	work.Touch()
	if err := c.repo.Put(ctx, work); err != nil {
		return nil, c.reject(op, envID, fmt.Errorf("save environment %s: %w", envID, err))
	}
	return work, nil
}

func (c *Coordinator) reject(op, envID string, err error) error {
	c.logger.Info().
		Str("operation", op).
		Str("env", envID).
		Str("code", string(env.CodeOf(err))).
		Err(err).
		Msg("Operation rejected")
	return err
}

func variable(e *env.Environment, varID string) (*env.Variable, error) {
	v, ok := e.Variable(varID)
	if !ok {
		return nil, env.NotFoundf("variable %q not found in environment %q", varID, e.ID)
	}
	return v, nil
}

func outOfRange(v *env.Variable, index int) error {
	return env.Newf(env.CodeIndexOutOfRange, "row %d is out of range for %q (%d rows)", index, v.Key, len(v.Values)).
		WithDetail("variable", v.ID).
		WithDetail("index", index)
}

// SelectValue selects row index on a variable and on every other member of
// its link group.
func (c *Coordinator) SelectValue(ctx context.Context, envID, varID string, index int) (*env.Environment, error) {
	return c.update(ctx, "select_value", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		members := e.Members(v)
		for _, m := range members {
			if index < 0 || index >= len(m.Values) {
				return outOfRange(m, index)
			}
		}
		for _, m := range members {
			m.SelectedIndex = index
		}
		return nil
	})
}

// AddValueRow appends one row to every member of the target's group, taking
// each member's value from valuesByVarID ("" when absent). The selection is
// left unchanged.
func (c *Coordinator) AddValueRow(ctx context.Context, envID, targetVarID string, valuesByVarID map[string]string) (*env.Environment, error) {
	return c.update(ctx, "add_value_row", envID, func(e *env.Environment) error {
		v, err := variable(e, targetVarID)
		if err != nil {
			return err
		}
		members := e.Members(v)
		inGroup := make(map[string]bool, len(members))
		for _, m := range members {
			inGroup[m.ID] = true
		}
		for id := range valuesByVarID {
			if !inGroup[id] {
				return env.Newf(env.CodeUnknownVariable, "variable %q is not linked with %q", id, v.Key).
					WithDetail("variable", id)
			}
		}
		for _, m := range members {
			m.Values = append(m.Values, valuesByVarID[m.ID])
		}
		return nil
	})
}

// RemoveValueRow removes rowIndex from a variable, or from every member of
// its group. groupOrVarID is tried as a variable id first, then as a group
// name.
func (c *Coordinator) RemoveValueRow(ctx context.Context, envID, groupOrVarID string, rowIndex int) (*env.Environment, error) {
	return c.update(ctx, "remove_value_row", envID, func(e *env.Environment) error {
		var members []*env.Variable
		if v, ok := e.Variable(groupOrVarID); ok {
			members = e.Members(v)
		} else if members = e.Group(groupOrVarID); len(members) == 0 {
			return env.NotFoundf("no variable or link group %q in environment %q", groupOrVarID, e.ID)
		}

		for _, m := range members {
			if len(m.Values) <= 1 {
				return env.Newf(env.CodeLastValue, "cannot remove the only value of %q", m.Key).
					WithDetail("variable", m.ID)
			}
			if rowIndex < 0 || rowIndex >= len(m.Values) {
				return outOfRange(m, rowIndex)
			}
		}
		for _, m := range members {
			m.Values = append(m.Values[:rowIndex], m.Values[rowIndex+1:]...)
			switch {
			case rowIndex == m.SelectedIndex:
				m.SelectedIndex = min(rowIndex, len(m.Values)-1)
			case rowIndex < m.SelectedIndex:
				m.SelectedIndex--
			}
		}
		return nil
	})
}

// LinkVariables puts source into target's group, creating the group when
// target has none. Both must have the same number of rows. Target's
// selection wins.
func (c *Coordinator) LinkVariables(ctx context.Context, envID, sourceVarID, targetVarID string) (*env.Environment, error) {
	return c.update(ctx, "link_variables", envID, func(e *env.Environment) error {
		src, err := variable(e, sourceVarID)
		if err != nil {
			return err
		}
		tgt, err := variable(e, targetVarID)
		if err != nil {
			return err
		}
		if src.ID == tgt.ID {
			return env.Newf(env.CodeInvalidArgument, "cannot link %q to itself", src.Key)
		}
		if src.Linked() && src.LinkGroup == tgt.LinkGroup {
			return nil
		}
		if len(src.Values) != len(tgt.Values) {
			return env.Newf(env.CodeLengthMismatch, "%q has %d rows but %q has %d",
				src.Key, len(src.Values), tgt.Key, len(tgt.Values)).
				WithDetail("source", src.ID).
				WithDetail("target", tgt.ID)
		}

		detach(e, src)
		name := tgt.LinkGroup
		if name == "" {
			name = GroupName(src.Key, e.GroupNames())
			tgt.LinkGroup = name
		}
		src.LinkGroup = name
		src.SelectedIndex = tgt.SelectedIndex
		return nil
	})
}

// Unlink removes a variable from its group. A group left with a single
// member is dissolved.
func (c *Coordinator) Unlink(ctx context.Context, envID, varID string) (*env.Environment, error) {
	return c.update(ctx, "unlink", envID, func(e *env.Environment) error {
		v, err := variable(e, varID)
		if err != nil {
			return err
		}
		detach(e, v)
		return nil
	})
}

// RenameGroup relabels every member of oldName.
func (c *Coordinator) RenameGroup(ctx context.Context, envID, oldName, newName string) (*env.Environment, error) {
	return c.update(ctx, "rename_group", envID, func(e *env.Environment) error {
		if oldName == newName {
			return nil
		}
		if newName == "" {
			return env.New(env.CodeInvalidArgument, "group name cannot be empty")
		}
		members := e.Group(oldName)
		if len(members) == 0 {
			return env.Newf(env.CodeGroupNotFound, "link group %q not found in environment %q", oldName, e.ID).
				WithDetail("group", oldName)
		}
		if len(e.Group(newName)) > 0 {
			return env.Newf(env.CodeGroupExists, "link group %q already exists", newName).
				WithDetail("group", newName)
		}
		for _, m := range members {
			m.LinkGroup = newName
		}
		return nil
	})
}

// detach clears v's group label and dissolves the group if one member is
// left behind.
func detach(e *env.Environment, v *env.Variable) {
	name := v.LinkGroup
	if name == "" {
		return
	}
	v.LinkGroup = ""
	if rest := e.Group(name); len(rest) == 1 {
		rest[0].LinkGroup = ""
	}
}
