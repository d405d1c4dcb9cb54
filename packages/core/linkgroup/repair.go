package linkgroup

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// GroupName returns base when no group in existing uses it, otherwise the
// first free base_2, base_3, ... An empty base becomes "group".
func GroupName(base string, existing []string) string {
	if base == "" {
		base = "group"
	}
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// RepairEnvironment rewrites e in place so that the invariants hold, and
// returns a description of every change. It is meant for data that did not
// come through the coordinator, such as imports.
//
// Empty value lists get one empty row, selections are clamped, labels held
// by a single variable are cleared, shorter group members are padded with
// empty rows and every member adopts the selection of the first member.
func RepairEnvironment(e *env.Environment) []string {
	var changes []string
	for _, v := range e.Variables {
		if len(v.Values) == 0 {
			v.Values = []string{""}
			changes = append(changes, fmt.Sprintf("%s: added an empty value", v.Key))
		}
		if v.SelectedIndex < 0 || v.SelectedIndex >= len(v.Values) {
			clamped := max(0, min(v.SelectedIndex, len(v.Values)-1))
			changes = append(changes, fmt.Sprintf("%s: selection %d clamped to %d", v.Key, v.SelectedIndex, clamped))
			v.SelectedIndex = clamped
		}
	}

	for _, name := range e.GroupNames() {
		members := e.Group(name)
		if len(members) < 2 {
			members[0].LinkGroup = ""
			changes = append(changes, fmt.Sprintf("%s: removed from single-member group %q", members[0].Key, name))
			continue
		}
		rows := 0
		for _, m := range members {
			rows = max(rows, len(m.Values))
		}
		selected := members[0].SelectedIndex
		for _, m := range members {
			if n := len(m.Values); n < rows {
				for len(m.Values) < rows {
					m.Values = append(m.Values, "")
				}
				changes = append(changes, fmt.Sprintf("%s: padded from %d to %d rows for group %q", m.Key, n, rows, name))
			}
			if m.SelectedIndex != selected {
				changes = append(changes, fmt.Sprintf("%s: selection %d aligned to %d for group %q", m.Key, m.SelectedIndex, selected, name))
				m.SelectedIndex = selected
			}
		}
	}
	return changes
}

// Repair runs RepairEnvironment on a stored environment and saves the
// result. Nothing is written when no change was needed.
func (c *Coordinator) Repair(ctx context.Context, envID string) ([]string, error) {
	var changes []string
	unlock := c.lock(envID)
	defer unlock()

	current, err := c.repo.Get(ctx, envID)
	if err != nil {
		return nil, c.reject("repair", envID, err)
	}
	work := current.Clone()
	changes = RepairEnvironment(work)
	if len(changes) == 0 {
		return nil, nil
	}
	if err := work.Validate(); err != nil {
		return nil, c.reject("repair", envID, err)
	}
	work.Touch()
	if err := c.repo.Put(ctx, work); err != nil {
		return nil, c.reject("repair", envID, fmt.Errorf("save environment %s: %w", envID, err))
	}
	c.logger.Info().Str("env", envID).Int("changes", len(changes)).Msg("Environment repaired")
	return changes, nil
}
