package linkgroup

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// CreateEnvironment stores a new empty environment.
func (c *Coordinator) CreateEnvironment(ctx context.Context, name string, scope env.Scope) (*env.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, c.reject("create_environment", "", env.New(env.CodeInvalidArgument, "environment name cannot be empty"))
	}
	if !scope.IsGlobal() && scope.CollectionID == "" {
		return nil, c.reject("create_environment", "", env.New(env.CodeInvalidArgument, "collection id is required"))
	}
	e := env.NewEnvironment(name, scope)
	if err := c.repo.Put(ctx, e); err != nil {
		return nil, c.reject("create_environment", e.ID, err)
	}
	c.logger.Debug().Str("env", e.ID).Str("scope", scope.String()).Msg("Environment created")
	return e, nil
}

// DuplicateEnvironment stores a deep copy of envID under new ids.
func (c *Coordinator) DuplicateEnvironment(ctx context.Context, envID, name string) (*env.Environment, error) {
	unlock := c.lock(envID)
	defer unlock()

	src, err := c.repo.Get(ctx, envID)
	if err != nil {
		return nil, c.reject("duplicate_environment", envID, err)
	}
	if strings.TrimSpace(name) == "" {
		name = src.Name + " (Copy)"
	}
	dup := src.Duplicate(name)
	if err := c.repo.Put(ctx, dup); err != nil {
		return nil, c.reject("duplicate_environment", envID, err)
	}
	return dup, nil
}

// DeleteEnvironment removes an environment and all its variables.
func (c *Coordinator) DeleteEnvironment(ctx context.Context, envID string) error {
	unlock := c.lock(envID)
	defer unlock()

	if err := c.repo.Delete(ctx, envID); err != nil {
		return c.reject("delete_environment", envID, err)
	}
	return nil
}

// RenameEnvironment changes the display name.
func (c *Coordinator) RenameEnvironment(ctx context.Context, envID, name string) (*env.Environment, error) {
	return c.update(ctx, "rename_environment", envID, func(e *env.Environment) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return env.New(env.CodeInvalidArgument, "environment name cannot be empty")
		}
		e.Name = name
		return nil
	})
}

// SetActive stores the active flag of a global environment under the same
// lock as every other mutation of envID, re-reading it first. It reports
// whether the flag changed.
func (c *Coordinator) SetActive(ctx context.Context, envID string, active bool) (bool, error) {
	unlock := c.lock(envID)
	defer unlock()

	e, err := c.repo.Get(ctx, envID)
	if err != nil {
		return false, c.reject("set_active", envID, err)
	}
	if !e.Scope.IsGlobal() {
		return false, c.reject("set_active", envID, env.Newf(env.CodeInvalidArgument, "environment %q is not global", e.Name))
	}
	if e.IsActive == active {
		return false, nil
	}
	e.IsActive = active
	if err := c.repo.Put(ctx, e); err != nil {
		return false, c.reject("set_active", envID, fmt.Errorf("save environment %s: %w", envID, err))
	}
	c.logger.Debug().Str("env", envID).Bool("active", active).Msg("Active flag stored")
	return true, nil
}
