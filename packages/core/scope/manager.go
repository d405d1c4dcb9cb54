// Package scope tracks which environments are active and turns that state
// into the ordered scope list the resolver consults.
//
// At most one global environment is active at a time. Independently, each
// collection may override the global environment with one of its own
// collection-scoped environments. Lookups for a collection consult its
// override first, then the active global environment.
package scope

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

// Manager owns activation state. The active global flag lives on the
// environments themselves; collection overrides live in an OverrideStore.
// Flag writes go through a linkgroup.Coordinator so they share its
// per-environment locks with every other edit.
type Manager struct {
	repo      store.Repository
	overrides store.OverrideStore
	coord     *linkgroup.Coordinator
	logger    zerolog.Logger

	globalMu   sync.Mutex
	overrideMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithCoordinator makes the manager store active flags through c. Pass the
// coordinator that edits the same repository; without it the manager makes
// its own, whose locks other coordinators do not see.
func WithCoordinator(c *linkgroup.Coordinator) Option {
	return func(m *Manager) {
		m.coord = c
	}
}

// NewManager creates a manager. Most stores implement both interfaces, so
// callers usually pass the same value twice.
func NewManager(repo store.Repository, overrides store.OverrideStore, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		overrides: overrides,
		logger:    logging.GetLogger("scope"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.coord == nil {
		m.coord = linkgroup.NewCoordinator(repo)
	}
	return m
}

// Activate makes envID the active environment for its scope. A global
// environment replaces the previously active one; a collection environment
// becomes its collection's override and leaves the global choice alone.
func (m *Manager) Activate(ctx context.Context, envID string) error {
	target, err := m.repo.Get(ctx, envID)
	if err != nil {
		return err
	}
	if !target.Scope.IsGlobal() {
		return m.setOverride(ctx, target.Scope.CollectionID, target.ID)
	}
	return m.activateGlobal(ctx, target)
}

func (m *Manager) activateGlobal(ctx context.Context, target *env.Environment) error {
	m.globalMu.Lock()
	defer m.globalMu.Unlock()
	done := logging.LogOperationStart(m.logger, "activate")
	defer done()

	globals, err := m.repo.ListGlobal(ctx)
	if err != nil {
		return fmt.Errorf("list global environments: %w", err)
	}

	// Deactivate first so a failure never leaves two active environments.
	var deactivated []string
	for _, g := range globals {
		if !g.IsActive || g.ID == target.ID {
			continue
		}
		changed, err := m.coord.SetActive(ctx, g.ID, false)
		if err != nil {
			m.rollback(ctx, deactivated)
			return fmt.Errorf("deactivate environment %s: %w", g.ID, err)
		}
		if changed {
			deactivated = append(deactivated, g.ID)
		}
	}

	if _, err := m.coord.SetActive(ctx, target.ID, true); err != nil {
		m.rollback(ctx, deactivated)
		return fmt.Errorf("activate environment %s: %w", target.ID, err)
	}
	m.logger.Info().Str("env", target.ID).Str("name", target.Name).Msg("Global environment activated")
	return nil
}

// rollback re-activates environments switched off by a failed activation.
func (m *Manager) rollback(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, err := m.coord.SetActive(ctx, id, true); err != nil {
			m.logger.Error().Err(err).Str("env", id).Msg("Failed to restore active environment")
		}
	}
}

// Deactivate clears envID's active state: the global flag for a global
// environment, or its collection's override when it is the current one.
func (m *Manager) Deactivate(ctx context.Context, envID string) error {
	target, err := m.repo.Get(ctx, envID)
	if err != nil {
		return err
	}
	if !target.Scope.IsGlobal() {
		current, err := m.Override(ctx, target.Scope.CollectionID)
		if err != nil {
			return err
		}
		if current != target.ID {
			return nil
		}
		return m.setOverride(ctx, target.Scope.CollectionID, "")
	}

	m.globalMu.Lock()
	defer m.globalMu.Unlock()
	changed, err := m.coord.SetActive(ctx, target.ID, false)
	if err != nil {
		return fmt.Errorf("deactivate environment %s: %w", target.ID, err)
	}
	if changed {
		m.logger.Info().Str("env", target.ID).Msg("Global environment deactivated")
	}
	return nil
}

// ClearOverride removes a collection's override so it falls back to the
// active global environment.
func (m *Manager) ClearOverride(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return env.New(env.CodeInvalidArgument, "collection id is required")
	}
	return m.setOverride(ctx, collectionID, "")
}

func (m *Manager) setOverride(ctx context.Context, collectionID, envID string) error {
	m.overrideMu.Lock()
	defer m.overrideMu.Unlock()
	if err := m.overrides.SetOverride(ctx, collectionID, envID); err != nil {
		return fmt.Errorf("set override for collection %s: %w", collectionID, err)
	}
	m.logger.Info().Str("collection", collectionID).Str("env", envID).Msg("Collection override updated")
	return nil
}

// ActiveGlobal returns the active global environment, or nil when none is.
func (m *Manager) ActiveGlobal(ctx context.Context) (*env.Environment, error) {
	globals, err := m.repo.ListGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("list global environments: %w", err)
	}
	var active *env.Environment
	for _, g := range globals {
		if !g.IsActive {
			continue
		}
		if active != nil {
			m.logger.Warn().Str("env", g.ID).Str("using", active.ID).Msg("More than one global environment is active")
			continue
		}
		active = g
	}
	return active, nil
}

// Override returns the environment id a collection overrides with, or "".
func (m *Manager) Override(ctx context.Context, collectionID string) (string, error) {
	all, err := m.overrides.Overrides(ctx)
	if err != nil {
		return "", fmt.Errorf("read overrides: %w", err)
	}
	return all[collectionID], nil
}

// ResolutionScopes returns, in priority order, the override of collectionID
// (when given and set) followed by the active global environment. An override
// whose environment no longer exists is skipped.
func (m *Manager) ResolutionScopes(ctx context.Context, collectionID string) ([]*env.Environment, error) {
	var scopes []*env.Environment
	if collectionID != "" {
		id, err := m.Override(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		if id != "" {
			e, err := m.repo.Get(ctx, id)
			switch {
			case env.IsErrorCode(err, env.CodeNotFound):
				m.logger.Debug().Str("collection", collectionID).Str("env", id).Msg("Override points at a missing environment")
			case err != nil:
				return nil, err
			default:
				scopes = append(scopes, e)
			}
		}
	}

	global, err := m.ActiveGlobal(ctx)
	if err != nil {
		return nil, err
	}
	if global != nil {
		scopes = append(scopes, global)
	}
	return scopes, nil
}

// Resolve substitutes every known {{key}} token in template using the scopes
// of collectionID.
func (m *Manager) Resolve(ctx context.Context, template, collectionID string) (string, error) {
	scopes, err := m.ResolutionScopes(ctx, collectionID)
	if err != nil {
		return "", err
	}
	return env.Resolve(template, scopes), nil
}

// Lookup finds key in the scopes of collectionID.
func (m *Manager) Lookup(ctx context.Context, key, collectionID string) (env.Match, bool, error) {
	scopes, err := m.ResolutionScopes(ctx, collectionID)
	if err != nil {
		return env.Match{}, false, err
	}
	match, ok := env.Lookup(key, scopes)
	return match, ok, nil
}
