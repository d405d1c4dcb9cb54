package scope

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

func put(t *testing.T, repo store.Repository, name string, scope env.Scope, vars map[string]string) *env.Environment {
	t.Helper()
	e := env.FromMap(name, scope, vars)
	require.NoError(t, repo.Put(context.Background(), e))
	return e
}

func TestActivate_GlobalIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	dev := put(t, repo, "dev", env.GlobalScope(), map[string]string{"host": "dev.local"})
	prod := put(t, repo, "prod", env.GlobalScope(), map[string]string{"host": "prod.example.com"})

	active, err := m.ActiveGlobal(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, m.Activate(ctx, dev.ID))
	require.NoError(t, m.Activate(ctx, prod.ID))

	active, err = m.ActiveGlobal(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, prod.ID, active.ID)

	stored, err := repo.Get(ctx, dev.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	require.NoError(t, m.Activate(ctx, prod.ID), "activating the active environment is a no-op")
}

func TestActivate_CollectionLeavesGlobalAlone(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	global := put(t, repo, "global", env.GlobalScope(), nil)
	local := put(t, repo, "local", env.CollectionScope("c1"), nil)

	require.NoError(t, m.Activate(ctx, global.ID))
	require.NoError(t, m.Activate(ctx, local.ID))

	override, err := m.Override(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, local.ID, override)

	active, err := m.ActiveGlobal(ctx)
	require.NoError(t, err)
	assert.Equal(t, global.ID, active.ID)

	override, err = m.Override(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, override)
}

func TestActivate_NotFound(t *testing.T) {
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)

	assert.ErrorIs(t, m.Activate(context.Background(), "missing"), env.ErrNotFound)
}

func TestResolutionScopes(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	global := put(t, repo, "global", env.GlobalScope(), map[string]string{"host": "g", "token": "gt"})
	local := put(t, repo, "local", env.CollectionScope("c1"), map[string]string{"host": "l"})

	scopes, err := m.ResolutionScopes(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, scopes)

	require.NoError(t, m.Activate(ctx, global.ID))
	require.NoError(t, m.Activate(ctx, local.ID))

	scopes, err = m.ResolutionScopes(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Equal(t, local.ID, scopes[0].ID)
	assert.Equal(t, global.ID, scopes[1].ID)

	scopes, err = m.ResolutionScopes(ctx, "")
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, global.ID, scopes[0].ID)

	out, err := m.Resolve(ctx, "https://{{host}}/{{ token }}/{{missing}}", "c1")
	require.NoError(t, err)
	assert.Equal(t, "https://l/gt/{{missing}}", out)

	out, err = m.Resolve(ctx, "https://{{host}}", "")
	require.NoError(t, err)
	assert.Equal(t, "https://g", out)
}

func TestResolutionScopes_SkipsDeletedOverride(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	local := put(t, repo, "local", env.CollectionScope("c1"), nil)
	require.NoError(t, m.Activate(ctx, local.ID))
	require.NoError(t, repo.Delete(ctx, local.ID))

	scopes, err := m.ResolutionScopes(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	global := put(t, repo, "global", env.GlobalScope(), nil)
	a := put(t, repo, "a", env.CollectionScope("c1"), nil)
	b := put(t, repo, "b", env.CollectionScope("c1"), nil)

	require.NoError(t, m.Activate(ctx, global.ID))
	require.NoError(t, m.Activate(ctx, a.ID))

	require.NoError(t, m.Deactivate(ctx, b.ID), "b is not the override")
	override, err := m.Override(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, override)

	require.NoError(t, m.Deactivate(ctx, a.ID))
	override, err = m.Override(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, override)

	require.NoError(t, m.Deactivate(ctx, global.ID))
	active, err := m.ActiveGlobal(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestClearOverride(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	local := put(t, repo, "local", env.CollectionScope("c1"), nil)
	require.NoError(t, m.Activate(ctx, local.ID))

	require.NoError(t, m.ClearOverride(ctx, "c1"))
	override, err := m.Override(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, override)

	assert.True(t, env.IsErrorCode(m.ClearOverride(ctx, ""), env.CodeInvalidArgument))
}

func TestLookup_EmptyValueIsFound(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	m := NewManager(repo, repo)
	global := put(t, repo, "global", env.GlobalScope(), map[string]string{"blank": ""})
	require.NoError(t, m.Activate(ctx, global.ID))

	match, ok, err := m.Lookup(ctx, "blank", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", match.Value)
	assert.Equal(t, global.ID, match.EnvironmentID)

	_, ok, err = m.Lookup(ctx, "absent", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// flakyRepo fails the Put of one environment id.
type flakyRepo struct {
	*store.MemoryRepository
	failID string
}

func (r *flakyRepo) Put(ctx context.Context, e *env.Environment) error {
	if e.ID == r.failID {
		return errors.New("write refused")
	}
	return r.MemoryRepository.Put(ctx, e)
}

func TestActivate_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryRepository()
	dev := put(t, mem, "dev", env.GlobalScope(), nil)
	prod := put(t, mem, "prod", env.GlobalScope(), nil)

	m := NewManager(mem, mem)
	require.NoError(t, m.Activate(ctx, dev.ID))

	flaky := &flakyRepo{MemoryRepository: mem, failID: prod.ID}
	m = NewManager(flaky, flaky)
	err := m.Activate(ctx, prod.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write refused")

	active, err := m.ActiveGlobal(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, dev.ID, active.ID)
}

// hookRepo runs a callback once, the first time its trigger method is hit.
type hookRepo struct {
	*store.MemoryRepository
	mu        sync.Mutex
	onList    func()
	onGet     func(envID string)
	listFired bool
}

func (r *hookRepo) ListGlobal(ctx context.Context) ([]*env.Environment, error) {
	r.mu.Lock()
	fn := r.onList
	fire := fn != nil && !r.listFired
	r.listFired = true
	r.mu.Unlock()
	if fire {
		fn()
	}
	return r.MemoryRepository.ListGlobal(ctx)
}

func (r *hookRepo) Get(ctx context.Context, envID string) (*env.Environment, error) {
	e, err := r.MemoryRepository.Get(ctx, envID)
	r.mu.Lock()
	fn := r.onGet
	r.onGet = nil
	r.mu.Unlock()
	if fn != nil {
		fn(envID)
	}
	return e, err
}

func activeGlobals(t *testing.T, repo store.Repository) []string {
	t.Helper()
	globals, err := repo.ListGlobal(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, g := range globals {
		if g.IsActive {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

func TestActivate_KeepsConcurrentSelection(t *testing.T) {
	ctx := context.Background()
	repo := &hookRepo{MemoryRepository: store.NewMemoryRepository()}
	coord := linkgroup.NewCoordinator(repo)
	m := NewManager(repo, repo, WithCoordinator(coord))

	dev := put(t, repo, "dev", env.GlobalScope(), nil)
	v, err := coord.AddVariable(ctx, dev.ID, "host", "a.local")
	require.NoError(t, err)
	_, err = coord.AddValueRow(ctx, dev.ID, v.ID, map[string]string{v.ID: "b.local"})
	require.NoError(t, err)

	repo.onList = func() {
		_, err := coord.SelectValue(ctx, dev.ID, v.ID, 1)
		require.NoError(t, err)
	}
	require.NoError(t, m.Activate(ctx, dev.ID))

	stored, err := repo.MemoryRepository.Get(ctx, dev.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	got, ok := stored.Variable(v.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.SelectedIndex)
	assert.Equal(t, []string{dev.ID}, activeGlobals(t, repo.MemoryRepository))
}

func TestActivate_WaitsForEditInProgress(t *testing.T) {
	ctx := context.Background()
	repo := &hookRepo{MemoryRepository: store.NewMemoryRepository()}
	coord := linkgroup.NewCoordinator(repo)
	m := NewManager(repo, repo, WithCoordinator(coord))

	dev := put(t, repo, "dev", env.GlobalScope(), map[string]string{"host": "dev.local"})
	prod := put(t, repo, "prod", env.GlobalScope(), map[string]string{"host": "prod.local"})
	require.NoError(t, m.Activate(ctx, dev.ID))

	// While an edit of dev holds its copy, switch the active environment to
	// prod. The switch must not finish before the edit is stored.
	activated := make(chan error, 1)
	repo.mu.Lock()
	repo.onGet = func(envID string) {
		go func() { activated <- m.Activate(ctx, prod.ID) }()
		select {
		case err := <-activated:
			activated <- err
		case <-time.After(50 * time.Millisecond):
		}
	}
	repo.mu.Unlock()

	_, err := coord.RenameEnvironment(ctx, dev.ID, "development")
	require.NoError(t, err)
	require.NoError(t, <-activated)

	assert.Equal(t, []string{prod.ID}, activeGlobals(t, repo.MemoryRepository))
	stored, err := repo.MemoryRepository.Get(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "development", stored.Name)
	assert.False(t, stored.IsActive)
}

func TestActivate_ConcurrentWithEdits(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	coord := linkgroup.NewCoordinator(repo)
	m := NewManager(repo, repo, WithCoordinator(coord))

	var envs []*env.Environment
	for _, name := range []string{"a", "b", "c"} {
		envs = append(envs, put(t, repo, name, env.GlobalScope(), nil))
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 30; j++ {
				e := envs[(i+j)%len(envs)]
				if i%2 == 0 {
					assert.NoError(t, m.Activate(ctx, e.ID))
				} else {
					_, err := coord.RenameEnvironment(ctx, e.ID, e.Name)
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, activeGlobals(t, repo), 1)
}
