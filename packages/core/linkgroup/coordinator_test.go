package linkgroup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

type fixture struct {
	ctx   context.Context
	repo  *store.MemoryRepository
	coord *Coordinator
	env   *env.Environment
	a, b  *env.Variable
	c     *env.Variable
}

// newFixture stores environment E with A{dev,prod} and B{http://d,http://p}
// linked as "env", plus C with three unlinked rows.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := env.NewEnvironment("E", env.GlobalScope())
	a := env.NewVariable("A", "dev")
	a.Values = append(a.Values, "prod")
	a.LinkGroup = "env"
	b := env.NewVariable("B", "http://d")
	b.Values = append(b.Values, "http://p")
	b.LinkGroup = "env"
	c := env.NewVariable("C", "one")
	c.Values = append(c.Values, "two", "three")
	e.Variables = append(e.Variables, a, b, c)
	require.NoError(t, e.Validate())

	repo := store.NewMemoryRepository()
	require.NoError(t, repo.Put(context.Background(), e))
	return &fixture{
		ctx:   context.Background(),
		repo:  repo,
		coord: NewCoordinator(repo),
		env:   e,
		a:     a,
		b:     b,
		c:     c,
	}
}

func (f *fixture) load(t *testing.T) *env.Environment {
	t.Helper()
	e, err := f.repo.Get(f.ctx, f.env.ID)
	require.NoError(t, err)
	return e
}

func (f *fixture) v(t *testing.T, id string) *env.Variable {
	t.Helper()
	v, ok := f.load(t).Variable(id)
	require.True(t, ok)
	return v
}

// assertUnchanged checks that a rejected operation left the variables alone.
func (f *fixture) assertUnchanged(t *testing.T, before *env.Environment) {
	t.Helper()
	assert.Equal(t, before.Variables, f.load(t).Variables)
}

func TestSelectValue_PropagatesToGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, f.v(t, f.a.ID).SelectedIndex)
	assert.Equal(t, 1, f.v(t, f.b.ID).SelectedIndex)
	assert.Equal(t, 0, f.v(t, f.c.ID).SelectedIndex)
	assert.Equal(t, []string{"dev", "prod"}, f.v(t, f.a.ID).Values)
}

func TestSelectValue_Unlinked(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.v(t, f.c.ID).SelectedIndex)
	assert.Equal(t, 0, f.v(t, f.a.ID).SelectedIndex)
}

func TestSelectValue_Errors(t *testing.T) {
	f := newFixture(t)
	before := f.load(t)

	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 2)
	assert.ErrorIs(t, err, env.ErrIndexOutOfRange)
	_, err = f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, -1)
	assert.ErrorIs(t, err, env.ErrIndexOutOfRange)
	_, err = f.coord.SelectValue(f.ctx, f.env.ID, "missing", 0)
	assert.ErrorIs(t, err, env.ErrNotFound)
	_, err = f.coord.SelectValue(f.ctx, "missing", f.a.ID, 0)
	assert.ErrorIs(t, err, env.ErrNotFound)

	f.assertUnchanged(t, before)
}

func TestAddValueRow_Group(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.NoError(t, err)

	_, err = f.coord.AddValueRow(f.ctx, f.env.ID, f.a.ID, map[string]string{
		f.a.ID: "staging",
		f.b.ID: "http://s",
	})
	require.NoError(t, err)

	a, b := f.v(t, f.a.ID), f.v(t, f.b.ID)
	assert.Equal(t, []string{"dev", "prod", "staging"}, a.Values)
	assert.Equal(t, []string{"http://d", "http://p", "http://s"}, b.Values)
	assert.Equal(t, 1, a.SelectedIndex)
	assert.Equal(t, 1, b.SelectedIndex)
}

func TestAddValueRow_MissingEntriesDefaultToEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.AddValueRow(f.ctx, f.env.ID, f.b.ID, map[string]string{f.a.ID: "qa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod", "qa"}, f.v(t, f.a.ID).Values)
	assert.Equal(t, []string{"http://d", "http://p", ""}, f.v(t, f.b.ID).Values)
}

func TestAddValueRow_Unlinked(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.AddValueRow(f.ctx, f.env.ID, f.c.ID, map[string]string{f.c.ID: "four"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four"}, f.v(t, f.c.ID).Values)
	assert.Len(t, f.v(t, f.a.ID).Values, 2)
}

func TestAddValueRow_UnknownVariable(t *testing.T) {
	f := newFixture(t)
	before := f.load(t)

	_, err := f.coord.AddValueRow(f.ctx, f.env.ID, f.a.ID, map[string]string{f.a.ID: "x", f.c.ID: "y"})
	assert.ErrorIs(t, err, env.ErrUnknownVariable)
	f.assertUnchanged(t, before)
}

func TestRemoveValueRow_SelectionRules(t *testing.T) {
	tests := []struct {
		name        string
		selected    int
		remove      int
		wantValues  []string
		wantSelPost int
	}{
		{"remove selected middle selects following", 1, 1, []string{"one", "three"}, 1},
		{"remove selected last selects new last", 2, 2, []string{"one", "two"}, 1},
		{"remove before selection shifts down", 2, 0, []string{"two", "three"}, 1},
		{"remove after selection keeps it", 0, 2, []string{"one", "two"}, 0},
		{"remove selected first", 0, 0, []string{"two", "three"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.c.ID, tt.selected)
			require.NoError(t, err)

			_, err = f.coord.RemoveValueRow(f.ctx, f.env.ID, f.c.ID, tt.remove)
			require.NoError(t, err)

			c := f.v(t, f.c.ID)
			assert.Equal(t, tt.wantValues, c.Values)
			assert.Equal(t, tt.wantSelPost, c.SelectedIndex)
		})
	}
}

func TestRemoveValueRow_GroupByName(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.NoError(t, err)

	_, err = f.coord.RemoveValueRow(f.ctx, f.env.ID, "env", 0)
	require.NoError(t, err)

	a, b := f.v(t, f.a.ID), f.v(t, f.b.ID)
	assert.Equal(t, []string{"prod"}, a.Values)
	assert.Equal(t, []string{"http://p"}, b.Values)
	assert.Equal(t, 0, a.SelectedIndex)
	assert.Equal(t, 0, b.SelectedIndex)
}

func TestRemoveValueRow_LastValue(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.RemoveValueRow(f.ctx, f.env.ID, f.b.ID, 0)
	require.NoError(t, err)
	before := f.load(t)

	_, err = f.coord.RemoveValueRow(f.ctx, f.env.ID, f.a.ID, 0)
	assert.ErrorIs(t, err, env.ErrLastValue)
	f.assertUnchanged(t, before)
}

func TestRemoveValueRow_Errors(t *testing.T) {
	f := newFixture(t)
	before := f.load(t)

	_, err := f.coord.RemoveValueRow(f.ctx, f.env.ID, f.c.ID, 3)
	assert.ErrorIs(t, err, env.ErrIndexOutOfRange)
	_, err = f.coord.RemoveValueRow(f.ctx, f.env.ID, "nothing", 0)
	assert.ErrorIs(t, err, env.ErrNotFound)
	f.assertUnchanged(t, before)
}

func TestLinkVariables_LengthMismatch(t *testing.T) {
	f := newFixture(t)
	before := f.load(t)

	_, err := f.coord.LinkVariables(f.ctx, f.env.ID, f.c.ID, f.a.ID)
	assert.ErrorIs(t, err, env.ErrLengthMismatch)
	assert.Equal(t, "", f.v(t, f.c.ID).LinkGroup)
	assert.Equal(t, "env", f.v(t, f.a.ID).LinkGroup)
	f.assertUnchanged(t, before)
}

func TestLinkVariables_JoinsExistingGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.NoError(t, err)
	_, err = f.coord.RemoveValueRow(f.ctx, f.env.ID, f.c.ID, 2)
	require.NoError(t, err)

	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, f.c.ID, f.a.ID)
	require.NoError(t, err)

	c := f.v(t, f.c.ID)
	assert.Equal(t, "env", c.LinkGroup)
	assert.Equal(t, 1, c.SelectedIndex, "target selection wins")
	assert.Len(t, f.load(t).Group("env"), 3)
}

func TestLinkVariables_CreatesGroupNamedAfterSource(t *testing.T) {
	f := newFixture(t)
	d, err := f.coord.AddVariable(f.ctx, f.env.ID, "D", "x")
	require.NoError(t, err)
	_, err = f.coord.AddValueRow(f.ctx, f.env.ID, d.ID, map[string]string{d.ID: "y"})
	require.NoError(t, err)
	_, err = f.coord.AddValueRow(f.ctx, f.env.ID, d.ID, nil)
	require.NoError(t, err)
	_, err = f.coord.SelectValue(f.ctx, f.env.ID, f.c.ID, 2)
	require.NoError(t, err)

	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, d.ID, f.c.ID)
	require.NoError(t, err)

	e := f.load(t)
	dv, _ := e.Variable(d.ID)
	cv, _ := e.Variable(f.c.ID)
	assert.Equal(t, "D", dv.LinkGroup)
	assert.Equal(t, "D", cv.LinkGroup)
	assert.Equal(t, 2, dv.SelectedIndex)
	assert.Equal(t, []string{"D", "env"}, e.GroupNames())
}

func TestLinkVariables_NameCollision(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.RenameGroup(f.ctx, f.env.ID, "env", "C")
	require.NoError(t, err)
	d, err := f.coord.AddVariable(f.ctx, f.env.ID, "D", "1")
	require.NoError(t, err)
	_, err = f.coord.PadRows(f.ctx, f.env.ID, d.ID, 3)
	require.NoError(t, err)

	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, f.c.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "C_2", f.v(t, f.c.ID).LinkGroup)
	assert.Equal(t, "C_2", f.v(t, d.ID).LinkGroup)
}

func TestLinkVariables_MoveBetweenGroupsRepairsOldGroup(t *testing.T) {
	f := newFixture(t)
	d, err := f.coord.AddVariable(f.ctx, f.env.ID, "D", "1")
	require.NoError(t, err)
	_, err = f.coord.AddValueRow(f.ctx, f.env.ID, d.ID, map[string]string{d.ID: "2"})
	require.NoError(t, err)
	e, err := f.coord.AddVariable(f.ctx, f.env.ID, "E", "1")
	require.NoError(t, err)
	_, err = f.coord.PadRows(f.ctx, f.env.ID, e.ID, 2)
	require.NoError(t, err)
	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, e.ID, d.ID)
	require.NoError(t, err)

	// A leaves "env", which dissolves B's membership
	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, f.a.ID, d.ID)
	require.NoError(t, err)

	assert.Equal(t, "E", f.v(t, f.a.ID).LinkGroup)
	assert.Equal(t, "", f.v(t, f.b.ID).LinkGroup)
	assert.NoError(t, f.load(t).Validate())
}

func TestLinkVariables_SameGroupAndSelf(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.LinkVariables(f.ctx, f.env.ID, f.a.ID, f.b.ID)
	assert.NoError(t, err)
	assert.Equal(t, "env", f.v(t, f.a.ID).LinkGroup)

	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, f.a.ID, f.a.ID)
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
}

func TestUnlink_DissolvesPair(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Unlink(f.ctx, f.env.ID, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "", f.v(t, f.a.ID).LinkGroup)
	assert.Equal(t, "", f.v(t, f.b.ID).LinkGroup)
	assert.Empty(t, f.load(t).GroupNames())

	_, err = f.coord.Unlink(f.ctx, f.env.ID, f.a.ID)
	assert.NoError(t, err, "unlinking an unlinked variable is a no-op")
}

func TestUnlink_KeepsLargerGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.RemoveValueRow(f.ctx, f.env.ID, f.c.ID, 0)
	require.NoError(t, err)
	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, f.c.ID, f.a.ID)
	require.NoError(t, err)

	_, err = f.coord.Unlink(f.ctx, f.env.ID, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "env", f.v(t, f.b.ID).LinkGroup)
	assert.Equal(t, "env", f.v(t, f.c.ID).LinkGroup)
}

func TestRenameGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.RenameGroup(f.ctx, f.env.ID, "env", "env")
	assert.NoError(t, err)
	_, err = f.coord.RenameGroup(f.ctx, f.env.ID, "nope", "x")
	assert.ErrorIs(t, err, env.ErrGroupNotFound)
	_, err = f.coord.RenameGroup(f.ctx, f.env.ID, "env", "")
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))

	_, err = f.coord.RenameGroup(f.ctx, f.env.ID, "env", "target")
	require.NoError(t, err)
	assert.Equal(t, "target", f.v(t, f.a.ID).LinkGroup)
	assert.Equal(t, "target", f.v(t, f.b.ID).LinkGroup)
}

func TestRenameGroup_ExistingName(t *testing.T) {
	f := newFixture(t)
	d, err := f.coord.AddVariable(f.ctx, f.env.ID, "D", "1")
	require.NoError(t, err)
	_, err = f.coord.PadRows(f.ctx, f.env.ID, d.ID, 3)
	require.NoError(t, err)
	_, err = f.coord.LinkVariables(f.ctx, f.env.ID, d.ID, f.c.ID)
	require.NoError(t, err)
	before := f.load(t)

	_, err = f.coord.RenameGroup(f.ctx, f.env.ID, "D", "env")
	assert.ErrorIs(t, err, env.ErrGroupExists)
	f.assertUnchanged(t, before)
}

type failingRepo struct {
	store.Repository
	failPut bool
}

func (r *failingRepo) Put(ctx context.Context, e *env.Environment) error {
	if r.failPut {
		return errors.New("remote store unavailable")
	}
	return r.Repository.Put(ctx, e)
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	repo := &failingRepo{Repository: f.repo, failPut: true}
	coord := NewCoordinator(repo)
	before := f.load(t)

	_, err := coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote store unavailable")
	f.assertUnchanged(t, before)
}

func TestConcurrentOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = f.coord.SelectValue(f.ctx, f.env.ID, f.b.ID, i%2)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = f.coord.AddValueRow(f.ctx, f.env.ID, f.a.ID, nil)
		}()
	}
	wg.Wait()

	e := f.load(t)
	require.NoError(t, e.Validate())
	a, _ := e.Variable(f.a.ID)
	assert.Len(t, a.Values, 22, "no lost updates")
}
