package linkgroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

func ptr[T any](v T) *T { return &v }

func TestAddVariable(t *testing.T) {
	f := newFixture(t)

	v, err := f.coord.AddVariable(f.ctx, f.env.ID, "TOKEN", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, v.Values)
	assert.True(t, v.Enabled)
	assert.Len(t, f.load(t).Variables, 4)

	_, err = f.coord.AddVariable(f.ctx, f.env.ID, "TOKEN", "x")
	assert.ErrorIs(t, err, env.ErrDuplicateKey)
	_, err = f.coord.AddVariable(f.ctx, f.env.ID, "", "x")
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
}

func TestRemoveVariable_DissolvesGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.RemoveVariable(f.ctx, f.env.ID, f.a.ID)
	require.NoError(t, err)

	e := f.load(t)
	assert.Len(t, e.Variables, 2)
	b, _ := e.Variable(f.b.ID)
	assert.Equal(t, "", b.LinkGroup)

	_, err = f.coord.RemoveVariable(f.ctx, f.env.ID, f.a.ID)
	assert.ErrorIs(t, err, env.ErrNotFound)
}

func TestUpdateVariable(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.UpdateVariable(f.ctx, f.env.ID, f.c.ID, VariablePatch{
		Key:         ptr("COUNT"),
		Description: ptr("row counter"),
		Enabled:     ptr(false),
		IsSecret:    ptr(true),
	})
	require.NoError(t, err)

	c := f.v(t, f.c.ID)
	assert.Equal(t, "COUNT", c.Key)
	assert.Equal(t, "row counter", c.Description)
	assert.False(t, c.Enabled)
	assert.True(t, c.IsSecret)

	_, err = f.coord.UpdateVariable(f.ctx, f.env.ID, f.c.ID, VariablePatch{Key: ptr("A")})
	assert.ErrorIs(t, err, env.ErrDuplicateKey)
}

func TestSetValue_OnlyTouchesOneMember(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.SetValue(f.ctx, f.env.ID, f.a.ID, 1, "production")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "production"}, f.v(t, f.a.ID).Values)
	assert.Equal(t, []string{"http://d", "http://p"}, f.v(t, f.b.ID).Values)

	_, err = f.coord.SetValue(f.ctx, f.env.ID, f.a.ID, 5, "x")
	assert.ErrorIs(t, err, env.ErrIndexOutOfRange)
}

func TestPadRows(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.PadRows(f.ctx, f.env.ID, f.a.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod", "", ""}, f.v(t, f.a.ID).Values)
	assert.Len(t, f.v(t, f.b.ID).Values, 4)

	_, err = f.coord.PadRows(f.ctx, f.env.ID, f.c.ID, 1)
	require.NoError(t, err)
	assert.Len(t, f.v(t, f.c.ID).Values, 3)
}

func TestReorder(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Reorder(f.ctx, f.env.ID, []string{f.c.ID, f.a.ID, f.b.ID})
	require.NoError(t, err)
	e := f.load(t)
	assert.Equal(t, "C", e.Variables[0].Key)
	assert.Equal(t, "B", e.Variables[2].Key)

	_, err = f.coord.Reorder(f.ctx, f.env.ID, []string{f.c.ID, f.c.ID, f.b.ID})
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
	_, err = f.coord.Reorder(f.ctx, f.env.ID, []string{f.c.ID})
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
}

func TestEnvironmentLifecycle(t *testing.T) {
	f := newFixture(t)

	created, err := f.coord.CreateEnvironment(f.ctx, "  Staging ", env.CollectionScope("col-1"))
	require.NoError(t, err)
	assert.Equal(t, "Staging", created.Name)

	_, err = f.coord.CreateEnvironment(f.ctx, "", env.GlobalScope())
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
	_, err = f.coord.CreateEnvironment(f.ctx, "x", env.CollectionScope(""))
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))

	dup, err := f.coord.DuplicateEnvironment(f.ctx, f.env.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "E (Copy)", dup.Name)
	assert.NotEqual(t, f.env.ID, dup.ID)
	require.NoError(t, dup.Validate())
	assert.Equal(t, []string{"env"}, dup.GroupNames())

	renamed, err := f.coord.RenameEnvironment(f.ctx, dup.ID, "Copy")
	require.NoError(t, err)
	assert.Equal(t, "Copy", renamed.Name)

	require.NoError(t, f.coord.DeleteEnvironment(f.ctx, dup.ID))
	_, err = f.repo.Get(f.ctx, dup.ID)
	assert.ErrorIs(t, err, env.ErrNotFound)
	assert.ErrorIs(t, f.coord.DeleteEnvironment(f.ctx, dup.ID), env.ErrNotFound)
}

func TestSetActive(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.SelectValue(f.ctx, f.env.ID, f.a.ID, 1)
	require.NoError(t, err)

	changed, err := f.coord.SetActive(f.ctx, f.env.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.coord.SetActive(f.ctx, f.env.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := f.repo.Get(f.ctx, f.env.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	a, _ := stored.Variable(f.a.ID)
	assert.Equal(t, 1, a.SelectedIndex)

	// Later edits keep the flag.
	_, err = f.coord.RenameEnvironment(f.ctx, f.env.ID, "E2")
	require.NoError(t, err)
	stored, err = f.repo.Get(f.ctx, f.env.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	local, err := f.coord.CreateEnvironment(f.ctx, "local", env.CollectionScope("col-1"))
	require.NoError(t, err)
	_, err = f.coord.SetActive(f.ctx, local.ID, true)
	assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
	_, err = f.coord.SetActive(f.ctx, "missing", true)
	assert.ErrorIs(t, err, env.ErrNotFound)
}
