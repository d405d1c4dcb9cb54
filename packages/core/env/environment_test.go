package env

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkedEnv() *Environment {
	e := NewEnvironment("E", GlobalScope())
	a := NewVariable("A", "dev")
	a.Values = append(a.Values, "prod")
	a.LinkGroup = "env"
	b := NewVariable("B", "http://d")
	b.Values = append(b.Values, "http://p")
	b.LinkGroup = "env"
	e.Variables = append(e.Variables, a, b, NewVariable("C", "solo"))
	return e
}

func TestNewVariable(t *testing.T) {
	v := NewVariable("k", "v")
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, []string{"v"}, v.Values)
	assert.Equal(t, 0, v.SelectedIndex)
	assert.True(t, v.Enabled)
	assert.False(t, v.Linked())
	assert.Equal(t, "v", v.CurrentValue())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Environment)
		ok     bool
	}{
		{name: "valid", mutate: func(e *Environment) {}, ok: true},
		{name: "empty values", mutate: func(e *Environment) { e.Variables[2].Values = nil }},
		{name: "negative selection", mutate: func(e *Environment) { e.Variables[2].SelectedIndex = -1 }},
		{name: "selection past end", mutate: func(e *Environment) { e.Variables[2].SelectedIndex = 1 }},
		{name: "single member group", mutate: func(e *Environment) { e.Variables[2].LinkGroup = "lonely" }},
		{name: "row count mismatch", mutate: func(e *Environment) {
			e.Variables[0].Values = append(e.Variables[0].Values, "x")
		}},
		{name: "selection mismatch", mutate: func(e *Environment) { e.Variables[0].SelectedIndex = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := linkedEnv()
			tt.mutate(e)
			err := e.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsErrorCode(err, CodeInvariant))
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	e := linkedEnv()
	c := e.Clone()
	c.Variables[0].Values[0] = "changed"
	c.Variables[0].SelectedIndex = 1
	c.Variables = c.Variables[:1]

	assert.Equal(t, "dev", e.Variables[0].Values[0])
	assert.Equal(t, 0, e.Variables[0].SelectedIndex)
	assert.Len(t, e.Variables, 3)
	assert.Equal(t, e.ID, c.ID)
}

func TestDuplicate(t *testing.T) {
	e := linkedEnv()
	e.IsActive = true
	d := e.Duplicate("E copy")

	assert.NotEqual(t, e.ID, d.ID)
	assert.Equal(t, "E copy", d.Name)
	assert.False(t, d.IsActive)
	require.Len(t, d.Variables, 3)
	for i := range d.Variables {
		assert.NotEqual(t, e.Variables[i].ID, d.Variables[i].ID)
		assert.Equal(t, e.Variables[i].LinkGroup, d.Variables[i].LinkGroup)
		assert.Equal(t, e.Variables[i].Values, d.Variables[i].Values)
	}
	assert.NoError(t, d.Validate())
}

func TestGroups(t *testing.T) {
	e := linkedEnv()
	assert.Equal(t, []string{"env"}, e.GroupNames())
	assert.Len(t, e.Group("env"), 2)
	assert.Nil(t, e.Group(""))

	c, ok := e.VariableByKey("C")
	require.True(t, ok)
	assert.Equal(t, []*Variable{c}, e.Members(c))
	assert.Len(t, e.Members(e.Variables[0]), 2)
}

func TestScope(t *testing.T) {
	assert.True(t, GlobalScope().IsGlobal())
	assert.False(t, CollectionScope("c").IsGlobal())
	assert.Equal(t, "collection(c)", CollectionScope("c").String())
	assert.Equal(t, "global", Scope{}.String())
}

func TestErrorCodes(t *testing.T) {
	err := Newf(CodeLastValue, "variable %q has one value", "x")
	assert.ErrorIs(t, err, ErrLastValue)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeLastValue, CodeOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(assert.AnError))

	wrapped := Wrap(assert.AnError, CodeNotFound, "lookup")
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Nil(t, Wrap(nil, CodeNotFound, "x"))
	assert.Equal(t, "[NOT_FOUND] lookup: "+assert.AnError.Error(), wrapped.Error())
}

func TestIsErrorCode_WalksChain(t *testing.T) {
	inner := NotFoundf("environment %q not found", "dev")
	outer := Wrap(fmt.Errorf("load: %w", inner), CodeInvalidArgument, "import")

	assert.Equal(t, CodeInvalidArgument, CodeOf(outer))
	assert.True(t, IsErrorCode(outer, CodeInvalidArgument))
	assert.True(t, IsErrorCode(outer, CodeNotFound))
	assert.False(t, IsErrorCode(outer, CodeLastValue))

	joined := errors.Join(assert.AnError, New(CodeGroupExists, "group taken"))
	assert.True(t, IsErrorCode(joined, CodeGroupExists))
	assert.False(t, IsErrorCode(nil, CodeNotFound))
	assert.False(t, IsErrorCode(assert.AnError, CodeUnknown))
}
