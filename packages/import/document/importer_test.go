package document

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/export/workspace"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemoryRepository()

	global := env.NewEnvironment("Shared", env.GlobalScope())
	global.IsActive = true
	a := env.NewVariable("host", "dev")
	a.Values = append(a.Values, "prod")
	a.SelectedIndex = 1
	a.LinkGroup = "stage"
	b := env.NewVariable("port", "80")
	b.Values = append(b.Values, "443")
	b.SelectedIndex = 1
	b.LinkGroup = "stage"
	global.Variables = []*env.Variable{a, b}
	local := env.FromMap("Local", env.CollectionScope("col-1"), map[string]string{"host": "localhost"})
	require.NoError(t, src.Put(ctx, global))
	require.NoError(t, src.Put(ctx, local))
	require.NoError(t, src.SetOverride(ctx, "col-1", local.ID))

	for _, format := range []workspace.Format{workspace.FormatJSON, workspace.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := workspace.NewExporter(workspace.WithFormat(format)).Export(ctx, src, &buf)
			require.NoError(t, err)

			dst := store.NewMemoryRepository()
			res, err := NewImporter(dst, WithOverrides(dst)).Import(ctx, buf.Bytes(), format)
			require.NoError(t, err)
			require.Len(t, res.Environments, 2)
			assert.Empty(t, res.Repairs)
			assert.Equal(t, 1, res.Overrides)

			newGlobal := res.IDMap[global.ID]
			newLocal := res.IDMap[local.ID]
			assert.NotEqual(t, global.ID, newGlobal, "imports get fresh ids")
			assert.Equal(t, newGlobal, res.ActiveGlobal)

			got, err := dst.Get(ctx, newGlobal)
			require.NoError(t, err)
			assert.False(t, got.IsActive)
			require.NoError(t, got.Validate())
			assert.Equal(t, []string{"stage"}, got.GroupNames())
			host, ok := got.VariableByKey("host")
			require.True(t, ok)
			assert.Equal(t, "prod", host.CurrentValue())
			assert.NotEqual(t, a.ID, host.ID)

			overrides, err := dst.Overrides(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"col-1": newLocal}, overrides)
		})
	}
}

func TestImport_RepairsBrokenGroups(t *testing.T) {
	doc := `{
		"_postai_format": true,
		"_postai_version": "1.0",
		"_postai_type": "environments",
		"environments": [{
			"id": "old-1",
			"name": "Broken",
			"values": [
				{"key": "a", "values": ["1", "2", "3"], "selected_value_index": 2, "link_group": "g"},
				{"key": "b", "values": ["x"], "link_group": "g"},
				{"key": "c", "values": [], "selected_value_index": 4},
				{"key": "d", "values": ["only"], "link_group": "lonely"}
			]
		}]
	}`

	repo := store.NewMemoryRepository()
	res, err := NewImporter(repo).Import(context.Background(), []byte(doc), workspace.FormatJSON)
	require.NoError(t, err)
	require.Len(t, res.Environments, 1)

	e := res.Environments[0]
	require.NoError(t, e.Validate())
	assert.NotEmpty(t, res.Repairs[e.ID])

	b, _ := e.VariableByKey("b")
	assert.Equal(t, []string{"x", "", ""}, b.Values)
	assert.Equal(t, 2, b.SelectedIndex)
	c, _ := e.VariableByKey("c")
	assert.Equal(t, []string{""}, c.Values)
	d, _ := e.VariableByKey("d")
	assert.Equal(t, "", d.LinkGroup)
	assert.True(t, d.Enabled, "enabled defaults to true")
}

func TestImport_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing marker", `{"_postai_type": "environments", "environments": []}`},
		{"wrong type", `{"_postai_format": true, "_postai_type": "collection", "environments": []}`},
		{"value without key", `{"_postai_format": true, "_postai_type": "environments", "environments": [{"name": "x", "values": [{"values": ["1"]}]}]}`},
		{"non string value", `{"_postai_format": true, "_postai_type": "environments", "environments": [{"name": "x", "values": [{"key": "k", "values": [1]}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryRepository()
			_, err := NewImporter(repo).Import(context.Background(), []byte(tt.doc), workspace.FormatJSON)
			require.Error(t, err)
			assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))

			all, err := repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "nothing is stored on failure")
		})
	}
}

func TestImport_DanglingOverride(t *testing.T) {
	doc := `
_postai_format: true
_postai_type: environments
environments:
  - id: e1
    name: Local
    collection_id: col-1
    values:
      - key: host
        values: [localhost]
active_environments:
  col-1: e1
  col-2: gone
`
	repo := store.NewMemoryRepository()
	res, err := NewImporter(repo, WithOverrides(repo)).Import(context.Background(), []byte(doc), workspace.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overrides)
	assert.Empty(t, res.ActiveGlobal)

	overrides, err := repo.Overrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.IDMap["e1"], overrides["col-1"])
	assert.NotContains(t, overrides, "col-2")
}

func TestImport_MergesDuplicateKeys(t *testing.T) {
	doc := `{
		"_postai_format": true,
		"_postai_version": "1.0",
		"_postai_type": "environments",
		"environments": [{
			"name": "Dupes",
			"values": [
				{"key": "host", "values": ["old.local"]},
				{"key": "port", "values": ["80"]},
				{"key": "host", "values": ["a.local", "b.local"], "selected_value_index": 1}
			]
		}]
	}`

	repo := store.NewMemoryRepository()
	res, err := NewImporter(repo).Import(context.Background(), []byte(doc), workspace.FormatJSON)
	require.NoError(t, err)
	require.Len(t, res.Environments, 1)

	e := res.Environments[0]
	require.Len(t, e.Variables, 2)
	assert.Equal(t, "host", e.Variables[0].Key)
	assert.Equal(t, []string{"a.local", "b.local"}, e.Variables[0].Values)
	assert.Equal(t, 1, e.Variables[0].SelectedIndex)
	assert.Equal(t, "port", e.Variables[1].Key)
	require.Len(t, res.Repairs[e.ID], 1)
	assert.Contains(t, res.Repairs[e.ID][0], `duplicate key "host"`)

	stored, err := repo.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Variables, 2)
}
