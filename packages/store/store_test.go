package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

func sampleEnv(name string, scope env.Scope) *env.Environment {
	e := env.NewEnvironment(name, scope)
	v := env.NewVariable("baseUrl", "http://dev")
	v.Values = append(v.Values, "http://prod")
	v.SelectedIndex = 1
	e.Variables = append(e.Variables, v)
	return e
}

func testRepository(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, env.ErrNotFound)
	})

	t.Run("put and get round trip", func(t *testing.T) {
		s := open(t)
		e := sampleEnv("dev", env.GlobalScope())
		require.NoError(t, s.Put(ctx, e))

		got, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.Name, got.Name)
		require.Len(t, got.Variables, 1)
		assert.Equal(t, []string{"http://dev", "http://prod"}, got.Variables[0].Values)
		assert.Equal(t, 1, got.Variables[0].SelectedIndex)
		assert.Equal(t, "http://prod", got.Variables[0].CurrentValue())
	})

	t.Run("returned copies are detached", func(t *testing.T) {
		s := open(t)
		e := sampleEnv("dev", env.GlobalScope())
		require.NoError(t, s.Put(ctx, e))

		e.Variables[0].Values[0] = "mutated after put"
		got, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		got.Variables[0].Values[1] = "mutated after get"

		again, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://dev", "http://prod"}, again.Variables[0].Values)
	})

	t.Run("put overwrites whole aggregate", func(t *testing.T) {
		s := open(t)
		e := sampleEnv("dev", env.GlobalScope())
		require.NoError(t, s.Put(ctx, e))

		e.Name = "renamed"
		e.Variables = append(e.Variables, env.NewVariable("token", "t"))
		require.NoError(t, s.Put(ctx, e))

		got, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Len(t, got.Variables, 2)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		e := sampleEnv("dev", env.GlobalScope())
		require.NoError(t, s.Put(ctx, e))
		require.NoError(t, s.Delete(ctx, e.ID))

		_, err := s.Get(ctx, e.ID)
		assert.ErrorIs(t, err, env.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, e.ID), env.ErrNotFound)
	})

	t.Run("lists by scope", func(t *testing.T) {
		s := open(t)
		g2 := sampleEnv("staging", env.GlobalScope())
		g1 := sampleEnv("production", env.GlobalScope())
		c1 := sampleEnv("local", env.CollectionScope("c1"))
		c2 := sampleEnv("other", env.CollectionScope("c2"))
		for _, e := range []*env.Environment{g2, g1, c1, c2} {
			require.NoError(t, s.Put(ctx, e))
		}

		globals, err := s.ListGlobal(ctx)
		require.NoError(t, err)
		require.Len(t, globals, 2)
		assert.Equal(t, "production", globals[0].Name)
		assert.Equal(t, "staging", globals[1].Name)

		coll, err := s.ListByCollection(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, coll, 1)
		assert.Equal(t, c1.ID, coll[0].ID)

		none, err := s.ListByCollection(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "local", all[0].Name)
		assert.Equal(t, "staging", all[3].Name)

		require.NoError(t, s.Delete(ctx, c2.ID))
		all, err = s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("overrides", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SetOverride(ctx, "c1", "e1"))
		require.NoError(t, s.SetOverride(ctx, "c2", "e2"))
		require.NoError(t, s.SetOverride(ctx, "c1", "e3"))
		require.NoError(t, s.SetOverride(ctx, "c2", ""))

		got, err := s.Overrides(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"c1": "e3"}, got)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		s := open(t)
		err := s.Put(ctx, &env.Environment{Name: "x"})
		assert.True(t, env.IsErrorCode(err, env.CodeInvalidArgument))
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, func(t *testing.T) Store {
		return NewMemoryRepository()
	})
}

func TestSQLiteRepository(t *testing.T) {
	testRepository(t, func(t *testing.T) Store {
		s, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "hitenv.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestFileRepositoryJSON(t *testing.T) {
	testRepository(t, func(t *testing.T) Store {
		s, err := NewFileRepository(filepath.Join(t.TempDir(), "workspace.json"))
		require.NoError(t, err)
		return s
	})
}

func TestFileRepositoryYAML(t *testing.T) {
	testRepository(t, func(t *testing.T) Store {
		s, err := NewFileRepository(filepath.Join(t.TempDir(), "workspace.yaml"))
		require.NoError(t, err)
		return s
	})
}

func TestRedisRepository(t *testing.T) {
	url := os.Getenv("HITENV_TEST_REDIS")
	if url == "" {
		t.Skip("HITENV_TEST_REDIS not set")
	}
	testRepository(t, func(t *testing.T) Store {
		s, err := NewRedisRepository(context.Background(), url)
		require.NoError(t, err)
		s.prefix = "hitenv-test:" + t.Name() + ":"
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := s.client.Keys(ctx, s.prefix+"*").Result()
			if len(keys) > 0 {
				s.client.Del(ctx, keys...)
			}
			s.Close()
		})
		return s
	})
}

func TestSQLiteRepository_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hitenv.db")

	s, err := NewSQLiteRepository(ctx, path)
	require.NoError(t, err)
	e := sampleEnv("dev", env.CollectionScope("c1"))
	require.NoError(t, s.Put(ctx, e))
	require.NoError(t, s.SetOverride(ctx, "c1", e.ID))
	require.NoError(t, s.Close())

	s, err = NewSQLiteRepository(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, env.CollectionScope("c1"), got.Scope)

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.ID, overrides["c1"])
}

func TestFileRepository_SharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workspace.json")

	a, err := NewFileRepository(path)
	require.NoError(t, err)
	b, err := NewFileRepository(path)
	require.NoError(t, err)

	e := sampleEnv("dev", env.GlobalScope())
	require.NoError(t, a.Put(ctx, e))

	_, err = b.Get(ctx, e.ID)
	assert.ErrorIs(t, err, env.ErrNotFound)

	changed, err := b.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = b.Get(ctx, e.ID)
	assert.NoError(t, err)

	changed, err = a.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "own writes are not reported as changes")
}

func TestFileRepository_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := NewFileRepository(path)
	assert.Error(t, err)
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		input    string
		kind     string
		target   string
		hasError bool
	}{
		{"memory:", "memory", "", false},
		{"sqlite://test.db", "sqlite", "test.db", false},
		{"sqlite:./test.db", "sqlite", "./test.db", false},
		{"sqlite:///tmp/test.db", "sqlite", "/tmp/test.db", false},
		{"file:./ws.yaml", "file", "./ws.yaml", false},
		{"file:///tmp/ws.json", "file", "/tmp/ws.json", false},
		{"redis://localhost:6379/0", "redis", "redis://localhost:6379/0", false},
		{"postgres://user@host/db", "", "", true},
		{"invalid", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, target, err := parseConnectionString(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "memory:")
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, s)

	s, err = Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "file:"+filepath.Join(t.TempDir(), "ws.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileRepository{}, s)
}
