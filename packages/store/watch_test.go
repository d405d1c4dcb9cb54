package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

func TestFileRepository_WatchPicksUpExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	watched, err := NewFileRepository(path)
	require.NoError(t, err)
	writer, err := NewFileRepository(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- watched.Watch(ctx, 10*time.Millisecond, func(err error) { changes <- err })
	}()
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	e := sampleEnv("dev", env.GlobalScope())
	require.NoError(t, writer.Put(context.Background(), e))

	select {
	case err := <-changes:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	got, err := watched.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev", got.Name)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
