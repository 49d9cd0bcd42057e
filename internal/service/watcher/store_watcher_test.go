package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *atomic.Int32) ReloadFunc {
	return func(context.Context) error {
		n.Add(1)
		return nil
	}
}

func TestStoreWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	var first, second atomic.Int32
	w := NewStoreWatcher(path, 20*time.Millisecond, counter(&first), counter(&second))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(path+"-wal", []byte("log"), 0o644))

	require.Eventually(t, func() bool {
		return first.Load() >= 1 && second.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStoreWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	var n atomic.Int32
	w := NewStoreWatcher(path, 10*time.Millisecond, counter(&n))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	assert.Never(t, func() bool { return n.Load() > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestStoreWatcherKeepsGoingAfterReloadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	var calls atomic.Int32
	failing := ReloadFunc(func(context.Context) error {
		calls.Add(1)
		return errors.New("locked")
	})
	var n atomic.Int32
	w := NewStoreWatcher(path, 10*time.Millisecond, failing, counter(&n))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 1 && n.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStoreWatcherLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	w := NewStoreWatcher(path, 0)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}
