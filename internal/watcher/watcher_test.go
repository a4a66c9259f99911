package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/noded/noded/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitForEvent(t *testing.T, ch <-chan watcher.FileChangeEvent, timeout time.Duration) watcher.FileChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for file change event")
		return watcher.FileChangeEvent{}
	}
}

func TestWatchEmitsAddOnNewFile(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(zap.NewNop(), nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch([]string{dir}, true))

	target := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(target, []byte("console.log(1)"), 0o644))

	ev := waitForEvent(t, w.Events(), 2*time.Second)
	assert.Equal(t, watcher.ChangeAdd, ev.Type)
	assert.Equal(t, target, ev.AbsolutePath)
}

func TestWatchSuppressesUnchangedContentRewrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(target, []byte("same"), 0o644))

	w, err := watcher.New(zap.NewNop(), nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}, true))

	// First write establishes a baseline.
	require.NoError(t, os.WriteFile(target, []byte("same"), 0o644))
	waitForEvent(t, w.Events(), 2*time.Second)

	// Rewriting identical bytes (but touching mtime) must not emit twice.
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("same"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("expected no event for unchanged content, got %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestUnwatchStopsEmittingForPath(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(zap.NewNop(), nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch([]string{dir}, true))
	require.NoError(t, w.Unwatch([]string{dir}))

	target := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("expected no event after Unwatch, got %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatchIsIdempotentPerPath(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(zap.NewNop(), nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch([]string{dir}, true))
	require.NoError(t, w.Watch([]string{dir}, true))
}
