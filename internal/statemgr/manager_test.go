package statemgr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/orchestrator"
	"github.com/noded/noded/internal/statemgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFleet struct {
	procs []orchestrator.ManagedProcess
}

func (f fakeFleet) List() []orchestrator.ManagedProcess { return f.procs }

func newTestPaths(t *testing.T) *statemgr.Paths {
	t.Helper()
	paths, err := statemgr.NewPaths(t.TempDir())
	require.NoError(t, err)
	return paths
}

func TestSaveWritesAtomicallyAndLoadRoundTrips(t *testing.T) {
	paths := newTestPaths(t)
	fleet := fakeFleet{procs: []orchestrator.ManagedProcess{
		{ID: "abc", Name: "web", Config: config.ProcessConfig{Script: "server.js"}},
	}}
	m := statemgr.New(zap.NewNop(), paths, fleet)
	defer m.Shutdown()

	require.NoError(t, m.Save())

	_, err := os.Stat(paths.StateFile())
	require.NoError(t, err)

	snap, err := m.Load()
	require.NoError(t, err)
	require.Len(t, snap.Processes, 1)
	assert.Equal(t, "web", snap.Processes[0].Name)
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	paths := newTestPaths(t)
	m := statemgr.New(zap.NewNop(), paths, fakeFleet{})
	defer m.Shutdown()

	require.NoError(t, m.Save())

	entries, err := os.ReadDir(paths.Home())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp.")
	}
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	paths := newTestPaths(t)
	m := statemgr.New(zap.NewNop(), paths, fakeFleet{})
	defer m.Shutdown()

	snap, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Processes)
}

func TestLoadCorruptStateMovesAsideAndStartsFresh(t *testing.T) {
	paths := newTestPaths(t)
	require.NoError(t, os.WriteFile(paths.StateFile(), []byte("{not json"), 0o644))

	m := statemgr.New(zap.NewNop(), paths, fakeFleet{})
	defer m.Shutdown()

	snap, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Processes)

	matches, err := filepath.Glob(paths.StateFile() + ".corrupt.*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRecoverReplaysEachPersistedProcess(t *testing.T) {
	paths := newTestPaths(t)
	fleet := fakeFleet{procs: []orchestrator.ManagedProcess{
		{ID: "1", Name: "web", Config: config.ProcessConfig{Script: "a.js"}},
		{ID: "2", Name: "worker", Config: config.ProcessConfig{Script: "b.js"}},
	}}
	m := statemgr.New(zap.NewNop(), paths, fleet)
	defer m.Shutdown()
	require.NoError(t, m.Save())

	var started []string
	err := m.Recover(func(cfg config.ProcessConfig) (*orchestrator.ManagedProcess, error) {
		started = append(started, cfg.Script)
		return &orchestrator.ManagedProcess{}, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.js", "b.js"}, started)
}
