package logmgr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noded/noded/internal/logmgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProcessLogAndGetRecent(t *testing.T) {
	dir := t.TempDir()
	m, err := logmgr.New(dir)
	require.NoError(t, err)
	defer m.Close()

	m.WriteProcessLog("p1", "web", "stdout", []byte("listening on :8080"))
	m.WriteProcessLog("p1", "web", "stderr", []byte("deprecation warning"))
	m.WriteProcessLog("p2", "worker", "stdout", []byte("tick"))

	all := m.GetRecent(10, "")
	require.Len(t, all, 3)
	assert.Equal(t, "tick", all[0].Message, "newest first")

	filtered := m.GetRecent(10, "p1")
	require.Len(t, filtered, 2)
	for _, e := range filtered {
		assert.Equal(t, "p1", e.ProcessID)
	}
}

func TestWriteProcessLogPersistsToChannelFile(t *testing.T) {
	dir := t.TempDir()
	m, err := logmgr.New(dir)
	require.NoError(t, err)
	defer m.Close()

	m.WriteProcessLog("p1", "web", "stdout", []byte("hello"))

	_, err = os.Stat(filepath.Join(dir, "web.log"))
	require.NoError(t, err)

	entries, err := m.Tail("p1", "web", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
}

func TestLogDaemonWritesToDaemonChannel(t *testing.T) {
	dir := t.TempDir()
	m, err := logmgr.New(dir)
	require.NoError(t, err)
	defer m.Close()

	m.LogDaemon(logmgr.LevelInfo, "daemon started", nil)

	_, err = os.Stat(filepath.Join(dir, "daemon.log"))
	require.NoError(t, err)

	recent := m.GetRecent(5, "")
	require.Len(t, recent, 1)
	assert.Equal(t, "daemon started", recent[0].Message)
}
