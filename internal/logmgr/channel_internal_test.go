package logmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	ch, err := newChannel(path, 200, 3)
	require.NoError(t, err)
	defer ch.close()

	for i := 0; i < 50; i++ {
		require.NoError(t, ch.write(Entry{Level: LevelInfo, Message: "a reasonably sized log line to force rotation eventually"}))
	}

	_, err = os.Stat(ch.archivePath(1))
	assert.NoError(t, err, "expected base.1.log.gz to exist after rotation")
}

func TestChannelShiftsArchivesOldestToNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	ch, err := newChannel(path, 64, 2)
	require.NoError(t, err)
	defer ch.close()

	for i := 0; i < 40; i++ {
		require.NoError(t, ch.write(Entry{Level: LevelInfo, Message: "line to force multiple rotations here"}))
	}

	// With maxFiles=2, base.2.log.gz should exist once at least two
	// rotations have happened, and base.3 should never exist.
	_, err = os.Stat(ch.archivePath(2))
	assert.NoError(t, err)
	_, err = os.Stat(ch.archivePath(3))
	assert.Error(t, err)
}
