package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeFormatSizeRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 512, 1024, 1536, 10 * 1024 * 1024, 5 * 1024 * 1024 * 1024}
	for _, n := range cases {
		s := FormatSize(n)
		got, err := ParseSize(s)
		require.NoError(t, err)
		assert.Equal(t, n, got, "round trip for %d via %q", n, s)
	}
}

func TestParseSizeRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "abc", "-5MB", "5XB", "MB"} {
		_, err := ParseSize(s)
		assert.Error(t, err, "expected error for %q", s)
	}
}

func TestParseSizeCaseInsensitive(t *testing.T) {
	got, err := ParseSize("2gb")
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024*1024), got)
}

func TestParseEnvFileContent(t *testing.T) {
	content := "# comment\nFOO=bar\n\nBAZ=\"quoted value\"\nMISMATCH=\"oops'\nEMPTYLINEOK\n"
	got := ParseEnvFileContent(content)
	assert.Equal(t, "bar", got["FOO"])
	assert.Equal(t, "quoted value", got["BAZ"])
	assert.Equal(t, `"oops'`, got["MISMATCH"])
	_, ok := got["EMPTYLINEOK"]
	assert.False(t, ok)
}

func TestMergeEnvExplicitWins(t *testing.T) {
	merged := MergeEnv(map[string]string{"A": "explicit"}, map[string]string{"A": "fromfile", "B": "fromfile"})
	assert.Equal(t, "explicit", merged["A"])
	assert.Equal(t, "fromfile", merged["B"])
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	f, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Empty(t, f.Processes)
}

func TestProcessConfigNormalizeDefaults(t *testing.T) {
	pc := ProcessConfig{Script: "/opt/app/server.js"}
	require.NoError(t, pc.Normalize())
	assert.Equal(t, "server.js", pc.Name)
	assert.Equal(t, "1", pc.Instances)
	assert.Equal(t, RestartOn, pc.Autorestart)
	assert.Equal(t, DefaultMaxRestarts, pc.MaxRestarts)
}

func TestProcessConfigNormalizeRequiresScript(t *testing.T) {
	pc := ProcessConfig{}
	err := pc.Normalize()
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrInvalidConfig, cfgErr.Kind)
}
