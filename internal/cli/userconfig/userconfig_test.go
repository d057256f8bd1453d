package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedServer_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv(ConfigDirEnv, dir)

	selected, err := GetSelectedServer()
	require.NoError(t, err)
	assert.Empty(t, selected, "missing config should read as empty")

	require.NoError(t, SetSelectedServer("http://localhost:8080"))

	selected, err = GetSelectedServer()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", selected)

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, SetSelectedServer(""))
	selected, err = GetSelectedServer()
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestGetSelectedServer_Corrupt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0600))

	_, err := GetSelectedServer()
	assert.Error(t, err)
}
