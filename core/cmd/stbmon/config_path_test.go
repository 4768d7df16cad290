package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing", "config.yaml")
	present := filepath.Join(dir, "etc", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(present), 0o755))
	require.NoError(t, os.WriteFile(present, []byte("devices: []\n"), 0o644))

	t.Run("explicit path is used as is", func(t *testing.T) {
		path, err := resolveConfigPath("/srv/stbmon.yaml", []string{present}, logger)
		require.NoError(t, err)
		assert.Equal(t, "/srv/stbmon.yaml", path)
	})

	t.Run("first existing candidate wins", func(t *testing.T) {
		path, err := resolveConfigPath(defaultConfigFile, []string{missing, present}, logger)
		require.NoError(t, err)
		assert.Equal(t, present, path)
	})

	t.Run("no candidate found", func(t *testing.T) {
		_, err := resolveConfigPath(defaultConfigFile, []string{missing}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no config.yaml found")
	})
}

func TestConfigSearchPaths(t *testing.T) {
	paths := configSearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(".", "config.yaml"), paths[0])
}
