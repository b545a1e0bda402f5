package crsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadWithOptions(LoadOptions{ProjectConfigPath: filepath.Join(dir, "missing.yml")})
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Processes)
	assert.True(t, cfg.Propagate)
	assert.Equal(t, "exrpa-long-bin", cfg.SearchMode)
	assert.True(t, cfg.ExtendedSearch)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("processes: 4\nsearch_mode: bisect\n"), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{ProjectConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Processes)
	assert.Equal(t, "bisect", cfg.SearchMode)
}

func TestLoad_EnvironmentOverridesProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("processes: 4\n"), 0o644))

	t.Setenv("CRS_PROCESSES", "8")

	cfg, err := LoadWithOptions(LoadOptions{ProjectConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Processes)
}

func TestValidate_RejectsUnknownSearchMode(t *testing.T) {
	cfg := &Configuration{Processes: 1, SearchMode: "not-a-real-mode"}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveProcesses(t *testing.T) {
	cfg := &Configuration{Processes: 0, SearchMode: "bisect"}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsRelativeWorktreeLocation(t *testing.T) {
	cfg := &Configuration{Processes: 1, SearchMode: "bisect", WorktreeLocation: "relative/path"}
	assert.Error(t, Validate(cfg))
}
