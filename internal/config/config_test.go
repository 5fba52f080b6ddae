package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDefaultThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	archiveBase := filepath.Join(dir, "archive")

	require.NoError(t, WriteDefault(path, archiveBase))

	cfg, err := Load(path, archiveBase)
	require.NoError(t, err)
	require.Equal(t, archiveBase, cfg.Archive.BasePath)
	require.Equal(t, 0.85, cfg.Classifier.GateMinConfidence)
	require.Equal(t, "balanced", cfg.LLM.ModelAlias)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.hcl"), filepath.Join(dir, "archive"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "archive"), cfg.Archive.BasePath)
}

func TestLoadInvalidFileBacksUpAndReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte("not valid hcl {{{"), 0o644))

	cfg, err := Load(path, filepath.Join(dir, "archive"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "archive"), cfg.Archive.BasePath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var sawBackup bool
	for _, e := range entries {
		if e.Name() != "config.hcl" && filepath.Ext(e.Name()) != ".hcl" {
			sawBackup = true
		}
	}
	require.True(t, sawBackup, "invalid config must be renamed aside")
}

func TestValidateRejectsUnsupportedLayout(t *testing.T) {
	cfg := Default("/tmp/archive")
	cfg.Archive.Layout = "v1"
	require.Error(t, cfg.Validate())
}
