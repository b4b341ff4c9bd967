package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsDefaultsToHome(t *testing.T) {
	t.Setenv("AGENTCLICK_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, PathsAt(filepath.Join(home, ".agentclick")), p)
}

func TestResolvePathsHonorsAgentclickHome(t *testing.T) {
	base := filepath.Join(t.TempDir(), "acl")
	t.Setenv("AGENTCLICK_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)

	want := map[string]string{
		"base":       base,
		"config":     filepath.Join(base, "config.yaml"),
		"workspaces": filepath.Join(base, "workspaces.yaml"),
		"templates":  filepath.Join(base, "input_templates.yaml"),
		"history":    filepath.Join(base, "data", "history.db"),
		"log":        filepath.Join(base, "logs", "agentclick.log"),
	}
	got := map[string]string{
		"base":       p.Base,
		"config":     p.Config,
		"workspaces": p.Workspaces,
		"templates":  p.Templates,
		"history":    p.HistoryDB(),
		"log":        p.LogFile(),
	}
	assert.Equal(t, want, got)
}

func TestEnsureDirs(t *testing.T) {
	p := PathsAt(filepath.Join(t.TempDir(), "home"))
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.Base, p.Logs, p.Data} {
		assert.DirExists(t, dir)
	}
	assert.NoFileExists(t, p.Config, "only directories are created")
}
