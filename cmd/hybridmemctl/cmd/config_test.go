package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitCmd_CreatesFile(t *testing.T) {
	// Given: an isolated XDG config home with no existing config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// When: running config init
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"config", "init"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: the file now exists
	assert.Contains(t, buf.String(), "created user configuration")
	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "hybridmem", "config.yaml")
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestConfigInitCmd_RefusesOverwriteWithoutForce(t *testing.T) {
	// Given: a config that already exists
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	first := NewRootCmd()
	first.SetArgs([]string{"config", "init"})
	first.SetOut(&bytes.Buffer{})
	require.NoError(t, first.Execute())

	// When: running config init again without --force
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"config", "init"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: it refuses and suggests --force
	assert.Contains(t, buf.String(), "already exists")
	assert.Contains(t, buf.String(), "--force")
}

func TestConfigPathCmd_PrintsPath(t *testing.T) {
	// Given: an isolated XDG config home
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// When: running config path
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"config", "path"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: it prints the expected path
	assert.Contains(t, buf.String(), filepath.Join("hybridmem", "config.yaml"))
}

func TestConfigShowCmd_ReportsDefaults(t *testing.T) {
	// Given: an isolated config and data dir
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())

	// When: running config show
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"config", "show"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: the default embeddings provider is shown
	assert.Contains(t, buf.String(), "static")
}
