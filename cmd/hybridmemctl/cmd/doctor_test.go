package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_AllChecksPassOnFreshStore(t *testing.T) {
	// Given: a fresh store with the static embedder
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())
	t.Setenv("HYBRIDMEM_EMBEDDER", "static")

	// When: running doctor
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"doctor"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	// Then: every required check passes
	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "embedder")
	assert.Contains(t, out, "store")
	assert.Contains(t, out, "bm25")
	assert.NotContains(t, out, "FAIL")
}

func TestDoctorCmd_JSONOutput(t *testing.T) {
	// Given: a fresh store with the static embedder
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())
	t.Setenv("HYBRIDMEM_EMBEDDER", "static")

	// When: running doctor with --json
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"doctor", "--json"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: the report decodes and is overall ok
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "ok", report.Status)
	assert.NotEmpty(t, report.Checks)
}

func TestDoctorCmd_AddedToRoot(t *testing.T) {
	// Given: the root command
	rootCmd := NewRootCmd()

	// When: looking for the doctor subcommand
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "doctor" {
			found = true
		}
	}

	// Then: it is registered
	assert.True(t, found)
}
