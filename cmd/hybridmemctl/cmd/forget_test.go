package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgetCmd_RequiresIDOrQuery(t *testing.T) {
	// Given: an isolated store
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())
	t.Setenv("HYBRIDMEM_EMBEDDER", "static")

	// When: forgetting with neither --id nor a query
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"forget"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	// Then: it errors
	err := cmd.Execute()
	require.Error(t, err)
}

func TestForgetCmd_DeletesByID(t *testing.T) {
	// Given: a stored memory
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())
	t.Setenv("HYBRIDMEM_EMBEDDER", "static")

	storeBuf := &bytes.Buffer{}
	storeCmd := NewRootCmd()
	storeCmd.SetArgs([]string{"store", "the wifi password is printed on the router"})
	storeCmd.SetOut(storeBuf)
	require.NoError(t, storeCmd.Execute())

	id := extractStoredID(t, storeBuf.String())

	// When: forgetting by id
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"forget", "--id", id})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: it confirms the deletion
	assert.Contains(t, buf.String(), "deleted")
	assert.Contains(t, buf.String(), id)
}

func TestForgetCmd_NoMatchForQuery(t *testing.T) {
	// Given: an empty store
	t.Setenv("HYBRIDMEM_DATA_DIR", t.TempDir())
	t.Setenv("HYBRIDMEM_EMBEDDER", "static")

	// When: forgetting by a query with nothing stored
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"forget", "something that was never stored"})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	// Then: it reports no match
	assert.Contains(t, buf.String(), "no memory matches")
}

// extractStoredID pulls the id hybridmemctl store prints as "stored <id>".
func extractStoredID(t *testing.T, output string) string {
	t.Helper()
	const prefix = "stored "
	idx := bytes.Index([]byte(output), []byte(prefix))
	require.GreaterOrEqual(t, idx, 0, "expected %q to contain %q", output, prefix)
	rest := output[idx+len(prefix):]
	end := bytes.IndexByte([]byte(rest), '\n')
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}
