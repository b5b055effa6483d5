package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	require.NoError(t, configStore.Set("storage.backend", "memory"))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"status"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Storage backend: memory")
	assert.Contains(t, out, "Stored contexts: 0")
	assert.Contains(t, out, ".py")
	assert.Contains(t, out, ".json")
}

func TestRunStatus_NotConfigured(t *testing.T) {
	oldStorage := contextStorage
	contextStorage = nil
	defer func() {
		contextStorage = oldStorage
	}()

	err := runStatus(statusCmd, nil)

	assert.Error(t, err)
}
