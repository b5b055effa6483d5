package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetAndGet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"config", "set", "storage.backend", "memory"})
	require.NoError(t, rootCmd.Execute())

	buf.Reset()
	rootCmd.SetArgs([]string{"config", "get", "storage.backend"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "memory")
}

func TestConfigGet_MissingKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"config", "get", "nope"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, int64(42), parseConfigValue("42"))
	assert.Equal(t, 0.5, parseConfigValue("0.5"))
	assert.Equal(t, true, parseConfigValue("true"))
	assert.Equal(t, "sqlite", parseConfigValue("sqlite"))
}
