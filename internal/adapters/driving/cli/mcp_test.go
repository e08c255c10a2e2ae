package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

func TestMCPServeCmd_PortFlag(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)
}

func TestMCPServeCmd_Registered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"mcp", "serve"})
	require.NoError(t, err)
	assert.Equal(t, mcpServeCmd, cmd)
}

func TestMCPServeCmd_OpenError(t *testing.T) {
	env, cleanup := setupTestServices()
	defer cleanup()
	env.openErr = &domain.StageError{Stage: domain.IngestIdle, Err: domain.ErrConfig}

	_, _, err := execute("mcp", "serve")

	assert.ErrorIs(t, err, domain.ErrConfig)
	require.NotNil(t, env.settings)
	assert.Equal(t, domain.DefaultStorePath, env.settings.StorePath)
}

func TestMCPServeCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	Configure(Dependencies{})

	_, _, err := execute("mcp", "serve")

	assert.ErrorIs(t, err, errNotConfigured)
}
