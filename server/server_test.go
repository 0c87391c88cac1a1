package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	config := DefaultConfig()
	config.DataDir = filepath.Join(t.TempDir(), "data")
	config.Admins = []string{"0x00000000000000000000000000000000000000ad"}
	config.Keeper.Interval = 10 * time.Millisecond

	return config
}

func TestServer_RunAndClose(t *testing.T) {
	t.Parallel()

	config := newTestConfig(t)

	srv, err := NewServer(config, hclog.NewNullLogger())
	require.NoError(t, err)
	require.NotNil(t, srv.keeper)

	_, err = os.Stat(filepath.Join(config.DataDir, stateFileName))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, srv.Run(ctx))

	last, err := srv.Gateway().LastNonce()
	require.NoError(t, err)
	require.Equal(t, types.Nonce(0), last)

	srv.Close()
}

func TestServer_StateIsExclusive(t *testing.T) {
	t.Parallel()

	config := newTestConfig(t)
	config.Keeper.Enabled = false

	srv, err := NewServer(config, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Nil(t, srv.keeper)

	t.Cleanup(srv.Close)

	_, _, err = NewStack(config, hclog.NewNullLogger())
	require.ErrorIs(t, err, state.ErrStateLocked)
}

func TestServer_InvalidConfig(t *testing.T) {
	t.Parallel()

	config := newTestConfig(t)
	config.Routers = nil
	config.Admins = []string{"not an address"}

	_, err := NewServer(config, hclog.NewNullLogger())
	require.ErrorContains(t, err, "invalid admin")
}

func TestNewStack_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	config := newTestConfig(t)
	config.BlockSource.BlockTime = 0

	_, _, err := NewStack(config, hclog.NewNullLogger())
	require.ErrorContains(t, err, "block time must be positive")

	// nothing is created for a rejected config
	_, err = os.Stat(config.DataDir)
	require.True(t, os.IsNotExist(err))

	// the keeper settings only matter to the daemon
	config = newTestConfig(t)
	config.Admins = nil

	gw, st, err := NewStack(config, hclog.NewNullLogger())
	require.NoError(t, err)

	gw.Close()
	require.NoError(t, st.Close())
}

func TestNewLoggerFromConfig_File(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.LogFilePath = filepath.Join(t.TempDir(), "gateway.log")
	config.JSONLogFormat = true

	logger, err := NewLoggerFromConfig(config)
	require.NoError(t, err)

	logger.Info("hello", "key", "value")

	content, err := os.ReadFile(config.LogFilePath)
	require.NoError(t, err)
	require.Contains(t, string(content), `"@message":"hello"`)
}
