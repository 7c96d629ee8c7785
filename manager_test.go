package mcpclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeServerConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestNewManagerFromConfig_RegistersEnabledServers(t *testing.T) {
	path := writeServerConfig(t, `
servers:
  docs:
    endpoint: https://docs.example.com/mcp
  legacy:
    endpoint: https://legacy.example.com/mcp
    enabled: false
`)

	mgr, err := NewManagerFromConfig(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mgr.Close())
	})

	report := mgr.Report()
	require.Len(t, report, 1)
	require.Contains(t, report, "docs")
	require.Equal(t, StateDisconnected, report["docs"].State)
}

func TestNewManagerFromConfig_MissingFile(t *testing.T) {
	_, err := NewManagerFromConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestManager_AddServerValidates(t *testing.T) {
	mgr := NewManager()
	t.Cleanup(func() {
		require.NoError(t, mgr.Close())
	})

	err := mgr.AddServer(&ServerConfig{Label: "docs"})
	require.ErrorContains(t, err, "endpoint must not be empty")

	cfg := &ServerConfig{Label: "docs", Endpoint: "https://docs.example.com/mcp"}
	require.NoError(t, mgr.AddServer(cfg))
	require.ErrorIs(t, mgr.AddServer(cfg), ErrDuplicateLabel)
}

func TestWithManager_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithManager(ctx, "irrelevant.yaml", func(Manager) error {
		t.Fatal("callback must not run")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSession_Validates(t *testing.T) {
	_, err := NewSession(&ServerConfig{Label: "docs"})
	require.ErrorContains(t, err, "endpoint must not be empty")

	sess, err := NewSession(&ServerConfig{
		Label:    "docs",
		Endpoint: "https://docs.example.com/mcp",
	})
	require.NoError(t, err)
	require.Equal(t, StateDisconnected, sess.State())
	require.NoError(t, sess.Close())
}
