package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, yaml string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
}

func TestWatcher_LoadsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfig(t, path, "server:\n  port: 9999\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	cfg := w.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfig(t, path, "server:\n  port: 8080\n")

	var reloads atomic.Int32
	ch := make(chan *GatewayConfig, 1)
	w, err := NewWatcher(path, func(cfg *GatewayConfig) {
		reloads.Add(1)
		select {
		case ch <- cfg:
		default:
		}
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	writeConfig(t, path, "server:\n  port: 8081\n")

	select {
	case cfg := <-ch:
		assert.Equal(t, 8081, cfg.Server.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidReloadKeepsLastConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfig(t, path, "server:\n  port: 8080\n")

	errCh := make(chan error, 1)
	w, err := NewWatcher(path, nil,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(e error) {
			select {
			case errCh <- e:
			default:
			}
		}))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	writeConfig(t, path, "server: {port: [broken")

	select {
	case e := <-errCh:
		require.Error(t, e)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}

	cfg := w.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestWatcher_StartMissingFile(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	err = w.Start(context.Background())
	require.Error(t, err)
}
