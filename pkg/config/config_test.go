package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":8080", cfg.Server.HTTPAddr)
	require.Equal(t, 15*time.Second, cfg.Tracker.SweepInterval)
	require.Equal(t, time.Second, cfg.Tracker.WalletPause)
	require.Equal(t, 500*time.Millisecond, cfg.Tracker.DeliveryPause)
	require.Equal(t, 24*time.Hour, cfg.Tracker.MetadataTTL)
	require.Equal(t, 2*time.Minute, cfg.Tracker.DedupTTL)
	require.Equal(t, "https://data-api.polymarket.com", cfg.Upstream.DataURL)
	require.Empty(t, cfg.DB.DSN)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yaml")
	yaml := []byte("tracker:\n  sweep_interval: 30s\nserver:\n  http_addr: \":9090\"\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("TRACKER_SERVER_HTTP_ADDR", ":7070")
	t.Setenv("TRACKER_DISCORD_TOKEN", "secret")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Tracker.SweepInterval)
	require.Equal(t, ":7070", cfg.Server.HTTPAddr, "environment wins over file")
	require.Equal(t, "secret", cfg.Discord.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)

	cfg.Upstream.DataURL = ""
	cfg.Tracker.SweepInterval = 0
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream.data_url")
	require.Contains(t, err.Error(), "sweep_interval")
}
