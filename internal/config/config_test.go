package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LEDGERFLOW_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 12, cfg.Schedule.RecurringCap)
	require.Equal(t, 2, cfg.Reconcile.WindowDays)
	require.Equal(t, int64(1), cfg.Reconcile.AmountTolerance)
	require.Equal(t, 10, cfg.Ingest.Burst)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "R$", cfg.UI.CurrencySymbol)
	require.Contains(t, cfg.Database.Path, "ledgerflow.db")
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[schedule]
recurring_cap = 24

[reconcile]
window_days = 3

[database]
path = "/tmp/ledgerflow-test.db"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("LEDGERFLOW_CONFIG", path)
	t.Setenv("LEDGERFLOW_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 24, cfg.Schedule.RecurringCap)
	require.Equal(t, 3, cfg.Reconcile.WindowDays)
	require.Equal(t, "/tmp/ledgerflow-test.db", cfg.Database.Path)
	require.Equal(t, "debug", cfg.Log.Level)
}
