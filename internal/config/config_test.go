package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := `
env: "dev"
storage: "memory"
http_server:
  address: "0.0.0.0:9000"
planning:
  daily_capacity_minutes: 600
  skip_weekends: true
adjustment:
  auto_draw_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, "0.0.0.0:9000", cfg.Address)
	assert.Equal(t, 600, cfg.Planning.DailyCapacityMinutes)
	assert.True(t, cfg.Planning.SkipWeekends)
	assert.Equal(t, 250*time.Millisecond, cfg.Adjustment.AutoDrawDelay)
	// значения по умолчанию
	assert.Equal(t, 60, cfg.Planning.SplitHorizonDays)
	assert.Equal(t, "^[0-9]{2,3}$", cfg.Adjustment.ContainerPattern)
	assert.Equal(t, 4*time.Second, cfg.Timeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 480, cfg.Planning.DailyCapacityMinutes)
	assert.Equal(t, "STACJA-DOZ-1", cfg.Adjustment.StationID)
	assert.Equal(t, 3*time.Second, cfg.Adjustment.AutoDrawDelay)
}
