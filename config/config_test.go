package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lease-engine/config"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/lease.db", cfg.Database.Path)
	assert.Equal(t, "first_day", cfg.Rules.DueDatePolicy)
	assert.Equal(t, 3, cfg.Rules.GracePeriodDays)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.CronSpec)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
rules:
  due_date_policy: last_day
  grace_period_days: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "last_day", cfg.Rules.DueDatePolicy)
	assert.Equal(t, 5, cfg.Rules.GracePeriodDays)
	// Untouched keys keep their defaults.
	assert.Equal(t, "data/lease.db", cfg.Database.Path)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad policy", "rules:\n  due_date_policy: mid_month\n"},
		{"bad port", "server:\n  port: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
