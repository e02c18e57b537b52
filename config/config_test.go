package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "chargeauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("STEVE_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, `
log_level: debug
charge_box_id: CP01
connector_id: 2
db:
  dsn: "steve:${STEVE_PASSWORD}@(db)/stevedb?parseTime=true"
redis:
  url: redis://localhost:6379/0
  default_ttl: 12h
reader:
  gain: 7
  cancel_timeout: 2s
latch:
  active_high: false
`))
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "-", cfg.LogFile)
	require.Equal(t, "steve:hunter2@(db)/stevedb?parseTime=true", cfg.DB.DSN)
	require.Equal(t, 2, cfg.ConnectorID)
	require.Equal(t, 12*time.Hour, cfg.Redis.DefaultTTL)
	require.Equal(t, 7, cfg.Reader.Gain)
	require.Equal(t, 2*time.Second, cfg.Reader.CancelTimeout)
	require.Equal(t, 30*time.Second, cfg.Reader.AuthTimeout)
	require.Equal(t, 30*time.Second, cfg.Latch.OpenFor)
	require.False(t, cfg.LatchActiveHigh())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "charge_box_id: [\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.ChargeBoxID = "CP01"
		c.TagsFile = "tags.yaml"
		return c
	}
	require.NoError(t, valid().Validate())
	require.True(t, valid().LatchActiveHigh())

	for name, mutate := range map[string]func(c *Config){
		"no backend":    func(c *Config) { c.TagsFile = "" },
		"two backends":  func(c *Config) { c.DB.DSN = "steve@/stevedb" },
		"no charge box": func(c *Config) { c.ChargeBoxID = "" },
		"no connector":  func(c *Config) { c.ConnectorID = 0 },
		"gain too high": func(c *Config) { c.Reader.Gain = 8 },
		"zero timeout":  func(c *Config) { c.Reader.AuthTimeout = 0 },
		"zero latch":    func(c *Config) { c.Latch.OpenFor = 0 },
		"negative ttl":  func(c *Config) { c.Redis.DefaultTTL = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
