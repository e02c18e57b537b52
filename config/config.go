// Package config loads the charge point configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsAddr string `yaml:"metrics_addr"`

	// DB and TagsFile are the two tag backends, exactly one must be set.
	DB       DBConfig `yaml:"db"`
	TagsFile string   `yaml:"tags_file"`

	Redis RedisConfig `yaml:"redis"`

	ChargeBoxID string       `yaml:"charge_box_id"`
	ConnectorID int          `yaml:"connector_id"`
	Reader      ReaderConfig `yaml:"reader"`
	Latch       LatchConfig  `yaml:"latch"`
}

type DBConfig struct {
	// DSN for the SteVe mysql database as per the Go database/sql package,
	// eg: 'username:password@(host)/stevedb?parseTime=true'
	DSN   string `yaml:"dsn"`
	AppID string `yaml:"app_id"`
}

type RedisConfig struct {
	// URL enables the local authorization cache, eg: redis://localhost:6379/0
	URL        string        `yaml:"url"`
	KeyPrefix  string        `yaml:"key_prefix"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type ReaderConfig struct {
	Gain          int           `yaml:"gain"`
	UpperHex      bool          `yaml:"upper_hex"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	AuthTimeout   time.Duration `yaml:"auth_timeout"`
	CancelTimeout time.Duration `yaml:"cancel_timeout"`
}

type LatchConfig struct {
	OpenFor    time.Duration `yaml:"open_for"`
	ActiveHigh *bool         `yaml:"active_high"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFile:     "-",
		ConnectorID: 1,
		Reader: ReaderConfig{
			Gain:          5,
			ReadTimeout:   100 * time.Millisecond,
			AuthTimeout:   30 * time.Second,
			CancelTimeout: 5 * time.Second,
		},
		Latch: LatchConfig{
			OpenFor: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over Default, ${VAR} references are
// expanded from the environment first.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if (c.DB.DSN == "") == (c.TagsFile == "") {
		return fmt.Errorf("exactly one of db.dsn and tags_file is required")
	}
	if c.ChargeBoxID == "" {
		return fmt.Errorf("charge_box_id is required")
	}
	if c.ConnectorID <= 0 {
		return fmt.Errorf("connector_id must be greater than 0")
	}
	if c.Reader.Gain < 0 || c.Reader.Gain > 7 {
		return fmt.Errorf("reader.gain must be 0 to 7")
	}
	if c.Reader.ReadTimeout <= 0 || c.Reader.AuthTimeout <= 0 || c.Reader.CancelTimeout <= 0 {
		return fmt.Errorf("reader timeouts must be positive")
	}
	if c.Latch.OpenFor <= 0 {
		return fmt.Errorf("latch.open_for must be positive")
	}
	if c.Redis.DefaultTTL < 0 {
		return fmt.Errorf("redis.default_ttl must not be negative")
	}
	return nil
}

// LatchActiveHigh is the latch logic level, active high unless configured
// otherwise.
func (c Config) LatchActiveHigh() bool {
	return c.Latch.ActiveHigh == nil || *c.Latch.ActiveHigh
}
