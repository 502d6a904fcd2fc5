// Package config loads and validates sessiond settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const appDir = "sessiond"

type (
	// Config holds all configuration settings.
	Config struct {
		Sweep  SweepConfig  `mapstructure:"sweep"`
		Sync   SyncConfig   `mapstructure:"sync"`
		Stats  StatsConfig  `mapstructure:"stats"`
		Notify NotifyConfig `mapstructure:"notify"`
		Log    LogConfig    `mapstructure:"log"`
		System SystemConfig `mapstructure:"system"`
	}

	// SweepConfig holds the background sweep settings.
	SweepConfig struct {
		StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
		StaleInterval      time.Duration `mapstructure:"stale_interval"`
		ReminderInterval   time.Duration `mapstructure:"reminder_interval"`
	}

	// SyncConfig holds multi-device handoff settings.
	SyncConfig struct {
		TokenTTL        time.Duration `mapstructure:"token_ttl"`
		JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	}

	// StatsConfig holds reporting settings.
	StatsConfig struct {
		Timezone     string `mapstructure:"timezone"`
		LookbackDays int    `mapstructure:"lookback_days"`
	}

	// NotifyConfig holds local notification settings.
	NotifyConfig struct {
		Enabled bool   `mapstructure:"enabled"`
		Cmd     string `mapstructure:"cmd"`
	}

	// LogConfig holds log output settings.
	LogConfig struct {
		Path       string `mapstructure:"path"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	}

	// SystemConfig holds file locations.
	SystemConfig struct {
		ConfigPath string `mapstructure:"-"`
		DBPath     string `mapstructure:"-"`
	}
)

// Option applies a configuration source or override to a Config.
type Option func(*Config) error

// New builds a Config by applying the given options in order.
func New(opts ...Option) (*Config, error) {
	c := &Config{}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Stats.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid stats timezone: %w", err)
	}

	return loc, nil
}

// DefaultPaths resolves the config file and database locations through
// XDG, honouring SESSIOND_ENV for isolated test environments.
func DefaultPaths() (configPath, dbPath, logPath string, err error) {
	configFileName := "config.yml"
	dbFileName := "sessiond.db"
	logFileName := "sessiond.log"

	env := strings.TrimSpace(os.Getenv("SESSIOND_ENV"))
	if env != "" {
		configFileName = fmt.Sprintf("config_%s.yml", env)
		dbFileName = fmt.Sprintf("sessiond_%s.db", env)
		logFileName = fmt.Sprintf("sessiond_%s.log", env)
	}

	configPath, err = xdg.ConfigFile(filepath.Join(appDir, configFileName))
	if err != nil {
		return "", "", "", err
	}

	dataDir, err := xdg.DataFile(appDir)
	if err != nil {
		return "", "", "", err
	}

	dbPath = filepath.Join(dataDir, dbFileName)
	logPath = filepath.Join(dataDir, logFileName)

	return configPath, dbPath, logPath, nil
}
