package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// viperKeys defines the mapping between config keys and their Viper
// counterparts.
const (
	keyStalenessThreshold = "sweep.staleness_threshold"
	keyStaleInterval      = "sweep.stale_interval"
	keyReminderInterval   = "sweep.reminder_interval"
	keySyncTokenTTL       = "sync.token_ttl"
	keySyncJanitor        = "sync.janitor_interval"
	keyStatsTimezone      = "stats.timezone"
	keyStatsLookback      = "stats.lookback_days"
	keyNotifyEnabled      = "notify.enabled"
	keyNotifyCmd          = "notify.cmd"
	keyLogPath            = "log.path"
	keyLogMaxSize         = "log.max_size_mb"
	keyLogMaxBackups      = "log.max_backups"
)

// WithViperConfig returns an Option that loads configuration from the
// yaml file at configPath, writing the defaults there first if the file
// does not exist yet.
func WithViperConfig(configPath, logPath string) Option {
	return func(c *Config) error {
		v := viper.New()

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		setViperDefaults(v, logPath)

		err := v.ReadInConfig()
		if err == nil {
			return loadViperConfig(v, c)
		}

		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config file failed: %w", err)
		}

		if err := v.WriteConfig(); err != nil {
			return fmt.Errorf("writing default config failed: %w", err)
		}

		return loadViperConfig(v, c)
	}
}

func setViperDefaults(v *viper.Viper, logPath string) {
	v.SetDefault(keyStalenessThreshold, "4h")
	v.SetDefault(keyStaleInterval, "60s")
	v.SetDefault(keyReminderInterval, "30s")
	v.SetDefault(keySyncTokenTTL, "24h")
	v.SetDefault(keySyncJanitor, "5m")
	v.SetDefault(keyStatsTimezone, "UTC")
	v.SetDefault(keyStatsLookback, 30)
	v.SetDefault(keyNotifyEnabled, true)
	v.SetDefault(keyNotifyCmd, "")
	v.SetDefault(keyLogPath, logPath)
	v.SetDefault(keyLogMaxSize, 10)
	v.SetDefault(keyLogMaxBackups, 3)
}

func loadViperConfig(v *viper.Viper, c *Config) error {
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("unmarshalling config failed: %w", err)
	}

	return nil
}
