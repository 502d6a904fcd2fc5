package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWithViperConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	logPath := filepath.Join(dir, "sessiond.log")

	cfg, err := New(WithViperConfig(configPath, logPath))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("default config file was not written: %v", err)
	}

	if cfg.Sweep.StalenessThreshold != 4*time.Hour {
		t.Errorf(
			"staleness threshold = %s, want 4h",
			cfg.Sweep.StalenessThreshold,
		)
	}

	if cfg.Sweep.ReminderInterval != 30*time.Second {
		t.Errorf(
			"reminder interval = %s, want 30s",
			cfg.Sweep.ReminderInterval,
		)
	}

	if cfg.Sync.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %s, want 24h", cfg.Sync.TokenTTL)
	}

	if cfg.Stats.Timezone != "UTC" || cfg.Stats.LookbackDays != 30 {
		t.Errorf(
			"stats config = %q/%d, want UTC/30",
			cfg.Stats.Timezone,
			cfg.Stats.LookbackDays,
		)
	}

	if !cfg.Notify.Enabled {
		t.Error("notifications should be enabled by default")
	}

	if cfg.Log.Path != logPath {
		t.Errorf("log path = %q, want %q", cfg.Log.Path, logPath)
	}
}

func TestWithViperConfigReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	contents := []byte(`sweep:
  staleness_threshold: 2h
  stale_interval: 10s
stats:
  timezone: Europe/Berlin
  lookback_days: 60
notify:
  enabled: false
`)

	if err := os.WriteFile(configPath, contents, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := New(WithViperConfig(configPath, ""))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.Sweep.StalenessThreshold != 2*time.Hour {
		t.Errorf(
			"staleness threshold = %s, want 2h",
			cfg.Sweep.StalenessThreshold,
		)
	}

	if cfg.Stats.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want Europe/Berlin", cfg.Stats.Timezone)
	}

	if cfg.Stats.LookbackDays != 60 {
		t.Errorf("lookback = %d, want 60", cfg.Stats.LookbackDays)
	}

	if cfg.Notify.Enabled {
		t.Error("notifications should be disabled by the file")
	}

	// Untouched keys keep their defaults.
	if cfg.Sweep.ReminderInterval != 30*time.Second {
		t.Errorf(
			"reminder interval = %s, want the 30s default",
			cfg.Sweep.ReminderInterval,
		)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}

	if loc.String() != "Europe/Berlin" {
		t.Errorf("location = %s, want Europe/Berlin", loc)
	}
}
