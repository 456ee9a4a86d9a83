package config

import (
	"testing"
	"time"
)

func TestLoadEnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml", true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Sync.BatchSize != 200 {
		t.Fatalf("batch size = %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.DivergenceScanEvery != 12 {
		t.Fatalf("divergence scan every = %d", cfg.Sync.DivergenceScanEvery)
	}
	if cfg.Source.ConnectTimeout != 30*time.Second {
		t.Fatalf("connect timeout = %v", cfg.Source.ConnectTimeout)
	}
	if cfg.Health.AlertWindow != time.Hour {
		t.Fatalf("alert window = %v", cfg.Health.AlertWindow)
	}
	if cfg.Cron.SyncScan != "@every 1m" {
		t.Fatalf("sync scan spec = %q", cfg.Cron.SyncScan)
	}
	if !cfg.Cron.Enabled || !cfg.Health.Enabled {
		t.Fatalf("cron/health should default enabled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BW_SYNC_BATCH_SIZE", "500")
	t.Setenv("BW_LOG_LEVEL", "debug")
	t.Setenv("BW_CRON_ENABLED", "false")

	cfg, err := Load("does-not-exist.yaml", true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.BatchSize != 500 {
		t.Fatalf("batch size = %d, want 500", cfg.Sync.BatchSize)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Cron.Enabled {
		t.Fatalf("cron enabled should be overridden to false")
	}
}
