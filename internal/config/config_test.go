package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.NATSSubject != "requests.identify" {
		t.Errorf("NATSSubject = %q, want requests.identify", cfg.NATSSubject)
	}
	if cfg.TagRankSize != 5 {
		t.Errorf("TagRankSize = %d, want 5", cfg.TagRankSize)
	}
	if cfg.CropMargin != 0.1 {
		t.Errorf("CropMargin = %v, want 0.1", cfg.CropMargin)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("RTDB_URL", "https://pilltong.example.firebaseio.com")
	t.Setenv("MAX_IMAGE_WORKERS", "8")
	t.Setenv("VISION_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RTDBURL != "https://pilltong.example.firebaseio.com" {
		t.Errorf("RTDBURL = %q", cfg.RTDBURL)
	}
	if cfg.MaxImageWorkers != 8 {
		t.Errorf("MaxImageWorkers = %d, want 8", cfg.MaxImageWorkers)
	}
	if cfg.VisionRPS != 2.5 {
		t.Errorf("VisionRPS = %v, want 2.5", cfg.VisionRPS)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "log_level: debug\ntag_rank_size: 3\nnats_url: nats://file:4222\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NATS_URL", "nats://env:4222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from file", cfg.LogLevel)
	}
	if cfg.TagRankSize != 3 {
		t.Errorf("TagRankSize = %d, want 3 from file", cfg.TagRankSize)
	}
	if cfg.NATSURL != "nats://env:4222" {
		t.Errorf("NATSURL = %q, env must win over file", cfg.NATSURL)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadIgnoresMalformedNumericEnv(t *testing.T) {
	t.Setenv("TAG_RANK_SIZE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TagRankSize != 5 {
		t.Errorf("TagRankSize = %d, want default 5", cfg.TagRankSize)
	}
}
