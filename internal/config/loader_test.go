package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Addr != ":9080" {
		t.Errorf("expected default addr :9080, got %s", cfg.Addr)
	}
	if cfg.QueueSize != 10_000 {
		t.Errorf("expected default queue size 10000, got %d", cfg.QueueSize)
	}
	if cfg.PipelineVersion != "v1" {
		t.Errorf("expected default pipeline version v1, got %s", cfg.PipelineVersion)
	}
	if cfg.PublishCutoffHourUTC != 6 {
		t.Errorf("expected default cutoff hour 6, got %d", cfg.PublishCutoffHourUTC)
	}
	if cfg.AlphaHigh != 0.25 || cfg.AlphaMedium != 0.18 || cfg.AlphaLow != 0.12 {
		t.Errorf("unexpected default alphas: %v %v %v", cfg.AlphaHigh, cfg.AlphaMedium, cfg.AlphaLow)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VITALIS_ADDR", ":7070")
	t.Setenv("VITALIS_WORKER_COUNT", "2")
	t.Setenv("VITALIS_SHOCK_THRESHOLD", "0.2")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("expected env addr :7070, got %s", cfg.Addr)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected env worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.ShockThreshold != 0.2 {
		t.Errorf("expected env shock threshold 0.2, got %v", cfg.ShockThreshold)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "addr: \":8088\"\nbucket_size_days: 7\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VITALIS_CONFIG", path)
	t.Setenv("VITALIS_ADDR", ":9999")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.BucketSizeDays != 7 {
		t.Errorf("expected file bucket size 7, got %d", cfg.BucketSizeDays)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected env to win over file, got %s", cfg.Addr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"VITALIS_QUEUE_SIZE":               "0",
		"VITALIS_PUBLISH_CUTOFF_HOUR_UTC":  "24",
		"VITALIS_ALPHA_HIGH":               "1.5",
		"VITALIS_MIN_PUBLISH_COMPLETENESS": "2",
		"VITALIS_VELOCITY_LOWER_BOUND":     "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(context.Background()); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("VITALIS_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(context.Background()); !errors.Is(err, ErrLoadConfig) {
		t.Errorf("expected ErrLoadConfig, got %v", err)
	}
}
