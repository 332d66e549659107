package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VITALIS_CONFIG is set
//  3. env (prefix VITALIS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("VITALIS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: VITALIS_ADDR, VITALIS_QUEUE_SIZE, ...
	// Map env keys like VITALIS_QUEUE_SIZE -> queue_size (flat keys),
	// preserving underscores to match the koanf tags on the struct.
	envProvider := env.Provider("VITALIS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "vitalis_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case cfg.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case cfg.PublishCutoffHourUTC < 0 || cfg.PublishCutoffHourUTC > 23:
		return fmt.Errorf("%w: publish_cutoff_hour_utc must be 0-23", ErrInvalidConfig)
	case cfg.ShockThreshold <= 0 || cfg.MaxShockStep <= 0:
		return fmt.Errorf("%w: shock threshold and step must be positive", ErrInvalidConfig)
	case cfg.AlphaHigh <= 0 || cfg.AlphaHigh > 1 ||
		cfg.AlphaMedium <= 0 || cfg.AlphaMedium > 1 ||
		cfg.AlphaLow <= 0 || cfg.AlphaLow > 1:
		return fmt.Errorf("%w: smoothing alphas must be in (0, 1]", ErrInvalidConfig)
	case cfg.BucketSizeDays < 1:
		return fmt.Errorf("%w: bucket_size_days must be positive", ErrInvalidConfig)
	case cfg.HysteresisMarginDays < 0:
		return fmt.Errorf("%w: hysteresis_margin_days must not be negative", ErrInvalidConfig)
	case cfg.MinPublishCompleteness < 0 || cfg.MinPublishCompleteness > 1:
		return fmt.Errorf("%w: min_publish_completeness must be in [0, 1]", ErrInvalidConfig)
	case cfg.VelocityLowerBound <= 0 || cfg.VelocityUpperBound <= cfg.VelocityLowerBound:
		return fmt.Errorf("%w: velocity bounds must satisfy 0 < lower < upper", ErrInvalidConfig)
	case cfg.RefreshPerMinute < 1:
		return fmt.Errorf("%w: refresh_per_minute must be positive", ErrInvalidConfig)
	}
	return nil
}
