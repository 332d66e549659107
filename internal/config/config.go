// Package config defines service configuration and loading.
//
// Precedence, low to high: built-in defaults, optional YAML file named
// by VITALIS_CONFIG, environment variables prefixed VITALIS_.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory trigger queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// SQLitePath points at the SQLite database file. Empty selects the
	// in-memory store.
	SQLitePath string `koanf:"sqlite_path"`

	// PipelineVersion tags snapshots; changing it forces a fresh publish
	// for every user on their next evaluation.
	PipelineVersion string `koanf:"pipeline_version"`

	// WearableWindowDays sets how far back wearable samples are fetched.
	WearableWindowDays int `koanf:"wearable_window_days"`

	// PublishCutoffHourUTC keeps the publish gate closed before this hour.
	PublishCutoffHourUTC int `koanf:"publish_cutoff_hour_utc"`

	// ShockThreshold and MaxShockStep bound daily published movement.
	ShockThreshold float64 `koanf:"shock_threshold"`
	MaxShockStep   float64 `koanf:"max_shock_step"`

	// Smoothing factors by confidence tier.
	AlphaHigh   float64 `koanf:"alpha_high"`
	AlphaMedium float64 `koanf:"alpha_medium"`
	AlphaLow    float64 `koanf:"alpha_low"`

	// BucketSizeDays and HysteresisMarginDays shape the displayed
	// days-gained figure.
	BucketSizeDays       int     `koanf:"bucket_size_days"`
	HysteresisMarginDays float64 `koanf:"hysteresis_margin_days"`

	// MinPublishCompleteness is the completeness floor for publication.
	MinPublishCompleteness float64 `koanf:"min_publish_completeness"`

	// VelocityLowerBound and VelocityUpperBound are the hard safety clamp.
	VelocityLowerBound float64 `koanf:"velocity_lower_bound"`
	VelocityUpperBound float64 `koanf:"velocity_upper_bound"`

	// RefreshPerMinute caps synchronous re-evaluations per user.
	RefreshPerMinute int `koanf:"refresh_per_minute"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		QueueSize:              10_000,
		WorkerCount:            runtime.NumCPU(),
		SQLitePath:             "",
		PipelineVersion:        "v1",
		WearableWindowDays:     180,
		PublishCutoffHourUTC:   6,
		ShockThreshold:         0.12,
		MaxShockStep:           0.05,
		AlphaHigh:              0.25,
		AlphaMedium:            0.18,
		AlphaLow:               0.12,
		BucketSizeDays:         5,
		HysteresisMarginDays:   3,
		MinPublishCompleteness: 0.20,
		VelocityLowerBound:     0.75,
		VelocityUpperBound:     1.35,
		RefreshPerMinute:       6,
	}
}
