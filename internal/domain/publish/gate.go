// Package publish implements the once-daily decision of whether to
// replace the user-visible velocity, with exponential smoothing, shock
// capping, and display-bucket hysteresis. Decide is pure; the caller
// owns persistence of the resulting state and the audit logging of
// guardrail events.
package publish

import (
	"math"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Default gate tuning constants.
const (
	defaultCutoffHourUTC    = 6
	defaultShockThreshold   = 0.12
	defaultMaxShockStep     = 0.05
	defaultAlphaHigh        = 0.25
	defaultAlphaMedium      = 0.18
	defaultAlphaLow         = 0.12
	defaultHighCompleteness = 0.5
	defaultMinCompleteness  = 0.20
	defaultBucketSizeDays   = 5
	defaultHysteresisDays   = 3.0

	daysPerYear = 365
)

// Carry-forward reasons.
const (
	ReasonBeforeCutoff     = "before_cutoff"
	ReasonAlreadyPublished = "already_published_today"
	ReasonNilVelocity      = "nil_raw_velocity"
	ReasonLowCompleteness  = "completeness_below_minimum"
	ReasonPublished        = "published"
	ReasonVersionReset     = "pipeline_version_reset"
)

// RawInput is the current evaluation's candidate for publication.
type RawInput struct {
	Velocity        *float64 // nil when the run produced no velocity
	Completeness    float64
	Confidence      model.ConfidenceTier
	PipelineVersion string
	EvaluatedAt     time.Time
}

// Decision is the gate's verdict for one run. When Publish is false the
// previous state is carried forward verbatim and State echoes it.
type Decision struct {
	Publish        bool
	Reason         string
	State          model.PublishedVelocityState
	WasShockCapped bool
	VersionReset   bool
	ExactDays      float64 // pre-quantization days gained, for diagnostics
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithCutoffHour sets the UTC hour before which the gate stays closed.
func WithCutoffHour(hour int) Option {
	return func(g *Gate) {
		if hour >= 0 && hour < 24 {
			g.cutoffHourUTC = hour
		}
	}
}

// WithShock sets the shock threshold and the capped daily step.
func WithShock(threshold, maxStep float64) Option {
	return func(g *Gate) {
		if threshold > 0 && maxStep > 0 {
			g.shockThreshold = threshold
			g.maxShockStep = maxStep
		}
	}
}

// WithAlphas sets the smoothing factors by confidence tier.
func WithAlphas(high, medium, low float64) Option {
	return func(g *Gate) {
		if high > 0 && medium > 0 && low > 0 {
			g.alphaHigh, g.alphaMedium, g.alphaLow = high, medium, low
		}
	}
}

// WithBucket sets the display bucket size and hysteresis margin in days.
func WithBucket(sizeDays int, hysteresisDays float64) Option {
	return func(g *Gate) {
		if sizeDays > 0 {
			g.bucketSizeDays = sizeDays
		}
		if hysteresisDays >= 0 {
			g.hysteresisDays = hysteresisDays
		}
	}
}

// WithMinCompleteness sets the completeness floor for publication.
func WithMinCompleteness(min float64) Option {
	return func(g *Gate) {
		if min >= 0 && min <= 1 {
			g.minCompleteness = min
		}
	}
}

// Gate holds the publish policy. It is stateless; per-user state lives
// in the PublishedVelocityState row passed to Decide.
type Gate struct {
	cutoffHourUTC    int
	shockThreshold   float64
	maxShockStep     float64
	alphaHigh        float64
	alphaMedium      float64
	alphaLow         float64
	highCompleteness float64
	minCompleteness  float64
	bucketSizeDays   int
	hysteresisDays   float64
}

// New creates a Gate with default policy.
func New(opts ...Option) *Gate {
	g := &Gate{
		cutoffHourUTC:    defaultCutoffHourUTC,
		shockThreshold:   defaultShockThreshold,
		maxShockStep:     defaultMaxShockStep,
		alphaHigh:        defaultAlphaHigh,
		alphaMedium:      defaultAlphaMedium,
		alphaLow:         defaultAlphaLow,
		highCompleteness: defaultHighCompleteness,
		minCompleteness:  defaultMinCompleteness,
		bucketSizeDays:   defaultBucketSizeDays,
		hysteresisDays:   defaultHysteresisDays,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decide evaluates the gate for one user. prev is nil when the user has
// never been published. Decide never errors: an input that cannot be
// published is a guarded carry-forward, not a failure.
func (g *Gate) Decide(now time.Time, prev *model.PublishedVelocityState, in RawInput) Decision {
	now = now.UTC()

	versionReset := prev != nil && in.PipelineVersion != "" && prev.PipelineVersion != in.PipelineVersion

	if !versionReset {
		if now.Hour() < g.cutoffHourUTC {
			return carryForward(prev, ReasonBeforeCutoff)
		}
		if prev != nil && sameUTCDay(prev.PublishedAt, now) {
			return carryForward(prev, ReasonAlreadyPublished)
		}
	}

	// Publication prerequisites hold even on a forced version reset.
	if in.Velocity == nil {
		return carryForward(prev, ReasonNilVelocity)
	}
	if in.Completeness < g.minCompleteness {
		return carryForward(prev, ReasonLowCompleteness)
	}

	raw := *in.Velocity
	var (
		stable      float64
		shockCapped bool
	)
	if prev == nil || versionReset {
		// First publish, or a new model must not be anchored by the old
		// smoothed state.
		stable = raw
	} else {
		delta := raw - prev.Velocity
		if math.Abs(delta) > g.shockThreshold {
			stable = prev.Velocity + math.Copysign(g.maxShockStep, delta)
			shockCapped = true
		} else {
			alpha := g.alpha(in.Confidence, in.Completeness)
			stable = (1-alpha)*prev.Velocity + alpha*raw
		}
	}

	exactDays := (1 - stable) * daysPerYear
	bucket := g.quantize(exactDays, prev, versionReset)

	reason := ReasonPublished
	if versionReset {
		reason = ReasonVersionReset
	}
	next := model.PublishedVelocityState{
		Velocity:         stable,
		DaysGainedBucket: bucket,
		PublishedAt:      now,
		PipelineVersion:  in.PipelineVersion,
	}
	if prev != nil {
		next.UserID = prev.UserID
		next.Version = prev.Version
	}
	return Decision{
		Publish:        true,
		Reason:         reason,
		State:          next,
		WasShockCapped: shockCapped,
		VersionReset:   versionReset,
		ExactDays:      exactDays,
	}
}

// alpha selects the smoothing factor from confidence and completeness.
func (g *Gate) alpha(confidence model.ConfidenceTier, completeness float64) float64 {
	switch confidence {
	case model.ConfidenceHigh:
		if completeness >= g.highCompleteness {
			return g.alphaHigh
		}
		return g.alphaMedium
	case model.ConfidenceMedium:
		return g.alphaMedium
	default:
		return g.alphaLow
	}
}

// quantize rounds the exact days-gained figure to the nearest bucket,
// holding the previous bucket unless the exact figure has drifted at
// least bucketSize/2 + hysteresis away from it.
func (g *Gate) quantize(exactDays float64, prev *model.PublishedVelocityState, versionReset bool) int {
	size := float64(g.bucketSizeDays)
	candidate := int(math.Round(exactDays/size)) * g.bucketSizeDays

	if prev == nil || versionReset {
		return candidate
	}
	threshold := size/2 + g.hysteresisDays
	if math.Abs(exactDays-float64(prev.DaysGainedBucket)) < threshold {
		return prev.DaysGainedBucket
	}
	return candidate
}

// carryForward echoes the previous state unchanged.
func carryForward(prev *model.PublishedVelocityState, reason string) Decision {
	d := Decision{Publish: false, Reason: reason}
	if prev != nil {
		d.State = *prev
	}
	return d
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
