// Package signals extracts the three wearable signal families from
// unified daily series: slow capacity trends, training-load ratios, and
// load-conditioned short-term fatigue deviations. All extraction is pure
// and fully recomputed on every evaluation.
package signals

import "github.com/vitalislabs/vitalis/internal/domain/catalog"

// Default extraction tuning constants.
const (
	slopeWindowDays = 28 // capacity slopes are expressed as % per 28 days

	defaultDeadbandPct28    = 0.5 // |slope| below this is stable
	defaultConfidenceFloor  = 0.2 // below this the classification is stable
	defaultR2Saturation     = 0.5 // r-squared at which the r2 term reaches 1.0
	defaultLoadRecentDays   = 7
	defaultLoadBaselineDays = 28 // preceding window: days 8..28
	defaultFatigueShortDays = 3
	defaultFatigueMedDays   = 14
	defaultFatiguePerLoad   = 10.0 // expected % suppression per unit of excess load ratio
)

// Resilience step factors: fatigue expected under load is discounted when
// capacity signals are independently improving. The step thresholds are
// deliberate product behavior; keep them unless that changes.
const (
	resilienceTwoImproving = 0.3
	resilienceOneImproving = 0.6
	resilienceNone         = 1.0
)

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithDeadband sets the stable classification deadband in %/28d.
func WithDeadband(pct float64) Option {
	return func(e *Extractor) {
		if pct > 0 {
			e.deadbandPct28 = pct
		}
	}
}

// WithConfidenceFloor sets the minimum confidence for a non-stable
// capacity classification.
func WithConfidenceFloor(floor float64) Option {
	return func(e *Extractor) {
		if floor > 0 {
			e.confidenceFloor = floor
		}
	}
}

// WithFatiguePerLoad sets the expected fatigue percentage per unit of
// excess load ratio.
func WithFatiguePerLoad(pct float64) Option {
	return func(e *Extractor) {
		if pct > 0 {
			e.fatiguePerLoad = pct
		}
	}
}

// Extractor computes capacity, load, and fatigue signals against the
// metric definitions in its catalog.
type Extractor struct {
	cat *catalog.Catalog

	deadbandPct28    float64
	confidenceFloor  float64
	r2Saturation     float64
	loadRecentDays   int
	loadBaselineDays int
	fatigueShortDays int
	fatigueMedDays   int
	fatiguePerLoad   float64
}

// New creates an Extractor bound to a catalog.
func New(cat *catalog.Catalog, opts ...Option) *Extractor {
	e := &Extractor{
		cat:              cat,
		deadbandPct28:    defaultDeadbandPct28,
		confidenceFloor:  defaultConfidenceFloor,
		r2Saturation:     defaultR2Saturation,
		loadRecentDays:   defaultLoadRecentDays,
		loadBaselineDays: defaultLoadBaselineDays,
		fatigueShortDays: defaultFatigueShortDays,
		fatigueMedDays:   defaultFatigueMedDays,
		fatiguePerLoad:   defaultFatiguePerLoad,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
