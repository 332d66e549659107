// Package baseline implements the personal baseline estimator: a
// conjugate normal-normal Bayesian posterior per (user, biomarker),
// updated on every new lab draw. The estimator is pure; persistence of
// the resulting PersonalBaseline records is the caller's concern.
package baseline

import (
	"math"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Default estimator tuning constants.
const (
	defaultOutlierSDs       = 3.0  // flag observations beyond this many SDs
	defaultTrendDeadbandPct = 5.0  // posterior-mean change below this is "stable"
	defaultObsSDFraction    = 0.10 // fallback obs SD as fraction of ref range width
	minOutlierDraws         = 2    // draws required before outlier flagging
	trendConfidenceDraws    = 5.0  // draws at which trend confidence saturates
	varianceFloor           = 1e-9
)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithOutlierSDs sets the outlier flagging threshold in standard deviations.
func WithOutlierSDs(sds float64) Option {
	return func(e *Estimator) {
		if sds > 0 {
			e.outlierSDs = sds
		}
	}
}

// WithTrendDeadband sets the percent change below which trend is stable.
func WithTrendDeadband(pct float64) Option {
	return func(e *Estimator) {
		if pct > 0 {
			e.trendDeadbandPct = pct
		}
	}
}

// UpdateInfo carries diagnostics about a single posterior update.
type UpdateInfo struct {
	Outlier       bool    // beyond outlierSDs of the prior personal mean
	PriorMean     float64 // posterior mean before this update
	PosteriorMean float64
	MeanChangePct float64 // percent change of the posterior mean
	BecamePrimary bool    // crossed the primary draw-count threshold
}

// Estimator performs conjugate normal-normal updates.
type Estimator struct {
	outlierSDs       float64
	trendDeadbandPct float64
	obsSDFraction    float64
}

// New creates an Estimator with default tuning.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		outlierSDs:       defaultOutlierSDs,
		trendDeadbandPct: defaultTrendDeadbandPct,
		obsSDFraction:    defaultObsSDFraction,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update combines the prior posterior (or a population-seeded prior when
// none exists) with one new reading and returns the superseding baseline.
// Outliers are flagged but always incorporated.
func (e *Estimator) Update(ref catalog.BiomarkerRef, prior *model.PersonalBaseline, reading model.BiomarkerReading) (model.PersonalBaseline, UpdateInfo) {
	var priorMean, priorSD float64
	drawCount := 0
	if prior != nil && prior.DrawCount > 0 {
		priorMean = prior.PersonalMean
		priorSD = prior.PersonalSD
		drawCount = prior.DrawCount
	} else {
		// Seed from the population reference: midpoint, quarter width.
		priorMean = (ref.RefLow + ref.RefHigh) / 2
		priorSD = (ref.RefHigh - ref.RefLow) / 4
	}

	obsSD := e.observationSD(ref, reading.Value)

	priorVar := math.Max(priorSD*priorSD, varianceFloor)
	obsVar := math.Max(obsSD*obsSD, varianceFloor)

	postVar := 1 / (1/priorVar + 1/obsVar)
	postMean := postVar * (priorMean/priorVar + reading.Value/obsVar)

	info := UpdateInfo{
		PriorMean:     priorMean,
		PosteriorMean: postMean,
	}
	if prior != nil && prior.DrawCount >= minOutlierDraws && prior.PersonalSD > 0 {
		if math.Abs(reading.Value-prior.PersonalMean) > e.outlierSDs*prior.PersonalSD {
			info.Outlier = true
		}
	}

	if priorMean != 0 {
		info.MeanChangePct = (postMean - priorMean) / math.Abs(priorMean) * 100
	}

	next := model.PersonalBaseline{
		BiomarkerKey:    ref.Key,
		PersonalMean:    postMean,
		PersonalSD:      math.Sqrt(postVar),
		DrawCount:       drawCount + 1,
		Trend:           e.classifyTrend(ref, priorMean, postMean, drawCount),
		TrendConfidence: math.Min(1, float64(drawCount+1)/trendConfidenceDraws),
		LastValue:       reading.Value,
		LastDate:        reading.TestDate,
	}
	info.BecamePrimary = drawCount+1 == model.PrimaryDrawCount
	return next, info
}

// observationSD derives the measurement spread for one reading from the
// marker's within-subject biological variation, falling back to a fixed
// fraction of the reference range width.
func (e *Estimator) observationSD(ref catalog.BiomarkerRef, value float64) float64 {
	if ref.WithinSubjectCV > 0 {
		sd := ref.WithinSubjectCV * math.Abs(value)
		if sd > 0 {
			return sd
		}
	}
	return e.obsSDFraction * (ref.RefHigh - ref.RefLow)
}

// classifyTrend resolves the posterior-mean movement against the marker's
// polarity. Movement within the deadband, or any movement on the very
// first draw, is stable.
func (e *Estimator) classifyTrend(ref catalog.BiomarkerRef, priorMean, postMean float64, priorDraws int) model.TrendDirection {
	if priorDraws == 0 || priorMean == 0 {
		return model.TrendStable
	}
	changePct := (postMean - priorMean) / math.Abs(priorMean) * 100
	if math.Abs(changePct) <= e.trendDeadbandPct {
		return model.TrendStable
	}

	switch ref.Polarity {
	case catalog.HigherBetter:
		if changePct > 0 {
			return model.TrendImproving
		}
		return model.TrendDeclining
	case catalog.LowerBetter:
		if changePct < 0 {
			return model.TrendImproving
		}
		return model.TrendDeclining
	default: // mid-optimal: moving toward the optimal center is improving
		center := (ref.OptimalLow + ref.OptimalHigh) / 2
		if center == 0 {
			center = (ref.RefLow + ref.RefHigh) / 2
		}
		if math.Abs(postMean-center) < math.Abs(priorMean-center) {
			return model.TrendImproving
		}
		return model.TrendDeclining
	}
}
