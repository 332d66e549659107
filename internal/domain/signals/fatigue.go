package signals

import (
	"math"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/series"
)

// Fatigue computes the short-term deviation for one fatigue-eligible
// metric: 3-day mean minus 14-day mean as a percentage of the 14-day
// mean, polarity corrected so negative always means more fatigued. The
// expected deviation is derived from the current training-load ratio and
// discounted by a resilience factor when capacity signals are
// independently improving; only fatigue beyond that expectation counts
// as excess. Returns nil when the metric is ineligible or short on data.
func (e *Extractor) Fatigue(s model.MetricSeries, avgLoadRatio float64, improvingCapacity int) *model.FatigueSignal {
	ref, ok := e.cat.Metric(s.MetricType)
	if !ok || !ref.FatigueMetric {
		return nil
	}

	short, okShort := series.Mean(series.Window(s, e.fatigueShortDays))
	medium, okMed := series.Mean(series.Window(s, e.fatigueMedDays))
	if !okShort || !okMed || medium == 0 {
		return nil
	}
	if len(series.Window(s, e.fatigueMedDays)) < e.fatigueMedDays/2 {
		return nil
	}

	deviationPct := (short - medium) / math.Abs(medium) * 100
	if ref.Polarity == catalog.LowerBetter {
		deviationPct = -deviationPct
	}

	expected := e.expectedDeviation(avgLoadRatio, improvingCapacity)
	excess := math.Max(0, expected-deviationPct)

	return &model.FatigueSignal{
		MetricType:        s.MetricType,
		DeviationPct:      deviationPct,
		ExpectedDeviation: expected,
		ExcessFatigue:     excess,
	}
}

// expectedDeviation maps excess training load to an expected (negative)
// fatigue percentage, discounted by the resilience step factor.
func (e *Extractor) expectedDeviation(avgLoadRatio float64, improvingCapacity int) float64 {
	excessLoad := math.Max(0, avgLoadRatio-1)
	factor := resilienceNone
	switch {
	case improvingCapacity >= 2:
		factor = resilienceTwoImproving
	case improvingCapacity == 1:
		factor = resilienceOneImproving
	}
	return -excessLoad * e.fatiguePerLoad * factor
}
