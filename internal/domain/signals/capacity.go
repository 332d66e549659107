package signals

import (
	"math"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Capacity fits an ordinary-least-squares regression of value against
// day-index over the full available window and normalizes the slope to
// "% change per 28 days", polarity corrected so positive always means
// improving. Returns nil when the series cannot support a regression.
func (e *Extractor) Capacity(s model.MetricSeries) *model.CapacitySignal {
	ref, ok := e.cat.Metric(s.MetricType)
	if !ok || len(s.Points) < 2 {
		return nil
	}

	windowDays := s.Span()
	if windowDays < ref.MinWindowDays {
		return nil
	}

	slope, mean, r2, ok := olsSlope(s)
	if !ok || mean == 0 {
		return nil
	}

	pctPer28 := slope * slopeWindowDays / math.Abs(mean) * 100
	if ref.Polarity == catalog.LowerBetter {
		pctPer28 = -pctPer28
	}

	// Confidence: fit quality x point density x window sufficiency.
	r2Term := math.Min(1, r2/e.r2Saturation)
	density := math.Min(1, float64(len(s.Points))/float64(windowDays))
	windowTerm := math.Min(1, float64(windowDays)/float64(ref.PreferredWindowDays))
	confidence := r2Term * density * windowTerm

	direction := model.TrendStable
	if math.Abs(pctPer28) > e.deadbandPct28 && confidence >= e.confidenceFloor {
		if pctPer28 > 0 {
			direction = model.TrendImproving
		} else {
			direction = model.TrendDeclining
		}
	}

	return &model.CapacitySignal{
		MetricType:  s.MetricType,
		SlopePer28d: pctPer28,
		Direction:   direction,
		Confidence:  confidence,
		WindowDays:  windowDays,
		Points:      len(s.Points),
	}
}

// olsSlope returns the per-day OLS slope, the value mean, and r-squared.
func olsSlope(s model.MetricSeries) (slope, mean, r2 float64, ok bool) {
	n := float64(len(s.Points))
	if n < 2 {
		return 0, 0, 0, false
	}

	first := s.Points[0].Date
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range s.Points {
		x := p.Date.Sub(first).Hours() / 24
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	mean = sumY / n

	var ssTot, ssRes float64
	for _, p := range s.Points {
		x := p.Date.Sub(first).Hours() / 24
		fit := intercept + slope*x
		ssTot += (p.Value - mean) * (p.Value - mean)
		ssRes += (p.Value - fit) * (p.Value - fit)
	}
	if ssTot == 0 {
		// Perfectly flat series: slope 0 with a perfect fit.
		return slope, mean, 1, true
	}
	r2 = 1 - ssRes/ssTot
	return slope, mean, r2, true
}
