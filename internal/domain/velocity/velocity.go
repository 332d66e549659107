// Package velocity composes capacity signals, load-conditioned excess
// fatigue, and lab modulation into the aging-velocity ratio, per body
// system and overall. The pipeline is strictly ordered: capacity ->
// fatigue penalty -> lab modulation -> raw combination -> hard
// constraints -> completeness shrinkage -> safety bounds. Everything
// here is pure math with no I/O.
package velocity

import (
	"math"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Model tuning constants.
const (
	neutralVelocity = 1.00

	slopeToDelta     = 0.03 // velocity delta per %/28d of capacity slope
	capacityDeltaCap = 0.20

	fatigueToVelocity  = 0.005 // velocity addition per % of excess fatigue
	fatiguePenaltyCap  = 0.05
	fatigueAdaptFactor = 0.5 // penalty multiplier when 2+ capacity signals improve

	labNeutralScore = 70.0
	labToVelocity   = 0.0015
	labModCap       = 0.08

	// Completeness blend weights.
	completenessCapacityWeight = 0.60
	completenessFatigueWeight  = 0.25
	completenessLabWeight      = 0.15
	fatiguePresenceSaturation  = 2.0
	labCountSaturation         = 10.0

	defaultLowerBound = 0.75
	defaultUpperBound = 1.35

	ciHalfWidthMax = 0.10

	systemFatigueShare = 0.5 // systems share the global fatigue penalty, halved

	insufficientCompleteness = 0.3
)

// Sustained-evidence constraint gates.
const (
	gateVO2MinWindowDays  = 21
	gateVO2MinConfidence  = 0.3
	gateFastMinWindowDays = 14 // HRV and sleep-score gates
)

// LabInput is one lab marker's contribution to velocity modulation.
type LabInput struct {
	BiomarkerKey  string
	ZoneScore     float64
	DaysSinceDraw int
}

// Input carries one evaluation's signals into the model.
type Input struct {
	Capacity []model.CapacitySignal
	Fatigue  []model.FatigueSignal
	Labs     []LabInput
}

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithBounds overrides the final safety clamp.
func WithBounds(lower, upper float64) Option {
	return func(m *Model) {
		if lower > 0 && upper > lower {
			m.lowerBound = lower
			m.upperBound = upper
		}
	}
}

// Model computes velocity results against a catalog.
type Model struct {
	cat        *catalog.Catalog
	lowerBound float64
	upperBound float64
}

// New creates a velocity Model bound to a catalog.
func New(cat *catalog.Catalog, opts ...Option) *Model {
	m := &Model{
		cat:        cat,
		lowerBound: defaultLowerBound,
		upperBound: defaultUpperBound,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Compute runs the full ordered pipeline for the overall velocity and
// each body system. With no qualifying signals at all the result is
// neutral with zero completeness.
func (m *Model) Compute(in Input) model.VelocityResult {
	capacityDelta := m.capacityDelta(in.Capacity, "")
	improving := improvingCount(in.Capacity)
	fatiguePenalty := m.fatiguePenalty(in.Fatigue, improving)
	labMod := m.labModulation(in.Labs)

	raw := neutralVelocity + capacityDelta + fatiguePenalty + labMod

	constrained, reason := m.applyConstraints(raw, in.Capacity)
	completeness := m.completeness(in)
	shrunk := shrinkTowardNeutral(constrained, completeness)
	overall := clamp(shrunk, m.lowerBound, m.upperBound)

	halfWidth := (1 - completeness) * ciHalfWidthMax
	result := model.VelocityResult{
		Overall:          overall,
		RawCombined:      raw,
		CapacityDelta:    capacityDelta,
		FatiguePenalty:   fatiguePenalty,
		LabModulation:    labMod,
		CILow:            clamp(overall-halfWidth, m.lowerBound, m.upperBound),
		CIHigh:           clamp(overall+halfWidth, m.lowerBound, m.upperBound),
		DominantFactor:   dominantFactor(capacityDelta, fatiguePenalty, labMod, completeness),
		Completeness:     completeness,
		Constrained:      reason != "",
		ConstraintReason: reason,
		ShrinkageAmount:  math.Abs(constrained - shrunk),
	}

	for _, system := range m.cat.Systems() {
		result.PerSystem = append(result.PerSystem, m.computeSystem(system, in, fatiguePenalty, completeness))
	}
	return result
}

// computeSystem repeats the composition with the system's own capacity
// and lab subsets, sharing the halved global fatigue penalty.
func (m *Model) computeSystem(system string, in Input, globalFatiguePenalty, completeness float64) model.SystemVelocity {
	var capacity []model.CapacitySignal
	for _, c := range in.Capacity {
		if m.cat.MetricInSystem(c.MetricType, system) {
			capacity = append(capacity, c)
		}
	}
	var labs []LabInput
	for _, l := range in.Labs {
		if m.cat.BiomarkerInSystem(l.BiomarkerKey, system) {
			labs = append(labs, l)
		}
	}

	capacityDelta := m.capacityDelta(capacity, system)
	fatiguePenalty := globalFatiguePenalty * systemFatigueShare
	labMod := m.labModulation(labs)

	raw := neutralVelocity + capacityDelta + fatiguePenalty + labMod
	constrained, reason := m.applyConstraints(raw, capacity)
	shrunk := shrinkTowardNeutral(constrained, completeness)
	v := clamp(shrunk, m.lowerBound, m.upperBound)

	return model.SystemVelocity{
		System:          system,
		Velocity:        v,
		CapacityDelta:   capacityDelta,
		FatiguePenalty:  fatiguePenalty,
		LabModulation:   labMod,
		Constrained:     reason != "",
		SignalCount:     len(capacity),
		LabMarkerCount:  len(labs),
		ShrinkageAmount: math.Abs(constrained - shrunk),
	}
}

// capacityDelta maps each signal's slope to a velocity delta and
// combines them weighted by metric importance x signal confidence.
// Neutral (zero delta) when no signals qualify.
func (m *Model) capacityDelta(capacity []model.CapacitySignal, _ string) float64 {
	var weightedSum, weightSum float64
	for _, c := range capacity {
		if c.Confidence <= 0 {
			continue
		}
		ref, ok := m.cat.Metric(c.MetricType)
		if !ok {
			continue
		}
		delta := clamp(-c.SlopePer28d*slopeToDelta, -capacityDeltaCap, capacityDeltaCap)
		w := ref.Importance * c.Confidence
		weightedSum += delta * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// fatiguePenalty converts mean excess fatigue to a velocity addition,
// reduced when the athlete is structurally adapting.
func (m *Model) fatiguePenalty(fatigue []model.FatigueSignal, improvingCapacity int) float64 {
	if len(fatigue) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fatigue {
		sum += f.ExcessFatigue
	}
	penalty := math.Min(sum/float64(len(fatigue))*fatigueToVelocity, fatiguePenaltyCap)
	if improvingCapacity >= 2 {
		// A fatigued-but-adapting athlete is not penalized as heavily
		// as a fatigued-and-declining one.
		penalty *= fatigueAdaptFactor
	}
	return penalty
}

// labModulation maps the mean zone score to a velocity delta around the
// neutral score of 70, then decays the capped result by the recency of
// the newest draw. Decay must act on the modulation itself: markers from
// one panel share a draw date, so weighting the average would cancel out
// and a stale panel would modulate at full strength.
func (m *Model) labModulation(labs []LabInput) float64 {
	if len(labs) == 0 {
		return 0
	}
	var sum float64
	newest := labs[0].DaysSinceDraw
	for _, l := range labs {
		sum += l.ZoneScore
		if l.DaysSinceDraw < newest {
			newest = l.DaysSinceDraw
		}
	}
	avg := sum / float64(len(labs))
	mod := clamp((labNeutralScore-avg)*labToVelocity, -labModCap, labModCap)
	return mod * catalog.RecencyWeight(newest)
}

// applyConstraints caps velocity at neutral when sustained structural
// improvement is in evidence: structural improvement must never coexist
// with a reported net-negative outcome.
func (m *Model) applyConstraints(raw float64, capacity []model.CapacitySignal) (float64, string) {
	if raw <= neutralVelocity {
		return raw, ""
	}
	if reason := sustainedImprovementGate(capacity); reason != "" {
		return neutralVelocity, reason
	}
	return raw, ""
}

// sustainedImprovementGate returns the name of the first firing gate.
func sustainedImprovementGate(capacity []model.CapacitySignal) string {
	byMetric := make(map[string]model.CapacitySignal, len(capacity))
	for _, c := range capacity {
		byMetric[c.MetricType] = c
	}

	if c, ok := byMetric["vo2max"]; ok &&
		c.Direction == model.TrendImproving &&
		c.WindowDays >= gateVO2MinWindowDays &&
		c.Confidence >= gateVO2MinConfidence {
		return "vo2max_improving"
	}

	if fat, ok := byMetric["body_fat_pct"]; ok && fat.Direction == model.TrendImproving {
		// body_fat_pct is polarity corrected, so improving means falling.
		lean, hasLean := byMetric["lean_mass"]
		if !hasLean || lean.Direction != model.TrendDeclining {
			return "body_composition_improving"
		}
	}

	if c, ok := byMetric["hrv"]; ok &&
		c.Direction == model.TrendImproving &&
		c.WindowDays >= gateFastMinWindowDays {
		return "hrv_improving"
	}

	if c, ok := byMetric["sleep_score"]; ok &&
		c.Direction == model.TrendImproving &&
		c.WindowDays >= gateFastMinWindowDays {
		return "sleep_improving"
	}

	return ""
}

// completeness blends capacity confidence coverage, fatigue presence,
// and the lab marker count into the shrinkage weight. Coverage is
// normalized against the catalog's full metric importance, not just the
// signals present, so a lone confident metric cannot pass for full
// coverage.
func (m *Model) completeness(in Input) float64 {
	var confSum float64
	for _, c := range in.Capacity {
		ref, ok := m.cat.Metric(c.MetricType)
		if !ok {
			continue
		}
		confSum += c.Confidence * ref.Importance
	}
	var importanceSum float64
	for _, mt := range m.cat.MetricTypes() {
		if ref, ok := m.cat.Metric(mt); ok {
			importanceSum += ref.Importance
		}
	}
	capacityCoverage := 0.0
	if importanceSum > 0 {
		capacityCoverage = confSum / importanceSum
	}

	fatiguePresence := math.Min(1, float64(len(in.Fatigue))/fatiguePresenceSaturation)
	labBonus := math.Min(1, float64(len(in.Labs))/labCountSaturation)

	return completenessCapacityWeight*capacityCoverage +
		completenessFatigueWeight*fatiguePresence +
		completenessLabWeight*labBonus
}

// ShrinkTowardNeutral pulls a velocity toward 1.00 in proportion to data
// scarcity; sparse data must never produce a confident extreme number.
func ShrinkTowardNeutral(v, completeness float64) float64 {
	return shrinkTowardNeutral(v, completeness)
}

func shrinkTowardNeutral(v, completeness float64) float64 {
	c := clamp(completeness, 0, 1)
	return neutralVelocity + (v-neutralVelocity)*c
}

// dominantFactor names the largest contributor for explainability.
func dominantFactor(capacityDelta, fatiguePenalty, labMod, completeness float64) string {
	if completeness < insufficientCompleteness {
		return "insufficient_data"
	}
	capMag := math.Abs(capacityDelta)
	labMag := math.Abs(labMod)
	switch {
	case capMag >= fatiguePenalty && capMag >= labMag:
		return "capacity"
	case fatiguePenalty >= labMag:
		return "fatigue"
	default:
		return "labs"
	}
}

func improvingCount(capacity []model.CapacitySignal) int {
	n := 0
	for _, c := range capacity {
		if c.Direction == model.TrendImproving {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
