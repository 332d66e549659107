// Package allostatic computes the allostatic-load score and per-system
// risk trajectories: simple, rule-weighted aggregations over the same
// evidence the rest of the pipeline derives, fully reproducible from a
// stored snapshot.
package allostatic

import (
	"fmt"
	"math"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/velocity"
)

// Rule weights for the load score.
const (
	labBurdenWeight     = 0.5
	fatigueBurdenWeight = 0.3
	domainBurdenWeight  = 0.2

	labBurdenZone    = 70.0 // zone score below this accrues burden
	fatigueBurdenCap = 20.0 // % excess fatigue at which the term saturates

	riskVelocityElevated  = 1.03
	riskVelocityImproving = 0.98
	riskDomainFloor       = 45.0
	riskHorizon           = "90d"
)

// Input carries the evidence the scorer aggregates.
type Input struct {
	Labs     []velocity.LabInput
	Fatigue  []model.FatigueSignal
	Domains  []model.DomainAssessment
	Velocity model.VelocityResult
}

// Scorer computes allostatic load and risk trajectories.
type Scorer struct {
	cat *catalog.Catalog
}

// New creates a Scorer bound to a catalog.
func New(cat *catalog.Catalog) *Scorer {
	return &Scorer{cat: cat}
}

// Load aggregates out-of-zone lab burden, excess fatigue, and weak
// domain scores into a 0-100 strain score, higher is worse.
func (s *Scorer) Load(in Input) model.AllostaticLoad {
	var drivers []string

	labBurden := 0.0
	if len(in.Labs) > 0 {
		var sum float64
		worstKey, worstZone := "", 101.0
		for _, l := range in.Labs {
			deficit := math.Max(0, labBurdenZone-l.ZoneScore)
			sum += deficit / labBurdenZone
			if l.ZoneScore < worstZone {
				worstKey, worstZone = l.BiomarkerKey, l.ZoneScore
			}
		}
		labBurden = math.Min(1, sum/float64(len(in.Labs))*2)
		if worstZone < labBurdenZone {
			drivers = append(drivers, fmt.Sprintf("%s zone score %.0f", worstKey, worstZone))
		}
	}

	fatigueBurden := 0.0
	if len(in.Fatigue) > 0 {
		var sum float64
		for _, f := range in.Fatigue {
			sum += f.ExcessFatigue
		}
		mean := sum / float64(len(in.Fatigue))
		fatigueBurden = math.Min(1, mean/fatigueBurdenCap)
		if mean > 0 {
			drivers = append(drivers, fmt.Sprintf("excess fatigue %.1f%%", mean))
		}
	}

	domainBurden := 0.0
	scored := 0
	for _, d := range in.Domains {
		if d.Score == nil {
			continue
		}
		scored++
		domainBurden += math.Max(0, (labBurdenZone-*d.Score)/labBurdenZone)
		if *d.Score < riskDomainFloor {
			drivers = append(drivers, fmt.Sprintf("%s score %.0f", d.Domain, *d.Score))
		}
	}
	if scored > 0 {
		domainBurden = math.Min(1, domainBurden/float64(scored)*2)
	}

	score := 100 * (labBurdenWeight*labBurden +
		fatigueBurdenWeight*fatigueBurden +
		domainBurdenWeight*domainBurden)
	return model.AllostaticLoad{Score: score, Drivers: drivers}
}

// Risks classifies each body system's trajectory from its velocity and
// the weakest domain evidence attached to it.
func (s *Scorer) Risks(in Input) []model.RiskTrajectory {
	domainScore := make(map[string]*float64, len(in.Domains))
	for _, d := range in.Domains {
		domainScore[d.Domain] = d.Score
	}

	var out []model.RiskTrajectory
	for _, sv := range in.Velocity.PerSystem {
		level := model.RiskStable
		note := ""
		switch {
		case sv.Velocity >= riskVelocityElevated:
			level = model.RiskElevated
			note = fmt.Sprintf("system velocity %.2f above calendar pace", sv.Velocity)
		case sv.Velocity <= riskVelocityImproving:
			level = model.RiskImproving
			note = fmt.Sprintf("system velocity %.2f below calendar pace", sv.Velocity)
		}

		// A weak concordant domain overrides an otherwise stable read.
		if level == model.RiskStable {
			if score, ok := domainScore[sv.System]; ok && score != nil && *score < riskDomainFloor {
				level = model.RiskElevated
				note = fmt.Sprintf("%s domain score %.0f", sv.System, *score)
			}
		}

		out = append(out, model.RiskTrajectory{
			System:  sv.System,
			Level:   level,
			Horizon: riskHorizon,
			Note:    note,
		})
	}
	return out
}
