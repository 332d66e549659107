// Package fusion blends wearable and lab evidence into one assessment
// per physiological domain, and derives the overall system confidence
// score. Both outputs are deterministic functions of the run's inputs
// and are reproducible from a stored snapshot alone.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Fusion tuning constants.
const (
	scoreMidpoint       = 50.0
	deviationClamp      = 50.0 // wearable percent deviations clamp to +/- this
	discordanceGap      = 15.0 // |wearable - lab| beyond this is discordant
	completenessPanel   = 30.0 // marker count at which lab completeness saturates
	completenessFloor   = 0.3
	highTierMetrics     = 3 // wearable metrics needed for a high tier
	highTierMaxStaleHrs = 48.0
	topSignalLimit      = 3
)

// MetricEvidence is one wearable metric's current state for fusion: the
// latest authoritative value against its own recent baseline mean.
type MetricEvidence struct {
	MetricType   string
	Latest       float64
	BaselineMean float64 // e.g. trailing 28-day mean
	LastDate     time.Time
}

// LabEvidence is one lab marker's current state for fusion.
type LabEvidence struct {
	BiomarkerKey    string
	Value           float64
	ZoneScore       float64 // 0-100 from the catalog zone scoring
	TestDate        time.Time
	BaselinePrimary bool // personal baseline trusted over population ref
}

// Input is everything one domain assessment needs.
type Input struct {
	Domain   string
	Wearable []MetricEvidence
	Labs     []LabEvidence
	// Capacity directions for the domain's metrics, used for the trend.
	Capacity []model.CapacitySignal
	Now      time.Time
}

// Option applies a configuration option to the Fuser.
type Option func(*Fuser)

// WithDiscordanceGap overrides the wearable/lab disagreement threshold.
func WithDiscordanceGap(gap float64) Option {
	return func(f *Fuser) {
		if gap > 0 {
			f.discordanceGap = gap
		}
	}
}

// Fuser computes domain assessments against a catalog.
type Fuser struct {
	cat            *catalog.Catalog
	discordanceGap float64
}

// New creates a Fuser bound to a catalog.
func New(cat *catalog.Catalog, opts ...Option) *Fuser {
	f := &Fuser{cat: cat, discordanceGap: discordanceGap}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Assess fuses one domain's evidence into a DomainAssessment. A domain
// with no evidence at all yields the explicit insufficient-data variant:
// nil score, low confidence, no_data coherence.
func (f *Fuser) Assess(in Input) model.DomainAssessment {
	out := model.DomainAssessment{
		Domain:     in.Domain,
		Confidence: model.ConfidenceLow,
		Trend:      model.TrendStable,
		Coherence:  model.CoherenceNoData,
	}

	wearableScore, topSignals := f.wearableScore(in.Wearable)
	labScore, labWeight := f.labScore(in.Labs, in.Now)

	out.WearableScore = wearableScore
	out.LabScore = labScore
	out.LabWeight = labWeight
	out.TopSignals = topSignals

	switch {
	case wearableScore != nil && labScore != nil:
		blended := (*wearableScore + *labScore*labWeight) / (1 + labWeight)
		out.Score = &blended
		if math.Abs(*wearableScore-*labScore) > f.discordanceGap {
			out.Coherence = model.CoherenceDiscordant
		} else {
			out.Coherence = model.CoherenceConcordant
		}
	case wearableScore != nil:
		out.Score = wearableScore
		out.Coherence = model.CoherenceWearableOnly
	case labScore != nil:
		out.Score = labScore
		out.Coherence = model.CoherenceLabOnly
	default:
		return out
	}

	out.Confidence = f.tier(in)
	out.Trend = domainTrend(in.Capacity)
	out.Recommendations = recommendations(in.Domain, *out.Score, out.Coherence)
	return out
}

// wearableScore averages polarity-corrected, baseline-normalized percent
// deviations, clamped to +/-50 around a 50 midpoint.
func (f *Fuser) wearableScore(evidence []MetricEvidence) (*float64, []string) {
	type scored struct {
		metric string
		dev    float64
	}
	var (
		sum  float64
		n    int
		devs []scored
	)
	for _, ev := range evidence {
		ref, ok := f.cat.Metric(ev.MetricType)
		if !ok || ev.BaselineMean == 0 {
			continue
		}
		dev := (ev.Latest - ev.BaselineMean) / math.Abs(ev.BaselineMean) * 100
		if ref.Polarity == catalog.LowerBetter {
			dev = -dev
		}
		dev = clamp(dev, -deviationClamp, deviationClamp)
		sum += scoreMidpoint + dev
		n++
		devs = append(devs, scored{metric: ev.MetricType, dev: dev})
	}
	if n == 0 {
		return nil, nil
	}
	score := clamp(sum/float64(n), 0, 100)

	sort.Slice(devs, func(i, j int) bool { return math.Abs(devs[i].dev) > math.Abs(devs[j].dev) })
	var top []string
	for i, d := range devs {
		if i >= topSignalLimit {
			break
		}
		top = append(top, fmt.Sprintf("%s %+.1f%% vs baseline", d.metric, d.dev))
	}
	return &score, top
}

// labScore returns the mean zone score and its recency/completeness
// weight. Markers backed by a primary personal baseline count double in
// the completeness term.
func (f *Fuser) labScore(labs []LabEvidence, now time.Time) (*float64, float64) {
	if len(labs) == 0 {
		return nil, 0
	}

	var (
		sum     float64
		newest  time.Time
		primary int
	)
	for _, l := range labs {
		sum += l.ZoneScore
		if l.TestDate.After(newest) {
			newest = l.TestDate
		}
		if l.BaselinePrimary {
			primary++
		}
	}
	score := sum / float64(len(labs))

	daysSince := int(now.Sub(newest).Hours() / 24)
	recency := catalog.RecencyWeight(daysSince)
	effectiveCount := float64(len(labs) + primary)
	completeness := clamp(effectiveCount/completenessPanel, completenessFloor, 1.0)

	return &score, recency * completeness
}

// tier assigns the confidence tier for a domain.
func (f *Fuser) tier(in Input) model.ConfidenceTier {
	fresh := 0
	for _, ev := range in.Wearable {
		if in.Now.Sub(ev.LastDate).Hours() < highTierMaxStaleHrs {
			fresh++
		}
	}
	if len(in.Wearable) >= highTierMetrics && fresh > 0 {
		return model.ConfidenceHigh
	}
	if len(in.Wearable) > 0 || len(in.Labs) > 0 {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// domainTrend takes the majority direction of the domain's capacity
// signals, stable on ties or no signals.
func domainTrend(capacity []model.CapacitySignal) model.TrendDirection {
	var up, down int
	for _, c := range capacity {
		switch c.Direction {
		case model.TrendImproving:
			up++
		case model.TrendDeclining:
			down++
		}
	}
	switch {
	case up > down:
		return model.TrendImproving
	case down > up:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// recommendations emits short rule-based guidance strings; narrative
// generation for end-user copy lives downstream.
func recommendations(domain string, score float64, coherence model.Coherence) []string {
	var recs []string
	switch {
	case score < 40:
		recs = append(recs, fmt.Sprintf("%s needs attention: score %.0f", domain, score))
	case score < 60:
		recs = append(recs, fmt.Sprintf("%s has room to improve: score %.0f", domain, score))
	}
	if coherence == model.CoherenceDiscordant {
		recs = append(recs, "lab and wearable evidence disagree; consider a fresh panel")
	}
	return recs
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
