// Package catalog holds the immutable reference tables the pipeline is
// built on: population reference ranges for lab biomarkers, wearable
// metric definitions, provider source priority, and the domain/system
// groupings. A Catalog is constructed once and passed into components;
// nothing here is process-global or mutable after construction.
package catalog

import "math"

// Polarity describes which direction of change is good for a measure.
type Polarity string

// Polarities.
const (
	HigherBetter Polarity = "higher_better"
	LowerBetter  Polarity = "lower_better"
	MidOptimal   Polarity = "mid_optimal"
)

// Domains scored by fusion.
const (
	DomainSleep          = "sleep"
	DomainRecovery       = "recovery"
	DomainCardiovascular = "cardiovascular"
	DomainMetabolic      = "metabolic"
	DomainBodyComp       = "body_composition"
)

// Body systems scored by the velocity model.
const (
	SystemCardiovascular = "cardiovascular"
	SystemMetabolic      = "metabolic"
	SystemStructural     = "structural"
	SystemRecovery       = "recovery"
)

// BiomarkerRef is the population reference for one lab marker.
type BiomarkerRef struct {
	Key             string
	Unit            string
	RefLow          float64
	RefHigh         float64
	OptimalLow      float64
	OptimalHigh     float64
	Polarity        Polarity
	WithinSubjectCV float64 // within-subject biological variation, fraction
	Domains         []string
	Systems         []string
}

// MetricRef describes one wearable metric type.
type MetricRef struct {
	Type                string
	Polarity            Polarity
	MinWindowDays       int     // minimum span for a capacity regression
	PreferredWindowDays int     // window at which capacity confidence saturates
	Importance          float64 // weight in the capacity velocity combination
	Domains             []string
	Systems             []string
	LoadMetric          bool // contributes to the training-load ratio
	FatigueMetric       bool // eligible for short-term fatigue deviation
}

// Catalog is the immutable table set owned by pipeline components.
type Catalog struct {
	biomarkers     map[string]BiomarkerRef
	metrics        map[string]MetricRef
	sourcePriority map[string]int // provider -> rank, lower wins
	sources        []string
}

// Option overrides part of a Catalog under construction.
type Option func(*Catalog)

// WithBiomarkers replaces the biomarker reference table.
func WithBiomarkers(refs []BiomarkerRef) Option {
	return func(c *Catalog) {
		c.biomarkers = make(map[string]BiomarkerRef, len(refs))
		for _, r := range refs {
			c.biomarkers[r.Key] = r
		}
	}
}

// WithMetrics replaces the wearable metric table.
func WithMetrics(refs []MetricRef) Option {
	return func(c *Catalog) {
		c.metrics = make(map[string]MetricRef, len(refs))
		for _, r := range refs {
			c.metrics[r.Type] = r
		}
	}
}

// WithSourcePriority replaces the provider priority order, best first.
func WithSourcePriority(sources []string) Option {
	return func(c *Catalog) {
		c.sources = append([]string(nil), sources...)
		c.sourcePriority = make(map[string]int, len(sources))
		for i, s := range sources {
			c.sourcePriority[s] = i
		}
	}
}

// New builds a Catalog from the built-in tables plus any overrides.
func New(opts ...Option) *Catalog {
	c := &Catalog{}
	WithBiomarkers(defaultBiomarkers())(c)
	WithMetrics(defaultMetrics())(c)
	WithSourcePriority(defaultSourcePriority())(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Biomarker returns the reference for a marker key.
func (c *Catalog) Biomarker(key string) (BiomarkerRef, bool) {
	r, ok := c.biomarkers[key]
	return r, ok
}

// Metric returns the definition for a wearable metric type.
func (c *Catalog) Metric(metricType string) (MetricRef, bool) {
	r, ok := c.metrics[metricType]
	return r, ok
}

// MetricTypes returns all known wearable metric types.
func (c *Catalog) MetricTypes() []string {
	out := make([]string, 0, len(c.metrics))
	for t := range c.metrics {
		out = append(out, t)
	}
	return out
}

// SourceRank returns a provider's priority rank; unknown providers rank
// after every configured one.
func (c *Catalog) SourceRank(source string) int {
	if rank, ok := c.sourcePriority[source]; ok {
		return rank
	}
	return len(c.sources)
}

// Domains returns the fixed list of fusion domains.
func (c *Catalog) Domains() []string {
	return []string{DomainSleep, DomainRecovery, DomainCardiovascular, DomainMetabolic, DomainBodyComp}
}

// Systems returns the fixed list of velocity body systems.
func (c *Catalog) Systems() []string {
	return []string{SystemCardiovascular, SystemMetabolic, SystemStructural, SystemRecovery}
}

// MetricsForDomain lists metric types assigned to a domain.
func (c *Catalog) MetricsForDomain(domain string) []string {
	var out []string
	for t, m := range c.metrics {
		for _, d := range m.Domains {
			if d == domain {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// BiomarkersForDomain lists marker keys assigned to a domain.
func (c *Catalog) BiomarkersForDomain(domain string) []string {
	var out []string
	for k, b := range c.biomarkers {
		for _, d := range b.Domains {
			if d == domain {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// MetricInSystem reports whether a metric type belongs to a body system.
func (c *Catalog) MetricInSystem(metricType, system string) bool {
	m, ok := c.metrics[metricType]
	if !ok {
		return false
	}
	for _, s := range m.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// BiomarkerInSystem reports whether a marker belongs to a body system.
func (c *Catalog) BiomarkerInSystem(key, system string) bool {
	b, ok := c.biomarkers[key]
	if !ok {
		return false
	}
	for _, s := range b.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// ZoneScore maps a lab value to a 0-100 score against its reference.
// Values inside the optimal band score 100; between the optimal band and
// the reference limits the score falls linearly to 40; beyond the
// reference limits it falls linearly to 0 over another half range width.
func (c *Catalog) ZoneScore(ref BiomarkerRef, value float64) float64 {
	lo, hi := ref.OptimalLow, ref.OptimalHigh
	if lo == 0 && hi == 0 {
		lo, hi = ref.RefLow, ref.RefHigh
	}
	if value >= lo && value <= hi {
		return 100
	}

	var optEdge, refEdge float64
	if value < lo {
		optEdge, refEdge = lo, ref.RefLow
	} else {
		optEdge, refEdge = hi, ref.RefHigh
	}

	span := math.Abs(optEdge - refEdge)
	if span == 0 {
		span = math.Abs(ref.RefHigh-ref.RefLow) / 4
		if span == 0 {
			return 40
		}
	}

	dist := math.Abs(value - optEdge)
	if dist <= span {
		// Optimal edge down to the reference limit: 100 -> 40.
		return 100 - 60*(dist/span)
	}

	// Past the reference limit: 40 -> 0 over another half range width.
	overflow := dist - span
	tail := math.Abs(ref.RefHigh-ref.RefLow) / 2
	if tail == 0 {
		return 0
	}
	score := 40 - 40*(overflow/tail)
	return math.Max(0, score)
}

// RecencyWeight discounts lab evidence by days since the blood draw, in
// the fixed steps shared by fusion and the velocity model.
func RecencyWeight(daysSinceDraw int) float64 {
	switch {
	case daysSinceDraw <= 14:
		return 1.0
	case daysSinceDraw <= 30:
		return 0.85
	case daysSinceDraw <= 60:
		return 0.7
	case daysSinceDraw <= 90:
		return 0.5
	case daysSinceDraw <= 180:
		return 0.3
	default:
		return 0.15
	}
}
