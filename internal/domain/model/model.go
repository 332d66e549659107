// Package model contains domain models passed between layers.
package model

import "time"

// TriggerKind identifies what caused an evaluation run.
type TriggerKind string

// Trigger kinds.
const (
	TriggerLabUpload     TriggerKind = "lab_upload"
	TriggerWearableSync  TriggerKind = "wearable_sync"
	TriggerManualRefresh TriggerKind = "manual_refresh"
)

// Trigger is a request to run one user's evaluation pipeline.
type Trigger struct {
	TriggerID  string      // unique id for idempotency
	UserID     string      // subject identifier
	Kind       TriggerKind // what fired the run
	UploadID   string      // set for lab_upload triggers
	ReceivedAt time.Time   // when the trigger was accepted
}

// TrendDirection classifies the direction of a trend.
type TrendDirection string

// Trend directions.
const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// BiomarkerReading is one name-normalized lab result. Immutable once parsed.
type BiomarkerReading struct {
	BiomarkerKey string    `json:"biomarker_key"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit"`
	Flag         string    `json:"flag,omitempty"` // lab-reported flag, e.g. "H", "L"
	TestDate     time.Time `json:"test_date"`
	UploadID     string    `json:"upload_id"`
}

// PersonalBaseline is the Bayesian posterior for one (user, biomarker) pair.
// Mutated only by the baseline estimator; DrawCount is monotonically
// increasing and the record is superseded in place, never deleted.
type PersonalBaseline struct {
	BiomarkerKey    string         `json:"biomarker_key"`
	PersonalMean    float64        `json:"personal_mean"`
	PersonalSD      float64        `json:"personal_sd"`
	DrawCount       int            `json:"draw_count"`
	Trend           TrendDirection `json:"trend"`
	TrendConfidence float64        `json:"trend_confidence"`
	LastValue       float64        `json:"last_value"`
	LastDate        time.Time      `json:"last_date"`
}

// PrimaryDrawCount is the number of draws after which a personal baseline
// is trusted over the population reference.
const PrimaryDrawCount = 3

// Primary reports whether the baseline outranks the population reference.
func (b PersonalBaseline) Primary() bool {
	return b.DrawCount >= PrimaryDrawCount
}

// WearableSample is one raw provider reading for a metric on a day.
type WearableSample struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Source string    `json:"source"`
}

// DailyPoint is the authoritative value for one metric on one day, with any
// lower-priority provider readings retained as alternatives.
type DailyPoint struct {
	Date         time.Time        `json:"date"`
	Value        float64          `json:"value"`
	Source       string           `json:"source"`
	Alternatives []WearableSample `json:"alternatives,omitempty"`
}

// MetricSeries is a unified, date-ascending daily series for one metric.
type MetricSeries struct {
	MetricType string       `json:"metric_type"`
	Points     []DailyPoint `json:"points"`
}

// Span returns the number of calendar days covered by the series, inclusive.
func (s MetricSeries) Span() int {
	if len(s.Points) == 0 {
		return 0
	}
	first := s.Points[0].Date
	last := s.Points[len(s.Points)-1].Date
	return int(last.Sub(first).Hours()/24) + 1
}

// CapacitySignal is a slow structural trend for one metric, polarity
// corrected so a positive slope always means "improving".
type CapacitySignal struct {
	MetricType  string         `json:"metric_type"`
	SlopePer28d float64        `json:"slope_per_28d"` // % change per 28 days
	Direction   TrendDirection `json:"direction"`
	Confidence  float64        `json:"confidence"`
	WindowDays  int            `json:"window_days"`
	Points      int            `json:"points"`
}

// LoadSignal is a recent-vs-baseline volume ratio for one activity metric.
type LoadSignal struct {
	MetricType   string  `json:"metric_type"`
	Ratio        float64 `json:"ratio"`
	RecentMean   float64 `json:"recent_mean"`
	BaselineMean float64 `json:"baseline_mean"`
}

// FatigueSignal is a short-term deviation for one metric, polarity
// corrected so negative always means "more fatigued". All deviations are
// percentages of the medium-term mean.
type FatigueSignal struct {
	MetricType        string  `json:"metric_type"`
	DeviationPct      float64 `json:"deviation_pct"`
	ExpectedDeviation float64 `json:"expected_deviation_pct"`
	ExcessFatigue     float64 `json:"excess_fatigue"` // >= 0
}

// Coherence reports whether lab and wearable evidence agree for a domain.
type Coherence string

// Coherence values.
const (
	CoherenceConcordant   Coherence = "concordant"
	CoherenceDiscordant   Coherence = "discordant"
	CoherenceWearableOnly Coherence = "wearable_only"
	CoherenceLabOnly      Coherence = "lab_only"
	CoherenceNoData       Coherence = "no_data"
)

// ConfidenceTier buckets assessment confidence for downstream consumers.
type ConfidenceTier string

// Confidence tiers.
const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// DomainAssessment is one physiological domain's fused result for a run.
// A nil Score is the explicit insufficient-data variant; consumers must
// check it rather than probing other fields.
type DomainAssessment struct {
	Domain          string         `json:"domain"`
	Score           *float64       `json:"score"` // 0-100, nil when no data
	Confidence      ConfidenceTier `json:"confidence"`
	Trend           TrendDirection `json:"trend"`
	Coherence       Coherence      `json:"coherence"`
	TopSignals      []string       `json:"top_signals,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	WearableScore   *float64       `json:"wearable_score,omitempty"`
	LabScore        *float64       `json:"lab_score,omitempty"`
	LabWeight       float64        `json:"lab_weight"`
}

// SystemVelocity is the velocity composition for one body system.
type SystemVelocity struct {
	System          string  `json:"system"`
	Velocity        float64 `json:"velocity"`
	CapacityDelta   float64 `json:"capacity_delta"`
	FatiguePenalty  float64 `json:"fatigue_penalty"`
	LabModulation   float64 `json:"lab_modulation"`
	Constrained     bool    `json:"constrained"`
	SignalCount     int     `json:"signal_count"`
	LabMarkerCount  int     `json:"lab_marker_count"`
	ShrinkageAmount float64 `json:"shrinkage_amount"`
}

// VelocityResult is the full, raw velocity computation for one run.
type VelocityResult struct {
	Overall          float64          `json:"overall"`
	RawCombined      float64          `json:"raw_combined"` // before constraints/shrinkage/bounds
	CapacityDelta    float64          `json:"capacity_delta"`
	FatiguePenalty   float64          `json:"fatigue_penalty"`
	LabModulation    float64          `json:"lab_modulation"`
	CILow            float64          `json:"ci_low"`
	CIHigh           float64          `json:"ci_high"`
	DominantFactor   string           `json:"dominant_factor"` // capacity|fatigue|labs|insufficient_data
	Completeness     float64          `json:"completeness"`    // 0-1
	Constrained      bool             `json:"constrained"`
	ConstraintReason string           `json:"constraint_reason,omitempty"`
	ShrinkageAmount  float64          `json:"shrinkage_amount"`
	PerSystem        []SystemVelocity `json:"per_system,omitempty"`
}

// VelocitySnapshot is the immutable raw velocity record for one evaluation.
type VelocitySnapshot struct {
	SnapshotID      string         `json:"snapshot_id"`
	UserID          string         `json:"user_id"`
	EvaluatedAt     time.Time      `json:"evaluated_at"`
	PipelineVersion string         `json:"pipeline_version"`
	Result          VelocityResult `json:"result"`
}

// PublishedVelocityState is the single mutable per-user row holding the
// last velocity actually shown to the user. Version supports optimistic
// concurrency on the read-modify-write performed by the publish gate.
type PublishedVelocityState struct {
	UserID           string    `json:"user_id"`
	Velocity         float64   `json:"velocity"`
	DaysGainedBucket int       `json:"days_gained_bucket"`
	PublishedAt      time.Time `json:"published_at"`
	PipelineVersion  string    `json:"pipeline_version"`
	Version          int64     `json:"version"`
}

// PublishOutcome summarizes what the publish gate decided for one run.
type PublishOutcome struct {
	Published      bool   `json:"published"`
	CarryForward   bool   `json:"carry_forward"`
	Reason         string `json:"reason"`
	WasShockCapped bool   `json:"was_shock_capped"`
	VersionReset   bool   `json:"version_reset"`
}

// AllostaticLoad is the rule-weighted cumulative strain score.
type AllostaticLoad struct {
	Score   float64  `json:"score"` // 0-100, higher is worse
	Drivers []string `json:"drivers,omitempty"`
}

// RiskLevel classifies a risk trajectory.
type RiskLevel string

// Risk levels.
const (
	RiskImproving RiskLevel = "improving"
	RiskStable    RiskLevel = "stable"
	RiskElevated  RiskLevel = "elevated"
)

// RiskTrajectory is one body system's directional risk classification.
type RiskTrajectory struct {
	System  string    `json:"system"`
	Level   RiskLevel `json:"level"`
	Horizon string    `json:"horizon"` // e.g. "90d"
	Note    string    `json:"note,omitempty"`
}

// SystemConfidence is the overall 0-100 evaluation confidence with its
// deterministic human-readable reasons.
type SystemConfidence struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// BrainOutput is the single-source-of-truth result of one evaluation run.
// Downstream consumers read this shape from the latest snapshot and never
// re-derive domain or velocity numbers.
type BrainOutput struct {
	SnapshotID      string                  `json:"snapshot_id"`
	UserID          string                  `json:"user_id"`
	Trigger         TriggerKind             `json:"trigger"`
	EvaluatedAt     time.Time               `json:"evaluated_at"`
	PipelineVersion string                  `json:"pipeline_version"`
	Domains         []DomainAssessment      `json:"domains"`
	Velocity        VelocityResult          `json:"velocity"`
	Published       *PublishedVelocityState `json:"published,omitempty"`
	Publish         PublishOutcome          `json:"publish"`
	Allostatic      AllostaticLoad          `json:"allostatic"`
	Risks           []RiskTrajectory        `json:"risks,omitempty"`
	Confidence      SystemConfidence        `json:"confidence"`
}
