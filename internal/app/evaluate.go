package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vitalislabs/vitalis/internal/adapters/repository"
	"github.com/vitalislabs/vitalis/internal/domain/allostatic"
	"github.com/vitalislabs/vitalis/internal/domain/fusion"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/publish"
	"github.com/vitalislabs/vitalis/internal/domain/series"
	"github.com/vitalislabs/vitalis/internal/domain/velocity"
	"github.com/vitalislabs/vitalis/pkg/logger"
	"github.com/vitalislabs/vitalis/pkg/metrics"
)

// Publish outcome reasons owned by this layer, on top of the gate's own.
const (
	reasonPublishedStateUnavailable = "published_state_unavailable"
	reasonPublishWriteFailed        = "publish_write_failed"
	reasonPublishRetriesExhausted   = "publish_conflict_retries_exhausted"
)

// Confidence tier cut points on the 0-100 system confidence score.
const (
	tierHighScore   = 70
	tierMediumScore = 40
)

// Run executes the full evaluation pipeline for one trigger and returns
// the persisted BrainOutput. Runs for the same user are serialized;
// collaborator read failures degrade to absent evidence, and only a
// failed snapshot append is a terminal error.
func (s *Service) Run(ctx context.Context, t model.Trigger) (model.BrainOutput, error) {
	lock := s.userLock(t.UserID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	f := s.fetch(ctx, t.UserID)

	if t.Kind == model.TriggerLabUpload {
		s.updateBaselines(ctx, t, &f)
	}

	byMetric := s.unifySeries(f.samples)

	var capacitySignals []model.CapacitySignal
	for _, mt := range sortedKeys(byMetric) {
		if c := s.extractor.Capacity(byMetric[mt]); c != nil {
			capacitySignals = append(capacitySignals, *c)
		}
	}
	improving := 0
	for _, c := range capacitySignals {
		if c.Direction == model.TrendImproving {
			improving++
		}
	}

	avgLoad, loadSignals := s.extractor.Load(byMetric)

	var fatigueSignals []model.FatigueSignal
	for _, mt := range sortedKeys(byMetric) {
		if fs := s.extractor.Fatigue(byMetric[mt], avgLoad, improving); fs != nil {
			fatigueSignals = append(fatigueSignals, *fs)
		}
	}

	latest := latestReadings(f.readings)
	labInputs := s.labInputs(latest, now)

	domains := s.assessDomains(byMetric, latest, f.baselines, capacitySignals, now)

	velRes := s.velo.Compute(velocity.Input{
		Capacity: capacitySignals,
		Fatigue:  fatigueSignals,
		Labs:     labInputs,
	})
	if velRes.Constrained {
		metrics.RecordConstraintCap(velRes.ConstraintReason)
		s.logger.Info(ctx, "velocity capped at neutral by sustained-evidence gate",
			logger.String("user_id", t.UserID),
			logger.String("gate", velRes.ConstraintReason),
			logger.Float64("raw_combined", velRes.RawCombined),
		)
	}

	conf := s.systemConfidence(byMetric, labInputs, domains, now)

	outcome, published := s.publishVelocity(ctx, t.UserID, velRes, tierFromScore(conf.Score), now)

	alloIn := allostatic.Input{
		Labs:     labInputs,
		Fatigue:  fatigueSignals,
		Domains:  domains,
		Velocity: velRes,
	}

	out := model.BrainOutput{
		SnapshotID:      uuid.NewString(),
		UserID:          t.UserID,
		Trigger:         t.Kind,
		EvaluatedAt:     now,
		PipelineVersion: s.pipelineVersion,
		Domains:         domains,
		Velocity:        velRes,
		Published:       published,
		Publish:         outcome,
		Allostatic:      s.allo.Load(alloIn),
		Risks:           s.allo.Risks(alloIn),
		Confidence:      conf,
	}

	if err := s.store.AppendSnapshot(ctx, out); err != nil {
		return model.BrainOutput{}, err
	}

	s.logger.Debug(ctx, "evaluation complete",
		logger.String("user_id", t.UserID),
		logger.String("trigger", string(t.Kind)),
		logger.Float64("velocity", velRes.Overall),
		logger.Float64("completeness", velRes.Completeness),
		logger.Float64("avg_load_ratio", avgLoad),
		logger.Int("load_signals", len(loadSignals)),
		logger.Int("capacity_signals", len(capacitySignals)),
		logger.Bool("published", outcome.Published),
	)
	return out, nil
}

// updateBaselines folds the trigger's new readings into the per-marker
// posteriors. Re-folding is prevented by the LastDate guard, so a
// retried trigger is idempotent.
func (s *Service) updateBaselines(ctx context.Context, t model.Trigger, f *fetched) {
	for _, r := range f.readings {
		if t.UploadID != "" && r.UploadID != t.UploadID {
			continue
		}
		ref, ok := s.cat.Biomarker(r.BiomarkerKey)
		if !ok {
			s.logger.Debug(ctx, "skipping reading for unknown biomarker",
				logger.String("biomarker_key", r.BiomarkerKey))
			continue
		}

		var prior *model.PersonalBaseline
		if b, has := f.baselines[r.BiomarkerKey]; has {
			if !r.TestDate.After(b.LastDate) {
				continue
			}
			bc := b
			prior = &bc
		}

		next, info := s.estimator.Update(ref, prior, r)
		if err := s.store.PutBaseline(ctx, t.UserID, next); err != nil {
			s.logger.Warn(ctx, "baseline write failed",
				logger.String("user_id", t.UserID),
				logger.String("biomarker_key", r.BiomarkerKey),
				logger.Error(err))
			continue
		}
		f.baselines[r.BiomarkerKey] = next
		metrics.RecordBaselineUpdate()

		if info.Outlier {
			metrics.RecordOutlierFlag()
			s.logger.Warn(ctx, "lab observation flagged as outlier",
				logger.String("user_id", t.UserID),
				logger.String("biomarker_key", r.BiomarkerKey),
				logger.Float64("value", r.Value),
				logger.Float64("personal_mean", info.PriorMean))
		}
		if info.BecamePrimary {
			s.logger.Info(ctx, "personal baseline became primary",
				logger.String("user_id", t.UserID),
				logger.String("biomarker_key", r.BiomarkerKey),
				logger.Int("draw_count", next.DrawCount))
		}
	}
}

// unifySeries builds the authoritative daily series per metric.
func (s *Service) unifySeries(samples map[string][]model.WearableSample) map[string]model.MetricSeries {
	out := make(map[string]model.MetricSeries, len(samples))
	for _, mt := range sortedKeys(samples) {
		raw := samples[mt]
		if len(raw) == 0 {
			continue
		}
		out[mt] = series.Unify(s.cat, mt, raw)
	}
	return out
}

// latestReadings keeps the most recent reading per biomarker.
func latestReadings(readings []model.BiomarkerReading) map[string]model.BiomarkerReading {
	latest := make(map[string]model.BiomarkerReading, len(readings))
	for _, r := range readings {
		if cur, ok := latest[r.BiomarkerKey]; !ok || r.TestDate.After(cur.TestDate) {
			latest[r.BiomarkerKey] = r
		}
	}
	return latest
}

// labInputs converts the latest readings into velocity lab inputs in a
// stable order.
func (s *Service) labInputs(latest map[string]model.BiomarkerReading, now time.Time) []velocity.LabInput {
	var out []velocity.LabInput
	for _, key := range sortedKeys(latest) {
		ref, ok := s.cat.Biomarker(key)
		if !ok {
			continue
		}
		r := latest[key]
		out = append(out, velocity.LabInput{
			BiomarkerKey:  key,
			ZoneScore:     s.cat.ZoneScore(ref, r.Value),
			DaysSinceDraw: int(now.Sub(r.TestDate).Hours() / 24),
		})
	}
	return out
}

// assessDomains fuses the evidence for each physiological domain.
func (s *Service) assessDomains(
	byMetric map[string]model.MetricSeries,
	latest map[string]model.BiomarkerReading,
	baselines map[string]model.PersonalBaseline,
	capacitySignals []model.CapacitySignal,
	now time.Time,
) []model.DomainAssessment {
	out := make([]model.DomainAssessment, 0, len(s.cat.Domains()))
	for _, domain := range s.cat.Domains() {
		in := fusion.Input{Domain: domain, Now: now}

		metricTypes := s.cat.MetricsForDomain(domain)
		sort.Strings(metricTypes)
		inDomain := make(map[string]bool, len(metricTypes))
		for _, mt := range metricTypes {
			inDomain[mt] = true
			srs, ok := byMetric[mt]
			if !ok || len(srs.Points) == 0 {
				continue
			}
			baseMean, ok := series.Mean(series.Window(srs, wearableBaselineDays))
			if !ok {
				continue
			}
			last := srs.Points[len(srs.Points)-1]
			in.Wearable = append(in.Wearable, fusion.MetricEvidence{
				MetricType:   mt,
				Latest:       last.Value,
				BaselineMean: baseMean,
				LastDate:     last.Date,
			})
		}

		keys := s.cat.BiomarkersForDomain(domain)
		sort.Strings(keys)
		for _, key := range keys {
			r, ok := latest[key]
			if !ok {
				continue
			}
			ref, _ := s.cat.Biomarker(key)
			b, hasBaseline := baselines[key]
			in.Labs = append(in.Labs, fusion.LabEvidence{
				BiomarkerKey:    key,
				Value:           r.Value,
				ZoneScore:       s.cat.ZoneScore(ref, r.Value),
				TestDate:        r.TestDate,
				BaselinePrimary: hasBaseline && b.Primary(),
			})
		}

		for _, c := range capacitySignals {
			if inDomain[c.MetricType] {
				in.Capacity = append(in.Capacity, c)
			}
		}

		out = append(out, s.fuser.Assess(in))
	}
	return out
}

// systemConfidence aggregates the run's evidence counts.
func (s *Service) systemConfidence(
	byMetric map[string]model.MetricSeries,
	labs []velocity.LabInput,
	domains []model.DomainAssessment,
	now time.Time,
) model.SystemConfidence {
	days := make(map[time.Time]struct{})
	var newest time.Time
	for _, srs := range byMetric {
		for _, p := range srs.Points {
			days[p.Date] = struct{}{}
			if p.Date.After(newest) {
				newest = p.Date
			}
		}
	}
	scored := 0
	for _, d := range domains {
		if d.Score != nil {
			scored++
		}
	}
	return s.fuser.SystemConfidence(fusion.ConfidenceInput{
		WearableDays:   len(days),
		NewestWearable: newest,
		LabMarkerCount: len(labs),
		DomainsScored:  scored,
		DomainsTotal:   len(domains),
		Now:            now,
	})
}

// tierFromScore buckets the 0-100 confidence score into the smoothing
// tier consumed by the publish gate.
func tierFromScore(score int) model.ConfidenceTier {
	switch {
	case score >= tierHighScore:
		return model.ConfidenceHigh
	case score >= tierMediumScore:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// publishVelocity runs the publish gate against the stored state with a
// bounded optimistic-concurrency retry, records every guardrail event,
// and returns the outcome plus the state now visible to the user.
func (s *Service) publishVelocity(
	ctx context.Context,
	userID string,
	res model.VelocityResult,
	tier model.ConfidenceTier,
	now time.Time,
) (model.PublishOutcome, *model.PublishedVelocityState) {
	in := publish.RawInput{
		Completeness:    res.Completeness,
		Confidence:      tier,
		PipelineVersion: s.pipelineVersion,
		EvaluatedAt:     now,
	}
	if res.Completeness > 0 {
		raw := res.Overall
		in.Velocity = &raw
	}

	for attempt := 0; attempt < publishRetryLimit; attempt++ {
		var (
			prev     *model.PublishedVelocityState
			expected int64
		)
		cur, err := s.store.GetPublished(ctx, userID)
		switch {
		case err == nil:
			c := cur
			prev = &c
			expected = cur.Version
		case errors.Is(err, repository.ErrNotFound):
			// First publish path.
		default:
			s.logger.Warn(ctx, "published state read failed; holding publication",
				logger.String("user_id", userID), logger.Error(err))
			metrics.RecordCarryForward(reasonPublishedStateUnavailable)
			return model.PublishOutcome{Reason: reasonPublishedStateUnavailable}, nil
		}

		d := s.gate.Decide(now, prev, in)
		if !d.Publish {
			metrics.RecordCarryForward(d.Reason)
			out := model.PublishOutcome{CarryForward: prev != nil, Reason: d.Reason}
			return out, prev
		}

		next := d.State
		next.UserID = userID
		written, err := s.store.PutPublished(ctx, next, expected)
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.RecordPublishConflict()
			s.logger.Debug(ctx, "published state version conflict, retrying",
				logger.String("user_id", userID), logger.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "published state write failed; holding publication",
				logger.String("user_id", userID), logger.Error(err))
			metrics.RecordCarryForward(reasonPublishWriteFailed)
			return model.PublishOutcome{CarryForward: prev != nil, Reason: reasonPublishWriteFailed}, prev
		}

		if d.WasShockCapped {
			metrics.RecordShockCap()
			s.logger.Warn(ctx, "daily velocity movement shock capped",
				logger.String("user_id", userID),
				logger.Float64("raw", res.Overall),
				logger.Float64("published", written.Velocity))
		}
		if d.VersionReset {
			metrics.RecordVersionReset()
			s.logger.Info(ctx, "published velocity reset for new pipeline version",
				logger.String("user_id", userID),
				logger.String("pipeline_version", s.pipelineVersion))
		}
		metrics.RecordPublish()
		return model.PublishOutcome{
			Published:      true,
			Reason:         d.Reason,
			WasShockCapped: d.WasShockCapped,
			VersionReset:   d.VersionReset,
		}, &written
	}

	metrics.RecordCarryForward(reasonPublishRetriesExhausted)
	s.logger.Warn(ctx, "publish retries exhausted on version conflicts",
		logger.String("user_id", userID))
	return model.PublishOutcome{Reason: reasonPublishRetriesExhausted}, nil
}
