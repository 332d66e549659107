package fusion_test

import (
	"testing"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/fusion"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFuser_Assess(t *testing.T) {
	Convey("Given a fuser over the default catalog", t, func() {
		f := fusion.New(catalog.New())

		Convey("When wearable and lab evidence agree", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainRecovery,
				Wearable: []fusion.MetricEvidence{
					// +30% HRV deviation: wearable score 80.
					{MetricType: "hrv", Latest: 65, BaselineMean: 50, LastDate: now.AddDate(0, 0, -1)},
				},
				Labs: []fusion.LabEvidence{
					// Fresh draw, zone 70: lab score 70.
					{BiomarkerKey: "hs_crp", Value: 1.2, ZoneScore: 70, TestDate: now.AddDate(0, 0, -7)},
				},
				Now: now,
			})

			Convey("Then the blend sits between the two and is concordant", func() {
				So(out.Score, ShouldNotBeNil)
				So(*out.Score, ShouldBeBetween, 70, 80)
				So(out.Coherence, ShouldEqual, model.CoherenceConcordant)
			})

			Convey("Then the wearable side dominates at low lab weight", func() {
				// One marker: completeness clamps to 0.3, recency 1.0.
				So(out.LabWeight, ShouldAlmostEqual, 0.3, 0.0001)
				So(*out.Score, ShouldAlmostEqual, (80+70*0.3)/1.3, 0.0001)
			})
		})

		Convey("When wearable and lab evidence disagree by more than the gap", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainRecovery,
				Wearable: []fusion.MetricEvidence{
					{MetricType: "hrv", Latest: 65, BaselineMean: 50, LastDate: now.AddDate(0, 0, -1)},
				},
				Labs: []fusion.LabEvidence{
					{BiomarkerKey: "hs_crp", Value: 4.0, ZoneScore: 55, TestDate: now.AddDate(0, 0, -7)},
				},
				Now: now,
			})

			Convey("Then the assessment is discordant and says so", func() {
				So(out.Coherence, ShouldEqual, model.CoherenceDiscordant)
				So(out.Recommendations, ShouldNotBeEmpty)
			})
		})

		Convey("When only wearable evidence exists", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainRecovery,
				Wearable: []fusion.MetricEvidence{
					{MetricType: "hrv", Latest: 50, BaselineMean: 50, LastDate: now.AddDate(0, 0, -1)},
				},
				Now: now,
			})

			Convey("Then the score is wearable only at midpoint", func() {
				So(out.Coherence, ShouldEqual, model.CoherenceWearableOnly)
				So(*out.Score, ShouldAlmostEqual, 50, 0.0001)
				So(out.LabWeight, ShouldEqual, 0)
			})
		})

		Convey("When only lab evidence exists", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainMetabolic,
				Labs: []fusion.LabEvidence{
					{BiomarkerKey: "fasting_glucose", Value: 85, ZoneScore: 100, TestDate: now.AddDate(0, 0, -10)},
				},
				Now: now,
			})

			Convey("Then the score is lab only", func() {
				So(out.Coherence, ShouldEqual, model.CoherenceLabOnly)
				So(*out.Score, ShouldEqual, 100)
			})
		})

		Convey("When there is no evidence at all", func() {
			out := f.Assess(fusion.Input{Domain: catalog.DomainSleep, Now: now})

			Convey("Then the explicit insufficient-data variant comes back", func() {
				So(out.Score, ShouldBeNil)
				So(out.Coherence, ShouldEqual, model.CoherenceNoData)
				So(out.Confidence, ShouldEqual, model.ConfidenceLow)
			})
		})

		Convey("When three fresh wearable metrics are present", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainRecovery,
				Wearable: []fusion.MetricEvidence{
					{MetricType: "hrv", Latest: 52, BaselineMean: 50, LastDate: now.AddDate(0, 0, -1)},
					{MetricType: "resting_hr", Latest: 55, BaselineMean: 56, LastDate: now.AddDate(0, 0, -1)},
					{MetricType: "sleep_score", Latest: 80, BaselineMean: 78, LastDate: now.AddDate(0, 0, -1)},
				},
				Now: now,
			})

			Convey("Then the confidence tier is high", func() {
				So(out.Confidence, ShouldEqual, model.ConfidenceHigh)
			})
		})

		Convey("When a stale lab panel carries the evidence", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainMetabolic,
				Wearable: []fusion.MetricEvidence{
					{MetricType: "body_fat_pct", Latest: 18, BaselineMean: 18, LastDate: now.AddDate(0, 0, -1)},
				},
				Labs: []fusion.LabEvidence{
					{BiomarkerKey: "hba1c", Value: 5.0, ZoneScore: 100, TestDate: now.AddDate(0, 0, -100)},
				},
				Now: now,
			})

			Convey("Then recency discounts the lab weight", func() {
				// 100 days: recency 0.3, completeness floor 0.3.
				So(out.LabWeight, ShouldAlmostEqual, 0.09, 0.0001)
			})
		})

		Convey("When capacity signals lean one way", func() {
			out := f.Assess(fusion.Input{
				Domain: catalog.DomainRecovery,
				Wearable: []fusion.MetricEvidence{
					{MetricType: "hrv", Latest: 50, BaselineMean: 50, LastDate: now.AddDate(0, 0, -1)},
				},
				Capacity: []model.CapacitySignal{
					{MetricType: "hrv", Direction: model.TrendImproving},
					{MetricType: "resting_hr", Direction: model.TrendImproving},
					{MetricType: "sleep_score", Direction: model.TrendDeclining},
				},
				Now: now,
			})

			Convey("Then the domain trend follows the majority", func() {
				So(out.Trend, ShouldEqual, model.TrendImproving)
			})
		})
	})
}

func TestFuser_SystemConfidence(t *testing.T) {
	Convey("Given a fuser", t, func() {
		f := fusion.New(catalog.New())

		Convey("When the evidence is rich and fresh", func() {
			conf := f.SystemConfidence(fusion.ConfidenceInput{
				WearableDays:   60,
				NewestWearable: now.AddDate(0, 0, -1),
				LabMarkerCount: 15,
				DomainsScored:  5,
				DomainsTotal:   5,
				Now:            now,
			})

			Convey("Then the score saturates at 100 with full reasons", func() {
				So(conf.Score, ShouldEqual, 100)
				So(conf.Reasons, ShouldContain, "60 days of wearable data")
				So(conf.Reasons, ShouldContain, "wearable data is current")
				So(conf.Reasons, ShouldContain, "15 lab markers on file")
				So(conf.Reasons, ShouldContain, "5 of 5 domains scored")
			})
		})

		Convey("When there is no evidence at all", func() {
			conf := f.SystemConfidence(fusion.ConfidenceInput{
				DomainsTotal: 5,
				Now:          now,
			})

			Convey("Then the score is zero and the reasons say why", func() {
				So(conf.Score, ShouldEqual, 0)
				So(conf.Reasons, ShouldContain, "no wearable data in window")
				So(conf.Reasons, ShouldContain, "no lab panel on file")
			})
		})

		Convey("When wearable data is a few days stale", func() {
			conf := f.SystemConfidence(fusion.ConfidenceInput{
				WearableDays:   30,
				NewestWearable: now.AddDate(0, 0, -5),
				LabMarkerCount: 0,
				DomainsScored:  2,
				DomainsTotal:   5,
				Now:            now,
			})

			Convey("Then freshness contributes only half", func() {
				// volume 20 + freshness 12.5 + panel 0 + coverage 6 = 38.5 -> 39
				So(conf.Score, ShouldEqual, 39)
			})
		})
	})
}
