package publish_test

import (
	"testing"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/publish"
	. "github.com/smartystreets/goconvey/convey"
)

func at(hour int) time.Time {
	return time.Date(2026, 6, 10, hour, 0, 0, 0, time.UTC)
}

func raw(v float64) publish.RawInput {
	return publish.RawInput{
		Velocity:        &v,
		Completeness:    0.8,
		Confidence:      model.ConfidenceHigh,
		PipelineVersion: "v1",
		EvaluatedAt:     at(12),
	}
}

func prevState(v float64, bucket int, publishedAt time.Time) *model.PublishedVelocityState {
	return &model.PublishedVelocityState{
		UserID:           "user-1",
		Velocity:         v,
		DaysGainedBucket: bucket,
		PublishedAt:      publishedAt,
		PipelineVersion:  "v1",
		Version:          3,
	}
}

func TestGate_Decide(t *testing.T) {
	Convey("Given a gate with default policy", t, func() {
		g := publish.New()

		Convey("Before the cutoff hour the gate stays closed", func() {
			d := g.Decide(at(5), prevState(1.0, 0, at(5).AddDate(0, 0, -1)), raw(0.9))
			So(d.Publish, ShouldBeFalse)
			So(d.Reason, ShouldEqual, publish.ReasonBeforeCutoff)
		})

		Convey("A second run on the same UTC day carries forward", func() {
			prev := prevState(0.95, 20, at(7))
			d := g.Decide(at(12), prev, raw(0.90))
			So(d.Publish, ShouldBeFalse)
			So(d.Reason, ShouldEqual, publish.ReasonAlreadyPublished)
			So(d.State, ShouldResemble, *prev)
		})

		Convey("A nil raw velocity carries forward", func() {
			in := raw(1.0)
			in.Velocity = nil
			d := g.Decide(at(12), prevState(1.0, 0, at(12).AddDate(0, 0, -1)), in)
			So(d.Publish, ShouldBeFalse)
			So(d.Reason, ShouldEqual, publish.ReasonNilVelocity)
		})

		Convey("Completeness below the floor carries forward", func() {
			in := raw(0.9)
			in.Completeness = 0.1
			d := g.Decide(at(12), prevState(1.0, 0, at(12).AddDate(0, 0, -1)), in)
			So(d.Publish, ShouldBeFalse)
			So(d.Reason, ShouldEqual, publish.ReasonLowCompleteness)
		})

		Convey("The first publish takes the raw value directly", func() {
			d := g.Decide(at(12), nil, raw(0.92))
			So(d.Publish, ShouldBeTrue)
			So(d.Reason, ShouldEqual, publish.ReasonPublished)
			So(d.State.Velocity, ShouldEqual, 0.92)
			So(d.WasShockCapped, ShouldBeFalse)

			Convey("And the bucket quantizes with no hysteresis anchor", func() {
				// (1-0.92)*365 = 29.2 days -> nearest bucket of 5 is 30.
				So(d.ExactDays, ShouldAlmostEqual, 29.2, 0.0001)
				So(d.State.DaysGainedBucket, ShouldEqual, 30)
			})
		})

		Convey("A small daily move follows the EMA", func() {
			prev := prevState(1.00, 0, at(12).AddDate(0, 0, -1))
			d := g.Decide(at(12), prev, raw(1.04))
			So(d.Publish, ShouldBeTrue)
			So(d.WasShockCapped, ShouldBeFalse)
			// High confidence, completeness >= 0.5: alpha 0.25.
			So(d.State.Velocity, ShouldAlmostEqual, 1.01, 0.0001)
		})

		Convey("A shocking move is capped to the maximum daily step", func() {
			prev := prevState(1.00, 0, at(12).AddDate(0, 0, -1))
			d := g.Decide(at(12), prev, raw(1.20))
			So(d.Publish, ShouldBeTrue)
			So(d.WasShockCapped, ShouldBeTrue)
			So(d.State.Velocity, ShouldAlmostEqual, 1.05, 0.0001)

			Convey("And a shocking drop is capped symmetrically", func() {
				d2 := g.Decide(at(12), prev, raw(0.80))
				So(d2.WasShockCapped, ShouldBeTrue)
				So(d2.State.Velocity, ShouldAlmostEqual, 0.95, 0.0001)
			})
		})

		Convey("Lower confidence tiers smooth harder", func() {
			prev := prevState(1.00, 0, at(12).AddDate(0, 0, -1))
			in := raw(1.10)
			in.Confidence = model.ConfidenceLow
			d := g.Decide(at(12), prev, in)
			// alpha 0.12: 1.00 + 0.12*0.10 = 1.012.
			So(d.State.Velocity, ShouldAlmostEqual, 1.012, 0.0001)
		})

		Convey("The displayed bucket holds inside the hysteresis band", func() {
			// Stable velocity 0.967 -> about 12 days gained; previous bucket 10.
			prev := prevState(0.967, 10, at(12).AddDate(0, 0, -1))
			v := 0.967
			in := raw(v)
			d := g.Decide(at(12), prev, in)
			So(d.Publish, ShouldBeTrue)
			// Exact 12.045 is within 5/2+3 = 5.5 of bucket 10: hold.
			So(d.State.DaysGainedBucket, ShouldEqual, 10)
		})

		Convey("The displayed bucket moves once drift exceeds the band", func() {
			prev := prevState(0.956, 10, at(12).AddDate(0, 0, -1))
			d := g.Decide(at(12), prev, raw(0.956))
			// Exact (1-0.956)*365 = 16.06, drift 6.06 > 5.5: requantize to 15.
			So(d.State.DaysGainedBucket, ShouldEqual, 15)
		})

		Convey("A pipeline version change forces a fresh publish", func() {
			prev := prevState(1.00, 0, at(3)) // published today, before cutoff
			in := raw(0.90)
			in.PipelineVersion = "v2"
			d := g.Decide(at(3), prev, in)

			Convey("Then cutoff and once-a-day rules are bypassed", func() {
				So(d.Publish, ShouldBeTrue)
				So(d.VersionReset, ShouldBeTrue)
				So(d.Reason, ShouldEqual, publish.ReasonVersionReset)
			})

			Convey("Then the old smoothed state does not anchor the new model", func() {
				So(d.State.Velocity, ShouldEqual, 0.90)
				So(d.WasShockCapped, ShouldBeFalse)
			})
		})
	})

	Convey("Given a gate with custom options", t, func() {
		g := publish.New(
			publish.WithCutoffHour(0),
			publish.WithShock(0.5, 0.3),
			publish.WithBucket(10, 0),
			publish.WithMinCompleteness(0),
		)

		Convey("Then the overridden policy applies", func() {
			in := raw(0.90)
			in.Completeness = 0.05
			d := g.Decide(at(1), nil, in)
			So(d.Publish, ShouldBeTrue)
			// (1-0.90)*365 = 36.5 -> nearest bucket of 10 is 40.
			So(d.State.DaysGainedBucket, ShouldEqual, 40)
		})
	})
}
