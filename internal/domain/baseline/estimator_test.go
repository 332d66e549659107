package baseline_test

import (
	"testing"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/baseline"
	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestEstimator_Update(t *testing.T) {
	Convey("Given an estimator and a marker reference", t, func() {
		est := baseline.New()
		ref := catalog.BiomarkerRef{
			Key: "fasting_glucose", Unit: "mg/dL",
			RefLow: 65, RefHigh: 99, OptimalLow: 72, OptimalHigh: 90,
			Polarity: catalog.MidOptimal, WithinSubjectCV: 0.056,
		}

		Convey("When the first reading arrives with no prior", func() {
			next, info := est.Update(ref, nil, model.BiomarkerReading{
				BiomarkerKey: ref.Key, Value: 95, TestDate: day(0),
			})

			Convey("Then the posterior moves from the population midpoint toward the reading", func() {
				popMid := (ref.RefLow + ref.RefHigh) / 2
				So(next.PersonalMean, ShouldBeGreaterThan, popMid)
				So(next.PersonalMean, ShouldBeLessThan, 95)
				So(next.DrawCount, ShouldEqual, 1)
				So(next.Trend, ShouldEqual, model.TrendStable)
				So(info.Outlier, ShouldBeFalse)
			})

			Convey("Then the posterior SD is tighter than the seeded prior", func() {
				seedSD := (ref.RefHigh - ref.RefLow) / 4
				So(next.PersonalSD, ShouldBeLessThan, seedSD)
			})
		})

		Convey("When the same value repeats across draws", func() {
			var prior *model.PersonalBaseline
			var next model.PersonalBaseline
			for i := 0; i < 6; i++ {
				next, _ = est.Update(ref, prior, model.BiomarkerReading{
					BiomarkerKey: ref.Key, Value: 95, TestDate: day(i * 30),
				})
				prior = &next
			}

			Convey("Then the posterior converges on that value", func() {
				So(next.PersonalMean, ShouldAlmostEqual, 95, 1.0)
				So(next.DrawCount, ShouldEqual, 6)
			})

			Convey("Then the baseline is primary", func() {
				So(next.Primary(), ShouldBeTrue)
			})

			Convey("Then trend confidence has saturated", func() {
				So(next.TrendConfidence, ShouldEqual, 1.0)
			})
		})

		Convey("When a wild value arrives after an established baseline", func() {
			var prior *model.PersonalBaseline
			for i := 0; i < 4; i++ {
				b, _ := est.Update(ref, prior, model.BiomarkerReading{
					BiomarkerKey: ref.Key, Value: 90, TestDate: day(i * 30),
				})
				prior = &b
			}
			next, info := est.Update(ref, prior, model.BiomarkerReading{
				BiomarkerKey: ref.Key, Value: 200, TestDate: day(150),
			})

			Convey("Then it is flagged as an outlier but still incorporated", func() {
				So(info.Outlier, ShouldBeTrue)
				So(next.DrawCount, ShouldEqual, 5)
				So(next.PersonalMean, ShouldBeGreaterThan, prior.PersonalMean)
			})
		})

		Convey("When the posterior crosses the primary threshold", func() {
			var prior *model.PersonalBaseline
			var becamePrimary bool
			for i := 0; i < model.PrimaryDrawCount; i++ {
				b, info := est.Update(ref, prior, model.BiomarkerReading{
					BiomarkerKey: ref.Key, Value: 88, TestDate: day(i * 30),
				})
				prior = &b
				becamePrimary = info.BecamePrimary
			}

			Convey("Then the crossing draw reports BecamePrimary", func() {
				So(becamePrimary, ShouldBeTrue)
				So(prior.Primary(), ShouldBeTrue)
			})
		})
	})
}

func TestEstimator_TrendClassification(t *testing.T) {
	Convey("Given a lower-better marker with an established baseline", t, func() {
		est := baseline.New()
		ref := catalog.BiomarkerRef{
			Key: "hba1c", Unit: "%",
			RefLow: 4.0, RefHigh: 5.6, OptimalLow: 4.5, OptimalHigh: 5.2,
			Polarity: catalog.LowerBetter, WithinSubjectCV: 0.018,
		}
		prior := &model.PersonalBaseline{
			BiomarkerKey: ref.Key,
			PersonalMean: 5.6,
			PersonalSD:   0.15,
			DrawCount:    3,
			LastValue:    5.6,
			LastDate:     day(0),
		}

		Convey("When a much lower value moves the posterior down past the deadband", func() {
			next, _ := est.Update(ref, prior, model.BiomarkerReading{
				BiomarkerKey: ref.Key, Value: 4.4, TestDate: day(90),
			})
			So(next.Trend, ShouldEqual, model.TrendImproving)
		})

		Convey("When a much higher value moves the posterior up past the deadband", func() {
			next, _ := est.Update(ref, prior, model.BiomarkerReading{
				BiomarkerKey: ref.Key, Value: 7.2, TestDate: day(90),
			})
			So(next.Trend, ShouldEqual, model.TrendDeclining)
		})

		Convey("When the value barely moves the posterior", func() {
			next, _ := est.Update(ref, prior, model.BiomarkerReading{
				BiomarkerKey: ref.Key, Value: 5.65, TestDate: day(90),
			})
			So(next.Trend, ShouldEqual, model.TrendStable)
		})
	})
}
