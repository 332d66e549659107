package series_test

import (
	"testing"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/series"
	. "github.com/smartystreets/goconvey/convey"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestUnify(t *testing.T) {
	Convey("Given raw samples from multiple providers", t, func() {
		cat := catalog.New()

		Convey("When two providers report the same day", func() {
			s := series.Unify(cat, "hrv", []model.WearableSample{
				{Date: day(0), Value: 55, Source: "oura"},
				{Date: day(0), Value: 62, Source: "whoop"},
			})

			Convey("Then the higher-priority provider wins", func() {
				So(s.Points, ShouldHaveLength, 1)
				So(s.Points[0].Value, ShouldEqual, 62)
				So(s.Points[0].Source, ShouldEqual, "whoop")
			})

			Convey("Then the loser is retained as an alternative, never averaged", func() {
				So(s.Points[0].Alternatives, ShouldHaveLength, 1)
				So(s.Points[0].Alternatives[0].Source, ShouldEqual, "oura")
				So(s.Points[0].Alternatives[0].Value, ShouldEqual, 55)
			})
		})

		Convey("When samples span several days out of order", func() {
			s := series.Unify(cat, "hrv", []model.WearableSample{
				{Date: day(2), Value: 60, Source: "whoop"},
				{Date: day(0), Value: 58, Source: "whoop"},
				{Date: day(1), Value: 59, Source: "whoop"},
			})

			Convey("Then points come back date ascending", func() {
				So(s.Points, ShouldHaveLength, 3)
				So(s.Points[0].Value, ShouldEqual, 58)
				So(s.Points[1].Value, ShouldEqual, 59)
				So(s.Points[2].Value, ShouldEqual, 60)
			})
		})

		Convey("When sub-day timestamps land on the same UTC day", func() {
			s := series.Unify(cat, "hrv", []model.WearableSample{
				{Date: day(0).Add(3 * time.Hour), Value: 50, Source: "whoop"},
				{Date: day(0).Add(21 * time.Hour), Value: 52, Source: "oura"},
			})

			Convey("Then they collapse into one daily point", func() {
				So(s.Points, ShouldHaveLength, 1)
				So(s.Points[0].Source, ShouldEqual, "whoop")
			})
		})

		Convey("When there are no samples", func() {
			s := series.Unify(cat, "hrv", nil)
			So(s.Points, ShouldBeEmpty)
			So(s.Span(), ShouldEqual, 0)
		})
	})
}

func TestWindows(t *testing.T) {
	Convey("Given a 28-day daily series", t, func() {
		cat := catalog.New()
		var samples []model.WearableSample
		for i := 0; i < 28; i++ {
			samples = append(samples, model.WearableSample{
				Date: day(i), Value: float64(i), Source: "whoop",
			})
		}
		s := series.Unify(cat, "hrv", samples)

		Convey("Then Window returns the trailing days inclusive", func() {
			w := series.Window(s, 7)
			So(w, ShouldHaveLength, 7)
			So(w[0].Value, ShouldEqual, 21)
			So(w[6].Value, ShouldEqual, 27)
		})

		Convey("Then Between returns the preceding slice", func() {
			b := series.Between(s, 7, 28)
			So(b, ShouldHaveLength, 21)
			So(b[0].Value, ShouldEqual, 0)
			So(b[20].Value, ShouldEqual, 20)
		})

		Convey("Then Mean averages the points", func() {
			m, ok := series.Mean(series.Window(s, 7))
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, 24)
		})

		Convey("Then Mean of nothing reports not ok", func() {
			_, ok := series.Mean(nil)
			So(ok, ShouldBeFalse)
		})

		Convey("Then Span covers the calendar range", func() {
			So(s.Span(), ShouldEqual, 28)
		})
	})
}
