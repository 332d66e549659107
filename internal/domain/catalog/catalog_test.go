package catalog_test

import (
	"testing"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCatalog_Lookups(t *testing.T) {
	Convey("Given the default catalog", t, func() {
		cat := catalog.New()

		Convey("Then known biomarkers resolve", func() {
			ref, ok := cat.Biomarker("fasting_glucose")
			So(ok, ShouldBeTrue)
			So(ref.Key, ShouldEqual, "fasting_glucose")
			So(ref.RefHigh, ShouldBeGreaterThan, ref.RefLow)
		})

		Convey("Then unknown biomarkers do not resolve", func() {
			_, ok := cat.Biomarker("made_up_marker")
			So(ok, ShouldBeFalse)
		})

		Convey("Then known metrics resolve", func() {
			ref, ok := cat.Metric("hrv")
			So(ok, ShouldBeTrue)
			So(ref.Polarity, ShouldEqual, catalog.HigherBetter)
			So(ref.MinWindowDays, ShouldBeGreaterThan, 0)
		})

		Convey("Then domains and systems are fixed", func() {
			So(cat.Domains(), ShouldHaveLength, 5)
			So(cat.Systems(), ShouldHaveLength, 4)
		})

		Convey("Then system membership follows the tables", func() {
			So(cat.MetricInSystem("vo2max", catalog.SystemCardiovascular), ShouldBeTrue)
			So(cat.MetricInSystem("vo2max", catalog.SystemMetabolic), ShouldBeFalse)
			So(cat.BiomarkerInSystem("hba1c", catalog.SystemMetabolic), ShouldBeTrue)
		})
	})
}

func TestCatalog_SourceRank(t *testing.T) {
	Convey("Given the default source priority", t, func() {
		cat := catalog.New()

		Convey("Then configured providers rank in order", func() {
			So(cat.SourceRank("whoop"), ShouldBeLessThan, cat.SourceRank("oura"))
			So(cat.SourceRank("oura"), ShouldBeLessThan, cat.SourceRank("manual"))
		})

		Convey("Then unknown providers rank after every configured one", func() {
			So(cat.SourceRank("mystery_band"), ShouldBeGreaterThan, cat.SourceRank("manual"))
		})
	})
}

func TestCatalog_ZoneScore(t *testing.T) {
	Convey("Given a marker with an optimal band inside its reference range", t, func() {
		cat := catalog.New()
		ref := catalog.BiomarkerRef{
			Key:         "test_marker",
			RefLow:      50,
			RefHigh:     150,
			OptimalLow:  80,
			OptimalHigh: 120,
			Polarity:    catalog.MidOptimal,
		}

		Convey("Values inside the optimal band score 100", func() {
			So(cat.ZoneScore(ref, 80), ShouldEqual, 100)
			So(cat.ZoneScore(ref, 100), ShouldEqual, 100)
			So(cat.ZoneScore(ref, 120), ShouldEqual, 100)
		})

		Convey("Values at the reference limit score 40", func() {
			So(cat.ZoneScore(ref, 50), ShouldAlmostEqual, 40, 0.001)
			So(cat.ZoneScore(ref, 150), ShouldAlmostEqual, 40, 0.001)
		})

		Convey("Values between optimal edge and reference limit fall linearly", func() {
			// Halfway between optimal edge 120 and ref limit 150.
			So(cat.ZoneScore(ref, 135), ShouldAlmostEqual, 70, 0.001)
		})

		Convey("Values beyond the reference limit keep falling toward 0", func() {
			score := cat.ZoneScore(ref, 175)
			So(score, ShouldBeLessThan, 40)
			So(score, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("Values far beyond the reference limit floor at 0", func() {
			So(cat.ZoneScore(ref, 1000), ShouldEqual, 0)
		})
	})
}

func TestRecencyWeight(t *testing.T) {
	Convey("Given the fixed recency steps", t, func() {
		So(catalog.RecencyWeight(0), ShouldEqual, 1.0)
		So(catalog.RecencyWeight(14), ShouldEqual, 1.0)
		So(catalog.RecencyWeight(15), ShouldEqual, 0.85)
		So(catalog.RecencyWeight(30), ShouldEqual, 0.85)
		So(catalog.RecencyWeight(45), ShouldEqual, 0.7)
		So(catalog.RecencyWeight(75), ShouldEqual, 0.5)
		So(catalog.RecencyWeight(120), ShouldEqual, 0.3)
		So(catalog.RecencyWeight(365), ShouldEqual, 0.15)
	})
}
