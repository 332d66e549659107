// Package series unifies raw multi-provider wearable samples into one
// authoritative daily series per metric. When several providers report
// the same metric on the same day, exactly one is selected by the fixed
// source-priority order; the rest are retained as alternatives and never
// averaged.
package series

import (
	"sort"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/catalog"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Unify builds the authoritative daily series for one metric from raw
// provider samples. Output points are sorted by date ascending.
func Unify(cat *catalog.Catalog, metricType string, samples []model.WearableSample) model.MetricSeries {
	byDay := make(map[time.Time][]model.WearableSample)
	for _, s := range samples {
		day := s.Date.UTC().Truncate(24 * time.Hour)
		byDay[day] = append(byDay[day], model.WearableSample{Date: day, Value: s.Value, Source: s.Source})
	}

	points := make([]model.DailyPoint, 0, len(byDay))
	for day, group := range byDay {
		sort.SliceStable(group, func(i, j int) bool {
			ri, rj := cat.SourceRank(group[i].Source), cat.SourceRank(group[j].Source)
			if ri != rj {
				return ri < rj
			}
			return group[i].Source < group[j].Source
		})
		p := model.DailyPoint{
			Date:   day,
			Value:  group[0].Value,
			Source: group[0].Source,
		}
		if len(group) > 1 {
			p.Alternatives = group[1:]
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return model.MetricSeries{MetricType: metricType, Points: points}
}

// Window returns the points within the last n days ending at the series'
// most recent date, inclusive.
func Window(s model.MetricSeries, days int) []model.DailyPoint {
	if len(s.Points) == 0 {
		return nil
	}
	last := s.Points[len(s.Points)-1].Date
	cutoff := last.AddDate(0, 0, -(days - 1))
	var out []model.DailyPoint
	for _, p := range s.Points {
		if !p.Date.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// Between returns the points older than `newerThanDays` but within
// `olderThanDays` of the series' most recent date.
func Between(s model.MetricSeries, newerThanDays, olderThanDays int) []model.DailyPoint {
	if len(s.Points) == 0 {
		return nil
	}
	last := s.Points[len(s.Points)-1].Date
	newCutoff := last.AddDate(0, 0, -(newerThanDays - 1))
	oldCutoff := last.AddDate(0, 0, -(olderThanDays - 1))
	var out []model.DailyPoint
	for _, p := range s.Points {
		if p.Date.Before(newCutoff) && !p.Date.Before(oldCutoff) {
			out = append(out, p)
		}
	}
	return out
}

// Mean returns the arithmetic mean of the points' values, or 0 with ok
// false when empty.
func Mean(points []model.DailyPoint) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points)), true
}
