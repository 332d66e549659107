package signals

import (
	"sort"

	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/internal/domain/series"
)

// Load computes per-metric training-load ratios (most recent 7-day mean
// over the preceding-window mean) for every load metric present and
// averages them into a single ratio. Returns 1.0 when no load metric has
// enough data.
func (e *Extractor) Load(byMetric map[string]model.MetricSeries) (float64, []model.LoadSignal) {
	var out []model.LoadSignal

	types := make([]string, 0, len(byMetric))
	for t := range byMetric {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		ref, ok := e.cat.Metric(t)
		if !ok || !ref.LoadMetric {
			continue
		}
		s := byMetric[t]

		recent, okRecent := series.Mean(series.Window(s, e.loadRecentDays))
		baseline, okBase := series.Mean(series.Between(s, e.loadRecentDays, e.loadBaselineDays))
		if !okRecent || !okBase || baseline <= 0 {
			continue
		}

		out = append(out, model.LoadSignal{
			MetricType:   t,
			Ratio:        recent / baseline,
			RecentMean:   recent,
			BaselineMean: baseline,
		})
	}

	if len(out) == 0 {
		return 1.0, nil
	}
	var sum float64
	for _, l := range out {
		sum += l.Ratio
	}
	return sum / float64(len(out)), out
}
