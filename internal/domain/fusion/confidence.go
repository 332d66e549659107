package fusion

import (
	"fmt"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// System confidence weighting: wearable volume 40, freshness 25, lab
// panel size 20, domain coverage 15. The score and its reasons are pure
// functions of the same inputs so a stored snapshot can reproduce them.
const (
	confVolumeMax    = 40
	confFreshnessMax = 25
	confPanelMax     = 20
	confCoverageMax  = 15

	confVolumeSaturationDays = 60.0
	confPanelSaturation      = 15.0
)

// ConfidenceInput aggregates the evidence counts behind one evaluation.
type ConfidenceInput struct {
	WearableDays    int       // distinct days of wearable data in the window
	NewestWearable  time.Time // zero when no wearable data
	LabMarkerCount  int
	DomainsScored   int
	DomainsTotal    int
	Now             time.Time
}

// SystemConfidence builds the 0-100 evaluation confidence score with its
// deterministic reasons.
func (f *Fuser) SystemConfidence(in ConfidenceInput) model.SystemConfidence {
	var (
		score   float64
		reasons []string
	)

	volume := ratio(float64(in.WearableDays), confVolumeSaturationDays) * confVolumeMax
	score += volume
	if in.WearableDays == 0 {
		reasons = append(reasons, "no wearable data in window")
	} else {
		reasons = append(reasons, fmt.Sprintf("%d days of wearable data", in.WearableDays))
	}

	if !in.NewestWearable.IsZero() {
		staleDays := in.Now.Sub(in.NewestWearable).Hours() / 24
		switch {
		case staleDays <= 2:
			score += confFreshnessMax
			reasons = append(reasons, "wearable data is current")
		case staleDays <= 7:
			score += confFreshnessMax / 2
			reasons = append(reasons, fmt.Sprintf("wearable data is %.0f days stale", staleDays))
		default:
			reasons = append(reasons, fmt.Sprintf("wearable data is %.0f days stale", staleDays))
		}
	}

	panel := ratio(float64(in.LabMarkerCount), confPanelSaturation) * confPanelMax
	score += panel
	if in.LabMarkerCount == 0 {
		reasons = append(reasons, "no lab panel on file")
	} else {
		reasons = append(reasons, fmt.Sprintf("%d lab markers on file", in.LabMarkerCount))
	}

	if in.DomainsTotal > 0 {
		coverage := float64(in.DomainsScored) / float64(in.DomainsTotal) * confCoverageMax
		score += coverage
		reasons = append(reasons, fmt.Sprintf("%d of %d domains scored", in.DomainsScored, in.DomainsTotal))
	}

	if score > 100 {
		score = 100
	}
	return model.SystemConfidence{Score: int(score + 0.5), Reasons: reasons}
}

func ratio(v, saturation float64) float64 {
	if saturation <= 0 {
		return 0
	}
	r := v / saturation
	if r > 1 {
		return 1
	}
	return r
}
