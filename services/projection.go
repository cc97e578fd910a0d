package services

import (
	"math"

	"deal-analyzer/models"
)

// ProjectionSeries returns the year-indexed ROI curve to display. The
// engine's roi_projection is used as-is whenever it has usable values; only
// an empty or non-finite series is replaced by a straight line from 0 to
// roi_percent over the horizon.
func ProjectionSeries(result *models.DealAnalysis, horizonYears int) []float64 {
	if projectionUsable(result.ROIProjection) {
		out := make([]float64, len(result.ROIProjection))
		copy(out, result.ROIProjection)
		return out
	}

	years := horizonYears
	if years < 1 {
		years = 5
	}
	out := make([]float64, years)
	for y := 1; y <= years; y++ {
		out[y-1] = round2(result.ROIPercent * float64(y) / float64(years))
	}
	return out
}

func projectionUsable(series []float64) bool {
	if len(series) == 0 {
		return false
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
