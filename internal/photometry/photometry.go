// Package photometry groups raw diaSource photometry rows for rendering:
// per-detection subsets keyed by diaSourceId, and per-band time series with
// masked (NaN-flux) rows excluded.
package photometry

import (
	"math"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
)

// Series is the photometry of one object in one band, as parallel slices in
// original record order.
type Series struct {
	Band    string
	MJD     []float64
	Flux    []float64
	FluxErr []float64
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.MJD)
}

// GroupByDiaSource buckets photometry rows by diaSourceId, preserving the
// record order within each bucket.
func GroupByDiaSource(records []lasair.DiaSource) map[int64][]lasair.DiaSource {
	grouped := make(map[int64][]lasair.DiaSource)
	for _, r := range records {
		grouped[r.DiaSourceID] = append(grouped[r.DiaSourceID], r)
	}
	return grouped
}

// BandSeries splits records into one Series per band. Band order follows
// first appearance in the input; within a band, point order follows the
// input order. Rows whose flux is NaN are dropped (masked measurements).
func BandSeries(records []lasair.DiaSource) []Series {
	index := make(map[string]int)
	var series []Series

	for _, r := range records {
		if math.IsNaN(r.PSFFlux) {
			continue
		}
		i, ok := index[r.Band]
		if !ok {
			i = len(series)
			index[r.Band] = i
			series = append(series, Series{Band: r.Band})
		}
		series[i].MJD = append(series[i].MJD, r.MidpointMJD)
		series[i].Flux = append(series[i].Flux, r.PSFFlux)
		series[i].FluxErr = append(series[i].FluxErr, r.PSFFluxErr)
	}

	return series
}
