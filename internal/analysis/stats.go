// Package analysis computes price statistics over enriched PUN records.
package analysis

import (
	"math"
	"sort"

	"pun-archive/internal/model"
)

// PriceStats summarises a set of hourly prices in €/MWh.
type PriceStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	P05    float64 `json:"p05"`
	P95    float64 `json:"p95"`
	Spread float64 `json:"spread_p95_p05"`
}

func ComputeStats(prices []float64) PriceStats {
	s := PriceStats{}
	if len(prices) == 0 {
		return s
	}
	vals := make([]float64, len(prices))
	copy(vals, prices)
	sort.Float64s(vals)

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	s.Count = len(vals)
	s.Min = vals[0]
	s.Max = vals[len(vals)-1]
	s.Mean = sum / float64(len(vals))
	s.P05 = percentileSorted(vals, 0.05)
	s.P95 = percentileSorted(vals, 0.95)
	s.Spread = s.P95 - s.P05
	return s
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Filter selects records by civil date window and band. Zero dates are open
// bounds; an empty Bands list matches every band.
type Filter struct {
	From  model.Date
	To    model.Date
	Bands []model.Band
}

func (f Filter) Match(r model.EnrichedRecord) bool {
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	if len(f.Bands) == 0 {
		return true
	}
	for _, b := range f.Bands {
		if r.Band == b {
			return true
		}
	}
	return false
}

func (f Filter) Apply(records []model.EnrichedRecord) []model.EnrichedRecord {
	out := make([]model.EnrichedRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

type BandStats struct {
	Band model.Band `json:"band"`
	PriceStats
}

// Summary is the band breakdown of a filtered record set. Bands always lists
// F1, F2, F3 in that order, with zero stats for bands without records.
type Summary struct {
	From    model.Date  `json:"from"`
	To      model.Date  `json:"to"`
	Overall PriceStats  `json:"overall"`
	Bands   []BandStats `json:"bands"`
}

func Summarize(records []model.EnrichedRecord, f Filter) Summary {
	sel := f.Apply(records)
	out := Summary{}

	all := make([]float64, 0, len(sel))
	byBand := map[model.Band][]float64{}
	for i, r := range sel {
		if i == 0 || r.Date.Before(out.From) {
			out.From = r.Date
		}
		if i == 0 || r.Date.After(out.To) {
			out.To = r.Date
		}
		all = append(all, r.Price)
		byBand[r.Band] = append(byBand[r.Band], r.Price)
	}
	out.Overall = ComputeStats(all)
	for _, b := range model.Bands {
		out.Bands = append(out.Bands, BandStats{Band: b, PriceStats: ComputeStats(byBand[b])})
	}
	return out
}
