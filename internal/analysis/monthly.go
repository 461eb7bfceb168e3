package analysis

import (
	"sort"
	"time"

	"pun-archive/internal/model"
)

// MonthlyBand is the mean price of one band over one calendar month.
type MonthlyBand struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Band  model.Band `json:"band"`
	Count int        `json:"count"`
	Mean  float64    `json:"mean"`
}

type monthBand struct {
	year  int
	month time.Month
	band  model.Band
}

// MonthlyMeans groups the filtered records by civil month and band, ordered
// by month then band.
func MonthlyMeans(records []model.EnrichedRecord, f Filter) []MonthlyBand {
	sums := map[monthBand]float64{}
	counts := map[monthBand]int{}
	for _, r := range f.Apply(records) {
		k := monthBand{r.Date.Year, r.Date.Month, r.Band}
		sums[k] += r.Price
		counts[k]++
	}

	out := make([]MonthlyBand, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthlyBand{Year: k.year, Month: k.month, Band: k.band, Count: n, Mean: sums[k] / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Band < out[j].Band
	})
	return out
}
