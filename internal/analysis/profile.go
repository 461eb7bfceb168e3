package analysis

import (
	"sort"
	"time"

	"pun-archive/internal/model"
)

// ProfileCell is the mean price at one local clock hour of one weekday.
type ProfileCell struct {
	Weekday time.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`
	Count   int          `json:"count"`
	Mean    float64      `json:"mean"`
}

// WeeklyProfile builds the weekday x clock-hour mean price grid. Cells are
// keyed by the local wall-clock hour, so on a fall-back day both 02:00
// hours land in the same cell.
func WeeklyProfile(records []model.EnrichedRecord, f Filter) []ProfileCell {
	type key struct {
		wd   time.Weekday
		hour int
	}
	sums := map[key]float64{}
	counts := map[key]int{}
	for _, r := range f.Apply(records) {
		k := key{r.Date.Weekday(), r.LocalTime.Hour()}
		sums[k] += r.Price
		counts[k]++
	}
	out := make([]ProfileCell, 0, len(counts))
	for k, n := range counts {
		out = append(out, ProfileCell{Weekday: k.wd, Hour: k.hour, Count: n, Mean: sums[k] / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// RankByMean returns the cells sorted by descending mean price, the most
// expensive slots of the week first. The input is not modified.
func RankByMean(cells []ProfileCell) []ProfileCell {
	out := make([]ProfileCell, len(cells))
	copy(out, cells)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Mean > out[j].Mean
	})
	return out
}
