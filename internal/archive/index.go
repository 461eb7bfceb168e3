// Package archive inspects the local archive of daily price artifacts and
// works out which dates still have to be fetched.
package archive

import (
	"sort"

	"pun-archive/internal/merge"
	"pun-archive/internal/model"
)

// Index is the set of civil dates already covered by the archive.
// It is always recomputed from the artifacts, never persisted.
type Index map[model.Date]struct{}

func NewIndex(dates ...model.Date) Index {
	ix := make(Index, len(dates))
	for _, d := range dates {
		ix.Add(d)
	}
	return ix
}

func (ix Index) Add(d model.Date) { ix[d] = struct{}{} }

func (ix Index) Contains(d model.Date) bool {
	_, ok := ix[d]
	return ok
}

// AddRange marks every date of r as covered.
func (ix Index) AddRange(r model.DateRange) {
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		ix.Add(d)
	}
}

// Dates returns the covered dates in ascending order.
func (ix Index) Dates() []model.Date {
	out := make([]model.Date, 0, len(ix))
	for d := range ix {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Earliest returns the first covered date, or false for an empty index.
func (ix Index) Earliest() (model.Date, bool) {
	var first model.Date
	found := false
	for d := range ix {
		if !found || d.Before(first) {
			first, found = d, true
		}
	}
	return first, found
}

// IndexRecords builds an index from decoded records, counting a date as
// covered only when its hour ordinals run 1..HoursInDay without holes.
func IndexRecords(records []model.HourlyRecord) Index {
	return NewIndex(merge.CompleteDates(records)...)
}
