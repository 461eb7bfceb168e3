// Package merge combines newly decoded hourly records with an existing dataset.
//
// The policy is first-write-wins: once a (date, hour) key has been accepted its
// price never changes through ingestion. A late feed carrying a different value
// for an accepted key is discarded and reported as a Conflict.
//
// Merge is a pure function over values. Callers that merge into a shared
// dataset from several goroutines must serialize the calls themselves.
package merge

import (
	"sort"

	"pun-archive/internal/model"
)

// Dataset is a set of hourly records, unique by key and sorted by
// (date, hour) ascending. The zero value is an empty dataset.
type Dataset struct {
	records []model.HourlyRecord
	byKey   map[model.Key]int
}

// Conflict is an incoming record whose key was already accepted with a
// different price. The existing value was kept.
type Conflict struct {
	Key      model.Key
	Existing float64
	Incoming float64
}

// Report describes what a merge did.
type Report struct {
	Added int
	// Unchanged counts incoming records identical to an accepted one.
	Unchanged  int
	Conflicts  []Conflict
	Violations []ContiguityViolation
}

// NewDataset builds a dataset from records in any order, applying the same
// first-write-wins policy as Merge.
func NewDataset(records []model.HourlyRecord) (Dataset, Report) {
	return Merge(Dataset{}, records)
}

// Merge returns the union of existing and incoming. existing is not modified.
// After the union the whole set is checked for ragged days; those are
// reported in Report.Violations and still included in the result.
func Merge(existing Dataset, incoming []model.HourlyRecord) (Dataset, Report) {
	var rep Report

	out := make([]model.HourlyRecord, len(existing.records), len(existing.records)+len(incoming))
	copy(out, existing.records)
	seen := make(map[model.Key]float64, len(out)+len(incoming))
	for _, r := range out {
		seen[r.Key()] = r.Price
	}

	for _, r := range incoming {
		k := r.Key()
		if prev, ok := seen[k]; ok {
			if prev == r.Price {
				rep.Unchanged++
			} else {
				rep.Conflicts = append(rep.Conflicts, Conflict{Key: k, Existing: prev, Incoming: r.Price})
			}
			continue
		}
		seen[k] = r.Price
		out = append(out, r)
		rep.Added++
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	ds := newSorted(out)
	rep.Violations = Validate(ds.records)
	return ds, rep
}

func newSorted(records []model.HourlyRecord) Dataset {
	byKey := make(map[model.Key]int, len(records))
	for i, r := range records {
		byKey[r.Key()] = i
	}
	return Dataset{records: records, byKey: byKey}
}

func (d Dataset) Len() int { return len(d.records) }

// Records returns a copy of the records in key order.
func (d Dataset) Records() []model.HourlyRecord {
	out := make([]model.HourlyRecord, len(d.records))
	copy(out, d.records)
	return out
}

func (d Dataset) Get(k model.Key) (model.HourlyRecord, bool) {
	i, ok := d.byKey[k]
	if !ok {
		return model.HourlyRecord{}, false
	}
	return d.records[i], true
}

// Between returns the records whose date falls in [from, to].
// A zero bound is open.
func (d Dataset) Between(from, to model.Date) []model.HourlyRecord {
	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(d.records), func(i int) bool { return !d.records[i].Date.Before(from) })
	}
	hi := len(d.records)
	if !to.IsZero() {
		hi = sort.Search(len(d.records), func(i int) bool { return d.records[i].Date.After(to) })
	}
	if lo >= hi {
		return nil
	}
	out := make([]model.HourlyRecord, hi-lo)
	copy(out, d.records[lo:hi])
	return out
}

// Span returns the first and last date of the dataset.
func (d Dataset) Span() (model.DateRange, bool) {
	if len(d.records) == 0 {
		return model.DateRange{}, false
	}
	return model.DateRange{Start: d.records[0].Date, End: d.records[len(d.records)-1].Date}, true
}
