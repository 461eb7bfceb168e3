// Package enrich derives the local timestamp and tariff band of hourly records.
package enrich

import (
	"fmt"

	"pun-archive/internal/calendar"
	"pun-archive/internal/model"
)

// RecordError ties a resolution failure to the record that caused it.
type RecordError struct {
	Record model.HourlyRecord
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Record.Key(), e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Record resolves one record against the transitions of its own year.
func Record(r model.HourlyRecord, holidays calendar.HolidaySet) (model.EnrichedRecord, error) {
	return record(calendar.TransitionsFor(r.Date.Year), r, holidays)
}

func record(tr calendar.Transitions, r model.HourlyRecord, holidays calendar.HolidaySet) (model.EnrichedRecord, error) {
	res, err := tr.Resolve(r.Date, r.Hour)
	if err != nil {
		return model.EnrichedRecord{}, err
	}
	return model.EnrichedRecord{
		HourlyRecord: r,
		LocalTime:    res.Local,
		DST:          res.DST,
		Band:         calendar.Classify(r.Date, r.Hour, holidays),
	}, nil
}

// Records enriches each record independently. A record that cannot be
// resolved is left out of the result and reported; the rest of the batch is
// unaffected. A nil holidays set means the fixed holidays of every year
// present in records.
func Records(records []model.HourlyRecord, holidays calendar.HolidaySet) ([]model.EnrichedRecord, []RecordError) {
	return enrichAll(records, holidays, false)
}

// All is Records without dropping anything: the result has one entry per
// input, in input order. A record that cannot be resolved is still reported,
// and its entry carries a zero LocalTime and an empty Band.
func All(records []model.HourlyRecord, holidays calendar.HolidaySet) ([]model.EnrichedRecord, []RecordError) {
	return enrichAll(records, holidays, true)
}

func enrichAll(records []model.HourlyRecord, holidays calendar.HolidaySet, keep bool) ([]model.EnrichedRecord, []RecordError) {
	if holidays == nil {
		holidays = HolidaysOf(records)
	}
	transitions := map[int]calendar.Transitions{}
	out := make([]model.EnrichedRecord, 0, len(records))
	var errs []RecordError
	for _, r := range records {
		tr, ok := transitions[r.Date.Year]
		if !ok {
			tr = calendar.TransitionsFor(r.Date.Year)
			transitions[r.Date.Year] = tr
		}
		er, err := record(tr, r, holidays)
		if err != nil {
			errs = append(errs, RecordError{Record: r, Err: err})
			if keep {
				out = append(out, model.EnrichedRecord{HourlyRecord: r})
			}
			continue
		}
		out = append(out, er)
	}
	return out, errs
}

// HolidaysOf returns the fixed holidays of every year that appears in records.
func HolidaysOf(records []model.HourlyRecord) calendar.HolidaySet {
	years := map[int]struct{}{}
	for _, r := range records {
		years[r.Date.Year] = struct{}{}
	}
	list := make([]int, 0, len(years))
	for y := range years {
		list = append(list, y)
	}
	return calendar.HolidaysFor(list...)
}

// Plain strips enrichment, returning the underlying records.
func Plain(records []model.EnrichedRecord) []model.HourlyRecord {
	out := make([]model.HourlyRecord, len(records))
	for i, r := range records {
		out[i] = r.HourlyRecord
	}
	return out
}
