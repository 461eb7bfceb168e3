package calendar

import (
	"time"

	"pun-archive/internal/model"
)

// HolidaySet is a set of civil dates treated as public holidays.
type HolidaySet map[model.Date]struct{}

// fixedHolidays are the Italian national holidays with a fixed month/day.
// Easter and Easter Monday move every year and are not part of the list.
var fixedHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // Capodanno
	{time.January, 6},   // Epifania
	{time.April, 25},    // Liberazione
	{time.May, 1},       // Festa del Lavoro
	{time.June, 2},      // Festa della Repubblica
	{time.August, 15},   // Ferragosto
	{time.November, 1},  // Ognissanti
	{time.December, 8},  // Immacolata
	{time.December, 25}, // Natale
	{time.December, 26}, // Santo Stefano
}

// ItalianHolidays returns the ten fixed national holidays of year.
func ItalianHolidays(year int) HolidaySet {
	return HolidaysFor(year)
}

// HolidaysFor merges the fixed holidays of several years into one set.
func HolidaysFor(years ...int) HolidaySet {
	set := make(HolidaySet, len(fixedHolidays)*len(years))
	for _, y := range years {
		for _, h := range fixedHolidays {
			set[model.NewDate(y, h.month, h.day)] = struct{}{}
		}
	}
	return set
}

func (h HolidaySet) Contains(d model.Date) bool {
	_, ok := h[d]
	return ok
}

// Classify returns the tariff band of a market hour. Rules are evaluated in
// order and operate on the hour ordinal, not the clock hour:
//   - holiday: F3
//   - Monday-Friday: 8-19 F1, 7 and 20-23 F2, otherwise F3
//   - Saturday: 7-23 F2, otherwise F3
//   - Sunday: F3
func Classify(date model.Date, hour int, holidays HolidaySet) model.Band {
	if holidays.Contains(date) {
		return model.BandF3
	}
	switch wd := date.Weekday(); {
	case wd >= time.Monday && wd <= time.Friday:
		switch {
		case hour >= 8 && hour <= 19:
			return model.BandF1
		case hour == 7 || (hour >= 20 && hour <= 23):
			return model.BandF2
		default:
			return model.BandF3
		}
	case wd == time.Saturday:
		if hour >= 7 && hour <= 23 {
			return model.BandF2
		}
		return model.BandF3
	default:
		return model.BandF3
	}
}
