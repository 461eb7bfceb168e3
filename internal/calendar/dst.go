package calendar

import (
	"time"

	"pun-archive/internal/model"
)

// Italian civil time: CET in winter, CEST in summer.
var (
	standardZone = time.FixedZone("CET", 1*60*60)
	daylightZone = time.FixedZone("CEST", 2*60*60)
)

// Transitions holds the two DST switch dates of a year.
type Transitions struct {
	Year          int
	SpringForward model.Date // last Sunday of March
	FallBack      model.Date // last Sunday of October
}

// TransitionsFor computes the DST switch dates of year.
func TransitionsFor(year int) Transitions {
	return Transitions{
		Year:          year,
		SpringForward: lastSunday(year, time.March),
		FallBack:      lastSunday(year, time.October),
	}
}

// lastSunday walks back from the 31st; both March and October have 31 days.
func lastSunday(year int, month time.Month) model.Date {
	d := model.NewDate(year, month, 31)
	for d.Weekday() != time.Sunday {
		d = d.AddDays(-1)
	}
	return d
}

// HoursInDay returns how many market hours d has: 23, 24 or 25.
func HoursInDay(d model.Date) int {
	return TransitionsFor(d.Year).HoursIn(d)
}

func (t Transitions) HoursIn(d model.Date) int {
	switch d {
	case t.SpringForward:
		return 23
	case t.FallBack:
		return 25
	default:
		return 24
	}
}

// Resolution is the local wall-clock placement of a market hour.
type Resolution struct {
	// Local is the start of the hour with a fixed +01:00/+02:00 zone.
	Local     time.Time
	ClockHour int
	DST       bool
}

// Resolve places (date, hour ordinal) on the local timeline using the
// transitions of date's own year.
func Resolve(date model.Date, hour int) (Resolution, error) {
	return TransitionsFor(date.Year).Resolve(date, hour)
}

// Resolve places (date, hour ordinal) on the local timeline.
//
// Spring-forward day: ordinals 1-2 are clock 0-1 standard, ordinals 3-23 are
// clock ordinal-1 daylight. Fall-back day: ordinals 1-3 are clock 0-2
// daylight, ordinal 4 repeats clock 2 standard, ordinals 5-25 are clock
// ordinal-2 standard. Any other day: clock ordinal-1, daylight strictly
// between the two switch dates.
func (t Transitions) Resolve(date model.Date, hour int) (Resolution, error) {
	if date.Year != t.Year {
		return Resolution{}, &AmbiguousTimeError{
			Date:   date,
			Hour:   hour,
			Reason: "transition dates computed for a different year",
		}
	}
	if n := t.HoursIn(date); hour < 1 || hour > n {
		return Resolution{}, &InvalidHourError{Date: date, Hour: hour, Max: n}
	}

	var clock int
	var dst bool
	switch date {
	case t.SpringForward:
		clock, dst = hour-1, hour > 2
	case t.FallBack:
		switch {
		case hour <= 3:
			clock, dst = hour-1, true
		case hour == 4:
			clock, dst = 2, false
		default:
			clock, dst = hour-2, false
		}
	default:
		clock = hour - 1
		dst = date.After(t.SpringForward) && date.Before(t.FallBack)
	}

	zone := standardZone
	if dst {
		zone = daylightZone
	}
	return Resolution{
		Local:     time.Date(date.Year, date.Month, date.Day, clock, 0, 0, 0, zone),
		ClockHour: clock,
		DST:       dst,
	}, nil
}
