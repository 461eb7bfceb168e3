package merge

import (
	"fmt"
	"sort"

	"pun-archive/internal/calendar"
	"pun-archive/internal/model"
)

// ContiguityViolation flags a date whose hour ordinals are not exactly
// 1..Expected. It is a data-quality warning attached to that date, usually the
// sign of a partial decode or a feed that is still being published.
type ContiguityViolation struct {
	Date       model.Date
	Expected   int
	Hours      int
	Missing    []int
	Duplicates []int
	Unexpected []int
}

func (v ContiguityViolation) Error() string {
	return fmt.Sprintf("%s: %d of %d hours (missing %v, duplicated %v, out of range %v)",
		v.Date, v.Hours, v.Expected, v.Missing, v.Duplicates, v.Unexpected)
}

// Validate checks every date present in records against the number of market
// hours that date has (23, 24 or 25). records may be in any order.
func Validate(records []model.HourlyRecord) []ContiguityViolation {
	counts := map[model.Date]map[int]int{}
	for _, r := range records {
		c, ok := counts[r.Date]
		if !ok {
			c = map[int]int{}
			counts[r.Date] = c
		}
		c[r.Hour]++
	}

	dates := make([]model.Date, 0, len(counts))
	for dt := range counts {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out []ContiguityViolation
	for _, dt := range dates {
		c := counts[dt]
		v := ContiguityViolation{Date: dt, Expected: calendar.HoursInDay(dt)}
		for h, n := range c {
			v.Hours += n
			if h < 1 || h > v.Expected {
				v.Unexpected = append(v.Unexpected, h)
			}
			if n > 1 {
				v.Duplicates = append(v.Duplicates, h)
			}
		}
		for h := 1; h <= v.Expected; h++ {
			if _, ok := c[h]; !ok {
				v.Missing = append(v.Missing, h)
			}
		}
		if len(v.Missing) == 0 && len(v.Duplicates) == 0 && len(v.Unexpected) == 0 {
			continue
		}
		sort.Ints(v.Duplicates)
		sort.Ints(v.Unexpected)
		out = append(out, v)
	}
	return out
}

// CompleteDates returns the dates of records that pass Validate.
func CompleteDates(records []model.HourlyRecord) []model.Date {
	bad := map[model.Date]struct{}{}
	for _, v := range Validate(records) {
		bad[v.Date] = struct{}{}
	}
	seen := map[model.Date]struct{}{}
	var out []model.Date
	for _, r := range records {
		if _, skip := bad[r.Date]; skip {
			continue
		}
		if _, dup := seen[r.Date]; dup {
			continue
		}
		seen[r.Date] = struct{}{}
		out = append(out, r.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
