package archive

import "pun-archive/internal/model"

// GapDetector computes the date ranges missing from the archive.
type GapDetector struct {
	// LookbackDays is the window (ending at the horizon) fetched when the
	// archive is empty. Values below 1 mean one day.
	LookbackDays int
}

// Detect walks from the earliest covered date to horizon and returns the
// maximal runs of uncovered dates, ascending and disjoint. Covered dates
// after the horizon are ignored. The horizon itself may not be published yet;
// it is still part of the returned ranges.
func (g GapDetector) Detect(covered Index, horizon model.Date) []model.DateRange {
	start, ok := covered.Earliest()
	if !ok {
		return []model.DateRange{g.lookback(horizon)}
	}
	if start.After(horizon) {
		return nil
	}

	var out []model.DateRange
	var open *model.DateRange
	for d := start; !d.After(horizon); d = d.AddDays(1) {
		if covered.Contains(d) {
			if open != nil {
				out = append(out, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &model.DateRange{Start: d, End: d}
		} else {
			open.End = d
		}
	}
	if open != nil {
		out = append(out, *open)
	}
	return out
}

func (g GapDetector) lookback(horizon model.Date) model.DateRange {
	days := g.LookbackDays
	if days < 1 {
		days = 1
	}
	return model.DateRange{Start: horizon.AddDays(-(days - 1)), End: horizon}
}

// Chunk splits ranges longer than maxDays into consecutive pieces so each
// fetch stays within what the publisher serves in one download.
// maxDays below 1 returns the ranges unchanged.
func Chunk(ranges []model.DateRange, maxDays int) []model.DateRange {
	if maxDays < 1 {
		return ranges
	}
	var out []model.DateRange
	for _, r := range ranges {
		for start := r.Start; !start.After(r.End); start = start.AddDays(maxDays) {
			end := start.AddDays(maxDays - 1)
			if end.After(r.End) {
				end = r.End
			}
			out = append(out, model.DateRange{Start: start, End: end})
		}
	}
	return out
}
