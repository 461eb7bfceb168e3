package model

import (
	"fmt"
	"time"
)

// HourlyRecord is one market hour as published by GME.
//
// Hour is the market's 1-based hour ordinal, not a clock hour: it runs 1..24 on
// a normal day, 1..23 on the spring-forward day and 1..25 on the fall-back day.
// Price is the PUN in EUR/MWh.
type HourlyRecord struct {
	Date  Date    `json:"civil_date"`
	Hour  int     `json:"hour_ordinal"`
	Price float64 `json:"price"`
}

// Key identifies a record inside a dataset.
type Key struct {
	Date Date
	Hour int
}

func (r HourlyRecord) Key() Key {
	return Key{Date: r.Date, Hour: r.Hour}
}

// Less orders keys by (date, hour) ascending.
func (k Key) Less(o Key) bool {
	if c := k.Date.Compare(o.Date); c != 0 {
		return c < 0
	}
	return k.Hour < o.Hour
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Date, k.Hour)
}

// Band is the regulatory time-of-use class (fascia) of an hour.
// Keep these values stable; they are written to CSV and returned by the API.
type Band string

const (
	BandF1 Band = "F1" // peak
	BandF2 Band = "F2" // mid
	BandF3 Band = "F3" // off-peak
)

// Bands lists every band in display order.
var Bands = []Band{BandF1, BandF2, BandF3}

func (b Band) Valid() bool {
	switch b {
	case BandF1, BandF2, BandF3:
		return true
	}
	return false
}

// EnrichedRecord is a record plus its derived local timestamp and band.
// LocalTime carries a fixed zone (+01:00 or +02:00) so it is unambiguous
// even inside the repeated hour of the fall-back day.
type EnrichedRecord struct {
	HourlyRecord
	LocalTime time.Time `json:"local_timestamp"`
	DST       bool      `json:"dst"`
	Band      Band      `json:"band"`
}

// DateRange is a closed interval [Start, End] of civil dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Days is the number of dates in the range, both ends included.
func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
