package ingest

import (
	"time"
	// Embedded zoneinfo so Europe/Rome resolves on hosts without a tz database.
	_ "time/tzdata"

	"pun-archive/internal/model"
)

// MarketLocation is the zone GME publishes in.
var MarketLocation = loadMarketLocation()

func loadMarketLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.FixedZone("CET", 60*60)
	}
	return loc
}

// DefaultHorizon is tomorrow's civil date in Italy: the day-ahead market
// publishes tomorrow's prices around midday.
func DefaultHorizon(now time.Time) model.Date {
	return model.DateOf(now.In(MarketLocation)).AddDays(1)
}
