package models

// PricesRequest filters GET /api/v1/prices. Dates are YYYY-MM-DD.
type PricesRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
	Band string `form:"band"` // F1, F2 or F3; empty means all
}

// StatsRequest filters GET /api/v1/stats
type StatsRequest struct {
	From    string `form:"from"`
	To      string `form:"to"`
	Band    string `form:"band"`
	Profile bool   `form:"profile"` // include the weekday x hour profile
	Limit   int    `form:"limit"`   // top profile cells, default 10
}

// GapsRequest represents GET /api/v1/gaps
type GapsRequest struct {
	Horizon string `form:"horizon"` // default: tomorrow in Europe/Rome
}

// ResolveRequest represents GET /api/v1/resolve. Hour is a pointer so that
// hour=0 reaches the resolver instead of failing the required check.
type ResolveRequest struct {
	Date string `form:"date" binding:"required"`
	Hour *int   `form:"hour" binding:"required"`
}

// SyncRequest is the optional body of POST /api/v1/sync
type SyncRequest struct {
	Horizon string `json:"horizon,omitempty"`
}
