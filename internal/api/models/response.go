package models

import (
	"time"

	"pun-archive/internal/analysis"
	"pun-archive/internal/model"
)

// PricesResponse lists enriched records in (date, hour) order
type PricesResponse struct {
	Count   int                    `json:"count"`
	Records []model.EnrichedRecord `json:"records"`

	// Skipped counts stored records whose hour could not be placed on the clock.
	Skipped int `json:"skipped,omitempty"`
}

// GapsResponse lists the ranges a sync would download
type GapsResponse struct {
	Horizon model.Date        `json:"horizon"`
	Ranges  []model.DateRange `json:"ranges"`
	Days    int               `json:"days"`
}

// StatsResponse contains the band breakdown of the selected window
type StatsResponse struct {
	Summary analysis.Summary       `json:"summary"`
	Monthly []analysis.MonthlyBand `json:"monthly"`
	Peak    []analysis.ProfileCell `json:"peak_slots,omitempty"`
}

// ResolveResponse places one market hour on the local clock
type ResolveResponse struct {
	Date       model.Date `json:"civil_date"`
	Hour       int        `json:"hour_ordinal"`
	HoursInDay int        `json:"hours_in_day"`
	Local      time.Time  `json:"local_timestamp"`
	DST        bool       `json:"dst"`
	Band       model.Band `json:"band"`
}

// SyncResponse summarises a sync run
type SyncResponse struct {
	Horizon    model.Date        `json:"horizon"`
	Ranges     []model.DateRange `json:"ranges"`
	Failed     []FailedRange     `json:"failed,omitempty"`
	Added      int               `json:"added"`
	Conflicts  int               `json:"conflicts"`
	Invalid    int               `json:"invalid_records"`
	Unresolved int               `json:"unresolved_records,omitempty"`
	Incomplete []model.Date      `json:"incomplete_days,omitempty"`
	Artifacts  int               `json:"artifacts_written"`
	Total      int               `json:"total_records"`
	Persisted  bool              `json:"persisted"`
}

// FailedRange is a range that could not be downloaded
type FailedRange struct {
	Range model.DateRange `json:"range"`
	Error string          `json:"error"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
