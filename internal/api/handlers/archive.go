package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pun-archive/internal/api/models"
	"pun-archive/internal/ingest"
	"pun-archive/internal/model"
)

// Syncer is the part of ingest.Syncer the API drives.
type Syncer interface {
	Gaps(horizon model.Date) ([]model.DateRange, error)
	Run(ctx context.Context, horizon model.Date) (*ingest.RunReport, error)
}

// ArchiveHandler reports archive gaps and triggers syncs
type ArchiveHandler struct {
	syncer Syncer
	now    func() time.Time
	log    *logrus.Logger
}

func NewArchiveHandler(s Syncer, now func() time.Time, logger *logrus.Logger) *ArchiveHandler {
	if now == nil {
		now = time.Now
	}
	return &ArchiveHandler{syncer: s, now: now, log: logger}
}

func (h *ArchiveHandler) horizon(c *gin.Context, value string) (model.Date, bool) {
	d, ok := parseOptionalDate(c, "horizon", value)
	if !ok {
		return d, false
	}
	if d.IsZero() {
		d = ingest.DefaultHorizon(h.now())
	}
	return d, true
}

// ListGaps handles GET /api/v1/gaps
func (h *ArchiveHandler) ListGaps(c *gin.Context) {
	var req models.GapsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	horizon, ok := h.horizon(c, req.Horizon)
	if !ok {
		return
	}
	ranges, err := h.syncer.Gaps(horizon)
	if err != nil {
		h.log.Errorf("[API] Failed to scan archive: %v", err)
		respondError(c, http.StatusInternalServerError, "ARCHIVE_UNAVAILABLE", "failed to scan archive")
		return
	}
	days := 0
	for _, r := range ranges {
		days += r.Days()
	}
	if ranges == nil {
		ranges = []model.DateRange{}
	}
	c.JSON(http.StatusOK, models.GapsResponse{Horizon: horizon, Ranges: ranges, Days: days})
}

// RunSync handles POST /api/v1/sync
func (h *ArchiveHandler) RunSync(c *gin.Context) {
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	horizon, ok := h.horizon(c, req.Horizon)
	if !ok {
		return
	}
	rep, err := h.syncer.Run(c.Request.Context(), horizon)
	if errors.Is(err, ingest.ErrSyncInProgress) {
		respondError(c, http.StatusConflict, "SYNC_IN_PROGRESS", "a sync run is already in progress")
		return
	}
	if err != nil {
		h.log.Errorf("[API] Sync failed: %v", err)
		respondError(c, http.StatusInternalServerError, "SYNC_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, SyncResponseOf(rep))
}

// SyncResponseOf converts a run report to its API form.
func SyncResponseOf(rep *ingest.RunReport) models.SyncResponse {
	out := models.SyncResponse{
		Horizon:    rep.Horizon,
		Ranges:     rep.Ranges,
		Added:      rep.Added,
		Conflicts:  len(rep.Conflicts),
		Invalid:    len(rep.InvalidRecords),
		Unresolved: len(rep.Unresolved),
		Artifacts:  len(rep.Artifacts),
		Total:      rep.Total,
		Persisted:  rep.Persisted,
	}
	if out.Ranges == nil {
		out.Ranges = []model.DateRange{}
	}
	for _, f := range rep.Failed {
		out.Failed = append(out.Failed, models.FailedRange{Range: f.Range, Error: f.Err.Error()})
	}
	for _, v := range rep.Violations {
		out.Incomplete = append(out.Incomplete, v.Date)
	}
	return out
}
