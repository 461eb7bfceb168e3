package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pun-archive/internal/analysis"
	"pun-archive/internal/api/models"
	"pun-archive/internal/enrich"
	"pun-archive/internal/merge"
	"pun-archive/internal/model"
)

// PriceHandler serves the stored dataset and statistics over it
type PriceHandler struct {
	dataset DatasetLoader
	log     *logrus.Logger
}

func NewPriceHandler(dataset DatasetLoader, logger *logrus.Logger) *PriceHandler {
	return &PriceHandler{dataset: dataset, log: logger}
}

// load returns the enriched records of [from, to]. Records that fail to
// resolve are counted, not returned.
func (h *PriceHandler) load(c *gin.Context, from, to model.Date) ([]model.EnrichedRecord, int, bool) {
	records, err := h.dataset.Load()
	if err != nil {
		h.log.Errorf("[API] Failed to load dataset: %v", err)
		respondError(c, http.StatusInternalServerError, "DATASET_UNAVAILABLE", "failed to load dataset")
		return nil, 0, false
	}
	ds, _ := merge.NewDataset(records)
	enriched, bad := enrich.Records(ds.Between(from, to), nil)
	return enriched, len(bad), true
}

// ListPrices handles GET /api/v1/prices
func (h *PriceHandler) ListPrices(c *gin.Context) {
	var req models.PricesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	from, to, ok := parseWindow(c, req.From, req.To)
	if !ok {
		return
	}
	bands, ok := parseBands(c, req.Band)
	if !ok {
		return
	}

	enriched, skipped, ok := h.load(c, from, to)
	if !ok {
		return
	}
	out := analysis.Filter{Bands: bands}.Apply(enriched)
	c.JSON(http.StatusOK, models.PricesResponse{Count: len(out), Records: out, Skipped: skipped})
}

// GetStats handles GET /api/v1/stats
func (h *PriceHandler) GetStats(c *gin.Context) {
	var req models.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	from, to, ok := parseWindow(c, req.From, req.To)
	if !ok {
		return
	}
	bands, ok := parseBands(c, req.Band)
	if !ok {
		return
	}

	enriched, _, ok := h.load(c, from, to)
	if !ok {
		return
	}
	f := analysis.Filter{Bands: bands}
	resp := models.StatsResponse{
		Summary: analysis.Summarize(enriched, f),
		Monthly: analysis.MonthlyMeans(enriched, f),
	}
	if req.Profile {
		limit := req.Limit
		if limit <= 0 {
			limit = 10
		}
		ranked := analysis.RankByMean(analysis.WeeklyProfile(enriched, f))
		if limit > len(ranked) {
			limit = len(ranked)
		}
		resp.Peak = ranked[:limit]
	}
	c.JSON(http.StatusOK, resp)
}
