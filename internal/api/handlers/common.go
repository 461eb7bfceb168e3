package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pun-archive/internal/api/models"
	"pun-archive/internal/model"
)

// DatasetLoader reads the persisted hourly dataset.
type DatasetLoader interface {
	Load() ([]model.HourlyRecord, error)
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// parseOptionalDate parses a YYYY-MM-DD query value. An empty value is the
// zero Date. On failure the error response is written and ok is false.
func parseOptionalDate(c *gin.Context, field, value string) (model.Date, bool) {
	if strings.TrimSpace(value) == "" {
		return model.Date{}, true
	}
	d, err := model.ParseDate(value)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", fmt.Sprintf("%s must be in YYYY-MM-DD format", field))
		return model.Date{}, false
	}
	return d, true
}

func parseWindow(c *gin.Context, from, to string) (model.Date, model.Date, bool) {
	f, ok := parseOptionalDate(c, "from", from)
	if !ok {
		return f, model.Date{}, false
	}
	t, ok := parseOptionalDate(c, "to", to)
	if !ok {
		return f, t, false
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		respondError(c, http.StatusBadRequest, "INVALID_RANGE", "to must not be before from")
		return f, t, false
	}
	return f, t, true
}

// parseBands accepts "", "F1" or a comma-separated list like "F1,F2".
func parseBands(c *gin.Context, value string) ([]model.Band, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, true
	}
	var out []model.Band
	for _, part := range strings.Split(value, ",") {
		b := model.Band(strings.ToUpper(strings.TrimSpace(part)))
		if !b.Valid() {
			respondError(c, http.StatusBadRequest, "INVALID_BAND", fmt.Sprintf("unknown band %q (expected F1, F2 or F3)", part))
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}
