package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pun-archive/internal/api/models"
	"pun-archive/internal/calendar"
	"pun-archive/internal/enrich"
	"pun-archive/internal/model"
)

// Resolve handles GET /api/v1/resolve
func Resolve(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "date must be in YYYY-MM-DD format")
		return
	}

	rec := model.HourlyRecord{Date: date, Hour: *req.Hour}
	er, err := enrich.Record(rec, calendar.ItalianHolidays(date.Year))
	if err != nil {
		var ih *calendar.InvalidHourError
		if errors.As(err, &ih) {
			respondError(c, http.StatusBadRequest, "INVALID_HOUR", err.Error())
			return
		}
		respondError(c, http.StatusUnprocessableEntity, "UNRESOLVABLE_HOUR", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.ResolveResponse{
		Date:       date,
		Hour:       *req.Hour,
		HoursInDay: calendar.HoursInDay(date),
		Local:      er.LocalTime,
		DST:        er.DST,
		Band:       er.Band,
	})
}
