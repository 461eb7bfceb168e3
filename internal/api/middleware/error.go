package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pun-archive/internal/api/models"
)

// ErrorHandler middleware turns panics into a JSON 500
func ErrorHandler(log *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("path", c.Request.URL.Path).Errorf("[API] Recovered panic: %v", recovered)
		message := "An unexpected error occurred"
		if err, ok := recovered.(string); ok {
			message = err
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: message,
			},
		})
	})
}
