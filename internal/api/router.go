// Package api exposes the price archive over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pun-archive/internal/api/handlers"
	"pun-archive/internal/api/middleware"
)

type Deps struct {
	Dataset        handlers.DatasetLoader
	Syncer         handlers.Syncer
	Gatherer       prometheus.Gatherer
	Logger         *logrus.Logger
	AllowedOrigins []string
	Now            func() time.Time
}

// NewRouter wires middleware, health, metrics and the v1 routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler(d.Logger))
	router.Use(middleware.CORS(d.AllowedOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	prices := handlers.NewPriceHandler(d.Dataset, d.Logger)
	archive := handlers.NewArchiveHandler(d.Syncer, d.Now, d.Logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/prices", prices.ListPrices)
		v1.GET("/stats", prices.GetStats)
		v1.GET("/gaps", archive.ListGaps)
		v1.POST("/sync", archive.RunSync)
		v1.GET("/resolve", handlers.Resolve)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
