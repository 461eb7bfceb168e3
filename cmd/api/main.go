package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pun-archive/internal/api"
	"pun-archive/internal/config"
	"pun-archive/internal/data"
	"pun-archive/internal/ingest"
	"pun-archive/internal/metrics"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	syncEvery := flag.Duration("sync-every", 0, "Run a sync on this interval (0 = only via POST /api/v1/sync)")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()

	if cfg.API.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewIngest(reg)

	store := data.CSVStore{Path: cfg.Archive.DatasetPath}
	client := data.NewClient(cfg.GME.ClientConfig(), logger)
	syncer := ingest.NewSyncer(client, store, cfg.SyncOptions(), logger, m)

	router := api.NewRouter(api.Deps{
		Dataset:        store,
		Syncer:         syncer,
		Gatherer:       reg,
		Logger:         logger,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *syncEvery > 0 {
		go func() {
			ticker := time.NewTicker(*syncEvery)
			defer ticker.Stop()
			for {
				_, err := syncer.Run(ctx, ingest.DefaultHorizon(time.Now()))
				switch {
				case errors.Is(err, ingest.ErrSyncInProgress):
					logger.Info("[Sync] Skipped scheduled run, another run is active")
				case err != nil && ctx.Err() == nil:
					logger.Errorf("[Sync] Scheduled run failed: %v", err)
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("[API] Starting API server on %s (dataset %s, archive %s)", srv.Addr, cfg.Archive.DatasetPath, cfg.Archive.Dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("[API] Failed to start server: %v", err)
	}
}
