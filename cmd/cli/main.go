// Command pun maintains the local PUN archive: sync missing days from GME,
// report gaps, export the dataset and summarise prices by band.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pun-archive/internal/config"
	"pun-archive/internal/data"
	"pun-archive/internal/ingest"
	"pun-archive/internal/metrics"
	"pun-archive/internal/model"
)

var (
	cfgPath  string
	envFiles []string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "pun",
	Short:         "Italian day-ahead (PUN) price archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(syncCmd, importCmd, gapsCmd, exportCmd, statsCmd, resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
	log *logrus.Logger
}

func loadApp() (*app, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return &app{cfg: cfg, log: cfg.Log.NewLogger()}, nil
}

func (a *app) store() data.CSVStore {
	return data.CSVStore{Path: a.cfg.Archive.DatasetPath}
}

func (a *app) client() *data.Client {
	return data.NewClient(a.cfg.GME.ClientConfig(), a.log)
}

// syncer builds a Syncer. The CLI is short-lived, so metrics go to a
// private registry that nobody scrapes.
func (a *app) syncer() *ingest.Syncer {
	m := metrics.NewIngest(prometheus.NewRegistry())
	return ingest.NewSyncer(a.client(), a.store(), a.cfg.SyncOptions(), a.log, m)
}

// dateFlag parses an optional YYYY-MM-DD flag value.
func dateFlag(name, value string) (model.Date, error) {
	if value == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return model.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
