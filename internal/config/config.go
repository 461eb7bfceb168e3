package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"pun-archive/internal/data"
	"pun-archive/internal/ingest"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Archive ArchiveConfig `yaml:"archive"`
	GME     GMEConfig     `yaml:"gme"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
}

type ArchiveConfig struct {
	// Dir holds one raw artifact per ingested civil date.
	Dir string `yaml:"dir"`
	// DatasetPath is the merged CSV dataset.
	DatasetPath string `yaml:"dataset_path"`
	// LookbackDays is fetched when the archive is empty.
	LookbackDays int `yaml:"lookback_days"`
	// MaxRangeDays splits long gaps into several downloads; 0 = no split.
	MaxRangeDays int `yaml:"max_range_days"`
}

type GMEConfig struct {
	BaseURL       string            `yaml:"base_url"`
	ArchiveURL    string            `yaml:"archive_url"`
	Timeout       time.Duration     `yaml:"timeout"`
	UserAgent     string            `yaml:"user_agent"`
	Headers       map[string]string `yaml:"headers"`
	RatePerSecond float64           `yaml:"rate_per_second"`
	Burst         int               `yaml:"burst"`
	Parallelism   int               `yaml:"parallelism"`
	Retries       int               `yaml:"retries"`
	RetryBackoff  time.Duration     `yaml:"retry_backoff"`
	// CacheTTL enables the in-memory response cache (development only).
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type APIConfig struct {
	Port           string   `yaml:"port"`
	Env            string   `yaml:"env"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Defaults returns a complete configuration.
func Defaults() Config {
	return Config{
		Archive: ArchiveConfig{
			Dir:          "./data/archive",
			DatasetPath:  "./data/PUN-MGP.csv",
			LookbackDays: 30,
			MaxRangeDays: 31,
		},
		GME: GMEConfig{
			BaseURL:       data.DefaultBaseURL,
			ArchiveURL:    data.DefaultArchiveURL,
			Timeout:       30 * time.Second,
			RatePerSecond: 1,
			Burst:         1,
			Parallelism:   2,
			Retries:       3,
			RetryBackoff:  2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		API: APIConfig{Port: "8080", Env: "development", AllowedOrigins: []string{"*"}},
	}
}

// Load reads path (optional: empty means defaults only), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked overlays the YAML file on Defaults without validating.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	c := Defaults()
	if path == "" {
		return &c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &c, nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PUN_ARCHIVE_DIR"); v != "" {
		c.Archive.Dir = v
	}
	if v := getenv("PUN_DATASET_PATH"); v != "" {
		c.Archive.DatasetPath = v
	}
	if v := getenv("PUN_LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUN_LOOKBACK_DAYS: %w", err)
		}
		c.Archive.LookbackDays = n
	}
	if v := getenv("PUN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("GME_BASE_URL"); v != "" {
		c.GME.BaseURL = v
	}
	if v := getenv("API_PORT"); v != "" {
		c.API.Port = v
	}
	if v := getenv("API_ENV"); v != "" {
		c.API.Env = v
	}
	if v := getenv("API_ALLOWED_ORIGINS"); v != "" {
		c.API.AllowedOrigins = splitList(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Archive.Dir) == "" {
		return errors.New("archive.dir is required")
	}
	if strings.TrimSpace(c.Archive.DatasetPath) == "" {
		return errors.New("archive.dataset_path is required")
	}
	if c.Archive.LookbackDays < 1 {
		return errors.New("archive.lookback_days must be >= 1")
	}
	if c.Archive.MaxRangeDays < 0 {
		return errors.New("archive.max_range_days must be >= 0")
	}
	if c.GME.Parallelism < 1 {
		return errors.New("gme.parallelism must be >= 1")
	}
	if c.GME.Retries < 0 {
		return errors.New("gme.retries must be >= 0")
	}
	if c.GME.RatePerSecond < 0 {
		return errors.New("gme.rate_per_second must be >= 0")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level invalid: %w", err)
	}
	return nil
}

// ClientConfig maps the gme section onto the fetch client configuration.
func (g GMEConfig) ClientConfig() data.ClientConfig {
	return data.ClientConfig{
		BaseURL:       g.BaseURL,
		ArchiveURL:    g.ArchiveURL,
		Timeout:       g.Timeout,
		UserAgent:     g.UserAgent,
		Headers:       g.Headers,
		RatePerSecond: g.RatePerSecond,
		Burst:         g.Burst,
		CacheTTL:      g.CacheTTL,
	}
}

// SyncOptions maps the archive and gme sections onto the sync run options.
func (c *Config) SyncOptions() ingest.Options {
	return ingest.Options{
		ArchiveDir:   c.Archive.Dir,
		LookbackDays: c.Archive.LookbackDays,
		MaxRangeDays: c.Archive.MaxRangeDays,
		Parallelism:  c.GME.Parallelism,
		Retries:      c.GME.Retries,
		RetryBackoff: c.GME.RetryBackoff,
	}
}

// NewLogger builds the process logger from the log section.
func (l LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
