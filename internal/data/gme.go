package data

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pun-archive/internal/model"
)

const (
	DefaultBaseURL    = "https://gme.mercatoelettrico.org"
	DefaultArchiveURL = "https://www.mercatoelettrico.org/it-it/Home/Esiti/Elettricita/MGP/Statistiche/DatiStorici/moduleId/10874/controller/GmeDatiStoriciItem/action/DownloadFile"

	downloadPath = "/DesktopModules/GmeDownload/API/ExcelDownload/downloadzipfile"
	refererPath  = "/en-us/Home/Results/Electricity/MGP/Download?valore=Prezzi"
)

// ClientConfig is the single configuration surface for every GME request.
type ClientConfig struct {
	BaseURL    string
	ArchiveURL string
	Timeout    time.Duration
	UserAgent  string
	// Headers are added to every request after the defaults, so they can
	// override them.
	Headers map[string]string
	// RatePerSecond limits outbound requests; 0 disables the limiter.
	RatePerSecond float64
	Burst         int
	// CacheTTL enables the in-memory response cache when > 0.
	CacheTTL time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       DefaultBaseURL,
		ArchiveURL:    DefaultArchiveURL,
		Timeout:       30 * time.Second,
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		RatePerSecond: 1,
		Burst:         1,
	}
}

// Client fetches raw MGP price payloads from GME. It never retries; retry
// policy belongs to the caller.
type Client struct {
	cfg     ClientConfig
	headers http.Header
	http    *http.Client
	limiter *rate.Limiter
	cache   *ResponseCache
	log     *logrus.Logger
}

// NewClient builds a client. Empty config fields fall back to DefaultClientConfig.
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = def.ArchiveURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Client{
		cfg:     cfg,
		headers: buildHeaders(cfg),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if cfg.CacheTTL > 0 {
		c.cache = NewResponseCache(cfg.CacheTTL)
	}
	return c
}

func buildHeaders(cfg ClientConfig) http.Header {
	h := http.Header{}
	h.Set("User-Agent", cfg.UserAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Referer", strings.TrimRight(cfg.BaseURL, "/")+refererPath)
	h.Set("ModuleId", "12103")
	h.Set("TabId", "1749")
	h.Set("UserId", "-1")
	for k, v := range cfg.Headers {
		h.Set(k, v)
	}
	return h
}

// FetchError is a failed GME request for one range.
type FetchError struct {
	Range      model.DateRange
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Range, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Range, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the request may succeed: transport
// failures, rate limiting and server errors.
func (e *FetchError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Code == "TRANSPORT_ERROR"
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// Fetch downloads the MGP price ZIP for r. A body that is not a ZIP or XML
// document (typically an HTML page while GME has nothing published yet)
// yields an empty payload, not an error.
func (c *Client) Fetch(ctx context.Context, r model.DateRange) ([]byte, error) {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return nil, &FetchError{Range: r, Code: "INVALID_RANGE", Message: "range start and end are required and ordered"}
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + downloadPath)
	if err != nil {
		return nil, &FetchError{Range: r, Code: "INVALID_RANGE", Message: "invalid base URL", Err: err}
	}
	q := u.Query()
	q.Set("DataInizio", r.Start.Compact())
	q.Set("DataFine", r.End.Compact())
	q.Set("Date", r.Start.AddDays(-1).Compact())
	q.Set("Mercato", "MGP")
	q.Set("Settore", "Prezzi")
	q.Set("FiltroDate", "InizioFine")
	u.RawQuery = q.Encode()

	return c.get(ctx, r, u.String())
}

// FetchYear downloads the yearly historical archive (Anno<year>.zip).
func (c *Client) FetchYear(ctx context.Context, year int) ([]byte, error) {
	r := model.DateRange{Start: model.NewDate(year, time.January, 1), End: model.NewDate(year, time.December, 31)}
	u, err := url.Parse(c.cfg.ArchiveURL)
	if err != nil {
		return nil, &FetchError{Range: r, Code: "INVALID_RANGE", Message: "invalid archive URL", Err: err}
	}
	q := u.Query()
	q.Set("fileName", fmt.Sprintf("Anno%d.zip", year))
	u.RawQuery = q.Encode()
	return c.get(ctx, r, u.String())
}

func (c *Client) get(ctx context.Context, r model.DateRange, target string) ([]byte, error) {
	fields := logrus.Fields{"range": r.String()}

	if body, ok := c.cache.Get(target); ok {
		c.log.WithFields(fields).Infof("[GME] Cache hit: %d bytes", len(body))
		return body, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Range: r, Code: "CANCELLED", Message: "rate limiter wait aborted", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Range: r, Code: "REQUEST_ERROR", Message: "failed to create request", Err: err}
	}
	req.Header = c.headers.Clone()

	c.log.WithFields(fields).Infof("[GME] Request: GET %s", req.URL.Path)
	started := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(started)
	if err != nil {
		c.log.WithFields(fields).Warnf("[GME] Request failed: %v (duration: %v)", err, duration)
		return nil, &FetchError{Range: r, Code: "TRANSPORT_ERROR", Message: "failed to execute request", Err: err}
	}
	defer resp.Body.Close()

	c.log.WithFields(fields).Infof("[GME] Response: %s (duration: %v)", resp.Status, duration)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Code: "FORBIDDEN",
			Message: "GME refused the request (session or anti-bot check)"}
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Code: "RATE_LIMIT_EXCEEDED",
			Message: fmt.Sprintf("rate limit exceeded, retry after: %s", retryAfter), RetryAfter: retryAfter}
	default:
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Code: "API_ERROR",
			Message: fmt.Sprintf("GME returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Range: r, StatusCode: resp.StatusCode, Code: "TRANSPORT_ERROR", Message: "failed to read body", Err: err}
	}
	if !looksLikePayload(body) {
		c.log.WithFields(fields).Warnf("[GME] Response is not a ZIP/XML payload (%d bytes, content-type %q); treating as empty",
			len(body), resp.Header.Get("Content-Type"))
		return nil, nil
	}

	c.cache.Set(target, body)
	return body, nil
}

var zipMagic = []byte("PK\x03\x04")

func looksLikePayload(body []byte) bool {
	if bytes.HasPrefix(body, zipMagic) {
		return true
	}
	trimmed := bytes.TrimLeft(body, "\xef\xbb\xbf \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<NewDataSet"))
}
