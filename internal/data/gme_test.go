package data

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pun-archive/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testRange() model.DateRange {
	return model.DateRange{Start: model.MustParseDate("2024-05-07"), End: model.MustParseDate("2024-05-08")}
}

func TestClientFetch_RequestShape(t *testing.T) {
	payload := zipOf(t, map[string]string{"20240507MGPPrezzi.xml": dailyXML})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, downloadPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "20240507", q.Get("DataInizio"))
		assert.Equal(t, "20240508", q.Get("DataFine"))
		assert.Equal(t, "20240506", q.Get("Date"))
		assert.Equal(t, "MGP", q.Get("Mercato"))
		assert.Equal(t, "Prezzi", q.Get("Settore"))
		assert.Equal(t, "InizioFine", q.Get("FiltroDate"))
		assert.Equal(t, "12103", r.Header.Get("ModuleId"))
		assert.Equal(t, "custom", r.Header.Get("X-Extra"))
		assert.Contains(t, r.Header.Get("Referer"), refererPath)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Headers: map[string]string{"X-Extra": "custom"}}, quietLogger())
	body, err := c.Fetch(context.Background(), testRange())
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestClientFetch_StatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		code      string
		retryable bool
	}{
		{http.StatusForbidden, "FORBIDDEN", false},
		{http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", true},
		{http.StatusBadGateway, "API_ERROR", true},
		{http.StatusNotFound, "API_ERROR", false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(tc.status)
		}))
		c := NewClient(ClientConfig{BaseURL: srv.URL}, quietLogger())
		_, err := c.Fetch(context.Background(), testRange())
		srv.Close()

		var fe *FetchError
		require.True(t, errors.As(err, &fe), "status %d", tc.status)
		assert.Equal(t, tc.code, fe.Code)
		assert.Equal(t, tc.status, fe.StatusCode)
		assert.Equal(t, tc.retryable, fe.Retryable(), "status %d", tc.status)
		assert.Equal(t, testRange(), fe.Range)
		if tc.status == http.StatusTooManyRequests {
			assert.Equal(t, "30", fe.RetryAfter)
		}
	}
}

func TestClientFetch_HTMLBodyIsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>nessun dato</body></html>"))
	}))
	defer srv.Close()

	body, err := NewClient(ClientConfig{BaseURL: srv.URL}, quietLogger()).Fetch(context.Background(), testRange())
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestClientFetch_InvalidRange(t *testing.T) {
	c := NewClient(ClientConfig{}, quietLogger())
	_, err := c.Fetch(context.Background(), model.DateRange{Start: model.MustParseDate("2024-05-08"), End: model.MustParseDate("2024-05-07")})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "INVALID_RANGE", fe.Code)
	assert.False(t, fe.Retryable())
}

func TestClientFetch_CacheAvoidsSecondRequest(t *testing.T) {
	var hits int32
	payload := zipOf(t, map[string]string{"20240507MGPPrezzi.xml": dailyXML})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, CacheTTL: time.Minute}, quietLogger())
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), testRange())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientFetchYear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Anno2024.zip", r.URL.Query().Get("fileName"))
		_, _ = w.Write(zipOf(t, map[string]string{"readme.txt": "x"}))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ArchiveURL: srv.URL + "/download"}, quietLogger())
	body, err := c.FetchYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestClientFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(ClientConfig{BaseURL: srv.URL}, quietLogger()).Fetch(ctx, testRange())
	require.Error(t, err)
}
