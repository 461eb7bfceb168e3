package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pun-archive/internal/data"
	"pun-archive/internal/metrics"
	"pun-archive/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// dayXML renders a GME daily document with hours 1..hours priced base+hour.
func dayXML(d model.Date, hours int, base float64) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" standalone="yes"?><NewDataSet>`)
	for h := 1; h <= hours; h++ {
		fmt.Fprintf(&b, "<Prezzi><Data>%s</Data><Mercato>MGP</Mercato><Ora>%d</Ora><PUN>%s</PUN></Prezzi>",
			d.Compact(), h, strings.Replace(fmt.Sprintf("%.2f", base+float64(h)), ".", ",", 1))
	}
	b.WriteString(`</NewDataSet>`)
	return b.String()
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

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []model.DateRange
	respond func(attempt int, r model.DateRange) ([]byte, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, r model.DateRange) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	n := len(f.calls)
	f.mu.Unlock()
	return f.respond(n, r)
}

type memStore struct {
	records []model.HourlyRecord
	saved   []model.EnrichedRecord
	saves   int
}

func (s *memStore) Load() ([]model.HourlyRecord, error) { return s.records, nil }

func (s *memStore) Save(records []model.EnrichedRecord) error {
	s.saves++
	s.saved = records
	s.records = make([]model.HourlyRecord, len(records))
	for i, r := range records {
		s.records[i] = r.HourlyRecord
	}
	return nil
}

func testOptions(dir string) Options {
	return Options{
		ArchiveDir:   dir,
		LookbackDays: 3,
		MaxRangeDays: 31,
		Parallelism:  2,
		Retries:      2,
		RetryBackoff: time.Millisecond,
	}
}

func TestRun_EmptyArchiveBootstrapsLookbackWindow(t *testing.T) {
	dir := t.TempDir()
	d7 := model.MustParseDate("2024-05-07")
	d8 := model.MustParseDate("2024-05-08")
	horizon := model.MustParseDate("2024-05-09")

	f := &fakeFetcher{respond: func(_ int, r model.DateRange) ([]byte, error) {
		assert.Equal(t, model.DateRange{Start: d7, End: horizon}, r)
		return zipOf(t, map[string]string{
			"20240507MGPPrezzi.xml": dayXML(d7, 24, 100),
			"20240508MGPPrezzi.xml": dayXML(d8, 24, 200),
		}), nil
	}}
	store := &memStore{}
	reg := prometheus.NewRegistry()
	s := NewSyncer(f, store, testOptions(dir), quietLogger(), metrics.NewIngest(reg))

	rep, err := s.Run(context.Background(), horizon)
	require.NoError(t, err)

	assert.Equal(t, []model.DateRange{{Start: d7, End: horizon}}, rep.Ranges)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, 48, rep.Added)
	assert.Equal(t, 48, rep.Total)
	assert.Empty(t, rep.Violations)
	assert.True(t, rep.Persisted)
	require.Len(t, store.saved, 48)
	assert.Equal(t, model.BandF3, store.saved[0].Band)

	require.Len(t, rep.Artifacts, 2)
	for _, name := range []string{"MGP_Prezzi_20240507.xml", "MGP_Prezzi_20240508.xml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// Second run: only the unpublished horizon day is still missing.
	f.respond = func(_ int, r model.DateRange) ([]byte, error) {
		assert.Equal(t, model.DateRange{Start: horizon, End: horizon}, r)
		return nil, nil
	}
	rep, err = s.Run(context.Background(), horizon)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Added)
	assert.False(t, rep.Persisted)
	assert.Equal(t, 1, store.saves)
}

func TestRun_IncompleteDayIsMergedButNotArchived(t *testing.T) {
	dir := t.TempDir()
	d := model.MustParseDate("2024-05-09")
	f := &fakeFetcher{respond: func(int, model.DateRange) ([]byte, error) {
		return []byte(dayXML(d, 20, 50)), nil
	}}
	opts := testOptions(dir)
	opts.LookbackDays = 1
	store := &memStore{}

	rep, err := NewSyncer(f, store, opts, quietLogger(), nil).Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Added)
	assert.Empty(t, rep.Artifacts)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, []int{21, 22, 23, 24}, rep.Violations[0].Missing)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_RetriesRetryableFailures(t *testing.T) {
	d := model.MustParseDate("2024-05-09")
	f := &fakeFetcher{respond: func(attempt int, r model.DateRange) ([]byte, error) {
		if attempt < 3 {
			return nil, &data.FetchError{Range: r, StatusCode: 503, Code: "API_ERROR"}
		}
		return []byte(dayXML(d, 24, 10)), nil
	}}
	opts := testOptions(t.TempDir())
	opts.LookbackDays = 1

	rep, err := NewSyncer(f, &memStore{}, opts, quietLogger(), nil).Run(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, f.calls, 3)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, 24, rep.Added)
}

func TestRun_DoesNotRetryPermanentFailures(t *testing.T) {
	d := model.MustParseDate("2024-05-09")
	f := &fakeFetcher{respond: func(_ int, r model.DateRange) ([]byte, error) {
		return nil, &data.FetchError{Range: r, StatusCode: 403, Code: "FORBIDDEN"}
	}}
	opts := testOptions(t.TempDir())
	opts.LookbackDays = 1
	store := &memStore{}

	rep, err := NewSyncer(f, store, opts, quietLogger(), nil).Run(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, f.calls, 1)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, model.DateRange{Start: d, End: d}, rep.Failed[0].Range)
	assert.False(t, rep.Persisted)
	assert.Zero(t, store.saves)
}

func TestRun_KeepsExistingPriceOnConflict(t *testing.T) {
	dir := t.TempDir()
	d := model.MustParseDate("2024-05-09")
	store := &memStore{records: []model.HourlyRecord{{Date: d, Hour: 1, Price: 1}}}
	f := &fakeFetcher{respond: func(int, model.DateRange) ([]byte, error) {
		return []byte(dayXML(d, 24, 10)), nil
	}}
	opts := testOptions(dir)
	opts.LookbackDays = 1

	rep, err := NewSyncer(f, store, opts, quietLogger(), nil).Run(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, rep.Conflicts, 1)
	assert.Equal(t, model.Key{Date: d, Hour: 1}, rep.Conflicts[0].Key)
	assert.Equal(t, 23, rep.Added)
	require.Len(t, store.records, 24)
	assert.Equal(t, 1.0, store.records[0].Price)
}

func TestRun_ChunksLongGaps(t *testing.T) {
	dir := t.TempDir()
	_, err := data.SaveArtifact(dir, "MGP_Prezzi_20240101.xml", []byte("x"))
	require.NoError(t, err)

	f := &fakeFetcher{respond: func(int, model.DateRange) ([]byte, error) { return nil, nil }}
	opts := testOptions(dir)
	opts.MaxRangeDays = 10

	rep, err := NewSyncer(f, &memStore{}, opts, quietLogger(), nil).Run(context.Background(), model.MustParseDate("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, []model.DateRange{
		{Start: model.MustParseDate("2024-01-02"), End: model.MustParseDate("2024-01-11")},
		{Start: model.MustParseDate("2024-01-12"), End: model.MustParseDate("2024-01-21")},
		{Start: model.MustParseDate("2024-01-22"), End: model.MustParseDate("2024-01-31")},
	}, rep.Ranges)
	assert.Len(t, f.calls, 3)
}

func TestDefaultHorizon(t *testing.T) {
	// 23:30 UTC on 31 Mar is already 1 Apr in Rome.
	now := time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, model.MustParseDate("2024-04-02"), DefaultHorizon(now))
	noon := time.Date(2024, 5, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, model.MustParseDate("2024-05-08"), DefaultHorizon(noon))
}

func TestImport_YearlyWorkbookStyleZip(t *testing.T) {
	dir := t.TempDir()
	d1 := model.MustParseDate("2023-10-29")
	d2 := model.MustParseDate("2023-10-30")
	payload := zipOf(t, map[string]string{
		"20231029MGPPrezzi.xml": dayXML(d1, 25, 90),
		"20231030MGPPrezzi.xml": dayXML(d2, 24, 90),
	})
	store := &memStore{}

	rep, err := NewSyncer(nil, store, testOptions(dir), quietLogger(), nil).Import("Anno2023.zip", payload)
	require.NoError(t, err)
	assert.Equal(t, 49, rep.Added)
	assert.Empty(t, rep.Violations)
	assert.Empty(t, rep.InvalidRecords)
	assert.True(t, rep.Persisted)
	assert.Len(t, rep.Artifacts, 2)

	last := store.saved[24]
	assert.Equal(t, 25, last.Hour)
	assert.Equal(t, "2023-10-29T23:00:00+01:00", last.LocalTime.Format(time.RFC3339))
}

func TestImport_RejectsImpossibleHours(t *testing.T) {
	d := model.MustParseDate("2024-03-31")
	store := &memStore{}
	rep, err := NewSyncer(nil, store, testOptions(t.TempDir()), quietLogger(), nil).Import("spring.xml", []byte(dayXML(d, 24, 0)))
	require.NoError(t, err)
	require.Len(t, rep.InvalidRecords, 1)
	assert.Equal(t, 24, rep.InvalidRecords[0].Record.Hour)
	assert.Equal(t, 23, rep.Added)
	assert.Empty(t, rep.Violations)
	assert.Len(t, rep.Artifacts, 0)
}

func TestRun_OnlyOneRunAtATime(t *testing.T) {
	d := model.MustParseDate("2024-05-09")
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := &fakeFetcher{respond: func(int, model.DateRange) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return []byte(dayXML(d, 24, 10)), nil
	}}
	opts := testOptions(t.TempDir())
	opts.LookbackDays = 1
	store := &memStore{}
	s := NewSyncer(f, store, opts, quietLogger(), nil)

	type result struct {
		rep *RunReport
		err error
	}
	first := make(chan result, 1)
	go func() {
		rep, err := s.Run(context.Background(), d)
		first <- result{rep, err}
	}()
	<-started

	rep, err := s.Run(context.Background(), d)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Nil(t, rep)
	_, err = s.Import("day.xml", []byte(dayXML(d, 24, 99)))
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, 24, res.rep.Added)
	assert.Equal(t, 1, store.saves)
	require.Len(t, store.records, 24)
	assert.Equal(t, 11.0, store.records[0].Price)

	// The lock is released once the run is over.
	rep, err = s.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, rep.Ranges)
	assert.Len(t, f.calls, 1)
}

func TestImport_PersistsStoredRecordsWithoutLocalTime(t *testing.T) {
	bad := model.HourlyRecord{Date: model.MustParseDate("2024-06-10"), Hour: 25, Price: 80}
	store := &memStore{records: []model.HourlyRecord{bad}}
	d := model.MustParseDate("2024-06-11")

	rep, err := NewSyncer(nil, store, testOptions(t.TempDir()), quietLogger(), nil).Import("day.xml", []byte(dayXML(d, 24, 0)))
	require.NoError(t, err)
	assert.Equal(t, 24, rep.Added)
	assert.Equal(t, 25, rep.Total)
	require.Len(t, rep.Unresolved, 1)
	assert.Equal(t, bad, rep.Unresolved[0].Record)

	require.Len(t, store.saved, 25)
	var kept bool
	for _, r := range store.saved {
		if r.HourlyRecord == bad {
			kept = true
			assert.True(t, r.LocalTime.IsZero())
			assert.Empty(t, r.Band)
		}
	}
	assert.True(t, kept, "unresolved row survives the save")
}
