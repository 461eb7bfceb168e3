// Package ingest runs a sync cycle: scan the archive, fetch the missing
// ranges, decode and enrich them, merge into the dataset and persist it.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pun-archive/internal/archive"
	"pun-archive/internal/data"
	"pun-archive/internal/enrich"
	"pun-archive/internal/merge"
	"pun-archive/internal/metrics"
	"pun-archive/internal/model"
)

// Fetcher downloads the raw payload of one date range.
type Fetcher interface {
	Fetch(ctx context.Context, r model.DateRange) ([]byte, error)
}

// Store loads and persists the merged dataset.
type Store interface {
	Load() ([]model.HourlyRecord, error)
	Save(records []model.EnrichedRecord) error
}

type Options struct {
	ArchiveDir   string
	LookbackDays int
	MaxRangeDays int
	Parallelism  int
	// Retries is the number of extra attempts for a retryable fetch failure.
	Retries      int
	RetryBackoff time.Duration
}

// ErrSyncInProgress is returned by Run and Import while another run holds
// the dataset.
var ErrSyncInProgress = errors.New("sync already in progress")

// Syncer coordinates sync runs. Only one Run or Import executes at a time.
// Within a run, fetches of different ranges are parallel and merges into the
// dataset are serialized.
type Syncer struct {
	fetcher Fetcher
	store   Store
	opts    Options
	log     *logrus.Logger
	metrics *metrics.Ingest

	running sync.Mutex
}

func NewSyncer(fetcher Fetcher, store Store, opts Options, logger *logrus.Logger, m *metrics.Ingest) *Syncer {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Syncer{fetcher: fetcher, store: store, opts: opts, log: logger, metrics: m}
}

// RangeFailure is a range whose fetch failed after retries.
type RangeFailure struct {
	Range model.DateRange
	Err   error
}

// RunReport is the outcome of a sync run. Partial success is normal: failed
// ranges and bad records sit next to whatever was merged.
type RunReport struct {
	Horizon        model.Date
	Ranges         []model.DateRange
	Failed         []RangeFailure
	DecodeErrors   []error
	InvalidRecords []enrich.RecordError
	Added          int
	Unchanged      int
	Conflicts      []merge.Conflict
	Violations     []merge.ContiguityViolation
	Artifacts      []string
	// Unresolved are stored records that cannot be placed on the clock. They
	// are persisted with empty derived columns.
	Unresolved     []enrich.RecordError
	Total          int
	Persisted      bool
}

// Gaps scans the archive and returns the ranges a run would fetch.
func (s *Syncer) Gaps(horizon model.Date) ([]model.DateRange, error) {
	ix, skipped, err := archive.ScanDir(s.opts.ArchiveDir)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		s.log.WithField("skipped", len(skipped)).Debugf("[Sync] Ignored archive entries without a date: %v", skipped)
	}
	gaps := archive.GapDetector{LookbackDays: s.opts.LookbackDays}.Detect(ix, horizon)
	return archive.Chunk(gaps, s.opts.MaxRangeDays), nil
}

// Run performs one sync cycle up to horizon (inclusive). It only returns an
// error when the dataset cannot be loaded or persisted; per-range and
// per-record problems are collected in the report. A call made while another
// run is active returns ErrSyncInProgress without touching the dataset.
func (s *Syncer) Run(ctx context.Context, horizon model.Date) (*RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	existing, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	ds, _ := merge.NewDataset(existing)

	ranges, err := s.Gaps(horizon)
	if err != nil {
		return nil, err
	}
	rep := &RunReport{Horizon: horizon, Ranges: ranges}
	s.log.WithFields(logrus.Fields{"horizon": horizon.String(), "ranges": len(ranges), "existing": ds.Len()}).
		Info("[Sync] Starting run")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			payload, err := s.fetch(gctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				rep.Failed = append(rep.Failed, RangeFailure{Range: r, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			ds = s.absorb(ds, payloadName(r), payload, rep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	sort.Slice(rep.Failed, func(i, j int) bool {
		return rep.Failed[i].Range.Start.Before(rep.Failed[j].Range.Start)
	})
	if err := s.finish(ds, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// Import merges a payload obtained outside the gap loop, such as a yearly
// archive or a file on disk, through the same decode, enrich and merge steps.
func (s *Syncer) Import(name string, payload []byte) (*RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	existing, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	ds, _ := merge.NewDataset(existing)
	rep := &RunReport{}
	ds = s.absorb(ds, name, payload, rep)
	if err := s.finish(ds, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// absorb decodes payload and merges it into ds. Callers serialize calls.
func (s *Syncer) absorb(ds merge.Dataset, name string, payload []byte, rep *RunReport) merge.Dataset {
	artifacts, decodeErrs := data.Decode(name, payload)
	s.metrics.AddDecodeErrors(len(decodeErrs))
	for _, err := range decodeErrs {
		s.log.WithField("payload", name).Warnf("[Sync] Skipped artifact: %v", err)
	}
	records := data.Records(artifacts)
	enriched, invalid := enrich.Records(records, nil)

	ds, mrep := merge.Merge(ds, enrich.Plain(enriched))
	rep.DecodeErrors = append(rep.DecodeErrors, decodeErrs...)
	rep.InvalidRecords = append(rep.InvalidRecords, invalid...)
	rep.Added += mrep.Added
	rep.Unchanged += mrep.Unchanged
	rep.Conflicts = append(rep.Conflicts, mrep.Conflicts...)

	written, err := s.archiveDays(artifacts, invalid)
	rep.Artifacts = append(rep.Artifacts, written...)
	if err != nil {
		s.log.WithField("payload", name).Errorf("[Sync] Failed to archive day artifacts: %v", err)
	}
	s.log.WithFields(logrus.Fields{
		"payload":   name,
		"records":   len(records),
		"added":     mrep.Added,
		"conflicts": len(mrep.Conflicts),
		"invalid":   len(invalid),
		"artifacts": len(written),
	}).Info("[Sync] Payload merged")
	return ds
}

// finish validates the merged set and persists it when something changed.
func (s *Syncer) finish(ds merge.Dataset, rep *RunReport) error {
	all := ds.Records()
	rep.Total = len(all)
	rep.Violations = merge.Validate(all)
	s.metrics.ObserveMerge(rep.Added, len(rep.Conflicts), len(rep.InvalidRecords), len(rep.Violations))
	for _, v := range rep.Violations {
		s.log.WithField("date", v.Date.String()).Warnf("[Sync] Incomplete day: %v", v)
	}
	for _, c := range rep.Conflicts {
		s.log.WithField("key", c.Key.String()).Warnf("[Sync] Kept existing price %v, discarded %v", c.Existing, c.Incoming)
	}

	enriched, unresolved := enrich.All(all, nil)
	rep.Unresolved = unresolved
	for _, e := range unresolved {
		s.log.WithField("key", e.Record.Key().String()).Warnf("[Sync] Stored record has no local time: %v", e.Err)
	}

	if rep.Added > 0 {
		if err := s.store.Save(enriched); err != nil {
			return fmt.Errorf("persist dataset: %w", err)
		}
		rep.Persisted = true
		s.metrics.MarkSuccess(time.Now())
	}

	s.log.WithFields(logrus.Fields{
		"added":     rep.Added,
		"total":     rep.Total,
		"failed":    len(rep.Failed),
		"persisted": rep.Persisted,
	}).Info("[Sync] Run finished")
	return nil
}

// fetch applies the retry policy: exponential backoff, only for failures the
// fetcher marks retryable.
func (s *Syncer) fetch(ctx context.Context, r model.DateRange) ([]byte, error) {
	backoff := retry.WithMaxRetries(uint64(s.opts.Retries), retry.NewExponential(s.opts.RetryBackoff))

	started := time.Now()
	var payload []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		body, err := s.fetcher.Fetch(ctx, r)
		if err == nil {
			payload = body
			return nil
		}
		if isRetryable(err) {
			s.log.WithFields(logrus.Fields{"range": r.String(), "attempt": attempt}).Warnf("[Sync] Fetch failed, retrying: %v", err)
			return retry.RetryableError(err)
		}
		return err
	})

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
		s.log.WithField("range", r.String()).Errorf("[Sync] Fetch failed after %d attempt(s): %v", attempt, err)
	case len(payload) == 0:
		result = metrics.ResultEmpty
		s.log.WithField("range", r.String()).Info("[Sync] Nothing published yet")
	}
	s.metrics.ObserveFetch(result, time.Since(started))
	return payload, err
}

func isRetryable(err error) bool {
	var fe *data.FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// archiveDays stores one artifact per civil date that the batch delivered
// completely. Single-day XML documents are kept verbatim; days that only
// came inside multi-day documents are written as day CSVs.
func (s *Syncer) archiveDays(artifacts []data.Artifact, invalid []enrich.RecordError) ([]string, error) {
	if s.opts.ArchiveDir == "" {
		return nil, nil
	}
	rejected := map[model.Date]struct{}{}
	for _, e := range invalid {
		rejected[e.Record.Date] = struct{}{}
	}
	records := data.Records(artifacts)
	complete := map[model.Date]struct{}{}
	for _, d := range merge.CompleteDates(records) {
		if _, bad := rejected[d]; !bad {
			complete[d] = struct{}{}
		}
	}

	var written []string
	done := map[model.Date]struct{}{}
	for _, a := range artifacts {
		dates := distinctDates(a.Records)
		if len(dates) != 1 || strings.ToLower(path.Ext(a.Name)) != ".xml" {
			continue
		}
		d := dates[0]
		if _, ok := complete[d]; !ok {
			continue
		}
		if _, dup := done[d]; dup {
			continue
		}
		p, err := data.SaveArtifact(s.opts.ArchiveDir, archive.DayArtifactName(d, ".xml"), a.Data)
		if err != nil {
			return written, err
		}
		written = append(written, p)
		done[d] = struct{}{}
	}

	byDate := map[model.Date][]model.HourlyRecord{}
	for _, r := range records {
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	for _, d := range merge.CompleteDates(records) {
		if _, ok := complete[d]; !ok {
			continue
		}
		if _, ok := done[d]; ok {
			continue
		}
		var buf bytes.Buffer
		if err := data.WritePlainCSV(&buf, byDate[d]); err != nil {
			return written, err
		}
		p, err := data.SaveArtifact(s.opts.ArchiveDir, archive.DayArtifactName(d, ".csv"), buf.Bytes())
		if err != nil {
			return written, err
		}
		written = append(written, p)
		done[d] = struct{}{}
	}
	return written, nil
}

func distinctDates(records []model.HourlyRecord) []model.Date {
	seen := map[model.Date]struct{}{}
	var out []model.Date
	for _, r := range records {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		out = append(out, r.Date)
	}
	return out
}

func payloadName(r model.DateRange) string {
	return fmt.Sprintf("MGP_Prezzi_%s_%s.zip", r.Start.Compact(), r.End.Compact())
}
