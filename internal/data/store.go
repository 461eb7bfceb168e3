package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pun-archive/internal/model"
)

// Dataset CSV columns. local_timestamp and band are present only when the
// dataset was written enriched.
var (
	plainHeader    = []string{"civil_date", "hour_ordinal", "price"}
	enrichedHeader = []string{"civil_date", "hour_ordinal", "price", "local_timestamp", "band"}
	// legacyHeader is the PUN-MGP.csv layout with YYYYMMDD dates.
	legacyHeader = []string{"Date", "Hour", "PUN"}
)

const datasetComma = ';'

// CSVStore persists the merged dataset as one semicolon-separated file.
type CSVStore struct {
	Path string
}

// Load reads every record in the file. A missing file is an empty dataset.
// Derived columns are ignored: they are recomputed, never trusted.
func (s CSVStore) Load() ([]model.HourlyRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadDatasetCSV(f)
}

// Save writes enriched records, replacing the file atomically.
func (s CSVStore) Save(records []model.EnrichedRecord) error {
	return writeAtomic(s.Path, func(w io.Writer) error {
		return WriteDatasetCSV(w, records)
	})
}

// SavePlain writes records without derived columns.
func (s CSVStore) SavePlain(records []model.HourlyRecord) error {
	return writeAtomic(s.Path, func(w io.Writer) error {
		return WritePlainCSV(w, records)
	})
}

func ReadDatasetCSV(r io.Reader) ([]model.HourlyRecord, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.Comma = datasetComma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !hasPrefixFold(header, plainHeader) && !hasPrefixFold(header, legacyHeader) {
		return nil, fmt.Errorf("unexpected dataset header %v", header)
	}

	var out []model.HourlyRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 fields, got %d", line, len(row))
		}
		rec, err := parseRow(row[0], row[1], row[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteDatasetCSV writes the enriched layout. A record without a LocalTime
// (one that could not be placed on the clock) gets empty derived columns.
func WriteDatasetCSV(w io.Writer, records []model.EnrichedRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = datasetComma
	if err := cw.Write(enrichedHeader); err != nil {
		return err
	}
	for _, r := range records {
		local := ""
		if !r.LocalTime.IsZero() {
			local = r.LocalTime.Format(time.RFC3339)
		}
		row := []string{
			r.Date.String(),
			strconv.Itoa(r.Hour),
			fmtPrice(r.Price),
			local,
			string(r.Band),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePlainCSV(w io.Writer, records []model.HourlyRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = datasetComma
	if err := cw.Write(plainHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Date.String(), strconv.Itoa(r.Hour), fmtPrice(r.Price)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveArtifact stores a raw per-day artifact under dir.
func SaveArtifact(dir, name string, body []byte) (string, error) {
	p := filepath.Join(dir, filepath.Base(name))
	err := writeAtomic(p, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
	return p, err
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fmtPrice(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func hasPrefixFold(row, want []string) bool {
	if len(row) < len(want) {
		return false
	}
	for i, w := range want {
		if !strings.EqualFold(strings.TrimSpace(row[i]), w) {
			return false
		}
	}
	return true
}

func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err == nil && string(buf) == "\xef\xbb\xbf" {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
