package data

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pun-archive/internal/model"
)

// PricesSheet is the worksheet holding hourly prices in GME yearly workbooks.
const PricesSheet = "Prezzi-Prices"

// DecodeError is a payload entry that could not be decoded. Other entries of
// the same payload are unaffected.
type DecodeError struct {
	Artifact string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Artifact, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Artifact is one decoded document of a payload: a daily XML file or a
// workbook. Data holds the raw bytes so the caller can archive them.
type Artifact struct {
	Name    string
	Data    []byte
	Records []model.HourlyRecord
}

// Decode splits a fetched payload into artifacts. ZIP payloads are walked
// entry by entry; a bare XML document is decoded as a single artifact named
// name. An empty payload decodes to nothing.
func Decode(name string, payload []byte) ([]Artifact, []error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(payload, zipMagic) {
		recs, err := DecodeXML(bytes.NewReader(payload))
		if err != nil {
			return nil, []error{&DecodeError{Artifact: name, Err: err}}
		}
		return []Artifact{{Name: name, Data: payload, Records: recs}}, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, []error{&DecodeError{Artifact: name, Err: fmt.Errorf("invalid zip: %w", err)}}
	}

	var out []Artifact
	var errs []error
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entry := path.Base(f.Name)
		ext := strings.ToLower(path.Ext(entry))
		if ext != ".xml" && ext != ".xlsx" && ext != ".xls" {
			continue
		}
		raw, err := readEntry(f)
		if err != nil {
			errs = append(errs, &DecodeError{Artifact: entry, Err: err})
			continue
		}
		var recs []model.HourlyRecord
		if ext == ".xml" {
			recs, err = DecodeXML(bytes.NewReader(raw))
		} else {
			recs, err = DecodeWorkbook(bytes.NewReader(raw))
		}
		if err != nil {
			errs = append(errs, &DecodeError{Artifact: entry, Err: err})
			continue
		}
		out = append(out, Artifact{Name: entry, Data: raw, Records: recs})
	}
	return out, errs
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Records flattens the records of all artifacts.
func Records(artifacts []Artifact) []model.HourlyRecord {
	var out []model.HourlyRecord
	for _, a := range artifacts {
		out = append(out, a.Records...)
	}
	return out
}

// xmlPrices matches the GME daily price document:
//
//	<NewDataSet>
//	  <Prezzi><Data>20240507</Data><Mercato>MGP</Mercato><Ora>1</Ora><PUN>104,5</PUN>...</Prezzi>
//	</NewDataSet>
type xmlPrices struct {
	Rows []struct {
		Data    string `xml:"Data"`
		Mercato string `xml:"Mercato"`
		Ora     string `xml:"Ora"`
		PUN     string `xml:"PUN"`
	} `xml:"Prezzi"`
}

// DecodeXML reads the hourly PUN rows of a GME daily price document.
// Rows of markets other than MGP are ignored.
func DecodeXML(r io.Reader) ([]model.HourlyRecord, error) {
	var doc xmlPrices
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid price XML: %w", err)
	}
	out := make([]model.HourlyRecord, 0, len(doc.Rows))
	for i, row := range doc.Rows {
		if m := strings.TrimSpace(row.Mercato); m != "" && !strings.EqualFold(m, "MGP") {
			continue
		}
		rec, err := parseRow(row.Data, row.Ora, row.PUN)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeWorkbook reads a GME yearly workbook: the PricesSheet (or the first
// sheet when absent) with Date, Hour and PUN in the first three columns.
// Rows whose first cell is not a date, such as headers, are skipped.
func DecodeWorkbook(r io.Reader) ([]model.HourlyRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer f.Close()

	sheet := PricesSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var out []model.HourlyRecord
	for i, row := range rows {
		if len(row) < 3 {
			continue
		}
		if _, err := model.ParseDate(row[0]); err != nil {
			continue
		}
		rec, err := parseRow(row[0], row[1], row[2])
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(date, hour, price string) (model.HourlyRecord, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.HourlyRecord{}, err
	}
	h, err := strconv.Atoi(strings.TrimSpace(hour))
	if err != nil {
		return model.HourlyRecord{}, fmt.Errorf("invalid hour %q: %w", hour, err)
	}
	p, err := ParsePrice(price)
	if err != nil {
		return model.HourlyRecord{}, err
	}
	return model.HourlyRecord{Date: d, Hour: h, Price: p}, nil
}

// ParsePrice normalizes a locale-formatted price ("104,5", " 98.12 ") to a float.
// A string with both separators is read as "1.234,56" (dot for thousands).
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
