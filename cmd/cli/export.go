package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pun-archive/internal/analysis"
	"pun-archive/internal/data"
	"pun-archive/internal/enrich"
	"pun-archive/internal/merge"
	"pun-archive/internal/model"
)

var (
	exportFormat string
	exportOut    string
	exportFrom   string
	exportTo     string
	exportBands  []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the enriched dataset as CSV or XLSX",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "Output path, - for stdout")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last date (YYYY-MM-DD)")
	exportCmd.Flags().StringSliceVar(&exportBands, "band", nil, "Only these bands (F1,F2,F3)")
}

func runExport(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	f, err := filterFlags(exportFrom, exportTo, exportBands)
	if err != nil {
		return err
	}
	records, err := loadEnriched(a, f)
	if err != nil {
		return err
	}

	if err := writeExport(exportOut, exportFormat, records); err != nil {
		return err
	}
	if exportOut != "-" {
		a.log.Infof("Wrote %d rows to %s", len(records), exportOut)
	}
	return nil
}

// writeExport writes records to path, or to stdout when path is "-". A file
// that fails to close is reported as a failed export.
func writeExport(path, format string, records []model.EnrichedRecord) (err error) {
	var write func(io.Writer, []model.EnrichedRecord) error
	switch strings.ToLower(format) {
	case "csv":
		write = data.WriteDatasetCSV
	case "xlsx":
		write = data.WriteXLSX
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	if path == "-" {
		return write(os.Stdout, records)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(file, records)
}

func filterFlags(from, to string, bands []string) (analysis.Filter, error) {
	var f analysis.Filter
	var err error
	if f.From, err = dateFlag("from", from); err != nil {
		return f, err
	}
	if f.To, err = dateFlag("to", to); err != nil {
		return f, err
	}
	for _, b := range bands {
		band := model.Band(strings.ToUpper(strings.TrimSpace(b)))
		if !band.Valid() {
			return f, fmt.Errorf("--band: unknown band %q", b)
		}
		f.Bands = append(f.Bands, band)
	}
	return f, nil
}

// loadEnriched reads the dataset, enriches the filtered window and logs the
// records that could not be placed on the clock.
func loadEnriched(a *app, f analysis.Filter) ([]model.EnrichedRecord, error) {
	records, err := a.store().Load()
	if err != nil {
		return nil, err
	}
	ds, _ := merge.NewDataset(records)
	enriched, bad := enrich.Records(ds.Between(f.From, f.To), nil)
	for _, e := range bad {
		a.log.Warnf("Skipping record: %v", e)
	}
	return f.Apply(enriched), nil
}
