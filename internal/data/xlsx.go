package data

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"pun-archive/internal/model"
)

const exportSheet = "PUN"

// WriteXLSX exports enriched records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []model.EnrichedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	header := []any{"civil_date", "hour_ordinal", "price", "local_timestamp", "band"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range records {
		row := []any{r.Date.String(), r.Hour, r.Price, r.LocalTime.Format(time.RFC3339), string(r.Band)}
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
