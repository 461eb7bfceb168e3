package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pun-archive/internal/model"
)

func d(s string) model.Date { return model.MustParseDate(s) }

func TestCoverageOf(t *testing.T) {
	got, err := CoverageOf("20240507MGPPrezzi.xml")
	require.NoError(t, err)
	assert.Equal(t, d("2024-05-07"), got)

	got, err = CoverageOf("archive/MGP_Prezzi_20240507.xml")
	require.NoError(t, err)
	assert.Equal(t, d("2024-05-07"), got)

	// Range downloads never count as coverage.
	_, err = CoverageOf("MGP_Prezzi_20240501_20240507.zip")
	assert.Error(t, err)

	_, err = CoverageOf("notes.txt")
	assert.Error(t, err)
}

func TestScan_SkipsUnparseableNames(t *testing.T) {
	ix, skipped := Scan([]string{
		"MGP_Prezzi_20240101.xml",
		"MGP_Prezzi_20240102.xml",
		"README.md",
		"MGP_Prezzi_20241345.xml", // not a date
		"MGP_Prezzi_20240110_20240112.zip",
	})
	assert.ElementsMatch(t, []string{"README.md", "MGP_Prezzi_20241345.xml", "MGP_Prezzi_20240110_20240112.zip"}, skipped)
	assert.Equal(t, []model.Date{d("2024-01-01"), d("2024-01-02")}, ix.Dates())
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"MGP_Prezzi_20240301.xml", "MGP_Prezzi_20240302.xml", "junk.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20240303"), 0o755))

	ix, skipped, err := ScanDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"junk.tmp"}, skipped)
	assert.Equal(t, []model.Date{d("2024-03-01"), d("2024-03-02")}, ix.Dates())

	ix, skipped, err = ScanDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, ix)
	assert.Empty(t, skipped)
}

func TestIndexRecords_OnlyCompleteDays(t *testing.T) {
	var records []model.HourlyRecord
	add := func(date string, hours int) {
		for h := 1; h <= hours; h++ {
			records = append(records, model.HourlyRecord{Date: d(date), Hour: h, Price: 100})
		}
	}
	add("2024-06-10", 24)
	add("2024-06-11", 20) // partial
	add("2024-03-31", 23) // spring-forward, complete
	add("2024-10-27", 24) // fall-back, missing hour 25
	ix := IndexRecords(records)
	assert.Equal(t, []model.Date{d("2024-03-31"), d("2024-06-10")}, ix.Dates())
}

func TestDayArtifactName(t *testing.T) {
	assert.Equal(t, "MGP_Prezzi_20240507.xml", DayArtifactName(d("2024-05-07"), ".xml"))
	got, err := CoverageOf(DayArtifactName(d("2024-05-07"), ".xml"))
	require.NoError(t, err)
	assert.Equal(t, d("2024-05-07"), got)
}
