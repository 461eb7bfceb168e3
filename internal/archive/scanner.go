package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"pun-archive/internal/model"
)

var digitRun = regexp.MustCompile(`\d+`)

// DateTokens extracts every YYYYMMDD token from an artifact name.
// Digit runs that are not exactly eight digits or not a real date are ignored.
func DateTokens(name string) []model.Date {
	var out []model.Date
	for _, run := range digitRun.FindAllString(filepath.Base(name), -1) {
		if len(run) != 8 {
			continue
		}
		d, err := model.ParseDate(run)
		if err != nil || d.Compact() != run {
			continue
		}
		out = append(out, d)
	}
	return out
}

// CoverageOf returns the civil date an artifact name covers. Only per-day
// artifacts count:
//
//	20240507MGPPrezzi.xml            -> 2024-05-07
//	MGP_Prezzi_20240507.xml          -> 2024-05-07
//	MGP_Prezzi_20240501_20240507.zip -> error
//
// A multi-day download may have been taken before its last day was
// published, so its name says nothing about which days it really holds.
func CoverageOf(name string) (model.Date, error) {
	tokens := DateTokens(name)
	if len(tokens) != 1 {
		return model.Date{}, fmt.Errorf("artifact %q: expected one date token, found %d", name, len(tokens))
	}
	return tokens[0], nil
}

// Scan builds the archive index from artifact names. Names that carry no
// usable date are returned in skipped instead of failing the scan.
func Scan(names []string) (ix Index, skipped []string) {
	ix = Index{}
	for _, name := range names {
		date, err := CoverageOf(name)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		ix.Add(date)
	}
	return ix, skipped
}

// ScanDir scans the regular files of dir. A missing directory is an empty archive.
func ScanDir(dir string) (Index, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Index{}, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read archive dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	ix, skipped := Scan(names)
	return ix, skipped, nil
}

// DayArtifactName is the deterministic file name of a per-day artifact.
func DayArtifactName(d model.Date, ext string) string {
	return fmt.Sprintf("MGP_Prezzi_%s%s", d.Compact(), ext)
}
