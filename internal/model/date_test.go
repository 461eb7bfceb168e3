package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-31", "20240331", " 2024-03-31 "} {
		d, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 31}, d, in)
	}
	for _, in := range []string{"", "2024-02-30", "31/03/2024", "2024033"} {
		_, err := ParseDate(in)
		assert.Error(t, err, in)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")
	assert.Equal(t, MustParseDate("2024-02-29"), d.AddDays(1))
	assert.Equal(t, MustParseDate("2024-03-01"), d.AddDays(2))
	assert.Equal(t, MustParseDate("2023-12-31"), MustParseDate("2024-01-01").AddDays(-1))
	assert.Equal(t, 366, MustParseDate("2024-01-01").DaysUntil(MustParseDate("2025-01-01")))
	assert.Equal(t, -1, d.DaysUntil(d.AddDays(-1)))
	assert.Equal(t, time.Sunday, MustParseDate("2024-03-31").Weekday())
	assert.Equal(t, "20240228", d.Compact())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(MustParseDate("20240228")))
}

func TestDateJSON(t *testing.T) {
	type doc struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}
	b, err := json.Marshal(doc{D: MustParseDate("2024-10-27")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-10-27","z":""}`, string(b))

	var back doc
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, MustParseDate("2024-10-27"), back.D)
	assert.True(t, back.Z.IsZero())
}

func TestKeyOrderingAndRange(t *testing.T) {
	a := Key{Date: MustParseDate("2024-10-27"), Hour: 25}
	b := Key{Date: MustParseDate("2024-10-28"), Hour: 1}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, "2024-10-27#25", a.String())

	r := DateRange{Start: MustParseDate("2024-01-06"), End: MustParseDate("2024-01-09")}
	assert.Equal(t, 4, r.Days())
	assert.True(t, r.Contains(MustParseDate("2024-01-09")))
	assert.False(t, r.Contains(MustParseDate("2024-01-10")))
	assert.Equal(t, "2024-01-06..2024-01-09", r.String())
}

func TestBandValid(t *testing.T) {
	for _, b := range Bands {
		assert.True(t, b.Valid())
	}
	assert.False(t, Band("F4").Valid())
}
