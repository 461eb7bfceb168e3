package data

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pun-archive/internal/model"
)

const dailyXML = `<?xml version="1.0" standalone="yes"?>
<NewDataSet>
  <Prezzi>
    <Data>20240507</Data>
    <Mercato>MGP</Mercato>
    <Ora>1</Ora>
    <PUN>104,5</PUN>
    <NAT>104,5</NAT>
  </Prezzi>
  <Prezzi>
    <Data>20240507</Data>
    <Mercato>MGP</Mercato>
    <Ora>2</Ora>
    <PUN>98,123456</PUN>
  </Prezzi>
  <Prezzi>
    <Data>20240507</Data>
    <Mercato>MI1</Mercato>
    <Ora>1</Ora>
    <PUN>1,0</PUN>
  </Prezzi>
</NewDataSet>`

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"104,5":     104.5,
		" 98.12 ":   98.12,
		"0":         0,
		"-3,25":     -3.25,
		"1.234,56":  1234.56,
		"130,00000": 130,
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, err := ParsePrice("n/a")
	assert.Error(t, err)
}

func TestDecodeXML(t *testing.T) {
	recs, err := DecodeXML(strings.NewReader(dailyXML))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.HourlyRecord{Date: model.MustParseDate("2024-05-07"), Hour: 1, Price: 104.5}, recs[0])
	assert.InDelta(t, 98.123456, recs[1].Price, 1e-9)
}

func TestDecodeXML_BadRow(t *testing.T) {
	_, err := DecodeXML(strings.NewReader(`<NewDataSet><Prezzi><Data>20240507</Data><Ora>x</Ora><PUN>1</PUN></Prezzi></NewDataSet>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestDecode_ZipWithMixedEntries(t *testing.T) {
	payload := zipOf(t, map[string]string{
		"20240507MGPPrezzi.xml": dailyXML,
		"20240508MGPPrezzi.xml": "<NewDataSet><Prezzi><Data>2024",
		"notes.txt":             "ignored",
	})
	arts, errs := Decode("MGP_Prezzi_20240507_20240508.zip", payload)
	require.Len(t, arts, 1)
	assert.Equal(t, "20240507MGPPrezzi.xml", arts[0].Name)
	assert.Equal(t, []byte(dailyXML), arts[0].Data)
	assert.Len(t, arts[0].Records, 2)

	require.Len(t, errs, 1)
	var de *DecodeError
	require.True(t, errors.As(errs[0], &de))
	assert.Equal(t, "20240508MGPPrezzi.xml", de.Artifact)

	assert.Len(t, Records(arts), 2)
}

func TestDecode_BareXMLAndEmpty(t *testing.T) {
	arts, errs := Decode("20240507MGPPrezzi.xml", []byte(dailyXML))
	require.Empty(t, errs)
	require.Len(t, arts, 1)
	assert.Equal(t, "20240507MGPPrezzi.xml", arts[0].Name)

	arts, errs = Decode("empty", nil)
	assert.Empty(t, arts)
	assert.Empty(t, errs)
}

func TestDecode_CorruptZip(t *testing.T) {
	_, errs := Decode("broken.zip", append([]byte("PK\x03\x04"), 0, 1, 2))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken.zip")
}

func TestDecodeWorkbook_RoundTripWithExport(t *testing.T) {
	loc := time.FixedZone("CEST", 7200)
	in := []model.EnrichedRecord{
		{HourlyRecord: model.HourlyRecord{Date: model.MustParseDate("2024-06-10"), Hour: 1, Price: 101.25}, LocalTime: time.Date(2024, 6, 10, 0, 0, 0, 0, loc), DST: true, Band: model.BandF3},
		{HourlyRecord: model.HourlyRecord{Date: model.MustParseDate("2024-06-10"), Hour: 2, Price: 99}, LocalTime: time.Date(2024, 6, 10, 1, 0, 0, 0, loc), DST: true, Band: model.BandF3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, in))

	recs, err := DecodeWorkbook(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, in[0].HourlyRecord, recs[0])
	assert.Equal(t, in[1].HourlyRecord, recs[1])
}

func TestDecode_ZipWithWorkbook(t *testing.T) {
	in := []model.EnrichedRecord{
		{HourlyRecord: model.HourlyRecord{Date: model.MustParseDate("2024-01-01"), Hour: 1, Price: 50}, Band: model.BandF3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, in))

	arts, errs := Decode("Anno2024.zip", zipOf(t, map[string]string{"Anno 2024_12.xlsx": buf.String()}))
	require.Empty(t, errs)
	require.Len(t, arts, 1)
	assert.Equal(t, []model.HourlyRecord{in[0].HourlyRecord}, arts[0].Records)
}
