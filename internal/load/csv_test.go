package load

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-williams/nj-crashes/internal/crash"
)

const crashCSV = `id,dt,severity,sri,mp,road,cross_street,olat,olon,tk,ti,pk,pi,tv
1,2020-01-15,P,00000001__,1.05,ATLANTIC AVE,MAIN ST,40.7,74.2,0,1,0,0,2
2,2020-02-03,F,,,BROAD ST,,,,1,0,1,0,1
3,2020-03-20,I,00000002__,0.5,RT 9,,39.9,-74.9,0,2,0,1,3
`

func TestDecodeCrashes(t *testing.T) {
	records, err := DecodeCrashes(strings.NewReader(crashCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[0]
	assert.Equal(t, 1, r.ID)
	assert.Equal(t, "p", r.Severity, "severity is lower-cased")
	require.NotNil(t, r.SRI)
	assert.Equal(t, "00000001__", *r.SRI)
	require.NotNil(t, r.MP)
	assert.Equal(t, 1.05, *r.MP)
	assert.Equal(t, "ATLANTIC AVE", r.Road)
	require.NotNil(t, r.OLon)
	assert.Equal(t, -74.2, *r.OLon, "positive source longitudes are negated")
	assert.Equal(t, 1, r.TotalInjured)
	assert.Equal(t, 2, r.VehiclesInvolved)
	assert.Equal(t, 2020, r.Date.Year())

	r = records[1]
	assert.Nil(t, r.SRI)
	assert.Nil(t, r.MP)
	assert.Nil(t, r.OLat)
	assert.Nil(t, r.OLon)
	assert.Equal(t, "f", r.Severity)

	r = records[2]
	require.NotNil(t, r.OLon)
	assert.Equal(t, -74.9, *r.OLon, "already-negative longitudes pass through")
}

func TestDecodeCrashesBadDate(t *testing.T) {
	bad := "id,dt,severity,sri,mp,road,cross_street,olat,olon,tk,ti,pk,pi,tv\n1,01/15/2020,P,,,,,,,0,0,0,0,0\n"
	_, err := DecodeCrashes(strings.NewReader(bad))
	assert.Error(t, err)
}

const milepostCSV = `sri,mp,lat,lon
00000001__,1.00,40.70,-74.20
00000001__,1.05,40.71,-74.21
00000002__,0.50,39.90,-74.90
`

func TestDecodeMilePosts(t *testing.T) {
	table, err := DecodeMilePosts(strings.NewReader(milepostCSV))
	require.NoError(t, err)
	require.Len(t, table, 2)

	mps := table["00000001__"]
	require.Len(t, mps, 2)
	assert.Equal(t, crash.LatLon{Lat: 40.71, Lon: -74.21}, mps[1.05])

	assert.Equal(t, crash.LatLon{Lat: 39.9, Lon: -74.9}, table["00000002__"][0.5])
}

func TestCrashesMissingFile(t *testing.T) {
	_, err := Crashes("testdata/does-not-exist.csv")
	assert.Error(t, err)

	_, err = MilePosts("testdata/does-not-exist.csv")
	assert.Error(t, err)
}
