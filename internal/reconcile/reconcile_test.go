package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-williams/nj-crashes/internal/crash"
	"github.com/ryan-williams/nj-crashes/internal/geocode"
)

func ll(lat, lon float64) geocode.Result {
	return geocode.Result{LatLon: crash.LatLon{Lat: lat, Lon: lon}, OK: true}
}

func noGeocode() geocode.Result {
	return geocode.Result{Reason: geocode.NoSRI}
}

func reported(id int, lat, lon float64) crash.Record {
	return crash.Record{ID: id, OLat: crash.Float(lat), OLon: crash.Float(lon)}
}

func TestMergeFallbackCorrectness(t *testing.T) {
	tests := []struct {
		name    string
		record  crash.Record
		geocode geocode.Result
		policy  Variant
		wantLat float64
		wantLon float64
	}{
		{
			name:    "oi: reported only falls back to reported",
			record:  reported(1, 40.1, -74.5),
			geocode: noGeocode(),
			policy:  VariantOI,
			wantLat: 40.1,
			wantLon: -74.5,
		},
		{
			name:    "oi: interpolated only",
			record:  crash.Record{ID: 1},
			geocode: ll(40.2, -74.6),
			policy:  VariantOI,
			wantLat: 40.2,
			wantLon: -74.6,
		},
		{
			name:    "oi: both present prefers interpolated",
			record:  reported(1, 40.1, -74.5),
			geocode: ll(40.2, -74.6),
			policy:  VariantOI,
			wantLat: 40.2,
			wantLon: -74.6,
		},
		{
			name:    "io: both present prefers reported",
			record:  reported(1, 40.1, -74.5),
			geocode: ll(40.2, -74.6),
			policy:  VariantIO,
			wantLat: 40.1,
			wantLon: -74.5,
		},
		{
			name:    "o: reported regardless of interpolated",
			record:  reported(1, 40.1, -74.5),
			geocode: ll(40.2, -74.6),
			policy:  VariantO,
			wantLat: 40.1,
			wantLon: -74.5,
		},
		{
			name:    "i: interpolated regardless of reported",
			record:  reported(1, 40.1, -74.5),
			geocode: ll(40.2, -74.6),
			policy:  VariantI,
			wantLat: 40.2,
			wantLon: -74.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Merge([]crash.Record{tt.record}, []geocode.Result{tt.geocode}, Options{Policy: tt.policy})
			require.NoError(t, err)
			require.Len(t, res.Records, 1)

			got, ok := res.Records[0].Canonical()
			require.True(t, ok)
			assert.Equal(t, tt.wantLat, got.Lat)
			assert.Equal(t, tt.wantLon, got.Lon)
		})
	}
}

func TestMergeDefaultPolicyIsOI(t *testing.T) {
	res, err := Merge(
		[]crash.Record{reported(1, 40.1, -74.5)},
		[]geocode.Result{ll(40.2, -74.6)},
		Options{},
	)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 40.2, *res.Records[0].Lat)
	assert.Equal(t, -74.6, *res.Records[0].Lon)
}

func TestMergeRowCountMismatchIsFatal(t *testing.T) {
	_, err := Merge(
		[]crash.Record{reported(1, 40.1, -74.5), reported(2, 40.2, -74.6)},
		[]geocode.Result{ll(40.0, -74.0)},
		Options{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 geocoded results")
}

func TestMergeInvalidPolicy(t *testing.T) {
	_, err := Merge(nil, nil, Options{Policy: "xy"})
	assert.Error(t, err)

	_, err = Merge(nil, nil, Options{Keep: []Variant{"bogus"}})
	assert.Error(t, err)
}

func TestMergeDropsRecordsWithNoLongitude(t *testing.T) {
	records := []crash.Record{
		reported(1, 40.1, -74.5),
		{ID: 2}, // no reported coordinate
		{ID: 3}, // no reported coordinate, but geocodes
	}
	geocoded := []geocode.Result{
		noGeocode(),
		noGeocode(),
		ll(40.3, -74.7),
	}

	res, err := Merge(records, geocoded, Options{})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Records[0].ID)
	assert.Equal(t, 3, res.Records[1].ID)

	assert.Equal(t, 3, res.Stats.Input)
	assert.Equal(t, 2, res.Stats.Retained)
	assert.Equal(t, 1, res.Stats.Dropped)

	// Every retained record has a canonical longitude.
	for _, r := range res.Records {
		assert.NotNil(t, r.Lon)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	records := []crash.Record{{ID: 1}}
	_, err := Merge(records, []geocode.Result{ll(40.0, -74.0)}, Options{})
	require.NoError(t, err)
	assert.Nil(t, records[0].Lat)
	assert.Nil(t, records[0].ILat)
}

func TestMergeIdempotent(t *testing.T) {
	// Feed canonical coordinates back as reported values with no
	// interpolation available: policy o must return them unchanged.
	first, err := Merge(
		[]crash.Record{reported(1, 40.1, -74.5)},
		[]geocode.Result{ll(40.2, -74.6)},
		Options{Policy: VariantOI},
	)
	require.NoError(t, err)
	require.Len(t, first.Records, 1)

	again := crash.Record{
		ID:   1,
		OLat: first.Records[0].Lat,
		OLon: first.Records[0].Lon,
	}
	second, err := Merge([]crash.Record{again}, []geocode.Result{noGeocode()}, Options{Policy: VariantO})
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Equal(t, *first.Records[0].Lat, *second.Records[0].Lat)
	assert.Equal(t, *first.Records[0].Lon, *second.Records[0].Lon)
}

func TestMergeKeepVariants(t *testing.T) {
	records := []crash.Record{
		reported(1, 40.1, -74.5),
		{ID: 2},
	}
	geocoded := []geocode.Result{
		noGeocode(),
		ll(40.2, -74.6),
	}

	res, err := Merge(records, geocoded, Options{Keep: []Variant{VariantO, VariantI, VariantIO, VariantOI}})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	lat := res.Variants["lat"]
	require.Len(t, lat, 4)

	// Row 0: reported only.
	assert.Equal(t, 40.1, *lat[VariantO][0])
	assert.Nil(t, lat[VariantI][0])
	assert.Equal(t, 40.1, *lat[VariantIO][0])
	assert.Equal(t, 40.1, *lat[VariantOI][0])

	// Row 1: interpolated only.
	assert.Nil(t, lat[VariantO][1])
	assert.Equal(t, 40.2, *lat[VariantI][1])
	assert.Equal(t, 40.2, *lat[VariantIO][1])
	assert.Equal(t, 40.2, *lat[VariantOI][1])
}

func TestMergeAgreementCounts(t *testing.T) {
	records := []crash.Record{
		reported(1, 40.1, -74.5), // both
		reported(2, 40.1, -74.5), // only reported
		{ID: 3},                  // only interpolated
		{ID: 4},                  // neither
	}
	geocoded := []geocode.Result{
		ll(40.2, -74.6),
		noGeocode(),
		ll(40.3, -74.7),
		noGeocode(),
	}

	res, err := Merge(records, geocoded, Options{})
	require.NoError(t, err)

	agg := res.Stats.Agreement
	assert.Equal(t, 1, agg.Both)
	assert.Equal(t, 1, agg.OnlyO)
	assert.Equal(t, 1, agg.OnlyI)
	assert.Equal(t, 1, agg.Neither)
	assert.Equal(t, 4, agg.Total)
}

func TestMergeLatLonNeverMixVariants(t *testing.T) {
	// A record with reported lat/lon and interpolated lat/lon gets both axes
	// from the same source under any policy.
	rec := reported(1, 40.1, -74.5)
	geo := ll(40.2, -74.6)

	for _, policy := range []Variant{VariantO, VariantI, VariantIO, VariantOI} {
		res, err := Merge([]crash.Record{rec}, []geocode.Result{geo}, Options{Policy: policy})
		require.NoError(t, err)
		got, ok := res.Records[0].Canonical()
		require.True(t, ok)

		fromReported := got.Lat == 40.1 && got.Lon == -74.5
		fromInterp := got.Lat == 40.2 && got.Lon == -74.6
		assert.True(t, fromReported || fromInterp, "policy %s mixed axes: %+v", policy, got)
	}
}

func TestVariantValid(t *testing.T) {
	assert.True(t, VariantO.Valid())
	assert.True(t, VariantOI.Valid())
	assert.False(t, Variant("").Valid())
	assert.False(t, Variant("ooi").Valid())
}
