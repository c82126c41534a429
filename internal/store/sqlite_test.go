package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "crashes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func sampleRun() (Run, []CrashRow) {
	run := Run{
		ID:           uuid.NewString(),
		Policy:       "oi",
		InputRows:    100,
		RetainedRows: 95,
		DroppedRows:  5,
		InRegion:     90,
		OutRegion:    5,
		CreatedAt:    time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	rows := []CrashRow{
		{ID: 1, Date: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), Severity: "p", Lat: f(40.7), Lon: -74.2, OCC: s("ES"), InRegion: true, Count: 3, Radius: 1.7320508075688772},
		{ID: 2, Severity: "f", Lat: f(40.8), Lon: -74.3, ICC: s("HU"), InRegion: true, Count: 1, Radius: 1},
		{ID: 3, Severity: "p", Lon: -74.4, InRegion: false, Count: 1, Radius: 1},
	}
	return run, rows
}

func TestSaveAndGetRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run, rows := sampleRun()
	require.NoError(t, st.SaveRun(ctx, run, rows))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "oi", got.Policy)
	assert.Equal(t, 100, got.InputRows)
	assert.Equal(t, 95, got.RetainedRows)
	assert.Equal(t, 5, got.DroppedRows)
	assert.Equal(t, 90, got.InRegion)
	assert.Equal(t, 5, got.OutRegion)
}

func TestGetRunMissing(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "no runs recorded yet")

	first, _ := sampleRun()
	first.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveRun(ctx, first, nil))

	second, _ := sampleRun()
	second.CreatedAt = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveRun(ctx, second, nil))

	latest, err = st.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestSeverityCounts(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run, rows := sampleRun()
	require.NoError(t, st.SaveRun(ctx, run, rows))

	counts, err := st.SeverityCounts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p": 2, "f": 1}, counts)
}

func TestDensityRows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run, rows := sampleRun()
	require.NoError(t, st.SaveRun(ctx, run, rows))

	got, err := st.DensityRows(ctx, run.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Heaviest location first.
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 3, got[0].Count)
	require.NotNil(t, got[0].Lat)
	assert.Equal(t, 40.7, *got[0].Lat)
	require.NotNil(t, got[0].OCC)
	assert.Equal(t, "ES", *got[0].OCC)
	assert.False(t, got[0].Date.IsZero())

	// Nullable fields come back missing, not zero.
	assert.Nil(t, got[1].OCC)
	require.NotNil(t, got[1].ICC)
	assert.Nil(t, got[2].Lat)
	assert.True(t, got[2].Date.IsZero())

	limited, err := st.DensityRows(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
