// Package load reads crash records and the mile-post reference table from
// their CSV formats.
package load

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/crash"
	"github.com/ryan-williams/nj-crashes/internal/geocode"
)

const dateLayout = "2006-01-02"

// crashRow mirrors the normalized crash CSV schema. Empty fields decode to
// nil pointers.
type crashRow struct {
	ID          int      `csv:"id"`
	Date        string   `csv:"dt"`
	Severity    string   `csv:"severity"`
	SRI         *string  `csv:"sri"`
	MP          *float64 `csv:"mp"`
	Road        string   `csv:"road"`
	CrossStreet string   `csv:"cross_street"`
	OLat        *float64 `csv:"olat"`
	OLon        *float64 `csv:"olon"`
	TK          int      `csv:"tk"`
	TI          int      `csv:"ti"`
	PK          int      `csv:"pk"`
	PI          int      `csv:"pi"`
	TV          int      `csv:"tv"`
}

// Crashes reads crash records from a CSV file. Severity is normalized to
// lower case. Reported longitudes come in positive in the source data but NJ
// is in the western hemisphere, so positive values are negated.
func Crashes(path string) ([]crash.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load: open crashes %s", path)
	}
	defer func() { _ = f.Close() }()

	records, err := DecodeCrashes(f)
	if err != nil {
		return nil, eris.Wrapf(err, "load: decode crashes %s", path)
	}
	zap.L().Info("crash records loaded", zap.String("path", path), zap.Int("records", len(records)))
	return records, nil
}

// DecodeCrashes decodes crash records from CSV data.
func DecodeCrashes(r io.Reader) ([]crash.Record, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "new decoder")
	}

	var records []crash.Record
	for {
		var row crashRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "decode row %d", len(records)+1)
		}

		rec := crash.Record{
			ID:                 row.ID,
			Severity:           strings.ToLower(row.Severity),
			SRI:                row.SRI,
			MP:                 row.MP,
			Road:               row.Road,
			CrossStreet:        row.CrossStreet,
			OLat:               row.OLat,
			OLon:               row.OLon,
			TotalKilled:        row.TK,
			TotalInjured:       row.TI,
			PedestriansKilled:  row.PK,
			PedestriansInjured: row.PI,
			VehiclesInvolved:   row.TV,
		}
		if row.Date != "" {
			dt, err := time.Parse(dateLayout, row.Date)
			if err != nil {
				return nil, eris.Wrapf(err, "parse date %q for id %d", row.Date, row.ID)
			}
			rec.Date = dt
		}
		if rec.OLon != nil && *rec.OLon > 0 {
			rec.OLon = crash.Float(-*rec.OLon)
		}
		records = append(records, rec)
	}
	return records, nil
}

// milepostRow is one (SRI, mile-post) → coordinate entry.
type milepostRow struct {
	SRI string  `csv:"sri"`
	MP  float64 `csv:"mp"`
	Lat float64 `csv:"lat"`
	Lon float64 `csv:"lon"`
}

// MilePosts reads the mile-post reference table from a CSV file.
func MilePosts(path string) (geocode.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load: open mileposts %s", path)
	}
	defer func() { _ = f.Close() }()

	table, err := DecodeMilePosts(f)
	if err != nil {
		return nil, eris.Wrapf(err, "load: decode mileposts %s", path)
	}
	zap.L().Info("milepost table loaded", zap.String("path", path), zap.Int("sris", len(table)))
	return table, nil
}

// DecodeMilePosts decodes the mile-post reference table from CSV data.
func DecodeMilePosts(r io.Reader) (geocode.Table, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "new decoder")
	}

	table := make(geocode.Table)
	for {
		var row milepostRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "decode row")
		}
		mps, ok := table[row.SRI]
		if !ok {
			mps = make(map[float64]crash.LatLon)
			table[row.SRI] = mps
		}
		mps[row.MP] = crash.LatLon{Lat: row.Lat, Lon: row.Lon}
	}
	return table, nil
}
