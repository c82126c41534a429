// Package pipeline wires the crash location stages together: county
// assignment of reported coordinates, SRI/MP geocoding, county assignment of
// interpolated coordinates, reconciliation, and region partitioning.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/county"
	"github.com/ryan-williams/nj-crashes/internal/crash"
	"github.com/ryan-williams/nj-crashes/internal/geocode"
	"github.com/ryan-williams/nj-crashes/internal/reconcile"
	"github.com/ryan-williams/nj-crashes/internal/region"
)

// Inputs are the external collaborators' products the pipeline consumes.
type Inputs struct {
	Records   []crash.Record
	MilePosts geocode.Table
	Counties  *county.Set
	Region    region.Predicate
}

// Options configures one run.
type Options struct {
	Reconcile reconcile.Options
}

// Output is the reconciled record set plus derived views.
type Output struct {
	Result    *reconcile.Result
	Partition *region.Partition
	Outcomes  map[geocode.Reason]int
}

// Run executes the full reconciliation pipeline. The input record slice is
// not mutated.
func Run(ctx context.Context, in Inputs, opts Options) (*Output, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	records := make([]crash.Record, len(in.Records))
	copy(records, in.Records)

	// Reported coordinates → county.
	if in.Counties != nil {
		log.Info("merging reported coordinates with county geometries")
		assignCounties(records, in.Counties, reportedPoint,
			func(r *crash.Record, cn, cc *string) { r.OCN, r.OCC = cn, cc })
	}

	// SRI/MP → interpolated coordinates.
	log.Info("geocoding SRI/MPs", zap.Int("records", len(records)))
	geocoded, err := geocode.All(ctx, records, in.MilePosts)
	if err != nil {
		return nil, err
	}
	for idx := range records {
		if geocoded[idx].OK {
			ll := geocoded[idx].LatLon
			records[idx].ILat = crash.Float(ll.Lat)
			records[idx].ILon = crash.Float(ll.Lon)
		}
	}

	// Interpolated coordinates → county.
	if in.Counties != nil {
		log.Info("merging interpolated coordinates with county geometries")
		assignCounties(records, in.Counties, interpolatedPoint,
			func(r *crash.Record, cn, cc *string) { r.ICN, r.ICC = cn, cc })
	}

	// Merge reported and interpolated per policy.
	result, err := reconcile.Merge(records, geocoded, opts.Reconcile)
	if err != nil {
		return nil, err
	}

	pred := in.Region
	if pred == nil {
		pred = region.NJ
	}

	return &Output{
		Result:    result,
		Partition: region.New(result.Records, pred),
		Outcomes:  geocode.Outcomes(geocoded),
	}, nil
}

func reportedPoint(r *crash.Record) (crash.LatLon, bool)     { return r.Reported() }
func interpolatedPoint(r *crash.Record) (crash.LatLon, bool) { return r.Interpolated() }

// assignCounties runs one spatial join over whichever coordinate variant
// point selects, attaching results by record id rather than position.
func assignCounties(
	records []crash.Record,
	set *county.Set,
	point func(*crash.Record) (crash.LatLon, bool),
	attach func(*crash.Record, *string, *string),
) {
	points := make(map[int]crash.LatLon, len(records))
	for idx := range records {
		if ll, ok := point(&records[idx]); ok {
			points[records[idx].ID] = ll
		}
	}

	assigned := set.Assign(points)
	for idx := range records {
		name, ok := assigned[records[idx].ID]
		if !ok {
			continue
		}
		cn := crash.String(name)
		var cc *string
		if code, ok := county.Code(name); ok {
			cc = crash.String(code)
		}
		attach(&records[idx], cn, cc)
	}
}
