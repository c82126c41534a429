// Package reconcile merges reported and interpolated crash coordinates into
// one canonical location per record.
package reconcile

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/crash"
	"github.com/ryan-williams/nj-crashes/internal/geocode"
)

// Variant names a rule for combining the reported (o) and interpolated (i)
// value of one axis.
type Variant string

// The four fallback variants. "io" is reported-first with interpolated
// fallback; "oi" is interpolated-first with reported fallback.
const (
	VariantO  Variant = "o"
	VariantI  Variant = "i"
	VariantIO Variant = "io"
	VariantOI Variant = "oi"
)

// DefaultPolicy prefers interpolated coordinates, which are more consistent
// when available, and falls back to reported ones to fill genuine gaps.
const DefaultPolicy = VariantOI

// Valid reports whether v is one of the four defined variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantO, VariantI, VariantIO, VariantOI:
		return true
	}
	return false
}

// Options configures a merge.
type Options struct {
	// Policy selects the canonical variant. Empty means DefaultPolicy.
	Policy Variant
	// Keep lists variants whose per-axis columns are retained in the
	// Result for inspection. The canonical columns are always written.
	Keep []Variant
}

// Agreement is the 2×2 presence cross-tabulation for the latitude axis:
// how many records had a reported value, an interpolated value, both, or
// neither. Diagnostic only.
type Agreement struct {
	Both    int
	OnlyO   int
	OnlyI   int
	Neither int
	Total   int
}

// Stats summarizes a merge for observability.
type Stats struct {
	Input     int
	Retained  int
	Dropped   int
	Agreement Agreement
}

// Result holds the reconciled records plus any requested variant columns,
// aligned index-for-index with Records.
type Result struct {
	Records []crash.Record
	// Variants maps axis ("lat", "lon") → variant → values.
	Variants map[string]map[Variant][]*float64
	Stats    Stats
}

// Merge reconciles records against their geocode results. The input slice is
// not mutated; records come back as a copy with ILat/ILon, the canonical
// Lat/Lon, and any requested variant columns filled in. Records whose
// canonical longitude is still missing after the merge are dropped.
//
// geocoded must contain exactly one result per input record, in input order;
// any other shape is a contract violation and aborts the merge.
func Merge(records []crash.Record, geocoded []geocode.Result, opts Options) (*Result, error) {
	n := len(records)
	if len(geocoded) != n {
		return nil, eris.Errorf("reconcile: expected %d geocoded results, got %d", n, len(geocoded))
	}

	policy := opts.Policy
	if policy == "" {
		policy = DefaultPolicy
	}
	if !policy.Valid() {
		return nil, eris.Errorf("reconcile: unknown policy %q", policy)
	}
	for _, v := range opts.Keep {
		if !v.Valid() {
			return nil, eris.Errorf("reconcile: unknown variant %q", v)
		}
	}

	out := make([]crash.Record, n)
	copy(out, records)
	for idx := range out {
		if geocoded[idx].OK {
			ll := geocoded[idx].LatLon
			out[idx].ILat = crash.Float(ll.Lat)
			out[idx].ILon = crash.Float(ll.Lon)
		}
	}

	latVariants, agreement := mergeAxis(out, axisLat, policy)
	lonVariants, _ := mergeAxis(out, axisLon, policy)
	logAgreement(agreement)

	res := &Result{
		Stats: Stats{Input: n, Agreement: agreement},
		Variants: map[string]map[Variant][]*float64{
			"lat": keepVariants(latVariants, opts.Keep),
			"lon": keepVariants(lonVariants, opts.Keep),
		},
	}

	// Drop rows with no longitude from either source.
	keep := make([]bool, n)
	for idx := range out {
		keep[idx] = out[idx].Lon != nil
	}
	res.Records = filterRecords(out, keep)
	for axis := range res.Variants {
		for v, col := range res.Variants[axis] {
			res.Variants[axis][v] = filterColumn(col, keep)
		}
	}

	res.Stats.Retained = len(res.Records)
	res.Stats.Dropped = n - res.Stats.Retained
	if res.Stats.Dropped > 0 {
		zap.L().Info("reconcile: dropped records with no usable longitude",
			zap.Int("dropped", res.Stats.Dropped),
			zap.Int("input", n),
		)
	}
	return res, nil
}

// axis describes one coordinate axis so lat and lon share a single merge
// routine and cannot drift in behavior.
type axis struct {
	name     string
	reported func(*crash.Record) *float64
	interp   func(*crash.Record) *float64
	set      func(*crash.Record, *float64)
}

var axisLat = axis{
	name:     "lat",
	reported: func(r *crash.Record) *float64 { return r.OLat },
	interp:   func(r *crash.Record) *float64 { return r.ILat },
	set:      func(r *crash.Record, v *float64) { r.Lat = v },
}

var axisLon = axis{
	name:     "lon",
	reported: func(r *crash.Record) *float64 { return r.OLon },
	interp:   func(r *crash.Record) *float64 { return r.ILon },
	set:      func(r *crash.Record, v *float64) { r.Lon = v },
}

// mergeAxis computes the four fallback variants for one axis, writes the
// policy-selected variant back as the canonical value, and returns the
// variant columns plus the presence agreement counts.
func mergeAxis(records []crash.Record, ax axis, policy Variant) (map[Variant][]*float64, Agreement) {
	n := len(records)
	variants := map[Variant][]*float64{
		VariantO:  make([]*float64, n),
		VariantI:  make([]*float64, n),
		VariantIO: make([]*float64, n),
		VariantOI: make([]*float64, n),
	}
	var agg Agreement
	agg.Total = n

	for idx := range records {
		o := ax.reported(&records[idx])
		i := ax.interp(&records[idx])

		switch {
		case o != nil && i != nil:
			agg.Both++
		case o != nil:
			agg.OnlyO++
		case i != nil:
			agg.OnlyI++
		default:
			agg.Neither++
		}

		variants[VariantO][idx] = o
		variants[VariantI][idx] = i

		// Reported, fall back to interpolated.
		io := i
		if o != nil {
			io = o
		}
		variants[VariantIO][idx] = io

		// Interpolated, fall back to reported.
		oi := o
		if i != nil {
			oi = i
		}
		variants[VariantOI][idx] = oi

		ax.set(&records[idx], variants[policy][idx])
	}

	return variants, agg
}

// logAgreement reports the latitude presence cross-tabulation as percentages.
// Latitude stands in for both axes since lat/lon presence is perfectly
// correlated per record.
func logAgreement(a Agreement) {
	if a.Total == 0 {
		return
	}
	pct := func(c int) float64 { return float64(c) / float64(a.Total) * 100 }
	zap.L().Info("reconcile: reported vs. interpolated lat presence",
		zap.Float64("both_pct", pct(a.Both)),
		zap.Float64("only_reported_pct", pct(a.OnlyO)),
		zap.Float64("only_interpolated_pct", pct(a.OnlyI)),
		zap.Float64("neither_pct", pct(a.Neither)),
		zap.Int("total", a.Total),
	)
}

func keepVariants(all map[Variant][]*float64, keep []Variant) map[Variant][]*float64 {
	kept := make(map[Variant][]*float64, len(keep))
	for _, v := range keep {
		kept[v] = all[v]
	}
	return kept
}

func filterRecords(records []crash.Record, keep []bool) []crash.Record {
	out := make([]crash.Record, 0, len(records))
	for idx, r := range records {
		if keep[idx] {
			out = append(out, r)
		}
	}
	return out
}

func filterColumn(col []*float64, keep []bool) []*float64 {
	out := make([]*float64, 0, len(col))
	for idx, v := range col {
		if keep[idx] {
			out = append(out, v)
		}
	}
	return out
}
