// Package geocode resolves (SRI, mile-post) pairs to coordinates using a
// pre-built reference table.
package geocode

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/ryan-williams/nj-crashes/internal/crash"
)

// Reason explains why a lookup produced no coordinate.
type Reason string

// Lookup failure reasons. A missing SRI or mile-post on the record is checked
// before the table is consulted at all.
const (
	NoSRI       Reason = "No SRI"
	NoMP        Reason = "No MP"
	SRINotFound Reason = "SRI not found"
	MPNotFound  Reason = "MP didn't geocode"
)

// Table maps SRI → mile-post → coordinate. Built and owned externally; the
// geocoder only reads it.
type Table map[string]map[float64]crash.LatLon

// Result is the outcome of one lookup: either a coordinate (OK) or a Reason.
type Result struct {
	LatLon crash.LatLon
	OK     bool
	Reason Reason
}

// Lookup resolves an SRI + mile-post against the table. Missing inputs and
// missing table entries are defined outcomes, not errors.
func Lookup(sri *string, mp *float64, t Table) Result {
	if sri == nil {
		return Result{Reason: NoSRI}
	}
	if mp == nil {
		return Result{Reason: NoMP}
	}
	mps, ok := t[*sri]
	if !ok {
		return Result{Reason: SRINotFound}
	}
	ll, ok := mps[*mp]
	if !ok {
		return Result{Reason: MPNotFound}
	}
	return Result{LatLon: ll, OK: true}
}

// All geocodes every record, returning exactly one Result per input record in
// input order. Lookups are independent, so the work is split across row
// ranges; the assembled slice preserves the original ordering.
func All(ctx context.Context, records []crash.Record, t Table) ([]Result, error) {
	n := len(records)
	results := make([]Result, n)
	if n == 0 {
		return results, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		start := start
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "geocode: batch cancelled")
			}
			for i := start; i < end; i++ {
				results[i] = Lookup(records[i].SRI, records[i].MP, t)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Outcomes tallies geocode results by outcome, keyed by Reason with the
// empty key counting successes. Used for coverage diagnostics.
func Outcomes(results []Result) map[Reason]int {
	counts := make(map[Reason]int)
	for _, r := range results {
		if r.OK {
			counts[""]++
		} else {
			counts[r.Reason]++
		}
	}
	return counts
}
