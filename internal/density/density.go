// Package density annotates crash records with duplicate-location counts for
// proportional-area visual encoding.
package density

import (
	"math"

	"github.com/ryan-williams/nj-crashes/internal/crash"
)

// Weighted is a crash record annotated with how many records share its exact
// (lon, lat, severity) tuple. Radius is sqrt(Count) so that rendered area,
// not radius, is proportional to the count.
type Weighted struct {
	crash.Record
	Count  int
	Radius float64
}

type key struct {
	lon, lat float64
	severity string
}

// Annotate groups records by exact (lon, lat, severity) and joins the group
// count back onto every record, one output row per input row in input order.
// Records with an incomplete grouping key get count 0.
func Annotate(records []crash.Record) []Weighted {
	counts := make(map[key]int, len(records))
	for _, r := range records {
		if k, ok := groupKey(r); ok {
			counts[k]++
		}
	}

	out := make([]Weighted, len(records))
	for idx, r := range records {
		w := Weighted{Record: r}
		if k, ok := groupKey(r); ok {
			w.Count = counts[k]
			w.Radius = math.Sqrt(float64(w.Count))
		}
		out[idx] = w
	}
	return out
}

func groupKey(r crash.Record) (key, bool) {
	if r.Lat == nil || r.Lon == nil {
		return key{}, false
	}
	return key{lon: *r.Lon, lat: *r.Lat, severity: r.Severity}, true
}
