// Package region partitions reconciled crash records by membership in a
// target geographic boundary.
package region

import (
	"sync"

	"github.com/ryan-williams/nj-crashes/internal/crash"
)

// Predicate is an approximate boundary test, not exact polygon containment.
type Predicate func(lat, lon float64) bool

// NJ bounding box, slightly padded. Good enough to separate in-state crashes
// from wild coordinates; county assignment handles the exact geometry.
const (
	njMinLat = 38.85
	njMaxLat = 41.37
	njMinLon = -75.60
	njMaxLon = -73.88
)

// NJ reports whether a coordinate plausibly lies in New Jersey.
func NJ(lat, lon float64) bool {
	return lat >= njMinLat && lat <= njMaxLat && lon >= njMinLon && lon <= njMaxLon
}

// Partition splits one reconciled record set into inside/outside subsets.
// The mask is computed once on first access and cached for the lifetime of
// the Partition; build a new Partition if the underlying set changes.
type Partition struct {
	records []crash.Record
	pred    Predicate

	once    sync.Once
	inside  []crash.Record
	outside []crash.Record
}

// New creates a Partition over records using pred.
func New(records []crash.Record, pred Predicate) *Partition {
	return &Partition{records: records, pred: pred}
}

// Inside returns the records whose canonical coordinate satisfies the
// predicate, in original order.
func (p *Partition) Inside() []crash.Record {
	p.split()
	return p.inside
}

// Outside returns the complement of Inside, in original order. A record with
// no canonical coordinate cannot satisfy the predicate and lands here.
func (p *Partition) Outside() []crash.Record {
	p.split()
	return p.outside
}

func (p *Partition) split() {
	p.once.Do(func() {
		p.inside = make([]crash.Record, 0, len(p.records))
		p.outside = make([]crash.Record, 0)
		for _, r := range p.records {
			if ll, ok := r.Canonical(); ok && p.pred(ll.Lat, ll.Lon) {
				p.inside = append(p.inside, r)
			} else {
				p.outside = append(p.outside, r)
			}
		}
	})
}
