// Package crash defines the crash record model shared by the
// reconciliation pipeline stages.
package crash

import "time"

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Lat float64
	Lon float64
}

// Record is one crash report row. Reported coordinates (OLat/OLon) come
// straight off the source record; interpolated coordinates (ILat/ILon) are
// derived from SRI + mile-post lookup; Lat/Lon hold the canonical merged
// location once reconciliation has run. Nil pointers mean "missing".
type Record struct {
	ID       int
	Date     time.Time
	Severity string

	// Road location as reported.
	SRI         *string
	MP          *float64
	Road        string
	CrossStreet string

	// Reported coordinate.
	OLat *float64
	OLon *float64

	// Interpolated coordinate (filled by the geocoder).
	ILat *float64
	ILon *float64

	// Canonical coordinate (filled by the reconciler).
	Lat *float64
	Lon *float64

	// County assignments: name and 2-letter code, computed independently
	// for the reported (OCN/OCC) and interpolated (ICN/ICC) coordinates.
	OCN *string
	OCC *string
	ICN *string
	ICC *string

	// Killed/injured totals, passed through untouched.
	TotalKilled        int
	TotalInjured       int
	PedestriansKilled  int
	PedestriansInjured int
	VehiclesInvolved   int
}

// Reported returns the reported coordinate, or false when either axis is
// missing. Presence of olat and olon is perfectly correlated in practice,
// but the check covers both anyway.
func (r *Record) Reported() (LatLon, bool) {
	if r.OLat == nil || r.OLon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *r.OLat, Lon: *r.OLon}, true
}

// Interpolated returns the geocoded coordinate, or false when missing.
func (r *Record) Interpolated() (LatLon, bool) {
	if r.ILat == nil || r.ILon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *r.ILat, Lon: *r.ILon}, true
}

// Canonical returns the merged coordinate, or false if reconciliation has
// not run or dropped both sources.
func (r *Record) Canonical() (LatLon, bool) {
	if r.Lat == nil || r.Lon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *r.Lat, Lon: *r.Lon}, true
}

// Float returns a pointer to v, for building records with optional fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s, for building records with optional fields.
func String(s string) *string { return &s }
