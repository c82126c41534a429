// Package county assigns coordinates to NJ county polygons.
package county

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/ryan-williams/nj-crashes/internal/crash"
)

// cn2cc maps county names to their 2-letter codes. Names are matched as
// loaded (title case, per the TIGER NAME field).
var cn2cc = map[string]string{
	"Atlantic":   "AT",
	"Bergen":     "BE",
	"Burlington": "BU",
	"Camden":     "CA",
	"Cape May":   "CM",
	"Cumberland": "CU",
	"Essex":      "ES",
	"Gloucester": "GL",
	"Hudson":     "HU",
	"Hunterdon":  "HN",
	"Mercer":     "ME",
	"Middlesex":  "MI",
	"Monmouth":   "MO",
	"Morris":     "MR",
	"Ocean":      "OC",
	"Passaic":    "PA",
	"Salem":      "SA",
	"Somerset":   "SO",
	"Sussex":     "SU",
	"Union":      "UN",
	"Warren":     "WA",
}

// Polygon is one named county boundary.
type Polygon struct {
	Name string
	Geom *geom.MultiPolygon
}

// Set is an immutable collection of non-overlapping county polygons.
// Containment tests walk polygons in ascending name order, so a coordinate
// exactly on a shared boundary resolves to the lexicographically lowest
// county name (deterministic tie-break).
type Set struct {
	polys []Polygon
}

// NewSet builds a Set from named polygons. Names must be unique.
func NewSet(polys []Polygon) (*Set, error) {
	seen := make(map[string]bool, len(polys))
	for _, p := range polys {
		if p.Name == "" {
			return nil, eris.New("county: polygon with empty name")
		}
		if p.Geom == nil {
			return nil, eris.Errorf("county: polygon %q has no geometry", p.Name)
		}
		if seen[p.Name] {
			return nil, eris.Errorf("county: duplicate polygon name %q", p.Name)
		}
		seen[p.Name] = true
	}
	sorted := make([]Polygon, len(polys))
	copy(sorted, polys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Set{polys: sorted}, nil
}

// Len returns the number of polygons in the set.
func (s *Set) Len() int { return len(s.polys) }

// Names returns the polygon names in tie-break order.
func (s *Set) Names() []string {
	names := make([]string, len(s.polys))
	for i, p := range s.polys {
		names[i] = p.Name
	}
	return names
}

// Contains returns the name of the county containing the coordinate, or
// false if no polygon contains it.
func (s *Set) Contains(ll crash.LatLon) (string, bool) {
	pt := geom.Coord{ll.Lon, ll.Lat}
	for _, p := range s.polys {
		if multiPolygonContains(p.Geom, pt) {
			return p.Name, true
		}
	}
	return "", false
}

// Assign tests each coordinate for containment and returns the county name
// per record id. Ids whose coordinate lands in no polygon are absent from
// the result; callers pass only ids with a present coordinate.
func (s *Set) Assign(points map[int]crash.LatLon) map[int]string {
	out := make(map[int]string, len(points))
	for id, ll := range points {
		if name, ok := s.Contains(ll); ok {
			out[id] = name
		}
	}
	return out
}

// Code maps a county name to its 2-letter code. Unmapped names are not an
// error; they propagate as missing.
func Code(name string) (string, bool) {
	cc, ok := cn2cc[name]
	return cc, ok
}

// multiPolygonContains reports whether pt falls inside any polygon of mp,
// excluding holes.
func multiPolygonContains(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), pt) {
			return true
		}
	}
	return false
}

// polygonContains reports whether pt is inside the exterior ring of p and
// outside every interior ring.
func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
