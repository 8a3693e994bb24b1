package simulator

// containsEpsilon keeps the edge intersection finite for edges whose two
// vertices share a longitude.
const containsEpsilon = 1e-12

// Point is a WGS-84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is a closed ring of vertices. The first vertex may or may not be
// repeated at the end.
type Polygon []Point

// BoundingBox is an axis-aligned latitude/longitude rectangle, inclusive on
// all sides.
type BoundingBox struct {
	MinLat float64 `json:"minLat" yaml:"minLat"`
	MaxLat float64 `json:"maxLat" yaml:"maxLat"`
	MinLon float64 `json:"minLon" yaml:"minLon"`
	MaxLon float64 `json:"maxLon" yaml:"maxLon"`
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Contains reports whether (lat, lon) lies inside poly using ray-casting
// parity: a ray along the latitude axis toggles the result at every edge it
// crosses.
//
// Points exactly on the boundary are classified deterministically but not
// symmetrically. For an axis-aligned ring, vertices and edges on the minimum
// latitude or minimum longitude side count as inside; those on the maximum
// sides count as outside.
func Contains(lat, lon float64, poly Polygon) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i].Lat, poly[i].Lon
		xj, yj := poly[j].Lat, poly[j].Lon
		if (yi > lon) != (yj > lon) &&
			lat < (xj-xi)*(lon-yi)/(yj-yi+containsEpsilon)+xi {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the smallest box enclosing the polygon.
func (p Polygon) Bounds() BoundingBox {
	if len(p) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{MinLat: p[0].Lat, MaxLat: p[0].Lat, MinLon: p[0].Lon, MaxLon: p[0].Lon}
	for _, v := range p[1:] {
		b.MinLat = min(b.MinLat, v.Lat)
		b.MaxLat = max(b.MaxLat, v.Lat)
		b.MinLon = min(b.MinLon, v.Lon)
		b.MaxLon = max(b.MaxLon, v.Lon)
	}
	return b
}
