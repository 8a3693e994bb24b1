package simulator

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRegion is returned when a region definition cannot support
// sampling.
var ErrInvalidRegion = errors.New("invalid region")

// Cluster is a population centre that biases synthetic samples. Base is the
// mean level in dB at the centre and Sigma the spatial spread in degrees.
type Cluster struct {
	Name  string  `json:"name" yaml:"name"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
	Base  float64 `json:"base" yaml:"base"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// Region is the area every sample must stay inside, plus the clusters that
// shape its noise field.
type Region struct {
	Name     string      `json:"name" yaml:"name"`
	Polygon  Polygon     `json:"polygon" yaml:"polygon"`
	Bounds   BoundingBox `json:"bounds" yaml:"bounds"`
	Clusters []Cluster   `json:"clusters" yaml:"clusters"`
}

// Contains applies the bounding-box pre-filter, then the polygon test.
func (r Region) Contains(lat, lon float64) bool {
	return r.Bounds.Contains(lat, lon) && Contains(lat, lon, r.Polygon)
}

// Validate checks that the region can be sampled. Cluster centres only need
// to fall inside the bounding box: coastal cities routinely sit just outside
// a simplified outline, and rejection sampling keeps their inland share.
func (r Region) Validate() error {
	if len(r.Polygon) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidRegion, len(r.Polygon))
	}
	if r.Bounds.MinLat >= r.Bounds.MaxLat || r.Bounds.MinLon >= r.Bounds.MaxLon {
		return fmt.Errorf("%w: bounds are empty", ErrInvalidRegion)
	}
	if len(r.Clusters) == 0 {
		return fmt.Errorf("%w: no clusters", ErrInvalidRegion)
	}
	for _, c := range r.Clusters {
		if c.Sigma <= 0 {
			return fmt.Errorf("%w: cluster %q has non-positive sigma", ErrInvalidRegion, c.Name)
		}
		if !r.Bounds.Contains(c.Lat, c.Lon) {
			return fmt.Errorf("%w: cluster %q lies outside the bounds", ErrInvalidRegion, c.Name)
		}
	}
	return nil
}

// NearestCluster returns the cluster whose centre is closest to the point in
// plain degree space, and that distance.
func (r Region) NearestCluster(lat, lon float64) (Cluster, float64) {
	var best Cluster
	bestDist := -1.0
	for _, c := range r.Clusters {
		d := degreeDistance(lat, lon, c.Lat, c.Lon)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// SriLanka returns the built-in region: a 14-vertex outline of the island
// and thirteen city clusters.
func SriLanka() Region {
	return Region{
		Name: "sri-lanka",
		Polygon: Polygon{
			{9.85, 80.20},
			{9.20, 79.80},
			{8.20, 79.70},
			{7.20, 79.85},
			{6.60, 80.00},
			{6.05, 80.10},
			{5.92, 80.45},
			{5.95, 81.10},
			{6.20, 81.85},
			{7.20, 81.90},
			{8.20, 81.75},
			{9.00, 81.40},
			{9.60, 80.90},
			{9.85, 80.20},
		},
		Bounds: BoundingBox{MinLat: 5.8, MaxLat: 9.9, MinLon: 79.6, MaxLon: 81.95},
		Clusters: []Cluster{
			{Name: "Colombo", Lat: 6.9271, Lon: 79.8612, Base: 70, Sigma: 0.06},
			{Name: "Kandy", Lat: 7.2906, Lon: 80.6337, Base: 62, Sigma: 0.05},
			{Name: "Galle", Lat: 6.0535, Lon: 80.2200, Base: 63, Sigma: 0.05},
			{Name: "Jaffna", Lat: 9.6615, Lon: 80.0255, Base: 59, Sigma: 0.06},
			{Name: "Matara", Lat: 5.9485, Lon: 80.5469, Base: 60, Sigma: 0.05},
			{Name: "Negombo", Lat: 7.2083, Lon: 79.8358, Base: 64, Sigma: 0.05},
			{Name: "Kurunegala", Lat: 7.4863, Lon: 80.3620, Base: 58, Sigma: 0.06},
			{Name: "Anuradhapura", Lat: 8.3114, Lon: 80.4037, Base: 57, Sigma: 0.07},
			{Name: "Trincomalee", Lat: 8.5711, Lon: 81.2335, Base: 56, Sigma: 0.06},
			{Name: "Batticaloa", Lat: 7.7170, Lon: 81.7000, Base: 55, Sigma: 0.06},
			{Name: "Badulla", Lat: 6.9896, Lon: 81.0550, Base: 55, Sigma: 0.05},
			{Name: "Nuwara Eliya", Lat: 6.9497, Lon: 80.7891, Base: 54, Sigma: 0.05},
			{Name: "Ratnapura", Lat: 6.6828, Lon: 80.3992, Base: 56, Sigma: 0.06},
		},
	}
}

// UnmarshalYAML reads a point written as a [lat, lon] pair.
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: point must be [lat, lon], got %d values", value.Line, len(pair))
	}
	p.Lat, p.Lon = pair[0], pair[1]
	return nil
}

// ParseRegion decodes and validates a YAML region definition. When bounds
// are omitted they are derived from the polygon.
func ParseRegion(data []byte) (Region, error) {
	var r Region
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Region{}, fmt.Errorf("decode region: %w", err)
	}
	if r.Bounds == (BoundingBox{}) {
		r.Bounds = r.Polygon.Bounds()
	}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// LoadRegion reads a YAML region definition from disk.
func LoadRegion(path string) (Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Region{}, fmt.Errorf("read region file: %w", err)
	}
	r, err := ParseRegion(data)
	if err != nil {
		return Region{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func degreeDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat, dLon := lat1-lat2, lon1-lon2
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
