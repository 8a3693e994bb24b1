package render

import (
	"fmt"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts samples to GeoJSON points carrying dB, level and
// timestamp properties. Coordinates are [lon, lat] as GeoJSON requires.
func FeatureCollection(samples []domain.Sample) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range samples {
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		f.Properties["dB"] = s.DB
		f.Properties["level"] = string(s.Level())
		f.Properties["timestamp"] = s.Timestamp.UTC().Format(time.RFC3339Nano)
		fc.Append(f)
	}
	return fc
}

// RegionFeature returns the region outline as a GeoJSON polygon feature.
func RegionFeature(region simulator.Region) *geojson.Feature {
	ring := make(orb.Ring, 0, len(region.Polygon)+1)
	for _, p := range region.Polygon {
		ring = append(ring, orb.Point{p.Lon, p.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["name"] = region.Name
	return f
}

// SamplesFromFeatureCollection reads samples back from point features written
// by FeatureCollection. Non-point features are skipped.
func SamplesFromFeatureCollection(fc *geojson.FeatureCollection) ([]domain.Sample, error) {
	out := make([]domain.Sample, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		dB, ok := f.Properties["dB"].(float64)
		if !ok {
			return nil, fmt.Errorf("feature %d: missing numeric dB property", i)
		}
		var ts time.Time
		if raw, ok := f.Properties["timestamp"].(string); ok {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			ts = parsed.UTC()
		}
		out = append(out, domain.Sample{Lat: pt.Lat(), Lon: pt.Lon(), DB: dB, Timestamp: ts})
	}
	return out, nil
}
