package render_test

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/render"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

func TestColorMapper_Endpoints(t *testing.T) {
	cm := render.NewColorMapper(render.HeatGradient, render.MinLevelDB, render.MaxLevelDB, render.DefaultColorMapSize)

	assert.Equal(t, color.RGBA{R: 0x00, G: 0xff, B: 0x7f, A: 0xff}, cm.Color(render.MinLevelDB))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, cm.Color(render.MaxLevelDB))
	assert.Equal(t, cm.Color(render.MinLevelDB), cm.Color(10), "quieter values saturate")
	assert.Equal(t, cm.Color(render.MaxLevelDB), cm.Color(140), "louder values saturate")
}

func TestColorMapper_Midpoint(t *testing.T) {
	cm := render.NewColorMapper(render.HeatGradient, 0, 1, 3)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}, cm.Color(0.5))
}

func TestColorMapper_Monotonic(t *testing.T) {
	cm := render.NewColorMapper(render.HeatGradient, render.MinLevelDB, render.MaxLevelDB, render.DefaultColorMapSize)
	// Green falls and red rises across the upper half.
	prev := cm.Color(67.5)
	for dB := 68.0; dB <= render.MaxLevelDB; dB++ {
		c := cm.Color(dB)
		assert.LessOrEqual(t, c.G, prev.G)
		assert.Equal(t, uint8(0xff), c.R)
		prev = c
	}
}

func TestHeatmap_InvalidWidth(t *testing.T) {
	_, err := render.NewHeatmap(simulator.SriLanka(), render.Options{Width: 0})
	require.ErrorIs(t, err, render.ErrInvalidSize)
}

func TestHeatmap_RenderAndEncode(t *testing.T) {
	region := simulator.SriLanka()
	hm, err := render.NewHeatmap(region, render.DefaultOptions())
	require.NoError(t, err)

	gen := simulator.New(region, simulator.WithSource(simulator.NewSource(3)))
	samples, err := gen.Generate(500, ts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, hm.Encode(&buf, samples))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	w, h := hm.Size()
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
	assert.Greater(t, h, w, "Sri Lanka is taller than it is wide")
}

func TestHeatmap_LoudSampleIsRed(t *testing.T) {
	region := simulator.SriLanka()
	hm, err := render.NewHeatmap(region, render.DefaultOptions())
	require.NoError(t, err)

	// Kandy, stacked so the pixel is fully opaque.
	kandy := domain.Sample{Lat: 7.2906, Lon: 80.6337, DB: 95, Timestamp: ts}
	img := hm.Render([]domain.Sample{kandy, kandy, kandy})

	b := region.Bounds
	w, _ := hm.Size()
	mapH := int(math.Round(float64(w) * (b.MaxLat - b.MinLat) / (b.MaxLon - b.MinLon)))
	x := int((kandy.Lon - b.MinLon) / (b.MaxLon - b.MinLon) * float64(w))
	y := int((b.MaxLat - kandy.Lat) / (b.MaxLat - b.MinLat) * float64(mapH))

	c := img.RGBAAt(x, y)
	assert.Equal(t, uint8(0xff), c.R)
	assert.Less(t, c.G, uint8(0x20))
}

func TestHeatmap_EmptySamples(t *testing.T) {
	hm, err := render.NewHeatmap(simulator.SriLanka(), render.DefaultOptions())
	require.NoError(t, err)
	img := hm.Render(nil)
	assert.NotNil(t, img)
}

func TestFeatureCollection(t *testing.T) {
	samples := []domain.Sample{
		{Lat: 6.9271, Lon: 79.8612, DB: 72.4, Timestamp: ts},
		{Lat: 7.2906, Lon: 80.6337, DB: 48.0, Timestamp: ts},
	}
	fc := render.FeatureCollection(samples)
	require.Len(t, fc.Features, 2)

	assert.Equal(t, orb.Point{79.8612, 6.9271}, fc.Features[0].Geometry)
	assert.Equal(t, "loud", fc.Features[0].Properties["level"])
	assert.Equal(t, "quiet", fc.Features[1].Properties["level"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	decoded, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	got, err := render.SamplesFromFeatureCollection(decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(samples, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesFromFeatureCollection_MissingDB(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{80, 7}))
	_, err := render.SamplesFromFeatureCollection(fc)
	assert.Error(t, err)
}

func TestRegionFeature(t *testing.T) {
	region := simulator.SriLanka()
	f := render.RegionFeature(region)

	poly, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.True(t, poly[0].Closed())
	assert.Len(t, poly[0], len(region.Polygon))
	assert.Equal(t, "sri-lanka", f.Properties["name"])
}

func TestHistoryChart(t *testing.T) {
	days := []domain.DailyAverage{
		{Day: "2024-04-30", AverageDB: 55.2, Min: 48, Max: 61, Count: 3},
		{Day: "2024-05-01", AverageDB: 71.0, Min: 66, Max: 80, Count: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, render.HistoryChart(&buf, "pixel-7a", days))

	html := buf.String()
	assert.Contains(t, html, "Daily noise levels")
	assert.Contains(t, html, "2024-04-30")
	assert.Contains(t, html, "pixel-7a")
}
