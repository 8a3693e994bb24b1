package simulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegionYAML = `
name: unit-square
polygon:
  - [0, 0]
  - [0, 1]
  - [1, 1]
  - [1, 0]
clusters:
  - name: centre
    lat: 0.5
    lon: 0.5
    base: 60
    sigma: 0.05
`

func TestSriLanka_Valid(t *testing.T) {
	r := SriLanka()
	require.NoError(t, r.Validate())
	assert.Len(t, r.Clusters, 13)
	assert.Len(t, r.Polygon, 14)
	assert.Equal(t, r.Polygon[0], r.Polygon[len(r.Polygon)-1])
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion([]byte(testRegionYAML))
	require.NoError(t, err)

	assert.Equal(t, "unit-square", r.Name)
	assert.Equal(t, unitSquare, r.Polygon)
	assert.Equal(t, BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}, r.Bounds, "derived from polygon")
	require.Len(t, r.Clusters, 1)
	assert.Equal(t, Cluster{Name: "centre", Lat: 0.5, Lon: 0.5, Base: 60, Sigma: 0.05}, r.Clusters[0])

	samples, err := New(r, WithSource(NewSource(1))).Generate(200, testNow)
	require.NoError(t, err)
	requireInRegion(t, r, samples)
}

func TestParseRegion_ExplicitBounds(t *testing.T) {
	doc := testRegionYAML + `
bounds:
  minLat: 0.1
  maxLat: 0.9
  minLon: 0.1
  maxLon: 0.9
`
	r, err := ParseRegion([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinLat: 0.1, MaxLat: 0.9, MinLon: 0.1, MaxLon: 0.9}, r.Bounds)
}

func TestParseRegion_Errors(t *testing.T) {
	cases := map[string]string{
		"bad point":      "name: x\npolygon:\n  - [0, 0, 0]\n",
		"too few points": "name: x\npolygon:\n  - [0, 0]\n  - [1, 1]\nclusters:\n  - {name: a, lat: 0.5, lon: 0.5, base: 50, sigma: 0.1}\n",
		"no clusters":    "name: x\npolygon:\n  - [0, 0]\n  - [0, 1]\n  - [1, 1]\n",
		"zero sigma":     "name: x\npolygon:\n  - [0, 0]\n  - [0, 1]\n  - [1, 1]\nclusters:\n  - {name: a, lat: 0.5, lon: 0.5, base: 50, sigma: 0}\n",
		"cluster out":    "name: x\npolygon:\n  - [0, 0]\n  - [0, 1]\n  - [1, 1]\nclusters:\n  - {name: a, lat: 5, lon: 0.5, base: 50, sigma: 0.1}\n",
		"not yaml":       "polygon: [[[",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegion([]byte(doc))
			require.Error(t, err)
		})
	}

	_, err := ParseRegion([]byte(cases["no clusters"]))
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestLoadRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegionYAML), 0o600))

	r, err := LoadRegion(path)
	require.NoError(t, err)
	assert.Equal(t, "unit-square", r.Name)

	_, err = LoadRegion(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNearestCluster(t *testing.T) {
	r := SriLanka()
	c, d := r.NearestCluster(7.29, 80.63)
	assert.Equal(t, "Kandy", c.Name)
	assert.Less(t, d, 0.01)

	c, _ = r.NearestCluster(9.7, 80.0)
	assert.Equal(t, "Jaffna", c.Name)
}
