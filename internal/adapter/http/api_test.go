package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/noise-map-service/internal/adapter/http"
	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/observability"
	"github.com/couchcryptid/noise-map-service/internal/render"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/couchcryptid/noise-map-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	readings  []domain.NoiseReading
	filter    store.Filter
	insertErr error
}

func (m *memStore) Insert(_ context.Context, r domain.NoiseReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.readings = append(m.readings, r)
	return nil
}

func (m *memStore) List(_ context.Context, f store.Filter) ([]domain.NoiseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	var out []domain.NoiseReading
	for _, r := range m.readings {
		if r.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ListByDevice(_ context.Context, deviceID string) ([]domain.NoiseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NoiseReading
	for _, r := range m.readings {
		if r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixedFeed struct {
	snap domain.Snapshot
}

func (f fixedFeed) Snapshot() domain.Snapshot { return f.snap }

type apiFixture struct {
	srv     *httpadapter.Server
	store   *memStore
	metrics *observability.Metrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	region := simulator.SriLanka()
	gen := simulator.New(region, simulator.WithSource(simulator.NewSource(5)))
	samples, err := gen.Generate(50, now)
	require.NoError(t, err)

	hm, err := render.NewHeatmap(region, render.DefaultOptions())
	require.NoError(t, err)

	st := &memStore{}
	metrics := observability.NewMetricsForTesting()
	feed := fixedFeed{snap: domain.Snapshot{Seq: 3, Source: "mock", GeneratedAt: now, Samples: samples}}
	api := httpadapter.NewAPI(st, feed, render.NewCachedHeatmap(hm, render.DefaultCacheEntries), slog.Default(), metrics)
	return &apiFixture{
		srv:     httpadapter.NewServer(":0", &mockReadiness{}, api, slog.Default()),
		store:   st,
		metrics: metrics,
	}
}

func (f *apiFixture) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAddNoise_Success(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/add-noise",
		`{"deviceId":"pixel-7a","lat":6.9271,"lon":79.8612,"dB":72.5,"timestamp":"2024-05-01T11:59:00Z"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Noise data saved successfully", decodeBody(t, rec)["message"])
	require.Len(t, f.store.readings, 1)
	r := f.store.readings[0]
	assert.Equal(t, "pixel-7a", r.DeviceID)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, now, r.ReceivedAt)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ReadingsIngested), 0)
}

func TestAddNoise_AliasRoute(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodPost, "/noise",
		`{"deviceId":"pixel-7a","lat":7,"lon":80,"dB":50,"timestamp":"2024-05-01T11:59:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddNoise_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, body, wantErr, reason string
	}{
		{"missing device", `{"lat":7,"lon":80,"dB":50,"timestamp":"2024-05-01T10:00:00Z"}`, "Missing deviceId or timestamp", "missing_fields"},
		{"missing timestamp", `{"deviceId":"d","lat":7,"lon":80,"dB":50}`, "Missing deviceId or timestamp", "missing_fields"},
		{"string number", `{"deviceId":"d","lat":"7","lon":80,"dB":50,"timestamp":"2024-05-01T10:00:00Z"}`, "lat, lon and dB must be numbers", "invalid_numbers"},
		{"missing dB", `{"deviceId":"d","lat":7,"lon":80,"timestamp":"2024-05-01T10:00:00Z"}`, "lat, lon and dB must be numbers", "invalid_numbers"},
		{"bad timestamp", `{"deviceId":"d","lat":7,"lon":80,"dB":50,"timestamp":"yesterday"}`, "Invalid timestamp", "invalid_timestamp"},
		{"out of range", `{"deviceId":"d","lat":97,"lon":80,"dB":50,"timestamp":"2024-05-01T10:00:00Z"}`, "lat or lon out of range", "out_of_range"},
		{"not json", `{"deviceId":`, "Malformed JSON body", "malformed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t)
			rec := f.do(http.MethodPost, "/add-noise", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantErr, decodeBody(t, rec)["error"])
			assert.Empty(t, f.store.readings)
			assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ReadingsRejected.WithLabelValues(tc.reason)), 0)
		})
	}
}

func TestAddNoise_StoreFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.store.insertErr = errors.New("disk I/O error")

	rec := f.do(http.MethodPost, "/add-noise",
		`{"deviceId":"d","lat":7,"lon":80,"dB":50,"timestamp":"2024-05-01T10:00:00Z"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["error"])
}

func TestListNoise(t *testing.T) {
	f := newAPIFixture(t)
	f.store.readings = []domain.NoiseReading{
		{ID: "a", DeviceID: "d", Lat: 7, Lon: 80, DB: 60, Timestamp: now.Add(-30 * time.Minute)},
		{ID: "b", DeviceID: "d", Lat: 7, Lon: 80, DB: 65, Timestamp: now.Add(-2 * time.Hour)},
	}

	rec := f.do(http.MethodGet, "/noise?timeRange=1h&lat=6.9&lon=79.9&radius=12&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.NoiseReading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	assert.Equal(t, now.Add(-time.Hour), f.store.filter.Since)
	assert.Equal(t, &store.Area{Lat: 6.9, Lon: 79.9, RadiusKm: 12}, f.store.filter.Near)
	assert.Equal(t, 10, f.store.filter.Limit)
}

func TestListNoise_Defaults(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/noise?lat=6.9&lon=79.9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.True(t, f.store.filter.Since.IsZero())
	require.NotNil(t, f.store.filter.Near)
	assert.InDelta(t, 5, f.store.filter.Near.RadiusKm, 0)
}

func TestListNoise_BadQuery(t *testing.T) {
	f := newAPIFixture(t)
	for _, target := range []string{
		"/noise?timeRange=fortnight",
		"/noise?radius=5",
		"/noise?lat=abc&lon=80",
		"/noise?lat=7&lon=80&radius=-1",
		"/noise?limit=0",
	} {
		rec := f.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestNoiseHistory(t *testing.T) {
	f := newAPIFixture(t)
	f.store.readings = []domain.NoiseReading{
		{ID: "a", DeviceID: "pixel-7a", DB: 50, Timestamp: now.Add(-26 * time.Hour)},
		{ID: "b", DeviceID: "pixel-7a", DB: 60, Timestamp: now.Add(-time.Hour)},
		{ID: "c", DeviceID: "pixel-7a", DB: 70, Timestamp: now.Add(-time.Minute)},
		{ID: "d", DeviceID: "other", DB: 90, Timestamp: now},
	}

	rec := f.do(http.MethodGet, "/user/noise-history?deviceId=pixel-7a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		DeviceID string                `json:"deviceId"`
		Readings []domain.NoiseReading `json:"readings"`
		Days     []domain.DailyAverage `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pixel-7a", body.DeviceID)
	assert.Len(t, body.Readings, 3)
	require.Len(t, body.Days, 2)
	assert.Equal(t, "2024-04-30", body.Days[0].Day)
	assert.InDelta(t, 65, body.Days[1].AverageDB, 1e-9)
}

func TestNoiseHistory_RequiresDevice(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/user/noise-history", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/user/noise-history/chart", "").Code)
}

func TestNoiseHistoryChart(t *testing.T) {
	f := newAPIFixture(t)
	f.store.readings = []domain.NoiseReading{{ID: "a", DeviceID: "pixel-7a", DB: 55, Timestamp: now}}

	rec := f.do(http.MethodGet, "/user/noise-history/chart?deviceId=pixel-7a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "2024-05-01")
}

func TestSamples(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/samples", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.Seq)
	assert.Equal(t, "mock", snap.Source)
	assert.Len(t, snap.Samples, 50)
}

func TestSamplesGeoJSON(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/samples.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 50)
}

func TestHeatmapPNG(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/heatmap.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
}

func TestHeatmapPNG_SameSnapshotSameBytes(t *testing.T) {
	f := newAPIFixture(t)

	first := f.do(http.MethodGet, "/heatmap.png", "")
	second := f.do(http.MethodGet, "/heatmap.png", "")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}
