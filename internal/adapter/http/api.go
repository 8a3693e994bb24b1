package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/observability"
	"github.com/couchcryptid/noise-map-service/internal/render"
	"github.com/couchcryptid/noise-map-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const (
	maxBodyBytes    = 64 << 10
	defaultRadiusKm = 5.0
	defaultLimit    = 1000
	maxLimit        = 5000
)

// ReadingStore is the persistence the API needs.
type ReadingStore interface {
	Insert(ctx context.Context, r domain.NoiseReading) error
	List(ctx context.Context, f store.Filter) ([]domain.NoiseReading, error)
	ListByDevice(ctx context.Context, deviceID string) ([]domain.NoiseReading, error)
}

// SnapshotProvider returns the current map feed.
type SnapshotProvider interface {
	Snapshot() domain.Snapshot
}

// HeatmapEncoder renders a feed snapshot as an image.
type HeatmapEncoder interface {
	EncodeSnapshot(w io.Writer, snap domain.Snapshot) error
}

// API serves readings submitted by devices and the synthetic map feed.
type API struct {
	readings ReadingStore
	feed     SnapshotProvider
	heatmap  HeatmapEncoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAPI wires the API handlers.
func NewAPI(readings ReadingStore, feed SnapshotProvider, heatmap HeatmapEncoder, logger *slog.Logger, metrics *observability.Metrics) *API {
	return &API{readings: readings, feed: feed, heatmap: heatmap, logger: logger, metrics: metrics}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /add-noise", a.handleAddNoise)
	mux.HandleFunc("POST /noise", a.handleAddNoise)
	mux.HandleFunc("GET /noise", a.handleListNoise)
	mux.HandleFunc("GET /user/noise-history", a.handleHistory)
	mux.HandleFunc("GET /user/noise-history/chart", a.handleHistoryChart)
	mux.HandleFunc("GET /samples", a.handleSamples)
	mux.HandleFunc("GET /samples.geojson", a.handleSamplesGeoJSON)
	mux.HandleFunc("GET /heatmap.png", a.handleHeatmap)
}

func (a *API) handleAddNoise(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.reject(w, domain.ErrMalformedBody)
		return
	}

	reading, err := domain.ParseSubmission(body)
	if err != nil {
		a.reject(w, err)
		return
	}

	if err := a.readings.Insert(r.Context(), reading); err != nil {
		a.logger.Error("store reading failed", "error", err, "device_id", reading.DeviceID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.metrics.ReadingsIngested.Inc()
	a.logger.Debug("reading stored", "id", reading.ID, "device_id", reading.DeviceID, "db", reading.DB)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"message": "Noise data saved successfully"})
}

func (a *API) reject(w http.ResponseWriter, err error) {
	a.metrics.ReadingsRejected.WithLabelValues(domain.RejectReason(err)).Inc()
	writeError(w, http.StatusBadRequest, rejectMessage(err))
}

// rejectMessage returns the client-facing text for a validation error.
func rejectMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return "Missing deviceId or timestamp"
	case errors.Is(err, domain.ErrInvalidNumbers):
		return "lat, lon and dB must be numbers"
	case errors.Is(err, domain.ErrInvalidTimestamp):
		return "Invalid timestamp"
	case errors.Is(err, domain.ErrOutOfRange):
		return "lat or lon out of range"
	default:
		return "Malformed JSON body"
	}
}

func (a *API) handleListNoise(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	tr, err := domain.ParseTimeRange(q.Get("timeRange"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "timeRange must be one of 1h, 24h, 7d, all")
		return
	}

	filter := store.Filter{Since: tr.Since(domain.Now()), Limit: defaultLimit}

	near, err := parseArea(q.Get("lat"), q.Get("lon"), q.Get("radius"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Near = near

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxLimit)
	}

	readings, err := a.readings.List(r.Context(), filter)
	if err != nil {
		a.logger.Error("list readings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if readings == nil {
		readings = []domain.NoiseReading{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, readings)
}

// parseArea reads the optional lat/lon/radius query. Without lat and lon
// there is no area; radius alone is an error.
func parseArea(latS, lonS, radiusS string) (*store.Area, error) {
	if latS == "" && lonS == "" {
		if radiusS != "" {
			return nil, errors.New("radius requires lat and lon")
		}
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(latS, 64)
	lon, errLon := strconv.ParseFloat(lonS, 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, errors.New("lat and lon must be valid coordinates")
	}
	radius := defaultRadiusKm
	if radiusS != "" {
		v, err := strconv.ParseFloat(radiusS, 64)
		if err != nil || v <= 0 {
			return nil, errors.New("radius must be a positive number of kilometres")
		}
		radius = v
	}
	return &store.Area{Lat: lat, Lon: lon, RadiusKm: radius}, nil
}

type historyResponse struct {
	DeviceID string                `json:"deviceId"`
	Readings []domain.NoiseReading `json:"readings"`
	Days     []domain.DailyAverage `json:"days"`
}

func (a *API) deviceHistory(w http.ResponseWriter, r *http.Request) (string, []domain.NoiseReading, bool) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return "", nil, false
	}
	readings, err := a.readings.ListByDevice(r.Context(), deviceID)
	if err != nil {
		a.logger.Error("list device readings failed", "error", err, "device_id", deviceID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return "", nil, false
	}
	if readings == nil {
		readings = []domain.NoiseReading{}
	}
	return deviceID, readings, true
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, readings, ok := a.deviceHistory(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, historyResponse{
		DeviceID: deviceID,
		Readings: readings,
		Days:     domain.DailyAverages(readings),
	})
}

func (a *API) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	deviceID, readings, ok := a.deviceHistory(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.HistoryChart(&buf, deviceID, domain.DailyAverages(readings)); err != nil {
		a.logger.Error("render history chart failed", "error", err, "device_id", deviceID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleSamples(w http.ResponseWriter, _ *http.Request) {
	snap := a.feed.Snapshot()
	if snap.Samples == nil {
		snap.Samples = []domain.Sample{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (a *API) handleSamplesGeoJSON(w http.ResponseWriter, _ *http.Request) {
	fc := render.FeatureCollection(a.feed.Snapshot().Samples)
	data, err := fc.MarshalJSON()
	if err != nil {
		a.logger.Error("encode geojson failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (a *API) handleHeatmap(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := a.heatmap.EncodeSnapshot(&buf, a.feed.Snapshot()); err != nil {
		a.logger.Error("render heatmap failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
