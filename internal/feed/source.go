package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/observability"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/couchcryptid/noise-map-service/internal/store"
)

// MockSource generates a population on the first tick and evolves it on
// every tick after that. It must only be driven by one Feed.
type MockSource struct {
	gen         *simulator.Generator
	total       int
	changeRatio float64
	metrics     *observability.Metrics
	samples     []domain.Sample
}

// NewMockSource creates a simulator-backed source.
func NewMockSource(gen *simulator.Generator, total int, changeRatio float64, metrics *observability.Metrics) *MockSource {
	return &MockSource{gen: gen, total: total, changeRatio: changeRatio, metrics: metrics}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Samples(_ context.Context, now time.Time) ([]domain.Sample, error) {
	if m.samples == nil {
		samples, err := m.gen.Generate(m.total, now)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		m.samples = samples
		return samples, nil
	}

	ev, err := m.gen.Evolve(m.samples, now, m.changeRatio)
	if err != nil {
		return nil, fmt.Errorf("evolve: %w", err)
	}
	m.metrics.Relocations.Add(float64(ev.Relocated))
	m.samples = ev.Samples
	return ev.Samples, nil
}

// ReadingLister is the store query the live source depends on.
type ReadingLister interface {
	List(ctx context.Context, f store.Filter) ([]domain.NoiseReading, error)
}

// LiveSource serves stored device readings newer than a sliding window.
type LiveSource struct {
	readings ReadingLister
	window   time.Duration
}

// NewLiveSource creates a store-backed source.
func NewLiveSource(readings ReadingLister, window time.Duration) *LiveSource {
	return &LiveSource{readings: readings, window: window}
}

func (l *LiveSource) Name() string { return "live" }

func (l *LiveSource) Samples(ctx context.Context, now time.Time) ([]domain.Sample, error) {
	readings, err := l.readings.List(ctx, store.Filter{Since: now.Add(-l.window)})
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return domain.SamplesFromReadings(readings), nil
}
