// Package feed publishes a periodically refreshed set of noise samples for the
// map. A SampleSource produces each snapshot; an optional SnapshotLoader ships
// it downstream.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// SampleSource produces the samples for one tick.
type SampleSource interface {
	Name() string
	Samples(ctx context.Context, now time.Time) ([]domain.Sample, error)
}

// SnapshotLoader writes a snapshot to a downstream sink.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Feed runs the tick loop and keeps the latest snapshot in memory.
type Feed struct {
	source   SampleSource
	loader   SnapshotLoader
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu     sync.RWMutex
	latest domain.Snapshot
}

// New creates a Feed. loader may be nil when no sink is configured.
func New(src SampleSource, loader SnapshotLoader, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Feed {
	return &Feed{
		source:   src,
		loader:   loader,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the feed has produced a snapshot.
func (f *Feed) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("feed has not produced a snapshot yet")
	}
	return nil
}

// Snapshot returns a copy of the latest snapshot. Seq is 0 before the first tick.
func (f *Feed) Snapshot() domain.Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := f.latest
	snap.Samples = append([]domain.Sample(nil), f.latest.Samples...)
	return snap
}

// Run ticks immediately, then every interval, until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("feed started", "source", f.source.Name(), "interval", f.interval)
	f.metrics.FeedRunning.Set(1)
	defer f.metrics.FeedRunning.Set(0)

	backoff := initialBackoff
	if !f.tick(ctx, &backoff) {
		f.logger.Info("feed stopping", "reason", ctx.Err())
		return nil
	}

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("feed stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if !f.tick(ctx, &backoff) {
				f.logger.Info("feed stopping", "reason", ctx.Err())
				return nil
			}
		}
	}
}

// tick produces, stores and ships one snapshot. Returns false if the feed
// should stop.
func (f *Feed) tick(ctx context.Context, backoff *time.Duration) bool {
	start := f.clock.Now()

	samples, err := f.source.Samples(ctx, start)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		f.logger.Error("sample source failed", "source", f.source.Name(), "error", err)
		f.metrics.PublishErrors.Inc()
		return f.backoffOrStop(ctx, backoff)
	}

	snap := f.publish(start, samples)
	f.metrics.FeedTicks.Inc()
	f.metrics.SnapshotSize.Observe(float64(len(samples)))
	f.ready.Store(true)

	if f.loader != nil {
		if err := f.loader.LoadSnapshot(ctx, snap); err != nil {
			if ctx.Err() != nil {
				return false
			}
			f.logger.Error("load snapshot failed", "error", err, "seq", snap.Seq, "samples", len(samples))
			f.metrics.PublishErrors.Inc()
			return f.backoffOrStop(ctx, backoff)
		}
		f.metrics.SamplesPublished.Add(float64(len(samples)))
	}

	*backoff = initialBackoff
	f.metrics.TickDuration.Observe(f.clock.Since(start).Seconds())
	f.logger.Debug("snapshot published", "seq", snap.Seq, "samples", len(samples))
	return true
}

func (f *Feed) publish(now time.Time, samples []domain.Sample) domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = domain.Snapshot{
		Seq:         f.latest.Seq + 1,
		Source:      f.source.Name(),
		GeneratedAt: now.UTC(),
		Samples:     samples,
	}
	return f.latest
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the context was cancelled. The sleep runs on the feed clock rather
// than retry.SleepWithContext so fake clocks control it.
func (f *Feed) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !f.sleep(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

func (f *Feed) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-f.clock.After(d):
		return true
	}
}
