// Package simulator produces a synthetic, time-evolving noise field for a
// region. It seeds map clients when no live readings are available.
//
// Generate builds an initial population by rejection sampling: 70% of the
// samples are drawn around population clusters and the rest uniformly over
// the region. Nudge advances a population by one step, mixing a smooth
// position-phased oscillation with small random walks and occasional
// relocations. Every sample either call returns lies inside the region.
//
// A Generator is not safe for concurrent use.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
)

var (
	// ErrInvalidTotal is returned by Generate for a non-positive count.
	ErrInvalidTotal = errors.New("sample count must be positive")

	// ErrInvalidChangeRatio is returned by Nudge for a ratio outside [0, 1].
	ErrInvalidChangeRatio = errors.New("change ratio must be within [0, 1]")

	// ErrRejectionLimit means the region rejected too many candidates in a
	// row, which points at a misconfigured polygon or bounding box.
	ErrRejectionLimit = errors.New("rejection sampling limit reached")
)

// Generator owns a region, a random source and the tuning for both phases.
type Generator struct {
	region Region
	src    Source
	gen    GenerateParams
	nudge  NudgeParams
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource injects the uniform source. Tests pass NewSource(seed).
func WithSource(src Source) Option {
	return func(g *Generator) { g.src = src }
}

// WithGenerateParams overrides the initial population tuning.
func WithGenerateParams(p GenerateParams) Option {
	return func(g *Generator) { g.gen = p }
}

// WithNudgeParams overrides the evolution tuning.
func WithNudgeParams(p NudgeParams) Option {
	return func(g *Generator) { g.nudge = p }
}

// New creates a Generator for the region. Without WithSource it draws from a
// randomly seeded source.
func New(region Region, opts ...Option) *Generator {
	g := &Generator{
		region: region,
		gen:    DefaultGenerateParams(),
		nudge:  DefaultNudgeParams(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.src == nil {
		g.src = NewRandomSource()
	}
	return g
}

// Region returns the region the generator samples from.
func (g *Generator) Region() Region {
	return g.region
}

// Generate returns total samples stamped with now: the clustered share
// first, then the background share.
func (g *Generator) Generate(total int, now time.Time) ([]domain.Sample, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotal, total)
	}
	if len(g.region.Clusters) == 0 {
		return nil, fmt.Errorf("%w: no clusters", ErrInvalidRegion)
	}

	ts := now.UTC()
	clustered := int(math.Floor(float64(total) * g.gen.ClusteredShare))
	samples := make([]domain.Sample, 0, total)

	for len(samples) < clustered {
		s, err := g.accept(g.clusteredCandidate, ts)
		if err != nil {
			return nil, fmt.Errorf("clustered sample %d: %w", len(samples), err)
		}
		samples = append(samples, s)
	}
	for len(samples) < total {
		s, err := g.accept(g.backgroundCandidate, ts)
		if err != nil {
			return nil, fmt.Errorf("background sample %d: %w", len(samples), err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// accept draws candidates until one lies inside the region.
func (g *Generator) accept(candidate func() (lat, lon, dB float64), ts time.Time) (domain.Sample, error) {
	for range g.gen.MaxRejections {
		lat, lon, dB := candidate()
		if g.region.Contains(lat, lon) {
			return domain.Sample{Lat: lat, Lon: lon, DB: round1(dB), Timestamp: ts}, nil
		}
	}
	return domain.Sample{}, fmt.Errorf("%w: %d consecutive candidates outside region %q",
		ErrRejectionLimit, g.gen.MaxRejections, g.region.Name)
}

func (g *Generator) clusteredCandidate() (float64, float64, float64) {
	c := g.region.Clusters[pick(g.src, len(g.region.Clusters))]
	latOffset := Norm(g.src) * c.Sigma
	lonOffset := Norm(g.src) * c.Sigma
	dB := g.gen.ClusteredLevel.Clamp(c.Base + Norm(g.src)*g.gen.ClusterLevelSpread)
	return c.Lat + latOffset, c.Lon + lonOffset, dB
}

func (g *Generator) backgroundCandidate() (float64, float64, float64) {
	b := g.region.Bounds
	lat := Uniform(g.src, b.MinLat, b.MaxLat) + Norm(g.src)*g.gen.BackgroundJitter
	lon := Uniform(g.src, b.MinLon, b.MaxLon) + Norm(g.src)*g.gen.BackgroundJitter
	var spike float64
	if chance(g.src, g.gen.SpikeChance) {
		spike = Uniform(g.src, g.gen.Spike.Min, g.gen.Spike.Max)
	}
	base := Uniform(g.src, g.gen.BackgroundBase.Min, g.gen.BackgroundBase.Max) + spike
	return lat, lon, g.gen.BackgroundLevel.Clamp(base)
}

// Evolution is the result of one Evolve step.
type Evolution struct {
	Samples   []domain.Sample
	Relocated int // samples moved to a new cluster
	Reverted  int // samples whose move left the region and was undone
}

// Nudge advances every sample by one step at wall-clock time now. The result
// has the same length and order as samples; samples itself is not modified.
func (g *Generator) Nudge(samples []domain.Sample, now time.Time, changeRatio float64) ([]domain.Sample, error) {
	ev, err := g.Evolve(samples, now, changeRatio)
	if err != nil {
		return nil, err
	}
	return ev.Samples, nil
}

// Evolve is Nudge with per-step counters.
//
// A sample whose perturbed position fails containment keeps its previous
// position but still takes the new level. A sample that was already outside
// the region therefore stays where it was unless the perturbation happens to
// land inside.
func (g *Generator) Evolve(samples []domain.Sample, now time.Time, changeRatio float64) (Evolution, error) {
	if math.IsNaN(changeRatio) || changeRatio < 0 || changeRatio > 1 {
		return Evolution{}, fmt.Errorf("%w: got %v", ErrInvalidChangeRatio, changeRatio)
	}

	t := float64(now.UnixNano()) / float64(time.Second)
	ts := now.UTC()
	relocateP := changeRatio * g.nudge.RelocateRate

	ev := Evolution{Samples: make([]domain.Sample, len(samples))}
	for i, s := range samples {
		next, relocated, reverted := g.step(s, t, relocateP)
		next.Timestamp = ts
		ev.Samples[i] = next
		if relocated {
			ev.Relocated++
		}
		if reverted {
			ev.Reverted++
		}
	}
	return ev, nil
}

func (g *Generator) step(s domain.Sample, t, relocateP float64) (next domain.Sample, relocated, reverted bool) {
	p := g.nudge

	seed := s.Lat*phaseLatWeight + s.Lon*phaseLonWeight
	pulse := math.Sin(t*fastFreq+seed)*fastAmp + math.Sin(t*slowFreq+seed*slowSeed)*slowAmp

	dB := s.DB + pulse*p.PulseWeight + Uniform(g.src, -p.Walk, p.Walk)
	if chance(g.src, p.SurgeChance) {
		dB += Uniform(g.src, p.Surge.Min, p.Surge.Max)
	}

	lat := s.Lat + Uniform(g.src, -p.Jitter, p.Jitter)
	lon := s.Lon + Uniform(g.src, -p.Jitter, p.Jitter)

	if len(g.region.Clusters) > 0 && chance(g.src, relocateP) {
		c := g.region.Clusters[pick(g.src, len(g.region.Clusters))]
		sigma := c.Sigma * p.RelocateSigmaScale
		lat = c.Lat + Norm(g.src)*sigma
		lon = c.Lon + Norm(g.src)*sigma
		dB = c.Base + Norm(g.src)*p.RelocateLevelSpread
		relocated = true
	}

	if !g.region.Contains(lat, lon) {
		lat, lon = s.Lat, s.Lon
		reverted = true
	}

	return domain.Sample{Lat: lat, Lon: lon, DB: round1(p.Level.Clamp(dB))}, relocated, reverted
}

// round1 rounds to one decimal place, the precision clients display.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
