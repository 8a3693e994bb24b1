package simulator

// Range is a closed interval used for clamping and uniform draws.
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to the interval.
func (r Range) Clamp(v float64) float64 {
	return max(r.Min, min(r.Max, v))
}

// Contains reports whether v lies in the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// GenerateParams shapes the initial population. Clustered and background
// samples keep separate clamp ranges.
type GenerateParams struct {
	ClusteredShare     float64 // fraction of samples drawn around clusters
	ClusterLevelSpread float64 // dB standard deviation around a cluster base
	ClusteredLevel     Range

	BackgroundJitter float64 // degrees of normal jitter added to uniform points
	BackgroundBase   Range   // uniform ambient level
	SpikeChance      float64
	Spike            Range
	BackgroundLevel  Range

	// MaxRejections bounds consecutive containment failures for one sample
	// before Generate gives up with ErrRejectionLimit.
	MaxRejections int
}

// DefaultGenerateParams returns the tuning used by the map clients.
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		ClusteredShare:     0.7,
		ClusterLevelSpread: 10,
		ClusteredLevel:     Range{Min: 45, Max: 92},
		BackgroundJitter:   0.01,
		BackgroundBase:     Range{Min: 46, Max: 55},
		SpikeChance:        0.06,
		Spike:              Range{Min: 8, Max: 18},
		BackgroundLevel:    Range{Min: 44, Max: 90},
		MaxRejections:      10000,
	}
}

// NudgeParams shapes one evolution step. Level and position drift are fixed;
// only relocation scales with the caller's change ratio.
type NudgeParams struct {
	PulseWeight float64 // share of the oscillation applied per step
	Walk        float64 // half-width of the uniform level random walk
	SurgeChance float64
	Surge       Range
	Jitter      float64 // half-width of the uniform position jitter, degrees

	RelocateRate        float64 // multiplied by changeRatio
	RelocateSigmaScale  float64
	RelocateLevelSpread float64

	Level Range
}

// DefaultNudgeParams returns the tuning used by the map clients.
func DefaultNudgeParams() NudgeParams {
	return NudgeParams{
		PulseWeight:         0.25,
		Walk:                0.6,
		SurgeChance:         0.015,
		Surge:               Range{Min: 6, Max: 12},
		Jitter:              0.002,
		RelocateRate:        0.08,
		RelocateSigmaScale:  0.8,
		RelocateLevelSpread: 8,
		Level:               Range{Min: 42, Max: 95},
	}
}

// Oscillation terms of the nudge pulse. The phase is derived from position so
// neighbouring points breathe together and relocated points pick up a new
// phase immediately.
const (
	phaseLatWeight = 7.1
	phaseLonWeight = 13.7

	fastFreq = 1.1
	fastAmp  = 3.5
	slowFreq = 0.37
	slowAmp  = 2.0
	slowSeed = 0.5
)
