package domain

import "time"

// Level thresholds in dB, shared with the client legends.
const (
	QuietMaxDB    = 50.0
	ModerateMaxDB = 70.0
)

// Level is a coarse loudness bucket.
type Level string

const (
	LevelQuiet    Level = "quiet"
	LevelModerate Level = "moderate"
	LevelLoud     Level = "loud"
)

// ClassifyLevel buckets a sound level.
func ClassifyLevel(dB float64) Level {
	switch {
	case dB < QuietMaxDB:
		return LevelQuiet
	case dB < ModerateMaxDB:
		return LevelModerate
	default:
		return LevelLoud
	}
}

// Sample is a single anonymous noise observation as rendered on the map.
type Sample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	DB        float64   `json:"dB"`
	Timestamp time.Time `json:"timestamp"`
}

// Level returns the loudness bucket of the sample.
func (s Sample) Level() Level {
	return ClassifyLevel(s.DB)
}

// NoiseReading is a stored client submission.
type NoiseReading struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	DB         float64   `json:"dB"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Sample drops the identity fields of the reading.
func (r NoiseReading) Sample() Sample {
	return Sample{Lat: r.Lat, Lon: r.Lon, DB: r.DB, Timestamp: r.Timestamp}
}

// SamplesFromReadings converts stored readings to renderable samples,
// preserving order.
func SamplesFromReadings(readings []NoiseReading) []Sample {
	out := make([]Sample, len(readings))
	for i := range readings {
		out[i] = readings[i].Sample()
	}
	return out
}

// Snapshot is the sample set published by one feed tick. Seq increases by one
// per tick; samples keep their positions across ticks of a mock feed.
type Snapshot struct {
	Seq         int64     `json:"seq"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
	Samples     []Sample  `json:"samples"`
}
