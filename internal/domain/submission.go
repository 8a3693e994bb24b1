package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation failures for client submissions. All of them are client errors.
var (
	ErrMalformedBody    = errors.New("malformed JSON body")
	ErrMissingFields    = errors.New("missing deviceId or timestamp")
	ErrInvalidNumbers   = errors.New("lat, lon and dB must be numbers")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrOutOfRange       = errors.New("lat or lon out of range")
)

// IsValidationError reports whether err was caused by a bad submission.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMalformedBody) ||
		errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidNumbers) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrOutOfRange)
}

// RejectReason returns a short metric label for a validation error, or
// "other" when err is not one.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return "malformed"
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrInvalidNumbers):
		return "invalid_numbers"
	case errors.Is(err, ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	default:
		return "other"
	}
}

// submission is the wire shape of POST /add-noise. Numeric fields are
// json.RawMessage so that missing values and non-number values can be told
// apart from a genuine zero.
type submission struct {
	DeviceID  string          `json:"deviceId"`
	Lat       json.RawMessage `json:"lat"`
	Lon       json.RawMessage `json:"lon"`
	DB        json.RawMessage `json:"dB"`
	Timestamp string          `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSubmission validates a raw client payload and returns a reading with a
// fresh ID and receipt time. The checks run in the same order the mobile
// client expects its error messages: required fields, numbers, timestamp.
func ParseSubmission(body []byte) (NoiseReading, error) {
	var sub submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return NoiseReading{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	deviceID := strings.TrimSpace(sub.DeviceID)
	if deviceID == "" || strings.TrimSpace(sub.Timestamp) == "" {
		return NoiseReading{}, ErrMissingFields
	}

	lat, okLat := parseNumber(sub.Lat)
	lon, okLon := parseNumber(sub.Lon)
	dB, okDB := parseNumber(sub.DB)
	if !okLat || !okLon || !okDB {
		return NoiseReading{}, ErrInvalidNumbers
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return NoiseReading{}, fmt.Errorf("%w: lat=%g lon=%g", ErrOutOfRange, lat, lon)
	}

	ts, err := ParseTimestamp(sub.Timestamp)
	if err != nil {
		return NoiseReading{}, err
	}

	return NoiseReading{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Lat:        lat,
		Lon:        lon,
		DB:         dB,
		Timestamp:  ts,
		ReceivedAt: Now(),
	}, nil
}

// ParseTimestamp accepts ISO-8601 instants and a few looser layouts sent by
// older clients, returning the instant in UTC. Values without a zone are
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// parseNumber accepts only JSON numbers that are finite.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
