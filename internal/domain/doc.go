// Package domain models crowd-sourced noise readings and the synthetic samples
// that stand in for them when the service runs without live submissions.
//
// # Readings
//
// Clients capture a microphone-derived sound level together with a GPS fix
// and submit it as flat JSON:
//
//	{"deviceId": "pixel-7a", "lat": 6.9271, "lon": 79.8612, "dB": 63.4,
//	 "timestamp": "2025-03-01T08:15:00Z"}
//
// deviceId and timestamp are required. lat, lon and dB must be finite JSON
// numbers; strings such as "63.4" are rejected rather than coerced. The
// timestamp is normalised to UTC before it is stored. See [ParseSubmission].
//
// # Samples
//
// A [Sample] is the anonymous form rendered by map clients: position, level
// and timestamp only. Stored readings and simulator output both reduce to a
// slice of samples, so a renderer never needs to know which feed it is
// looking at.
//
// # Levels
//
// Levels are bucketed for legends and marker colours:
//
//	quiet     dB < 50
//	moderate  50 <= dB < 70
//	loud      dB >= 70
//
// # Time ranges
//
// Query endpoints accept the client time range tokens "1h", "24h", "7d" and
// "all". "hour" and "day" are accepted as aliases used by the web client.
package domain
