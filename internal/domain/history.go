package domain

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DailyAverage is the mean level of one device's readings on a UTC day.
type DailyAverage struct {
	Day       string  `json:"day"` // YYYY-MM-DD
	AverageDB float64 `json:"averageDb"`
	Min       float64 `json:"minDb"`
	Max       float64 `json:"maxDb"`
	Count     int     `json:"count"`
}

// DailyAverages groups readings by UTC calendar day and averages their
// levels. Days are returned in ascending order; days without readings are
// omitted.
func DailyAverages(readings []NoiseReading) []DailyAverage {
	byDay := make(map[string][]float64)
	for i := range readings {
		key := readings[i].Timestamp.UTC().Format("2006-01-02")
		byDay[key] = append(byDay[key], readings[i].DB)
	}

	days := make([]string, 0, len(byDay))
	for k := range byDay {
		days = append(days, k)
	}
	sort.Strings(days)

	out := make([]DailyAverage, 0, len(days))
	for _, day := range days {
		levels := byDay[day]
		lo, hi := levels[0], levels[0]
		for _, v := range levels[1:] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		out = append(out, DailyAverage{
			Day:       day,
			AverageDB: stat.Mean(levels, nil),
			Min:       lo,
			Max:       hi,
			Count:     len(levels),
		})
	}
	return out
}
