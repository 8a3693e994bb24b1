package render

import (
	"image/color"
	"math"
)

// DefaultColorMapSize is the number of pre-computed colours in a ColorMapper.
const DefaultColorMapSize = 256

// Level range mapped onto the gradient. Louder or quieter values saturate.
const (
	MinLevelDB = 40.0
	MaxLevelDB = 95.0
)

// Stop is one colour of a gradient at a normalised position in [0, 1].
type Stop struct {
	At    float64
	Color color.RGBA
}

// HeatGradient runs from spring green through gold to red, the ramp the map
// clients use for their heat layers.
var HeatGradient = []Stop{
	{At: 0, Color: color.RGBA{R: 0x00, G: 0xff, B: 0x7f, A: 0xff}},
	{At: 0.5, Color: color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}},
	{At: 1, Color: color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}},
}

// ColorMapper maps sound levels to gradient colours through a lookup table.
type ColorMapper struct {
	colorMap    []color.RGBA
	size        int
	boundsMin   float64
	boundsRange float64
}

// NewColorMapper builds a lookup table of size colours spanning [minDB, maxDB].
func NewColorMapper(stops []Stop, minDB, maxDB float64, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}
	cm := &ColorMapper{
		colorMap:    make([]color.RGBA, size),
		size:        size,
		boundsMin:   minDB,
		boundsRange: maxDB - minDB,
	}
	for i := range size {
		cm.colorMap[i] = interpolate(stops, float64(i)/float64(size-1))
	}
	return cm
}

// Color returns the colour for a level, clamped to the mapper's range.
func (cm *ColorMapper) Color(dB float64) color.RGBA {
	if math.IsNaN(dB) || cm.boundsRange <= 0 {
		return cm.colorMap[0]
	}
	index := int(math.Round((dB - cm.boundsMin) / cm.boundsRange * float64(cm.size-1)))
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

func interpolate(stops []Stop, p float64) color.RGBA {
	if len(stops) == 0 {
		return color.RGBA{A: 0xff}
	}
	if p <= stops[0].At {
		return stops[0].Color
	}
	for i := 1; i < len(stops); i++ {
		lo, hi := stops[i-1], stops[i]
		if p > hi.At {
			continue
		}
		f := (p - lo.At) / (hi.At - lo.At)
		return color.RGBA{
			R: lerp(lo.Color.R, hi.Color.R, f),
			G: lerp(lo.Color.G, hi.Color.G, f),
			B: lerp(lo.Color.B, hi.Color.B, f),
			A: lerp(lo.Color.A, hi.Color.A, f),
		}
	}
	return stops[len(stops)-1].Color
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
