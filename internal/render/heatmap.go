// Package render turns noise samples into map artefacts: a PNG heatmap with a
// legend and a GeoJSON feature collection.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
)

// ErrInvalidSize is returned for a non-positive image width.
var ErrInvalidSize = errors.New("invalid image size")

const (
	defaultWidth  = 480
	legendHeight  = 56
	maxImageWidth = 4096
)

var (
	backgroundColor = color.RGBA{R: 0x1b, G: 0x26, B: 0x38, A: 0xff}
	outlineColor    = color.RGBA{R: 0xd0, G: 0xd8, B: 0xe4, A: 0xff}
)

// Options tunes a heatmap.
type Options struct {
	Width      int     // pixels; height follows the bounds' aspect ratio
	RadiusPx   float64 // gaussian sigma of each sample splat
	Saturation float64 // accumulated weight at which a pixel is fully opaque
}

// DefaultOptions returns the settings used by the HTTP endpoint.
func DefaultOptions() Options {
	return Options{Width: defaultWidth, RadiusPx: 6, Saturation: 1.5}
}

// Heatmap renders samples over a region.
type Heatmap struct {
	region    simulator.Region
	opts      Options
	mapper    *ColorMapper
	annotator *annotator
}

// NewHeatmap creates a renderer for the region.
func NewHeatmap(region simulator.Region, opts Options) (*Heatmap, error) {
	if opts.Width <= 0 || opts.Width > maxImageWidth {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidSize, opts.Width)
	}
	if opts.RadiusPx <= 0 {
		opts.RadiusPx = DefaultOptions().RadiusPx
	}
	if opts.Saturation <= 0 {
		opts.Saturation = DefaultOptions().Saturation
	}
	a, err := newAnnotator()
	if err != nil {
		return nil, err
	}
	return &Heatmap{
		region:    region,
		opts:      opts,
		mapper:    NewColorMapper(HeatGradient, MinLevelDB, MaxLevelDB, DefaultColorMapSize),
		annotator: a,
	}, nil
}

// Size returns the image dimensions including the legend strip.
func (h *Heatmap) Size() (int, int) {
	return h.opts.Width, h.mapHeight() + legendHeight
}

func (h *Heatmap) mapHeight() int {
	b := h.region.Bounds
	return max(1, int(math.Round(float64(h.opts.Width)*(b.MaxLat-b.MinLat)/(b.MaxLon-b.MinLon))))
}

// project converts a coordinate to pixel space. y grows southwards.
func (h *Heatmap) project(lat, lon float64) (float64, float64) {
	b := h.region.Bounds
	x := (lon - b.MinLon) / (b.MaxLon - b.MinLon) * float64(h.opts.Width)
	y := (b.MaxLat - lat) / (b.MaxLat - b.MinLat) * float64(h.mapHeight())
	return x, y
}

// Render draws the heatmap. Each pixel takes the gaussian-weighted mean level
// of nearby samples; opacity follows the accumulated weight.
func (h *Heatmap) Render(samples []domain.Sample) *image.RGBA {
	w, mh := h.opts.Width, h.mapHeight()
	img := image.NewRGBA(image.Rect(0, 0, w, mh+legendHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	weights := make([]float64, w*mh)
	levels := make([]float64, w*mh)
	sigma := h.opts.RadiusPx
	reach := int(math.Ceil(3 * sigma))
	twoSigmaSq := 2 * sigma * sigma

	for _, s := range samples {
		cx, cy := h.project(s.Lat, s.Lon)
		x0, x1 := max(0, int(cx)-reach), min(w-1, int(cx)+reach)
		y0, y1 := max(0, int(cy)-reach), min(mh-1, int(cy)+reach)
		for y := y0; y <= y1; y++ {
			dy := float64(y) + 0.5 - cy
			for x := x0; x <= x1; x++ {
				dx := float64(x) + 0.5 - cx
				k := math.Exp(-(dx*dx + dy*dy) / twoSigmaSq)
				i := y*w + x
				weights[i] += k
				levels[i] += k * s.DB
			}
		}
	}

	for y := range mh {
		for x := range w {
			i := y*w + x
			if weights[i] < 1e-3 {
				continue
			}
			c := h.mapper.Color(levels[i] / weights[i])
			alpha := math.Min(1, weights[i]/h.opts.Saturation)
			img.SetRGBA(x, y, blend(backgroundColor, c, alpha))
		}
	}

	h.drawOutline(img)
	h.annotator.drawLegend(img, h.mapper, mh, len(samples))
	return img
}

// Encode renders samples and writes the PNG to w.
func (h *Heatmap) Encode(w io.Writer, samples []domain.Sample) error {
	if err := png.Encode(w, h.Render(samples)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (h *Heatmap) drawOutline(img *image.RGBA) {
	poly := h.region.Polygon
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		x0, y0 := h.project(poly[j].Lat, poly[j].Lon)
		x1, y1 := h.project(poly[i].Lat, poly[i].Lon)
		steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
		for s := 0; s <= steps; s++ {
			f := float64(s) / float64(steps)
			x, y := int(x0+(x1-x0)*f), int(y0+(y1-y0)*f)
			if image.Pt(x, y).In(img.Bounds()) && y < h.mapHeight() {
				img.SetRGBA(x, y, outlineColor)
			}
		}
	}
}

func blend(bg, fg color.RGBA, alpha float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	return color.RGBA{R: mix(bg.R, fg.R), G: mix(bg.G, fg.G), B: mix(bg.B, fg.B), A: 0xff}
}
