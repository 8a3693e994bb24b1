package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi        float64 = 72
	fontSize   float64 = 12
	legendPad          = 10
	barHeight          = 12
	tickHeight         = 4
)

// annotator is not safe for concurrent use; Heatmap serialises access.
type annotator struct {
	mu       sync.Mutex
	context  *freetype.Context
	fontFace font.Face
}

func newAnnotator() (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.White)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

// drawLegend paints the gradient bar with level ticks and the sample count
// into the strip below the map starting at row top.
func (a *annotator) drawLegend(img *image.RGBA, cm *ColorMapper, top, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	width := img.Bounds().Dx()
	barTop := top + legendPad
	barLeft, barRight := legendPad, width-legendPad
	if barRight <= barLeft {
		return
	}

	for x := barLeft; x < barRight; x++ {
		dB := MinLevelDB + (MaxLevelDB-MinLevelDB)*float64(x-barLeft)/float64(barRight-barLeft-1)
		c := cm.Color(dB)
		for y := barTop; y < barTop+barHeight; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	metrics := a.fontFace.Metrics()
	textY := barTop + barHeight + tickHeight + metrics.Ascent.Round()

	for _, dB := range []float64{MinLevelDB, 50, 70, MaxLevelDB} {
		x := barLeft + int((dB-MinLevelDB)/(MaxLevelDB-MinLevelDB)*float64(barRight-barLeft-1))
		for y := barTop + barHeight; y < barTop+barHeight+tickHeight; y++ {
			img.Set(x, y, color.White)
		}
		label := fmt.Sprintf("%.0f dB", dB)
		lw := font.MeasureString(a.fontFace, label).Round()
		lx := min(max(x-lw/2, 0), width-lw)
		_, _ = a.context.DrawString(label, freetype.Pt(lx, textY))
	}

	lineHeight := (metrics.Ascent + metrics.Descent).Round() + 2
	info := humanize.Comma(int64(count)) + " samples"
	_, _ = a.context.DrawString(info, freetype.Pt(legendPad, textY+lineHeight))
}
