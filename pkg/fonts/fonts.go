// Package fonts rasterizes text into alpha masks using the embedded Go Bold
// typeface.
package fonts

import (
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

// Bold returns the parsed bold typeface. Parsing happens once per process.
func Bold() (*opentype.Font, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
		if boldErr != nil {
			boldErr = fmt.Errorf("failed to parse embedded bold font: %w", boldErr)
		}
	})
	return boldFont, boldErr
}

// NewFace builds a face for a pixel size. Faces are not safe for concurrent
// use, so callers create one per draw.
func NewFace(f *opentype.Font, sizePx float64) (font.Face, error) {
	if sizePx <= 0 {
		return nil, fmt.Errorf("invalid font size %.2f", sizePx)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// Metrics describes the extent of a laid out line of text.
type Metrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

// Measure returns the advance width and vertical metrics of text.
func Measure(face font.Face, text string) Metrics {
	m := face.Metrics()
	return Metrics{
		Width:   fixedToFloat(font.MeasureString(face, text)),
		Ascent:  fixedToFloat(m.Ascent),
		Descent: fixedToFloat(m.Descent),
	}
}

// Mask draws text centred horizontally and vertically on (cx, cy) into a new
// alpha mask of the given bounds.
func Mask(face font.Face, text string, bounds image.Rectangle, cx, cy float64) *image.Alpha {
	mask := image.NewAlpha(bounds)
	m := Measure(face, text)

	// centre alignment, middle baseline
	originX := cx - m.Width/2
	baseline := cy + (m.Ascent-m.Descent)/2

	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(originX), Y: floatToFixed(baseline)},
	}
	d.DrawString(text)
	return mask
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
