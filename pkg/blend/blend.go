// Package blend provides the colour blending and compositing operators used
// by the drawing surface.
package blend

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Color is a non-premultiplied colour with channels in [0,1].
type Color struct {
	R, G, B, A float64
}

// FromNRGBA converts an 8-bit non-premultiplied colour.
func FromNRGBA(c color.NRGBA) Color {
	return Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
}

// NRGBA converts back to 8-bit, rounding to nearest.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: to8(c.A),
	}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Mode represents a compositing operation: either a separable blend mode
// applied with source-over compositing, or a Porter-Duff operator.
type Mode int

const (
	// SourceOver is the default alpha blending mode.
	SourceOver Mode = iota
	// Multiply darkens the backdrop by the source colour.
	Multiply
	// Screen lightens the backdrop by the source colour.
	Screen
	// Overlay multiplies or screens depending on the backdrop.
	Overlay
	// SoftLight darkens or lightens depending on the source.
	SoftLight
	// DestinationOut keeps destination where source is transparent.
	DestinationOut
	// DestinationOver draws the source behind the destination.
	DestinationOver
	// Copy replaces the destination with the source.
	Copy
)

var modeNames = map[Mode]string{
	SourceOver:      "source-over",
	Multiply:        "multiply",
	Screen:          "screen",
	Overlay:         "overlay",
	SoftLight:       "soft-light",
	DestinationOut:  "destination-out",
	DestinationOver: "destination-over",
	Copy:            "copy",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves a canvas-style composite operation name.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return SourceOver, fmt.Errorf("unknown blend mode %q", name)
}

// Composite combines src onto dst using mode.
func Composite(src, dst Color, mode Mode) Color {
	switch mode {
	case SourceOver:
		return sourceOver(src, dst)
	case Multiply, Screen, Overlay, SoftLight:
		return blendOver(src, dst, mode)
	case DestinationOut:
		return destinationOut(src, dst)
	case DestinationOver:
		return sourceOver(dst, src)
	case Copy:
		return src
	default:
		return sourceOver(src, dst)
	}
}

// sourceOver blends source over destination using alpha compositing.
func sourceOver(src, dst Color) Color {
	invSrcA := 1 - src.A
	outA := src.A + dst.A*invSrcA
	if outA == 0 {
		return Color{}
	}
	return Color{
		R: (src.R*src.A + dst.R*dst.A*invSrcA) / outA,
		G: (src.G*src.A + dst.G*dst.A*invSrcA) / outA,
		B: (src.B*src.A + dst.B*dst.A*invSrcA) / outA,
		A: outA,
	}
}

// blendOver mixes the blended colour into the source in proportion to the
// backdrop alpha, then composites source-over.
func blendOver(src, dst Color, mode Mode) Color {
	mixed := Color{
		R: (1-dst.A)*src.R + dst.A*channel(dst.R, src.R, mode),
		G: (1-dst.A)*src.G + dst.A*channel(dst.G, src.G, mode),
		B: (1-dst.A)*src.B + dst.A*channel(dst.B, src.B, mode),
		A: src.A,
	}
	return sourceOver(mixed, dst)
}

// destinationOut keeps destination where source is transparent.
func destinationOut(src, dst Color) Color {
	a := dst.A * (1 - src.A)
	if a == 0 {
		return Color{}
	}
	return Color{R: dst.R, G: dst.G, B: dst.B, A: a}
}

// channel applies the separable blend function B(cb, cs).
func channel(cb, cs float64, mode Mode) float64 {
	switch mode {
	case Multiply:
		return cb * cs
	case Screen:
		return screen(cb, cs)
	case Overlay:
		return hardLight(cs, cb)
	case SoftLight:
		return softLight(cb, cs)
	default:
		return cs
	}
}

func screen(cb, cs float64) float64 {
	return cb + cs - cb*cs
}

// hardLight is overlay with the layers swapped.
func hardLight(cb, cs float64) float64 {
	if cs <= 0.5 {
		return cb * 2 * cs
	}
	return screen(cb, 2*cs-1)
}

func softLight(cb, cs float64) float64 {
	if cs <= 0.5 {
		return cb - (1-2*cs)*cb*(1-cb)
	}
	var d float64
	if cb <= 0.25 {
		d = ((16*cb-12)*cb + 4) * cb
	} else {
		d = math.Sqrt(cb)
	}
	return cb + (2*cs-1)*(d-cb)
}

// ParseHex parses #rgb, #rrggbb and #rrggbbaa colour strings.
func ParseHex(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
