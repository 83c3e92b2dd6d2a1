// Package surface implements a raster drawing surface with canvas-style
// stateful drawing: a save/restore stack holding composite operation, global
// alpha, fill and stroke colours, shadow and blur filter.
package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/text-behind-image/pkg/blend"
	"github.com/menta2k/text-behind-image/pkg/fonts"
)

// State is the drawing configuration captured by Save and restored by Restore.
type State struct {
	Composite     blend.Mode
	Alpha         float64
	Fill          color.NRGBA
	Stroke        color.NRGBA
	LineWidth     float64
	FontSize      float64
	ShadowColor   color.NRGBA
	ShadowBlur    float64
	ShadowOffsetX float64
	ShadowOffsetY float64
	// Filter is a gaussian blur radius in pixels applied to drawn images.
	Filter float64
}

// DefaultState mirrors a freshly created canvas context.
func DefaultState() State {
	return State{
		Composite: blend.SourceOver,
		Alpha:     1,
		Fill:      color.NRGBA{0, 0, 0, 255},
		Stroke:    color.NRGBA{0, 0, 0, 255},
		LineWidth: 1,
		FontSize:  10,
	}
}

// Surface is a drawing target backed by an NRGBA image.
type Surface struct {
	img   *image.NRGBA
	state State
	stack []State
}

// New creates a transparent surface of the given size.
func New(width, height int) *Surface {
	return &Surface{
		img:   image.NewNRGBA(image.Rect(0, 0, width, height)),
		state: DefaultState(),
	}
}

// FromImage creates a surface sized to img with img drawn onto it.
func FromImage(img image.Image) *Surface {
	b := img.Bounds()
	s := New(b.Dx(), b.Dy())
	s.DrawImage(img, 0, 0)
	return s
}

// Bounds returns the surface rectangle, always anchored at the origin.
func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Image returns a copy of the current pixels.
func (s *Surface) Image() *image.NRGBA {
	return imaging.Clone(s.img)
}

// State returns the active drawing state.
func (s *Surface) State() State { return s.state }

// Depth reports how many saved states are on the stack.
func (s *Surface) Depth() int { return len(s.stack) }

// Save pushes the current drawing state.
func (s *Surface) Save() {
	s.stack = append(s.stack, s.state)
}

// Restore pops the most recently saved state. Restore without a matching
// Save is ignored.
func (s *Surface) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.state = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
}

// SetComposite sets the composite operation for subsequent draws.
func (s *Surface) SetComposite(mode blend.Mode) { s.state.Composite = mode }

// SetAlpha sets the global alpha, clamped to [0,1].
func (s *Surface) SetAlpha(a float64) { s.state.Alpha = clamp01(a) }

// SetFill sets the fill colour.
func (s *Surface) SetFill(c color.NRGBA) { s.state.Fill = c }

// SetStroke sets the stroke colour and line width.
func (s *Surface) SetStroke(c color.NRGBA, width float64) {
	s.state.Stroke = c
	s.state.LineWidth = math.Max(width, 0)
}

// SetFontSize sets the pixel size used by FillText and StrokeText.
func (s *Surface) SetFontSize(px float64) { s.state.FontSize = px }

// SetShadow configures the drop shadow applied to subsequent draws.
func (s *Surface) SetShadow(c color.NRGBA, blur, dx, dy float64) {
	s.state.ShadowColor = c
	s.state.ShadowBlur = math.Max(blur, 0)
	s.state.ShadowOffsetX = dx
	s.state.ShadowOffsetY = dy
}

// ClearShadow disables the drop shadow.
func (s *Surface) ClearShadow() {
	s.SetShadow(color.NRGBA{}, 0, 0, 0)
}

// SetFilter sets the blur filter radius applied to drawn images; 0 disables it.
func (s *Surface) SetFilter(radius float64) { s.state.Filter = math.Max(radius, 0) }

// Clear resets every pixel to transparent.
func (s *Surface) Clear() {
	for i := range s.img.Pix {
		s.img.Pix[i] = 0
	}
}

// DrawImage draws src with its top-left corner at (x, y), honouring the
// filter, shadow, global alpha and composite operation.
func (s *Surface) DrawImage(src image.Image, x, y int) {
	layer := image.NewNRGBA(s.img.Bounds())
	var prepared image.Image = src
	if s.state.Filter > 0 {
		prepared = imaging.Blur(src, s.state.Filter)
	}
	sb := prepared.Bounds()
	draw.Draw(layer, sb.Sub(sb.Min).Add(image.Pt(x, y)), prepared, sb.Min, draw.Src)
	s.drawLayer(layer)
}

// DrawMask paints c through the alpha mask, honouring shadow, global alpha
// and composite operation.
func (s *Surface) DrawMask(mask *image.Alpha, c color.NRGBA) {
	s.drawLayer(colorize(mask, c, s.img.Bounds()))
}

// FillText draws text centred on (x, y) with the fill colour.
func (s *Surface) FillText(text string, x, y float64) error {
	mask, err := s.textMask(text, x, y)
	if err != nil {
		return err
	}
	s.DrawMask(mask, s.state.Fill)
	return nil
}

// StrokeText outlines text centred on (x, y) with the stroke colour and
// line width.
func (s *Surface) StrokeText(text string, x, y float64) error {
	if s.state.LineWidth <= 0 {
		return nil
	}
	mask, err := s.textMask(text, x, y)
	if err != nil {
		return err
	}
	outline := Dilate(mask, int(math.Ceil(s.state.LineWidth/2)))
	s.DrawMask(outline, s.state.Stroke)
	return nil
}

func (s *Surface) textMask(text string, x, y float64) (*image.Alpha, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	f, err := fonts.Bold()
	if err != nil {
		return nil, err
	}
	face, err := fonts.NewFace(f, s.state.FontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	return fonts.Mask(face, text, s.img.Bounds(), x, y), nil
}

// drawLayer composites a full-surface layer, drawing its shadow first.
func (s *Surface) drawLayer(layer *image.NRGBA) {
	if s.hasShadow() {
		s.composite(s.shadowOf(layer))
	}
	s.composite(layer)
}

func (s *Surface) hasShadow() bool {
	st := s.state
	return st.ShadowColor.A > 0 && (st.ShadowBlur > 0 || st.ShadowOffsetX != 0 || st.ShadowOffsetY != 0)
}

// shadowOf builds the offset, blurred shadow of the layer's alpha.
func (s *Surface) shadowOf(layer *image.NRGBA) *image.NRGBA {
	b := layer.Bounds()
	shadow := image.NewNRGBA(b)
	dx := int(math.Round(s.state.ShadowOffsetX))
	dy := int(math.Round(s.state.ShadowOffsetY))
	sc := s.state.ShadowColor
	for y := b.Min.Y; y < b.Max.Y; y++ {
		sy := y - dy
		if sy < b.Min.Y || sy >= b.Max.Y {
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			sx := x - dx
			if sx < b.Min.X || sx >= b.Max.X {
				continue
			}
			a := layer.Pix[layer.PixOffset(sx, sy)+3]
			if a == 0 {
				continue
			}
			i := shadow.PixOffset(x, y)
			shadow.Pix[i+0] = sc.R
			shadow.Pix[i+1] = sc.G
			shadow.Pix[i+2] = sc.B
			shadow.Pix[i+3] = uint8((uint32(a)*uint32(sc.A) + 127) / 255)
		}
	}
	if s.state.ShadowBlur > 0 {
		// canvas shadowBlur maps to a gaussian of sigma blur/2
		return imaging.Blur(shadow, s.state.ShadowBlur/2)
	}
	return shadow
}

// composite blends layer onto the surface pixel by pixel.
func (s *Surface) composite(layer *image.NRGBA) {
	mode := s.state.Composite
	alpha := s.state.Alpha
	dst := s.img
	b := dst.Bounds().Intersect(layer.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		li := layer.PixOffset(b.Min.X, y)
		di := dst.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			src := blend.FromNRGBA(color.NRGBA{layer.Pix[li], layer.Pix[li+1], layer.Pix[li+2], layer.Pix[li+3]})
			src.A *= alpha
			if src.A > 0 || mode == blend.Copy {
				bg := blend.FromNRGBA(color.NRGBA{dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3]})
				out := blend.Composite(src, bg, mode).NRGBA()
				dst.Pix[di+0] = out.R
				dst.Pix[di+1] = out.G
				dst.Pix[di+2] = out.B
				dst.Pix[di+3] = out.A
			}
			li += 4
			di += 4
		}
	}
}

// colorize turns an alpha mask into a layer of colour c.
func colorize(mask *image.Alpha, c color.NRGBA, bounds image.Rectangle) *image.NRGBA {
	layer := image.NewNRGBA(bounds)
	b := bounds.Intersect(mask.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := mask.AlphaAt(x, y).A
			if a == 0 {
				continue
			}
			i := layer.PixOffset(x, y)
			layer.Pix[i+0] = c.R
			layer.Pix[i+1] = c.G
			layer.Pix[i+2] = c.B
			layer.Pix[i+3] = uint8((uint32(a)*uint32(c.A) + 127) / 255)
		}
	}
	return layer
}

// Dilate grows the mask by r pixels using a separable max filter.
func Dilate(mask *image.Alpha, r int) *image.Alpha {
	if r <= 0 {
		out := image.NewAlpha(mask.Bounds())
		copy(out.Pix, mask.Pix)
		return out
	}
	b := mask.Bounds()
	tmp := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var m uint8
			for k := max(b.Min.X, x-r); k <= min(b.Max.X-1, x+r); k++ {
				if v := mask.AlphaAt(k, y).A; v > m {
					m = v
				}
			}
			tmp.SetAlpha(x, y, color.Alpha{A: m})
		}
	}
	out := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var m uint8
			for k := max(b.Min.Y, y-r); k <= min(b.Max.Y-1, y+r); k++ {
				if v := tmp.AlphaAt(x, k).A; v > m {
					m = v
				}
			}
			out.SetAlpha(x, y, color.Alpha{A: m})
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
