package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/menta2k/text-behind-image/pkg/blend"
	"github.com/menta2k/text-behind-image/pkg/surface"
	"github.com/menta2k/text-behind-image/pkg/types"
)

// Compositor renders text placements onto a background image
type Compositor struct {
	config Config
}

// Config holds configuration for text compositing
type Config struct {
	ReferenceWidth float64
	LargeTextMinPx float64
	FontMode       types.FontMode
	SoftLightPass  bool
}

// DefaultConfig returns the compositor defaults
func DefaultConfig() Config {
	return Config{
		ReferenceWidth: 400,
		LargeTextMinPx: 80,
		FontMode:       types.FontModeBase,
		SoftLightPass:  true,
	}
}

// New creates a new Compositor with default configuration
func New() *Compositor {
	return &Compositor{config: DefaultConfig()}
}

// NewWithConfig creates a new Compositor with custom configuration
func NewWithConfig(config Config) *Compositor {
	if config.ReferenceWidth <= 0 {
		config.ReferenceWidth = 400
	}
	if config.FontMode == "" {
		config.FontMode = types.FontModeBase
	}
	return &Compositor{config: config}
}

// Config returns the active configuration
func (c *Compositor) Config() Config {
	return c.config
}

// OpKind distinguishes fill and stroke draws
type OpKind int

const (
	OpFill OpKind = iota
	OpStroke
)

func (k OpKind) String() string {
	if k == OpStroke {
		return "stroke"
	}
	return "fill"
}

// Shadow is a drop shadow in absolute pixels
type Shadow struct {
	Color   color.NRGBA
	Blur    float64
	OffsetX float64
	OffsetY float64
}

// Op is one draw call of a placement's pass sequence
type Op struct {
	Kind      OpKind
	Text      string
	Mode      blend.Mode
	Alpha     float64
	Color     color.NRGBA
	LineWidth float64
	Shadow    Shadow
}

// Layout is the resolved drawing plan for a single placement
type Layout struct {
	X        float64
	Y        float64
	FontSize float64
	Ops      []Op
}

// pass describes a behind-subject fill; blur and offset are fractions of
// the effective font size.
type pass struct {
	mode   blend.Mode
	alpha  float64
	blur   float64
	offset float64
}

var behindPasses = []pass{
	{mode: blend.Multiply, alpha: 0.8, blur: 0.6, offset: 0.12},
	{mode: blend.Overlay, alpha: 0.4, blur: 0.3, offset: 0.06},
	{mode: blend.SoftLight, alpha: 0.2, blur: 0.15, offset: 0},
}

var (
	behindShadow  = color.NRGBA{0, 0, 0, 230}
	overlayShadow = color.NRGBA{0, 0, 0, 204}
	outlineColor  = color.NRGBA{0, 0, 0, 217}
	highlight     = color.NRGBA{255, 255, 255, 255}
)

const highlightAlpha = 0.15

// ToPixel resolves a placement's percentage position against image dimensions
func ToPixel(xPct, yPct float64, width, height int) (float64, float64) {
	return xPct / 100 * float64(width), yPct / 100 * float64(height)
}

// ToPercent converts a pixel position into clamped percentages
func ToPercent(px, py float64, width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return types.ClampPercent(px / float64(width) * 100), types.ClampPercent(py / float64(height) * 100)
}

// EffectiveFontSize scales the stored size to the image width. In large-text
// mode the result is floored at LargeTextMinPx.
func (c *Compositor) EffectiveFontSize(fontSize int, imageWidth int) float64 {
	size := float64(c.config.FontMode.ClampFontSize(fontSize)) * float64(imageWidth) / c.config.ReferenceWidth
	if c.config.FontMode == types.FontModeLarge && size < c.config.LargeTextMinPx {
		size = c.config.LargeTextMinPx
	}
	return size
}

// Plan resolves position, effective font size and the pass sequence for p
func (c *Compositor) Plan(p types.TextPlacement, width, height int) (Layout, error) {
	if strings.TrimSpace(p.Text) == "" {
		return Layout{}, fmt.Errorf("placement %s has empty text", p.ID)
	}
	fill, err := blend.ParseHex(p.Color)
	if err != nil {
		return Layout{}, fmt.Errorf("placement %s: %w", p.ID, err)
	}

	x, y := ToPixel(p.X, p.Y, width, height)
	fs := c.EffectiveFontSize(p.FontSize, width)

	layout := Layout{X: x, Y: y, FontSize: fs}
	if p.BehindObject {
		layout.Ops = c.behindSubject(p.Text, fill, fs)
	} else {
		layout.Ops = overlay(p.Text, fill, fs)
	}
	return layout, nil
}

func (c *Compositor) behindSubject(text string, fill color.NRGBA, fs float64) []Op {
	passes := behindPasses
	if !c.config.SoftLightPass {
		passes = passes[:2]
	}
	ops := make([]Op, 0, len(passes))
	for _, ps := range passes {
		ops = append(ops, Op{
			Kind:  OpFill,
			Text:  text,
			Mode:  ps.mode,
			Alpha: ps.alpha,
			Color: fill,
			Shadow: Shadow{
				Color:   behindShadow,
				Blur:    ps.blur * fs,
				OffsetX: ps.offset * fs,
				OffsetY: ps.offset * fs,
			},
		})
	}
	return ops
}

func overlay(text string, fill color.NRGBA, fs float64) []Op {
	return []Op{
		{
			Kind:      OpStroke,
			Text:      text,
			Mode:      blend.SourceOver,
			Alpha:     1,
			Color:     outlineColor,
			LineWidth: math.Max(1, fs/16),
			Shadow: Shadow{
				Color:   overlayShadow,
				Blur:    fs / 6,
				OffsetX: fs / 12,
				OffsetY: fs / 12,
			},
		},
		{Kind: OpFill, Text: text, Mode: blend.SourceOver, Alpha: 1, Color: fill},
		{Kind: OpFill, Text: text, Mode: blend.Overlay, Alpha: highlightAlpha, Color: highlight},
	}
}

// RenderPlacements draws every placement, in order, onto a copy of the
// background and returns the flattened result
func (c *Compositor) RenderPlacements(background image.Image, placements []types.TextPlacement) (*image.NRGBA, error) {
	if background == nil {
		return nil, fmt.Errorf("nil background image")
	}
	s := surface.FromImage(background)
	if err := c.Draw(s, placements); err != nil {
		return nil, err
	}
	return s.Image(), nil
}

// Draw renders placements onto an existing surface. Each placement runs
// inside its own Save/Restore scope.
func (c *Compositor) Draw(s *surface.Surface, placements []types.TextPlacement) error {
	for _, p := range placements {
		layout, err := c.Plan(p, s.Width(), s.Height())
		if err != nil {
			return err
		}
		if err := drawLayout(s, layout); err != nil {
			return fmt.Errorf("failed to draw placement %s: %w", p.ID, err)
		}
	}
	return nil
}

func drawLayout(s *surface.Surface, layout Layout) error {
	s.Save()
	defer s.Restore()

	s.SetFontSize(layout.FontSize)
	for _, op := range layout.Ops {
		s.SetComposite(op.Mode)
		s.SetAlpha(op.Alpha)
		s.SetShadow(op.Shadow.Color, op.Shadow.Blur, op.Shadow.OffsetX, op.Shadow.OffsetY)

		var err error
		switch op.Kind {
		case OpStroke:
			s.SetStroke(op.Color, op.LineWidth)
			err = s.StrokeText(op.Text, layout.X, layout.Y)
		default:
			s.SetFill(op.Color)
			err = s.FillText(op.Text, layout.X, layout.Y)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
