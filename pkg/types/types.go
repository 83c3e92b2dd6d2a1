package types

import (
	"math"
	"strings"
	"time"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject located by a vision model
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// SubjectResult is the subject-locator answer returned by a vision model
type SubjectResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// FontMode selects the font-size clamp range and the effective size rule.
type FontMode string

const (
	FontModeBase  FontMode = "base"
	FontModeLarge FontMode = "large"
)

// Font size bounds per mode.
const (
	BaseFontMin  = 12
	BaseFontMax  = 72
	LargeFontMin = 24
	LargeFontMax = 200
)

// Defaults applied to a freshly placed text.
const (
	DefaultFontSize = 24
	DefaultColor    = "#ffffff"
)

// FontRange returns the inclusive clamp range for the mode.
func (m FontMode) FontRange() (int, int) {
	if m == FontModeLarge {
		return LargeFontMin, LargeFontMax
	}
	return BaseFontMin, BaseFontMax
}

// ClampFontSize clamps size into the mode's range.
func (m FontMode) ClampFontSize(size int) int {
	lo, hi := m.FontRange()
	if size < lo {
		return lo
	}
	if size > hi {
		return hi
	}
	return size
}

// TextPlacement is one text annotation on an image. X and Y are percentages
// of the image width and height with the origin at the top-left corner.
type TextPlacement struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	FontSize     int     `json:"fontSize"`
	Color        string  `json:"color"`
	BehindObject bool    `json:"behindObject"`
}

// PlacementPatch carries a partial update. Nil fields are left untouched.
type PlacementPatch struct {
	Text         *string  `json:"text,omitempty"`
	X            *float64 `json:"x,omitempty"`
	Y            *float64 `json:"y,omitempty"`
	FontSize     *int     `json:"fontSize,omitempty"`
	Color        *string  `json:"color,omitempty"`
	BehindObject *bool    `json:"behindObject,omitempty"`
}

// Apply merges the patch into p, clamping position and font size. Text is
// trimmed, and blank text leaves the current text in place.
func (patch PlacementPatch) Apply(p TextPlacement, mode FontMode) TextPlacement {
	if patch.Text != nil {
		if text := strings.TrimSpace(*patch.Text); text != "" {
			p.Text = text
		}
	}
	if patch.X != nil {
		p.X = ClampPercent(*patch.X)
	}
	if patch.Y != nil {
		p.Y = ClampPercent(*patch.Y)
	}
	if patch.FontSize != nil {
		p.FontSize = mode.ClampFontSize(*patch.FontSize)
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.BehindObject != nil {
		p.BehindObject = *patch.BehindObject
	}
	return p
}

// ClampPercent clamps v into [0,100]. NaN maps to 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClonePlacements returns a deep copy of the slice.
func ClonePlacements(ps []TextPlacement) []TextPlacement {
	if ps == nil {
		return nil
	}
	out := make([]TextPlacement, len(ps))
	copy(out, ps)
	return out
}

// RenderState is transient editor state driving the next render pass.
type RenderState struct {
	SelectedID  string  `json:"selectedId,omitempty"`
	PendingText string  `json:"pendingText,omitempty"`
	BlurRadius  float64 `json:"blurRadius"`
	Portrait    bool    `json:"portrait"`
}

// ProcessedResult is a history entry produced by one generate action.
type ProcessedResult struct {
	ID             string          `json:"id"`
	OriginalImage  string          `json:"originalImage"`
	ProcessedImage string          `json:"processedImage"`
	Thumbnail      string          `json:"thumbnail,omitempty"`
	Prompt         string          `json:"prompt"`
	Model          string          `json:"model"`
	Timestamp      time.Time       `json:"timestamp"`
	Placements     []TextPlacement `json:"textPositions"`
}
