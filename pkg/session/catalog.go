package session

import (
	"image"

	"github.com/menta2k/text-behind-image/pkg/compositor"
)

// Strategy is an entry of the model catalog recorded on results.
type Strategy struct {
	ID          string
	Name        string
	Description string
}

// DefaultStrategy is selected by new sessions.
const DefaultStrategy = "depth-aware-text"

var strategies = []Strategy{
	{ID: "depth-aware-text", Name: "Depth-Aware Text", Description: "Places text behind the detected subject"},
	{ID: "semantic-placement", Name: "Semantic Placement", Description: "Positions text by scene content"},
	{ID: "style-transfer", Name: "Style Transfer", Description: "Matches text styling to the image"},
	{ID: "real-time-processing", Name: "Real-time Processing", Description: "Favours speed over quality"},
}

// Strategies lists the catalog in display order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// LookupStrategy finds a catalog entry by id.
func LookupStrategy(id string) (Strategy, bool) {
	for _, st := range strategies {
		if st.ID == id {
			return st, true
		}
	}
	return Strategy{}, false
}

// Marker locates a placement on the image for preview overlays.
type Marker struct {
	ID       string
	Text     string
	X        float64
	Y        float64
	Tag      string
	Selected bool
}

// Marker tags.
const (
	TagBehind  = "BG"
	TagOverlay = "OV"
)

// Markers resolves each placement to its pixel anchor on an image of the
// given size. With width or height of zero the session image size is used.
func (s *Session) Markers(width, height int) []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (width <= 0 || height <= 0) && s.img != nil {
		b := s.img.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	out := make([]Marker, 0, len(s.placements))
	for _, p := range s.placements {
		x, y := compositor.ToPixel(p.X, p.Y, width, height)
		tag := TagOverlay
		if p.BehindObject {
			tag = TagBehind
		}
		out = append(out, Marker{
			ID:       p.ID,
			Text:     p.Text,
			X:        x,
			Y:        y,
			Tag:      tag,
			Selected: p.ID == s.state.SelectedID,
		})
	}
	return out
}

// Bounds returns the current image bounds, or an empty rectangle.
func (s *Session) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return image.Rectangle{}
	}
	return s.img.Bounds()
}
