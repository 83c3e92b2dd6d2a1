package vision

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// SubjectDetector estimates where the visually dominant subject of an image is
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for saliency estimation
type DetectionConfig struct {
	EdgeWeight     float64
	ContrastWeight float64
	CenterBias     float64
	// AnalysisSize is the long side, in pixels, the image is reduced to
	// before analysis.
	AnalysisSize    int
	MinSubjectRatio float64
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			EdgeWeight:      0.35,
			ContrastWeight:  0.45,
			CenterBias:      0.2,
			AnalysisSize:    192,
			MinSubjectRatio: 0.02,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = 192
	}
	return &SubjectDetector{config: config}
}

// Config returns the detector configuration
func (d *SubjectDetector) Config() DetectionConfig {
	return d.config
}

// Region represents a rectangular region of interest in source pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Map is a saliency map computed at reduced resolution. Scale converts map
// cells back to source pixels.
type Map struct {
	Width  int
	Height int
	Scale  float64
	Values []float64
}

// At returns the saliency of cell (x, y)
func (m *Map) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Max returns the largest saliency value
func (m *Map) Max() float64 {
	var hi float64
	for _, v := range m.Values {
		if v > hi {
			hi = v
		}
	}
	return hi
}

// Saliency computes a saliency map combining local edge strength, colour
// contrast against the global mean and a centre prior.
func (d *SubjectDetector) Saliency(img image.Image) *Map {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 1.0
	small := imaging.Clone(img)
	if long := max(w, h); long > d.config.AnalysisSize {
		scale = float64(long) / float64(d.config.AnalysisSize)
		small = imaging.Resize(img, int(math.Max(1, math.Round(float64(w)/scale))), int(math.Max(1, math.Round(float64(h)/scale))), imaging.Box)
	}
	small = imaging.Blur(small, 1)

	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()
	lum := make([]float64, sw*sh)
	var meanR, meanG, meanB float64
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			i := small.PixOffset(x, y)
			r := float64(small.Pix[i]) / 255
			g := float64(small.Pix[i+1]) / 255
			b := float64(small.Pix[i+2]) / 255
			meanR += r
			meanG += g
			meanB += b
			lum[y*sw+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	n := float64(sw * sh)
	meanR, meanG, meanB = meanR/n, meanG/n, meanB/n

	m := &Map{Width: sw, Height: sh, Scale: scale, Values: make([]float64, sw*sh)}
	cx, cy := float64(sw)/2, float64(sh)/2
	diag := math.Hypot(cx, cy)

	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			// edge strength: mean absolute luminance difference to the 8 neighbours
			var edge float64
			var count int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= sw || ny >= sh {
						continue
					}
					edge += math.Abs(lum[y*sw+x] - lum[ny*sw+nx])
					count++
				}
			}
			if count > 0 {
				edge /= float64(count)
			}

			i := small.PixOffset(x, y)
			dr := float64(small.Pix[i])/255 - meanR
			dg := float64(small.Pix[i+1])/255 - meanG
			db := float64(small.Pix[i+2])/255 - meanB
			contrast := math.Sqrt(dr*dr+dg*dg+db*db) / math.Sqrt(3)

			center := 1 - math.Hypot(float64(x)-cx, float64(y)-cy)/diag

			m.Values[y*sw+x] = d.config.EdgeWeight*math.Min(1, edge*4) +
				d.config.ContrastWeight*contrast +
				d.config.CenterBias*center
		}
	}
	return m
}

// DetectSubjects returns salient regions in source coordinates, best first
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	m := d.Saliency(img)
	sat := newSummedArea(m)

	var candidates []Region
	for _, frac := range []float64{0.5, 0.4, 0.3, 0.2} {
		ww := max(2, int(float64(m.Width)*frac))
		wh := max(2, int(float64(m.Height)*frac))
		step := max(1, min(ww, wh)/6)
		for y := 0; y+wh <= m.Height; y += step {
			for x := 0; x+ww <= m.Width; x += step {
				candidates = append(candidates, Region{
					X: x, Y: y, Width: ww, Height: wh,
					Score: sat.mean(x, y, ww, wh),
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	bounds := img.Bounds()
	minArea := int(float64(bounds.Dx()*bounds.Dy()) * d.config.MinSubjectRatio)

	var regions []Region
	for _, c := range candidates {
		if overlapsAny(c, regions, 0.3) {
			continue
		}
		regions = append(regions, c)
		if len(regions) == 10 {
			break
		}
	}

	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		scaled := Region{
			X:      bounds.Min.X + int(float64(r.X)*m.Scale),
			Y:      bounds.Min.Y + int(float64(r.Y)*m.Scale),
			Width:  int(float64(r.Width) * m.Scale),
			Height: int(float64(r.Height) * m.Scale),
			Score:  r.Score,
		}
		if scaled.Area() >= minArea {
			out = append(out, scaled)
		}
	}
	return out, nil
}

// FindBestCropRegion finds the crop of the given aspect ratio that covers the
// most salient regions
func (d *SubjectDetector) FindBestCropRegion(img image.Image, targetAspectRatio float64) (Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	subjects, err := d.DetectSubjects(img)
	if err != nil {
		return Region{}, err
	}

	var cropWidth, cropHeight int
	if targetAspectRatio > float64(width)/float64(height) {
		cropWidth = width
		cropHeight = int(float64(width) / targetAspectRatio)
	} else {
		cropHeight = height
		cropWidth = int(float64(height) * targetAspectRatio)
	}

	best := Region{
		X:      bounds.Min.X + (width-cropWidth)/2,
		Y:      bounds.Min.Y + (height-cropHeight)/2,
		Width:  cropWidth,
		Height: cropHeight,
	}
	bestScore := -1.0

	step := max(1, max(width-cropWidth, height-cropHeight)/20)
	for y := 0; y <= height-cropHeight; y += step {
		for x := 0; x <= width-cropWidth; x += step {
			candidate := Region{X: bounds.Min.X + x, Y: bounds.Min.Y + y, Width: cropWidth, Height: cropHeight}
			score := coverage(candidate, subjects)
			if score > bestScore {
				bestScore = score
				candidate.Score = score
				best = candidate
			}
		}
	}
	return best, nil
}

// coverage weights each subject by how much of it the crop keeps
func coverage(crop Region, subjects []Region) float64 {
	var score float64
	for _, s := range subjects {
		inter := crop.Rect().Intersect(s.Rect())
		if inter.Empty() || s.Area() == 0 {
			continue
		}
		score += float64(inter.Dx()*inter.Dy()) / float64(s.Area()) * s.Score
	}
	return score
}

func overlapsAny(r Region, kept []Region, limit float64) bool {
	for _, k := range kept {
		inter := r.Rect().Intersect(k.Rect())
		if inter.Empty() {
			continue
		}
		ia := float64(inter.Dx() * inter.Dy())
		union := float64(r.Area()+k.Area()) - ia
		if union > 0 && ia/union > limit {
			return true
		}
	}
	return false
}

// summedArea is an integral image over a saliency map
type summedArea struct {
	w    int
	sums []float64
}

func newSummedArea(m *Map) *summedArea {
	w := m.Width + 1
	s := &summedArea{w: w, sums: make([]float64, w*(m.Height+1))}
	for y := 0; y < m.Height; y++ {
		var row float64
		for x := 0; x < m.Width; x++ {
			row += m.At(x, y)
			s.sums[(y+1)*w+x+1] = s.sums[y*w+x+1] + row
		}
	}
	return s
}

func (s *summedArea) mean(x, y, w, h int) float64 {
	x2, y2 := x+w, y+h
	total := s.sums[y2*s.w+x2] - s.sums[y*s.w+x2] - s.sums[y2*s.w+x] + s.sums[y*s.w+x]
	return total / float64(w*h)
}
