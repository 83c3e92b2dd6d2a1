package segmentation

import (
	"context"
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/text-behind-image/pkg/vision"
)

// minPeak is how far the saliency peak must rise above the centre prior
// before anything counts as a subject.
const minPeak = 0.02

// SaliencySegmenter segments the foreground locally from a saliency map.
// Cells at or above Threshold × peak saliency are foreground; connected
// groups are ranked by size and the largest MaxSubjects are kept.
type SaliencySegmenter struct {
	detector *vision.SubjectDetector
}

// NewSaliencySegmenter creates a local segmenter around detector. A nil
// detector uses the default configuration.
func NewSaliencySegmenter(detector *vision.SubjectDetector) *SaliencySegmenter {
	if detector == nil {
		detector = vision.New()
	}
	return &SaliencySegmenter{detector: detector}
}

// Segment implements Segmenter.
func (s *SaliencySegmenter) Segment(ctx context.Context, img image.Image, opts Options) (*image.Alpha, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrNoSubject
	}

	m := s.detector.Saliency(img)
	peak := m.Max()
	if peak-s.detector.Config().CenterBias < minPeak {
		return nil, ErrNoSubject
	}

	cut := opts.Threshold * peak
	on := make([]bool, len(m.Values))
	for i, v := range m.Values {
		on[i] = v >= cut
	}

	groups := components(on, m.Width, m.Height)
	if len(groups) == 0 {
		return nil, ErrNoSubject
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })
	keep := max(1, opts.MaxSubjects)
	if len(groups) > keep {
		groups = groups[:keep]
	}

	small := image.NewAlpha(image.Rect(0, 0, m.Width, m.Height))
	for _, g := range groups {
		for _, idx := range g {
			small.Pix[idx] = 0xff
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// soften the cell grid before upsampling
	soft := alphaOf(imaging.Blur(small, 0.8))
	return Scale(soft, b.Dx(), b.Dy()), nil
}

// components labels 4-connected foreground cells and returns the cell
// indexes of each group.
func components(on []bool, w, h int) [][]int {
	seen := make([]bool, len(on))
	var groups [][]int
	stack := make([]int, 0, 64)
	for start := range on {
		if !on[start] || seen[start] {
			continue
		}
		var group []int
		stack = append(stack[:0], start)
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, i)
			x, y := i%w, i/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if on[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}
