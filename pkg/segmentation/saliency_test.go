package segmentation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

var (
	dark   = color.NRGBA{64, 64, 64, 255}
	bright = color.NRGBA{250, 240, 230, 255}
)

func TestSaliencyUniformHasNoSubject(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 90))
	fill(img, img.Bounds(), dark)

	_, err := NewSaliencySegmenter(nil).Segment(context.Background(), img, DefaultOptions())
	if !errors.Is(err, ErrNoSubject) {
		t.Errorf("Expected ErrNoSubject for a flat image, got %v", err)
	}
}

func TestSaliencyFindsSubject(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 120))
	fill(img, img.Bounds(), dark)
	fill(img, image.Rect(40, 40, 80, 80), bright)

	mask, err := NewSaliencySegmenter(nil).Segment(context.Background(), img, DefaultOptions())
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if mask.Bounds() != img.Bounds() {
		t.Fatalf("Expected mask aligned to the image, got %v", mask.Bounds())
	}
	if mask.AlphaAt(2, 2).A != 0 {
		t.Errorf("Expected background corner to be transparent, got %d", mask.AlphaAt(2, 2).A)
	}
	if cov := Coverage(mask); cov <= 0 || cov > 0.5 {
		t.Errorf("Expected a partial foreground, got coverage %f", cov)
	}
}

func TestSaliencyMaxSubjects(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 180, 90))
	fill(img, img.Bounds(), dark)
	fill(img, image.Rect(15, 15, 75, 75), bright)
	fill(img, image.Rect(135, 35, 155, 55), bright)

	seg := NewSaliencySegmenter(nil)
	one, err := seg.Segment(context.Background(), img, Options{Threshold: 0.7, MaxSubjects: 1})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	two, err := seg.Segment(context.Background(), img, Options{Threshold: 0.7, MaxSubjects: 2})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if Coverage(two) <= Coverage(one) {
		t.Errorf("Expected more foreground with two subjects: %f vs %f", Coverage(two), Coverage(one))
	}
	if one.AlphaAt(136, 45).A != 0 {
		t.Error("Expected the smaller subject dropped when one subject is kept")
	}
}

func TestSaliencyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	if _, err := NewSaliencySegmenter(nil).Segment(ctx, img, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestComponents(t *testing.T) {
	// two groups: an L of three cells and a single cell
	on := []bool{
		true, false, false,
		true, true, false,
		false, false, true,
	}
	groups := components(on, 3, 3)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 3 || len(groups[1]) != 1 {
		t.Errorf("Unexpected group sizes %d and %d", len(groups[0]), len(groups[1]))
	}
}
