package vision

import (
	"image"
	"image/color"
	"testing"
)

// createTestImage creates a simple test image with some patterns
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/4 && x < width/2 && y > height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255}) // White square
			} else if x > 3*width/4 && y > height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{0, 0, 0, 255}) // Black square
			} else {
				r := uint8((x * 128) / width)
				g := uint8((y * 128) / height)
				img.Set(x, y, color.RGBA{r, g, 64, 255})
			}
		}
	}

	return img
}

// createCenteredSubject draws a bright square on a flat grey background
func createCenteredSubject(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{250, 240, 230, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.AnalysisSize != 192 {
		t.Errorf("Expected analysis size 192, got %d", detector.config.AnalysisSize)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := DetectionConfig{
		EdgeWeight:      0.5,
		ContrastWeight:  0.5,
		MinSubjectRatio: 0.2,
	}

	detector := NewWithConfig(cfg)
	if detector.Config().EdgeWeight != 0.5 {
		t.Errorf("Expected edge weight 0.5, got %f", detector.Config().EdgeWeight)
	}
	if detector.Config().AnalysisSize != 192 {
		t.Errorf("Expected zero analysis size to default to 192, got %d", detector.Config().AnalysisSize)
	}
}

func TestRegionCenter(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	centerX, centerY := region.Center()
	if centerX != 60 || centerY != 60 {
		t.Errorf("Expected center (60, 60), got (%d, %d)", centerX, centerY)
	}
}

func TestRegionArea(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	if area := region.Area(); area != 8000 {
		t.Errorf("Expected area 8000, got %d", area)
	}
	if r := region.Rect(); r != image.Rect(10, 20, 110, 100) {
		t.Errorf("Unexpected rect %v", r)
	}
}

func TestSaliencyDimensions(t *testing.T) {
	detector := New()
	m := detector.Saliency(createTestImage(400, 300))

	if m.Width != 192 || m.Height != 144 {
		t.Errorf("Expected 192x144 map, got %dx%d", m.Width, m.Height)
	}
	if len(m.Values) != m.Width*m.Height {
		t.Errorf("Expected %d values, got %d", m.Width*m.Height, len(m.Values))
	}
	if m.Scale <= 2 || m.Scale >= 2.1 {
		t.Errorf("Expected scale near 2.08, got %f", m.Scale)
	}

	small := detector.Saliency(createTestImage(100, 80))
	if small.Width != 100 || small.Height != 80 || small.Scale != 1 {
		t.Errorf("Small images should not be downscaled, got %dx%d scale %f", small.Width, small.Height, small.Scale)
	}
}

func TestSaliencyFavoursSubject(t *testing.T) {
	detector := New()
	m := detector.Saliency(createCenteredSubject(120, 120))

	center := m.At(m.Width/2, m.Height/2)
	corner := m.At(2, 2)
	if center <= corner {
		t.Errorf("Expected subject saliency %f to exceed background %f", center, corner)
	}
}

func TestDetectSubjects(t *testing.T) {
	detector := New()
	img := createTestImage(400, 300)

	regions, err := detector.DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}

	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}

	for i, region := range regions {
		if region.Width <= 0 || region.Height <= 0 {
			t.Errorf("Region %d has invalid dimensions: %dx%d", i, region.Width, region.Height)
		}
		if region.Score < 0 {
			t.Errorf("Region %d has negative score: %f", i, region.Score)
		}
		if i > 0 && region.Score > regions[i-1].Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
	}
}

func TestFindBestCropRegion(t *testing.T) {
	detector := New()
	img := createTestImage(400, 300)

	region, err := detector.FindBestCropRegion(img, 1.0)
	if err != nil {
		t.Fatalf("FindBestCropRegion failed: %v", err)
	}

	if region.Width != 300 || region.Height != 300 {
		t.Errorf("Expected 300x300 square crop, got %dx%d", region.Width, region.Height)
	}
	if region.X < 0 || region.Y < 0 || region.X+region.Width > 400 || region.Y+region.Height > 300 {
		t.Errorf("Crop region %v extends outside image bounds", region.Rect())
	}
}

func BenchmarkSaliency(b *testing.B) {
	detector := New()
	img := createTestImage(800, 600)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Saliency(img)
	}
}
