package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/text-behind-image/pkg/vision"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with some high-contrast areas
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				// Central bright region (subject)
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				// Background
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	thumbs := New()
	if thumbs == nil {
		t.Fatal("New() returned nil")
	}
	if thumbs.config.Size != DefaultSize {
		t.Errorf("Expected size %d, got %d", DefaultSize, thumbs.config.Size)
	}
	if thumbs.config.AllowUpscaling {
		t.Error("Expected AllowUpscaling to be false by default")
	}
}

func TestNewWithConfig(t *testing.T) {
	thumbs := NewWithConfig(ThumbnailConfig{Size: -1, AllowUpscaling: true})
	if thumbs.config.Size != DefaultSize {
		t.Errorf("Expected invalid size to fall back to %d, got %d", DefaultSize, thumbs.config.Size)
	}
	if !thumbs.config.AllowUpscaling {
		t.Error("Expected AllowUpscaling to be kept")
	}
}

func TestSquare(t *testing.T) {
	thumbs := New()
	res, err := thumbs.Square(createTestImage(400, 300))
	if err != nil {
		t.Fatalf("Square failed: %v", err)
	}

	b := res.Image.Bounds()
	if b.Dx() != DefaultSize || b.Dy() != DefaultSize {
		t.Errorf("Expected %dx%d thumbnail, got %dx%d", DefaultSize, DefaultSize, b.Dx(), b.Dy())
	}
	if res.Region.Width != res.Region.Height {
		t.Errorf("Expected a square source region, got %dx%d", res.Region.Width, res.Region.Height)
	}
}

func TestCropWide(t *testing.T) {
	res, err := New().Crop(createTestImage(400, 300), 2)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 256 || b.Dy() != 128 {
		t.Errorf("Expected 256x128, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNoUpscaling(t *testing.T) {
	res, err := New().Square(createTestImage(100, 80))
	if err != nil {
		t.Fatalf("Square failed: %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 80 || b.Dy() != 80 {
		t.Errorf("Expected the unscaled 80x80 crop, got %dx%d", b.Dx(), b.Dy())
	}

	up := NewWithConfig(ThumbnailConfig{Size: 128, AllowUpscaling: true})
	res, err = up.Square(createTestImage(100, 80))
	if err != nil {
		t.Fatal(err)
	}
	if res.Image.Bounds().Dx() != 128 {
		t.Errorf("Expected upscaled 128px thumbnail, got %v", res.Image.Bounds())
	}
}

func TestCropErrors(t *testing.T) {
	thumbs := New()
	if _, err := thumbs.Crop(image.NewRGBA(image.Rect(0, 0, 0, 0)), 1); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := thumbs.Crop(createTestImage(50, 50), 0); err == nil {
		t.Error("Expected error for zero ratio")
	}
}

func TestSetDetector(t *testing.T) {
	thumbs := New()
	custom := vision.NewWithConfig(vision.DetectionConfig{EdgeWeight: 1, AnalysisSize: 64})
	thumbs.SetDetector(custom)
	if thumbs.detector != custom {
		t.Error("SetDetector did not replace the detector")
	}
	if _, err := thumbs.Square(createTestImage(120, 90)); err != nil {
		t.Errorf("Square with custom detector failed: %v", err)
	}
}
