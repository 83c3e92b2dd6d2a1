package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/text-behind-image/pkg/vision"
)

// Thumbnailer produces subject-aware cover crops for the history gallery
type Thumbnailer struct {
	detector *vision.SubjectDetector
	config   ThumbnailConfig
}

// ThumbnailConfig holds configuration for gallery thumbnails
type ThumbnailConfig struct {
	Size           int
	AllowUpscaling bool
}

// DefaultSize is the edge length of gallery thumbnails
const DefaultSize = 256

// New creates a new Thumbnailer with default configuration
func New() *Thumbnailer {
	return &Thumbnailer{
		detector: vision.New(),
		config:   ThumbnailConfig{Size: DefaultSize},
	}
}

// NewWithConfig creates a new Thumbnailer with custom configuration
func NewWithConfig(config ThumbnailConfig) *Thumbnailer {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	return &Thumbnailer{
		detector: vision.New(),
		config:   config,
	}
}

// SetDetector allows setting a custom subject detector
func (t *Thumbnailer) SetDetector(detector *vision.SubjectDetector) {
	t.detector = detector
}

// Result contains a thumbnail and the source region it was cut from
type Result struct {
	Image  *image.NRGBA
	Region vision.Region
}

// Square cuts the square region covering the most salient content and
// scales it to the configured size.
func (t *Thumbnailer) Square(img image.Image) (Result, error) {
	return t.Crop(img, 1)
}

// Crop cuts a region of the given aspect ratio around the subject and fits
// it to the configured size along its longer edge.
func (t *Thumbnailer) Crop(img image.Image, ratio float64) (Result, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Result{}, fmt.Errorf("invalid image dimensions")
	}
	if ratio <= 0 {
		return Result{}, fmt.Errorf("invalid aspect ratio %.3f", ratio)
	}

	region, err := t.detector.FindBestCropRegion(img, ratio)
	if err != nil {
		return Result{}, fmt.Errorf("failed to find optimal crop region: %w", err)
	}

	cropped := imaging.Crop(img, region.Rect())

	w, h := t.config.Size, t.config.Size
	if ratio > 1 {
		h = max(1, int(float64(w)/ratio))
	} else if ratio < 1 {
		w = max(1, int(float64(h)*ratio))
	}
	if !t.config.AllowUpscaling && (w > cropped.Bounds().Dx() || h > cropped.Bounds().Dy()) {
		return Result{Image: cropped, Region: region}, nil
	}
	return Result{
		Image:  imaging.Fill(cropped, w, h, imaging.Center, imaging.Lanczos),
		Region: region,
	}, nil
}
