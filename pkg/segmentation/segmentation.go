// Package segmentation defines the foreground segmentation capability used
// to isolate a subject from its background, along with its backends.
//
// A Segmenter returns an alpha mask aligned pixel-for-pixel with the input
// image: opaque where the pixel belongs to the foreground subject,
// transparent elsewhere. "No subject found" is reported as ErrNoSubject so
// callers can tell it apart from a model or inference failure.
package segmentation

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrNoSubject is returned when segmentation ran but found no foreground.
	ErrNoSubject = errors.New("segmentation: no subject found")
	// ErrModelUnavailable is returned when the model could not be loaded.
	ErrModelUnavailable = errors.New("segmentation: model unavailable")
)

// Options tunes a single segmentation call.
type Options struct {
	// Threshold is the confidence in [0,1] a pixel or detection must reach
	// to count as foreground.
	Threshold float64
	// MaxSubjects caps how many subjects are kept in the mask.
	MaxSubjects int
}

// DefaultOptions returns the options used for person isolation.
func DefaultOptions() Options {
	return Options{Threshold: 0.7, MaxSubjects: 1}
}

// Segmenter computes a foreground mask for an image.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image, opts Options) (*image.Alpha, error)
}

// SegmenterFunc adapts a function to the Segmenter interface.
type SegmenterFunc func(ctx context.Context, img image.Image, opts Options) (*image.Alpha, error)

// Segment calls f.
func (f SegmenterFunc) Segment(ctx context.Context, img image.Image, opts Options) (*image.Alpha, error) {
	return f(ctx, img, opts)
}
