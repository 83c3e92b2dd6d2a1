// Package isolator keeps the foreground subject of a photo sharp while
// blurring everything else. Segmentation failures never propagate: the
// source image is returned unchanged and the failure is logged.
package isolator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/menta2k/text-behind-image/pkg/codec"
	"github.com/menta2k/text-behind-image/pkg/segmentation"
	"github.com/menta2k/text-behind-image/pkg/surface"
)

// Compositing methods.
const (
	MethodBokeh = "bokeh"
	MethodMask  = "mask"
)

// Config holds background isolation settings
type Config struct {
	DefaultBlurRadius float64
	EdgeBlurMax       float64
	Method            string
	Mirror            bool
	Threshold         float64
	PortraitThreshold float64
	MaxSubjects       int
	MaskCacheTTL      time.Duration
	// MinInterval is the minimum spacing between segmentation inferences.
	MinInterval time.Duration
}

// DefaultConfig returns the isolation defaults
func DefaultConfig() Config {
	return Config{
		DefaultBlurRadius: 8,
		EdgeBlurMax:       3,
		Method:            MethodBokeh,
		Threshold:         0.7,
		PortraitThreshold: 0.5,
		MaxSubjects:       1,
		MaskCacheTTL:      10 * time.Minute,
		MinInterval:       100 * time.Millisecond,
	}
}

// Isolator blurs image backgrounds around a segmented subject
type Isolator struct {
	provider *segmentation.Provider
	config   Config
	masks    *cache.Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates an Isolator using the shared segmentation provider
func New(provider *segmentation.Provider, config Config, logger *slog.Logger) *Isolator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Method == "" {
		config.Method = MethodBokeh
	}
	if config.MaxSubjects <= 0 {
		config.MaxSubjects = 1
	}
	ttl := config.MaskCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}
	return &Isolator{
		provider: provider,
		config:   config,
		masks:    cache.New(ttl, 2*ttl),
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Config returns the active configuration
func (iso *Isolator) Config() Config {
	return iso.config
}

// EdgeBlur derives the mask feathering radius: half the background radius,
// capped at EdgeBlurMax and halved again in portrait mode.
func (iso *Isolator) EdgeBlur(radius float64, portrait bool) float64 {
	edge := math.Min(radius/2, iso.config.EdgeBlurMax)
	if portrait {
		edge /= 2
	}
	return math.Max(edge, 0)
}

// Options returns the segmentation options for the given mode.
func (iso *Isolator) Options(portrait bool) segmentation.Options {
	opts := segmentation.Options{Threshold: iso.config.Threshold, MaxSubjects: iso.config.MaxSubjects}
	if portrait {
		opts.Threshold = iso.config.PortraitThreshold
	}
	return opts
}

// IsolateForeground returns src with its background blurred by radius
// pixels. A radius of zero returns src without running segmentation; any
// segmentation failure also returns src.
func (iso *Isolator) IsolateForeground(ctx context.Context, src image.Image, radius float64, portrait bool) image.Image {
	if src == nil || radius <= 0 {
		return src
	}

	mask, err := iso.Mask(ctx, src, portrait)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, segmentation.ErrNoSubject) {
			level = slog.LevelInfo
		}
		iso.logger.Log(ctx, level, "Background blur skipped",
			slog.Float64("radius", radius),
			slog.Any("error", err))
		return src
	}

	b := src.Bounds()
	if iso.config.Method == MethodMask {
		return Composite(src, radius, mask)
	}
	target := surface.New(b.Dx(), b.Dy())
	DrawBokeh(target, src, mask, radius, iso.EdgeBlur(radius, portrait), iso.config.Mirror)
	return target.Image()
}

// Mask segments src, reusing a cached mask for the same pixels and mode.
// The returned mask matches src's size and is anchored at the origin.
func (iso *Isolator) Mask(ctx context.Context, src image.Image, portrait bool) (*image.Alpha, error) {
	opts := iso.Options(portrait)
	key := fmt.Sprintf("%s:%.3f:%d", codec.Fingerprint(src), opts.Threshold, opts.MaxSubjects)
	if cached, ok := iso.masks.Get(key); ok {
		return cached.(*image.Alpha), nil
	}

	if iso.provider == nil {
		return nil, segmentation.ErrModelUnavailable
	}
	if err := iso.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model, err := iso.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer iso.provider.Release()

	mask, err := segment(ctx, model, src, opts)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	mask = segmentation.Scale(mask, b.Dx(), b.Dy())
	iso.masks.SetDefault(key, mask)
	return mask, nil
}

// segment converts a panicking backend into an error.
func segment(ctx context.Context, model segmentation.Segmenter, src image.Image, opts segmentation.Options) (mask *image.Alpha, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("segmentation panicked: %v", r)
		}
	}()
	mask, err = model.Segment(ctx, src, opts)
	if err == nil && mask == nil {
		err = segmentation.ErrNoSubject
	}
	return mask, err
}
