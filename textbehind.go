// Package textbehind composites text onto photos so that it appears to sit
// behind the foreground subject, and can blur the background around that
// subject.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		textbehind "github.com/menta2k/text-behind-image"
//	)
//
//	func main() {
//		ctx := context.Background()
//		editor, err := textbehind.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer editor.Close()
//
//		if _, err := editor.Upload(ctx, "photo.jpg"); err != nil {
//			log.Fatal(err)
//		}
//		s := editor.Session()
//		s.SetBlurRadius(8)
//		if _, err := s.Add("HELLO", 50, 50); err != nil {
//			log.Fatal(err)
//		}
//		path, err := editor.Export(ctx, "out")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("saved %s", path)
//	}
//
// The package is organised as a two-stage pipeline:
//
// 1. Isolator (pkg/isolator): segments the subject and blurs the background
// 2. Compositor (pkg/compositor): renders text placements with blend passes
//
// Session state (pkg/session) drives both stages and records generated
// results. Segmentation backends live in pkg/segmentation.
package textbehind

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/text-behind-image/pkg/codec"
	"github.com/menta2k/text-behind-image/pkg/compositor"
	"github.com/menta2k/text-behind-image/pkg/cropper"
	"github.com/menta2k/text-behind-image/pkg/isolator"
	"github.com/menta2k/text-behind-image/pkg/segmentation"
	"github.com/menta2k/text-behind-image/pkg/session"
	"github.com/menta2k/text-behind-image/pkg/types"
)

// Version of the text-behind-image library
const Version = "1.0.0"

// Config assembles the settings of every pipeline stage
type Config struct {
	Compositor   compositor.Config
	Isolator     isolator.Config
	Segmentation segmentation.BackendConfig
	// ThumbnailSize is the edge length of history thumbnails.
	ThumbnailSize int
	// DecodeCacheTTL bounds how long decoded uploads are reused.
	DecodeCacheTTL time.Duration
}

// DefaultConfig returns the library defaults with local saliency
// segmentation.
func DefaultConfig() Config {
	return Config{
		Compositor:     compositor.DefaultConfig(),
		Isolator:       isolator.DefaultConfig(),
		Segmentation:   segmentation.BackendConfig{Backend: segmentation.BackendSaliency},
		ThumbnailSize:  cropper.DefaultSize,
		DecodeCacheTTL: 10 * time.Minute,
	}
}

// Editor provides a high-level interface over one editing session
type Editor struct {
	codec      *codec.Codec
	provider   *segmentation.Provider
	isolator   *isolator.Isolator
	compositor *compositor.Compositor
	session    *session.Session
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Editor with default configuration
func New() (*Editor, error) {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates an Editor with custom configuration. The
// segmentation backend is not contacted until the first blurred render.
func NewWithConfig(cfg Config, logger *slog.Logger) (*Editor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loader, err := segmentation.NewLoader(cfg.Segmentation, logger)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(cfg, segmentation.NewProvider(loader), logger), nil
}

// NewWithProvider creates an Editor sharing an existing segmentation
// provider, so several editors load the model once.
func NewWithProvider(cfg Config, provider *segmentation.Provider, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	comp := compositor.NewWithConfig(cfg.Compositor)
	iso := isolator.New(provider, cfg.Isolator, logger)
	thumbs := cropper.NewWithConfig(cropper.ThumbnailConfig{Size: cfg.ThumbnailSize})

	return &Editor{
		codec:      codec.New(cfg.DecodeCacheTTL),
		provider:   provider,
		isolator:   iso,
		compositor: comp,
		session: session.New(session.Options{
			Compositor:  comp,
			Isolator:    iso,
			Thumbnailer: thumbs,
			Logger:      logger,
		}),
		logger: logger,
		now:    time.Now,
	}
}

// Session returns the live editing session
func (e *Editor) Session() *session.Session {
	return e.session
}

// Upload loads an image from a file path, data URI or http(s) URL and makes
// it the session image. Non-image payloads are ignored and report false
// with a nil error; undecodable images return an error and leave the
// current image in place.
func (e *Editor) Upload(ctx context.Context, source string) (bool, error) {
	img, err := e.codec.Load(ctx, source)
	if err != nil {
		return e.rejectUpload(err)
	}
	ref := ""
	if strings.HasPrefix(source, "data:") {
		ref = source
	}
	e.session.SetImage(img, ref)
	e.logger.Info("Image uploaded",
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()))
	return true, nil
}

// Load decodes an image without changing the session
func (e *Editor) Load(ctx context.Context, source string) (image.Image, error) {
	return e.codec.Load(ctx, source)
}

// UploadBytes is Upload for an in-memory payload.
func (e *Editor) UploadBytes(data []byte) (bool, error) {
	img, err := e.codec.DecodeBytes(data)
	if err != nil {
		return e.rejectUpload(err)
	}
	ct, _ := codec.Sniff(data)
	e.session.SetImage(img, "data:"+ct+";base64,"+base64.StdEncoding.EncodeToString(data))
	return true, nil
}

func (e *Editor) rejectUpload(err error) (bool, error) {
	if errors.Is(err, codec.ErrNotImage) {
		e.logger.Debug("Ignoring non-image upload", slog.Any("error", err))
		return false, nil
	}
	return false, fmt.Errorf("upload failed: %w", err)
}

// Render runs the blur and text stages over the session state
func (e *Editor) Render(ctx context.Context) (*session.Frame, error) {
	return e.session.Render(ctx)
}

// Generate renders the final composite and records it in the history
func (e *Editor) Generate(ctx context.Context) (types.ProcessedResult, error) {
	return e.session.Generate(ctx)
}

// Export renders the session and writes it as a timestamped PNG in dir,
// returning the file path. It requires an image and at least one
// placement.
func (e *Editor) Export(ctx context.Context, dir string) (string, error) {
	if !e.session.HasImage() {
		return "", session.ErrNoImage
	}
	if len(e.session.Placements()) == 0 {
		return "", session.ErrNoPlacements
	}
	frame, err := e.session.Render(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, codec.ExportFilename(e.now()))
	if err := codec.Save(frame.Image, path, "png", 100, true); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}
	return path, nil
}

// RenderPlacements draws placements onto background without touching the
// session
func (e *Editor) RenderPlacements(background image.Image, placements []types.TextPlacement) (*image.NRGBA, error) {
	return e.compositor.RenderPlacements(background, placements)
}

// IsolateForeground blurs the background of img around its subject
func (e *Editor) IsolateForeground(ctx context.Context, img image.Image, radius float64, portrait bool) image.Image {
	return e.isolator.IsolateForeground(ctx, img, radius, portrait)
}

// Close ends the session and unloads the segmentation model if nothing
// else holds it
func (e *Editor) Close() error {
	e.session.Close()
	return e.provider.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
