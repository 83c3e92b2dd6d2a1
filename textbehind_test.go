package textbehind

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/text-behind-image/pkg/codec"
	"github.com/menta2k/text-behind-image/pkg/segmentation"
	"github.com/menta2k/text-behind-image/pkg/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				// Central bright region (subject)
				img.Set(x, y, color.RGBA{250, 240, 230, 255})
			} else {
				// Striped background
				v := uint8(40)
				if (x/3)%2 == 0 {
					v = 140
				}
				img.Set(x, y, color.RGBA{v, v, v, 255})
			}
		}
	}

	return img
}

func newEditor(t *testing.T) *Editor {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Isolator.MinInterval = 0
	e, err := NewWithConfig(cfg, quiet)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := codec.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNew(t *testing.T) {
	editor, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer editor.Close()

	if editor.Session() == nil || editor.isolator == nil || editor.compositor == nil {
		t.Error("Editor components not wired")
	}
	if editor.Session().HasImage() {
		t.Error("A new editor should have no image")
	}
}

func TestNewWithConfigRejectsBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segmentation.Backend = "tensorflow"
	if _, err := NewWithConfig(cfg, quiet); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestUploadNonImageIsIgnored(t *testing.T) {
	e := newEditor(t)

	ok, err := e.UploadBytes([]byte("this is a text file"))
	if ok || err != nil {
		t.Errorf("Expected (false, nil) for a non-image, got (%v, %v)", ok, err)
	}
	if e.Session().HasImage() {
		t.Error("A non-image upload must not set an image")
	}
}

func TestUploadCorruptKeepsImage(t *testing.T) {
	e := newEditor(t)
	if ok, err := e.UploadBytes(pngBytes(t, createTestImage(40, 30))); !ok || err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
	ok, err := e.UploadBytes(corrupt)
	if ok || !errors.Is(err, codec.ErrDecode) {
		t.Errorf("Expected a decode error, got (%v, %v)", ok, err)
	}
	if e.Session().Bounds() != image.Rect(0, 0, 40, 30) {
		t.Error("A failed upload must keep the current image")
	}
}

func TestUploadSources(t *testing.T) {
	e := newEditor(t)
	ctx := context.Background()
	img := createTestImage(50, 40)

	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, pngBytes(t, img), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := e.Upload(ctx, path); !ok || err != nil {
		t.Fatalf("Upload from file failed: %v", err)
	}
	if e.Session().Bounds().Dx() != 50 {
		t.Errorf("Unexpected bounds %v", e.Session().Bounds())
	}

	uri, err := codec.EncodeDataURL(createTestImage(30, 20))
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := e.Upload(ctx, uri); !ok || err != nil {
		t.Fatalf("Upload from data URI failed: %v", err)
	}
	if _, err := e.Session().Add("HI", 50, 50); err != nil {
		t.Fatal(err)
	}
	res, err := e.Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.OriginalImage != uri {
		t.Error("Expected the data URI recorded as the original image")
	}

	if _, err := e.Upload(ctx, filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestExport(t *testing.T) {
	e := newEditor(t)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := e.Export(ctx, dir); !errors.Is(err, session.ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
	e.UploadBytes(pngBytes(t, createTestImage(80, 60)))
	if _, err := e.Export(ctx, dir); !errors.Is(err, session.ErrNoPlacements) {
		t.Errorf("Expected ErrNoPlacements, got %v", err)
	}

	e.Session().Add("HELLO", 50, 50)
	path, err := e.Export(ctx, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Base(path) != "text-behind-image-1700000000000.png" {
		t.Errorf("Unexpected export name %s", filepath.Base(path))
	}
	img, err := e.Load(ctx, path)
	if err != nil {
		t.Fatalf("Exported file is not readable: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 80, 60) {
		t.Errorf("Expected export at source size, got %v", img.Bounds())
	}
}

func TestRenderWithBlur(t *testing.T) {
	e := newEditor(t)
	ctx := context.Background()
	e.UploadBytes(pngBytes(t, createTestImage(800, 600)))

	s := e.Session()
	s.SetBlurRadius(8)
	if _, err := s.Add("HELLO", 50, 50); err != nil {
		t.Fatal(err)
	}

	frame, err := e.Render(ctx)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if frame.Image.Bounds() != image.Rect(0, 0, 800, 600) {
		t.Errorf("Expected 800x600 frame, got %v", frame.Image.Bounds())
	}
}

func TestIsolateForeground(t *testing.T) {
	e := newEditor(t)
	ctx := context.Background()
	src := createTestImage(120, 90)

	if out := e.IsolateForeground(ctx, src, 0, false); out != src {
		t.Error("Expected radius 0 to return the source")
	}
	out := e.IsolateForeground(ctx, src, 6, false)
	if out.Bounds() != src.Bounds() {
		t.Errorf("Expected output at source size, got %v", out.Bounds())
	}
}

func TestSharedProvider(t *testing.T) {
	var loads int
	p := segmentation.NewProvider(func(context.Context) (segmentation.Segmenter, error) {
		loads++
		return segmentation.NewSaliencySegmenter(nil), nil
	})
	cfg := DefaultConfig()
	cfg.Isolator.MinInterval = 0
	a := NewWithProvider(cfg, p, quiet)
	b := NewWithProvider(cfg, p, quiet)

	ctx := context.Background()
	a.IsolateForeground(ctx, createTestImage(60, 60), 4, false)
	b.IsolateForeground(ctx, createTestImage(64, 60), 4, false)
	if loads != 1 {
		t.Errorf("Expected the model loaded once, got %d", loads)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}
