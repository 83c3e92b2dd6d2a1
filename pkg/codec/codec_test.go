package codec

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sample(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 10), uint8(y * 10), 100, 255})
		}
	}
	return img
}

func mustPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestSniff(t *testing.T) {
	if _, err := Sniff([]byte("hello, this is plain text")); !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage for text, got %v", err)
	}
	if _, err := Sniff(nil); !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage for empty payload, got %v", err)
	}
	ct, err := Sniff(mustPNG(t, sample(2, 2)))
	if err != nil || ct != "image/png" {
		t.Errorf("Expected image/png, got %q, %v", ct, err)
	}
}

func TestDecodeBytes(t *testing.T) {
	c := New(0)
	data := mustPNG(t, sample(4, 3))

	img, err := c.DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}

	again, err := c.DecodeBytes(data)
	if err != nil || again != img {
		t.Error("Expected the cached image for identical bytes")
	}
}

func TestDecodeBytesCorrupt(t *testing.T) {
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not chunks")...)
	_, err := New(0).DecodeBytes(corrupt)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
	if errors.Is(err, ErrNotImage) {
		t.Error("A corrupt image is not a non-image payload")
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	src := sample(5, 5)
	uri, err := EncodeDataURL(src)
	if err != nil {
		t.Fatal(err)
	}

	img, err := New(0).DecodeDataURL(uri)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	r, g, b, a := img.At(3, 2).RGBA()
	want := src.NRGBAAt(3, 2)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B || uint8(a>>8) != 255 {
		t.Errorf("Pixel mismatch at (3,2): got %d,%d,%d want %v", r>>8, g>>8, b>>8, want)
	}
}

func TestDecodeDataURLErrors(t *testing.T) {
	c := New(0)
	tests := []struct {
		uri  string
		want error
	}{
		{"data:text/plain;base64,aGVsbG8=", ErrNotImage},
		{"/tmp/file.png", ErrNotImage},
		{"data:image/png,rawbytes", ErrDecode},
		{"data:image/png;base64", ErrDecode},
		{"data:image/png;base64,!!!", ErrDecode},
	}
	for _, tt := range tests {
		if _, err := c.DecodeDataURL(tt.uri); !errors.Is(err, tt.want) {
			t.Errorf("DecodeDataURL(%q) error = %v, want %v", tt.uri, err, tt.want)
		}
	}
}

func TestLoadURL(t *testing.T) {
	data := mustPNG(t, sample(6, 6))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(0)
	ctx := context.Background()
	img, err := c.Load(ctx, srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 6 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}

	if _, err := c.LoadURL(ctx, srv.URL+"/page"); !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage for html, got %v", err)
	}
	if _, err := c.LoadURL(ctx, srv.URL+"/missing"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, err := c.LoadURL(ctx, "ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	src := sample(8, 8)
	c := New(0)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := Save(src, path, format, 90, true); err != nil {
			t.Fatalf("Save %s failed: %v", format, err)
		}
		img, err := c.Load(context.Background(), path)
		if err != nil {
			t.Fatalf("Load %s failed: %v", format, err)
		}
		if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
			t.Errorf("%s: unexpected bounds %v", format, img.Bounds())
		}
	}

	if err := Save(src, filepath.Join(dir, "out.bmp"), "bmp", 90, false); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if _, err := c.LoadFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("just some notes"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LoadFile(text); !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage for a text file, got %v", err)
	}
}

func TestEncodeForModel(t *testing.T) {
	b64, err := EncodeForModel(sample(20, 10), 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected a JPEG payload: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Errorf("Expected 8x4, got %v", img.Bounds())
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename(time.UnixMilli(1700000000123))
	if got != "text-behind-image-1700000000123.png" {
		t.Errorf("Unexpected filename %q", got)
	}
}

func TestFingerprint(t *testing.T) {
	a := sample(4, 4)
	b := sample(4, 4)
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("Identical pixels should share a fingerprint")
	}

	rgba := image.NewRGBA(a.Bounds())
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			rgba.Set(x, y, a.At(x, y))
		}
	}
	if Fingerprint(rgba) != Fingerprint(a) {
		t.Error("Fingerprint should not depend on the pixel format")
	}

	b.SetNRGBA(1, 1, color.NRGBA{0, 0, 0, 255})
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("Different pixels should change the fingerprint")
	}
	if Fingerprint(sample(2, 8)) == Fingerprint(sample(8, 2)) {
		t.Error("Dimensions should be part of the fingerprint")
	}
}
