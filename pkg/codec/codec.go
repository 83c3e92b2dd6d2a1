// Package codec handles image ingestion and export: sniffing uploads,
// decoding files, bytes, data URIs and URLs, and encoding results as PNG
// data URIs, model payloads or files on disk.
package codec

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotImage is returned for payloads that are not images. Upload
	// callers treat it as a silent no-op.
	ErrNotImage = errors.New("payload is not an image")
	// ErrDecode is returned for image payloads that cannot be decoded.
	ErrDecode = errors.New("failed to decode image")
)

// ExportPrefix is the base name of exported composites.
const ExportPrefix = "text-behind-image"

// maxDownload bounds URL ingestion.
const maxDownload = 64 << 20

// Codec decodes and encodes images. Decoded uploads are cached by content
// hash so re-ingesting the same payload skips decoding.
type Codec struct {
	decoded    *cache.Cache
	httpClient *http.Client
}

// New creates a Codec whose decode cache keeps entries for ttl.
func New(ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Codec{
		decoded:    cache.New(ttl, 2*ttl),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sniff returns the detected content type of data, or ErrNotImage.
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return ct, fmt.Errorf("%w: detected %s", ErrNotImage, ct)
	}
	return ct, nil
}

// DecodeBytes decodes an uploaded payload.
func (c *Codec) DecodeBytes(data []byte) (image.Image, error) {
	if _, err := Sniff(data); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if cached, ok := c.decoded.Get(key); ok {
		return cached.(image.Image), nil
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	c.decoded.SetDefault(key, img)
	return img, nil
}

func decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	// explicit WebP fallback for lossless and alpha variants
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrDecode
}

// DecodeDataURL decodes a base64 data URI such as data:image/png;base64,...
func (c *Codec) DecodeDataURL(uri string) (image.Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", ErrNotImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrDecode)
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if mime != "" && !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mime)
	}
	if !isBase64 {
		return nil, fmt.Errorf("%w: data URI is not base64", ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c.DecodeBytes(data)
}

// LoadFile reads and decodes an image file.
func (c *Codec) LoadFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return c.DecodeBytes(data)
}

// LoadURL downloads and decodes an image over http or https.
func (c *Codec) LoadURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "text-behind-image/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: Content-Type %s", ErrNotImage, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return c.DecodeBytes(data)
}

// Load decodes an image from a URL, a data URI or a file path.
func (c *Codec) Load(ctx context.Context, source string) (image.Image, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return c.LoadURL(ctx, source)
	case strings.HasPrefix(source, "data:"):
		return c.DecodeDataURL(source)
	default:
		return c.LoadFile(source)
	}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeDataURL encodes img as a base64 PNG data URI.
func EncodeDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// EncodeForModel downsizes img so its long side is at most maxDim and
// returns it as base64 JPEG for vision model requests.
func EncodeForModel(img image.Image, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	if quality <= 0 {
		quality = 90
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Save writes img to path in the given format (png, webp or jpg).
func Save(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return f.Close()
	case "png", "":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// ExportFilename returns the timestamped download name for a composite.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("%s-%d.png", ExportPrefix, t.UnixMilli())
}

// Fingerprint returns a stable hash of the image's size and pixels.
func Fingerprint(img image.Image) string {
	nrgba := imaging.Clone(img)
	h := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(nrgba.Bounds().Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(nrgba.Bounds().Dy()))
	h.Write(dims[:])
	h.Write(nrgba.Pix)
	return hex.EncodeToString(h.Sum(nil))
}
