package segmentation

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/text-behind-image/pkg/types"
)

// EllipseMask returns a width×height mask holding an opaque ellipse
// inscribed in the normalized box.
func EllipseMask(width, height int, box types.Box) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	rx := box.W * float64(width) / 2
	ry := box.H * float64(height) / 2
	if rx <= 0 || ry <= 0 {
		return mask
	}
	cx := box.X*float64(width) + rx
	cy := box.Y*float64(height) + ry

	y0 := max(0, int(cy-ry))
	y1 := min(height, int(cy+ry)+1)
	x0 := max(0, int(cx-rx))
	x1 := min(width, int(cx+rx)+1)
	for y := y0; y < y1; y++ {
		dy := (float64(y) + 0.5 - cy) / ry
		for x := x0; x < x1; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			if dx*dx+dy*dy <= 1 {
				mask.Pix[mask.PixOffset(x, y)] = 0xff
			}
		}
	}
	return mask
}

// Coverage returns the fraction of mask pixels that are at least half opaque.
func Coverage(mask *image.Alpha) float64 {
	if mask == nil || len(mask.Pix) == 0 {
		return 0
	}
	b := mask.Bounds()
	var on int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.AlphaAt(x, y).A >= 0x80 {
				on++
			}
		}
	}
	return float64(on) / float64(b.Dx()*b.Dy())
}

// Scale resizes a mask to width×height with bilinear filtering.
func Scale(mask *image.Alpha, width, height int) *image.Alpha {
	b := mask.Bounds()
	if b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return mask
	}
	return alphaOf(imaging.Resize(mask, width, height, imaging.Linear))
}

// alphaOf extracts the alpha channel of img into an origin-anchored mask.
func alphaOf(img *image.NRGBA) *image.Alpha {
	b := img.Bounds()
	out := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetAlpha(x, y, color.Alpha{A: img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]})
		}
	}
	return out
}
