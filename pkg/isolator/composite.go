package isolator

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/text-behind-image/pkg/blend"
	"github.com/menta2k/text-behind-image/pkg/surface"
)

var opaqueWhite = color.NRGBA{255, 255, 255, 255}

// Composite blurs src by radius and punches the sharp subject back in
// through mask:
//
//  1. draw src through a blur filter
//  2. render the mask on an auxiliary surface
//  3. erase the blurred pixels under the mask (destination-out)
//  4. draw the sharp src behind the hole (destination-over)
//  5. reset the composite operation
func Composite(src image.Image, radius float64, mask *image.Alpha) *image.NRGBA {
	b := src.Bounds()
	s := surface.New(b.Dx(), b.Dy())

	s.SetFilter(radius)
	s.DrawImage(src, 0, 0)
	s.SetFilter(0)

	aux := surface.New(b.Dx(), b.Dy())
	aux.DrawMask(mask, opaqueWhite)

	s.SetComposite(blend.DestinationOut)
	s.DrawImage(aux.Image(), 0, 0)

	s.SetComposite(blend.DestinationOver)
	s.DrawImage(src, 0, 0)

	s.SetComposite(blend.SourceOver)
	return s.Image()
}

// DrawBokeh draws src onto target with its background blurred by bgBlur
// and the subject kept sharp, feathering the mask edge by edgeBlur. With
// mirror set the output is flipped horizontally. Drawing state on target
// is left as it was.
func DrawBokeh(target *surface.Surface, src image.Image, mask *image.Alpha, bgBlur, edgeBlur float64, mirror bool) {
	var fgMask image.Image = mask
	if mirror {
		src = imaging.FlipH(src)
		fgMask = imaging.FlipH(mask)
	}
	if edgeBlur > 0 {
		fgMask = imaging.Blur(fgMask, edgeBlur)
	}

	target.Save()
	defer target.Restore()

	target.SetComposite(blend.SourceOver)
	target.SetAlpha(1)
	target.ClearShadow()

	target.SetFilter(bgBlur)
	target.DrawImage(src, 0, 0)
	target.SetFilter(0)

	target.DrawImage(cutout(src, fgMask), 0, 0)
}

// cutout multiplies the alpha of src by the alpha of mask. Both are read
// relative to their own origins.
func cutout(src image.Image, mask image.Image) *image.NRGBA {
	out := imaging.Clone(src)
	mb := mask.Bounds()
	b := out.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := out.PixOffset(x, y)
			var ma uint32
			if x < mb.Dx() && y < mb.Dy() {
				_, _, _, ma = mask.At(mb.Min.X+x, mb.Min.Y+y).RGBA()
				ma >>= 8
			}
			out.Pix[i+3] = uint8((uint32(out.Pix[i+3])*ma + 127) / 255)
		}
	}
	return out
}
