package hdredit

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Downsample shrinks img so that its longer side is at most maxSize, keeping the aspect ratio.
//
// Samples are mapped from [min(0, lowest), peak] into 16-bit before resampling and mapped back
// afterwards, so HDR values above 1 and negative out-of-gamut values survive. Images already small
// enough are cloned.
func Downsample(img *Image, maxSize int) *Image {
	if maxSize <= 0 || (img.Width <= maxSize && img.Height <= maxSize) {
		return img.Clone()
	}

	var lo float32
	peak := float32(1e-6)
	for _, v := range img.Pix {
		peak = max(peak, v)
		lo = min(lo, v)
	}
	span := peak - lo
	enc := func(v float32) uint16 { return uint16(clamp01f((v-lo)/span)*0xFFFF + 0.5) }
	dec := func(v uint32) float32 { return float32(v)/0xFFFF*span + lo }

	src := image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			src.SetRGBA64(x, y, color.RGBA64{R: enc(r), G: enc(g), B: enc(b), A: 0xFFFF})
		}
	}

	dst := resize.Thumbnail(uint(maxSize), uint(maxSize), src, resize.Bilinear)
	b := dst.Bounds()
	out := NewImage(b.Dx(), b.Dy(), img.Gamut, img.Range)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := dst.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, dec(r), dec(g), dec(bl))
		}
	}
	return out
}

// ToDisplay converts img to 16-bit sRGB for an SDR display.
// Pixels are converted to BT.709 primaries and values above SDR white are clipped.
func ToDisplay(img *Image) *image.RGBA64 {
	out := image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	forEachRow(img.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b := img.At(x, y)
				v := convertLinearGamut(rgb{r: r, g: g, b: b}, img.Gamut, GamutBT709)
				out.SetRGBA64(x, y, color.RGBA64{
					R: uint16(srgbOetf(clamp01f(v.r))*0xFFFF + 0.5),
					G: uint16(srgbOetf(clamp01f(v.g))*0xFFFF + 0.5),
					B: uint16(srgbOetf(clamp01f(v.b))*0xFFFF + 0.5),
					A: 0xFFFF,
				})
			}
		}
	})
	return out
}
