package hdredit

import "math"

func exposePixel(v rgb, ev float64) rgb {
	return v.scale(exp2f(float32(clamp(ev, minEV, maxEV))))
}

// contrastPixel scales log luminance around middle grey, keeping chromaticity.
func contrastPixel(v rgb, amount float64, g ColorGamut) rgb {
	y := luminance(v, g)
	if y <= 0 {
		return v
	}
	k := 1 + clamp(amount, minContrast, maxContrast)
	target := contrastPivot * math.Pow(y/contrastPivot, k)
	return v.scale(float32(target / y))
}

// saturatePixel scales CIELAB chroma by 1 + amount.
func saturatePixel(v rgb, amount float64, g ColorGamut) rgb {
	c := rgbToLab(v, g)
	k := 1 + clamp(amount, minSaturation, maxSaturation)
	c.a *= k
	c.b *= k
	return labToRGB(c, g)
}

// mapPixels applies fn to every pixel of in and returns a new image.
func mapPixels(in *Image, fn func(v rgb) rgb) *Image {
	out := NewImage(in.Width, in.Height, in.Gamut, in.Range)
	forEachRow(in.Height, func(y0, y1 int) {
		for i := y0 * in.Width * 3; i < y1*in.Width*3; i += 3 {
			out.setRGB(i, fn(in.rgbAt(i)))
		}
	})
	return out
}

// Exposure multiplies linear values by 2^ev.
func Exposure(in *Image, ev float64) *Image {
	return mapPixels(in, func(v rgb) rgb { return exposePixel(v, ev) })
}

// Contrast applies a power curve to luminance pivoting on middle grey.
func Contrast(in *Image, amount float64) *Image {
	return mapPixels(in, func(v rgb) rgb { return contrastPixel(v, amount, in.Gamut) })
}

// Saturation scales chroma by 1 + amount.
func Saturation(in *Image, amount float64) *Image {
	return mapPixels(in, func(v rgb) rgb { return saturatePixel(v, amount, in.Gamut) })
}
