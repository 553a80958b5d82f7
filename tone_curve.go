package hdredit

import "fmt"

// ApplyToneCurve maps L* of every pixel through the curve, keeping a* and b*.
//
// Lightness above 100 keeps its excess over the top of the curve. When mask is not nil, each
// pixel is blended with its input by the mask weight. A mask of a different size panics.
func ApplyToneCurve(in *Image, cv *Curve, mask *Mask) *Image {
	if mask != nil && (mask.Width != in.Width || mask.Height != in.Height) {
		panic(fmt.Sprintf("tone curve mask is %dx%d, image is %dx%d", mask.Width, mask.Height, in.Width, in.Height))
	}
	out := NewImage(in.Width, in.Height, in.Gamut, in.Range)
	forEachRow(in.Height, func(y0, y1 int) {
		for p := y0 * in.Width; p < y1*in.Width; p++ {
			i := 3 * p
			v := in.rgbAt(i)
			c := rgbToLab(v, in.Gamut)
			l := clamp(c.l, 0, 100)
			c.l = cv.MapValue(l) + (c.l - l)
			mapped := labToRGB(c, in.Gamut)
			if mask != nil {
				mapped = lerpRGB(v, mapped, mask.Weight[p])
			}
			out.setRGB(i, mapped)
		}
	})
	return out
}

// ToneCurve applies the curve described by control to in.
func ToneCurve(in *Image, control Control) (*Image, error) {
	cv, err := NewCurve(control)
	if err != nil {
		return nil, err
	}
	return ApplyToneCurve(in, cv, nil), nil
}
