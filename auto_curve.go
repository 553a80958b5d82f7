package hdredit

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	autoCurveMaxSamples = 1 << 16
	// autoCurveStrength blends the equalized curve with the identity.
	autoCurveStrength = 0.5
)

// AutoCurve sets the interior control points from the lightness distribution of img.
//
// Each interior point moves towards the percentile rank of its input lightness, which spreads
// crowded tones apart. Points are set in rescale mode, darkest first.
func AutoCurve(cv *Curve, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	n := img.Width * img.Height
	step := 1
	if n > autoCurveMaxSamples {
		step = (n + autoCurveMaxSamples - 1) / autoCurveMaxSamples
	}
	ls := make([]float64, 0, n/step+1)
	for p := 0; p < n; p += step {
		ls = append(ls, clamp(lightness(img.rgbAt(3*p), img.Gamut), 0, 100))
	}
	sort.Float64s(ls)

	ctrl := cv.Control()
	for k := KeyShadows; k <= KeyHighlights; k++ {
		in := ctrl[k].In
		rank := 100 * stat.CDF(in, stat.Empirical, ls, nil)
		target := in + (rank-in)*autoCurveStrength
		if err := cv.SetPoint(k, target, true); err != nil {
			return err
		}
	}
	return nil
}
