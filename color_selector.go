package hdredit

import "math"

// Range is an inclusive [min, max] interval.
type Range [2]float64

// Edit holds the adjustments applied to the pixels a region selects.
type Edit struct {
	Hue        float64 `json:"hue"`        // hue rotation, degrees
	Exposure   float64 `json:"exposure"`   // EV
	Contrast   float64 `json:"contrast"`   // same scale as the global contrast
	Saturation float64 `json:"saturation"` // chroma scale minus one
}

// Region selects pixels by hue, chroma and lightness.
type Region struct {
	Enabled   bool  `json:"enabled"`
	Hue       Range `json:"hue"` // degrees, min greater than max wraps through 0
	Chroma    Range `json:"chroma"`
	Lightness Range `json:"lightness"`
	Edit      Edit  `json:"edit"`
}

// DefaultRegion returns a disabled region covering every color with a neutral edit.
func DefaultRegion() Region {
	return Region{
		Hue:       Range{0, 360},
		Chroma:    Range{0, 200},
		Lightness: Range{0, 100},
	}
}

// Selection is the set of selective color editor slots with their shared tolerance.
type Selection struct {
	Regions   [NumRegions]Region
	Tolerance float64 // falloff width outside region bounds, in the units of each dimension
}

// Active reports whether any region is enabled.
func (s *Selection) Active() bool {
	for _, r := range s.Regions {
		if r.Enabled {
			return true
		}
	}
	return false
}

// falloff maps a distance outside bounds to a weight.
func falloff(dist, tolerance float64) float64 {
	if dist <= 0 {
		return 1
	}
	if tolerance <= 0 {
		return 0
	}
	return math.Max(0, 1-dist/tolerance)
}

func rangeDistance(v float64, r Range) float64 {
	switch {
	case v < r[0]:
		return r[0] - v
	case v > r[1]:
		return v - r[1]
	default:
		return 0
	}
}

func angleDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func hueDistance(h float64, r Range) float64 {
	lo, hi := r[0], r[1]
	if hi-lo >= 360 {
		return 0
	}
	lo = math.Mod(lo+360, 360)
	hi = math.Mod(hi+360, 360)
	var inside bool
	if lo <= hi {
		inside = h >= lo && h <= hi
	} else {
		inside = h >= lo || h <= hi
	}
	if inside {
		return 0
	}
	return math.Min(angleDistance(h, lo), angleDistance(h, hi))
}

// Weight is the soft selection weight of a color given as L*, C*, h.
func (r Region) Weight(l, c, h, tolerance float64) float64 {
	if !r.Enabled {
		return 0
	}
	w := falloff(hueDistance(h, r.Hue), tolerance)
	if w == 0 {
		return 0
	}
	w = math.Min(w, falloff(rangeDistance(c, r.Chroma), tolerance))
	return math.Min(w, falloff(rangeDistance(clamp(l, 0, 100), r.Lightness), tolerance))
}

func (e Edit) apply(v rgb, g ColorGamut) rgb {
	v = exposePixel(v, e.Exposure)
	v = contrastPixel(v, e.Contrast, g)
	c := rgbToLab(v, g)
	chroma, hue := c.lch()
	k := 1 + clamp(e.Saturation, minSaturation, maxSaturation)
	return labToRGB(fromLCh(c.l, chroma*k, hue+e.Hue), g)
}

// ApplySelection applies each enabled region's edit in proportion to its weight.
//
// Edits of overlapping regions add up: out = in + sum(w_i * (edit_i(in) - in)).
// The returned mask holds the union (per-pixel max) of region weights.
func ApplySelection(in *Image, sel Selection) (*Image, *Mask) {
	out := NewImage(in.Width, in.Height, in.Gamut, in.Range)
	mask := &Mask{Width: in.Width, Height: in.Height, Weight: make([]float32, in.Width*in.Height)}
	forEachRow(in.Height, func(y0, y1 int) {
		for p := y0 * in.Width; p < y1*in.Width; p++ {
			i := 3 * p
			v := in.rgbAt(i)
			c := rgbToLab(v, in.Gamut)
			chroma, hue := c.lch()
			acc := v
			var union float64
			for _, r := range sel.Regions {
				w := r.Weight(c.l, chroma, hue, sel.Tolerance)
				if w == 0 {
					continue
				}
				union = math.Max(union, w)
				e := r.Edit.apply(v, in.Gamut)
				fw := float32(w)
				acc.r += (e.r - v.r) * fw
				acc.g += (e.g - v.g) * fw
				acc.b += (e.b - v.b) * fw
			}
			out.setRGB(i, acc)
			mask.Weight[p] = float32(union)
		}
	})
	return out, mask
}
