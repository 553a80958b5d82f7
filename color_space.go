package hdredit

import (
	"bytes"
	"math"
	"sort"
)

// lab is a CIELAB color relative to the gamut white with Yn = 1, so L* above 100 marks HDR highlights.
type lab struct {
	l, a, b float64
}

// whites holds XYZ of RGB(1,1,1) per gamut, so neutral greys carry zero chroma.
var whites = func() map[ColorGamut][3]float64 {
	m := make(map[ColorGamut][3]float64, 3)
	for _, g := range []ColorGamut{GamutBT709, GamutDisplayP3, GamutBT2100} {
		x, y, z := rgbToXYZ(rgb{r: 1, g: 1, b: 1}, g)
		m[g] = [3]float64{x, y, z}
	}
	return m
}()

func convertLinearGamut(v rgb, from, to ColorGamut) rgb {
	if from == to {
		return v
	}
	// Matrices are D65 linear RGB <-> XYZ.
	x, y, z := rgbToXYZ(v, from)
	return xyzToRGB(x, y, z, to)
}

func rgbToXYZ(v rgb, from ColorGamut) (float64, float64, float64) {
	r, g, b := float64(v.r), float64(v.g), float64(v.b)
	switch from {
	case GamutDisplayP3:
		return 0.48657095*r + 0.2656677*g + 0.19821729*b,
			0.22897457*r + 0.69173855*g + 0.07928691*b,
			0.04511338*g + 1.0439444*b
	case GamutBT2100:
		return 0.636958*r + 0.1446169*g + 0.168881*b,
			0.2627002*r + 0.6779981*g + 0.0593017*b,
			0.0280727*g + 1.0609851*b
	default:
		return 0.4123908*r + 0.35758433*g + 0.1804808*b,
			0.212639*r + 0.71516865*g + 0.07219232*b,
			0.019330818*r + 0.11919478*g + 0.95053214*b
	}
}

func xyzToRGB(x, y, z float64, to ColorGamut) rgb {
	switch to {
	case GamutDisplayP3:
		return rgb{
			r: float32(2.493497*x - 0.9313836*y - 0.4027108*z),
			g: float32(-0.829489*x + 1.7626641*y + 0.023624685*z),
			b: float32(0.03584583*x - 0.07617239*y + 0.9568845*z),
		}
	case GamutBT2100:
		return rgb{
			r: float32(1.7166512*x - 0.3556708*y - 0.2533663*z),
			g: float32(-0.6666844*x + 1.6164812*y + 0.0157685*z),
			b: float32(0.0176399*x - 0.0427706*y + 0.9421031*z),
		}
	default:
		return rgb{
			r: float32(3.24097*x - 1.5373832*y - 0.49861076*z),
			g: float32(-0.96924365*x + 1.8759675*y + 0.041555058*z),
			b: float32(0.05563008*x - 0.20397696*y + 1.0569715*z),
		}
	}
}

// luminance returns relative luminance Y of a linear pixel.
func luminance(v rgb, g ColorGamut) float64 {
	_, y, _ := rgbToXYZ(v, g)
	return y
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

func labFinv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

func rgbToLab(v rgb, g ColorGamut) lab {
	x, y, z := rgbToXYZ(v, g)
	w := whites[g]
	fx := labF(x / w[0])
	fy := labF(y / w[1])
	fz := labF(z / w[2])
	return lab{
		l: 116*fy - 16,
		a: 500 * (fx - fy),
		b: 200 * (fy - fz),
	}
}

func labToRGB(c lab, g ColorGamut) rgb {
	w := whites[g]
	fy := (c.l + 16) / 116
	fx := fy + c.a/500
	fz := fy - c.b/200
	return xyzToRGB(labFinv(fx)*w[0], labFinv(fy)*w[1], labFinv(fz)*w[2], g)
}

// lightness returns L* of a linear pixel.
func lightness(v rgb, g ColorGamut) float64 {
	_, y, _ := rgbToXYZ(v, g)
	return 116*labF(y/whites[g][1]) - 16
}

// chroma and hue (degrees in [0, 360)) of a Lab color.
func (c lab) lch() (chroma, hue float64) {
	chroma = math.Hypot(c.a, c.b)
	hue = math.Atan2(c.b, c.a) * 180 / math.Pi
	if hue < 0 {
		hue += 360
	}
	return chroma, hue
}

func fromLCh(l, chroma, hue float64) lab {
	h := hue * math.Pi / 180
	return lab{l: l, a: chroma * math.Cos(h), b: chroma * math.Sin(h)}
}

// gamutFromICCProfile guesses the gamut from the profile description.
func gamutFromICCProfile(profile []byte) ColorGamut {
	lower := bytes.ToLower(profile)
	// Simple heuristic: enough for common camera/jpeg workflows.
	switch {
	case bytes.Contains(lower, []byte("display p3")) || bytes.Contains(lower, []byte("dci-p3")):
		return GamutDisplayP3
	case bytes.Contains(lower, []byte("2020")) || bytes.Contains(lower, []byte("2100")):
		return GamutBT2100
	default:
		return GamutBT709
	}
}

var iccSig = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}

// collectICCProfile joins ICC APP2 chunks in sequence order.
func collectICCProfile(app2 [][]byte) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	chunks := make([]chunk, 0, len(app2))
	for _, p := range app2 {
		// ICC APP2 payload: "ICC_PROFILE\0" + seq + total + profile bytes.
		if len(p) > len(iccSig)+2 && bytes.HasPrefix(p, iccSig) {
			chunks = append(chunks, chunk{seq: int(p[len(iccSig)]), data: p[len(iccSig)+2:]})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	var out []byte
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}
