package hdredit

import (
	"encoding/json"
	"fmt"
)

// Band is one of the five lightness bands.
type Band int

// Lightness bands, darkest first.
const (
	BandShadows Band = iota
	BandBlacks
	BandMediums
	BandWhites
	BandHighlights

	numBands = 5
)

var bandNames = [numBands]string{"shadows", "blacks", "mediums", "whites", "highlights"}

func (b Band) String() string {
	if b < 0 || b >= numBands {
		return fmt.Sprintf("band(%d)", int(b))
	}
	return bandNames[b]
}

// ParseBand resolves a band by name.
func ParseBand(s string) (Band, error) {
	for i, n := range bandNames {
		if n == s {
			return Band(i), nil
		}
	}
	return 0, fmt.Errorf("unknown band %q", s)
}

// BandToggles enables bands for the lightness mask.
type BandToggles [numBands]bool

// Any reports whether at least one band is enabled.
func (t BandToggles) Any() bool {
	for _, on := range t {
		if on {
			return true
		}
	}
	return false
}

// MarshalJSON encodes toggles as {"shadows":false, ...}.
func (t BandToggles) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, numBands)
	for i, on := range t {
		m[bandNames[i]] = on
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a partial band map.
func (t *BandToggles) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, on := range m {
		b, err := ParseBand(name)
		if err != nil {
			return err
		}
		t[b] = on
	}
	return nil
}

// BandMembership is the soft membership of lightness l in band b.
//
// Memberships are triangles peaking at the band center and reaching zero at the neighbouring
// centers. The outermost bands keep full membership beyond their center, so the five
// memberships sum to 1 for every lightness.
func BandMembership(b Band, l float64) float64 {
	c := bandCenters[b]
	if l <= c {
		if b == BandShadows {
			return 1
		}
		prev := bandCenters[b-1]
		return clamp((l-prev)/(c-prev), 0, 1)
	}
	if b == BandHighlights {
		return 1
	}
	next := bandCenters[b+1]
	return clamp((next-l)/(next-c), 0, 1)
}

// bandWeight sums the memberships of enabled bands, 1 when none is enabled.
func bandWeight(t BandToggles, l float64) float64 {
	if !t.Any() {
		return 1
	}
	var w float64
	for i, on := range t {
		if on {
			w += BandMembership(Band(i), l)
		}
	}
	return clamp(w, 0, 1)
}

// Mask is a per-pixel weight map in [0, 1].
type Mask struct {
	Width  int
	Height int
	Weight []float32
}

// Uniform reports whether every weight is 1.
func (m *Mask) Uniform() bool {
	for _, w := range m.Weight {
		if w != 1 {
			return false
		}
	}
	return true
}

// Visualize renders the mask as a grayscale image.
func (m *Mask) Visualize(g ColorGamut) *Image {
	out := NewImage(m.Width, m.Height, g, RangeSDR)
	for i, w := range m.Weight {
		out.Pix[3*i] = w
		out.Pix[3*i+1] = w
		out.Pix[3*i+2] = w
	}
	return out
}

// BandMask computes the lightness band mask of img.
func BandMask(img *Image, t BandToggles) *Mask {
	m := &Mask{Width: img.Width, Height: img.Height, Weight: make([]float32, img.Width*img.Height)}
	forEachRow(img.Height, func(y0, y1 int) {
		for i := y0 * img.Width; i < y1*img.Width; i++ {
			l := lightness(img.rgbAt(3*i), img.Gamut)
			m.Weight[i] = float32(bandWeight(t, clamp(l, 0, 100)))
		}
	})
	return m
}
