package hdredit

import (
	"errors"
	"fmt"
)

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutBT709 ColorGamut = iota
	GamutDisplayP3
	GamutBT2100
)

func (g ColorGamut) String() string {
	switch g {
	case GamutBT709:
		return "bt709"
	case GamutDisplayP3:
		return "display-p3"
	case GamutBT2100:
		return "bt2100"
	default:
		return fmt.Sprintf("gamut(%d)", int(g))
	}
}

// DynamicRange tells whether an image was loaded from SDR or HDR content.
type DynamicRange int

const (
	RangeSDR DynamicRange = iota
	RangeHDR
)

func (r DynamicRange) String() string {
	if r == RangeHDR {
		return "hdr"
	}
	return "sdr"
}

// ErrInvalidImage is returned for images whose buffer does not match their dimensions.
var ErrInvalidImage = errors.New("invalid image")

// Image stores a linear-light image in RGB float32.
// Pixel values are relative to SDR white (1.0 = SDR white) and may exceed 1.
type Image struct {
	Width  int
	Height int
	Pix    []float32 // RGB triplets, row-major
	Gamut  ColorGamut
	Range  DynamicRange
}

// NewImage allocates a black image.
func NewImage(width, height int, gamut ColorGamut, dr DynamicRange) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*3),
		Gamut:  gamut,
		Range:  dr,
	}
}

// Validate checks that the pixel buffer matches the dimensions.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil", ErrInvalidImage)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height*3 {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrInvalidImage, len(m.Pix), m.Width, m.Height)
	}
	return nil
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = append([]float32(nil), m.Pix...)
	return &out
}

// SameShape reports whether o has the same dimensions and gamut as m.
func (m *Image) SameShape(o *Image) bool {
	return o != nil && m.Width == o.Width && m.Height == o.Height && m.Gamut == o.Gamut && len(m.Pix) == len(o.Pix)
}

// At returns the pixel at x, y.
func (m *Image) At(x, y int) (r, g, b float32) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set stores the pixel at x, y.
func (m *Image) Set(x, y int, r, g, b float32) {
	i := (y*m.Width + x) * 3
	m.Pix[i] = r
	m.Pix[i+1] = g
	m.Pix[i+2] = b
}

func (m *Image) rgbAt(i int) rgb {
	return rgb{r: m.Pix[i], g: m.Pix[i+1], b: m.Pix[i+2]}
}

func (m *Image) setRGB(i int, v rgb) {
	m.Pix[i] = v.r
	m.Pix[i+1] = v.g
	m.Pix[i+2] = v.b
}

type rgb struct {
	r, g, b float32
}

func (v rgb) scale(k float32) rgb {
	return rgb{r: v.r * k, g: v.g * k, b: v.b * k}
}

// lerpRGB blends a towards b by w.
func lerpRGB(a, b rgb, w float32) rgb {
	return rgb{
		r: a.r + (b.r-a.r)*w,
		g: a.g + (b.g-a.g)*w,
		b: a.b + (b.b-a.b)*w,
	}
}
