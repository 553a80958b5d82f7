package hdredit

import (
	"errors"
	"math"
	"testing"
)

// gradient returns an HDR test image with a ramp of greys and colors up to 4x SDR white.
func gradient(w, h int) *Image {
	img := NewImage(w, h, GamutDisplayP3, RangeHDR)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float32(x+1) / float32(w) * 4
			switch y % 3 {
			case 0:
				img.Set(x, y, t, t, t)
			case 1:
				img.Set(x, y, t, t*0.5, t*0.1)
			default:
				img.Set(x, y, t*0.2, t*0.3, t)
			}
		}
	}
	return img
}

func maxAbsDiff(a, b []float32) float64 {
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(float64(a[i]-b[i])))
	}
	return d
}

func TestRecomputeNeutralIsNoOp(t *testing.T) {
	img := gradient(32, 9)
	st := DefaultState()
	if !st.Neutral() {
		t.Fatalf("default state is not neutral")
	}

	out, err := NewPipeline().Recompute(img, st)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !out.SameShape(img) {
		t.Fatalf("output %dx%d, want %dx%d", out.Width, out.Height, img.Width, img.Height)
	}
	if d := maxAbsDiff(out.Pix, img.Pix); d > 1e-4 {
		t.Fatalf("neutral recompute changed pixels by %g", d)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	img := gradient(48, 21)
	st := DefaultState()
	st.EV = 0.7
	st.Contrast = 0.3
	st.Saturation = -0.2
	st.Curve = controlWith(0, 5, 25, 55, 75, 85, 100)
	st.Bands[BandMediums] = true
	st.Bands[BandWhites] = true
	st.Regions[1] = DefaultRegion()
	st.Regions[1].Enabled = true
	st.Regions[1].Hue = Range{20, 80}
	st.Regions[1].Edit = Edit{Hue: 15, Saturation: 0.4}

	p := NewPipeline()
	a, err := p.Recompute(img, st)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	b, err := p.Recompute(img, st)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	for i := range a.Pix {
		if math.Float32bits(a.Pix[i]) != math.Float32bits(b.Pix[i]) {
			t.Fatalf("sample %d differs between runs: %g vs %g", i, a.Pix[i], b.Pix[i])
		}
	}
}

func TestRecomputeKeepsOriginal(t *testing.T) {
	img := gradient(16, 6)
	before := img.Clone()
	st := DefaultState()
	st.EV = 2
	st.Saturation = 1

	if _, err := NewPipeline().Recompute(img, st); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	for i := range img.Pix {
		if img.Pix[i] != before.Pix[i] {
			t.Fatalf("original sample %d modified", i)
		}
	}
}

func TestRecomputeStageOrder(t *testing.T) {
	var got []Stage
	p := NewPipeline(func(o *PipelineOptions) {
		o.OnStage = func(stage Stage, _ *Image) { got = append(got, stage) }
	})
	if _, err := p.Recompute(gradient(4, 3), DefaultState()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	want := []Stage{StageExposure, StageContrast, StageSaturation, StageBandMask, StageToneCurve, StageColorSelector}
	if len(got) != len(want) {
		t.Fatalf("stages %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages %v, want %v", got, want)
		}
	}
}

func TestRecomputeExposureScenario(t *testing.T) {
	img := NewImage(1, 1, GamutBT709, RangeSDR)
	img.Set(0, 0, 0.5, 0.5, 0.5)
	st := DefaultState()
	st.EV = 1

	var exposed *Image
	p := NewPipeline(func(o *PipelineOptions) {
		o.OnStage = func(stage Stage, out *Image) {
			if stage == StageExposure {
				exposed = out
			}
		}
	})
	if _, err := p.Recompute(img, st); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if r, g, b := exposed.At(0, 0); r != 1 || g != 1 || b != 1 {
		t.Fatalf("exposed pixel %g %g %g, want 1", r, g, b)
	}
}

func TestRecomputeStageFault(t *testing.T) {
	img := gradient(8, 3)
	for _, tc := range []struct {
		name string
		fn   func(*Image) *Image
	}{
		{name: "nil", fn: func(*Image) *Image { return nil }},
		{name: "resized", fn: func(*Image) *Image { return NewImage(4, 3, GamutDisplayP3, RangeHDR) }},
		{name: "gamut", fn: func(in *Image) *Image {
			out := in.Clone()
			out.Gamut = GamutBT709
			return out
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPipeline()
			p.intercept = func(stage Stage, out *Image) *Image {
				if stage == StageSaturation {
					return tc.fn(out)
				}
				return out
			}
			_, err := p.Recompute(img, DefaultState())
			if !errors.Is(err, ErrStageOutput) {
				t.Fatalf("error %v, want ErrStageOutput", err)
			}
		})
	}
}

func TestRecomputeInvalidImage(t *testing.T) {
	img := &Image{Width: 3, Height: 2, Pix: make([]float32, 5)}
	if _, err := NewPipeline().Recompute(img, DefaultState()); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("error %v, want ErrInvalidImage", err)
	}
	if _, err := NewPipeline().Recompute(nil, DefaultState()); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("error %v, want ErrInvalidImage", err)
	}
}

func TestRecomputeMaskPreview(t *testing.T) {
	img := gradient(10, 3)
	st := DefaultState()
	st.Mask = true

	st.MaskSource = StageColorSelector
	st.Regions[0] = DefaultRegion()
	st.Regions[0].Enabled = true
	out, err := NewPipeline().Recompute(img, st)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if out.Width != img.Width || out.Height != img.Height {
		t.Fatalf("mask preview %dx%d, want %dx%d", out.Width, out.Height, img.Width, img.Height)
	}
	if r, g, b := out.At(0, 0); r != 1 || g != 1 || b != 1 {
		t.Fatalf("fully selected pixel shows %g %g %g, want white", r, g, b)
	}

	st.MaskSource = StageBandMask
	st.Bands[BandShadows] = true
	out, err = NewPipeline().Recompute(img, st)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	// Brightest grey sits far above the shadows band.
	if r, _, _ := out.At(img.Width-1, 0); r != 0 {
		t.Fatalf("highlight shows shadow mask %g", r)
	}

	st.MaskSource = StageExposure
	if _, err := NewPipeline().Recompute(img, st); !errors.Is(err, ErrStageOutput) {
		t.Fatalf("error %v, want ErrStageOutput", err)
	}
}

func TestToneCurveHighlightsScenario(t *testing.T) {
	img := NewImage(3, 1, GamutBT709, RangeSDR)
	for x, l := range []float64{0, 90, 100} {
		v := greyWithLightness(l)
		img.Set(x, 0, v, v, v)
	}

	out, err := ToneCurve(img, controlWith(0, 10, 30, 50, 70, 50, 100))
	if err != nil {
		t.Fatalf("tone curve: %v", err)
	}
	for x, want := range []float64{0, 50, 100} {
		r, g, b := out.At(x, 0)
		if got := lightness(rgb{r: r, g: g, b: b}, out.Gamut); math.Abs(got-want) > 0.01 {
			t.Fatalf("pixel %d: L* %g, want %g", x, got, want)
		}
	}
}

func TestToneCurveMaskBlend(t *testing.T) {
	img := NewImage(2, 1, GamutBT709, RangeSDR)
	v := greyWithLightness(50)
	img.Set(0, 0, v, v, v)
	img.Set(1, 0, v, v, v)
	cv := mustCurve(t, controlWith(0, 10, 30, 80, 90, 95, 100))

	mask := &Mask{Width: 2, Height: 1, Weight: []float32{0, 1}}
	out := ApplyToneCurve(img, cv, mask)
	if r, _, _ := out.At(0, 0); r != v {
		t.Fatalf("masked-out pixel changed: %g -> %g", v, r)
	}
	r, g, b := out.At(1, 0)
	if got := lightness(rgb{r: r, g: g, b: b}, out.Gamut); math.Abs(got-80) > 0.01 {
		t.Fatalf("selected pixel L* %g, want 80", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("mask size mismatch did not panic")
		}
	}()
	ApplyToneCurve(img, cv, &Mask{Width: 1, Height: 1, Weight: []float32{1}})
}

func TestToneCurveKeepsHDRExcess(t *testing.T) {
	img := NewImage(1, 1, GamutBT709, RangeHDR)
	img.Set(0, 0, 3, 3, 3)
	before := lightness(rgb{r: 3, g: 3, b: 3}, img.Gamut)

	out := ApplyToneCurve(img, mustCurve(t, DefaultControl()), nil)
	r, g, b := out.At(0, 0)
	if got := lightness(rgb{r: r, g: g, b: b}, out.Gamut); math.Abs(got-before) > 1e-3 {
		t.Fatalf("L* %g became %g", before, got)
	}
	if before <= 100 {
		t.Fatalf("test pixel is not above SDR white: L* %g", before)
	}
}
