package hdredit

import (
	"errors"
	"fmt"
)

// Stage identifies a pipeline step.
type Stage int

// Pipeline stages in execution order.
const (
	StageExposure Stage = iota
	StageContrast
	StageSaturation
	StageBandMask
	StageToneCurve
	StageColorSelector

	numStages = 6
)

var stageNames = [numStages]string{"exposure", "contrast", "saturation", "band_mask", "tone_curve", "color_selector"}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || s >= numStages {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	for i, n := range stageNames {
		if n == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// ErrStageOutput is returned when a stage does not produce an image shaped like its input.
var ErrStageOutput = errors.New("unexpected stage output")

// PipelineOptions controls recompute behavior.
type PipelineOptions struct {
	// OnStage is called with the output of every stage, in order.
	OnStage func(stage Stage, out *Image)
}

// Pipeline recomputes the derived image from an original and a State.
// It holds no per-image data and is safe for concurrent use.
type Pipeline struct {
	opt PipelineOptions

	// intercept replaces a stage output, used to exercise fault handling.
	intercept func(stage Stage, out *Image) *Image
}

// NewPipeline creates a pipeline.
func NewPipeline(opts ...func(o *PipelineOptions)) *Pipeline {
	p := &Pipeline{}
	for _, applyOpt := range opts {
		applyOpt(&p.opt)
	}
	return p
}

// Recompute runs every stage on a fresh copy of original and returns the derived image.
//
// The order is fixed: exposure, contrast, saturation, band mask, tone curve, color selector.
// Every stage runs on every call. When st.Mask is set, the visualization of the mask owned by
// st.MaskSource is returned instead of the edited image. The original is never modified.
func (p *Pipeline) Recompute(original *Image, st State) (*Image, error) {
	if err := original.Validate(); err != nil {
		return nil, err
	}
	control := st.Curve
	if !st.CurveActive {
		control = DefaultControl()
	}
	cv, err := NewCurve(control)
	if err != nil {
		return nil, err
	}

	var bandMask, selectionMask *Mask
	steps := [numStages]func(in *Image) *Image{
		StageExposure:   func(in *Image) *Image { return Exposure(in, st.EV) },
		StageContrast:   func(in *Image) *Image { return Contrast(in, st.Contrast) },
		StageSaturation: func(in *Image) *Image { return Saturation(in, st.Saturation) },
		StageBandMask: func(in *Image) *Image {
			bandMask = BandMask(in, st.Bands)
			return in
		},
		StageToneCurve: func(in *Image) *Image {
			if !st.Bands.Any() {
				return ApplyToneCurve(in, cv, nil)
			}
			return ApplyToneCurve(in, cv, bandMask)
		},
		StageColorSelector: func(in *Image) *Image {
			var out *Image
			out, selectionMask = ApplySelection(in, st.Selection())
			return out
		},
	}

	work := original.Clone()
	for i, run := range steps {
		stage := Stage(i)
		out := run(work)
		if p.intercept != nil {
			out = p.intercept(stage, out)
		}
		if err := checkStageOutput(stage, work, out); err != nil {
			return nil, err
		}
		if p.opt.OnStage != nil {
			p.opt.OnStage(stage, out)
		}
		work = out
	}

	if st.Mask {
		switch st.MaskSource {
		case StageBandMask:
			return bandMask.Visualize(original.Gamut), nil
		case StageColorSelector:
			return selectionMask.Visualize(original.Gamut), nil
		default:
			return nil, fmt.Errorf("%w: %s has no mask preview", ErrStageOutput, st.MaskSource)
		}
	}
	return work, nil
}

func checkStageOutput(stage Stage, in, out *Image) error {
	if out == nil {
		return fmt.Errorf("%w: %s returned no image", ErrStageOutput, stage)
	}
	if !in.SameShape(out) {
		return fmt.Errorf("%w: %s returned %dx%d %s, want %dx%d %s", ErrStageOutput, stage,
			out.Width, out.Height, out.Gamut, in.Width, in.Height, in.Gamut)
	}
	return nil
}
