package hdredit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// State is the full set of adjustment controls for one image.
//
// Defaults (see DefaultState):
//   - EV, Contrast, Saturation: 0, no change.
//   - CurveActive: true, Curve: identity control points.
//   - Bands: all disabled, the tone curve applies to every pixel.
//   - Regions: disabled, covering all colors with neutral edits. Tolerance: 10.
//   - Mask: false, MaskSource: StageColorSelector.
type State struct {
	EV          float64            `json:"EV"`
	Contrast    float64            `json:"contrast"`
	Saturation  float64            `json:"saturation"`
	CurveActive bool               `json:"curve_active"`
	Curve       Control            `json:"curve"`
	Bands       BandToggles        `json:"bands"`
	Regions     [NumRegions]Region `json:"regions"`
	Tolerance   float64            `json:"tolerance"`
	Mask        bool               `json:"mask"`
	MaskSource  Stage              `json:"mask_source"`
}

// DefaultState returns neutral controls.
func DefaultState() State {
	st := State{
		CurveActive: true,
		Curve:       DefaultControl(),
		Tolerance:   10,
		MaskSource:  StageColorSelector,
	}
	for i := range st.Regions {
		st.Regions[i] = DefaultRegion()
	}
	return st
}

// Neutral reports whether the state leaves an image unchanged.
func (s State) Neutral() bool {
	if s.EV != 0 || s.Contrast != 0 || s.Saturation != 0 {
		return false
	}
	if s.CurveActive && !s.Curve.IsIdentity() {
		return false
	}
	if s.Mask {
		return false
	}
	for _, r := range s.Regions {
		if r.Enabled && r.Edit != (Edit{}) {
			return false
		}
	}
	return true
}

// Selection returns the selective color editor part of the state.
func (s State) Selection() Selection {
	return Selection{Regions: s.Regions, Tolerance: s.Tolerance}
}

// ParseState decodes JSON controls on top of DefaultState.
func ParseState(data []byte) (State, error) {
	st := DefaultState()
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return st, fmt.Errorf("parse state: %w", err)
	}
	return st, nil
}

// ErrInvalidState is returned for controls the pipeline cannot run.
var ErrInvalidState = errors.New("invalid state")

// Validate checks curve inputs and the mask preview source.
func (s State) Validate() error {
	if err := s.Curve.Validate(); err != nil {
		return err
	}
	if s.MaskSource != StageBandMask && s.MaskSource != StageColorSelector {
		return fmt.Errorf("%w: %s has no mask preview", ErrInvalidState, s.MaskSource)
	}
	return nil
}
