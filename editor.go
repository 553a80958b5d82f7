package hdredit

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoImage is returned by Editor setters before an image is loaded.
var ErrNoImage = errors.New("no image loaded")

// EditorOptions controls an editing session.
type EditorOptions struct {
	// PreviewMaxSize downsamples the working original so its longer side fits, 0 keeps full size.
	PreviewMaxSize int
	// Pipeline overrides the default pipeline.
	Pipeline *Pipeline
}

// Editor is a single-image editing session.
//
// Every setter changes one control and recomputes the derived image from the original.
// Recomputes are serialized: concurrent setters queue on the session lock and each one sees the
// state left by the previous. Change listeners run under that lock, in recompute order, and
// must not call back into the Editor.
type Editor struct {
	mu        sync.Mutex
	opt       EditorOptions
	pipeline  *Pipeline
	original  *Image
	state     State
	curve     *Curve
	derived   *Image
	listeners []func(derived *Image, err error)
}

// NewEditor creates an editing session with no image.
func NewEditor(opts ...func(o *EditorOptions)) *Editor {
	e := &Editor{state: DefaultState()}
	for _, applyOpt := range opts {
		applyOpt(&e.opt)
	}
	e.pipeline = e.opt.Pipeline
	if e.pipeline == nil {
		e.pipeline = NewPipeline()
	}
	return e
}

// OnChange registers a listener for recompute results.
func (e *Editor) OnChange(fn func(derived *Image, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Load selects a new original, resets controls to defaults and recomputes.
func (e *Editor) Load(img *Image) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := img.Clone()
	if e.opt.PreviewMaxSize > 0 {
		working = Downsample(img, e.opt.PreviewMaxSize)
	}
	cv, err := NewCurve(DefaultControl())
	if err != nil {
		return nil, err
	}
	e.original = working
	e.state = DefaultState()
	e.curve = cv
	return e.recompute()
}

// State returns a copy of the current controls.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Original returns the working original, downsampled when PreviewMaxSize is set.
func (e *Editor) Original() *Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.original
}

// Derived returns the last recomputed image.
func (e *Editor) Derived() *Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.derived
}

// Update applies fn to the controls and recomputes.
func (e *Editor) Update(fn func(st *State)) (*Image, error) {
	return e.commit(func(st *State) error {
		fn(st)
		return e.curve.SetControl(st.Curve)
	})
}

// SetExposure sets exposure in stops.
func (e *Editor) SetExposure(ev float64) (*Image, error) {
	return e.commit(func(st *State) error {
		st.EV = clamp(ev, minEV, maxEV)
		return nil
	})
}

// SetContrast sets the global contrast amount.
func (e *Editor) SetContrast(amount float64) (*Image, error) {
	return e.commit(func(st *State) error {
		st.Contrast = clamp(amount, minContrast, maxContrast)
		return nil
	})
}

// SetSaturation sets the global saturation amount.
func (e *Editor) SetSaturation(amount float64) (*Image, error) {
	return e.commit(func(st *State) error {
		st.Saturation = clamp(amount, minSaturation, maxSaturation)
		return nil
	})
}

// SetCurvePoint moves a curve point the way a slider drag does, flattening on conflicts.
func (e *Editor) SetCurvePoint(key CurveKey, value float64) (*Image, error) {
	return e.commit(func(st *State) error {
		if err := e.curve.SetPoint(key, value, false); err != nil {
			return err
		}
		st.Curve = e.curve.Control()
		return nil
	})
}

// SetCurveActive turns the tone curve on or off without losing its points.
func (e *Editor) SetCurveActive(on bool) (*Image, error) {
	return e.commit(func(st *State) error {
		st.CurveActive = on
		return nil
	})
}

// AutoCurve derives curve points from the exposed original and applies them in rescale mode.
func (e *Editor) AutoCurve() (*Image, error) {
	return e.commit(func(st *State) error {
		if err := AutoCurve(e.curve, Exposure(e.original, st.EV)); err != nil {
			return err
		}
		st.Curve = e.curve.Control()
		return nil
	})
}

// SetBand enables or disables a lightness band of the tone curve mask.
func (e *Editor) SetBand(b Band, on bool) (*Image, error) {
	return e.commit(func(st *State) error {
		if b < 0 || b >= numBands {
			return fmt.Errorf("unknown band %d", int(b))
		}
		st.Bands[b] = on
		return nil
	})
}

// SetRegion replaces a selective color region.
func (e *Editor) SetRegion(i int, r Region) (*Image, error) {
	return e.commit(func(st *State) error {
		if i < 0 || i >= NumRegions {
			return fmt.Errorf("region %d out of range [0, %d)", i, NumRegions)
		}
		st.Regions[i] = r
		return nil
	})
}

// SetRegionEdit replaces the edit of a selective color region.
func (e *Editor) SetRegionEdit(i int, ed Edit) (*Image, error) {
	return e.commit(func(st *State) error {
		if i < 0 || i >= NumRegions {
			return fmt.Errorf("region %d out of range [0, %d)", i, NumRegions)
		}
		st.Regions[i].Edit = ed
		return nil
	})
}

// SetTolerance sets the shared selection falloff width.
func (e *Editor) SetTolerance(t float64) (*Image, error) {
	return e.commit(func(st *State) error {
		st.Tolerance = max(t, 0)
		return nil
	})
}

// SetMaskPreview shows the mask of source instead of the edited image.
func (e *Editor) SetMaskPreview(source Stage, on bool) (*Image, error) {
	return e.commit(func(st *State) error {
		st.Mask = on
		st.MaskSource = source
		return nil
	})
}

// commit mutates a copy of the state, keeps it when valid and recomputes.
// A failed mutation or an invalid result leaves state and curve untouched.
func (e *Editor) commit(mutate func(st *State) error) (*Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.original == nil {
		return nil, ErrNoImage
	}
	st := e.state
	prev := e.curve.Control()
	err := mutate(&st)
	if err == nil {
		err = st.Validate()
	}
	if err != nil {
		_ = e.curve.SetControl(prev)
		return nil, err
	}
	e.state = st
	return e.recompute()
}

func (e *Editor) recompute() (*Image, error) {
	derived, err := e.pipeline.Recompute(e.original, e.state)
	if err == nil {
		e.derived = derived
	}
	for _, fn := range e.listeners {
		fn(derived, err)
	}
	return derived, err
}
