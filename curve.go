package hdredit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// CurveKey names a tone curve control point.
type CurveKey int

// Control point keys in curve order.
const (
	KeyStart CurveKey = iota
	KeyShadows
	KeyBlacks
	KeyMediums
	KeyWhites
	KeyHighlights
	KeyEnd

	NumKeys = 7
)

var curveKeyNames = [NumKeys]string{"start", "shadows", "blacks", "mediums", "whites", "highlights", "end"}

func (k CurveKey) String() string {
	if k < 0 || k >= NumKeys {
		return fmt.Sprintf("key(%d)", int(k))
	}
	return curveKeyNames[k]
}

var (
	// ErrUnknownKey is returned for curve keys outside start..end.
	ErrUnknownKey = errors.New("unknown curve key")
	// ErrInvalidControl is returned for control sets with misplaced inputs.
	ErrInvalidControl = errors.New("invalid curve control")
)

// ParseCurveKey resolves a key by name.
func ParseCurveKey(s string) (CurveKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range curveKeyNames {
		if n == s {
			return CurveKey(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Point is an (input, output) pair in percent of the lightness range.
type Point struct {
	In  float64
	Out float64
}

// Control is the full set of curve control points, indexed by CurveKey.
type Control [NumKeys]Point

// DefaultControl returns the identity curve.
func DefaultControl() Control {
	return Control{{0, 0}, {10, 10}, {30, 30}, {50, 50}, {70, 70}, {90, 90}, {100, 100}}
}

// Outputs returns output ordinates in key order.
func (c Control) Outputs() []float64 {
	out := make([]float64, NumKeys)
	for i, p := range c {
		out[i] = p.Out
	}
	return out
}

// Monotone reports whether outputs are non-decreasing in key order.
func (c Control) Monotone() bool {
	for i := 1; i < NumKeys; i++ {
		if c[i].Out < c[i-1].Out {
			return false
		}
	}
	return true
}

// Validate checks that inputs are fixed at the ends and strictly increasing.
func (c Control) Validate() error {
	if c[KeyStart].In != 0 || c[KeyEnd].In != 100 {
		return fmt.Errorf("%w: start and end inputs must be 0 and 100", ErrInvalidControl)
	}
	for i := 1; i < NumKeys; i++ {
		if c[i].In <= c[i-1].In {
			return fmt.Errorf("%w: %s input %g not above %s input %g",
				ErrInvalidControl, CurveKey(i), c[i].In, CurveKey(i-1), c[i-1].In)
		}
	}
	return nil
}

// MarshalJSON encodes the control as {"start":[0,0], "shadows":[10,v], ...}.
func (c Control) MarshalJSON() ([]byte, error) {
	m := make(map[string][2]float64, NumKeys)
	for i, p := range c {
		m[curveKeyNames[i]] = [2]float64{p.In, p.Out}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a partial or full key map on top of the current value.
func (c *Control) UnmarshalJSON(data []byte) error {
	var m map[string][2]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, p := range m {
		k, err := ParseCurveKey(name)
		if err != nil {
			return err
		}
		c[k] = Point{In: p[0], Out: p[1]}
	}
	return nil
}

// Curve is a tone curve through the seven control points.
type Curve struct {
	control Control
	samples []Point
	lookup  interp.PiecewiseLinear
}

// NewCurve creates an evaluated curve.
func NewCurve(c Control) (*Curve, error) {
	cv := &Curve{}
	if err := cv.SetControl(c); err != nil {
		return nil, err
	}
	return cv, nil
}

// Control returns a copy of the current control points.
func (cv *Curve) Control() Control {
	return cv.control
}

// SetControl replaces all control points verbatim and re-evaluates.
// Outputs are clamped to [0, 100] but not reordered.
func (cv *Curve) SetControl(c Control) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for i := range c {
		c[i].Out = clamp(c[i].Out, 0, 100)
	}
	cv.control = c
	return cv.Evaluate()
}

// SetPoint updates the output of one control point keeping outputs non-decreasing.
//
// A value crossing a neighbour is resolved, never rejected: with autoScale false the edited point
// is flattened onto the nearest conflicting bound; with autoScale true the points on the violated
// side are linearly redistributed between the new value and the fixed end of the curve.
func (cv *Curve) SetPoint(key CurveKey, value float64, autoScale bool) error {
	if key < 0 || key >= NumKeys {
		return fmt.Errorf("%w: %d", ErrUnknownKey, int(key))
	}
	vals := cv.control.Outputs()
	idx := int(key)
	last := NumKeys - 1

	value = clamp(value, 0, 100)
	if autoScale {
		if idx != last && value > vals[last] {
			value = vals[last]
		}
		if idx != 0 && value < vals[0] {
			value = vals[0]
		}
	}

	before, after := vals[:idx], vals[idx+1:]
	lowerOK := len(before) == 0 || floats.Max(before) <= value
	upperOK := len(after) == 0 || value <= floats.Min(after)

	switch {
	case lowerOK && upperOK:
		vals[idx] = value
	case !upperOK && autoScale:
		minV := floats.Min(vals[idx:])
		maxV := vals[last]
		for j := idx + 1; j < last; j++ {
			if maxV == minV {
				vals[j] = value
				continue
			}
			u := (vals[j] - minV) / (maxV - minV)
			vals[j] = math.Min(value+u*(maxV-value), maxV)
		}
		vals[idx] = value
	case !upperOK:
		vals[idx] = floats.Min(after)
	case autoScale:
		minV := vals[0]
		maxV := floats.Max(before)
		for j := 1; j < idx; j++ {
			if maxV == minV {
				vals[j] = value
				continue
			}
			u := (vals[j] - minV) / (maxV - minV)
			vals[j] = math.Min(minV+u*(value-minV), value)
		}
		vals[idx] = value
	default:
		vals[idx] = floats.Max(before)
	}

	for i, v := range vals {
		cv.control[i].Out = v
	}
	return cv.Evaluate()
}

// Evaluate rebuilds the sampled curve from the control points.
//
// The spline also passes through a phantom point at input 200 that continues the last segment,
// so the curve is not forced to bend at the top of the range. Samples never overshoot the outputs
// of the two control points around them, and for non-decreasing outputs the samples are
// non-decreasing too.
func (cv *Curve) Evaluate() error {
	c := cv.control
	xs := make([]float64, 0, NumKeys+1)
	ys := make([]float64, 0, NumKeys+1)
	for _, p := range c {
		xs = append(xs, p.In)
		ys = append(ys, p.Out)
	}
	end, prev := c[KeyEnd], c[KeyHighlights]
	slope := (end.Out - prev.Out) / (end.In - prev.In)
	xs = append(xs, curveExtendedAt)
	ys = append(ys, end.Out+slope*(curveExtendedAt-end.In))

	s, err := fitQuadSpline(xs, ys)
	if err != nil {
		return fmt.Errorf("evaluate curve: %w", err)
	}

	n := int(100/curveStep) + 1
	sx := make([]float64, n)
	sy := make([]float64, n)
	samples := make([]Point, n)
	monotone := c.Monotone()
	seg := 0
	for i := range sx {
		x := float64(i) * curveStep
		for seg < NumKeys-2 && x > c[seg+1].In {
			seg++
		}
		// Samples stay between the outputs of the enclosing control points.
		a, b := c[seg].Out, c[seg+1].Out
		y := clamp(s.eval(x), math.Min(a, b), math.Max(a, b))
		if monotone && i > 0 {
			y = math.Max(y, sy[i-1])
		}
		switch i {
		case 0:
			y = c[KeyStart].Out
		case n - 1:
			y = c[KeyEnd].Out
		}
		sx[i], sy[i] = x, y
		samples[i] = Point{In: x, Out: y}
	}
	if err := cv.lookup.Fit(sx, sy); err != nil {
		return fmt.Errorf("evaluate curve: %w", err)
	}
	cv.samples = samples
	return nil
}

// MapValue returns the curve output for input x, both clamped to [0, 100].
func (cv *Curve) MapValue(x float64) float64 {
	return clamp(cv.lookup.Predict(clamp(x, 0, 100)), 0, 100)
}

// Samples returns the evaluated (input, output) sequence.
func (cv *Curve) Samples() []Point {
	return append([]Point(nil), cv.samples...)
}

// IsIdentity reports whether every control point lies on the diagonal.
func (c Control) IsIdentity() bool {
	for _, p := range c {
		if p.In != p.Out {
			return false
		}
	}
	return true
}
