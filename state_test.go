package hdredit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseStatePartial(t *testing.T) {
	st, err := ParseState([]byte(`{
		"EV": 1.5,
		"bands": {"mediums": true},
		"curve": {"highlights": [90, 50]},
		"mask": true,
		"mask_source": "band_mask"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := DefaultState()
	want.EV = 1.5
	want.Bands[BandMediums] = true
	want.Curve[KeyHighlights].Out = 50
	want.Mask = true
	want.MaskSource = StageBandMask
	if d := cmp.Diff(want, st); d != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", d)
	}
}

func TestParseStateErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		is   error
	}{
		{name: "syntax", data: `{"EV":`},
		{name: "unknown_key", data: `{"curve": {"midtones": [50, 40]}}`},
		{name: "unknown_band", data: `{"bands": {"darks": true}}`},
		{name: "unknown_stage", data: `{"mask_source": "blur"}`},
		{name: "moved_start", data: `{"curve": {"start": [5, 0]}}`, is: ErrInvalidControl},
		{name: "unordered_inputs", data: `{"curve": {"blacks": [60, 30]}}`, is: ErrInvalidControl},
		{name: "mask_source_exposure", data: `{"mask": true, "mask_source": "exposure"}`, is: ErrInvalidState},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseState([]byte(tc.data))
			if err == nil {
				t.Fatalf("no error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("error %v, want %v", err, tc.is)
			}
		})
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	st := DefaultState()
	st.Contrast = -0.25
	st.Regions[3].Enabled = true
	st.Regions[3].Hue = Range{300, 40}
	st.Regions[3].Edit = Edit{Hue: -10, Exposure: 0.5}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseState(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := cmp.Diff(st, got); d != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", d)
	}
}

func TestStateNeutral(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(st *State)
		neutral bool
	}{
		{name: "default", mutate: func(*State) {}, neutral: true},
		{name: "ev", mutate: func(st *State) { st.EV = 0.1 }},
		{name: "curve", mutate: func(st *State) { st.Curve[KeyMediums].Out = 55 }},
		{name: "inactive_curve", mutate: func(st *State) {
			st.Curve[KeyMediums].Out = 55
			st.CurveActive = false
		}, neutral: true},
		{name: "bands_only", mutate: func(st *State) { st.Bands[BandShadows] = true }, neutral: true},
		{name: "region_without_edit", mutate: func(st *State) { st.Regions[0].Enabled = true }, neutral: true},
		{name: "region_edit", mutate: func(st *State) {
			st.Regions[0].Enabled = true
			st.Regions[0].Edit.Saturation = 0.2
		}},
		{name: "mask", mutate: func(st *State) { st.Mask = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := DefaultState()
			tc.mutate(&st)
			if got := st.Neutral(); got != tc.neutral {
				t.Fatalf("Neutral() = %v, want %v", got, tc.neutral)
			}
		})
	}
}
