package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vearutop/hdredit"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "apply":
		if err := runApply(os.Args[2:]); err != nil {
			fail(err)
		}
	case "curve":
		if err := runCurve(os.Args[2:], os.Stdout); err != nil {
			fail(err)
		}
	case "defaults":
		if err := writeJSON(os.Stdout, hdredit.DefaultState()); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: hdredit <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  apply -in input.exr -out output.png [-params state.json] [-ev 0.5] [-contrast 0.2] [-saturation 0.1]")
	fmt.Fprintln(os.Stderr, "        [-curve highlights=80,shadows=5] [-rescale] [-bands shadows,blacks] [-auto]")
	fmt.Fprintln(os.Stderr, "        [-mask band_mask|color_selector] [-preview 1024] [-v]")
	fmt.Fprintln(os.Stderr, "  curve [-curve highlights=80] [-rescale] [-step 1]")
	fmt.Fprintln(os.Stderr, "  defaults")
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	inPath := fs.String("in", "", "input PNG, JPEG, TIFF or EXR")
	outPath := fs.String("out", "", "output PNG, TIFF or EXR")
	paramsPath := fs.String("params", "", "adjustment state json")
	ev := fs.Float64("ev", 0, "exposure, stops")
	contrast := fs.Float64("contrast", 0, "contrast amount")
	saturation := fs.Float64("saturation", 0, "saturation amount")
	curve := fs.String("curve", "", "curve outputs, key=value pairs")
	rescale := fs.Bool("rescale", false, "resolve curve conflicts by rescaling instead of clamping")
	bands := fs.String("bands", "", "comma separated lightness bands restricting the curve")
	auto := fs.Bool("auto", false, "derive curve points from the image")
	mask := fs.String("mask", "", "write the mask of a stage instead of the image")
	preview := fs.Int("preview", 0, "downsample so the longer side fits")
	verbose := fs.Bool("v", false, "log stages")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	st := hdredit.DefaultState()
	if *paramsPath != "" {
		data, err := os.ReadFile(filepath.Clean(*paramsPath))
		if err != nil {
			return err
		}
		if st, err = hdredit.ParseState(data); err != nil {
			return err
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["ev"] {
		st.EV = *ev
	}
	if set["contrast"] {
		st.Contrast = *contrast
	}
	if set["saturation"] {
		st.Saturation = *saturation
	}
	if *curve != "" {
		ctrl, err := applyCurveFlag(st.Curve, *curve, *rescale)
		if err != nil {
			return err
		}
		st.Curve = ctrl
	}
	if *bands != "" {
		for _, name := range strings.Split(*bands, ",") {
			b, err := hdredit.ParseBand(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			st.Bands[b] = true
		}
	}
	if *mask != "" {
		if err := st.MaskSource.UnmarshalText([]byte(*mask)); err != nil {
			return err
		}
		st.Mask = true
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "hdredit: ", log.LstdFlags|log.Lmicroseconds)
	}
	last := time.Now()
	pipeline := hdredit.NewPipeline(func(o *hdredit.PipelineOptions) {
		o.OnStage = func(stage hdredit.Stage, out *hdredit.Image) {
			logger.Printf("%s done in %s (%dx%d)", stage, time.Since(last), out.Width, out.Height)
			last = time.Now()
		}
	})

	img, err := hdredit.DecodeImageFile(*inPath)
	if err != nil {
		return err
	}
	logger.Printf("loaded %s: %dx%d %s", *inPath, img.Width, img.Height, img.Gamut)

	ed := hdredit.NewEditor(func(o *hdredit.EditorOptions) {
		o.PreviewMaxSize = *preview
		o.Pipeline = pipeline
	})
	if _, err := ed.Load(img); err != nil {
		return err
	}
	last = time.Now()
	derived, err := ed.Update(func(s *hdredit.State) { *s = st })
	if err != nil {
		return err
	}
	if *auto {
		last = time.Now()
		if derived, err = ed.AutoCurve(); err != nil {
			return err
		}
		logger.Printf("auto curve: %v", ed.State().Curve.Outputs())
	}
	return hdredit.EncodeFile(*outPath, derived)
}

func runCurve(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("curve", flag.ContinueOnError)
	curve := fs.String("curve", "", "curve outputs, key=value pairs")
	rescale := fs.Bool("rescale", false, "resolve curve conflicts by rescaling instead of clamping")
	step := fs.Float64("step", 1, "sampling step of the printed curve")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *step <= 0 {
		return errors.New("step must be positive")
	}
	ctrl, err := applyCurveFlag(hdredit.DefaultControl(), *curve, *rescale)
	if err != nil {
		return err
	}
	cv, err := hdredit.NewCurve(ctrl)
	if err != nil {
		return err
	}
	var samples [][2]float64
	for x := 0.0; x <= 100; x += *step {
		samples = append(samples, [2]float64{x, cv.MapValue(x)})
	}
	return writeJSON(w, struct {
		Control hdredit.Control `json:"control"`
		Samples [][2]float64    `json:"samples"`
	}{Control: ctrl, Samples: samples})
}

// applyCurveFlag sets "key=value,key=value" pairs in order through Curve.SetPoint.
func applyCurveFlag(base hdredit.Control, pairs string, rescale bool) (hdredit.Control, error) {
	cv, err := hdredit.NewCurve(base)
	if err != nil {
		return base, err
	}
	if strings.TrimSpace(pairs) == "" {
		return cv.Control(), nil
	}
	for _, pair := range strings.Split(pairs, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return base, fmt.Errorf("invalid curve pair %q", pair)
		}
		key, err := hdredit.ParseCurveKey(k)
		if err != nil {
			return base, err
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return base, fmt.Errorf("curve %s: %w", key, err)
		}
		if err := cv.SetPoint(key, val, rescale); err != nil {
			return base, err
		}
	}
	return cv.Control(), nil
}

func writeJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
