package hdredit

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"path/filepath"
	"testing"
)

func iccSegment(seq, total byte, payload string) []byte {
	body := append(append([]byte{}, iccSig...), seq, total)
	body = append(body, payload...)
	seg := []byte{markerStart, markerAPP2, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(body)+2))
	return append(seg, body...)
}

// withSegments inserts raw segments right after SOI.
func withSegments(jpegData []byte, segs ...[]byte) []byte {
	out := append([]byte{}, jpegData[:2]...)
	for _, s := range segs {
		out = append(out, s...)
	}
	return append(out, jpegData[2:]...)
}

func TestCodecPNGRoundTrip(t *testing.T) {
	img := NewImage(5, 2, GamutBT709, RangeSDR)
	for i := range img.Pix {
		img.Pix[i] = float32(i) / float32(len(img.Pix)-1)
	}

	for _, enc := range []Encoding{EncodingPNG, EncodingTIFF} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, enc); err != nil {
			t.Fatalf("encode %d: %v", enc, err)
		}
		got, err := DecodeImage(buf.Bytes())
		if err != nil {
			t.Fatalf("decode %d: %v", enc, err)
		}
		if got.Width != 5 || got.Height != 2 || got.Gamut != GamutBT709 {
			t.Fatalf("decoded %dx%d %s", got.Width, got.Height, got.Gamut)
		}
		if d := maxAbsDiff(got.Pix, img.Pix); d > 1e-3 {
			t.Fatalf("encoding %d round trip differs by %g", enc, d)
		}
	}
}

func TestCodecFile(t *testing.T) {
	img := NewImage(3, 3, GamutBT709, RangeSDR)
	img.Set(1, 1, 0.5, 0.25, 1)
	path := filepath.Join(t.TempDir(), "out.tif")
	if err := EncodeFile(path, img); err != nil {
		t.Fatalf("encode file: %v", err)
	}
	got, err := DecodeImageFile(path)
	if err != nil {
		t.Fatalf("decode file: %v", err)
	}
	r, g, b := got.At(1, 1)
	if math.Abs(float64(r)-0.5) > 1e-3 || math.Abs(float64(g)-0.25) > 1e-3 || math.Abs(float64(b)-1) > 1e-3 {
		t.Fatalf("pixel %g %g %g", r, g, b)
	}

	if err := EncodeFile(filepath.Join(t.TempDir(), "out.bmp"), img); err == nil {
		t.Fatalf("unsupported extension accepted")
	}
}

func TestCodecJPEGICCGamut(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}

	plain, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plain.Gamut != GamutBT709 {
		t.Fatalf("gamut %s without profile", plain.Gamut)
	}

	// Profile split in two chunks, stored out of order.
	data := withSegments(buf.Bytes(),
		iccSegment(2, 2, " P3 v4"),
		iccSegment(1, 2, "desc Display"),
	)
	img, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("decode with profile: %v", err)
	}
	if img.Gamut != GamutDisplayP3 {
		t.Fatalf("gamut %s, want %s", img.Gamut, GamutDisplayP3)
	}

	app2, err := extractAPP2(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := string(collectICCProfile(app2)); got != "desc Display P3 v4" {
		t.Fatalf("profile %q", got)
	}
}

func TestExtractAPP2Errors(t *testing.T) {
	if _, err := extractAPP2([]byte{0x89, 'P', 'N', 'G'}); err == nil {
		t.Fatalf("non-JPEG accepted")
	}
	bad := []byte{markerStart, markerSOI, markerStart, markerAPP2, 0x40, 0x00, 1, 2}
	if _, err := extractAPP2(bad); err == nil {
		t.Fatalf("overlong segment accepted")
	}
}

func TestGamutFromICCProfile(t *testing.T) {
	for _, tc := range []struct {
		desc string
		want ColorGamut
	}{
		{"sRGB IEC61966-2.1", GamutBT709},
		{"DCI-P3 D65", GamutDisplayP3},
		{"ITU-R BT.2020", GamutBT2100},
	} {
		if got := gamutFromICCProfile([]byte(tc.desc)); got != tc.want {
			t.Fatalf("%q: got %s, want %s", tc.desc, got, tc.want)
		}
	}
}
