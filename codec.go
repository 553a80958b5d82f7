package hdredit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder.
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP2  = 0xE2
)

// DecodeImage decodes a PNG, JPEG or TIFF into a linear-light SDR Image, or an OpenEXR file
// into an HDR Image. The gamut is taken from an embedded JPEG ICC profile when present,
// BT.709 otherwise.
func DecodeImage(data []byte) (*Image, error) {
	if IsEXR(data) {
		return DecodeEXR(data)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("invalid image dimensions")
	}
	gamut := GamutBT709
	if format == "jpeg" {
		app2, err := extractAPP2(data)
		if err != nil {
			return nil, fmt.Errorf("read jpeg segments: %w", err)
		}
		if profile := collectICCProfile(app2); profile != nil {
			gamut = gamutFromICCProfile(profile)
		}
	}

	out := NewImage(b.Dx(), b.Dy(), gamut, RangeSDR)
	forEachRow(out.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < out.Width; x++ {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// RGBA returns 16-bit values in [0, 65535]
				out.Set(x, y,
					srgbInvOetf(float32(r)/65535.0),
					srgbInvOetf(float32(g)/65535.0),
					srgbInvOetf(float32(bl)/65535.0))
			}
		}
	})
	return out, nil
}

// DecodeImageFile reads and decodes an image file.
func DecodeImageFile(path string) (*Image, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// Encoding selects an output container.
type Encoding int

const (
	EncodingPNG Encoding = iota
	EncodingTIFF
	EncodingEXR
)

// EncodingFromPath picks the encoding from a file extension.
func EncodingFromPath(path string) (Encoding, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return EncodingPNG, nil
	case ".tif", ".tiff":
		return EncodingTIFF, nil
	case ".exr":
		return EncodingEXR, nil
	default:
		return 0, fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}
}

// Encode writes img as 16-bit sRGB for PNG and TIFF, or as linear float for EXR.
func Encode(w io.Writer, img *Image, enc Encoding) error {
	switch enc {
	case EncodingPNG:
		return png.Encode(w, ToDisplay(img))
	case EncodingTIFF:
		return tiff.Encode(w, ToDisplay(img), &tiff.Options{Compression: tiff.Deflate})
	case EncodingEXR:
		return EncodeEXR(w, img)
	default:
		return fmt.Errorf("unknown encoding %d", int(enc))
	}
}

// EncodeFile writes img to path, choosing the encoding by extension.
func EncodeFile(path string, img *Image) error {
	enc, err := EncodingFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, enc); err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), buf.Bytes(), 0o644)
}

// extractAPP2 returns APP2 payloads found before the first scan.
func extractAPP2(jpegData []byte) ([][]byte, error) {
	if len(jpegData) < 4 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.New("invalid JPEG")
	}
	var app2 [][]byte
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(jpegData) && jpegData[pos] == markerStart {
			pos++
		}
		if pos >= len(jpegData) {
			break
		}
		marker := jpegData[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if pos+1 >= len(jpegData) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos:]))
		if segLen < 2 || pos+segLen > len(jpegData) {
			return nil, errors.New("invalid segment length")
		}
		if marker == markerAPP2 {
			app2 = append(app2, jpegData[pos+2:pos+segLen])
		}
		pos += segLen
	}
	return app2, nil
}
