package hdredit

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const exrMagic = 20000630

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// exrZipLines is the scanline count of one ZIP block.
const exrZipLines = 16

var errEXRTruncated = errors.New("exr: truncated")

// IsEXR reports whether data starts with the OpenEXR magic number.
func IsEXR(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == exrMagic
}

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
}

func (c exrChannel) bytesPerSample() int {
	if c.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

// slot returns the RGB index a channel feeds, 3 for luminance, -1 for channels not used.
func (c exrChannel) slot() int {
	switch strings.ToUpper(c.name) {
	case "R":
		return 0
	case "G":
		return 1
	case "B":
		return 2
	case "Y":
		return 3
	default:
		return -1
	}
}

type exrHeader struct {
	channels    []exrChannel
	x0, y0      int32
	x1, y1      int32
	compression byte
}

func (h exrHeader) width() int { return int(h.x1-h.x0) + 1 }
func (h exrHeader) height() int { return int(h.y1-h.y0) + 1 }

func (h exrHeader) blockLines() int {
	if h.compression == exrCompressionZip {
		return exrZipLines
	}
	return 1
}

func (h exrHeader) lineBytes() int {
	n := 0
	for _, c := range h.channels {
		n += h.width() * c.bytesPerSample()
	}
	return n
}

// exrReader is a little-endian cursor over an EXR file.
type exrReader struct {
	data []byte
	pos  int
}

func (r *exrReader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, errEXRTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *exrReader) cstring() (string, error) {
	i := bytes.IndexByte(r.data[r.pos:], 0)
	if i < 0 {
		return "", errEXRTruncated
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}

func (r *exrReader) u32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *exrReader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *exrReader) u64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func readEXRHeader(r *exrReader) (exrHeader, error) {
	h := exrHeader{compression: exrCompressionNone}
	magic, err := r.u32()
	if err != nil {
		return h, err
	}
	if magic != exrMagic {
		return h, errors.New("exr: bad magic")
	}
	version, err := r.u32()
	if err != nil {
		return h, err
	}
	// Tiled, deep and multipart flags.
	if version&0x00000e00 != 0 {
		return h, fmt.Errorf("exr: unsupported file flags %#x", version&^0xff)
	}

	var hasWindow bool
	for {
		name, err := r.cstring()
		if err != nil {
			return h, err
		}
		if name == "" {
			break
		}
		typ, err := r.cstring()
		if err != nil {
			return h, err
		}
		size, err := r.i32()
		if err != nil {
			return h, err
		}
		payload, err := r.next(int(size))
		if err != nil {
			return h, err
		}

		switch {
		case name == "channels" && typ == "chlist":
			if h.channels, err = parseEXRChannels(payload); err != nil {
				return h, err
			}
		case name == "dataWindow" && typ == "box2i" && len(payload) == 16:
			h.x0 = int32(binary.LittleEndian.Uint32(payload[0:]))
			h.y0 = int32(binary.LittleEndian.Uint32(payload[4:]))
			h.x1 = int32(binary.LittleEndian.Uint32(payload[8:]))
			h.y1 = int32(binary.LittleEndian.Uint32(payload[12:]))
			hasWindow = true
		case name == "compression" && len(payload) == 1:
			h.compression = payload[0]
		case name == "tiles":
			return h, errors.New("exr: tiled images are not supported")
		}
	}

	switch {
	case len(h.channels) == 0:
		return h, errors.New("exr: no channels")
	case !hasWindow:
		return h, errors.New("exr: no data window")
	case h.width() <= 0 || h.height() <= 0:
		return h, fmt.Errorf("exr: invalid data window %dx%d", h.width(), h.height())
	}
	switch h.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
	default:
		return h, fmt.Errorf("exr: unsupported compression %d", h.compression)
	}
	var color bool
	for _, c := range h.channels {
		if c.xSampling != 1 || c.ySampling != 1 {
			return h, fmt.Errorf("exr: subsampled channel %q", c.name)
		}
		color = color || c.slot() >= 0
	}
	if !color {
		return h, errors.New("exr: no R, G, B or Y channel")
	}
	return h, nil
}

func parseEXRChannels(payload []byte) ([]exrChannel, error) {
	r := &exrReader{data: payload}
	var channels []exrChannel
	for {
		name, err := r.cstring()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		// pixel type, pLinear + 3 reserved bytes, x and y sampling.
		b, err := r.next(16)
		if err != nil {
			return nil, err
		}
		c := exrChannel{
			name:      name,
			pixelType: int32(binary.LittleEndian.Uint32(b[0:])),
			xSampling: int32(binary.LittleEndian.Uint32(b[8:])),
			ySampling: int32(binary.LittleEndian.Uint32(b[12:])),
		}
		if c.pixelType < exrPixelUint || c.pixelType > exrPixelFloat {
			return nil, fmt.Errorf("exr: channel %q has unknown pixel type %d", name, c.pixelType)
		}
		channels = append(channels, c)
	}
}

// DecodeEXR decodes a scanline OpenEXR file into an HDR Image with BT.709 primaries.
// Uncompressed, ZIPS and ZIP blocks with half, float or uint channels are supported.
func DecodeEXR(data []byte) (*Image, error) {
	r := &exrReader{data: data}
	h, err := readEXRHeader(r)
	if err != nil {
		return nil, err
	}

	w, ht, lines := h.width(), h.height(), h.blockLines()
	offsets := make([]uint64, (ht+lines-1)/lines)
	for i := range offsets {
		if offsets[i], err = r.u64(); err != nil {
			return nil, err
		}
	}

	img := NewImage(w, ht, GamutBT709, RangeHDR)
	for _, off := range offsets {
		if off == 0 || off >= uint64(len(data)) {
			return nil, fmt.Errorf("exr: bad block offset %d", off)
		}
		br := &exrReader{data: data, pos: int(off)}
		y, err := br.i32()
		if err != nil {
			return nil, err
		}
		size, err := br.i32()
		if err != nil {
			return nil, err
		}
		raw, err := br.next(int(size))
		if err != nil {
			return nil, err
		}

		row := int(y - h.y0)
		if row < 0 || row >= ht {
			return nil, fmt.Errorf("exr: block at line %d outside data window", y)
		}
		n := min(lines, ht-row)
		block, err := exrInflate(h.compression, raw, n*h.lineBytes())
		if err != nil {
			return nil, err
		}
		exrScatter(img, h, row, n, block)
	}
	return img, nil
}

func exrInflate(compression byte, raw []byte, want int) ([]byte, error) {
	if compression == exrCompressionNone || len(raw) == want {
		if len(raw) != want {
			return nil, fmt.Errorf("exr: block has %d bytes, want %d", len(raw), want)
		}
		return raw, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("exr: %w", err)
	}
	defer zr.Close()
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("exr: %w", err)
	}
	if len(buf) != want {
		return nil, fmt.Errorf("exr: block inflates to %d bytes, want %d", len(buf), want)
	}
	for i := 1; i < len(buf); i++ {
		buf[i] = buf[i-1] + buf[i] - 128
	}
	out := make([]byte, len(buf))
	half := (len(buf) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = buf[i/2]
		} else {
			out[i] = buf[half+i/2]
		}
	}
	return out, nil
}

// exrScatter copies n scanlines of per-channel planes into img starting at row.
func exrScatter(img *Image, h exrHeader, row, n int, block []byte) {
	w := h.width()
	for line := 0; line < n; line++ {
		y := row + line
		for _, c := range h.channels {
			size := c.bytesPerSample()
			plane := block[:w*size]
			block = block[w*size:]
			slot := c.slot()
			if slot < 0 {
				continue
			}
			for x := 0; x < w; x++ {
				var v float32
				switch c.pixelType {
				case exrPixelHalf:
					v = halfToFloat32(binary.LittleEndian.Uint16(plane[2*x:]))
				case exrPixelFloat:
					v = math.Float32frombits(binary.LittleEndian.Uint32(plane[4*x:]))
				default:
					v = float32(binary.LittleEndian.Uint32(plane[4*x:]))
				}
				i := (y*w + x) * 3
				if slot == 3 {
					img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
				} else {
					img.Pix[i+slot] = v
				}
			}
		}
	}
}

func halfToFloat32(h uint16) float32 {
	sign := float32(1)
	if h&0x8000 != 0 {
		sign = -1
	}
	exp := int(h>>10) & 0x1f
	mant := float64(h & 0x3ff)
	switch exp {
	case 0:
		return sign * float32(math.Ldexp(mant, -24))
	case 0x1f:
		if mant != 0 {
			return float32(math.NaN())
		}
		return sign * float32(math.Inf(1))
	default:
		return sign * float32(math.Ldexp(1024+mant, exp-25))
	}
}

// EncodeEXR writes img as a ZIP-compressed float OpenEXR file with BT.709 primaries.
// Values are written as is, so HDR highlights survive.
func EncodeEXR(w io.Writer, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	width, height := img.Width, img.Height

	var hdr bytes.Buffer
	le := binary.LittleEndian
	u32 := func(v uint32) { _ = binary.Write(&hdr, le, v) }
	attr := func(name, typ string, payload []byte) {
		hdr.WriteString(name)
		hdr.WriteByte(0)
		hdr.WriteString(typ)
		hdr.WriteByte(0)
		u32(uint32(len(payload)))
		hdr.Write(payload)
	}
	box := func(x0, y0, x1, y1 int32) []byte {
		var b bytes.Buffer
		_ = binary.Write(&b, le, [4]int32{x0, y0, x1, y1})
		return b.Bytes()
	}

	// Channels are stored in name order.
	names := []string{"B", "G", "R"}
	var chlist bytes.Buffer
	for _, n := range names {
		chlist.WriteString(n)
		chlist.WriteByte(0)
		_ = binary.Write(&chlist, le, [4]int32{exrPixelFloat, 0, 1, 1})
	}
	chlist.WriteByte(0)

	u32(exrMagic)
	u32(2)
	attr("channels", "chlist", chlist.Bytes())
	attr("compression", "compression", []byte{exrCompressionZip})
	attr("dataWindow", "box2i", box(0, 0, int32(width-1), int32(height-1)))
	attr("displayWindow", "box2i", box(0, 0, int32(width-1), int32(height-1)))
	attr("lineOrder", "lineOrder", []byte{0})
	attr("pixelAspectRatio", "float", le.AppendUint32(nil, math.Float32bits(1)))
	attr("screenWindowCenter", "v2f", make([]byte, 8))
	attr("screenWindowWidth", "float", le.AppendUint32(nil, math.Float32bits(1)))
	hdr.WriteByte(0)

	blocks := make([][]byte, 0, (height+exrZipLines-1)/exrZipLines)
	for y := 0; y < height; y += exrZipLines {
		n := min(exrZipLines, height-y)
		raw := make([]byte, 0, n*width*3*4)
		for line := y; line < y+n; line++ {
			for _, name := range names {
				slot := exrChannel{name: name}.slot()
				for x := 0; x < width; x++ {
					r, g, b := img.At(x, line)
					v := convertLinearGamut(rgb{r: r, g: g, b: b}, img.Gamut, GamutBT709)
					raw = le.AppendUint32(raw, math.Float32bits([3]float32{v.r, v.g, v.b}[slot]))
				}
			}
		}
		packed, err := exrDeflate(raw)
		if err != nil {
			return err
		}
		block := le.AppendUint32(nil, uint32(int32(y)))
		block = le.AppendUint32(block, uint32(len(packed)))
		blocks = append(blocks, append(block, packed...))
	}

	off := uint64(hdr.Len() + 8*len(blocks))
	for _, b := range blocks {
		_ = binary.Write(&hdr, le, off)
		off += uint64(len(b))
	}
	for _, b := range blocks {
		hdr.Write(b)
	}
	_, err := w.Write(hdr.Bytes())
	return err
}

// exrDeflate interleaves bytes, applies the delta predictor and compresses.
func exrDeflate(raw []byte) ([]byte, error) {
	half := (len(raw) + 1) / 2
	t := make([]byte, len(raw))
	for i, v := range raw {
		if i%2 == 0 {
			t[i/2] = v
		} else {
			t[half+i/2] = v
		}
	}
	for i := len(t) - 1; i > 0; i-- {
		t[i] = t[i] - t[i-1] + 128
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(t); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
