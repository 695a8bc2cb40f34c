package assets

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	_ "image/png" // register decoder

	"github.com/firefly-zero/firefly-cli/rom"
)

// ImageMagic is the first byte of an encoded image.
const ImageMagic = 0x21

// NoTransparency marks an image without a transparent palette entry.
const NoTransparency = 0xFFFF

const imageHeaderSize = 10

// ImageHeader is the fixed prefix of an encoded image.
type ImageHeader struct {
	BPP         uint8
	Width       uint16
	Height      uint16
	PaletteLen  uint16
	Transparent uint16
}

// TranscodeImage converts a PNG or GIF into the indexed device format.
//
// With a nil palette the image keeps its own colors: the palette is built
// from the distinct colors in order of first appearance. Otherwise every
// pixel snaps to the nearest color of palette.
func TranscodeImage(raw []byte, palette Palette, limits Limits) ([]byte, error) {
	limits = limits.normalize()
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, rom.Wrap(rom.KindUnsupportedAssetFormat, "", "decode image", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "image is empty")
	}
	if w > limits.MaxWidth || h > limits.MaxHeight {
		return nil, rom.Errorf(rom.KindAssetTooLarge, "", "image is %dx%d, limit is %dx%d", w, h, limits.MaxWidth, limits.MaxHeight)
	}

	px := make([]Color, w*h)
	opaque := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*w + x
			px[i] = Color{R: c.R, G: c.G, B: c.B}
			opaque[i] = c.A >= 128
		}
	}

	var q quantized
	if palette == nil {
		q, err = adaptive(px, opaque, limits.MaxColors)
	} else {
		q, err = snap(px, opaque, palette, limits.MaxColors)
	}
	if err != nil {
		return nil, err
	}
	return encodeImage(w, h, q), nil
}

type quantized struct {
	palette     Palette
	transparent int // -1 for none
	indices     []int
}

func adaptive(px []Color, opaque []bool, maxColors int) (quantized, error) {
	q := quantized{transparent: -1, indices: make([]int, len(px))}
	seen := map[Color]int{}
	for i, c := range px {
		if !opaque[i] {
			if q.transparent < 0 {
				q.transparent = len(q.palette)
				q.palette = append(q.palette, Color{})
			}
			q.indices[i] = q.transparent
			continue
		}
		idx, ok := seen[c]
		if !ok {
			idx = len(q.palette)
			seen[c] = idx
			q.palette = append(q.palette, c)
		}
		q.indices[i] = idx
		if len(q.palette) > maxColors {
			break
		}
	}
	if len(q.palette) > maxColors {
		return quantized{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "image needs more than %d colors", maxColors)
	}
	return q, nil
}

func snap(px []Color, opaque []bool, palette Palette, maxColors int) (quantized, error) {
	if len(palette) == 0 {
		return quantized{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "palette is empty")
	}
	if len(palette) > maxColors {
		return quantized{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "palette has %d colors, limit is %d", len(palette), maxColors)
	}
	q := quantized{
		palette:     append(Palette(nil), palette...),
		transparent: -1,
		indices:     make([]int, len(px)),
	}
	used := make([]bool, len(palette))
	cache := map[Color]int{}
	anyTransparent := false
	for i, c := range px {
		if !opaque[i] {
			anyTransparent = true
			continue
		}
		idx, ok := cache[c]
		if !ok {
			idx = palette.nearest(c)
			cache[c] = idx
		}
		used[idx] = true
		q.indices[i] = idx
	}
	if !anyTransparent {
		return q, nil
	}
	for i, u := range used {
		if !u {
			q.transparent = i
			break
		}
	}
	if q.transparent < 0 {
		return quantized{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "image uses every palette color and has transparent pixels")
	}
	for i := range px {
		if !opaque[i] {
			q.indices[i] = q.transparent
		}
	}
	return q, nil
}

func bitsPerPixel(colors int) int {
	switch {
	case colors <= 2:
		return 1
	case colors <= 4:
		return 2
	case colors <= 16:
		return 4
	default:
		return 8
	}
}

func encodeImage(w, h int, q quantized) []byte {
	bpp := bitsPerPixel(len(q.palette))
	rowBytes := (w*bpp + 7) / 8
	out := make([]byte, 0, imageHeaderSize+3*len(q.palette)+rowBytes*h)

	transparent := uint16(NoTransparency)
	if q.transparent >= 0 {
		transparent = uint16(q.transparent)
	}
	out = append(out, ImageMagic, byte(bpp))
	out = binary.LittleEndian.AppendUint16(out, uint16(w))
	out = binary.LittleEndian.AppendUint16(out, uint16(h))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(q.palette)))
	out = binary.LittleEndian.AppendUint16(out, transparent)
	for _, c := range q.palette {
		out = append(out, c.R, c.G, c.B)
	}

	perByte := 8 / bpp
	for y := 0; y < h; y++ {
		row := make([]byte, rowBytes)
		for x := 0; x < w; x++ {
			shift := uint(8 - bpp*(x%perByte+1))
			row[x/perByte] |= byte(q.indices[y*w+x]) << shift
		}
		out = append(out, row...)
	}
	return out
}

// DecodeImageHeader parses the header of an encoded image and checks that
// the payload length matches it.
func DecodeImageHeader(b []byte) (ImageHeader, error) {
	if len(b) < imageHeaderSize || b[0] != ImageMagic {
		return ImageHeader{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "not an encoded image")
	}
	le := binary.LittleEndian
	hdr := ImageHeader{
		BPP:         b[1],
		Width:       le.Uint16(b[2:]),
		Height:      le.Uint16(b[4:]),
		PaletteLen:  le.Uint16(b[6:]),
		Transparent: le.Uint16(b[8:]),
	}
	switch hdr.BPP {
	case 1, 2, 4, 8:
	default:
		return ImageHeader{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "invalid bits per pixel %d", hdr.BPP)
	}
	rowBytes := (int(hdr.Width)*int(hdr.BPP) + 7) / 8
	want := imageHeaderSize + 3*int(hdr.PaletteLen) + rowBytes*int(hdr.Height)
	if len(b) != want {
		return ImageHeader{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "encoded image is %d bytes, header implies %d", len(b), want)
	}
	return hdr, nil
}
