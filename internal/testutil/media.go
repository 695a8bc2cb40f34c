package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// PNG encodes a w x h image whose pixels are produced by px.
func PNG(t *testing.T, w, h int, px func(x, y int) color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, px(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// DistinctColors returns an image generator painting pixel i (raster order)
// with color i mod n, for n distinct opaque colors.
func DistinctColors(w, n int) func(x, y int) color.NRGBA {
	return func(x, y int) color.NRGBA {
		i := (y*w + x) % n
		return color.NRGBA{R: byte(i), G: byte(i >> 8), B: 0x40, A: 0xff}
	}
}

// WAV encodes interleaved integer PCM samples as a canonical RIFF/WAVE file.
// bits must be 8 or 16 or 24; 8-bit samples are stored unsigned.
func WAV(sampleRate uint32, channels uint16, bits uint16, samples []int) []byte {
	bytesPerSample := int(bits / 8)
	data := make([]byte, 0, len(samples)*bytesPerSample)
	for _, s := range samples {
		switch bits {
		case 8:
			data = append(data, byte(s+128))
		case 16:
			data = binary.LittleEndian.AppendUint16(data, uint16(int16(s)))
		case 24:
			v := uint32(int32(s))
			data = append(data, byte(v), byte(v>>8), byte(v>>16))
		}
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1)) // PCM
	_ = binary.Write(&buf, le, channels)
	_ = binary.Write(&buf, le, sampleRate)
	blockAlign := channels * bits / 8
	_ = binary.Write(&buf, le, sampleRate*uint32(blockAlign))
	_ = binary.Write(&buf, le, blockAlign)
	_ = binary.Write(&buf, le, bits)
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

// MP3 returns frames of silent MPEG-1 Layer III audio at 128 kbit/s.
// sampleRate must be 44100, 48000 or 32000. A non-empty id3 payload is
// wrapped in an ID3v2 tag in front of the first frame.
func MP3(sampleRate int, mono bool, frames int, id3 []byte) []byte {
	rateIndex := map[int]byte{44100: 0, 48000: 1, 32000: 2}[sampleRate]
	frameSize := 144 * 128000 / sampleRate
	header := []byte{0xFF, 0xFB, 0x90 | rateIndex<<2, 0x00}
	if mono {
		header[3] = 0xC0
	}

	var buf bytes.Buffer
	if len(id3) > 0 {
		n := len(id3)
		buf.WriteString("ID3")
		buf.Write([]byte{3, 0, 0, byte(n >> 21 & 0x7F), byte(n >> 14 & 0x7F), byte(n >> 7 & 0x7F), byte(n & 0x7F)})
		buf.Write(id3)
	}
	for i := 0; i < frames; i++ {
		buf.Write(header)
		// Zero side information and main data decode to silence.
		buf.Write(make([]byte, frameSize-len(header)))
	}
	return buf.Bytes()
}
