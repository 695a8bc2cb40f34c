package assets

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/firefly-zero/firefly-cli/rom"
)

// AudioMagic is the first byte of an encoded audio file.
const AudioMagic = 0x31

const (
	audioFlag16Bit  = 1 << 1
	audioFlagStereo = 1 << 2

	audioHeaderSize = 4
	wavFormatPCM    = 1
)

// AudioHeader is the fixed prefix of an encoded audio file.
type AudioHeader struct {
	Stereo     bool
	Is16Bit    bool
	SampleRate uint16
}

// TranscodeAudio converts a WAV or MP3 file into the raw device format.
//
// The sample rate must equal limits.SampleRate and the channel count must be
// one of limits.Channels. Nothing is resampled or downmixed.
func TranscodeAudio(raw []byte, limits Limits) ([]byte, error) {
	switch {
	case isWAV(raw):
		return transcodeWAV(raw, limits)
	case isMP3(raw):
		return transcodeMP3(raw, limits)
	default:
		return nil, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "audio is neither WAV nor MP3")
	}
}

func isWAV(raw []byte) bool {
	return len(raw) >= 12 && string(raw[:4]) == "RIFF" && string(raw[8:12]) == "WAVE"
}

func isMP3(raw []byte) bool {
	if len(raw) >= 3 && string(raw[:3]) == "ID3" {
		return true
	}
	// MPEG frame sync
	return len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0
}

func transcodeWAV(raw []byte, limits Limits) ([]byte, error) {
	d := wav.NewDecoder(bytes.NewReader(raw))
	if !d.IsValidFile() {
		return nil, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "invalid WAV file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "WAV audio format %d is not PCM", d.WavAudioFormat)
	}
	if d.BitDepth != 8 && d.BitDepth != 16 {
		return nil, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "%d-bit WAV is not supported, use 8 or 16 bits", d.BitDepth)
	}
	if err := limits.checkAudio(int(d.SampleRate), int(d.NumChans)); err != nil {
		return nil, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, rom.Wrap(rom.KindUnsupportedAssetFormat, "", "decode WAV samples", err)
	}
	out := audioHeader(nil, d.NumChans == 2, d.BitDepth == 16, d.SampleRate)
	return appendPCM(out, buf), nil
}

// appendPCM writes buf as signed little-endian samples of its source depth.
func appendPCM(dst []byte, buf *audio.IntBuffer) []byte {
	if buf.SourceBitDepth == 16 {
		for _, v := range buf.Data {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
		}
		return dst
	}
	// 8-bit WAV samples are unsigned.
	for _, v := range buf.Data {
		dst = append(dst, byte(int8(v-128)))
	}
	return dst
}

func transcodeMP3(raw []byte, limits Limits) ([]byte, error) {
	channels, err := mp3Channels(raw)
	if err != nil {
		return nil, err
	}
	d, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, rom.Wrap(rom.KindUnsupportedAssetFormat, "", "decode MP3", err)
	}
	if err := limits.checkAudio(d.SampleRate(), channels); err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, rom.Wrap(rom.KindUnsupportedAssetFormat, "", "decode MP3 samples", err)
	}
	// The decoder always yields 16-bit little-endian stereo; mono sources
	// come out with both channels equal, so keep the left one.
	if channels == 1 {
		mono := make([]byte, 0, len(pcm)/2)
		for i := 0; i+4 <= len(pcm); i += 4 {
			mono = append(mono, pcm[i], pcm[i+1])
		}
		pcm = mono
	}
	out := audioHeader(make([]byte, 0, audioHeaderSize+len(pcm)), channels == 2, true, uint32(d.SampleRate()))
	return append(out, pcm...), nil
}

// mp3Channels reads the channel mode of the first MPEG audio frame.
func mp3Channels(raw []byte) (int, error) {
	i := 0
	if len(raw) >= 10 && string(raw[:3]) == "ID3" {
		size := int(raw[6]&0x7F)<<21 | int(raw[7]&0x7F)<<14 | int(raw[8]&0x7F)<<7 | int(raw[9]&0x7F)
		i = 10 + size
		if raw[5]&0x10 != 0 {
			i += 10
		}
	}
	for ; i+4 <= len(raw); i++ {
		if validFrameHeader(raw[i:]) {
			if raw[i+3]>>6 == 3 {
				return 1, nil
			}
			return 2, nil
		}
	}
	return 0, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "no MPEG audio frame found")
}

func validFrameHeader(h []byte) bool {
	if h[0] != 0xFF || h[1]&0xE0 != 0xE0 {
		return false
	}
	version := (h[1] >> 3) & 3
	layer := (h[1] >> 1) & 3
	bitrate := h[2] >> 4
	rate := (h[2] >> 2) & 3
	return version != 1 && layer != 0 && bitrate != 0 && bitrate != 0xF && rate != 3
}

func audioHeader(dst []byte, stereo, is16 bool, rate uint32) []byte {
	var format byte
	if stereo {
		format |= audioFlagStereo
	}
	if is16 {
		format |= audioFlag16Bit
	}
	dst = append(dst, AudioMagic, format)
	return binary.LittleEndian.AppendUint16(dst, uint16(rate))
}

// DecodeAudioHeader parses the header of an encoded audio file.
func DecodeAudioHeader(b []byte) (AudioHeader, error) {
	if len(b) < audioHeaderSize || b[0] != AudioMagic {
		return AudioHeader{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "not an encoded audio file")
	}
	if b[1]&^(audioFlag16Bit|audioFlagStereo) != 0 {
		return AudioHeader{}, rom.Errorf(rom.KindUnsupportedAssetFormat, "", "unknown audio format flags %#x", b[1])
	}
	return AudioHeader{
		Stereo:     b[1]&audioFlagStereo != 0,
		Is16Bit:    b[1]&audioFlag16Bit != 0,
		SampleRate: binary.LittleEndian.Uint16(b[2:]),
	}, nil
}
