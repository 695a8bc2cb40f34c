// Package assets converts images and audio into the fixed layouts the device
// reads without parsing.
package assets

import (
	"context"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-zero/firefly-cli/rom"
)

// Limits are the device constraints an asset must satisfy.
type Limits struct {
	MaxWidth   int
	MaxHeight  int
	MaxColors  int
	SampleRate int
	Channels   []int
	// MaxSize bounds every encoded asset in bytes.
	MaxSize int
}

// DefaultLimits returns the limits of the device.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:   1024,
		MaxHeight:  1024,
		MaxColors:  256,
		SampleRate: 44100,
		Channels:   []int{1, 2},
		MaxSize:    rom.MaxMemberSize,
	}
}

func (l Limits) checkAudio(rate, channels int) error {
	if l.SampleRate <= 0 || l.SampleRate > math.MaxUint16 {
		return rom.Errorf(rom.KindUnsupportedAssetFormat, "", "sample rate limit %d Hz does not fit the audio header", l.SampleRate)
	}
	if rate != l.SampleRate {
		return rom.Errorf(rom.KindUnsupportedAssetFormat, "", "sample rate is %d Hz, must be %d Hz", rate, l.SampleRate)
	}
	if !slices.Contains(l.Channels, channels) {
		return rom.Errorf(rom.KindUnsupportedAssetFormat, "", "%d channels are not supported, use one of %v", channels, l.Channels)
	}
	return nil
}

// normalize clamps values the encoded formats cannot represent.
func (l Limits) normalize() Limits {
	l.MaxWidth = min(l.MaxWidth, 0xFFFF)
	l.MaxHeight = min(l.MaxHeight, 0xFFFF)
	l.MaxColors = min(l.MaxColors, 256)
	if l.MaxSize <= 0 {
		l.MaxSize = rom.MaxMemberSize
	}
	return l
}

// Source is one asset as declared by the project.
type Source struct {
	// Name is the member name inside the ROM.
	Name string
	Kind rom.AssetKind
	Data []byte
	// Palette applies to images. Nil keeps the image's own colors.
	Palette Palette
}

// Encoded is a transcoded asset ready to be packaged.
type Encoded struct {
	Name string
	Kind rom.AssetKind
	Data []byte
}

// Transcode converts one source. Raw sources are copied as is.
//
// Errors carry the source name as their subject.
func Transcode(src Source, limits Limits) (Encoded, error) {
	limits = limits.normalize()
	if err := validateName(src.Name); err != nil {
		return Encoded{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind {
	case rom.AssetImage:
		data, err = TranscodeImage(src.Data, src.Palette, limits)
	case rom.AssetAudio:
		data, err = TranscodeAudio(src.Data, limits)
	case rom.AssetRaw:
		data = slices.Clone(src.Data)
	default:
		err = rom.Errorf(rom.KindUnsupportedAssetFormat, "", "unknown asset kind %s", src.Kind)
	}
	if err != nil {
		return Encoded{}, rom.WithSubject(err, src.Name)
	}
	if len(data) == 0 {
		return Encoded{}, rom.Errorf(rom.KindUnsupportedAssetFormat, src.Name, "asset is empty")
	}
	if len(data) > limits.MaxSize {
		return Encoded{}, rom.Errorf(rom.KindAssetTooLarge, src.Name, "encoded asset is %d bytes, limit is %d", len(data), limits.MaxSize)
	}
	return Encoded{Name: src.Name, Kind: src.Kind, Data: data}, nil
}

func validateName(name string) error {
	if err := rom.ValidateMemberName(name); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, name, "invalid asset name", err)
	}
	if rom.IsReserved(name) {
		return rom.Errorf(rom.KindSchemaViolation, name, "asset names cannot start with an underscore")
	}
	return nil
}

// TranscodeAll converts every source concurrently.
//
// Results are in input order. The first failure cancels the remaining work
// and is returned.
func TranscodeAll(ctx context.Context, sources []Source, limits Limits) ([]Encoded, error) {
	out := make([]Encoded, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := Transcode(src, limits)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// KindForPath guesses the asset kind from a file extension. Unknown
// extensions are copied as raw data.
func KindForPath(path string) rom.AssetKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".gif":
		return rom.AssetImage
	case ".wav", ".mp3":
		return rom.AssetAudio
	default:
		return rom.AssetRaw
	}
}
