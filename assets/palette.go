package assets

import (
	"sort"
	"strconv"

	"github.com/firefly-zero/firefly-cli/rom"
)

// Color is an opaque 24-bit RGB color.
type Color struct {
	R, G, B uint8
}

// Hex returns the 0xRRGGBB value of c.
func (c Color) Hex() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// RGB builds a Color from a 0xRRGGBB value.
func RGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Palette is an ordered list of colors; a pixel's index is its position.
type Palette []Color

// MaxPaletteEntries bounds a palette declared in project config.
const MaxPaletteEntries = 16

// DefaultPalette is used when the project config names no palette.
const DefaultPalette = "sweetie16"

var builtins = map[string]Palette{
	"sweetie16": hexPalette(
		0x1a1c2c, 0x5d275d, 0xb13e53, 0xef7d57, 0xffcd75, 0xa7f070, 0x38b764, 0x257179,
		0x29366f, 0x3b5dc9, 0x41a6f6, 0x73eff7, 0xf4f4f4, 0x94b0c2, 0x566c86, 0x333c57,
	),
	"pico8": hexPalette(
		0x000000, 0x1d2b53, 0x7e2553, 0x008751, 0xab5236, 0x5f574f, 0xc2c3c7, 0xfff1e8,
		0xff004d, 0xffa300, 0xffec27, 0x00e436, 0x29adff, 0x83769c, 0xff77a8, 0xffccaa,
	),
	"gameboy": hexPalette(0x332c50, 0x46878f, 0x94e344, 0xe2f3e4),
}

func hexPalette(values ...uint32) Palette {
	p := make(Palette, len(values))
	for i, v := range values {
		p[i] = RGB(v)
	}
	return p
}

// Builtin returns a copy of a named built-in palette.
func Builtin(name string) (Palette, bool) {
	p, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return append(Palette(nil), p...), true
}

// BuiltinNames lists the built-in palettes in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePalette converts a custom palette declaration into a Palette.
//
// Keys are color ids "1".."n", consecutive and starting at 1, with 2 to 16
// entries. Values are 0xRRGGBB.
func ParsePalette(name string, entries map[string]int64) (Palette, error) {
	if len(entries) < 2 {
		return nil, rom.Errorf(rom.KindSchemaViolation, name, "palette must have at least 2 colors")
	}
	if len(entries) > MaxPaletteEntries {
		return nil, rom.Errorf(rom.KindSchemaViolation, name, "palette must have at most %d colors", MaxPaletteEntries)
	}
	p := make(Palette, len(entries))
	seen := make([]bool, len(entries))
	for key, value := range entries {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "color id %q is not a number", key)
		}
		if id < 1 || id > len(entries) {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "color ids must be consecutive and start at 1, found %d", id)
		}
		if seen[id-1] {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "color id %d is declared twice", id)
		}
		if value < 0 || value > 0xFFFFFF {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "color %d has invalid value %#x", id, value)
		}
		seen[id-1] = true
		p[id-1] = RGB(uint32(value))
	}
	return p, nil
}

// nearest returns the index of the palette color closest to c by squared RGB
// distance. Ties go to the lowest index.
func (p Palette) nearest(c Color) int {
	best, bestDist := 0, -1
	for i, pc := range p {
		dr := int(c.R) - int(pc.R)
		dg := int(c.G) - int(pc.G)
		db := int(c.B) - int(pc.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
