package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/firefly-zero/firefly-cli/assets"
	"github.com/firefly-zero/firefly-cli/build"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

const (
	// ProjectFileName is the project file looked up in the project root.
	ProjectFileName = "firefly.toml"
	// DefaultModule is the module path used when the project names none.
	DefaultModule = "main.wasm"
	// AdaptivePalette keeps the colors of each image instead of snapping
	// them to a palette.
	AdaptivePalette = "adaptive"
)

// Project mirrors firefly.toml.
type Project struct {
	AppID      string `toml:"app_id"`
	AuthorID   string `toml:"author_id"`
	AppName    string `toml:"app_name"`
	AuthorName string `toml:"author_name"`
	Version    uint32 `toml:"version"`
	Launcher   bool   `toml:"launcher"`
	Sudo       bool   `toml:"sudo"`

	Capabilities    []string `toml:"capabilities"`
	Module          string   `toml:"module"`
	RequiredExports []string `toml:"required_exports"`

	// Palette is the default palette for images: a built-in name, a key of
	// Palettes or "adaptive". Empty selects sweetie16.
	Palette  string                      `toml:"palette"`
	Palettes map[string]map[string]int64 `toml:"palettes"`

	Files  map[string]FileConfig  `toml:"files"`
	Badges map[string]BadgeConfig `toml:"badges"`
	Boards map[string]BoardConfig `toml:"boards"`

	// Compilation settings are accepted so existing project files load,
	// but compiling is left to the language toolchain.
	Lang        string           `toml:"lang"`
	CompileArgs []string         `toml:"compile_args"`
	Cheats      map[string]int32 `toml:"cheats"`
}

// FileConfig declares one asset.
type FileConfig struct {
	Path string `toml:"path"`
	// Kind is raw, image or audio. Empty guesses from the extension.
	Kind string `toml:"kind"`
	// Copy stores the file as is, without transcoding.
	Copy    bool   `toml:"copy"`
	SHA256  string `toml:"sha256"`
	Palette string `toml:"palette"`
	URL     string `toml:"url"`
}

// BadgeConfig declares one badge. Table keys are badge ids from 1.
type BadgeConfig struct {
	Name     string  `toml:"name"`
	Descr    string  `toml:"descr"`
	Position *uint16 `toml:"position"`
	XP       uint8   `toml:"xp"`
	Hidden   bool    `toml:"hidden"`
	Steps    *uint16 `toml:"steps"`
}

// BoardConfig declares one scoreboard. Table keys are board ids from 1.
type BoardConfig struct {
	Name     string  `toml:"name"`
	Position *uint16 `toml:"position"`
	Min      *int16  `toml:"min"`
	Max      *int16  `toml:"max"`
	Asc      bool    `toml:"asc"`
	Time     bool    `toml:"time"`
	Decimals uint8   `toml:"decimals"`
}

// DecodeProject parses firefly.toml content. Unknown fields are errors.
func DecodeProject(data []byte) (*Project, error) {
	var p Project
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, rom.Wrap(rom.KindSchemaViolation, ProjectFileName, "unknown fields", errors.New(strict.String()))
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, rom.Wrap(rom.KindSchemaViolation, ProjectFileName, fmt.Sprintf("line %d column %d", row, col), err)
		}
		return nil, rom.Wrap(rom.KindSchemaViolation, ProjectFileName, "decode", err)
	}
	return &p, nil
}

// LoadProject reads dir/firefly.toml and turns it into a build project.
func LoadProject(dir string) (*build.Project, error) {
	path := filepath.Join(dir, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rom.IOError("read "+path, err)
	}
	p, err := DecodeProject(data)
	if err != nil {
		return nil, err
	}
	return p.BuildProject(dir)
}

// BuildProject resolves palettes, ids and defaults.
func (p *Project) BuildProject(root string) (*build.Project, error) {
	out := &build.Project{
		Root: root,
		Manifest: meta.Manifest{
			ID:           rom.AppID{Author: p.AuthorID, App: p.AppID},
			AppName:      p.AppName,
			AuthorName:   p.AuthorName,
			Version:      p.Version,
			Launcher:     p.Launcher,
			Sudo:         p.Sudo,
			Capabilities: p.Capabilities,
		},
		Module:          p.Module,
		RequiredExports: p.RequiredExports,
	}
	if out.Module == "" {
		out.Module = DefaultModule
	}
	if err := out.Manifest.ID.Validate(); err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, out.Manifest.ID.String(), "invalid app id", err)
	}

	palettes, err := p.palettes()
	if err != nil {
		return nil, err
	}
	if out.Files, err = p.files(palettes); err != nil {
		return nil, err
	}
	if out.Badges, err = p.badges(); err != nil {
		return nil, err
	}
	if out.Boards, err = p.boards(); err != nil {
		return nil, err
	}
	return out, nil
}

type paletteSet struct {
	custom   map[string]assets.Palette
	fallback string
}

func (p *Project) palettes() (*paletteSet, error) {
	set := &paletteSet{custom: map[string]assets.Palette{}, fallback: p.Palette}
	if set.fallback == "" {
		set.fallback = assets.DefaultPalette
	}
	for name, entries := range p.Palettes {
		pal, err := assets.ParsePalette(name, entries)
		if err != nil {
			return nil, err
		}
		set.custom[name] = pal
	}
	if _, err := set.resolve(""); err != nil {
		return nil, err
	}
	return set, nil
}

// resolve returns the palette called name, or the project default for an
// empty name. A nil palette means adaptive.
func (s *paletteSet) resolve(name string) (assets.Palette, error) {
	if name == "" {
		name = s.fallback
	}
	if name == AdaptivePalette {
		return nil, nil
	}
	if pal, ok := s.custom[name]; ok {
		return pal, nil
	}
	if pal, ok := assets.Builtin(name); ok {
		return pal, nil
	}
	return nil, rom.Errorf(rom.KindSchemaViolation, name, "unknown palette")
}

func (p *Project) files(palettes *paletteSet) ([]build.File, error) {
	names := make([]string, 0, len(p.Files))
	for name := range p.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]build.File, 0, len(names))
	for _, name := range names {
		fc := p.Files[name]
		if fc.URL != "" {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "remote files are not supported, download %s first", fc.URL)
		}
		if fc.Path == "" {
			return nil, rom.Errorf(rom.KindSchemaViolation, name, "path is required")
		}
		f := build.File{Name: name, Path: fc.Path, SHA256: fc.SHA256}
		switch {
		case fc.Copy:
			f.Kind = rom.AssetRaw
		case fc.Kind == "":
			f.Kind = assets.KindForPath(fc.Path)
		default:
			kind, err := rom.ParseAssetKind(fc.Kind)
			if err != nil {
				return nil, rom.WithSubject(err, name)
			}
			f.Kind = kind
		}
		if f.Kind == rom.AssetImage {
			pal, err := palettes.resolve(fc.Palette)
			if err != nil {
				return nil, err
			}
			f.Palette = pal
		}
		out = append(out, f)
	}
	return out, nil
}

// orderedIDs checks that table keys are the ids 1..n and returns them in
// order.
func orderedIDs(field string, keys []string) ([]string, error) {
	byID := make(map[int]string, len(keys))
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil || id < 1 || strconv.Itoa(id) != k {
			return nil, rom.Errorf(rom.KindSchemaViolation, field+"."+k, "ids must be positive integers")
		}
		byID[id] = k
	}
	out := make([]string, 0, len(keys))
	for id := 1; id <= len(keys); id++ {
		k, ok := byID[id]
		if !ok {
			return nil, rom.Errorf(rom.KindSchemaViolation, field, "ids must be consecutive from 1, %d is missing", id)
		}
		out = append(out, k)
	}
	return out, nil
}

func (p *Project) badges() (meta.Badges, error) {
	keys := make([]string, 0, len(p.Badges))
	for k := range p.Badges {
		keys = append(keys, k)
	}
	ids, err := orderedIDs("badges", keys)
	if err != nil {
		return nil, err
	}
	var out meta.Badges
	for i, k := range ids {
		bc := p.Badges[k]
		b := meta.Badge{
			Position: uint16(i + 1),
			XP:       bc.XP,
			Hidden:   bc.Hidden,
			Steps:    1,
			Name:     bc.Name,
			Descr:    bc.Descr,
		}
		if bc.Position != nil {
			b.Position = *bc.Position
		}
		if bc.Steps != nil {
			b.Steps = *bc.Steps
		}
		out = append(out, b)
	}
	return out, nil
}

func (p *Project) boards() (meta.Boards, error) {
	keys := make([]string, 0, len(p.Boards))
	for k := range p.Boards {
		keys = append(keys, k)
	}
	ids, err := orderedIDs("boards", keys)
	if err != nil {
		return nil, err
	}
	var out meta.Boards
	for i, k := range ids {
		bc := p.Boards[k]
		b := meta.Board{
			Position: uint16(i + 1),
			Min:      -32768,
			Max:      32767,
			Asc:      bc.Asc,
			Time:     bc.Time,
			Decimals: bc.Decimals,
			Name:     bc.Name,
		}
		if bc.Position != nil {
			b.Position = *bc.Position
		}
		if bc.Min != nil {
			b.Min = *bc.Min
		}
		if bc.Max != nil {
			b.Max = *bc.Max
		}
		out = append(out, b)
	}
	return out, nil
}
