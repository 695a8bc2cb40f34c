package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-zero/firefly-cli/assets"
	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
)

const sampleProject = `
app_id = "snake"
author_id = "lux"
app_name = "Snake"
author_name = "Lux"
version = 4
launcher = true
capabilities = ["net"]
palette = "retro"
lang = "go"

[palettes.retro]
1 = 0x000000
2 = 0xffffff

[files.hero]
path = "img/hero.png"

[files.logo]
path = "img/logo.png"
palette = "adaptive"

[files.jump]
path = "sfx/jump.wav"

[files.font]
path = "fonts/eg_6x9.fff"
kind = "image"
copy = true

[badges.2]
name = "Long snake"
steps = 10

[badges.1]
name = "First bite"
xp = 5

[boards.1]
name = "Length"
min = 0
`

func TestDecodeProject_Sample(t *testing.T) {
	p, err := DecodeProject([]byte(sampleProject))
	if err != nil {
		t.Fatalf("DecodeProject: %v", err)
	}
	bp, err := p.BuildProject("/src/snake")
	if err != nil {
		t.Fatalf("BuildProject: %v", err)
	}

	if bp.Manifest.ID != (rom.AppID{Author: "lux", App: "snake"}) || !bp.Manifest.Launcher || bp.Manifest.Version != 4 {
		t.Fatalf("unexpected manifest %+v", bp.Manifest)
	}
	if bp.Module != DefaultModule {
		t.Fatalf("unexpected module %q", bp.Module)
	}

	if len(bp.Files) != 4 {
		t.Fatalf("unexpected files %+v", bp.Files)
	}
	byName := map[string]int{}
	for i, f := range bp.Files {
		byName[f.Name] = i
	}
	font := bp.Files[byName["font"]]
	if font.Kind != rom.AssetRaw {
		t.Fatalf("copied file must be raw, got %s", font.Kind)
	}
	hero := bp.Files[byName["hero"]]
	if hero.Kind != rom.AssetImage || len(hero.Palette) != 2 {
		t.Fatalf("hero must use the custom palette: %+v", hero)
	}
	if logo := bp.Files[byName["logo"]]; logo.Palette != nil {
		t.Fatalf("logo must be adaptive")
	}
	if jump := bp.Files[byName["jump"]]; jump.Kind != rom.AssetAudio {
		t.Fatalf("jump must be audio, got %s", jump.Kind)
	}

	if len(bp.Badges) != 2 || bp.Badges[0].Name != "First bite" || bp.Badges[1].Steps != 10 || bp.Badges[0].Steps != 1 {
		t.Fatalf("unexpected badges %+v", bp.Badges)
	}
	if bp.Badges[1].Position != 2 {
		t.Fatalf("badge position must default to its id")
	}
	if len(bp.Boards) != 1 || bp.Boards[0].Min != 0 || bp.Boards[0].Max != 32767 {
		t.Fatalf("unexpected boards %+v", bp.Boards)
	}
}

func TestDecodeProject_DefaultPalette(t *testing.T) {
	p, err := DecodeProject([]byte(`
app_id = "snake"
author_id = "lux"
app_name = "Snake"
author_name = "Lux"

[files.hero]
path = "hero.png"
`))
	if err != nil {
		t.Fatalf("DecodeProject: %v", err)
	}
	bp, err := p.BuildProject(".")
	if err != nil {
		t.Fatalf("BuildProject: %v", err)
	}
	want, _ := assets.Builtin(assets.DefaultPalette)
	if len(bp.Files[0].Palette) != len(want) {
		t.Fatalf("expected the default palette, got %d colors", len(bp.Files[0].Palette))
	}
}

func TestDecodeProject_Rejects(t *testing.T) {
	head := "app_id = \"snake\"\nauthor_id = \"lux\"\napp_name = \"Snake\"\nauthor_name = \"Lux\"\n"
	cases := map[string]string{
		"unknown field":   head + "colour = 1\n",
		"syntax":          head + "version = \n",
		"bad id":          "app_id = \"Snake\"\nauthor_id = \"lux\"\napp_name = \"S\"\nauthor_name = \"L\"\n",
		"unknown palette": head + "palette = \"nope\"\n",
		"bad kind":        head + "[files.a]\npath = \"a\"\nkind = \"video\"\n",
		"remote file":     head + "[files.a]\npath = \"a\"\nurl = \"https://example.com/a\"\n",
		"no path":         head + "[files.a]\nkind = \"raw\"\n",
		"badge gap":       head + "[badges.1]\nname = \"a\"\n[badges.3]\nname = \"b\"\n",
		"badge id":        head + "[badges.x]\nname = \"a\"\n",
		"palette ids":     head + "[palettes.p]\n1 = 0\n3 = 1\n",
	}
	for name, src := range cases {
		p, err := DecodeProject([]byte(src))
		if err == nil {
			_, err = p.BuildProject(".")
		}
		if !rom.IsKind(err, rom.KindSchemaViolation) {
			t.Fatalf("%s: expected SchemaViolation, got %v", name, err)
		}
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadProject(dir); !rom.IsKind(err, rom.KindIOFailure) {
		t.Fatalf("expected IOFailure, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(sampleProject), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bp, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if bp.Root != dir {
		t.Fatalf("unexpected root %q", bp.Root)
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	home := t.TempDir()
	s, err := LoadSettings(LoadOptions{Home: home})
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.VFS != filepath.Join(home, ".local", "share", "firefly") {
		t.Fatalf("unexpected VFS %q", s.VFS)
	}
	if s.KeysDir() != filepath.Join(s.VFS, "sys") {
		t.Fatalf("unexpected keys dir %q", s.KeysDir())
	}
	if alg, _ := s.HashAlg(); alg != pack.HashSHA256 {
		t.Fatalf("unexpected hash %v", alg)
	}
	if alg, _ := s.Alg(); alg != keys.AlgEd25519 {
		t.Fatalf("unexpected key alg %v", alg)
	}
	if !s.CreateKey || s.Validate {
		t.Fatalf("unexpected flags %+v", s)
	}
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(file, []byte("hash = \"sha3-256\"\nvfs = \"/from/file\"\nvalidate = true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("FIREFLY_VFS", "/from/env")
	t.Setenv("FIREFLY_KEY_ALG", "dilithium3")
	t.Setenv("FIREFLY_CREATE_KEY", "false")

	s, err := LoadSettings(LoadOptions{SettingsFile: file, Home: dir})
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.VFS != "/from/env" {
		t.Fatalf("environment must win over the file, got %q", s.VFS)
	}
	if alg, _ := s.HashAlg(); alg != pack.HashSHA3_256 {
		t.Fatalf("unexpected hash %v", alg)
	}
	if alg, _ := s.Alg(); alg != keys.AlgDilithium3 {
		t.Fatalf("unexpected key alg %v", alg)
	}
	if s.CreateKey || !s.Validate {
		t.Fatalf("unexpected flags %+v", s)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("FIREFLY_HASH", "md5")
	if _, err := LoadSettings(LoadOptions{Home: t.TempDir()}); err == nil {
		t.Fatalf("accepted an unknown hash")
	}
}
