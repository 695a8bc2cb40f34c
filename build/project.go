package build

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/firefly-zero/firefly-cli/assets"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Project is everything a build needs to know about an app.
type Project struct {
	// Root is the project directory relative paths are resolved against.
	Root string
	// Manifest carries the app identity, names, version, flags and
	// capabilities. Entry points and the asset index are filled in by the
	// build.
	Manifest meta.Manifest
	// Module is the path of the compiled WebAssembly module.
	Module string
	Files  []File
	Badges meta.Badges
	Boards meta.Boards
	// RequiredExports must be exported by the module.
	RequiredExports []string
}

// File is one asset declared by the project.
type File struct {
	// Name is the member name inside the ROM.
	Name string
	Path string
	Kind rom.AssetKind
	// Palette applies to images. Nil keeps the image's own colors.
	Palette assets.Palette
	// SHA256, when set, is the expected hex digest of the source file.
	SHA256 string
}

func (p *Project) path(rel string) string {
	if filepath.IsAbs(rel) || p.Root == "" {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// capabilities returns the declared capabilities, with sudo added for
// apps that carry the sudo flag.
func (p *Project) capabilities() []string {
	caps := append([]string(nil), p.Manifest.Capabilities...)
	if p.Manifest.Sudo {
		for _, c := range caps {
			if c == "sudo" {
				return caps
			}
		}
		caps = append(caps, "sudo")
	}
	return caps
}

// maxSourceSize bounds source files read into memory. Sources may shrink
// when processed, so the bound is looser than the member limit.
const maxSourceSize = rom.MaxMemberSize * 4

// readSource reads the source of member. An oversized source fails with
// tooLarge.
func readSource(path, member string, tooLarge rom.Kind) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, rom.WithSubject(rom.IOError("stat "+path, err), member)
	}
	if fi.Size() > maxSourceSize {
		return nil, rom.Errorf(tooLarge, member, "source file %s is %d bytes", filepath.Base(path), fi.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rom.WithSubject(rom.IOError("read "+path, err), member)
	}
	return data, nil
}

func checkDigest(f File, data []byte) error {
	if f.SHA256 == "" {
		return nil
	}
	sum := sha256.Sum256(data)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), strings.TrimSpace(f.SHA256)) {
		return rom.Errorf(rom.KindSchemaViolation, f.Name, "sha256 of %s does not match the declared digest", f.Path)
	}
	return nil
}
