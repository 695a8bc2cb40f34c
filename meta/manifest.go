// Package meta serializes ROM metadata into fixed-width binary layouts.
//
// Every encoder fails with SchemaViolation rather than truncating, and every
// decoder is strict: wrong magic, unknown schema versions, non-zero padding
// and trailing bytes are all rejected.
package meta

import (
	"github.com/firefly-zero/firefly-cli/rom"
)

// ManifestMagic opens every manifest.
const ManifestMagic = "FFMF"

// ManifestSchema is the only manifest layout version this package reads.
const ManifestSchema = 1

// Field capacities.
const (
	MaxCapabilities = 0xFF
	MaxEntryPoints  = 0xFF
	MaxAssets       = 0xFFFF
	TokenLen        = 32
	AssetNameLen    = rom.MaxMemberNameLen
)

const (
	flagLauncher uint8 = 1 << 0
	flagSudo     uint8 = 1 << 1
	knownFlags         = flagLauncher | flagSudo
)

const headerSize = 4 + 1 + 1 + 2

var (
	fixedSize = headerSize +
		strSize(rom.MaxIDLen)*2 +
		strSize(rom.MaxNameLen)*2 +
		4
	tokenSize = strSize(TokenLen)
	assetSize = strSize(AssetNameLen) + 1 + 3 + 4 + 4
)

// Manifest describes an app and indexes its assets.
type Manifest struct {
	ID         rom.AppID
	AppName    string
	AuthorName string
	Version    uint32
	// Launcher apps start first when the device boots.
	Launcher bool
	// Sudo apps get privileged host functions.
	Sudo         bool
	Capabilities []string
	EntryPoints  []string
	Assets       []Asset
}

// Asset locates one asset member inside the package blob.
type Asset struct {
	Name   string
	Kind   rom.AssetKind
	Offset uint32
	Length uint32
}

// Size returns the encoded size of a manifest with the given entry counts.
//
// The size does not depend on any value, so the package layout can be
// planned before asset offsets are known.
func Size(capabilities, entryPoints, assets int) int {
	return fixedSize + 1 + capabilities*tokenSize + 1 + entryPoints*tokenSize + 2 + assets*assetSize
}

// Size returns the encoded size of m.
func (m *Manifest) Size() int {
	return Size(len(m.Capabilities), len(m.EntryPoints), len(m.Assets))
}

// Validate checks every field against the schema.
func (m *Manifest) Validate() error {
	if err := rom.ValidateID(m.ID.Author); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, "author_id", "invalid author id", err)
	}
	if err := rom.ValidateID(m.ID.App); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, "app_id", "invalid app id", err)
	}
	if err := rom.ValidateName(m.AppName); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, "app_name", "invalid app name", err)
	}
	if err := rom.ValidateName(m.AuthorName); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, "author_name", "invalid author name", err)
	}
	if err := validTokens("capabilities", m.Capabilities, MaxCapabilities); err != nil {
		return err
	}
	if err := validTokens("entry_points", m.EntryPoints, MaxEntryPoints); err != nil {
		return err
	}
	if len(m.Assets) > MaxAssets {
		return rom.Errorf(rom.KindSchemaViolation, "assets", "%d assets, at most %d allowed", len(m.Assets), MaxAssets)
	}
	seen := make(map[string]bool, len(m.Assets))
	for _, a := range m.Assets {
		if err := rom.ValidateMemberName(a.Name); err != nil {
			return rom.Wrap(rom.KindSchemaViolation, a.Name, "invalid asset name", err)
		}
		if rom.IsReserved(a.Name) {
			return rom.Errorf(rom.KindSchemaViolation, a.Name, "asset name is reserved")
		}
		if seen[a.Name] {
			return rom.Errorf(rom.KindSchemaViolation, a.Name, "duplicate asset")
		}
		seen[a.Name] = true
		if !a.Kind.Valid() {
			return rom.Errorf(rom.KindSchemaViolation, a.Name, "unknown asset kind %d", uint8(a.Kind))
		}
	}
	return nil
}

func validTokens(field string, values []string, limit int) error {
	if len(values) > limit {
		return rom.Errorf(rom.KindSchemaViolation, field, "%d values, at most %d allowed", len(values), limit)
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if err := validToken(field, v, TokenLen); err != nil {
			return err
		}
		if seen[v] {
			return rom.Errorf(rom.KindSchemaViolation, field, "duplicate value %q", v)
		}
		seen[v] = true
	}
	return nil
}

// Encode serializes m.
func Encode(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var flags uint8
	if m.Launcher {
		flags |= flagLauncher
	}
	if m.Sudo {
		flags |= flagSudo
	}

	e := &encoder{b: make([]byte, 0, m.Size())}
	e.raw([]byte(ManifestMagic))
	e.u8(ManifestSchema)
	e.u8(flags)
	e.u16(0)
	// Field lengths were validated above, so str cannot fail here.
	_ = e.str("author_id", m.ID.Author, rom.MaxIDLen)
	_ = e.str("app_id", m.ID.App, rom.MaxIDLen)
	_ = e.str("app_name", m.AppName, rom.MaxNameLen)
	_ = e.str("author_name", m.AuthorName, rom.MaxNameLen)
	e.u32(m.Version)

	e.u8(uint8(len(m.Capabilities)))
	for _, c := range m.Capabilities {
		_ = e.str("capabilities", c, TokenLen)
	}
	e.u8(uint8(len(m.EntryPoints)))
	for _, name := range m.EntryPoints {
		_ = e.str("entry_points", name, TokenLen)
	}
	e.u16(uint16(len(m.Assets)))
	for _, a := range m.Assets {
		_ = e.str("assets", a.Name, AssetNameLen)
		e.u8(uint8(a.Kind))
		e.zeros(3)
		e.u32(a.Offset)
		e.u32(a.Length)
	}
	return e.bytes(), nil
}

// Decode parses a manifest produced by Encode.
func Decode(b []byte) (*Manifest, error) {
	d := &decoder{b: b}
	d.magic(ManifestMagic)
	d.schema(ManifestSchema)
	flags := d.u8("flags")
	if d.err == nil && flags&^knownFlags != 0 {
		d.fail("flags", "unknown flags %#x", flags)
	}
	d.zeros("reserved", 2)

	m := &Manifest{
		Launcher: flags&flagLauncher != 0,
		Sudo:     flags&flagSudo != 0,
	}
	m.ID.Author = d.str("author_id", rom.MaxIDLen)
	m.ID.App = d.str("app_id", rom.MaxIDLen)
	m.AppName = d.str("app_name", rom.MaxNameLen)
	m.AuthorName = d.str("author_name", rom.MaxNameLen)
	m.Version = d.u32("version")

	if n := int(d.u8("capabilities")); n > 0 {
		m.Capabilities = make([]string, 0, n)
		for i := 0; i < n; i++ {
			m.Capabilities = append(m.Capabilities, d.str("capabilities", TokenLen))
		}
	}
	if n := int(d.u8("entry_points")); n > 0 {
		m.EntryPoints = make([]string, 0, n)
		for i := 0; i < n; i++ {
			m.EntryPoints = append(m.EntryPoints, d.str("entry_points", TokenLen))
		}
	}
	if n := int(d.u16("assets")); n > 0 {
		m.Assets = make([]Asset, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			var a Asset
			a.Name = d.str("assets", AssetNameLen)
			a.Kind = rom.AssetKind(d.u8("assets"))
			d.zeros("assets", 3)
			a.Offset = d.u32("assets")
			a.Length = d.u32("assets")
			m.Assets = append(m.Assets, a)
		}
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Asset returns the index entry for name.
func (m *Manifest) Asset(name string) (Asset, bool) {
	for _, a := range m.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// DecodeID reads only the app id from an encoded manifest.
//
// It lets callers look up the author key of a package before trusting the
// rest of the manifest.
func DecodeID(b []byte) (rom.AppID, error) {
	d := &decoder{b: b}
	d.magic(ManifestMagic)
	d.schema(ManifestSchema)
	_ = d.u8("flags")
	d.zeros("reserved", 2)
	var id rom.AppID
	id.Author = d.str("author_id", rom.MaxIDLen)
	id.App = d.str("app_id", rom.MaxIDLen)
	if d.err != nil {
		return rom.AppID{}, d.err
	}
	if err := id.Validate(); err != nil {
		return rom.AppID{}, rom.Wrap(rom.KindSchemaViolation, id.String(), "invalid app id", err)
	}
	return id, nil
}
