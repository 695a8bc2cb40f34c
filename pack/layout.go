package pack

import (
	"sort"

	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Frame overhead of one member: u16 name length and u32 data length.
const frameOverhead = 2 + 4

// Placement locates the data of one member inside the package blob.
type Placement struct {
	Name   string
	Offset int
	Length int
}

// Layout is the position of every member in the package blob.
type Layout struct {
	Members []Placement
	// Size is the length of the whole blob.
	Size int
}

// Lookup returns the placement of name.
func (l Layout) Lookup(name string) (Placement, bool) {
	i := sort.Search(len(l.Members), func(i int) bool { return l.Members[i].Name >= name })
	if i < len(l.Members) && l.Members[i].Name == name {
		return l.Members[i], true
	}
	return Placement{}, false
}

// Plan computes the layout of members with the given data sizes.
//
// Members are ordered by name (bytewise). The offsets depend only on names
// and sizes, so the manifest can record them before its own bytes exist as
// long as its size is known up front.
func Plan(sizes map[string]int) (Layout, error) {
	names := make([]string, 0, len(sizes))
	for name, size := range sizes {
		if err := checkMember(name, size); err != nil {
			return Layout{}, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	l := Layout{Members: make([]Placement, 0, len(names))}
	off := 0
	for _, name := range names {
		off += frameOverhead + len(name)
		l.Members = append(l.Members, Placement{Name: name, Offset: off, Length: sizes[name]})
		off += sizes[name]
	}
	l.Size = off
	return l, nil
}

// checkMember applies the naming and size rules every packaged member obeys.
func checkMember(name string, size int) error {
	if err := rom.ValidateMemberName(name); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, name, "invalid member name", err)
	}
	if rom.IsSignatureBlock(name) {
		return rom.Errorf(rom.KindSchemaViolation, name, "member name is reserved for the signature block")
	}
	if rom.IsReserved(name) && !knownMembers[name] {
		return rom.Errorf(rom.KindSchemaViolation, name, "unknown reserved member")
	}
	if size == 0 {
		return rom.Errorf(rom.KindSchemaViolation, name, "member is empty")
	}
	if size > rom.MaxMemberSize {
		kind := rom.KindAssetTooLarge
		if name == rom.Bin {
			kind = rom.KindModuleTooLarge
		}
		return rom.Errorf(kind, name, "member is %d bytes, limit is %d", size, rom.MaxMemberSize)
	}
	return nil
}

var knownMembers = map[string]bool{
	rom.Meta:   true,
	rom.Bin:    true,
	rom.Badges: true,
	rom.Boards: true,
	rom.Stats:  true,
}

// VerifyIndex checks the manifest asset index against a layout.
//
// Every asset must be present with the recorded offset and length, and
// every non-reserved member must be indexed.
func VerifyIndex(m *meta.Manifest, l Layout) error {
	indexed := make(map[string]bool, len(m.Assets))
	for _, a := range m.Assets {
		p, ok := l.Lookup(a.Name)
		if !ok {
			return rom.Errorf(rom.KindSchemaViolation, a.Name, "indexed asset is not in the package")
		}
		if int(a.Offset) != p.Offset || int(a.Length) != p.Length {
			return rom.Errorf(rom.KindSchemaViolation, a.Name,
				"index says offset %d length %d, package has offset %d length %d",
				a.Offset, a.Length, p.Offset, p.Length)
		}
		indexed[a.Name] = true
	}
	for _, p := range l.Members {
		if !rom.IsReserved(p.Name) && !indexed[p.Name] {
			return rom.Errorf(rom.KindSchemaViolation, p.Name, "member is missing from the asset index")
		}
	}
	return nil
}
