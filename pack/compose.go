package pack

import (
	"math"
	"sort"

	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Asset is an encoded asset waiting to be placed in a package.
type Asset struct {
	Name string
	Kind rom.AssetKind
	Data []byte
}

// Compose builds a complete package from its parts.
//
// The manifest's asset index is filled in from the planned layout; any index
// already present in m is replaced. extra holds optional toolchain members
// such as _badges and _boards.
func Compose(m meta.Manifest, bin []byte, assets []Asset, extra []Member, alg HashAlg) (*Package, error) {
	sizes := make(map[string]int, len(assets)+len(extra)+2)
	add := func(name string, size int) error {
		if _, dup := sizes[name]; dup {
			return rom.Errorf(rom.KindSchemaViolation, name, "duplicate member")
		}
		sizes[name] = size
		return nil
	}
	if err := add(rom.Bin, len(bin)); err != nil {
		return nil, err
	}
	if err := add(rom.Meta, meta.Size(len(m.Capabilities), len(m.EntryPoints), len(assets))); err != nil {
		return nil, err
	}
	for _, a := range assets {
		if rom.IsReserved(a.Name) {
			return nil, rom.Errorf(rom.KindSchemaViolation, a.Name, "asset name is reserved")
		}
		if err := add(a.Name, len(a.Data)); err != nil {
			return nil, err
		}
	}
	for _, x := range extra {
		if !rom.IsReserved(x.Name) {
			return nil, rom.Errorf(rom.KindSchemaViolation, x.Name, "extra members must be toolchain members")
		}
		if err := add(x.Name, len(x.Data)); err != nil {
			return nil, err
		}
	}

	layout, err := Plan(sizes)
	if err != nil {
		return nil, err
	}

	index := make([]meta.Asset, 0, len(assets))
	for _, a := range assets {
		p, _ := layout.Lookup(a.Name)
		if uint64(p.Offset)+uint64(p.Length) > math.MaxUint32 {
			return nil, rom.Errorf(rom.KindSchemaViolation, a.Name, "asset offset does not fit the index")
		}
		index = append(index, meta.Asset{
			Name:   a.Name,
			Kind:   a.Kind,
			Offset: uint32(p.Offset),
			Length: uint32(p.Length),
		})
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Name < index[j].Name })
	m.Assets = index

	encoded, err := meta.Encode(&m)
	if err != nil {
		return nil, err
	}
	if len(encoded) != sizes[rom.Meta] {
		return nil, rom.Errorf(rom.KindSchemaViolation, rom.Meta, "manifest is %d bytes, planned %d", len(encoded), sizes[rom.Meta])
	}

	members := make([]Member, 0, len(sizes))
	members = append(members, Member{Name: rom.Bin, Data: bin}, Member{Name: rom.Meta, Data: encoded})
	for _, a := range assets {
		members = append(members, Member{Name: a.Name, Data: a.Data})
	}
	members = append(members, extra...)
	return Assemble(members, alg)
}
