// Package pack assembles ROM members into a deterministic, digestible
// package and moves packages to and from directory trees and zip archives.
package pack

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/firefly-zero/firefly-cli/cidutil"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Member is one named file of a ROM.
type Member struct {
	Name string
	Data []byte
}

// Package is an assembled ROM.
//
// Members are sorted by name and never include the signature block. The
// digest covers the framed members only, so attaching a signature does not
// change it.
type Package struct {
	Members []Member
	Layout  Layout
	HashAlg HashAlg
	Digest  []byte

	// Signature block. Empty until signed or loaded.
	Sig []byte
	Key []byte
	// StoredHash is the _hash member as read from disk, nil for new packages.
	StoredHash []byte
}

// Assemble sorts and frames members, checks the manifest asset index
// against the resulting layout and computes the digest.
func Assemble(members []Member, alg HashAlg) (*Package, error) {
	p, err := build(members, alg)
	if err != nil {
		return nil, err
	}
	m, err := p.Manifest()
	if err != nil {
		return nil, err
	}
	if err := VerifyIndex(m, p.Layout); err != nil {
		return nil, err
	}
	return p, nil
}

func build(members []Member, alg HashAlg) (*Package, error) {
	if !alg.Valid() {
		return nil, rom.Errorf(rom.KindSchemaViolation, alg.String(), "unknown hash algorithm")
	}
	sizes := make(map[string]int, len(members))
	for _, m := range members {
		if _, dup := sizes[m.Name]; dup {
			return nil, rom.Errorf(rom.KindSchemaViolation, m.Name, "duplicate member")
		}
		sizes[m.Name] = len(m.Data)
	}
	for _, required := range []string{rom.Meta, rom.Bin} {
		if _, ok := sizes[required]; !ok {
			return nil, rom.Errorf(rom.KindSchemaViolation, required, "required member is missing")
		}
	}
	layout, err := Plan(sizes)
	if err != nil {
		return nil, err
	}

	sorted := append([]Member(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	p := &Package{Members: sorted, Layout: layout, HashAlg: alg}
	if p.Digest, err = p.digest(); err != nil {
		return nil, err
	}
	return p, nil
}

// Bytes returns the framed blob the digest is computed over.
func (p *Package) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(p.Layout.Size)
	_ = p.writeFrames(&buf)
	return buf.Bytes()
}

func (p *Package) writeFrames(w io.Writer) error {
	var hdr [4]byte
	for _, m := range p.Members {
		binary.LittleEndian.PutUint16(hdr[:2], uint16(len(m.Name)))
		if _, err := w.Write(hdr[:2]); err != nil {
			return err
		}
		if _, err := w.Write([]byte(m.Name)); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(m.Data)))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(m.Data); err != nil {
			return err
		}
	}
	return nil
}

func (p *Package) digest() ([]byte, error) {
	h, err := p.HashAlg.new()
	if err != nil {
		return nil, err
	}
	if err := p.writeFrames(h); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// CID is a content identifier derived from the digest, for display.
func (p *Package) CID() (cid.Cid, error) {
	return cidutil.FromDigest(p.HashAlg.String(), p.Digest)
}

// Member returns the data of the named member.
func (p *Package) Member(name string) ([]byte, bool) {
	i := sort.Search(len(p.Members), func(i int) bool { return p.Members[i].Name >= name })
	if i < len(p.Members) && p.Members[i].Name == name {
		return p.Members[i].Data, true
	}
	return nil, false
}

// Manifest decodes the _meta member.
func (p *Package) Manifest() (*meta.Manifest, error) {
	raw, ok := p.Member(rom.Meta)
	if !ok {
		return nil, rom.Errorf(rom.KindSchemaViolation, rom.Meta, "manifest is missing")
	}
	return meta.Decode(raw)
}

// Attach sets the signature block.
func (p *Package) Attach(sig, key []byte) {
	p.Sig = append([]byte(nil), sig...)
	p.Key = append([]byte(nil), key...)
}

// Signed reports whether a signature block is attached.
func (p *Package) Signed() bool {
	return len(p.Sig) > 0 && len(p.Key) > 0
}

// Files is a flat set of named files as stored on disk or in an archive,
// signature block included.
type Files map[string][]byte

// Load rebuilds a package from stored files.
//
// It frames and digests the members with alg but does not decode the
// manifest: callers verify the digest and signature first. Structural
// problems are reported as ArchiveCorrupt.
func Load(files Files, alg HashAlg) (*Package, error) {
	members := make([]Member, 0, len(files))
	for name, data := range files {
		if rom.IsSignatureBlock(name) {
			continue
		}
		members = append(members, Member{Name: name, Data: data})
	}
	p, err := build(members, alg)
	if err != nil {
		if rom.IsKind(err, rom.KindSchemaViolation) {
			return nil, rom.Relabel(err, rom.KindArchiveCorrupt)
		}
		return nil, err
	}
	p.StoredHash = files[rom.Hash]
	p.Sig = files[rom.Sig]
	p.Key = files[rom.Key]
	return p, nil
}

// Files returns every file of the package as stored on disk, signature
// block included when present.
func (p *Package) Files() Files {
	out := make(Files, len(p.Members)+3)
	for _, m := range p.Members {
		out[m.Name] = m.Data
	}
	out[rom.Hash] = p.Digest
	if p.Signed() {
		out[rom.Sig] = p.Sig
		out[rom.Key] = p.Key
	}
	return out
}
