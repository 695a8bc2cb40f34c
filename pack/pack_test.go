package pack

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/firefly-zero/firefly-cli/cidutil"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/rom"
)

func testManifest() meta.Manifest {
	return meta.Manifest{
		ID:          rom.AppID{Author: "lux", App: "snake"},
		AppName:     "Snake",
		AuthorName:  "Lux",
		Version:     1,
		EntryPoints: []string{"boot", "update"},
	}
}

func testAssets() []Asset {
	return []Asset{
		{Name: "sprite", Kind: rom.AssetImage, Data: bytes.Repeat([]byte{0x21}, 40)},
		{Name: "font", Kind: rom.AssetRaw, Data: []byte("glyphs")},
	}
}

func mustCompose(t *testing.T, assets []Asset, alg HashAlg) *Package {
	t.Helper()
	badges, err := meta.EncodeBadges(meta.Badges{{Position: 1, Steps: 1, Name: "Win"}})
	if err != nil {
		t.Fatalf("EncodeBadges: %v", err)
	}
	pkg, err := Compose(testManifest(), []byte("\x00asm\x01\x00\x00\x00"), assets,
		[]Member{{Name: rom.Badges, Data: badges}}, alg)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	return pkg
}

func TestCompose_Deterministic(t *testing.T) {
	a := mustCompose(t, testAssets(), HashSHA256)
	reversed := testAssets()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	b := mustCompose(t, reversed, HashSHA256)

	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("input order changed the package bytes")
	}
	if !bytes.Equal(a.Digest, b.Digest) {
		t.Fatalf("input order changed the digest")
	}
	var names []string
	for _, m := range a.Members {
		names = append(names, m.Name)
	}
	want := []string{"_badges", "_bin", "_meta", "font", "sprite"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected member order %v", names)
		}
	}
}

func TestPackage_FramingAndLayout(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	blob := pkg.Bytes()
	if len(blob) != pkg.Layout.Size {
		t.Fatalf("blob is %d bytes, layout says %d", len(blob), pkg.Layout.Size)
	}

	first := pkg.Members[0]
	if got := binary.LittleEndian.Uint16(blob); int(got) != len(first.Name) {
		t.Fatalf("unexpected name length %d", got)
	}
	if string(blob[2:2+len(first.Name)]) != first.Name {
		t.Fatalf("unexpected first name %q", blob[2:2+len(first.Name)])
	}
	if got := binary.LittleEndian.Uint32(blob[2+len(first.Name):]); int(got) != len(first.Data) {
		t.Fatalf("unexpected data length %d", got)
	}

	for _, p := range pkg.Layout.Members {
		data, _ := pkg.Member(p.Name)
		if !bytes.Equal(blob[p.Offset:p.Offset+p.Length], data) {
			t.Fatalf("placement of %s does not point at its data", p.Name)
		}
	}

	m, err := pkg.Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(m.Assets) != 2 || m.Assets[0].Name != "font" {
		t.Fatalf("unexpected index %+v", m.Assets)
	}
	sprite, _ := m.Asset("sprite")
	if sprite.Kind != rom.AssetImage || !bytes.Equal(blob[sprite.Offset:sprite.Offset+sprite.Length], testAssets()[0].Data) {
		t.Fatalf("manifest index does not locate the sprite")
	}
}

func TestPackage_Digest(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	want := sha256.Sum256(pkg.Bytes())
	if !bytes.Equal(pkg.Digest, want[:]) {
		t.Fatalf("sha256 digest mismatch")
	}

	alt := mustCompose(t, testAssets(), HashSHA3_256)
	want3 := sha3.Sum256(alt.Bytes())
	if !bytes.Equal(alt.Digest, want3[:]) {
		t.Fatalf("sha3-256 digest mismatch")
	}
	if bytes.Equal(alt.Digest, pkg.Digest) {
		t.Fatalf("hash algorithms produced the same digest")
	}

	id, err := pkg.CID()
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	name, digest, err := cidutil.Digest(id)
	if err != nil {
		t.Fatalf("cidutil.Digest: %v", err)
	}
	if name != "sha2-256" || !bytes.Equal(digest, pkg.Digest) {
		t.Fatalf("CID does not carry the digest: %s %x", name, digest)
	}
}

func TestAssemble_IndexMismatch(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	m, err := pkg.Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}

	m.Assets[0].Offset++
	bad, err := meta.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	members := replace(pkg.Members, rom.Meta, bad)
	if _, err := Assemble(members, HashSHA256); !rom.IsKind(err, rom.KindSchemaViolation) {
		t.Fatalf("wrong offset: expected SchemaViolation, got %v", err)
	}

	members = append(append([]Member(nil), pkg.Members...), Member{Name: "extra", Data: []byte{1}})
	if _, err := Assemble(members, HashSHA256); !rom.IsKind(err, rom.KindSchemaViolation) {
		t.Fatalf("unindexed member: expected SchemaViolation, got %v", err)
	}
}

func replace(members []Member, name string, data []byte) []Member {
	out := append([]Member(nil), members...)
	for i := range out {
		if out[i].Name == name {
			out[i].Data = data
		}
	}
	return out
}

func TestPlan_Limits(t *testing.T) {
	if _, err := Plan(map[string]int{rom.Bin: rom.MaxMemberSize, "big": rom.MaxMemberSize}); err != nil {
		t.Fatalf("members at the limit: %v", err)
	}
	if _, err := Plan(map[string]int{rom.Bin: 1, rom.Meta: 1, rom.Badges: 1, rom.Boards: 1, rom.Stats: 1}); err != nil {
		t.Fatalf("toolchain members rejected: %v", err)
	}
	cases := []struct {
		sizes map[string]int
		kind  rom.Kind
	}{
		{map[string]int{rom.Bin: rom.MaxMemberSize + 1}, rom.KindModuleTooLarge},
		{map[string]int{"big": rom.MaxMemberSize + 1}, rom.KindAssetTooLarge},
		{map[string]int{"empty": 0}, rom.KindSchemaViolation},
		{map[string]int{rom.Hash: 32}, rom.KindSchemaViolation},
		{map[string]int{"_config": 1}, rom.KindSchemaViolation},
		{map[string]int{"Bad": 1}, rom.KindSchemaViolation},
	}
	for _, tc := range cases {
		if _, err := Plan(tc.sizes); !rom.IsKind(err, tc.kind) {
			t.Fatalf("Plan(%v): expected %s, got %v", tc.sizes, tc.kind, err)
		}
	}
}

func TestAssemble_RequiresMetaAndBin(t *testing.T) {
	if _, err := Assemble([]Member{{Name: rom.Bin, Data: []byte{1}}}, HashSHA256); !rom.IsKind(err, rom.KindSchemaViolation) {
		t.Fatalf("expected SchemaViolation, got %v", err)
	}
}

func TestTree_RoundTrip(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	pkg.Attach([]byte("signature"), []byte("key"))
	dir := filepath.Join(t.TempDir(), "roms", "lux", "snake")
	if err := WriteTree(dir, pkg); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	files, err := ReadTree(dir)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(files) != len(pkg.Members)+3 {
		t.Fatalf("unexpected file count %d", len(files))
	}
	loaded, err := Load(files, HashSHA256)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.Digest, pkg.Digest) || !bytes.Equal(loaded.StoredHash, pkg.Digest) {
		t.Fatalf("digest changed across the tree round trip")
	}
	if string(loaded.Sig) != "signature" || string(loaded.Key) != "key" {
		t.Fatalf("signature block not preserved")
	}

	if err := os.WriteFile(filepath.Join(dir, "font"), []byte("glyphz"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	files, err = ReadTree(dir)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	tampered, err := Load(files, HashSHA256)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bytes.Equal(tampered.Digest, tampered.StoredHash) {
		t.Fatalf("single-byte change not reflected in the digest")
	}
}

func TestReadTree_RejectsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := ReadTree(dir); !rom.IsKind(err, rom.KindArchiveCorrupt) {
		t.Fatalf("expected ArchiveCorrupt, got %v", err)
	}
	if _, err := ReadTree(filepath.Join(dir, "missing")); !rom.IsKind(err, rom.KindIOFailure) {
		t.Fatalf("expected IOFailure, got %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(Files{rom.Bin: []byte{1}}, HashSHA256); !rom.IsKind(err, rom.KindArchiveCorrupt) {
		t.Fatalf("missing manifest: expected ArchiveCorrupt, got %v", err)
	}
	if _, err := Load(Files{rom.Bin: []byte{1}, rom.Meta: []byte{1}, "_junk": []byte{1}}, HashSHA256); !rom.IsKind(err, rom.KindArchiveCorrupt) {
		t.Fatalf("unknown reserved member: expected ArchiveCorrupt, got %v", err)
	}
}

func TestParseHashAlg(t *testing.T) {
	for in, want := range map[string]HashAlg{"": HashSHA256, "sha256": HashSHA256, "sha2-256": HashSHA256, "sha3-256": HashSHA3_256} {
		got, err := ParseHashAlg(in)
		if err != nil || got != want {
			t.Fatalf("ParseHashAlg(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseHashAlg("md5"); err == nil {
		t.Fatalf("md5 accepted")
	}
}
