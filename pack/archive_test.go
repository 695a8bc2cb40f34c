package pack

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/firefly-zero/firefly-cli/rom"
)

func archiveBytes(t *testing.T, pkg *Package) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteArchive(&buf, pkg); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	return buf.Bytes()
}

func TestArchive_DeterministicRoundTrip(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	pkg.Attach([]byte("sig"), []byte("key"))

	a := archiveBytes(t, pkg)
	b := archiveBytes(t, mustCompose(t, testAssets(), HashSHA256).withBlock("sig", "key"))
	if !bytes.Equal(a, b) {
		t.Fatalf("archive bytes are not deterministic")
	}

	files, err := ReadArchive(bytes.NewReader(a), int64(len(a)))
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	loaded, err := Load(files, HashSHA256)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.Digest, pkg.Digest) || !bytes.Equal(loaded.StoredHash, pkg.Digest) {
		t.Fatalf("digest changed across the archive round trip")
	}

	zr, err := zip.NewReader(bytes.NewReader(a), int64(len(a)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if !f.Modified.IsZero() && f.Modified.Year() > 1980 {
			t.Fatalf("entry %s carries a timestamp %v", f.Name, f.Modified)
		}
	}
	want := []string{"_badges", "_bin", "_meta", "font", "sprite", "_hash", "_key", "_sig"}
	if len(names) != len(want) {
		t.Fatalf("unexpected entries %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected entry order %v", names)
		}
	}
}

func TestArchive_DefaultCompression(t *testing.T) {
	pkg := mustCompose(t, testAssets(), HashSHA256)
	pkg.Attach([]byte("sig"), []byte("key"))
	a := archiveBytes(t, pkg)

	zr, err := zip.NewReader(bytes.NewReader(a), int64(len(a)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	files := pkg.Files()
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Fatalf("%s: method %d, want deflate", f.Name, f.Method)
		}
		var want bytes.Buffer
		fw, err := flate.NewWriter(&want, flate.DefaultCompression)
		if err != nil {
			t.Fatalf("flate.NewWriter: %v", err)
		}
		if _, err := fw.Write(files[f.Name]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := fw.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if f.CompressedSize64 != uint64(want.Len()) {
			t.Fatalf("%s: compressed to %d bytes, default level gives %d", f.Name, f.CompressedSize64, want.Len())
		}
	}
}

func (p *Package) withBlock(sig, key string) *Package {
	p.Attach([]byte(sig), []byte(key))
	return p
}

type entry struct {
	name string
	dir  bool
	data string
}

func rawZip(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Store}
		if e.dir {
			hdr.SetMode(0o755 | 1<<31)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("CreateHeader: %v", err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestReadArchive_FailClosed(t *testing.T) {
	base := []entry{{name: rom.Meta, data: "m"}, {name: rom.Bin, data: "b"}, {name: rom.Hash, data: "h"}}
	with := func(extra ...entry) []entry { return append(append([]entry(nil), base...), extra...) }

	if _, err := ReadArchive(bytes.NewReader(rawZip(t, base)), int64(len(rawZip(t, base)))); err != nil {
		t.Fatalf("minimal archive rejected: %v", err)
	}

	cases := map[string][]byte{
		"garbage":     []byte("PK not really"),
		"traversal":   rawZip(t, with(entry{name: "../evil", data: "x"})),
		"nested":      rawZip(t, with(entry{name: "dir/file", data: "x"})),
		"directory":   rawZip(t, with(entry{name: "assets/", dir: true})),
		"bad name":    rawZip(t, with(entry{name: "Upper", data: "x"})),
		"duplicate":   rawZip(t, with(entry{name: rom.Bin, data: "again"})),
		"missing bin": rawZip(t, []entry{{name: rom.Meta, data: "m"}, {name: rom.Hash, data: "h"}}),
	}
	for name, raw := range cases {
		if _, err := ReadArchive(bytes.NewReader(raw), int64(len(raw))); !rom.IsKind(err, rom.KindArchiveCorrupt) {
			t.Fatalf("%s: expected ArchiveCorrupt, got %v", name, err)
		}
	}
}
