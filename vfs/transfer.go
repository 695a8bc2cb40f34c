package vfs

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
)

// Verified is a package whose digest, signature and manifest were checked.
type Verified struct {
	Package   *pack.Package
	Manifest  *meta.Manifest
	Signature *keys.Signature
}

// Verify checks stored files in this order: digest against _hash,
// signature against _key, _key against the pinned author key, manifest
// schema, then the manifest index against the members.
//
// Nothing is trusted before the signature checks pass, so a tampered
// manifest is reported as SignatureMismatch rather than a schema error.
func (v *VFS) Verify(files pack.Files) (*Verified, error) {
	rawSig, ok := files[rom.Sig]
	if !ok {
		return nil, rom.Errorf(rom.KindSignatureMismatch, rom.Sig, "package is not signed")
	}
	sig, err := keys.DecodeSignature(rawSig)
	if err != nil {
		return nil, err
	}
	pkg, err := pack.Load(files, sig.HashAlg)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pkg.StoredHash, pkg.Digest) {
		return nil, rom.Errorf(rom.KindSignatureMismatch, rom.Hash, "stored hash does not match the package contents")
	}
	pub := keys.PublicKey{Alg: sig.Alg, Bytes: pkg.Key}
	if !keys.Verify(pkg.Digest, sig, pub) {
		return nil, rom.Errorf(rom.KindSignatureMismatch, rom.Sig, "signature does not verify")
	}

	rawMeta, _ := pkg.Member(rom.Meta)
	id, err := meta.DecodeID(rawMeta)
	if err != nil {
		return nil, err
	}
	pinned, err := v.keys.Public(id.Author)
	switch {
	case err == nil:
		if !pinned.Equal(pub) {
			return nil, rom.Errorf(rom.KindSignatureMismatch, id.Author, "package key does not match the pinned author key")
		}
	case rom.IsKind(err, rom.KindKeyNotFound):
	default:
		return nil, err
	}

	m, err := meta.Decode(rawMeta)
	if err != nil {
		return nil, err
	}
	if err := pack.VerifyIndex(m, pkg.Layout); err != nil {
		return nil, rom.Relabel(err, rom.KindArchiveCorrupt)
	}
	return &Verified{Package: pkg, Manifest: m, Signature: sig}, nil
}

// Open reads and verifies an installed app.
func (v *VFS) Open(id rom.AppID) (*Verified, error) {
	if err := id.Validate(); err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, id.String(), "invalid app id", err)
	}
	dir := v.AppDir(id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, rom.Errorf(rom.KindIOFailure, id.String(), "app is not installed")
	}
	files, err := pack.ReadTree(dir)
	if err != nil {
		return nil, rom.WithSubject(err, id.String())
	}
	ver, err := v.Verify(files)
	if err != nil {
		return nil, err
	}
	if ver.Manifest.ID != id {
		return nil, rom.Errorf(rom.KindArchiveCorrupt, id.String(), "installed manifest belongs to %s", ver.Manifest.ID)
	}
	return ver, nil
}

// Export writes an installed app as a zip archive after re-verifying it.
func (v *VFS) Export(id rom.AppID, w io.Writer) error {
	ver, err := v.Open(id)
	if err != nil {
		return err
	}
	return pack.WriteArchive(w, ver.Package)
}

// ArchiveName is the file name an exported app gets.
func ArchiveName(id rom.AppID) string {
	return id.Author + "." + id.App + ".zip"
}

// ExportFile exports an app into dir and returns the archive path.
func (v *VFS) ExportFile(id rom.AppID, dir string) (string, error) {
	ver, err := v.Open(id)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ArchiveName(id))
	if err := pack.WriteArchiveFile(path, ver.Package); err != nil {
		return "", err
	}
	v.logger.Info("exported app", "app", id, "path", path)
	return path, nil
}

// Import verifies a ROM archive and installs it. Any failure leaves the
// VFS untouched.
func (v *VFS) Import(r io.ReaderAt, size int64) (rom.AppID, error) {
	files, err := pack.ReadArchive(r, size)
	if err != nil {
		return rom.AppID{}, err
	}
	ver, err := v.Verify(files)
	if err != nil {
		v.logger.Warn("rejected archive", "error", err)
		return rom.AppID{}, err
	}
	if err := v.install(ver.Package, ver.Manifest); err != nil {
		return rom.AppID{}, err
	}
	return ver.Manifest.ID, nil
}

// ImportFile imports the archive at path.
func (v *VFS) ImportFile(path string) (rom.AppID, error) {
	f, err := os.Open(path)
	if err != nil {
		return rom.AppID{}, rom.IOError("open "+path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return rom.AppID{}, rom.IOError("stat "+path, err)
	}
	return v.Import(f, fi.Size())
}
