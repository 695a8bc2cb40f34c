package pack

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/storage/localfs"
)

// requiredStored must be present in every stored ROM.
var requiredStored = []string{rom.Meta, rom.Bin, rom.Hash}

// WriteArchive writes pkg as a deterministic zip archive.
//
// Members come first in name order, then the signature block in a fixed
// order. Headers carry no timestamps and compression always uses the same
// level, so equal packages produce equal archives.
func WriteArchive(w io.Writer, pkg *Package) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	files := pkg.Files()
	for _, m := range pkg.Members {
		if err := writeEntry(zw, m.Name, m.Data); err != nil {
			_ = zw.Close()
			return err
		}
	}
	for _, name := range storedOrder {
		data, ok := files[name]
		if !ok {
			continue
		}
		if err := writeEntry(zw, name, data); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return rom.IOError("finish archive", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	hdr.SetMode(0o644)
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return rom.IOError("add "+name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return rom.IOError("write "+name, err)
	}
	return nil
}

// WriteArchiveFile writes the archive to path, replacing it atomically.
func WriteArchiveFile(path string, pkg *Package) error {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, pkg); err != nil {
		return err
	}
	if err := localfs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return rom.IOError("write "+path, err)
	}
	return nil
}

// ReadArchive reads the files of a ROM archive.
//
// Reading is fail-closed: directories, links, nested or unsafe paths,
// invalid names, duplicate entries, oversized entries and missing required
// members all make the archive ArchiveCorrupt.
func ReadArchive(r io.ReaderAt, size int64) (Files, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, rom.Wrap(rom.KindArchiveCorrupt, "", "open archive", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	files := make(Files, len(zr.File))
	for _, f := range zr.File {
		name := f.Name
		if strings.ContainsAny(name, `/\`) || name == "" {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "unsafe entry path")
		}
		if !f.Mode().IsRegular() {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "entry is not a regular file")
		}
		if err := rom.ValidateMemberName(name); err != nil {
			return nil, rom.Wrap(rom.KindArchiveCorrupt, name, "invalid entry name", err)
		}
		if _, dup := files[name]; dup {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "duplicate entry")
		}
		if f.UncompressedSize64 > rom.MaxMemberSize {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "entry exceeds %d bytes", rom.MaxMemberSize)
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, rom.Wrap(rom.KindArchiveCorrupt, name, "read entry", err)
		}
		files[name] = data
	}
	for _, name := range requiredStored {
		if _, ok := files[name]; !ok {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "required member is missing")
		}
	}
	return files, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, rom.MaxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > rom.MaxMemberSize {
		return nil, fmt.Errorf("entry exceeds %d bytes", rom.MaxMemberSize)
	}
	return data, nil
}

// ReadArchiveFile opens path and reads it with ReadArchive.
func ReadArchiveFile(path string) (Files, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rom.IOError("open "+path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, rom.IOError("stat "+path, err)
	}
	return ReadArchive(f, fi.Size())
}
