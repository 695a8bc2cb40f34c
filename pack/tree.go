package pack

import (
	"io"
	"os"
	"path/filepath"

	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/storage/localfs"
)

// storedOrder is the order the signature block follows the members in.
var storedOrder = []string{rom.Hash, rom.Key, rom.Sig}

// WriteTree installs pkg as the directory dir.
//
// The tree is built in a staging directory next to dir and renamed over it
// once complete. On failure the staging directory is removed and dir is
// left as it was.
func WriteTree(dir string, pkg *Package) error {
	st, err := localfs.NewStage(dir)
	if err != nil {
		return rom.IOError("create staging directory", err)
	}
	defer st.Cleanup()

	files := pkg.Files()
	for _, m := range pkg.Members {
		if err := st.WriteFile(m.Name, m.Data); err != nil {
			return rom.IOError("write "+m.Name, err)
		}
	}
	for _, name := range storedOrder {
		data, ok := files[name]
		if !ok {
			continue
		}
		if err := st.WriteFile(name, data); err != nil {
			return rom.IOError("write "+name, err)
		}
	}
	if err := st.Promote(); err != nil {
		return rom.IOError("promote "+dir, err)
	}
	return nil
}

// ReadTree reads every file of an installed ROM.
//
// The directory must be flat; subdirectories, links and files with invalid
// names make it ArchiveCorrupt.
func ReadTree(dir string) (Files, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rom.IOError("read "+dir, err)
	}
	files := make(Files, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() {
			return nil, rom.Errorf(rom.KindArchiveCorrupt, name, "not a regular file")
		}
		if err := rom.ValidateMemberName(name); err != nil {
			return nil, rom.Wrap(rom.KindArchiveCorrupt, name, "invalid file name", err)
		}
		data, err := readLimited(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files[name] = data
	}
	return files, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rom.IOError("open "+path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, rom.MaxMemberSize+1))
	if err != nil {
		return nil, rom.IOError("read "+path, err)
	}
	if len(data) > rom.MaxMemberSize {
		return nil, rom.Errorf(rom.KindArchiveCorrupt, filepath.Base(path), "file exceeds %d bytes", rom.MaxMemberSize)
	}
	return data, nil
}
