// Package vfs manages a host-local copy of the device filesystem.
//
// The layout mirrors the device:
//
//	roms/<author>/<app>/   installed packages
//	sys/pub, sys/priv      author keys (see package keys)
//	sys/new-app            the most recently installed app
//	sys/launcher           the launcher app, when one is installed
//	data/<author>/<app>/   app data, including the stats play record
//
// Every write of a package is staged next to its target and promoted by
// rename, so an interrupted install never leaves a half-written app. The
// store assumes a single process and takes no locks.
package vfs

import (
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/storage/localfs"
)

const (
	romsDir = "roms"
	sysDir  = "sys"
	dataDir = "data"

	newAppFile   = "new-app"
	launcherFile = "launcher"
	statsFile    = "stats"
)

// Options configures a VFS.
type Options struct {
	// Logger receives install and import events. Nil discards them.
	Logger *log.Logger
	// Now dates stats records. Nil uses time.Now.
	Now func() time.Time
}

// VFS is a virtual filesystem rooted at a host directory.
type VFS struct {
	root   string
	logger *log.Logger
	keys   *keys.Store
	now    func() time.Time
}

// New returns a VFS rooted at root. It does not touch the filesystem.
func New(root string, opts Options) *VFS {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &VFS{
		root:   root,
		logger: logger,
		keys:   keys.NewStore(filepath.Join(root, sysDir)),
		now:    now,
	}
}

// Root returns the root directory.
func (v *VFS) Root() string { return v.root }

// Keys returns the key store kept in the sys directory.
func (v *VFS) Keys() *keys.Store { return v.keys }

// Init creates the directory skeleton. Existing content is kept.
func (v *VFS) Init() error {
	dirs := []struct {
		path string
		perm os.FileMode
	}{
		{filepath.Join(v.root, romsDir), 0o755},
		{filepath.Join(v.root, sysDir, "pub"), 0o755},
		{filepath.Join(v.root, sysDir, "priv"), 0o700},
		{filepath.Join(v.root, dataDir), 0o755},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return rom.IOError("create "+d.path, err)
		}
	}
	return nil
}

// AppDir is the directory an app is installed in.
func (v *VFS) AppDir(id rom.AppID) string {
	return filepath.Join(v.root, romsDir, id.Author, id.App)
}

// Install writes a signed package into the VFS, replacing any previous
// version of the same app.
func (v *VFS) Install(pkg *pack.Package) error {
	if !pkg.Signed() {
		return rom.Errorf(rom.KindSignatureMismatch, "", "package is not signed")
	}
	m, err := pkg.Manifest()
	if err != nil {
		return err
	}
	return v.install(pkg, m)
}

func (v *VFS) install(pkg *pack.Package, m *meta.Manifest) error {
	if err := v.Init(); err != nil {
		return err
	}
	stats, err := v.nextStats(pkg, m.ID)
	if err != nil {
		return err
	}
	if err := pack.WriteTree(v.AppDir(m.ID), pkg); err != nil {
		return rom.WithSubject(err, m.ID.String())
	}
	if err := v.writeStats(m.ID, stats); err != nil {
		return err
	}

	short, err := meta.EncodeShort(meta.ShortMeta{ID: m.ID})
	if err != nil {
		return err
	}
	if err := v.writeSys(newAppFile, short); err != nil {
		return err
	}
	if m.Launcher {
		if err := v.writeSys(launcherFile, short); err != nil {
			return err
		}
	}
	v.logger.Info("installed app", "app", m.ID, "members", len(pkg.Members), "digest", hex.EncodeToString(pkg.Digest))
	return nil
}

// DataDir is the data directory of an app.
func (v *VFS) DataDir(id rom.AppID) string {
	return filepath.Join(v.root, dataDir, id.Author, id.App)
}

// Stats reads the play record of an installed app.
func (v *VFS) Stats(id rom.AppID) (meta.Stats, error) {
	raw, err := v.readStats(id)
	if err != nil {
		return meta.Stats{}, err
	}
	if raw == nil {
		return meta.Stats{}, rom.Errorf(rom.KindIOFailure, id.String(), "no stats recorded")
	}
	return meta.DecodeStats(raw)
}

// readStats returns the stored record, nil when there is none.
func (v *VFS) readStats(id rom.AppID) ([]byte, error) {
	path := filepath.Join(v.DataDir(id), statsFile)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, rom.IOError("read "+path, err)
	}
	return raw, nil
}

// nextStats computes the play record to store after installing pkg. It
// returns nil when the package carries no default stats.
//
// A fresh install is seeded from the defaults; a reinstall merges them
// into the existing record. An unreadable existing record is replaced.
func (v *VFS) nextStats(pkg *pack.Package, id rom.AppID) (*meta.Stats, error) {
	raw, ok := pkg.Member(rom.Stats)
	if !ok {
		return nil, nil
	}
	defaults, err := meta.DecodeStats(raw)
	if err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, rom.Stats, "invalid default stats", err)
	}
	today := meta.DateOf(v.now())

	stored, err := v.readStats(id)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		old, err := meta.DecodeStats(stored)
		if err == nil {
			merged := meta.MergeStats(old, defaults, today)
			return &merged, nil
		}
		v.logger.Warn("replacing unreadable stats", "app", id, "err", err)
	}
	seeded := meta.SeedStats(defaults, today)
	return &seeded, nil
}

func (v *VFS) writeStats(id rom.AppID, s *meta.Stats) error {
	dir := v.DataDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rom.IOError("create "+dir, err)
	}
	if s == nil {
		return nil
	}
	raw, err := meta.EncodeStats(*s)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, statsFile)
	if err := localfs.WriteFile(path, raw, 0o644); err != nil {
		return rom.IOError("write "+path, err)
	}
	return nil
}

func (v *VFS) writeSys(name string, data []byte) error {
	path := filepath.Join(v.root, sysDir, name)
	if err := localfs.WriteFile(path, data, 0o644); err != nil {
		return rom.IOError("write "+path, err)
	}
	return nil
}

// Remove uninstalls an app. Removing an app that is not installed is a
// no-op. App data is kept.
func (v *VFS) Remove(id rom.AppID) error {
	if err := id.Validate(); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, id.String(), "invalid app id", err)
	}
	dir := v.AppDir(id)
	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return rom.IOError("remove "+dir, err)
	}
	// Drop the author directory once its last app is gone.
	_ = os.Remove(filepath.Dir(dir))
	v.logger.Info("removed app", "app", id)
	return nil
}

// List returns the installed apps sorted by author, then app.
func (v *VFS) List() ([]rom.AppID, error) {
	authors, err := os.ReadDir(filepath.Join(v.root, romsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, rom.IOError("list apps", err)
	}
	var ids []rom.AppID
	for _, a := range authors {
		if !a.IsDir() || rom.ValidateID(a.Name()) != nil {
			continue
		}
		apps, err := os.ReadDir(filepath.Join(v.root, romsDir, a.Name()))
		if err != nil {
			return nil, rom.IOError("list apps", err)
		}
		for _, app := range apps {
			id := rom.AppID{Author: a.Name(), App: app.Name()}
			if app.IsDir() && id.Validate() == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Author != ids[j].Author {
			return ids[i].Author < ids[j].Author
		}
		return ids[i].App < ids[j].App
	})
	return ids, nil
}

// NewApp returns the app recorded in sys/new-app.
func (v *VFS) NewApp() (rom.AppID, error) {
	return v.readShort(newAppFile)
}

// Launcher returns the app recorded in sys/launcher.
func (v *VFS) Launcher() (rom.AppID, error) {
	return v.readShort(launcherFile)
}

func (v *VFS) readShort(name string) (rom.AppID, error) {
	path := filepath.Join(v.root, sysDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return rom.AppID{}, rom.IOError("read "+path, err)
	}
	s, err := meta.DecodeShort(raw)
	if err != nil {
		return rom.AppID{}, err
	}
	return s.ID, nil
}
