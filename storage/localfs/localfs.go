// Package localfs writes directory trees and files so that readers see
// either the old content or the complete new content, never a partial one.
//
// Everything is staged next to its target, fsynced, then promoted with a
// rename. Nothing here uses the network or the wall clock.
package localfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Stage is a scoped staging directory for replacing one target directory.
//
// Callers write files into the stage, then either Promote it over the target
// or Cleanup. Cleanup after a successful Promote is a no-op, so the usual
// pattern is
//
//	st, err := localfs.NewStage(target)
//	...
//	defer st.Cleanup()
//	... st.WriteFile(...)
//	return st.Promote()
type Stage struct {
	target string
	dir    string
	done   bool
}

// NewStage creates a staging directory in the parent of target.
func NewStage(target string) (*Stage, error) {
	if target == "" {
		return nil, errors.New("localfs: target directory is required")
	}
	target = filepath.Clean(target)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(target)+".staging-")
	if err != nil {
		return nil, err
	}
	return &Stage{target: target, dir: dir}, nil
}

// Dir is the staging directory.
func (s *Stage) Dir() string { return s.dir }

// Target is the directory the stage replaces on Promote.
func (s *Stage) Target() string { return s.target }

// WriteFile creates name in the stage and syncs it to disk.
//
// name must be a plain file name; a file can be written only once.
func (s *Stage) WriteFile(name string, data []byte) error {
	if s.done {
		return errors.New("localfs: stage already promoted")
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("localfs: invalid file name %q", name)
	}
	return Create(filepath.Join(s.dir, name), data, 0o644)
}

// Promote replaces the target with the staged directory.
//
// An existing target is first moved aside and removed only after the new
// tree is in place.
func (s *Stage) Promote() error {
	if s.done {
		return errors.New("localfs: stage already promoted")
	}
	if err := syncDir(s.dir); err != nil {
		return err
	}

	var old string
	if _, err := os.Lstat(s.target); err == nil {
		old = s.dir + ".old"
		if err := os.Rename(s.target, old); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.Rename(s.dir, s.target); err != nil {
		if old != "" {
			_ = os.Rename(old, s.target)
		}
		return err
	}
	s.done = true
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return syncDir(filepath.Dir(s.target))
}

// Cleanup removes the staging directory unless it was promoted.
func (s *Stage) Cleanup() {
	if s == nil || s.done {
		return
	}
	s.done = true
	_ = os.RemoveAll(s.dir)
}

// WriteFile atomically replaces path with data.
//
// The data goes to a temporary file in the same directory which is synced
// and renamed over path. On failure the temporary file is removed and path
// is left untouched.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return fail(err)
	}
	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(dir)
}

// Create writes a new file, refusing to overwrite, and removes it
// again if any step fails.
func Create(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Best effort: not every filesystem can sync a directory.
	_ = d.Sync()
	return nil
}
