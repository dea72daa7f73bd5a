// Package fsutiltest provides afero filesystems that inject faults, for
// exercising the failure paths of code built on fsutil.
package fsutiltest

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// FaultFs wraps an afero.Fs and lets tests fail or intercept selected
// operations.
type FaultFs struct {
	afero.Fs

	mu sync.Mutex

	// RenameErr, when set, is returned by Rename for targets whose path
	// contains RenameMatch (any target when RenameMatch is empty).
	RenameErr   error
	RenameMatch string

	// WriteErr, when set, is returned by every Write on files opened
	// through this filesystem.
	WriteErr error

	// OnWrite is called before every Write with the running count of
	// writes issued so far.
	OnWrite func(n int)

	writes  int
	renames []string
}

// New wraps base.
func New(base afero.Fs) *FaultFs {
	return &FaultFs{Fs: base}
}

// Rename fails when configured to, otherwise delegates.
func (f *FaultFs) Rename(oldname, newname string) error {
	f.mu.Lock()
	err := f.RenameErr
	match := f.RenameMatch
	f.mu.Unlock()

	if err != nil && (match == "" || strings.Contains(newname, match)) {
		return err
	}
	if rerr := f.Fs.Rename(oldname, newname); rerr != nil {
		return rerr
	}
	f.mu.Lock()
	f.renames = append(f.renames, newname)
	f.mu.Unlock()
	return nil
}

// Renames returns the targets of successful renames.
func (f *FaultFs) Renames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.renames...)
}

// OpenFile wraps the returned file so writes can be intercepted.
func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: file, fs: f}, nil
}

// Create wraps the returned file so writes can be intercepted.
func (f *FaultFs) Create(name string) (afero.File, error) {
	file, err := f.Fs.Create(name)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: file, fs: f}, nil
}

type faultFile struct {
	afero.File
	fs *FaultFs
}

func (f *faultFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	f.fs.writes++
	n := f.fs.writes
	hook := f.fs.OnWrite
	werr := f.fs.WriteErr
	f.fs.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if werr != nil {
		return 0, werr
	}
	return f.File.Write(p)
}
