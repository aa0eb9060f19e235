// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fs provides the filesystem interface used by tripwire scans and
// the scan root helpers built on it.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrEmptyRoot is returned when no scan root path was given.
	ErrEmptyRoot = errors.New("scan root path is empty")
	// ErrRootNotFound is returned when the scan root does not exist.
	ErrRootNotFound = errors.New("scan root does not exist")
	// ErrRootNotDir is returned when the scan root is not a directory.
	ErrRootNotDir = errors.New("scan root is not a directory")
	// ErrRootUnreadable is returned when the scan root cannot be listed.
	ErrRootUnreadable = errors.New("scan root is not readable")
)

// FS is a filesystem interface that allows the opening of files, reading of
// directories, and performing stat on files.
//
// FS implementations may return errors for Open, ReadDir and Stat on single
// paths; the walker decides whether such an error is fatal.
type FS interface {
	fs.FS
	fs.ReadDirFS
	fs.StatFS
}

// ScanRoot defines the root directory a scan starts from.
type ScanRoot struct {
	// A virtual filesystem for file access, rooted at the scan root.
	FS FS
	// The path of the scan root on the host, used for reporting. Empty if the
	// FS is purely virtual (e.g. an in-memory tree in tests).
	Path string
}

// IsVirtual returns true if the scan root has no real location on disk.
func (r *ScanRoot) IsVirtual() bool {
	return r.Path == ""
}

// WithAbsolutePath returns a copy of the ScanRoot with Path made absolute.
func (r *ScanRoot) WithAbsolutePath() (*ScanRoot, error) {
	if r.IsVirtual() {
		return &ScanRoot{FS: r.FS}, nil
	}
	abs, err := filepath.Abs(r.Path)
	if err != nil {
		return nil, err
	}
	return &ScanRoot{FS: r.FS, Path: abs}, nil
}

// Validate checks that the root can be scanned at all: it must exist, be a
// directory and be listable. The returned error wraps one of the Err* values
// of this package.
func (r *ScanRoot) Validate() error {
	if r == nil || r.FS == nil {
		return ErrEmptyRoot
	}
	info, err := r.FS.Stat(".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, r.display())
		}
		return fmt.Errorf("%w: %s: %w", ErrRootUnreadable, r.display(), err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, r.display())
	}
	if _, err := r.FS.ReadDir("."); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRootUnreadable, r.display(), err)
	}
	return nil
}

func (r *ScanRoot) display() string {
	if r.IsVirtual() {
		return "<virtual>"
	}
	return r.Path
}

// DirFS returns an FS implementation that accesses the real filesystem at the given root.
func DirFS(root string) FS {
	return os.DirFS(root).(FS)
}

// RealFSScanRoot returns a ScanRoot for the given path on the real filesystem.
// An empty path yields a root that fails Validate with ErrEmptyRoot.
func RealFSScanRoot(path string) *ScanRoot {
	if path == "" {
		return &ScanRoot{}
	}
	return &ScanRoot{FS: DirFS(path), Path: path}
}
