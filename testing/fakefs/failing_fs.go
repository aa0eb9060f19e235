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

// Package fakefs provides fake filesystem implementations for testing.
package fakefs

import (
	"io/fs"

	tripwirefs "github.com/google/osv-tripwire/fs"
)

// FailingFS wraps an FS and makes Open or ReadDir fail for selected paths,
// e.g. to simulate files without read permission.
type FailingFS struct {
	tripwirefs.FS

	// Path to the error returned by Open.
	OpenErrs map[string]error
	// Path to the error returned by ReadDir.
	ReadDirErrs map[string]error
}

// Open returns the configured error for name, or opens it from the wrapped FS.
func (f *FailingFS) Open(name string) (fs.File, error) {
	if err, ok := f.OpenErrs[name]; ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return f.FS.Open(name)
}

// ReadDir returns the configured error for name, or lists it from the wrapped FS.
func (f *FailingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if err, ok := f.ReadDirErrs[name]; ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return f.FS.ReadDir(name)
}

var _ tripwirefs.FS = &FailingFS{}
