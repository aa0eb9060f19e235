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

// Package walker enumerates the files of a scan root that are candidates for
// signature matching.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	tripwirefs "github.com/google/osv-tripwire/fs"
	"github.com/google/osv-tripwire/log"
)

// Category classifies a candidate file. Categories are scanned and reported
// in the order they are declared here.
type Category int

const (
	// Manifest files declare dependencies, e.g. package.json.
	Manifest Category = iota
	// Lockfile files pin resolved dependencies, e.g. package-lock.json.
	Lockfile
	// Other files are any remaining source or data file whose extension is
	// on the allowlist.
	Other
)

// Categories lists all categories in scan order.
var Categories = []Category{Manifest, Lockfile, Other}

func (c Category) String() string {
	switch c {
	case Manifest:
		return "manifest"
	case Lockfile:
		return "lockfile"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Default walker settings.
var (
	DefaultExcludedDirs         = []string{".git", "node_modules", ".hg", ".svn"}
	DefaultExcludedFilePatterns = []string{"**/*.lock", "**/*-lock.json", "**/*-lock.yaml", "**/*.min.js"}
	DefaultManifestNames        = []string{"package.json", "requirements.txt", "Gemfile", "pyproject.toml"}
	DefaultLockfileNames        = []string{"package-lock.json", "yarn.lock", "npm-shrinkwrap.json", "pnpm-lock.yaml", "Gemfile.lock"}
	DefaultExtensions           = []string{".json", ".js", ".ts", ".mjs", ".cjs"}
)

// Options configure which files a Target selects. Nil fields take the
// package defaults; empty non-nil fields select nothing.
type Options struct {
	// Directory names that are never descended into, at any depth.
	ExcludedDirs []string
	// Globs over the slash separated path relative to the root. They only
	// narrow the "other" category. A pattern without '/' matches the base
	// name; a leading "**/" also matches files directly under the root.
	ExcludedFilePatterns []string
	// Optional glob over the relative path of directories to skip.
	SkipDirGlob string
	ManifestNames []string
	LockfileNames []string
	// File extensions, including the leading dot, of "other" candidates.
	Extensions []string
}

// Candidate is a file selected for matching.
type Candidate struct {
	// Slash separated path relative to the scan root.
	Path     string
	Category Category
}

// Target is the immutable description of what to walk.
type Target struct {
	Root *tripwirefs.ScanRoot

	excludedDirs  map[string]bool
	excludedFiles []glob.Glob
	skipDirGlob   glob.Glob
	manifests     map[string]bool
	lockfiles     map[string]bool
	extensions    map[string]bool
}

// NewTarget compiles opts for walking root.
func NewTarget(root *tripwirefs.ScanRoot, opts Options) (*Target, error) {
	t := &Target{
		Root:         root,
		excludedDirs: toSet(orDefault(opts.ExcludedDirs, DefaultExcludedDirs)),
		manifests:    toSet(orDefault(opts.ManifestNames, DefaultManifestNames)),
		lockfiles:    toSet(orDefault(opts.LockfileNames, DefaultLockfileNames)),
		extensions:   map[string]bool{},
	}
	for _, e := range orDefault(opts.Extensions, DefaultExtensions) {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		t.extensions[strings.ToLower(e)] = true
	}
	for _, p := range orDefault(opts.ExcludedFilePatterns, DefaultExcludedFilePatterns) {
		gs, err := compileFilePattern(p)
		if err != nil {
			return nil, err
		}
		t.excludedFiles = append(t.excludedFiles, gs...)
	}
	if opts.SkipDirGlob != "" {
		g, err := glob.Compile(opts.SkipDirGlob, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid skip directory glob %q: %w", opts.SkipDirGlob, err)
		}
		t.skipDirGlob = g
	}
	return t, nil
}

func compileFilePattern(p string) ([]glob.Glob, error) {
	patterns := []string{p}
	if !strings.Contains(p, "/") {
		patterns = []string{"**/" + p, p}
	} else if rest, ok := strings.CutPrefix(p, "**/"); ok {
		patterns = append(patterns, rest)
	}
	var gs []glob.Glob
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid excluded file pattern %q: %w", p, err)
		}
		gs = append(gs, g)
	}
	return gs, nil
}

func orDefault(v, def []string) []string {
	if v == nil {
		return def
	}
	return v
}

func toSet(v []string) map[string]bool {
	m := make(map[string]bool, len(v))
	for _, s := range v {
		m[s] = true
	}
	return m
}

// Classify returns the category of the file at the given relative path, or
// false if the file is not a candidate at all.
func (t *Target) Classify(p string) (Category, bool) {
	base := path.Base(p)
	switch {
	case t.manifests[base]:
		return Manifest, true
	case t.lockfiles[base]:
		return Lockfile, true
	case !t.extensions[strings.ToLower(path.Ext(base))]:
		return 0, false
	}
	if slices.ContainsFunc(t.excludedFiles, func(g glob.Glob) bool { return g.Match(p) }) {
		return 0, false
	}
	return Other, true
}

func (t *Target) shouldSkipDir(p, name string) bool {
	if t.excludedDirs[name] {
		return true
	}
	return t.skipDirGlob != nil && t.skipDirGlob.Match(p)
}

// Walk returns the candidates of the given category in lexical path order.
// The sequence can be iterated any number of times. Errors it yields concern
// single paths, e.g. an unreadable directory, and do not end the sequence.
// Symbolic links are never followed.
func Walk(ctx context.Context, t *Target, c Category) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		if t.Root == nil || t.Root.FS == nil {
			yield(Candidate{}, tripwirefs.ErrEmptyRoot)
			return
		}
		stopped := false
		err := fs.WalkDir(t.Root.FS, ".", func(p string, d fs.DirEntry, fserr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if fserr != nil {
				log.Debugf("walk %q: %v", p, fserr)
				if !yield(Candidate{}, fmt.Errorf("skipping %s: %w", p, fserr)) {
					stopped = true
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if p != "." && t.shouldSkipDir(p, d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			// Symlinks, devices and other non-regular files.
			if !d.Type().IsRegular() {
				return nil
			}
			if cat, ok := t.Classify(p); !ok || cat != c {
				return nil
			}
			if !yield(Candidate{Path: p, Category: c}, nil) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !stopped && !errors.Is(err, fs.SkipAll) {
			yield(Candidate{}, err)
		}
	}
}

// All returns the candidates of every category, category by category.
// Path errors are yielded once, during the first pass.
func All(ctx context.Context, t *Target) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for i, c := range Categories {
			for cand, err := range Walk(ctx, t, c) {
				if err != nil && i > 0 {
					continue
				}
				if !yield(cand, err) {
					return
				}
			}
		}
	}
}
