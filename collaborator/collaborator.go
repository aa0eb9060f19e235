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

// Package collaborator plans and runs the external scanners that take over
// once the compromised-package check came back clean.
package collaborator

import (
	"fmt"
	"io/fs"
	"path"
	"slices"

	tripwirefs "github.com/google/osv-tripwire/fs"
)

// Collaborator describes one external scanner.
type Collaborator struct {
	Name string `yaml:"name" toml:"name"`
	// Base names of files whose presence anywhere in the tree makes the
	// scanner applicable. No markers means it applies to every tree.
	Markers []string `yaml:"markers" toml:"markers"`
	Command string   `yaml:"command" toml:"command"`
	Args    []string `yaml:"args" toml:"args"`
	// OptIn scanners only run when selected by name.
	OptIn bool `yaml:"opt_in" toml:"opt_in"`
}

// Registry is the built-in set of collaborators.
var Registry = []Collaborator{
	{Name: "trivy", Command: "trivy", Args: []string{"fs", "--exit-code", "1", "--scanners", "vuln", "."}},
	{Name: "npm-audit", Markers: []string{"package-lock.json", "npm-shrinkwrap.json"}, Command: "npm", Args: []string{"audit", "--audit-level=high"}},
	{Name: "yarn-audit", Markers: []string{"yarn.lock"}, Command: "yarn", Args: []string{"audit", "--level", "high"}},
	{Name: "bundle-audit", Markers: []string{"Gemfile.lock"}, Command: "bundle-audit", Args: []string{"check", "--update"}},
	{Name: "pip-audit", Markers: []string{"requirements.txt", "pyproject.toml"}, Command: "pip-audit", Args: []string{"--strict", "."}},
	{Name: "trufflehog", Command: "trufflehog", Args: []string{"filesystem", ".", "--fail", "--no-update"}},
	{Name: "semgrep", Command: "semgrep", Args: []string{"scan", "--error", "--config", "auto"}},
	{Name: "codeql", Command: "codeql", Args: []string{"database", "create", ".codeql-db", "--overwrite"}, OptIn: true},
	{Name: "license_finder", Markers: []string{"package.json", "Gemfile", "requirements.txt"}, Command: "license_finder", OptIn: true},
}

// Step is a collaborator scheduled to run in one directory of the tree.
type Step struct {
	Collaborator
	// Slash separated directory relative to the scan root.
	Dir string
}

// Select returns the collaborators of registry with the given names, in
// registry order. No names selects every collaborator that is not OptIn.
func Select(registry []Collaborator, names []string) ([]Collaborator, error) {
	for _, n := range names {
		if !slices.ContainsFunc(registry, func(c Collaborator) bool { return c.Name == n }) {
			return nil, fmt.Errorf("unknown collaborator %q", n)
		}
	}
	var out []Collaborator
	for _, c := range registry {
		if (len(names) == 0 && !c.OptIn) || slices.Contains(names, c.Name) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Plan walks the tree once and returns the steps to run, in the order of
// collaborators. A marker based collaborator runs once per directory that
// holds one of its markers; others run once at the root.
func Plan(root *tripwirefs.ScanRoot, excludedDirs []string, collaborators []Collaborator) ([]Step, error) {
	markerDirs := map[string][]string{}
	err := fs.WalkDir(root.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are reported by the detector walk.
			return nil
		}
		if d.IsDir() {
			if p != "." && slices.Contains(excludedDirs, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		dir := path.Dir(p)
		if !slices.Contains(markerDirs[name], dir) {
			markerDirs[name] = append(markerDirs[name], dir)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, c := range collaborators {
		if len(c.Markers) == 0 {
			steps = append(steps, Step{Collaborator: c, Dir: "."})
			continue
		}
		var dirs []string
		for _, m := range c.Markers {
			for _, d := range markerDirs[m] {
				if !slices.Contains(dirs, d) {
					dirs = append(dirs, d)
				}
			}
		}
		slices.Sort(dirs)
		for _, d := range dirs {
			steps = append(steps, Step{Collaborator: c, Dir: d})
		}
	}
	return steps, nil
}
