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

// Package signature holds the set of known-compromised package versions and
// the line matcher compiled from it.
package signature

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"deps.dev/util/semver"
	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/purl"
)

var (
	// ErrNoName is returned for a signature without a package name.
	ErrNoName = errors.New("signature has no package name")
	// ErrNoVersions is returned for a signature without versions.
	ErrNoVersions = errors.New("signature has no versions")
	// ErrUnknownEcosystem is returned for an ecosystem with no known notations.
	ErrUnknownEcosystem = errors.New("unknown signature ecosystem")
)

// Signature is one compromised package together with its compromised versions.
// Names and versions are matched literally and case-sensitively.
type Signature struct {
	Name      string   `yaml:"name" toml:"name" json:"name"`
	Versions  []string `yaml:"versions" toml:"versions" json:"versions"`
	Ecosystem string   `yaml:"ecosystem,omitempty" toml:"ecosystem" json:"ecosystem,omitempty"`
}

// String returns e.g. "eslint-config-prettier@{8.10.1,9.1.1}".
func (s Signature) String() string {
	if len(s.Versions) == 1 {
		return s.Name + "@" + s.Versions[0]
	}
	return s.Name + "@{" + strings.Join(s.Versions, ",") + "}"
}

// Validate checks the signature for configuration errors.
func (s Signature) Validate() error {
	if s.Name == "" {
		return ErrNoName
	}
	if len(s.Versions) == 0 || slices.Contains(s.Versions, "") {
		return fmt.Errorf("%s: %w", s.Name, ErrNoVersions)
	}
	if _, ok := notations[s.ecosystem()]; !ok {
		return fmt.Errorf("%s: %w %q", s.Name, ErrUnknownEcosystem, s.Ecosystem)
	}
	return nil
}

func (s Signature) ecosystem() string {
	if s.Ecosystem == "" {
		return purl.TypeNPM
	}
	return strings.ToLower(s.Ecosystem)
}

// Characters that may be part of a package name or a version. A match must
// not be glued to one of these, so "is@3.3.1" does not fire on "this@3.3.1"
// and "8.10.1" does not fire on "8.10.10" or "8.10.1.2". A dot only
// continues a version when a letter or digit follows it, so a sentence
// ending in "is@3.3.1." still matches.
const (
	nameBoundary    = `(?:^|[^A-Za-z0-9._-])`
	versionBoundary = `(?:$|[^A-Za-z0-9._+-]|\.(?:$|[^A-Za-z0-9]))`
)

// A notation renders the regular expression for one textual way of writing
// "package at version". Both arguments are already quoted; versions is an
// alternation of quoted versions. The single capture group is the version.
type notation func(name, versions string) string

var (
	atNotation = func(name, versions string) string {
		return nameBoundary + name + `@(` + versions + `)` + versionBoundary
	}
	jsonNotation = func(name, versions string) string {
		return `"` + name + `"\s*:\s*"(` + versions + `)"`
	}
	pinNotation = func(name, versions string) string {
		return nameBoundary + name + `\s*==\s*(` + versions + `)` + versionBoundary
	}
	gemNotation = func(name, versions string) string {
		return nameBoundary + name + ` \((` + versions + `)\)`
	}

	notations = map[string][]notation{
		purl.TypeNPM:  {atNotation, jsonNotation},
		purl.TypePyPi: {atNotation, pinNotation},
		purl.TypeGem:  {atNotation, gemNotation},
	}

	versionSystems = map[string]semver.System{
		purl.TypeNPM:  semver.NPM,
		purl.TypePyPi: semver.PyPI,
		purl.TypeGem:  semver.RubyGems,
	}
)

type compiled struct {
	sig      Signature
	patterns []*regexp.Regexp
}

// Set is an immutable, ordered collection of signatures.
type Set struct {
	sigs     []compiled
	versions map[string]map[string]bool // "ecosystem/name" -> version set
}

// LineMatch is one line of text that contains a signature.
type LineMatch struct {
	// 1-based line number.
	Line int
	// The line without its line terminator.
	Text string
	// The signature that matched, narrowed to the version found on the line.
	Signature Signature
}

// NewSet validates and compiles the given signatures. Signatures with the same
// ecosystem and name are merged; the order of first appearance is kept.
// An empty input yields an empty set, which callers should report.
func NewSet(sigs []Signature) (*Set, error) {
	merged := []Signature{}
	index := map[string]int{}
	for _, s := range sigs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		s.Ecosystem = s.ecosystem()
		key := s.Ecosystem + "/" + s.Name
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			merged = append(merged, Signature{Name: s.Name, Ecosystem: s.Ecosystem, Versions: slices.Clone(s.Versions)})
			continue
		}
		for _, v := range s.Versions {
			if !slices.Contains(merged[i].Versions, v) {
				merged[i].Versions = append(merged[i].Versions, v)
			}
		}
	}

	set := &Set{versions: map[string]map[string]bool{}}
	for _, s := range merged {
		warnUnparsableVersions(s)
		quoted := make([]string, 0, len(s.Versions))
		for _, v := range s.Versions {
			quoted = append(quoted, regexp.QuoteMeta(v))
		}
		alt := strings.Join(quoted, "|")
		c := compiled{sig: s}
		for _, n := range notations[s.Ecosystem] {
			re, err := regexp.Compile(n(regexp.QuoteMeta(s.Name), alt))
			if err != nil {
				return nil, fmt.Errorf("compiling signature %s: %w", s, err)
			}
			c.patterns = append(c.patterns, re)
		}
		set.sigs = append(set.sigs, c)
		vs := map[string]bool{}
		for _, v := range s.Versions {
			vs[v] = true
		}
		set.versions[s.Ecosystem+"/"+s.Name] = vs
	}
	return set, nil
}

func warnUnparsableVersions(s Signature) {
	sys, ok := versionSystems[s.Ecosystem]
	if !ok {
		return
	}
	for _, v := range s.Versions {
		if _, err := sys.Parse(v); err != nil {
			log.Warnf("signature %s: version %q is not a valid %s version and will only match literally", s.Name, v, s.Ecosystem)
		}
	}
}

// Len returns the number of signatures in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sigs)
}

// Signatures returns a copy of the signatures in set order.
func (s *Set) Signatures() []Signature {
	if s == nil {
		return nil
	}
	out := make([]Signature, 0, len(s.sigs))
	for _, c := range s.sigs {
		out = append(out, Signature{Name: c.sig.Name, Ecosystem: c.sig.Ecosystem, Versions: slices.Clone(c.sig.Versions)})
	}
	return out
}

// Contains reports whether version of the named package is compromised.
// Used by the structured lockfile resolvers, which already know the package
// name and version.
func (s *Set) Contains(ecosystem, name, version string) bool {
	if s == nil {
		return false
	}
	return s.versions[strings.ToLower(ecosystem)+"/"+name][version]
}

// MatchLine returns the first signature, in set order, that occurs on line.
func (s *Set) MatchLine(line string) (Signature, bool) {
	if s == nil {
		return Signature{}, false
	}
	for _, c := range s.sigs {
		if !strings.Contains(line, c.sig.Name) {
			continue
		}
		for _, re := range c.patterns {
			if m := re.FindStringSubmatch(line); m != nil {
				return Signature{Name: c.sig.Name, Ecosystem: c.sig.Ecosystem, Versions: []string{m[1]}}, true
			}
		}
	}
	return Signature{}, false
}

// Matches scans text line by line and returns one LineMatch per line that
// contains at least one signature.
func (s *Set) Matches(text string) []LineMatch {
	var out []LineMatch
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if sig, ok := s.MatchLine(line); ok {
			out = append(out, LineMatch{Line: i + 1, Text: line, Signature: sig})
		}
	}
	return out
}
