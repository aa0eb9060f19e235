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

package signature

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/osv-tripwire/purl"
	"gopkg.in/yaml.v3"
)

//go:embed data/default.yaml
var defaultFeed []byte

// ErrNoSignatures describes an empty effective signature set. Scans still
// run with it, so callers surface it as a warning.
var ErrNoSignatures = errors.New("no signatures configured")

// feed is the YAML layout of a signature feed.
type feed struct {
	Signatures []entry `yaml:"signatures"`
}

// entry is either a full signature or a single package url.
type entry struct {
	Signature `yaml:",inline"`
	PURL      string `yaml:"purl,omitempty"`
}

// Default returns the signatures shipped with the binary.
func Default() []Signature {
	sigs, err := ParseYAML(defaultFeed)
	if err != nil {
		// The embedded feed is covered by tests.
		panic(fmt.Sprintf("embedded signature feed is invalid: %v", err))
	}
	return sigs
}

// LoadFile reads a signature feed from disk. Files ending in .yaml, .yml or
// .json are parsed as structured feeds, everything else as one entry per line.
func LoadFile(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signature feed: %w", err)
	}
	var sigs []Signature
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		sigs, err = ParseYAML(data)
	default:
		sigs, err = ParseText(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sigs, nil
}

// ParseYAML parses a structured feed:
//
//	signatures:
//	  - name: synckit
//	    versions: ["0.11.9"]
//	  - purl: pkg:npm/%40pkgr/core@0.2.8
func ParseYAML(data []byte) ([]Signature, error) {
	var f feed
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing signature feed: %w", err)
	}
	sigs := make([]Signature, 0, len(f.Signatures))
	for i, e := range f.Signatures {
		if e.PURL != "" {
			s, err := fromPURL(e.PURL)
			if err != nil {
				return nil, fmt.Errorf("signature #%d: %w", i+1, err)
			}
			sigs = append(sigs, s)
			continue
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("signature #%d: %w", i+1, err)
		}
		sigs = append(sigs, e.Signature)
	}
	return sigs, nil
}

// ParseText parses a line-based feed. Blank lines and lines starting with
// '#' are ignored; every other line is a single entry as accepted by
// ParseEntry.
func ParseText(data []byte) ([]Signature, error) {
	var sigs []Signature
	s := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sig, err := ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		sigs = append(sigs, sig)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// ParseEntries parses a whitespace separated list of entries, as used by
// the TRIPWIRE_SIGNATURES environment variable.
func ParseEntries(s string) ([]Signature, error) {
	var sigs []Signature
	for _, f := range strings.Fields(s) {
		sig, err := ParseEntry(f)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// ParseEntry parses one npm "name@version" entry or a package url.
// The version separator is the last '@', so scoped names work:
// "@pkgr/core@0.2.8".
func ParseEntry(s string) (Signature, error) {
	if purl.IsPURL(s) {
		return fromPURL(s)
	}
	i := strings.LastIndex(s, "@")
	if i <= 0 {
		return Signature{}, fmt.Errorf("%q: %w", s, ErrNoVersions)
	}
	sig := Signature{Name: s[:i], Versions: []string{s[i+1:]}, Ecosystem: purl.TypeNPM}
	if err := sig.Validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

func fromPURL(s string) (Signature, error) {
	p, err := purl.FromString(s)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Name: p.Name, Versions: []string{p.Version}, Ecosystem: p.Type}, nil
}
