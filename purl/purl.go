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

// Package purl converts between package URLs (https://github.com/package-url/purl-spec)
// and the (ecosystem, name, version) triples used by compromised-package signatures.
// This package is a thin wrapper around an existing open source implementation.
package purl

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
)

// Package URL types that signatures can be declared for.
const (
	// TypeNPM is a pkg:npm purl.
	TypeNPM = "npm"
	// TypePyPi is a pkg:pypi purl.
	TypePyPi = "pypi"
	// TypeGem is a pkg:gem purl.
	TypeGem = "gem"
)

// Prefix is the scheme prefix every package URL starts with.
const Prefix = "pkg:"

// PackageURL is the subset of a package url that identifies one package version.
type PackageURL struct {
	Type    string
	Name    string
	Version string
}

// String returns the canonical package url, e.g. pkg:npm/%40pkgr/core@0.2.8.
func (p PackageURL) String() string {
	namespace, name := "", p.Name
	if p.Type == TypeNPM && strings.HasPrefix(p.Name, "@") {
		if i := strings.Index(p.Name, "/"); i > 0 {
			namespace, name = p.Name[:i], p.Name[i+1:]
		}
	}
	u := packageurl.NewPackageURL(p.Type, namespace, name, p.Version, nil, "")
	return u.ToString()
}

// IsPURL reports whether s looks like a package url.
func IsPURL(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// FromString parses a package url string. npm namespaces are folded back
// into the name ("@scope/name"), which is the form npm tooling writes into
// manifests and lockfiles.
func FromString(s string) (PackageURL, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return PackageURL{}, fmt.Errorf("failed to decode PURL string %q: %w", s, err)
	}
	t := strings.ToLower(p.Type)
	if !validType(t) {
		return PackageURL{}, fmt.Errorf("unsupported PURL type %q in %q", p.Type, s)
	}
	if p.Version == "" {
		return PackageURL{}, fmt.Errorf("PURL %q has no version", s)
	}
	name := p.Name
	if p.Namespace != "" {
		name = p.Namespace + "/" + p.Name
	}
	return PackageURL{Type: t, Name: name, Version: p.Version}, nil
}

func validType(t string) bool {
	switch t {
	case TypeNPM, TypePyPi, TypeGem:
		return true
	default:
		return false
	}
}
