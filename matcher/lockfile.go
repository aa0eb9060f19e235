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

package matcher

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/osv-tripwire/purl"
	"github.com/google/osv-tripwire/signature"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// hit is a compromised package found by a structured resolver.
type hit struct {
	line          int
	name, version string
}

// A resolver finds compromised packages in lockfile formats where the name
// and the resolved version are on different lines.
type resolver func(data []byte, set *signature.Set) ([]hit, error)

var resolvers = map[string]resolver{
	"package-lock.json":   packageLock,
	"npm-shrinkwrap.json": packageLock,
	"yarn.lock":           yarnLock,
	"pnpm-lock.yaml":      pnpmLock,
}

var errNotJSON = errors.New("not valid JSON")

// packageLock handles npm lockfiles. lockfileVersion 2 and 3 list every
// installed package under "packages", keyed by its node_modules path;
// version 1 nests "dependencies" objects keyed by name.
func packageLock(data []byte, set *signature.Set) ([]hit, error) {
	if !gjson.ValidBytes(data) {
		return nil, errNotJSON
	}
	loc := &locator{data: data}
	if pkgs := gjson.GetBytes(data, "packages"); pkgs.IsObject() {
		var hits []hit
		loc.seek("packages")
		pkgs.ForEach(func(key, value gjson.Result) bool {
			p := key.String()
			if p == "" {
				// The root project itself.
				return true
			}
			at := loc.seek(p)
			name := value.Get("name").String()
			if name == "" {
				i := strings.LastIndex(p, "node_modules/")
				if i < 0 {
					// Workspace or link target without a name; its version is
					// not a registry version.
					return true
				}
				name = p[i+len("node_modules/"):]
			}
			version := value.Get("version").String()
			if set.Contains(purl.TypeNPM, name, version) {
				hits = append(hits, hit{line: loc.lineOf(loc.find(at, "version", false)), name: name, version: version})
			}
			return true
		})
		return hits, nil
	}
	var hits []hit
	walkV1(loc, gjson.GetBytes(data, "dependencies"), set, &hits)
	return hits, nil
}

func walkV1(loc *locator, deps gjson.Result, set *signature.Set, hits *[]hit) {
	deps.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		at := loc.seek(name)
		version := value.Get("version").String()
		if set.Contains(purl.TypeNPM, name, version) {
			*hits = append(*hits, hit{line: loc.lineOf(loc.find(at, "version", false)), name: name, version: version})
		}
		if nested := value.Get("dependencies"); nested.IsObject() {
			walkV1(loc, nested, set, hits)
		}
		return true
	})
}

// locator maps JSON object keys back to byte offsets. Objects are visited in
// document order, so a forward-only cursor finds each key's own occurrence
// and not an equal key of an earlier "requires" map.
type locator struct {
	data   []byte
	cursor int
}

// seek moves the cursor past the next `"key": {` and returns its offset, or
// -1 if there is none.
func (l *locator) seek(key string) int {
	at := l.find(l.cursor, key, true)
	if at >= 0 {
		l.cursor = at + 1
	}
	return at
}

// find returns the offset of the next `"key":` at or after from. If object
// is set the value must be an object.
func (l *locator) find(from int, key string, object bool) int {
	if from < 0 {
		return -1
	}
	quoted := []byte(`"` + key + `"`)
	for from < len(l.data) {
		i := bytes.Index(l.data[from:], quoted)
		if i < 0 {
			return -1
		}
		at := from + i
		rest := bytes.TrimLeft(l.data[at+len(quoted):], " \t\r\n")
		if r, ok := bytes.CutPrefix(rest, []byte(":")); ok {
			r = bytes.TrimLeft(r, " \t\r\n")
			if !object || bytes.HasPrefix(r, []byte("{")) {
				return at
			}
		}
		from = at + 1
	}
	return -1
}

func (l *locator) lineOf(offset int) int {
	if offset < 0 {
		return 0
	}
	return bytes.Count(l.data[:offset], []byte("\n")) + 1
}

// yarnLock handles both yarn classic and berry lockfiles:
//
//	"@pkgr/core@^0.2.0", "@pkgr/core@^0.2.4":
//	  version "0.2.8"
//
//	"is@npm:^3.3.0":
//	  version: 3.3.1
func yarnLock(data []byte, set *signature.Set) ([]hit, error) {
	var hits []hit
	name := ""
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			name = ""
			if strings.HasSuffix(line, ":") {
				name = yarnEntryName(line)
			}
			continue
		}
		if name == "" {
			continue
		}
		field := strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(field, "version")
		if !ok || rest == "" || (rest[0] != ' ' && rest[0] != ':') {
			continue
		}
		version := strings.Trim(strings.TrimSpace(strings.TrimPrefix(rest, ":")), `"'`)
		if set.Contains(purl.TypeNPM, name, version) {
			hits = append(hits, hit{line: i + 1, name: name, version: version})
		}
		name = ""
	}
	return hits, nil
}

// yarnEntryName returns the package name of a yarn.lock entry header such as
// `"@pkgr/core@^0.2.0", "@pkgr/core@npm:^0.2.4":`.
func yarnEntryName(header string) string {
	spec := strings.TrimSuffix(header, ":")
	spec, _, _ = strings.Cut(spec, ",")
	spec = strings.Trim(strings.TrimSpace(spec), `"`)
	return splitNameAt(spec)
}

// splitNameAt returns the part of "name@rest" before the separating '@'.
// A leading '@' belongs to a scoped name.
func splitNameAt(spec string) string {
	i := strings.Index(spec[min(1, len(spec)):], "@")
	if i < 0 {
		return ""
	}
	return spec[:i+min(1, len(spec))]
}

// pnpmLock handles the keys of the "packages" and "snapshots" maps of
// pnpm-lock.yaml:
//
//	/is@3.3.1:                   (lockfile v6)
//	/is/3.3.1:                   (lockfile v5)
//	is@3.3.1(peer@1.0.0):        (lockfile v9)
func pnpmLock(data []byte, set *signature.Set) ([]hit, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pnpm lockfile: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	root := doc.Content[0]
	var hits []hit
	for i := 0; i+1 < len(root.Content); i += 2 {
		if k := root.Content[i].Value; k != "packages" && k != "snapshots" {
			continue
		}
		pkgs := root.Content[i+1]
		if pkgs.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(pkgs.Content); j += 2 {
			key := pkgs.Content[j]
			name, version := pnpmKey(key.Value)
			if name != "" && set.Contains(purl.TypeNPM, name, version) {
				hits = append(hits, hit{line: key.Line, name: name, version: version})
			}
		}
	}
	return hits, nil
}

// pnpmV5Key matches "name/version" keys, where the version may carry a
// "_peer@x" suffix.
var pnpmV5Key = regexp.MustCompile(`^((?:@[^/@]+/)?[^/@]+)/([0-9][^/]*)$`)

func pnpmKey(key string) (name, version string) {
	key = strings.TrimPrefix(key, "/")
	if i := strings.Index(key, "("); i >= 0 {
		key = key[:i]
	}
	if m := pnpmV5Key.FindStringSubmatch(key); m != nil {
		version, _, _ = strings.Cut(m[2], "_")
		return m[1], version
	}
	if name = splitNameAt(key); name == "" {
		return "", ""
	}
	return name, key[len(name)+1:]
}
