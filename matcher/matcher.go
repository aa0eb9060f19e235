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

// Package matcher finds compromised package versions in the contents of a
// single candidate file.
package matcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/purl"
	"github.com/google/osv-tripwire/result"
	"github.com/google/osv-tripwire/signature"
	"github.com/google/osv-tripwire/walker"
	"golang.org/x/text/encoding/unicode"
)

// ErrBinary is returned for content that is not text. Such files are skipped
// without failing the scan.
var ErrBinary = errors.New("binary or undecodable content")

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8 << 10

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Scan reads c's contents from r and returns one finding per line that holds
// a signature of set. Lockfiles whose format splits name and version across
// lines are additionally resolved structurally. Scan only depends on its
// arguments and is safe for concurrent use.
func Scan(ctx context.Context, c walker.Candidate, r io.Reader, set *signature.Set) ([]result.Finding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	return Text(c, text, set), nil
}

// Text matches already decoded text. See Scan.
func Text(c walker.Candidate, text string, set *signature.Set) []result.Finding {
	lines := strings.Split(text, "\n")
	byLine := map[int]result.Finding{}
	for _, m := range set.Matches(text) {
		byLine[m.Line] = newFinding(c, m.Line, m.Text, m.Signature.Name, m.Signature.Versions[0], m.Signature.Ecosystem)
	}
	if res, ok := resolvers[path.Base(c.Path)]; ok && c.Category == walker.Lockfile && set.Len() > 0 {
		hits, err := res([]byte(text), set)
		if err != nil {
			log.Debugf("%s: structured lockfile parsing failed, using line matches only: %v", c.Path, err)
		}
		for _, h := range hits {
			if _, ok := byLine[h.line]; ok || h.line < 1 || h.line > len(lines) {
				continue
			}
			byLine[h.line] = newFinding(c, h.line, lines[h.line-1], h.name, h.version, purl.TypeNPM)
		}
	}

	findings := make([]result.Finding, 0, len(byLine))
	for _, f := range byLine {
		findings = append(findings, f)
	}
	slices.SortFunc(findings, func(a, b result.Finding) int { return a.Line - b.Line })
	return findings
}

func newFinding(c walker.Candidate, line int, text, name, version, ecosystem string) result.Finding {
	return result.Finding{
		Path:      c.Path,
		Line:      line,
		Text:      strings.TrimSpace(strings.TrimSuffix(text, "\r")),
		Package:   name,
		Version:   version,
		Ecosystem: ecosystem,
		Category:  c.Category.String(),
	}
}

// decode returns data as a string. UTF-16 is accepted if it starts with a
// byte order mark; everything else must be valid UTF-8 without NUL bytes in
// the first sniffLen bytes.
func decode(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE) {
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBinary, err)
		}
		return string(out), nil
	}
	data = bytes.TrimPrefix(data, bomUTF8)
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return "", ErrBinary
	}
	if !utf8.Valid(data) {
		return "", ErrBinary
	}
	return string(data), nil
}
