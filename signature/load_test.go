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

package signature_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/osv-tripwire/signature"
)

func TestDefault(t *testing.T) {
	sigs := signature.Default()
	var names []string
	for _, s := range sigs {
		names = append(names, s.Name)
	}
	want := []string{
		"eslint-config-prettier",
		"eslint-plugin-prettier",
		"synckit",
		"@pkgr/core",
		"napi-postinstall",
		"got-fetch",
		"is",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Default() names returned unexpected diff (-want +got):\n%s", diff)
	}
	if _, err := signature.NewSet(sigs); err != nil {
		t.Errorf("NewSet(Default()): %v", err)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		entry   string
		want    signature.Signature
		wantErr bool
	}{
		{
			entry: "synckit@0.11.9",
			want:  signature.Signature{Name: "synckit", Versions: []string{"0.11.9"}, Ecosystem: "npm"},
		},
		{
			entry: "@pkgr/core@0.2.8",
			want:  signature.Signature{Name: "@pkgr/core", Versions: []string{"0.2.8"}, Ecosystem: "npm"},
		},
		{
			entry: "pkg:npm/%40pkgr/core@0.2.8",
			want:  signature.Signature{Name: "@pkgr/core", Versions: []string{"0.2.8"}, Ecosystem: "npm"},
		},
		{
			entry: "pkg:pypi/requests@2.99.0",
			want:  signature.Signature{Name: "requests", Versions: []string{"2.99.0"}, Ecosystem: "pypi"},
		},
		{entry: "synckit", wantErr: true},
		{entry: "@pkgr/core", wantErr: true},
		{entry: "synckit@", wantErr: true},
		{entry: "pkg:npm/synckit", wantErr: true},
		{entry: "pkg:cargo/serde@1.0.0", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.entry, func(t *testing.T) {
			got, err := signature.ParseEntry(tc.entry)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseEntry(%q) error: %v, want error: %v", tc.entry, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseEntry(%q) returned unexpected diff (-want +got):\n%s", tc.entry, diff)
			}
		})
	}
}

func TestParseEntries(t *testing.T) {
	got, err := signature.ParseEntries("  is@3.3.1\n\tsynckit@0.11.9  ")
	if err != nil {
		t.Fatalf("ParseEntries(): %v", err)
	}
	want := []signature.Signature{
		{Name: "is", Versions: []string{"3.3.1"}, Ecosystem: "npm"},
		{Name: "synckit", Versions: []string{"0.11.9"}, Ecosystem: "npm"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseEntries() returned unexpected diff (-want +got):\n%s", diff)
	}
	if got, err := signature.ParseEntries(""); err != nil || len(got) != 0 {
		t.Errorf("ParseEntries(\"\") = %v, %v, want empty", got, err)
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		desc     string
		filename string
		content  string
		want     []signature.Signature
		wantErr  bool
	}{
		{
			desc:     "yaml feed",
			filename: "feed.yaml",
			content: `signatures:
  - name: synckit
    versions: ["0.11.9"]
  - name: requests
    ecosystem: pypi
    versions:
      - 2.99.0
  - purl: pkg:gem/rest-client@1.6.13
`,
			want: []signature.Signature{
				{Name: "synckit", Versions: []string{"0.11.9"}},
				{Name: "requests", Versions: []string{"2.99.0"}, Ecosystem: "pypi"},
				{Name: "rest-client", Versions: []string{"1.6.13"}, Ecosystem: "gem"},
			},
		},
		{
			desc:     "json feed",
			filename: "feed.json",
			content:  `{"signatures": [{"name": "is", "versions": ["3.3.1", "5.0.0"]}]}`,
			want:     []signature.Signature{{Name: "is", Versions: []string{"3.3.1", "5.0.0"}}},
		},
		{
			desc:     "text feed",
			filename: "feed.txt",
			content:  "# compromised on 2025-07-18\n\nsynckit@0.11.9\n  pkg:npm/got-fetch@5.1.12  \n",
			want: []signature.Signature{
				{Name: "synckit", Versions: []string{"0.11.9"}, Ecosystem: "npm"},
				{Name: "got-fetch", Versions: []string{"5.1.12"}, Ecosystem: "npm"},
			},
		},
		{
			desc:     "empty yaml feed",
			filename: "feed.yml",
			content:  "signatures: []\n",
			want:     []signature.Signature{},
		},
		{
			desc:     "yaml entry without versions",
			filename: "feed.yaml",
			content:  "signatures:\n  - name: synckit\n",
			wantErr:  true,
		},
		{
			desc:     "malformed yaml",
			filename: "feed.yaml",
			content:  "signatures: [\n",
			wantErr:  true,
		},
		{
			desc:     "text entry without version",
			filename: "feed",
			content:  "synckit\n",
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.filename)
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("os.WriteFile(%q): %v", path, err)
			}
			got, err := signature.LoadFile(path)
			if (err != nil) != tc.wantErr {
				t.Fatalf("LoadFile(%q) error: %v, want error: %v", path, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("LoadFile(%q) returned unexpected diff (-want +got):\n%s", path, diff)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := signature.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() on missing file succeeded, want error")
	}
}
