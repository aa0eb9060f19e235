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

package matcher_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/osv-tripwire/matcher"
	"github.com/google/osv-tripwire/result"
	"github.com/google/osv-tripwire/signature"
	"github.com/google/osv-tripwire/walker"
)

func defaultSet(t *testing.T) *signature.Set {
	t.Helper()
	set, err := signature.NewSet(signature.Default())
	if err != nil {
		t.Fatalf("NewSet(Default()): %v", err)
	}
	return set
}

func TestScan(t *testing.T) {
	set := defaultSet(t)
	manifest := walker.Candidate{Path: "web/package.json", Category: walker.Manifest}
	other := walker.Candidate{Path: "src/install.js", Category: walker.Other}

	tests := []struct {
		desc      string
		candidate walker.Candidate
		content   string
		want      []result.Finding
		wantErr   error
	}{
		{
			desc:      "package.json declaration",
			candidate: manifest,
			content: `{
  "name": "web",
  "devDependencies": {
    "eslint-config-prettier": "8.10.1",
    "prettier": "3.0.0"
  }
}
`,
			want: []result.Finding{{
				Path:      "web/package.json",
				Line:      4,
				Text:      `"eslint-config-prettier": "8.10.1",`,
				Package:   "eslint-config-prettier",
				Version:   "8.10.1",
				Ecosystem: "npm",
				Category:  "manifest",
			}},
		},
		{
			desc:      "clean manifest",
			candidate: manifest,
			content:   `{"devDependencies": {"eslint-config-prettier": "8.10.0"}}`,
			want:      []result.Finding{},
		},
		{
			desc:      "several lines in a script",
			candidate: other,
			content:   "// pinned: synckit@0.11.9\nrequire('x');\r\nconst v = 'got-fetch@5.1.11';\n",
			want: []result.Finding{
				{Path: "src/install.js", Line: 1, Text: "// pinned: synckit@0.11.9", Package: "synckit", Version: "0.11.9", Ecosystem: "npm", Category: "other"},
				{Path: "src/install.js", Line: 3, Text: "const v = 'got-fetch@5.1.11';", Package: "got-fetch", Version: "5.1.11", Ecosystem: "npm", Category: "other"},
			},
		},
		{
			desc:      "UTF-8 BOM",
			candidate: other,
			content:   "\xEF\xBB\xBFis@5.0.0",
			want: []result.Finding{
				{Path: "src/install.js", Line: 1, Text: "is@5.0.0", Package: "is", Version: "5.0.0", Ecosystem: "npm", Category: "other"},
			},
		},
		{
			desc:      "UTF-16LE with BOM",
			candidate: other,
			content:   "\xFF\xFEi\x00s\x00@\x003\x00.\x003\x00.\x001\x00",
			want: []result.Finding{
				{Path: "src/install.js", Line: 1, Text: "is@3.3.1", Package: "is", Version: "3.3.1", Ecosystem: "npm", Category: "other"},
			},
		},
		{
			desc:      "NUL byte",
			candidate: other,
			content:   "is@3.3.1\x00\x01\x02",
			wantErr:   matcher.ErrBinary,
		},
		{
			desc:      "invalid UTF-8",
			candidate: other,
			content:   "is@3.3.1 \xff\xfe\xfd",
			wantErr:   matcher.ErrBinary,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := matcher.Scan(context.Background(), tc.candidate, strings.NewReader(tc.content), set)
			if !cmp.Equal(err, tc.wantErr, cmpopts.EquateErrors()) {
				t.Fatalf("Scan() error: got %v, want %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Scan() returned unexpected diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScanReadError(t *testing.T) {
	errRead := errors.New("disk on fire")
	c := walker.Candidate{Path: "a.js", Category: walker.Other}
	_, err := matcher.Scan(context.Background(), c, iotest.ErrReader(errRead), defaultSet(t))
	if !errors.Is(err, errRead) {
		t.Errorf("Scan() error: got %v, want %v", err, errRead)
	}
}

func TestScanEmptySet(t *testing.T) {
	set, err := signature.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet(nil): %v", err)
	}
	c := walker.Candidate{Path: "package-lock.json", Category: walker.Lockfile}
	got, err := matcher.Scan(context.Background(), c, strings.NewReader(`{"packages": {"node_modules/is": {"version": "3.3.1"}}}`), set)
	if err != nil {
		t.Fatalf("Scan(): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan() with empty set = %v, want no findings", got)
	}
}

func TestScanIsDeterministic(t *testing.T) {
	set := defaultSet(t)
	c := walker.Candidate{Path: "a.js", Category: walker.Other}
	content := strings.Repeat("is@3.3.1 synckit@0.11.9\nnothing here\n", 50)
	first, err := matcher.Scan(context.Background(), c, strings.NewReader(content), set)
	if err != nil {
		t.Fatalf("Scan(): %v", err)
	}
	for range 5 {
		again, err := matcher.Scan(context.Background(), c, strings.NewReader(content), set)
		if err != nil {
			t.Fatalf("Scan(): %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("Scan() is not deterministic (-first +again):\n%s", diff)
		}
	}
	if len(first) != 50 {
		t.Errorf("Scan() returned %d findings, want 50", len(first))
	}
}
