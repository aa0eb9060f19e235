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

package collaborator_test

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/osv-tripwire/collaborator"
	tripwirefs "github.com/google/osv-tripwire/fs"
)

func names(cs []collaborator.Collaborator) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestSelect(t *testing.T) {
	tests := []struct {
		desc    string
		names   []string
		want    []string
		wantErr bool
	}{
		{
			desc: "defaults skip opt-in scanners",
			want: []string{"trivy", "npm-audit", "yarn-audit", "bundle-audit", "pip-audit", "trufflehog", "semgrep"},
		},
		{
			desc:  "explicit names keep registry order",
			names: []string{"license_finder", "npm-audit"},
			want:  []string{"npm-audit", "license_finder"},
		},
		{
			desc:    "unknown name",
			names:   []string{"snyk"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := collaborator.Select(collaborator.Registry, tc.names)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Select(%v) error: %v, want error: %v", tc.names, err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, names(got)); diff != "" {
				t.Errorf("Select(%v) returned unexpected diff (-want +got):\n%s", tc.names, diff)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	fsys := fstest.MapFS{
		"package-lock.json":                {},
		"web/yarn.lock":                    {},
		"web/package-lock.json":            {},
		"api/requirements.txt":             {},
		"api/pyproject.toml":               {},
		"node_modules/x/package-lock.json": {},
		"vendor/bundle/Gemfile.lock":       {},
	}
	registry := []collaborator.Collaborator{
		{Name: "always", Command: "a"},
		{Name: "npm-audit", Markers: []string{"package-lock.json"}, Command: "npm"},
		{Name: "yarn-audit", Markers: []string{"yarn.lock"}, Command: "yarn"},
		{Name: "pip-audit", Markers: []string{"requirements.txt", "pyproject.toml"}, Command: "pip-audit"},
		{Name: "bundle-audit", Markers: []string{"Gemfile.lock"}, Command: "bundle-audit"},
	}

	steps, err := collaborator.Plan(&tripwirefs.ScanRoot{FS: fsys}, []string{"node_modules", "vendor"}, registry)
	if err != nil {
		t.Fatalf("Plan(): %v", err)
	}
	type step struct{ Name, Dir string }
	var got []step
	for _, s := range steps {
		got = append(got, step{s.Name, s.Dir})
	}
	want := []step{
		{"always", "."},
		{"npm-audit", "."},
		{"npm-audit", "web"},
		{"yarn-audit", "web"},
		{"pip-audit", "api"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Plan() returned unexpected diff (-want +got):\n%s", diff)
	}
}
