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

package scanrunner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/osv-tripwire/binary/cli"
	"github.com/google/osv-tripwire/binary/scanrunner"
)

func noEnv(string) (string, bool) { return "", false }

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			t.Fatalf("os.MkdirAll(%q): %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("os.WriteFile(%q): %v", path, err)
		}
	}
	return dir
}

func TestRun(t *testing.T) {
	testCases := []struct {
		desc       string
		files      map[string]string
		flags      *cli.Flags
		wantExit   int
		wantStdout []string
	}{
		{
			desc: "compromised manifest",
			files: map[string]string{
				"package.json": "{\n  \"dependencies\": {\n    \"eslint-config-prettier\": \"8.10.1\"\n  }\n}\n",
			},
			flags:    &cli.Flags{},
			wantExit: 3,
			wantStdout: []string{
				`package.json:3:"eslint-config-prettier": "8.10.1"`,
				"FAIL: 1 compromised package finding",
			},
		},
		{
			desc: "clean tree",
			files: map[string]string{
				"package.json": "{\n  \"dependencies\": {\n    \"eslint-config-prettier\": \"8.10.2\"\n  }\n}\n",
			},
			flags:      &cli.Flags{},
			wantExit:   0,
			wantStdout: []string{"PASS: no compromised packages found"},
		},
		{
			desc: "excluded node_modules",
			files: map[string]string{
				"node_modules/is/package.json": `{"name": "is", "version": "3.3.1"}`,
				"index.js":                     "require('is')\n",
			},
			flags:      &cli.Flags{},
			wantExit:   0,
			wantStdout: []string{"PASS"},
		},
		{
			desc: "unwritable output keeps the compromised status",
			files: map[string]string{
				"package.json": "{\n  \"dependencies\": {\n    \"synckit\": \"0.11.9\"\n  }\n}\n",
			},
			flags:      &cli.Flags{Output: []string{"json=missing/dir/result.json"}},
			wantExit:   3,
			wantStdout: []string{"FAIL: 1 compromised package finding"},
		},
		{
			desc:     "unwritable output of a clean scan",
			files:    map[string]string{"index.js": "require('synckit')\n"},
			flags:    &cli.Flags{Output: []string{"json=missing/dir/result.json"}},
			wantExit: 2,
		},
		{
			desc:     "missing root",
			files:    map[string]string{},
			flags:    &cli.Flags{Root: "does-not-exist"},
			wantExit: 2,
		},
		{
			desc:     "invalid configuration",
			files:    map[string]string{},
			flags:    &cli.Flags{ConfigFile: "does-not-exist.yaml"},
			wantExit: 2,
		},
		{
			desc:       "list signatures",
			files:      map[string]string{},
			flags:      &cli.Flags{ListSignatures: true},
			wantExit:   0,
			wantStdout: []string{"pkg:npm/synckit@0.11.9", "7 signatures"},
		},
		{
			desc:     "version",
			files:    map[string]string{},
			flags:    &cli.Flags{PrintVersion: true},
			wantExit: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			dir := writeTree(t, tc.files)
			if tc.flags.Root == "" {
				tc.flags.Root = dir
			} else {
				tc.flags.Root = filepath.Join(dir, tc.flags.Root)
			}
			for i, o := range tc.flags.Output {
				format, path, _ := strings.Cut(o, "=")
				tc.flags.Output[i] = format + "=" + filepath.Join(dir, filepath.FromSlash(path))
			}
			if tc.flags.ConfigFile != "" {
				tc.flags.ConfigFile = filepath.Join(dir, tc.flags.ConfigFile)
			}
			tc.flags.NoColor = true

			var stdout bytes.Buffer
			if got := scanrunner.Run(context.Background(), tc.flags, &stdout, noEnv); got != tc.wantExit {
				t.Errorf("scanrunner.Run(%+v) = %d, want %d\nstdout:\n%s", tc.flags, got, tc.wantExit, stdout.String())
			}
			for _, want := range tc.wantStdout {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout does not contain %q:\n%s", want, stdout.String())
				}
			}
		})
	}
}

func TestRunScan_JSONOutput(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"yarn.lock": "got-fetch@^5.1.0:\n  version \"5.1.12\"\n",
	})
	resultFile := filepath.Join(t.TempDir(), "result.json")
	flags := &cli.Flags{Root: dir, Output: []string{"json=" + resultFile}, NoColor: true}

	if gotExit := scanrunner.RunScan(flags); gotExit != 3 {
		t.Errorf("scanrunner.RunScan(%v) returned unexpected exit code, want 3 got %d", flags, gotExit)
	}

	output, err := os.ReadFile(resultFile)
	if err != nil {
		t.Fatalf("os.ReadFile(%v): %v", resultFile, err)
	}
	var res struct {
		Status         string `json:"status"`
		FilesInspected int    `json:"files_inspected"`
		Findings       []struct {
			Path     string `json:"path"`
			Line     int    `json:"line"`
			Category string `json:"category"`
		} `json:"findings"`
	}
	if err := json.Unmarshal(output, &res); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", output, err)
	}
	if res.Status != "COMPROMISED_PACKAGES_FOUND" {
		t.Errorf("Unexpected scan status, want COMPROMISED_PACKAGES_FOUND got %v", res.Status)
	}
	if res.FilesInspected != 1 {
		t.Errorf("Unexpected files inspected, want 1 got %d", res.FilesInspected)
	}
	if len(res.Findings) != 1 || res.Findings[0].Path != "yarn.lock" || res.Findings[0].Category != "lockfile" {
		t.Errorf("Unexpected findings: %+v", res.Findings)
	}
}
