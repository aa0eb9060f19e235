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
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/osv-tripwire/collaborator"
	"github.com/google/osv-tripwire/result"
)

type call struct {
	Name string
	Args []string
	Dir  string
}

func TestRunnerRun(t *testing.T) {
	var calls []call
	fake := func(_ context.Context, name string, args []string, dir string) (collaborator.Output, error) {
		calls = append(calls, call{name, args, dir})
		switch name {
		case "npm":
			return collaborator.Output{ExitCode: 1}, nil
		case "trivy":
			return collaborator.Output{ExitCode: collaborator.ExitNotFound}, errors.New("executable file not found")
		case "semgrep":
			return collaborator.Output{ExitCode: 1}, errors.New("fork failed")
		}
		return collaborator.Output{}, nil
	}
	steps := []collaborator.Step{
		{Collaborator: collaborator.Collaborator{Name: "trivy", Command: "trivy"}, Dir: "."},
		{Collaborator: collaborator.Collaborator{Name: "npm-audit", Command: "npm", Args: []string{"audit"}}, Dir: "web"},
		{Collaborator: collaborator.Collaborator{Name: "yarn-audit", Command: "yarn"}, Dir: "."},
		{Collaborator: collaborator.Collaborator{Name: "semgrep", Command: "semgrep"}, Dir: "."},
	}
	r := &collaborator.Runner{Root: "/src", Exec: fake}

	got := r.Run(context.Background(), steps)
	want := []result.DownstreamResult{
		{Name: "trivy", ExitCode: collaborator.ExitNotFound, Error: "trivy is not installed"},
		{Name: "npm-audit (web)", ExitCode: 1},
		{Name: "yarn-audit", ExitCode: 0},
		{Name: "semgrep", ExitCode: 1, Error: "fork failed"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Run() returned unexpected diff (-want +got):\n%s", diff)
	}
	wantCalls := []call{
		{"trivy", nil, "/src"},
		{"npm", []string{"audit"}, filepath.Join("/src", "web")},
		{"yarn", nil, "/src"},
		{"semgrep", nil, "/src"},
	}
	if diff := cmp.Diff(wantCalls, calls); diff != "" {
		t.Errorf("Run() calls returned unexpected diff (-want +got):\n%s", diff)
	}
	if status := result.Decide(nil, nil, got); status != result.StatusVulnerabilitiesFound {
		t.Errorf("Decide() = %v, want %v", status, result.StatusVulnerabilitiesFound)
	}
}

func TestExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	tests := []struct {
		desc     string
		name     string
		args     []string
		timeout  time.Duration
		wantCode int
		wantErr  bool
	}{
		{desc: "success", name: "sh", args: []string{"-c", "echo ok"}, wantCode: 0},
		{desc: "non-zero exit", name: "sh", args: []string{"-c", "exit 3"}, wantCode: 3},
		{desc: "not found", name: "tripwire-no-such-binary-12345", wantCode: collaborator.ExitNotFound, wantErr: true},
		{desc: "timeout", name: "sleep", args: []string{"5"}, timeout: 50 * time.Millisecond, wantCode: collaborator.ExitTimeout, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			ctx := context.Background()
			if tc.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tc.timeout)
				defer cancel()
			}
			out, err := collaborator.Exec(ctx, tc.name, tc.args, "")
			if (err != nil) != tc.wantErr {
				t.Errorf("Exec(%s %v) error: %v, want error: %v", tc.name, tc.args, err, tc.wantErr)
			}
			if out.ExitCode != tc.wantCode {
				t.Errorf("Exec(%s %v) exit code = %d, want %d", tc.name, tc.args, out.ExitCode, tc.wantCode)
			}
		})
	}
}
