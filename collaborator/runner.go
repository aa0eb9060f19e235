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

package collaborator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/result"
)

// Exit codes reported for scanners that could not run to completion.
const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Output is what a single command run produced.
type Output struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// ExecFunc runs name with args in dir.
type ExecFunc func(ctx context.Context, name string, args []string, dir string) (Output, error)

// Exec runs a command and captures its output. A missing executable yields
// ExitNotFound and a context deadline ExitTimeout.
func Exec(ctx context.Context, name string, args []string, dir string) (Output, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	if err == nil {
		return out, nil
	}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.ExitCode = ExitTimeout
	case errors.Is(err, exec.ErrNotFound):
		out.ExitCode = ExitNotFound
	case errors.As(err, &exitErr):
		// A scanner that reports problems through its exit code is not an
		// execution error.
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	default:
		out.ExitCode = 1
	}
	return out, err
}

// Runner runs planned steps one after another.
type Runner struct {
	// Host path of the scan root.
	Root string
	// Per step timeout. Zero means no timeout.
	Timeout time.Duration
	// Defaults to Exec.
	Exec ExecFunc
}

// Run executes every step and returns their outcomes in plan order. Steps
// that cannot be started are returned with Error set and are logged as
// warnings; they never make the scan fail.
func (r *Runner) Run(ctx context.Context, steps []Step) []result.DownstreamResult {
	run := r.Exec
	if run == nil {
		run = Exec
	}
	out := make([]result.DownstreamResult, 0, len(steps))
	for _, s := range steps {
		name := s.Name
		if s.Dir != "." {
			name = s.Name + " (" + s.Dir + ")"
		}
		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		log.Infof("Running %s: %s %v", name, s.Command, s.Args)
		o, err := run(stepCtx, s.Command, s.Args, filepath.Join(r.Root, filepath.FromSlash(s.Dir)))
		cancel()

		res := result.DownstreamResult{Name: name, ExitCode: o.ExitCode}
		switch {
		case o.ExitCode == ExitNotFound:
			res.Error = fmt.Sprintf("%s is not installed", s.Command)
		case o.ExitCode == ExitTimeout:
			res.Error = fmt.Sprintf("timed out after %v", r.Timeout)
		case err != nil:
			res.Error = err.Error()
		}
		if res.Error != "" {
			log.Warnf("Collaborator %s did not run: %s", name, res.Error)
		} else if o.ExitCode != 0 {
			log.Warnf("Collaborator %s reported problems (exit code %d)", name, o.ExitCode)
		}
		log.Debugf("%s stdout:\n%s\n%s stderr:\n%s", name, o.Stdout, name, o.Stderr)
		out = append(out, res)
	}
	return out
}
