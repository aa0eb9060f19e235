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

// Package result provides the ScanResult struct and the decision of the
// overall scan status.
package result

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/osv-tripwire/walker"
)

// Status is the overall outcome of a scan. Each status maps to a distinct
// process exit code so that CI pipelines can branch on it.
type Status int

// Status values.
const (
	// StatusClean means no compromised package was found.
	StatusClean Status = iota
	// StatusVulnerabilitiesFound means the detector was clean but a
	// downstream scanner reported a problem.
	StatusVulnerabilitiesFound
	// StatusToolError means the scan could not run, e.g. the root is missing.
	StatusToolError
	// StatusCompromisedPackagesFound means at least one finding was made.
	StatusCompromisedPackagesFound
)

// ExitCode returns the process exit code for the status.
func (s Status) ExitCode() int {
	switch s {
	case StatusClean:
		return 0
	case StatusVulnerabilitiesFound:
		return 1
	case StatusCompromisedPackagesFound:
		return 3
	default:
		return 2
	}
}

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "CLEAN"
	case StatusVulnerabilitiesFound:
		return "VULNERABILITIES_FOUND"
	case StatusToolError:
		return "TOOL_ERROR"
	case StatusCompromisedPackagesFound:
		return "COMPROMISED_PACKAGES_FOUND"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Finding is one line of one file that contains a compromised package version.
type Finding struct {
	// Slash separated path relative to the scan root.
	Path string `json:"path"`
	// 1-based line number.
	Line int `json:"line"`
	// The matching line, trimmed of surrounding whitespace.
	Text      string `json:"text"`
	Package   string `json:"package"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	Category  string `json:"category"`
}

// String renders the finding as "<path>:<line>:<text>".
func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%s", f.Path, f.Line, f.Text)
}

// Warning is a non-fatal problem encountered during the scan.
type Warning struct {
	// Empty for warnings that concern the whole scan.
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Message
	}
	return w.Path + ": " + w.Message
}

// DownstreamResult is the outcome of one external scanner run.
type DownstreamResult struct {
	Name     string `json:"name"`
	ExitCode int    `json:"exit_code"`
	// Set if the scanner could not be started.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the scanner reported a problem.
func (d DownstreamResult) Failed() bool {
	return d.Error == "" && d.ExitCode != 0
}

// ScanResult stores the results of a scan incl. status, findings and warnings.
type ScanResult struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Root      string    `json:"root"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    Status    `json:"status"`
	// Set for StatusToolError.
	FailureReason  string             `json:"failure_reason,omitempty"`
	SignatureCount int                `json:"signature_count"`
	FilesInspected int                `json:"files_inspected"`
	Findings       []Finding          `json:"findings"`
	Warnings       []Warning          `json:"warnings"`
	Downstream     []DownstreamResult `json:"downstream,omitempty"`
}

var categoryRank = func() map[string]int {
	m := map[string]int{}
	for i, c := range walker.Categories {
		m[c.String()] = i
	}
	return m
}()

// Aggregate concatenates per-file finding lists. parts must be in discovery
// order; the result is additionally ordered by category so that manifests
// come before lockfiles and other files.
func Aggregate(parts [][]Finding) []Finding {
	out := []Finding{}
	for _, p := range parts {
		out = append(out, p...)
	}
	slices.SortStableFunc(out, func(a, b Finding) int {
		return cmp.Compare(categoryRank[a.Category], categoryRank[b.Category])
	})
	return out
}

// Decide returns the overall status. A root error wins over everything;
// findings win over downstream results, which are only consulted when the
// detector was clean.
func Decide(rootErr error, findings []Finding, downstream []DownstreamResult) Status {
	if rootErr != nil {
		return StatusToolError
	}
	if len(findings) > 0 {
		return StatusCompromisedPackagesFound
	}
	for _, d := range downstream {
		if d.Failed() {
			return StatusVulnerabilitiesFound
		}
	}
	return StatusClean
}
