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

// Package report renders scan results for humans and machines.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/osv-tripwire/result"
)

// Options control the text report.
type Options struct {
	// Color enables ANSI styling. Only set it when w is a terminal.
	Color bool
}

var (
	colorFail = lipgloss.Color("#e62129")
	colorPass = lipgloss.Color("#2da44e")
	colorWarn = lipgloss.AdaptiveColor{Light: "136", Dark: "178"}
)

type styles struct {
	banner, finding, warn, pass, fail func(string) string
}

func newStyles(w io.Writer, color bool) styles {
	plain := func(s string) string { return s }
	if !color {
		return styles{plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		banner:  r.NewStyle().Bold(true).Render,
		finding: r.NewStyle().Foreground(colorFail).Render,
		warn:    r.NewStyle().Foreground(colorWarn).Render,
		pass:    r.NewStyle().Bold(true).Foreground(colorPass).Render,
		fail:    r.NewStyle().Bold(true).Foreground(colorFail).Render,
	}
}

// WriteText writes the human readable report: a banner, one
// "<path>:<line>:<text>" line per finding, warnings, downstream results and
// a summary line. The output depends only on res minus its timestamps and ID,
// so two scans of an unchanged tree produce identical bytes.
func WriteText(w io.Writer, res *result.ScanResult, opts Options) error {
	st := newStyles(w, opts.Color)
	bw := bufio.NewWriter(w)

	root := res.Root
	if root == "" {
		root = "<virtual>"
	}
	fmt.Fprintln(bw, st.banner(fmt.Sprintf("tripwire %s: compromised package scan of %s", res.Version, root)))
	fmt.Fprintf(bw, "%d signatures, %d files inspected\n", res.SignatureCount, res.FilesInspected)

	if len(res.Findings) > 0 {
		fmt.Fprintln(bw)
		for _, f := range res.Findings {
			fmt.Fprintln(bw, st.finding(f.String()))
		}
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, st.warn("Warnings:"))
		for _, wn := range res.Warnings {
			fmt.Fprintln(bw, "  "+wn.String())
		}
	}
	if len(res.Downstream) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "Downstream scanners:")
		for _, d := range res.Downstream {
			switch {
			case d.Error != "":
				fmt.Fprintf(bw, "  %s: skipped (%s)\n", d.Name, d.Error)
			case d.ExitCode != 0:
				fmt.Fprintf(bw, "  %s: %s\n", d.Name, st.fail(fmt.Sprintf("exit code %d", d.ExitCode)))
			default:
				fmt.Fprintf(bw, "  %s: %s\n", d.Name, st.pass("ok"))
			}
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, summary(res, st))
	return bw.Flush()
}

func summary(res *result.ScanResult, st styles) string {
	counts := fmt.Sprintf("(%d signatures, %d files inspected)", res.SignatureCount, res.FilesInspected)
	switch res.Status {
	case result.StatusClean:
		return st.pass("PASS") + ": no compromised packages found " + counts
	case result.StatusCompromisedPackagesFound:
		return st.fail("FAIL") + fmt.Sprintf(": %d compromised package %s ", len(res.Findings), plural(len(res.Findings), "finding", "findings")) + counts
	case result.StatusVulnerabilitiesFound:
		n := 0
		for _, d := range res.Downstream {
			if d.Failed() {
				n++
			}
		}
		return st.fail("FAIL") + fmt.Sprintf(": no compromised packages found, %d downstream %s reported problems ", n, plural(n, "scanner", "scanners")) + counts
	default:
		return st.fail("ERROR") + ": " + res.FailureReason
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// WriteJSON writes res as indented JSON.
func WriteJSON(w io.Writer, res *result.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
