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

// Package tripwire provides an interface for scanning a source tree for
// known-compromised package versions.
package tripwire

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/osv-tripwire/collaborator"
	tripwirefs "github.com/google/osv-tripwire/fs"
	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/matcher"
	"github.com/google/osv-tripwire/result"
	"github.com/google/osv-tripwire/signature"
	"github.com/google/osv-tripwire/stats"
	"github.com/google/osv-tripwire/version"
	"github.com/google/osv-tripwire/walker"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Scanner is the main entry point of the scanner.
type Scanner struct{}

// New creates a new scanner instance.
func New() *Scanner { return &Scanner{} }

// ScanConfig stores the settings of a scan run. It is built once and not
// modified while the scan runs.
type ScanConfig struct {
	// The directory tree to scan.
	ScanRoot *tripwirefs.ScanRoot
	// Compromised package versions to look for. A nil or empty set still
	// scans, but the result carries a warning.
	Signatures *signature.Set
	// Which files to inspect.
	Walker walker.Options
	// Number of files matched in parallel. Zero means one per CPU.
	Workers int
	// Optional: External scanners to run after a clean result. Nil disables
	// the downstream stage.
	Downstream []collaborator.Collaborator
	// Optional: Per collaborator timeout.
	DownstreamTimeout time.Duration
	// Optional: Replaces process execution for collaborators.
	Exec collaborator.ExecFunc
	// Optional: Stats allows to enter a metric hook.
	Stats stats.Collector
}

// ScanResult stores the results of a scan.
type ScanResult = result.ScanResult

// Scan walks the scan root, matches every candidate file against the
// signature set and decides the overall status. It never returns nil.
func (Scanner) Scan(ctx context.Context, config *ScanConfig) (sr *ScanResult) {
	collector := config.Stats
	if collector == nil {
		collector = stats.NoopCollector{}
	}
	sr = &ScanResult{
		ID:             uuid.NewString(),
		Version:        version.ScannerVersion,
		StartTime:      time.Now(),
		SignatureCount: config.Signatures.Len(),
		Findings:       []result.Finding{},
		Warnings:       []result.Warning{},
	}
	if config.ScanRoot != nil {
		sr.Root = config.ScanRoot.Path
	}
	defer func() {
		sr.EndTime = time.Now()
		collector.AfterScan(sr.EndTime.Sub(sr.StartTime), sr.Status.String())
	}()

	if sr.SignatureCount == 0 {
		log.Warnf("%v: the scan cannot report any finding", signature.ErrNoSignatures)
		sr.Warnings = append(sr.Warnings, result.Warning{Message: signature.ErrNoSignatures.Error()})
	}

	var setupErr error
	if err := config.ScanRoot.Validate(); err != nil {
		setupErr = multierr.Append(setupErr, err)
	}
	target, err := walker.NewTarget(config.ScanRoot, config.Walker)
	if err != nil {
		setupErr = multierr.Append(setupErr, err)
	}
	if setupErr != nil {
		return fail(sr, setupErr)
	}

	var candidates []walker.Candidate
	for c, err := range walker.All(ctx, target) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(sr, ctxErr)
			}
			log.Warnf("%v", err)
			sr.Warnings = append(sr.Warnings, result.Warning{Message: err.Error()})
			continue
		}
		collector.AfterFileVisited(c.Path)
		candidates = append(candidates, c)
	}

	parts, warnings, err := matchAll(ctx, config, collector, candidates)
	if err != nil {
		return fail(sr, err)
	}
	sr.Warnings = append(sr.Warnings, warnings...)
	sr.FilesInspected = len(candidates)
	sr.Findings = result.Aggregate(parts)
	if sr.FilesInspected == 0 {
		log.Warnf("0 files inspected under %s", displayRoot(config.ScanRoot))
		sr.Warnings = append(sr.Warnings, result.Warning{Message: "0 files inspected"})
	}

	// Downstream scanners only run when the compromised check was clean.
	if len(sr.Findings) == 0 && config.Downstream != nil {
		sr.Downstream, err = runDownstream(ctx, config, target)
		if err != nil {
			log.Warnf("downstream scanners: %v", err)
			sr.Warnings = append(sr.Warnings, result.Warning{Message: "downstream scanners: " + err.Error()})
		}
	}
	sr.Status = result.Decide(nil, sr.Findings, sr.Downstream)
	return sr
}

// fail turns sr into a tool error result. Findings of a failed scan are
// never reported.
func fail(sr *ScanResult, err error) *ScanResult {
	log.Errorf("scan failed: %v", err)
	sr.Status = result.Decide(err, nil, nil)
	sr.FailureReason = err.Error()
	sr.Findings = []result.Finding{}
	sr.FilesInspected = 0
	return sr
}

// matchAll matches candidates on a bounded number of goroutines. Every
// candidate owns one slot of the returned slices, so the merged output does
// not depend on scheduling.
func matchAll(ctx context.Context, config *ScanConfig, collector stats.Collector, candidates []walker.Candidate) ([][]result.Finding, []result.Warning, error) {
	parts := make([][]result.Finding, len(candidates))
	skipped := make([]error, len(candidates))

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		g.Go(func() error {
			start := time.Now()
			findings, err := matchFile(gctx, config, c)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			parts[i], skipped[i] = findings, err
			collector.AfterFileScanned(&stats.FileScannedStats{
				Path:     c.Path,
				Category: c.Category.String(),
				Findings: len(findings),
				Error:    err,
				Runtime:  time.Since(start),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []result.Warning
	for i, err := range skipped {
		if err == nil {
			continue
		}
		msg := err.Error()
		if errors.Is(err, matcher.ErrBinary) {
			msg = "skipped: " + matcher.ErrBinary.Error()
		}
		log.Warnf("%s: %s", candidates[i].Path, msg)
		warnings = append(warnings, result.Warning{Path: candidates[i].Path, Message: msg})
	}
	return parts, warnings, nil
}

func matchFile(ctx context.Context, config *ScanConfig, c walker.Candidate) ([]result.Finding, error) {
	f, err := config.ScanRoot.FS.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("skipped: %w", err)
	}
	defer f.Close()
	return matcher.Scan(ctx, c, f, config.Signatures)
}

func runDownstream(ctx context.Context, config *ScanConfig, target *walker.Target) ([]result.DownstreamResult, error) {
	excluded := config.Walker.ExcludedDirs
	if excluded == nil {
		excluded = walker.DefaultExcludedDirs
	}
	steps, err := collaborator.Plan(target.Root, excluded, config.Downstream)
	if err != nil {
		return nil, err
	}
	if config.ScanRoot.IsVirtual() && config.Exec == nil {
		return nil, errors.New("cannot run external scanners on a virtual scan root")
	}
	r := &collaborator.Runner{Root: config.ScanRoot.Path, Timeout: config.DownstreamTimeout, Exec: config.Exec}
	return r.Run(ctx, steps), nil
}

func displayRoot(r *tripwirefs.ScanRoot) string {
	if r.IsVirtual() {
		return "<virtual>"
	}
	return r.Path
}
