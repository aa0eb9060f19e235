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

// Package stats contains interfaces and utilities relating to the collection of
// statistics from tripwire scans.
package stats

import (
	"time"
)

// FileScannedStats describes the outcome of matching one candidate file.
type FileScannedStats struct {
	Path     string
	Category string
	Findings int
	// Set if the file was skipped, e.g. because it could not be opened or
	// because it is binary.
	Error error
	Runtime time.Duration
}

// Collector is a component which is notified when certain events occur. It can be implemented with
// different metric backends to enable monitoring of tripwire.
//
// Collector methods may be called from several matching workers at once;
// implementations must be safe for concurrent use.
type Collector interface {
	// AfterFileVisited is called for every path the walker yields as a candidate.
	AfterFileVisited(path string)
	// AfterFileScanned is called once the matcher is done with a candidate.
	AfterFileScanned(filestats *FileScannedStats)
	// AfterScan is called once at the end of a scan with the final status name.
	AfterScan(runtime time.Duration, status string)
	// AfterResultsExported is called after results have been exported. destination should merely be
	// a category of where the result was written to (e.g. 'stdout', 'file'), not the precise location.
	AfterResultsExported(destination string, bytes int, err error)
}

// NoopCollector implements Collector by doing nothing.
type NoopCollector struct{}

// AfterFileVisited implements Collector by doing nothing.
func (c NoopCollector) AfterFileVisited(path string) {}

// AfterFileScanned implements Collector by doing nothing.
func (c NoopCollector) AfterFileScanned(filestats *FileScannedStats) {}

// AfterScan implements Collector by doing nothing.
func (c NoopCollector) AfterScan(runtime time.Duration, status string) {}

// AfterResultsExported implements Collector by doing nothing.
func (c NoopCollector) AfterResultsExported(destination string, bytes int, err error) {}
