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

// Package testcollector provides an implementation of stats.Collector that
// stores recorded metrics for verification in tests.
package testcollector

import (
	"sync"
	"time"

	"github.com/google/osv-tripwire/stats"
)

// Collector implements the stats.Collector interface and simply stores metrics
// by path.
type Collector struct {
	stats.NoopCollector

	mu           sync.Mutex
	visited      []string
	scannedStats map[string]*stats.FileScannedStats
	scanStatus   string
}

// New returns a new test Collector with maps initialized.
func New() *Collector {
	return &Collector{
		scannedStats: make(map[string]*stats.FileScannedStats),
	}
}

// AfterFileVisited records the visited path.
func (c *Collector) AfterFileVisited(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visited = append(c.visited, path)
}

// AfterFileScanned stores the metrics for a matched file.
func (c *Collector) AfterFileScanned(filestats *stats.FileScannedStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scannedStats[filestats.Path] = filestats
}

// AfterScan stores the final scan status.
func (c *Collector) AfterScan(_ time.Duration, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanStatus = status
}

// Visited returns the number of visited candidates.
func (c *Collector) Visited() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.visited)
}

// Findings returns the number of findings recorded for path, or -1 if the
// path was never scanned.
func (c *Collector) Findings(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.scannedStats[path]; ok {
		return s.Findings
	}
	return -1
}

// ScanError returns the error recorded for path, if any.
func (c *Collector) ScanError(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.scannedStats[path]; ok {
		return s.Error
	}
	return nil
}

// ScanStatus returns the status passed to AfterScan.
func (c *Collector) ScanStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanStatus
}
