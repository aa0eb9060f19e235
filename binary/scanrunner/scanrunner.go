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

// Package scanrunner provides the main function for running a scan with the tripwire binary.
package scanrunner

import (
	"context"
	"io"
	"os"

	tripwire "github.com/google/osv-tripwire"
	"github.com/google/osv-tripwire/binary/cli"
	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/result"
	"github.com/google/osv-tripwire/version"
)

// RunScan executes the scan with the given CLI flags
// and returns the exit code passed to os.Exit() in the main binary.
func RunScan(flags *cli.Flags) int {
	return Run(context.Background(), flags, os.Stdout, os.LookupEnv)
}

// Run is RunScan with explicit output and environment.
func Run(ctx context.Context, flags *cli.Flags, stdout io.Writer, lookupEnv func(string) (string, bool)) int {
	if flags.PrintVersion {
		log.Infof("tripwire v%s", version.ScannerVersion)
		return result.StatusClean.ExitCode()
	}

	if flags.Verbose {
		log.SetLogger(log.NewDefaultLogger(os.Stderr, true))
	}

	cfg, err := flags.GetScanConfig(lookupEnv)
	if err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return result.StatusToolError.ExitCode()
	}

	if flags.ListSignatures {
		if err := cli.WriteSignatures(stdout, cfg.Signatures); err != nil {
			log.Errorf("Writing signatures: %v", err)
			return result.StatusToolError.ExitCode()
		}
		return result.StatusClean.ExitCode()
	}

	log.Infof("Scanning %s with %d signatures", cfg.ScanRoot.Path, cfg.Signatures.Len())
	if cfg.Downstream != nil {
		log.Infof("Downstream scanners: %d", len(cfg.Downstream))
	}

	res := tripwire.New().Scan(ctx, cfg)

	log.Infof("Scan status: %s", res.Status)
	if err := flags.WriteScanResults(res, stdout, cfg.Stats); err != nil {
		log.Errorf("Error writing scan results: %v", err)
		// Compromised packages outrank a failed export.
		if res.Status == result.StatusCompromisedPackagesFound {
			return res.Status.ExitCode()
		}
		return result.StatusToolError.ExitCode()
	}
	return res.Status.ExitCode()
}
