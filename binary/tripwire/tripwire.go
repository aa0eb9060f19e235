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

// The tripwire command scans a source tree for known compromised package
// versions and optionally hands off to downstream scanners.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/osv-tripwire/binary/cli"
	"github.com/google/osv-tripwire/binary/scanrunner"
	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/result"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	var subcommand string
	if len(args) >= 2 {
		subcommand = args[1]
	}
	rest := args[1:]
	if subcommand == "scan" {
		rest = args[2:]
	}
	// Assume 'scan' if subcommand is not recognized/specified.
	flags, err := parseFlags(rest)
	if err != nil {
		log.Errorf("Error parsing CLI args: %v", err)
		return result.StatusToolError.ExitCode()
	}
	return scanrunner.RunScan(flags)
}

func parseFlags(args []string) (*cli.Flags, error) {
	fs := flag.NewFlagSet("tripwire", flag.ContinueOnError)
	root := fs.String("root", "", `The directory to scan. Can also be passed as the only positional argument; defaults to "."`)
	configFile := fs.String("config", "", "Path of a YAML or TOML configuration file")
	var signatureFiles cli.StringListFlag
	fs.Var(&signatureFiles, "signatures", "Comma-separated list of signature feed files (YAML, JSON or name@version lines) replacing the built-in set")
	keyring := fs.String("signatures-keyring", "", "OpenPGP keyring every signature feed must carry a detached signature (<file>.asc or <file>.sig) from")
	var output cli.Array
	fs.Var(&output, "o", "Additional report outputs, e.g. -o json=result.json -o text=result.txt")
	var dirsToSkip cli.StringListFlag
	fs.Var(&dirsToSkip, "skip-dirs", "Comma-separated list of directory names never descended into (default .git,node_modules,.hg,.svn)")
	var filesToSkip cli.StringListFlag
	fs.Var(&filesToSkip, "skip-files", "Comma-separated list of globs excluding source files from the scan (default **/*.lock,**/*-lock.json,**/*-lock.yaml,**/*.min.js)")
	skipDirGlob := fs.String("skip-dir-glob", "", "If the glob matches a directory path relative to the root, it will be skipped")
	var extensions cli.StringListFlag
	fs.Var(&extensions, "extensions", "Comma-separated list of source file extensions to scan (default .json,.js,.ts,.mjs,.cjs)")
	workers := fs.Int("workers", 0, "Number of files matched in parallel; 0 uses one per CPU")
	downstream := fs.Bool("downstream", false, "Run the downstream vulnerability scanners after a clean result")
	var collaborators cli.StringListFlag
	fs.Var(&collaborators, "collaborators", "Comma-separated list of downstream scanners to run (default: every non opt-in one)")
	downstreamTimeout := fs.String("downstream-timeout", "", `Timeout of each downstream scanner run, e.g. "10m"`)
	listSignatures := fs.Bool("list-signatures", false, "Print the effective signature set and exit")
	printVersion := fs.Bool("version", false, "Print the tripwire version and exit")
	verbose := fs.Bool("verbose", false, "Enable debug logs")
	noColor := fs.Bool("no-color", false, "Never color the report, even on a terminal")

	// Flags may follow the positional directory.
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	switch len(positional) {
	case 0:
	case 1:
		if *root != "" {
			return nil, fmt.Errorf("root given both as --root %q and as argument %q", *root, positional[0])
		}
		*root = positional[0]
	default:
		return nil, fmt.Errorf("expected at most one directory to scan, got %v", positional)
	}
	if *root == "" && !rootFlagSet(fs) {
		*root = "."
	}

	flags := &cli.Flags{
		Root:              *root,
		ConfigFile:        *configFile,
		SignatureFiles:    signatureFiles.GetSlice(),
		Keyring:           *keyring,
		Output:            output,
		DirsToSkip:        dirsToSkip.GetSlice(),
		FilesToSkip:       filesToSkip.GetSlice(),
		SkipDirGlob:       *skipDirGlob,
		Extensions:        extensions.GetSlice(),
		Workers:           *workers,
		Downstream:        *downstream,
		Collaborators:     collaborators.GetSlice(),
		DownstreamTimeout: *downstreamTimeout,
		ListSignatures:    *listSignatures,
		PrintVersion:      *printVersion,
		Verbose:           *verbose,
		NoColor:           *noColor,
	}
	if err := cli.ValidateFlags(flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// rootFlagSet reports whether --root was passed explicitly, including as "".
func rootFlagSet(fs *flag.FlagSet) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "root" {
			set = true
		}
	})
	return set
}
