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

// Package cli defines the structures to store the CLI flags used by the tripwire binary.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	tripwire "github.com/google/osv-tripwire"
	"github.com/google/osv-tripwire/collaborator"
	"github.com/google/osv-tripwire/config"
	tripwirefs "github.com/google/osv-tripwire/fs"
	"github.com/google/osv-tripwire/log"
	"github.com/google/osv-tripwire/purl"
	"github.com/google/osv-tripwire/report"
	"github.com/google/osv-tripwire/result"
	"github.com/google/osv-tripwire/signature"
	"github.com/google/osv-tripwire/stats"
	"github.com/google/osv-tripwire/walker"
	"golang.org/x/term"
)

// Array is a type to be passed to flag.Var that supports arrays passed as repeated flags,
// e.g. ./tripwire -o json=out.json -o text=out.txt
type Array []string

func (i *Array) String() string {
	return strings.Join(*i, ",")
}

// Set gets called whenever a new instance of a flag is read during CLI arg parsing.
// For example, in the case of -o foo -o bar the library will call arr.Set("foo") then arr.Set("bar").
func (i *Array) Set(value string) error {
	*i = append(*i, strings.TrimSpace(value))
	return nil
}

// Get returns the underlying []string value stored by this flag struct.
func (i *Array) Get() any {
	return i
}

// StringListFlag is a type to be passed to flag.Var that supports list flags passed as repeated
// flags, e.g. ./tripwire --skip-dirs a --skip-dirs b,c the library will call Set("a") then Set("b,c").
type StringListFlag struct {
	set          bool
	value        []string
	defaultValue []string
}

// NewStringListFlag creates a new StringListFlag with the given default value.
func NewStringListFlag(defaultValue []string) StringListFlag {
	return StringListFlag{defaultValue: defaultValue}
}

// Set gets called whenever a new instance of a flag is read during CLI arg parsing.
func (s *StringListFlag) Set(x string) error {
	s.value = append(s.value, strings.Split(x, ",")...)
	s.set = true
	return nil
}

// Get returns the underlying []string value stored by this flag struct.
func (s *StringListFlag) Get() any {
	return s.GetSlice()
}

// GetSlice returns the underlying []string value stored by this flag struct.
func (s *StringListFlag) GetSlice() []string {
	if s.set {
		return s.value
	}
	return s.defaultValue
}

func (s *StringListFlag) String() string {
	if len(s.value) == 0 {
		return ""
	}
	return fmt.Sprint(s.value)
}

// Reset resets the flag to its default value.
func (s *StringListFlag) Reset() {
	s.set = false
	s.value = nil
}

// Flags contains a field for all the cli flags that can be set.
// Nil list fields leave the configuration file or built-in default in place.
type Flags struct {
	Root              string
	ConfigFile        string
	SignatureFiles    []string
	Keyring           string
	Output            Array
	DirsToSkip        []string
	FilesToSkip       []string
	SkipDirGlob       string
	Extensions        []string
	Workers           int
	Downstream        bool
	Collaborators     []string
	DownstreamTimeout string
	ListSignatures    bool
	PrintVersion      bool
	Verbose           bool
	NoColor           bool
}

var supportedOutputFormats = []string{"text", "json"}

// ValidateFlags validates the passed command line flags.
func ValidateFlags(flags *Flags) error {
	if flags.PrintVersion || flags.ListSignatures {
		return nil
	}
	if flags.Root == "" {
		return errors.New("no directory to scan, pass it as an argument or with --root")
	}
	if flags.Workers < 0 {
		return fmt.Errorf("--workers must not be negative, got %d", flags.Workers)
	}
	if err := validateOutput(flags.Output); err != nil {
		return fmt.Errorf("-o %w", err)
	}
	if err := validateMultiStringArg(flags.DirsToSkip); err != nil {
		return fmt.Errorf("--skip-dirs: %w", err)
	}
	if err := validateMultiStringArg(flags.FilesToSkip); err != nil {
		return fmt.Errorf("--skip-files: %w", err)
	}
	if err := validateMultiStringArg(flags.Extensions); err != nil {
		return fmt.Errorf("--extensions: %w", err)
	}
	if err := validateMultiStringArg(flags.Collaborators); err != nil {
		return fmt.Errorf("--collaborators: %w", err)
	}
	if err := validateGlob(flags.SkipDirGlob); err != nil {
		return fmt.Errorf("--skip-dir-glob: %w", err)
	}
	for _, p := range flags.FilesToSkip {
		if err := validateGlob(p); err != nil {
			return fmt.Errorf("--skip-files: %w", err)
		}
	}
	if flags.DownstreamTimeout != "" {
		if _, err := time.ParseDuration(flags.DownstreamTimeout); err != nil {
			return fmt.Errorf("--downstream-timeout: %w", err)
		}
	}
	if flags.Keyring != "" && len(flags.SignatureFiles) == 0 && flags.ConfigFile == "" {
		return errors.New("--signatures-keyring cannot be used without --signatures or --config")
	}
	return nil
}

func validateOutput(output []string) error {
	for _, item := range output {
		o := strings.Split(item, "=")
		if len(o) != 2 || o[1] == "" {
			return errors.New("invalid output format, should follow a format like -o json=result.json -o text=result.txt")
		}
		if !slices.Contains(supportedOutputFormats, o[0]) {
			return fmt.Errorf("output format %q not recognized, supported formats are %v", o[0], supportedOutputFormats)
		}
	}
	return nil
}

func validateMultiStringArg(arg []string) error {
	for _, item := range arg {
		if len(item) == 0 {
			return errors.New("list item cannot be left empty")
		}
	}
	return nil
}

func validateGlob(arg string) error {
	if arg == "" {
		return nil
	}
	_, err := glob.Compile(arg, '/')
	return err
}

// GetConfig merges the configuration file, the environment and the flags,
// in this order of increasing precedence.
func (f *Flags) GetConfig(lookupEnv func(string) (string, bool)) (*config.Config, error) {
	cfg := &config.Config{}
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, err
	}
	if f.SignatureFiles != nil {
		cfg.SignatureFiles = f.SignatureFiles
	}
	if f.Keyring != "" {
		cfg.Keyring = f.Keyring
	}
	if f.DirsToSkip != nil {
		cfg.ExcludeDirs = f.DirsToSkip
	}
	if f.FilesToSkip != nil {
		cfg.ExcludeFiles = f.FilesToSkip
	}
	if f.SkipDirGlob != "" {
		cfg.SkipDirGlob = f.SkipDirGlob
	}
	if f.Extensions != nil {
		cfg.Extensions = f.Extensions
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	if f.Downstream {
		cfg.Downstream = true
	}
	if f.Collaborators != nil {
		cfg.Collaborators = f.Collaborators
	}
	if f.DownstreamTimeout != "" {
		cfg.DownstreamTimeout = f.DownstreamTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetScanConfig constructs a tripwire scan config from the provided CLI
// flags, the configuration file and the environment.
func (f *Flags) GetScanConfig(lookupEnv func(string) (string, bool)) (*tripwire.ScanConfig, error) {
	cfg, err := f.GetConfig(lookupEnv)
	if err != nil {
		return nil, err
	}
	sigs, err := cfg.LoadSignatures()
	if err != nil {
		return nil, err
	}
	set, err := signature.NewSet(sigs)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	sc := &tripwire.ScanConfig{
		ScanRoot:   tripwirefs.RealFSScanRoot(f.Root),
		Signatures: set,
		Walker: walker.Options{
			ExcludedDirs:         cfg.ExcludeDirs,
			ExcludedFilePatterns: cfg.ExcludeFiles,
			SkipDirGlob:          cfg.SkipDirGlob,
			ManifestNames:        cfg.ManifestNames,
			LockfileNames:        cfg.LockfileNames,
			Extensions:           cfg.Extensions,
		},
		Workers:           cfg.Workers,
		DownstreamTimeout: timeout,
	}
	if sc.ScanRoot.Path != "" {
		if sc.ScanRoot, err = sc.ScanRoot.WithAbsolutePath(); err != nil {
			return nil, err
		}
	}
	if cfg.Downstream {
		if sc.Downstream, err = cfg.SelectedCollaborators(); err != nil {
			return nil, err
		}
		if sc.Downstream == nil {
			sc.Downstream = []collaborator.Collaborator{}
		}
	}
	return sc, nil
}

// WriteScanResults writes the text report to stdout and the results to the
// files specified by the -o flags.
func (f *Flags) WriteScanResults(res *result.ScanResult, stdout io.Writer, collector stats.Collector) error {
	if collector == nil {
		collector = stats.NoopCollector{}
	}
	var buf bytes.Buffer
	err := report.WriteText(&buf, res, report.Options{Color: f.colorOutput(stdout)})
	if err == nil {
		_, err = stdout.Write(buf.Bytes())
	}
	collector.AfterResultsExported("stdout", buf.Len(), err)
	if err != nil {
		return err
	}

	for _, item := range f.Output {
		o := strings.Split(item, "=")
		oFormat, oPath := o[0], o[1]
		log.Infof("Writing scan results to %s", oPath)
		var out bytes.Buffer
		switch oFormat {
		case "json":
			err = report.WriteJSON(&out, res)
		default:
			err = report.WriteText(&out, res, report.Options{})
		}
		if err == nil {
			err = os.WriteFile(oPath, out.Bytes(), 0644)
		}
		collector.AfterResultsExported("file", out.Len(), err)
		if err != nil {
			return fmt.Errorf("writing %s report: %w", oFormat, err)
		}
	}
	return nil
}

// WriteSignatures prints the signature set, one package URL per compromised version.
func WriteSignatures(w io.Writer, set *signature.Set) error {
	var buf bytes.Buffer
	for _, s := range set.Signatures() {
		for _, v := range s.Versions {
			fmt.Fprintln(&buf, purl.PackageURL{Type: s.Ecosystem, Name: s.Name, Version: v})
		}
	}
	fmt.Fprintf(&buf, "%d signatures\n", set.Len())
	_, err := w.Write(buf.Bytes())
	return err
}

func (f *Flags) colorOutput(w io.Writer) bool {
	if f.NoColor {
		return false
	}
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
