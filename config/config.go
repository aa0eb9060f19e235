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

// Package config reads tripwire configuration files and environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/osv-tripwire/collaborator"
	"github.com/google/osv-tripwire/signature"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Environment variables that override configuration file values.
const (
	EnvSignatures   = "TRIPWIRE_SIGNATURES"
	EnvExcludeDirs  = "TRIPWIRE_EXCLUDE_DIRS"
	EnvExcludeFiles = "TRIPWIRE_EXCLUDE_FILES"
	EnvExtensions   = "TRIPWIRE_EXTENSIONS"
)

// Config is the content of a configuration file. Nil list fields mean "use
// the built-in default"; an explicitly empty list is kept empty.
type Config struct {
	// Inline signatures. If neither Signatures nor SignatureFiles is set the
	// built-in signature set is used.
	Signatures     []signature.Signature `yaml:"signatures" toml:"signatures"`
	SignatureFiles []string              `yaml:"signature_files" toml:"signature_files"`
	// OpenPGP keyring that every signature file must be signed with.
	Keyring string `yaml:"keyring" toml:"keyring"`

	ExcludeDirs   []string `yaml:"exclude_dirs" toml:"exclude_dirs"`
	ExcludeFiles  []string `yaml:"exclude_files" toml:"exclude_files"`
	SkipDirGlob   string   `yaml:"skip_dir_glob" toml:"skip_dir_glob"`
	ManifestNames []string `yaml:"manifest_names" toml:"manifest_names"`
	LockfileNames []string `yaml:"lockfile_names" toml:"lockfile_names"`
	Extensions    []string `yaml:"extensions" toml:"extensions"`

	// Number of files matched in parallel. Zero means one per CPU.
	Workers int `yaml:"workers" toml:"workers"`

	Downstream bool `yaml:"downstream" toml:"downstream"`
	// Names of collaborators to run. Empty selects every non opt-in one.
	Collaborators []string `yaml:"collaborators" toml:"collaborators"`
	// Additional collaborators, appended to the built-in registry.
	CustomCollaborators []collaborator.Collaborator `yaml:"custom_collaborators" toml:"custom_collaborators"`
	// Per collaborator timeout, e.g. "10m".
	DownstreamTimeout string `yaml:"downstream_timeout" toml:"downstream_timeout"`
}

// Load reads the configuration file at path. Files ending in .toml are TOML,
// everything else YAML. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %s: unknown keys %v", path, undecoded)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs error
	for _, s := range c.Signatures {
		errs = multierr.Append(errs, s.Validate())
	}
	if c.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := c.Timeout(); err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, cc := range c.CustomCollaborators {
		if cc.Name == "" || cc.Command == "" {
			errs = multierr.Append(errs, fmt.Errorf("custom collaborator %q needs a name and a command", cc.Name))
		}
	}
	return errs
}

// Timeout returns the parsed DownstreamTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.DownstreamTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.DownstreamTimeout)
	if err != nil {
		return 0, fmt.Errorf("downstream_timeout: %w", err)
	}
	return d, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. A variable that is set but empty clears the field, which
// for TRIPWIRE_SIGNATURES yields an empty signature set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error
	if v, ok := lookup(EnvSignatures); ok {
		sigs, err := signature.ParseEntries(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", EnvSignatures, err))
		} else {
			c.Signatures = append([]signature.Signature{}, sigs...)
			c.SignatureFiles = nil
		}
	}
	if v, ok := lookup(EnvExcludeDirs); ok {
		c.ExcludeDirs = SplitList(v)
	}
	if v, ok := lookup(EnvExcludeFiles); ok {
		c.ExcludeFiles = SplitList(v)
	}
	if v, ok := lookup(EnvExtensions); ok {
		c.Extensions = SplitList(v)
	}
	return errs
}

// SplitList splits a comma or whitespace separated list. The result is never
// nil, so an empty value selects nothing instead of the defaults.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return append([]string{}, fields...)
}

// LoadSignatures returns the effective signature list: inline signatures
// followed by the content of every signature file, or the built-in set if
// neither is configured. Signature files are verified first if a keyring is
// configured.
func (c *Config) LoadSignatures() ([]signature.Signature, error) {
	if c.Signatures == nil && c.SignatureFiles == nil {
		return signature.Default(), nil
	}
	sigs := append([]signature.Signature{}, c.Signatures...)
	if c.Keyring != "" && len(c.SignatureFiles) > 0 {
		keyring, err := signature.ReadKeyring(c.Keyring)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", signature.ErrVerification, err)
		}
		for _, f := range c.SignatureFiles {
			if err := signature.VerifyFile(keyring, f); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range c.SignatureFiles {
		s, err := signature.LoadFile(f)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, s...)
	}
	return sigs, nil
}

// SelectedCollaborators returns the collaborators selected for downstream runs.
func (c *Config) SelectedCollaborators() ([]collaborator.Collaborator, error) {
	registry := append(append([]collaborator.Collaborator{}, collaborator.Registry...), c.CustomCollaborators...)
	return collaborator.Select(registry, c.Collaborators)
}
