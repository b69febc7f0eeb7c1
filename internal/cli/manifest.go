package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OnOff is a boolean flag spelled on|off, usable from flags and YAML.
type OnOff bool

func (o OnOff) String() string {
	if o {
		return "on"
	}
	return "off"
}

// Set implements the pflag.Value interface.
func (o *OnOff) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true":
		*o = true
	case "off", "false":
		*o = false
	default:
		return fmt.Errorf("invalid value %q: must be on or off", s)
	}
	return nil
}

// Type implements the pflag.Value interface.
func (o *OnOff) Type() string { return "on|off" }

// UnmarshalYAML accepts on, off, true and false.
func (o *OnOff) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected on or off", node.Line)
	}
	if err := o.Set(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// mergeManifest is the YAML form of the merge flags.
type mergeManifest struct {
	Target       string   `yaml:"target"`
	Output       string   `yaml:"output"`
	Sources      []string `yaml:"sources"`
	Globs        []string `yaml:"globs"`
	SourceLists  []string `yaml:"source_lists"`
	CreateTarget *bool    `yaml:"create_target"`
	Backup       *bool    `yaml:"backup"`
	DryRun       *bool    `yaml:"dry_run"`
	SkipSelf     *bool    `yaml:"skip_self"`
	Dedupe       string   `yaml:"dedupe"`
	AutoRemap    *OnOff   `yaml:"auto_remap_collisions"`
	RemapRandom  *OnOff   `yaml:"remap_db_random_id"`
	Ledger       string   `yaml:"ledger"`
}

// loadManifest reads a manifest. Relative paths in it are resolved
// against the manifest's directory.
func loadManifest(path string) (*mergeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m mergeManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	m.Target = resolveRelative(dir, m.Target)
	m.Output = resolveRelative(dir, m.Output)
	m.Ledger = resolveRelative(dir, m.Ledger)
	for _, list := range [][]string{m.Sources, m.Globs, m.SourceLists} {
		for i := range list {
			list[i] = resolveRelative(dir, list[i])
		}
	}
	return &m, nil
}

func resolveRelative(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// apply copies manifest values into opts for every flag not set on the
// command line.
func (m *mergeManifest) apply(opts *MergeOptions, changed func(string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setList := func(flag string, dst *[]string, v []string) {
		if len(v) > 0 && !changed(flag) {
			*dst = v
		}
	}
	setBool := func(flag string, dst *bool, v *bool) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setOnOff := func(flag string, dst *OnOff, v *OnOff) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}

	setString("target", &opts.Target, m.Target)
	setString("output", &opts.Output, m.Output)
	setList("source", &opts.Sources, m.Sources)
	setList("glob", &opts.Globs, m.Globs)
	setList("source-list", &opts.SourceLists, m.SourceLists)
	setBool("create-target", &opts.CreateTarget, m.CreateTarget)
	setBool("backup", &opts.Backup, m.Backup)
	setBool("dry-run", &opts.DryRun, m.DryRun)
	setBool("skip-self", &opts.SkipSelf, m.SkipSelf)
	setString("dedupe", &opts.Dedupe, m.Dedupe)
	setOnOff("auto-remap-collisions", &opts.AutoRemap, m.AutoRemap)
	setOnOff("remap-db-random-id", &opts.RemapRandom, m.RemapRandom)
	setString("ledger", &opts.Ledger, m.Ledger)
}
