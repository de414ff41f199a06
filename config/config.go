// Package config loads the compile-time options the code generator
// consults: optimization level and future-feature flags (spec §6
// inputs). Grounded in the YAML-driven configuration other repos in
// this pack use for their own settings, loaded with
// gopkg.in/yaml.v3 rather than a hand-rolled flag parser.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OptimizeLevel controls whether the generator strips assert statements
// (spec §4.6: "assert statements are only emitted
// when optimize is 0").
type OptimizeLevel int

const (
	OptimizeNone   OptimizeLevel = 0
	OptimizeAssert OptimizeLevel = 1 // strips `assert` statements
	OptimizeDocs   OptimizeLevel = 2 // same effect as OptimizeAssert; docstrings are not stripped
)

// CompileProfile is the full set of knobs one Compile invocation reads.
type CompileProfile struct {
	Optimize       OptimizeLevel   `yaml:"optimize"`
	FutureFeatures map[string]bool `yaml:"future_features"`
	DebugCapture   bool            `yaml:"debug_capture"`
}

// Default returns the profile used when no configuration file is
// supplied: no optimization, no future features enabled, debug capture
// off.
func Default() CompileProfile {
	return CompileProfile{Optimize: OptimizeNone, FutureFeatures: map[string]bool{}}
}

// Load reads a CompileProfile from a YAML file at path.
func Load(path string) (CompileProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompileProfile{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	profile := Default()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return CompileProfile{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return profile, nil
}
