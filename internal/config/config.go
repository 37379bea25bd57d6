// Package config loads calibration run configuration from YAML and
// validates it against an embedded CUE schema before anything touches
// the model or the chain. Config problems are fatal at startup and name
// the offending field.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Anneal configures the temperature schedule.
type Anneal struct {
	Length   int     `yaml:"length"`
	TStart   float64 `yaml:"t_start"`
	Schedule string  `yaml:"schedule"`
}

// Config is one calibration run description.
type Config struct {
	CellLine string   `yaml:"cell_line"`
	Scenario string   `yaml:"scenario"`
	Nsteps   int      `yaml:"nsteps"`
	Seed     int64    `yaml:"seed"`
	Data     []string `yaml:"data"`

	ATol      float64 `yaml:"atol"`
	RTol      float64 `yaml:"rtol"`
	Normalize *bool   `yaml:"normalize"`
	PriorVar  float64 `yaml:"prior_var"`

	Anneal Anneal `yaml:"anneal"`

	// Estimate restricts calibration to these parameters; empty means
	// every rate constant in the model.
	Estimate []string `yaml:"estimate"`

	// Store is the SQLite path for chain persistence; empty disables
	// persistence.
	Store string `yaml:"store"`
}

// UseHessian reports whether the scenario turns on Hessian guidance.
func (c *Config) UseHessian() bool { return c.Scenario == "rates_hessian" }

// Normalized resolves the normalize policy; unset defaults to true
// since the bundled datasets are recorded in arbitrary units.
func (c *Config) Normalized() bool {
	if c.Normalize == nil {
		return true
	}
	return *c.Normalize
}

// Load reads, schema-validates and decodes a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// validateSchema unifies the decoded YAML document with the embedded
// #Config definition.
func validateSchema(raw []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("schema has no #Config definition")
	}

	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config does not conform to schema: %w", err)
	}
	return nil
}

// CheckParams verifies every estimated parameter exists in the live
// model. lookup reports whether a parameter name is declared.
func (c *Config) CheckParams(lookup func(name string) bool) error {
	for _, name := range c.Estimate {
		if !lookup(name) {
			return fmt.Errorf("config: estimated parameter %q is not declared by the %s model", name, c.CellLine)
		}
	}
	return nil
}
