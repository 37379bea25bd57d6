package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
cell_line: A431
scenario: rates_hessian
nsteps: 50000
seed: 7
data: [egf_high.yaml, egf_low.yaml]
atol: 1.0e-8
rtol: 1.0e-6
normalize: false
prior_var: 6.0
anneal:
  length: 5000
  t_start: 10
  schedule: geometric
estimate: [klbindf, klbindr]
store: chains.db
`))
	require.NoError(t, err)
	assert.Equal(t, "A431", cfg.CellLine)
	assert.True(t, cfg.UseHessian())
	assert.Equal(t, 50000, cfg.Nsteps)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, []string{"egf_high.yaml", "egf_low.yaml"}, cfg.Data)
	assert.False(t, cfg.Normalized())
	assert.Equal(t, 5000, cfg.Anneal.Length)
	assert.Equal(t, "geometric", cfg.Anneal.Schedule)
	assert.Equal(t, []string{"klbindf", "klbindr"}, cfg.Estimate)
	assert.Equal(t, "chains.db", cfg.Store)
}

func TestLoad_MinimalDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
cell_line: H1666
scenario: rates
nsteps: 100
data: [d.yaml]
`))
	require.NoError(t, err)
	assert.False(t, cfg.UseHessian())
	assert.True(t, cfg.Normalized(), "normalize defaults to true")
	assert.Zero(t, cfg.Seed)
	assert.Empty(t, cfg.Estimate)
}

func TestLoad_SchemaRejections(t *testing.T) {
	cases := map[string]string{
		"unknown cell line": `
cell_line: HeLa
scenario: rates
nsteps: 100
data: [d.yaml]`,
		"unknown scenario": `
cell_line: A431
scenario: gradient_descent
nsteps: 100
data: [d.yaml]`,
		"nsteps zero": `
cell_line: A431
scenario: rates
nsteps: 0
data: [d.yaml]`,
		"no data files": `
cell_line: A431
scenario: rates
nsteps: 100
data: []`,
		"missing required field": `
scenario: rates
nsteps: 100
data: [d.yaml]`,
		"unknown field": `
cell_line: A431
scenario: rates
nsteps: 100
data: [d.yaml]
walltime: 3h`,
		"bad anneal schedule": `
cell_line: A431
scenario: rates
nsteps: 100
data: [d.yaml]
anneal: {schedule: quadratic}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestCheckParams(t *testing.T) {
	cfg := &Config{CellLine: "A431", Estimate: []string{"klbindf", "phantom"}}
	declared := map[string]bool{"klbindf": true}
	err := cfg.CheckParams(func(name string) bool { return declared[name] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phantom", "the error must name the offender")

	cfg.Estimate = []string{"klbindf"}
	assert.NoError(t, cfg.CheckParams(func(name string) bool { return declared[name] }))
}
