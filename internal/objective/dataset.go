// Package objective scores parameter vectors against time-course data.
// A dataset is a set of experimental conditions; each condition pins
// initial amounts (ligand doses, cell-line totals) and carries measured
// observable series. Evaluation simulates every condition and sums a
// Gaussian log-likelihood with a log10-space Gaussian prior.
package objective

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Series is one measured observable: parallel time, value and sigma
// slices. Sigmas of zero are repaired to 1 at load so a sloppy dataset
// degrades to unweighted least squares instead of dividing by zero.
type Series struct {
	Times  []float64 `yaml:"times"`
	Values []float64 `yaml:"values"`
	Sigmas []float64 `yaml:"sigmas"`
}

// Condition is one experimental arm: named initial-amount overrides and
// the series measured under them.
type Condition struct {
	Name      string             `yaml:"name"`
	Overrides map[string]float64 `yaml:"overrides"`
	Series    map[string]Series  `yaml:"observables"`
}

// Dataset is the full calibration target.
type Dataset struct {
	Conditions []Condition `yaml:"conditions"`
}

// LoadDataset reads and validates a YAML dataset file.
func LoadDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return &ds, nil
}

func (ds *Dataset) validate() error {
	if len(ds.Conditions) == 0 {
		return fmt.Errorf("no conditions")
	}
	seen := make(map[string]bool)
	for ci := range ds.Conditions {
		c := &ds.Conditions[ci]
		if c.Name == "" {
			return fmt.Errorf("condition %d has no name", ci)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate condition %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Series) == 0 {
			return fmt.Errorf("condition %q has no observables", c.Name)
		}
		for name, s := range c.Series {
			if len(s.Times) == 0 {
				return fmt.Errorf("condition %q observable %q is empty", c.Name, name)
			}
			if len(s.Values) != len(s.Times) {
				return fmt.Errorf("condition %q observable %q: %d times but %d values",
					c.Name, name, len(s.Times), len(s.Values))
			}
			if len(s.Sigmas) == 0 {
				s.Sigmas = make([]float64, len(s.Times))
			}
			if len(s.Sigmas) != len(s.Times) {
				return fmt.Errorf("condition %q observable %q: %d times but %d sigmas",
					c.Name, name, len(s.Times), len(s.Sigmas))
			}
			for i, sg := range s.Sigmas {
				if sg <= 0 {
					s.Sigmas[i] = 1
				}
			}
			for i := 1; i < len(s.Times); i++ {
				if s.Times[i] <= s.Times[i-1] {
					return fmt.Errorf("condition %q observable %q: times not increasing at %d",
						c.Name, name, i)
				}
			}
			c.Series[name] = s
		}
	}
	return nil
}

// timeGrid merges every series' times into one strictly increasing grid
// starting at zero, suitable as a solver output grid.
func (c *Condition) timeGrid() []float64 {
	set := map[float64]bool{0: true}
	for _, s := range c.Series {
		for _, t := range s.Times {
			set[t] = true
		}
	}
	grid := make([]float64, 0, len(set))
	for t := range set {
		grid = append(grid, t)
	}
	sort.Float64s(grid)
	return grid
}

// nearestIndex returns the index of the grid point closest to t. The
// grid must be sorted; ties resolve to the earlier point.
func nearestIndex(grid []float64, t float64) int {
	i := sort.SearchFloat64s(grid, t)
	if i == 0 {
		return 0
	}
	if i == len(grid) {
		return len(grid) - 1
	}
	if t-grid[i-1] <= grid[i]-t {
		return i - 1
	}
	return i
}

// minMaxScale rescales values to [0,1] in place by the slice's own
// range. A flat series maps to all zeros.
func minMaxScale(values []float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		for i := range values {
			values[i] = 0
		}
		return
	}
	for i := range values {
		values[i] = (values[i] - lo) / (hi - lo)
	}
}
