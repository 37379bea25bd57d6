// Package erbb declares the ErbB/MAPK/AKT signaling model: receptor
// layer events for the four ErbB receptor types, a MAPK cascade down
// to doubly phosphorylated ERK, and an AKT branch through PIP3. Rate
// constants follow Chen et al. 2009 (Table 1 and supplement); initial
// amounts come from per-cell-line dictionaries.
package erbb

import (
	"fmt"
	"sort"

	"github.com/lolab-msm/erbbfit/internal/model"
)

// Shared rate constants (Chen et al. 2009, Table 1 pg. 5).
const (
	kf    = 1e-5
	kr    = 1e-1
	kcp   = 1e-1
	kcd   = 1e-2
	kintf = 1.3e-3
	kintr = 5.0e-5
	kdeg  = 4.16e-4
)

// Layers selects which downstream pathways to declare on top of the
// receptor layer.
type Layers struct {
	MAPK bool
	AKT  bool
}

// All enables every pathway layer.
func All() Layers { return Layers{MAPK: true, AKT: true} }

// Build declares the model for one cell line. The receptor layer is
// always present; layers adds the MAPK and AKT branches.
func Build(cellLine string, layers Layers) (*model.Model, error) {
	amounts, ok := cellLines[cellLine]
	if !ok {
		return nil, fmt.Errorf("erbb: unknown cell line %q (have %v)", cellLine, CellLines())
	}

	b := model.NewBuilder()
	r := declareReceptorLayer(b, amounts)
	if layers.MAPK {
		declareMAPK(b, r, amounts)
	}
	if layers.AKT {
		declareAKT(b, r, amounts)
	}
	return b.Build()
}

// CellLines lists the available initial-amount dictionaries.
func CellLines() []string {
	names := make([]string, 0, len(cellLines))
	for name := range cellLines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// site identifies one binding site on a monomer type together with the
// context the site's owner must satisfy for the interaction to fire.
type site struct {
	Type *model.MonomerType
	Name string
	Ctx  []model.SiteArg
}

func (s site) pattern(extra ...model.SiteArg) model.MonomerPattern {
	args := make([]model.SiteArg, 0, len(s.Ctx)+len(extra))
	args = append(args, s.Ctx...)
	args = append(args, extra...)
	return s.Type.Pattern(args...)
}

// bindRule declares a reversible two-reactant binding rule with fresh
// forward/reverse parameters, in the shape of the bind macro.
func bindRule(b *model.Builder, name string, left, right site, fv, rv float64, opts ...model.RuleOption) {
	b.RuleReversible(name,
		[]model.ComplexPattern{
			model.Complex(left.pattern(model.Unbound(left.Name))),
			model.Complex(right.pattern(model.Unbound(right.Name))),
		},
		[]model.ComplexPattern{
			model.Complex(left.pattern(model.Bond(left.Name, 1)), right.pattern(model.Bond(right.Name, 1))),
		},
		b.Parameter(name+"_f", fv),
		b.Parameter(name+"_r", rv),
		opts...)
}

// catalyzeRule declares enzyme-substrate binding plus the catalytic
// step flipping one state site, in the shape of the catalyze macro.
// The enzyme context must pin the enzyme's active form; untouched
// sites carry through the catalytic step.
func catalyzeRule(b *model.Builder, name string, enz, sub site, stateSite, from, to string, fv, rv, cv float64) {
	subFrom := sub
	subFrom.Ctx = append(append([]model.SiteArg(nil), sub.Ctx...), model.State(stateSite, from))

	bindRule(b, name, enz, subFrom, fv, rv)

	b.Rule(name+"_cat",
		[]model.ComplexPattern{
			model.Complex(
				enz.pattern(model.Bond(enz.Name, 1)),
				subFrom.pattern(model.Bond(sub.Name, 1)),
			),
		},
		[]model.ComplexPattern{
			model.Complex(enz.Type.Pattern(model.Unbound(enz.Name))),
			model.Complex(sub.Type.Pattern(model.Unbound(sub.Name), model.State(stateSite, to))),
		},
		b.Parameter(name+"_c", cv))
}
