// Package odenet compiles an expanded reaction network into a dense
// mass-action ODE system. The compiled system is immutable: Derivative
// only writes into the caller's slice, so a single system can be shared
// across goroutines as long as each holds its own state vectors.
package odenet

import (
	"fmt"

	"github.com/lolab-msm/erbbfit/internal/rulenet"
)

// term is one species participating in a compiled reaction.
type term struct {
	index int
	coeff int
}

// reaction is a compiled flux: v = rate * prod(y[reactant]^coeff),
// applied with the signed stoichiometry in delta.
type reaction struct {
	rate      float64
	reactants []term
	delta     []term
}

// Observable is a weighted sum over species concentrations. The weight
// of a species is how many times the observable pattern embeds in it.
type Observable struct {
	Name  string
	Terms []term
}

// ODESystem is the right-hand side of dy/dt for an expanded network.
type ODESystem struct {
	net       *rulenet.Network
	reactions []reaction
	obs       []Observable
	obsIndex  map[string]int
	params    map[string]float64
}

// Assemble compiles net into an ODE system using params to resolve rate
// constants and initial amounts. Names absent from params fall back to
// the model's declared values; names in params that the model never
// declared are an error.
func Assemble(net *rulenet.Network, params map[string]float64) (*ODESystem, error) {
	for name := range params {
		if net.Model.Param(name) == nil {
			return nil, fmt.Errorf("assemble: unknown parameter %q", name)
		}
	}
	sys := &ODESystem{
		net:      net,
		obsIndex: make(map[string]int, len(net.Observables)),
		params:   make(map[string]float64, len(params)),
	}
	for k, v := range params {
		sys.params[k] = v
	}

	for _, rx := range net.Reactions {
		k := rx.Rate.Value
		if v, ok := params[rx.Rate.Name]; ok {
			k = v
		}
		cr := reaction{rate: float64(rx.Multiplicity) * k}
		net0 := make(map[int]int)
		for _, tm := range rx.Reactants {
			cr.reactants = append(cr.reactants, term{index: int(tm.Species), coeff: tm.Coeff})
			net0[int(tm.Species)] -= tm.Coeff
		}
		for _, tm := range rx.Products {
			net0[int(tm.Species)] += tm.Coeff
		}
		for idx, c := range net0 {
			if c != 0 {
				cr.delta = append(cr.delta, term{index: idx, coeff: c})
			}
		}
		sys.reactions = append(sys.reactions, cr)
	}

	for _, od := range net.Observables {
		ob := Observable{Name: od.Name}
		for _, tm := range od.Terms {
			ob.Terms = append(ob.Terms, term{index: int(tm.Species), coeff: tm.Coeff})
		}
		sys.obsIndex[od.Name] = len(sys.obs)
		sys.obs = append(sys.obs, ob)
	}
	return sys, nil
}

// Dim is the number of species state variables.
func (s *ODESystem) Dim() int { return s.net.Arena.Len() }

// Initial builds the initial state vector. overrides take precedence
// over the params passed to Assemble, which take precedence over the
// model's declared initial amounts. Unmentioned species start at zero.
func (s *ODESystem) Initial(overrides map[string]float64) ([]float64, error) {
	for name := range overrides {
		if s.net.Model.Param(name) == nil {
			return nil, fmt.Errorf("initial: unknown parameter %q", name)
		}
	}
	y0 := make([]float64, s.Dim())
	for _, in := range s.net.Initials {
		amt := in.Amount.Value
		if v, ok := s.params[in.Amount.Name]; ok {
			amt = v
		}
		if v, ok := overrides[in.Amount.Name]; ok {
			amt = v
		}
		y0[int(in.Species)] += amt
	}
	return y0, nil
}

// Derivative evaluates dy/dt at state y into dy. len(dy) and len(y)
// must equal Dim; t is accepted for the integrator contract but the
// system is autonomous.
func (s *ODESystem) Derivative(dy, y []float64, t float64) {
	_ = t
	for i := range dy {
		dy[i] = 0
	}
	for _, rx := range s.reactions {
		v := rx.rate
		for _, tm := range rx.reactants {
			switch tm.coeff {
			case 1:
				v *= y[tm.index]
			case 2:
				v *= y[tm.index] * y[tm.index]
			default:
				for n := 0; n < tm.coeff; n++ {
					v *= y[tm.index]
				}
			}
		}
		for _, tm := range rx.delta {
			dy[tm.index] += float64(tm.coeff) * v
		}
	}
}

// Observables lists the observable names in declaration order.
func (s *ODESystem) Observables() []string {
	names := make([]string, len(s.obs))
	for i, ob := range s.obs {
		names[i] = ob.Name
	}
	return names
}

// Observe evaluates one observable against a state vector.
func (s *ODESystem) Observe(name string, y []float64) (float64, error) {
	i, ok := s.obsIndex[name]
	if !ok {
		return 0, fmt.Errorf("observe: unknown observable %q", name)
	}
	var sum float64
	for _, tm := range s.obs[i].Terms {
		sum += float64(tm.coeff) * y[tm.index]
	}
	return sum, nil
}

// MoietyTotal sums the copies of a monomer type across all species,
// weighted by concentration. For a model with no synthesis or
// degradation of that type the total is conserved along trajectories.
func (s *ODESystem) MoietyTotal(typeName string, y []float64) float64 {
	var total float64
	for _, sp := range s.net.Arena.All() {
		if n := sp.CountMonomers(typeName); n > 0 {
			total += float64(n) * y[int(sp.ID)]
		}
	}
	return total
}
