package rulenet

import (
	"sort"

	"github.com/lolab-msm/erbbfit/internal/model"
)

// ruleDirection is one expansion direction of a RuleTemplate. Reversible
// rules yield two directions with reactants/products swapped.
type ruleDirection struct {
	Name      string
	Reverse   bool
	Reactants []model.ComplexPattern
	Products  []model.ComplexPattern
	Rate      *model.Parameter
	MatchOnce bool
}

func directions(r *model.RuleTemplate) []ruleDirection {
	dirs := []ruleDirection{{
		Name:      r.Name,
		Reactants: r.Reactants,
		Products:  r.Products,
		Rate:      r.Forward,
		MatchOnce: r.MatchOnce,
	}}
	if r.Reversible() {
		dirs = append(dirs, ruleDirection{
			Name:      r.Name,
			Reverse:   true,
			Reactants: r.Products,
			Products:  r.Reactants,
			Rate:      r.Reverse,
			MatchOnce: r.MatchOnce,
		})
	}
	return dirs
}

// flatRef addresses one pattern monomer across a side's complexes.
type flatRef struct{ complex, mon int }

func flatten(side []model.ComplexPattern) []flatRef {
	var out []flatRef
	for c, cp := range side {
		for m := range cp.Monomers {
			out = append(out, flatRef{c, m})
		}
	}
	return out
}

// correspond pairs RHS monomers with LHS monomers positionally within each
// monomer type: the first product monomer of a type rewrites the first
// reactant monomer of that type, and so on. Product monomers without a
// reactant peer are synthesized; reactant monomers without a product peer
// are consumed.
func correspond(lhs, rhs []model.ComplexPattern) (rhsToLHS []int, consumed []int) {
	lf := flatten(lhs)
	rf := flatten(rhs)
	takenLHS := make([]bool, len(lf))
	rhsToLHS = make([]int, len(rf))
	for ri, rr := range rf {
		rhsToLHS[ri] = -1
		rt := rhs[rr.complex].Monomers[rr.mon].Type
		for li, lr := range lf {
			if takenLHS[li] {
				continue
			}
			if lhs[lr.complex].Monomers[lr.mon].Type == rt {
				takenLHS[li] = true
				rhsToLHS[ri] = li
				break
			}
		}
	}
	for li := range lf {
		if !takenLHS[li] {
			consumed = append(consumed, li)
		}
	}
	return rhsToLHS, consumed
}

// applyRule computes the product species of one matched rule instance.
//
// chosen holds the reactant species (one per reactant complex, repetition
// allowed) and embs the embedding of each complex into its species. The
// rewrite touches exactly the sites the product patterns name; everything
// else is carried over unchanged. The rewritten instance graph is split
// into connected components, each interned as one product species.
func applyRule(dir ruleDirection, chosen []*model.Species, embs []embedding, arena *model.Arena) ([]model.SpeciesID, error) {
	// Build the instance graph: disjoint copies of the chosen species with
	// edge ids shifted into per-slot ranges.
	var inst []model.SpeciesMonomer
	offsets := make([]int, len(chosen))
	edgeBase := 0
	for c, sp := range chosen {
		offsets[c] = len(inst)
		maxEdge := 0
		for _, m := range sp.Monomers {
			cp := model.SpeciesMonomer{Type: m.Type}
			cp.States = append([]string(nil), m.States...)
			cp.Bonds = make([]int, len(m.Bonds))
			for j, b := range m.Bonds {
				if b == model.NoBond {
					cp.Bonds[j] = model.NoBond
					continue
				}
				cp.Bonds[j] = edgeBase + b + 1
				if b+1 > maxEdge {
					maxEdge = b + 1
				}
			}
			inst = append(inst, cp)
		}
		edgeBase += maxEdge + 1
	}
	nextEdge := edgeBase + 1

	// Map flattened LHS monomer index -> instance index.
	lf := flatten(dir.Reactants)
	lhsInst := make([]int, len(lf))
	for li, ref := range lf {
		lhsInst[li] = offsets[ref.complex] + embs[ref.complex][ref.mon]
	}

	rhsToLHS, consumed := correspond(dir.Reactants, dir.Products)

	// Fresh edge ids for product-side bonds, one per pattern-local id.
	prodEdge := map[int]int{}
	edgeFor := func(id int) int {
		if e, ok := prodEdge[id]; ok {
			return e
		}
		e := nextEdge
		nextEdge++
		prodEdge[id] = e
		return e
	}

	// Rewrite phase: apply each product monomer's named sites.
	rf := flatten(dir.Products)
	dead := make([]bool, len(inst))
	for ri, ref := range rf {
		mp := dir.Products[ref.complex].Monomers[ref.mon]
		li := rhsToLHS[ri]
		if li < 0 {
			// Synthesized monomer: every bond site defaults to unbound,
			// every stated site must name a label.
			m := model.SpeciesMonomer{
				Type:   mp.Type,
				States: make([]string, len(mp.Type.Sites)),
				Bonds:  make([]int, len(mp.Type.Sites)),
			}
			for j, spec := range mp.Specs {
				site := mp.Type.Sites[j]
				m.Bonds[j] = model.NoBond
				if spec.Bond == model.BondTo {
					m.Bonds[j] = edgeFor(spec.BondID)
				} else if spec.Bond == model.BondAny {
					return nil, newExpandError(ErrCodeBadProduct, dir.Name,
						"synthesized %s.%s uses a bond wildcard", mp.Type.Name, site)
				}
				if len(mp.Type.States[site]) > 0 {
					if spec.State == "" {
						return nil, newExpandError(ErrCodeBadProduct, dir.Name,
							"synthesized %s.%s needs a state", mp.Type.Name, site)
					}
					m.States[j] = spec.State
				}
			}
			inst = append(inst, m)
			dead = append(dead, false)
			continue
		}

		ii := lhsInst[li]
		for j, spec := range mp.Specs {
			if spec.State != "" {
				inst[ii].States[j] = spec.State
			}
			switch spec.Bond {
			case model.BondNone:
				inst[ii].Bonds[j] = model.NoBond
			case model.BondTo:
				inst[ii].Bonds[j] = edgeFor(spec.BondID)
			}
			// BondAny and DontCare leave the bond untouched.
		}
	}

	// Consumed monomers disappear whole.
	for _, li := range consumed {
		dead[lhsInst[li]] = true
	}

	// Cleanup: unbind any edge left dangling by a rewrite or a consumed
	// monomer (DeleteMolecules semantics).
	edgeCount := map[int]int{}
	for i, m := range inst {
		if dead[i] {
			continue
		}
		for _, b := range m.Bonds {
			if b != model.NoBond {
				edgeCount[b]++
			}
		}
	}
	for i := range inst {
		if dead[i] {
			continue
		}
		for j, b := range inst[i].Bonds {
			if b != model.NoBond && edgeCount[b] != 2 {
				inst[i].Bonds[j] = model.NoBond
			}
		}
	}

	// Split surviving monomers into connected components.
	components := splitComponents(inst, dead)
	products := make([]model.SpeciesID, 0, len(components))
	for _, comp := range components {
		id, _ := arena.Intern(comp)
		products = append(products, id)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })
	return products, nil
}

// splitComponents groups live monomers by bond connectivity.
func splitComponents(inst []model.SpeciesMonomer, dead []bool) [][]model.SpeciesMonomer {
	n := len(inst)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	ends := map[int][]int{}
	for i, m := range inst {
		if dead[i] {
			continue
		}
		for _, b := range m.Bonds {
			if b != model.NoBond {
				ends[b] = append(ends[b], i)
			}
		}
	}
	for _, members := range ends {
		for k := 1; k < len(members); k++ {
			union(members[0], members[k])
		}
	}

	groups := map[int][]model.SpeciesMonomer{}
	var roots []int
	for i, m := range inst {
		if dead[i] {
			continue
		}
		r := find(i)
		if _, seen := groups[r]; !seen {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], m)
	}
	sort.Ints(roots)
	out := make([][]model.SpeciesMonomer, 0, len(roots))
	for _, r := range roots {
		out = append(out, groups[r])
	}
	return out
}
