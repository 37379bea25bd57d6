package rulenet

import (
	"github.com/lolab-msm/erbbfit/internal/model"
)

// embedding maps pattern-monomer index to species-monomer index for one
// successful match of a ComplexPattern against a Species.
type embedding []int

// embed enumerates every embedding of pattern into sp.
//
// A match assigns each MonomerPattern to a distinct species monomer of the
// same type such that every named site condition holds:
//   - don't-care matches anything
//   - unbound matches only an unbound site
//   - any-bond matches any bond regardless of partner
//   - bond-to-id matches only if the two pattern sites sharing the id map
//     to species sites actually bonded to each other
//
// Returns nil when the pattern does not embed.
func embed(pattern model.ComplexPattern, sp *model.Species) []embedding {
	n := len(pattern.Monomers)
	if n == 0 || n > len(sp.Monomers) {
		return nil
	}

	partner := speciesPartners(sp)

	// Pattern-local bond endpoints: id -> the two (monomer, site) ends.
	type patEnd struct{ mon, site int }
	bondEnds := map[int][]patEnd{}
	for i, mp := range pattern.Monomers {
		for j, spec := range mp.Specs {
			if spec.Bond == model.BondTo {
				bondEnds[spec.BondID] = append(bondEnds[spec.BondID], patEnd{i, j})
			}
		}
	}

	var out []embedding
	assign := make([]int, n)
	used := make([]bool, len(sp.Monomers))

	// localMatch checks type, states, and bond occupancy for one monomer.
	localMatch := func(mp model.MonomerPattern, mi int) bool {
		m := sp.Monomers[mi]
		if m.Type != mp.Type {
			return false
		}
		for j, spec := range mp.Specs {
			if spec.State != "" && m.States[j] != spec.State {
				return false
			}
			switch spec.Bond {
			case model.BondNone:
				if m.Bonds[j] != model.NoBond {
					return false
				}
			case model.BondAny, model.BondTo:
				if m.Bonds[j] == model.NoBond {
					return false
				}
			}
		}
		return true
	}

	// bondsConsistent verifies every fully assigned pattern bond maps onto
	// a real bond between the assigned species sites.
	bondsConsistent := func(upto int) bool {
		for _, ends := range bondEnds {
			if len(ends) != 2 {
				return false // validated earlier; defensive against misuse
			}
			a, b := ends[0], ends[1]
			if a.mon > upto || b.mon > upto {
				continue // not fully assigned yet
			}
			p := partner[assign[a.mon]][a.site]
			if p.mon != assign[b.mon] || p.site != b.site {
				return false
			}
		}
		return true
	}

	var search func(pi int)
	search = func(pi int) {
		if pi == n {
			out = append(out, append(embedding(nil), assign...))
			return
		}
		for mi := range sp.Monomers {
			if used[mi] || !localMatch(pattern.Monomers[pi], mi) {
				continue
			}
			assign[pi] = mi
			if !bondsConsistent(pi) {
				continue
			}
			used[mi] = true
			search(pi + 1)
			used[mi] = false
		}
	}
	search(0)
	return out
}

// countEmbeddings returns the number of embeddings of pattern in sp.
// Observable coefficients are embedding counts.
func countEmbeddings(pattern model.ComplexPattern, sp *model.Species) int {
	return len(embed(pattern, sp))
}

// sitePartner addresses the bonded peer of a species site.
type sitePartner struct{ mon, site int }

// speciesPartners resolves each bound site to its peer (monomer, site).
func speciesPartners(sp *model.Species) [][]sitePartner {
	ends := map[int][]sitePartner{}
	for i, m := range sp.Monomers {
		for j, b := range m.Bonds {
			if b != model.NoBond {
				ends[b] = append(ends[b], sitePartner{i, j})
			}
		}
	}
	partner := make([][]sitePartner, len(sp.Monomers))
	for i, m := range sp.Monomers {
		partner[i] = make([]sitePartner, len(m.Bonds))
		for j, b := range m.Bonds {
			partner[i][j] = sitePartner{-1, -1}
			if b == model.NoBond {
				continue
			}
			for _, e := range ends[b] {
				if e.mon != i || e.site != j {
					partner[i][j] = e
				}
			}
		}
	}
	return partner
}
