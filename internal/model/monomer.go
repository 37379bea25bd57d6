package model

// MonomerType declares a molecular entity template: an ordered set of named
// sites, each optionally carrying a finite domain of state labels. Sites
// without a state domain carry only bond occupancy.
//
// MonomerTypes are immutable once declared; the Builder rejects duplicate
// declarations.
type MonomerType struct {
	Name   string
	Sites  []string
	States map[string][]string // site name -> allowed state labels (nil = stateless)

	index map[string]int // site name -> position in Sites
}

// SiteIndex returns the position of a site name, or -1 if undeclared.
func (t *MonomerType) SiteIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasState reports whether label is in the declared domain of site.
// Stateless sites accept no label.
func (t *MonomerType) HasState(site, label string) bool {
	for _, s := range t.States[site] {
		if s == label {
			return true
		}
	}
	return false
}

// BondKind is the tagged bond variant of a SiteSpec.
type BondKind int

const (
	// BondDontCare matches any bond status (site unmentioned or wildcarded).
	BondDontCare BondKind = iota
	// BondNone matches only an unbound site.
	BondNone
	// BondAny matches a bound site regardless of partner.
	BondAny
	// BondTo matches a site bound through a pattern-local bond id; the same
	// id must resolve consistently across the whole complex pattern.
	BondTo
)

// SiteSpec is the per-site condition inside a pattern: one bond variant
// plus an optional required state label ("" = don't care).
type SiteSpec struct {
	Bond   BondKind
	BondID int    // valid only for BondTo
	State  string // "" = don't care
}

// SiteArg pairs a site name with its spec for pattern construction.
type SiteArg struct {
	Name string
	Spec SiteSpec
}

// Unbound requires the site to carry no bond.
func Unbound(site string) SiteArg {
	return SiteArg{Name: site, Spec: SiteSpec{Bond: BondNone}}
}

// AnyBond requires the site to be bound, to any partner.
func AnyBond(site string) SiteArg {
	return SiteArg{Name: site, Spec: SiteSpec{Bond: BondAny}}
}

// Bond requires the site to be bound through the pattern-local bond id.
func Bond(site string, id int) SiteArg {
	return SiteArg{Name: site, Spec: SiteSpec{Bond: BondTo, BondID: id}}
}

// State requires the site to carry the given state label, any bond status.
func State(site, label string) SiteArg {
	return SiteArg{Name: site, Spec: SiteSpec{State: label}}
}

// AndState adds a required state label to a bond condition, for sites that
// carry both a bond and a state domain.
func (a SiteArg) AndState(label string) SiteArg {
	a.Spec.State = label
	return a
}

// MonomerPattern is a MonomerType reference plus a SiteSpec per site.
// Unmentioned sites are "don't care".
type MonomerPattern struct {
	Type  *MonomerType
	Specs []SiteSpec // parallel to Type.Sites

	// invalid accumulates site names that did not resolve during Pattern
	// construction; the Builder reports them with the declaring entity's
	// name attached.
	invalid []string
}

// Pattern builds a MonomerPattern over this type. Unknown sites and state
// labels outside a site's domain are deferred errors: they surface when the
// pattern is registered with a Builder (rule, initial, or observable).
func (t *MonomerType) Pattern(args ...SiteArg) MonomerPattern {
	mp := MonomerPattern{Type: t, Specs: make([]SiteSpec, len(t.Sites))}
	for _, a := range args {
		i := t.SiteIndex(a.Name)
		if i < 0 {
			mp.invalid = append(mp.invalid, a.Name)
			continue
		}
		mp.Specs[i] = a.Spec
	}
	return mp
}

// Complex joins monomer patterns into one ComplexPattern. Shared BondTo ids
// across the member patterns express intra-complex bonds.
func Complex(monomers ...MonomerPattern) ComplexPattern {
	return ComplexPattern{Monomers: monomers}
}

// ComplexPattern is a set of MonomerPatterns joined by shared bond ids.
// It represents a reactant/product template or, when fully concrete, a
// species (see Arena.InternPattern).
type ComplexPattern struct {
	Monomers []MonomerPattern
}

// validate checks site resolution, state domains, and bond id pairing.
// Bond ids must appear exactly twice within the complex.
func (c ComplexPattern) validate(entity string) error {
	bondUses := map[int]int{}
	for _, mp := range c.Monomers {
		if mp.Type == nil {
			return newError(ErrCodeUnknownSite, entity, "pattern with nil monomer type")
		}
		for _, bad := range mp.invalid {
			return newError(ErrCodeUnknownSite, entity,
				"monomer %s has no site %q", mp.Type.Name, bad)
		}
		for i, spec := range mp.Specs {
			site := mp.Type.Sites[i]
			if spec.State != "" && !mp.Type.HasState(site, spec.State) {
				return newError(ErrCodeDomainMismatch, entity,
					"state %q not in domain of %s.%s", spec.State, mp.Type.Name, site)
			}
			if spec.Bond == BondTo {
				bondUses[spec.BondID]++
			}
		}
	}
	for id, n := range bondUses {
		if n != 2 {
			return newError(ErrCodeAmbiguousBond, entity,
				"bond id %d used %d times, want exactly 2", id, n)
		}
	}
	return nil
}
