package model

// SpeciesID is a dense integer handle into an Arena. IDs are assigned in
// interning order and never reused.
type SpeciesID int

// NoBond marks an unbound site in a concrete species.
const NoBond = -1

// SpeciesMonomer is one concrete monomer instance inside a species.
// States and Bonds are parallel to Type.Sites; Bonds holds NoBond or an
// edge id local to the species. Each edge id pairs exactly two sites.
type SpeciesMonomer struct {
	Type   *MonomerType
	States []string // "" for stateless sites
	Bonds  []int
}

func (m SpeciesMonomer) clone() SpeciesMonomer {
	c := SpeciesMonomer{Type: m.Type}
	c.States = append([]string(nil), m.States...)
	c.Bonds = append([]int(nil), m.Bonds...)
	return c
}

// Species is one fully concrete molecular complex. Species are immutable:
// state transitions produce a new Species connected by a Reaction, never an
// in-place edit.
type Species struct {
	ID       SpeciesID
	Monomers []SpeciesMonomer

	canonical string
	hash      string
}

// Hash returns the content-addressed identity of the species.
func (s *Species) Hash() string { return s.hash }

// Canonical returns the canonical graph encoding used for the hash.
// Stable across monomer declaration order and bond renumbering.
func (s *Species) Canonical() string { return s.canonical }

// String returns the canonical encoding; useful in logs and goldens.
func (s *Species) String() string { return s.canonical }

// CountMonomers returns how many monomers of the named type the species
// contains. Used by conservation checks.
func (s *Species) CountMonomers(typeName string) int {
	n := 0
	for _, m := range s.Monomers {
		if m.Type.Name == typeName {
			n++
		}
	}
	return n
}

// Arena interns species by canonical-form hash and hands out integer
// SpeciesIDs. Equality and dedup are hash lookups, never graph comparison.
//
// The arena is append-only. It is not safe for concurrent mutation; the
// expander owns it single-threaded, and after expansion it is shared
// read-only across parallel simulations.
type Arena struct {
	byHash map[string]SpeciesID
	list   []*Species
}

// NewArena creates an empty species arena.
func NewArena() *Arena {
	return &Arena{byHash: make(map[string]SpeciesID)}
}

// Len returns the number of interned species.
func (a *Arena) Len() int { return len(a.list) }

// Get returns the species with the given id. Panics on out-of-range ids;
// ids come from this arena only.
func (a *Arena) Get(id SpeciesID) *Species { return a.list[id] }

// All returns the interned species in id order. The returned slice is the
// arena's backing storage; callers must not mutate it.
func (a *Arena) All() []*Species { return a.list }

// Intern canonicalizes the monomer graph and returns its SpeciesID,
// reporting whether the species was newly added. The input monomers are
// copied; callers may reuse their buffers.
func (a *Arena) Intern(monomers []SpeciesMonomer) (SpeciesID, bool) {
	canon := canonicalEncode(monomers)
	h := speciesHash(canon)
	if id, ok := a.byHash[h]; ok {
		return id, false
	}
	id := SpeciesID(len(a.list))
	cp := make([]SpeciesMonomer, len(monomers))
	for i, m := range monomers {
		cp[i] = m.clone()
	}
	sp := &Species{ID: id, Monomers: cp, canonical: canon, hash: h}
	a.byHash[h] = id
	a.list = append(a.list, sp)
	return id, true
}

// Lookup returns the id for a canonical hash, if interned.
func (a *Arena) Lookup(hash string) (SpeciesID, bool) {
	id, ok := a.byHash[hash]
	return id, ok
}

// InternPattern interns a fully concrete ComplexPattern as a species.
// Every site must resolve: bond either BondNone or BondTo, and every
// state-carrying site must name a label. Returns ErrCodeNotConcrete
// otherwise.
func (a *Arena) InternPattern(c ComplexPattern, entity string) (SpeciesID, error) {
	if err := c.validate(entity); err != nil {
		return 0, err
	}
	monomers := make([]SpeciesMonomer, len(c.Monomers))
	for i, mp := range c.Monomers {
		m := SpeciesMonomer{
			Type:   mp.Type,
			States: make([]string, len(mp.Type.Sites)),
			Bonds:  make([]int, len(mp.Type.Sites)),
		}
		for j, spec := range mp.Specs {
			site := mp.Type.Sites[j]
			switch spec.Bond {
			case BondNone, BondDontCare:
				// Unmentioned sites default to unbound for initials.
				m.Bonds[j] = NoBond
			case BondTo:
				m.Bonds[j] = spec.BondID
			case BondAny:
				return 0, newError(ErrCodeNotConcrete, entity,
					"site %s.%s uses a bond wildcard", mp.Type.Name, site)
			}
			if len(mp.Type.States[site]) > 0 {
				if spec.State == "" {
					return 0, newError(ErrCodeNotConcrete, entity,
						"site %s.%s needs a concrete state", mp.Type.Name, site)
				}
				m.States[j] = spec.State
			}
		}
		monomers[i] = m
	}
	id, _ := a.Intern(monomers)
	return id, nil
}
