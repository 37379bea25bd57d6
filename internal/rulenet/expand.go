package rulenet

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lolab-msm/erbbfit/internal/model"
)

// DefaultMaxSpecies bounds expansion. The species space is combinatorially
// large but finite for any terminating model; hitting this cap means the
// rule set is not bounded (or the cap is too small for the model) and
// expansion fails with NETWORK_UNBOUNDED rather than looping forever.
const DefaultMaxSpecies = 20000

// Term is one reactant or product with its stoichiometric coefficient.
type Term struct {
	Species model.SpeciesID
	Coeff   int
}

// Reaction is one concrete mass-action reaction:
//
//	rate = Multiplicity * k * prod over reactants (conc^Coeff)
//
// Reactions carry provenance to the rule template and direction that
// generated them and are never edited after generation.
type Reaction struct {
	Rule         string
	Reverse      bool
	Reactants    []Term
	Products     []Term
	Rate         *model.Parameter
	Multiplicity int
}

// ObservableDef is an expanded observable: a weighted sum over species,
// the weight being the embedding count of the observable's pattern.
type ObservableDef struct {
	Name  string
	Terms []Term // Coeff = embeddings of the pattern in the species
}

// InitialDef seeds one expanded species with a starting amount parameter.
type InitialDef struct {
	Species model.SpeciesID
	Amount  *model.Parameter
}

// Network is the expanded reaction network. After expansion it is shared
// read-only across all parallel simulations.
type Network struct {
	Model       *model.Model
	Arena       *model.Arena
	Reactions   []*Reaction
	Observables []ObservableDef
	Initials    []InitialDef
}

// Options configures expansion bounds.
type Options struct {
	// MaxSpecies caps the species arena (default DefaultMaxSpecies).
	MaxSpecies int
	// MaxRounds caps worklist rounds; 0 means no extra cap beyond
	// MaxSpecies (every productive round adds at least one species).
	MaxRounds int
	// Logger receives per-round debug output; nil disables logging.
	Logger *slog.Logger
}

func (o Options) maxSpecies() int {
	if o.MaxSpecies > 0 {
		return o.MaxSpecies
	}
	return DefaultMaxSpecies
}

// Expand generates the full species/reaction network reachable from the
// model's initial species under its rule templates.
//
// The fixed point iterates over a frontier of newly discovered species:
// round zero considers every seed combination, later rounds only reactant
// combinations touching at least one frontier species. Reaction identity
// is the canonical key (rule, direction, reactant hashes, product hashes),
// so re-derivations merge instead of duplicating.
func Expand(m *model.Model, opts Options) (*Network, error) {
	arena := model.NewArena()
	net := &Network{Model: m, Arena: arena}

	// Seed species from initial conditions.
	for _, init := range m.Initials {
		id, err := arena.InternPattern(init.Pattern, "initial "+init.Amount.Name)
		if err != nil {
			return nil, err
		}
		net.Initials = append(net.Initials, InitialDef{Species: id, Amount: init.Amount})
	}

	reactions := map[string]*Reaction{}
	var order []string          // key insertion order for deterministic output
	seen := map[string]bool{}   // ordered reactant tuples already enumerated

	frontierStart := 0 // species below this index are settled
	for round := 0; ; round++ {
		if opts.MaxRounds > 0 && round > opts.MaxRounds {
			return nil, newExpandError(ErrCodeNetworkUnbounded, "",
				"no fixed point after %d rounds", opts.MaxRounds)
		}
		speciesBefore := arena.Len()
		reactionsBefore := len(order)

		for _, rule := range m.Rules {
			for _, dir := range directions(rule) {
				if err := expandDirection(dir, arena, frontierStart, round, reactions, &order, seen); err != nil {
					return nil, err
				}
				if arena.Len() > opts.maxSpecies() {
					return nil, newExpandError(ErrCodeNetworkUnbounded, rule.Name,
						"species count exceeded cap %d", opts.maxSpecies())
				}
			}
		}

		if opts.Logger != nil {
			opts.Logger.Debug("expansion round",
				"round", round,
				"species", arena.Len(),
				"reactions", len(order))
		}

		if arena.Len() == speciesBefore && len(order) == reactionsBefore {
			break
		}
		frontierStart = speciesBefore
	}

	for _, key := range order {
		net.Reactions = append(net.Reactions, reactions[key])
	}

	// Observable coefficients over the final species set.
	for _, obs := range m.Observables {
		def := ObservableDef{Name: obs.Name}
		for _, sp := range arena.All() {
			if n := countEmbeddings(obs.Pattern, sp); n > 0 {
				def.Terms = append(def.Terms, Term{Species: sp.ID, Coeff: n})
			}
		}
		net.Observables = append(net.Observables, def)
	}

	return net, nil
}

// expandDirection enumerates reactant combinations for one rule direction
// and merges the resulting reactions.
//
// Combination enumeration assigns one known species to each reactant
// complex, with repetition. After round zero only combinations containing
// at least one frontier species (ID >= frontierStart) are considered:
// all-settled combinations were fully enumerated in an earlier round.
func expandDirection(dir ruleDirection, arena *model.Arena, frontierStart, round int, reactions map[string]*Reaction, order *[]string, seen map[string]bool) error {
	nc := len(dir.Reactants)
	total := arena.Len() // snapshot: products interned this pass join the next frontier
	chosen := make([]*model.Species, nc)

	var visit func(slot int, touchesFrontier bool) error
	visit = func(slot int, touchesFrontier bool) error {
		if slot == nc {
			if round > 0 && !touchesFrontier {
				return nil
			}
			return applyCombo(dir, chosen, arena, reactions, order, seen)
		}
		for id := 0; id < total; id++ {
			chosen[slot] = arena.Get(model.SpeciesID(id))
			if err := visit(slot+1, touchesFrontier || id >= frontierStart); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(0, false)
}

// applyCombo enumerates embeddings of each reactant complex into its
// chosen species and merges one reaction per distinct transformation.
//
// Match policy: for a match-all rule every distinct embedding combination
// contributes one count to the reaction's multiplicity, so symmetric
// instances scale the mass-action rate. A match-once rule collapses all
// embeddings of a combination to a single count: permutations of an
// internally symmetric pattern are one physical event.
func applyCombo(dir ruleDirection, chosen []*model.Species, arena *model.Arena, reactions map[string]*Reaction, order *[]string, seen map[string]bool) error {
	// Guard against re-enumerating a tuple that an earlier round already
	// processed (species discovered mid-round are frontier twice).
	ck := comboKey(dir, chosen)
	if seen[ck] {
		return nil
	}
	seen[ck] = true

	embsPer := make([][]embedding, len(chosen))
	for c, cp := range dir.Reactants {
		embsPer[c] = embed(cp, chosen[c])
		if len(embsPer[c]) == 0 {
			return nil
		}
	}

	reactants := termsFor(chosen)
	counted := map[string]bool{} // match-once dedup within this combination

	pick := make([]embedding, len(chosen))
	var visit func(slot int) error
	visit = func(slot int) error {
		if slot == len(chosen) {
			products, err := applyRule(dir, chosen, pick, arena)
			if err != nil {
				return err
			}
			key := reactionKey(dir, chosen, products, arena)
			if dir.MatchOnce {
				if counted[key] {
					return nil
				}
				counted[key] = true
			}
			if rx, ok := reactions[key]; ok {
				if !dir.MatchOnce {
					rx.Multiplicity++
				}
				return nil
			}
			reactions[key] = &Reaction{
				Rule:         dir.Name,
				Reverse:      dir.Reverse,
				Reactants:    reactants,
				Products:     productTerms(products),
				Rate:         dir.Rate,
				Multiplicity: 1,
			}
			*order = append(*order, key)
			return nil
		}
		for _, e := range embsPer[slot] {
			pick[slot] = e
			if err := visit(slot + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(0)
}

// termsFor builds reactant terms (species with multiplicities) from the
// chosen species, ordered by species id.
func termsFor(chosen []*model.Species) []Term {
	counts := map[model.SpeciesID]int{}
	for _, sp := range chosen {
		counts[sp.ID]++
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	terms := make([]Term, 0, len(ids))
	for _, id := range ids {
		terms = append(terms, Term{Species: model.SpeciesID(id), Coeff: counts[model.SpeciesID(id)]})
	}
	return terms
}

func productTerms(products []model.SpeciesID) []Term {
	counts := map[model.SpeciesID]int{}
	for _, id := range products {
		counts[id]++
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	terms := make([]Term, 0, len(ids))
	for _, id := range ids {
		terms = append(terms, Term{Species: model.SpeciesID(id), Coeff: counts[model.SpeciesID(id)]})
	}
	return terms
}

// comboKey identifies one ordered reactant tuple for a rule direction.
func comboKey(dir ruleDirection, chosen []*model.Species) string {
	var sb strings.Builder
	sb.WriteString(dir.Name)
	if dir.Reverse {
		sb.WriteString("|r|")
	} else {
		sb.WriteString("|f|")
	}
	for i, sp := range chosen {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", sp.ID)
	}
	return sb.String()
}

// reactionKey is the canonical identity of a generated reaction: rule,
// direction, and the sorted canonical hashes of reactants and products.
// Content-addressed keys keep reaction identity independent of species
// discovery order.
func reactionKey(dir ruleDirection, chosen []*model.Species, products []model.SpeciesID, arena *model.Arena) string {
	rh := make([]string, len(chosen))
	for i, sp := range chosen {
		rh[i] = sp.Hash()
	}
	sort.Strings(rh)
	ph := make([]string, len(products))
	for i, id := range products {
		ph[i] = arena.Get(id).Hash()
	}
	sort.Strings(ph)
	d := "f"
	if dir.Reverse {
		d = "r"
	}
	return fmt.Sprintf("%s|%s|%s|%s", dir.Name, d, strings.Join(rh, ","), strings.Join(ph, ","))
}
