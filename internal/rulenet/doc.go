// Package rulenet expands a model's rule templates into the full
// combinatorial reaction network.
//
// Expansion is a breadth-first fixed point: seeded with the model's initial
// species, each round matches every rule's reactant patterns against the
// known species, applies the site rewrites to each embedding, and interns
// any newly reachable product species. The loop ends when a round discovers
// nothing new, or fails with NETWORK_UNBOUNDED when the species cap is hit.
//
// INVARIANTS:
//   - The discovered species/reaction sets are deterministic and
//     independent of rule declaration order (species are content-addressed,
//     reactions are keyed by canonical reactant/product hashes).
//   - Species and reactions are generated, never edited.
package rulenet
