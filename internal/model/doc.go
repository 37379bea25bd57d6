// Package model defines the typed representation of rule-based reaction
// models: monomer types with named binding/state sites, partial patterns
// over those sites, fully concrete species, and the model builder that
// validates declarations before any network expansion happens.
//
// Species identity is content-addressed: every species is reduced to a
// canonical encoding of its molecule graph and interned in an Arena keyed
// by the SHA-256 hash of that encoding. All downstream code refers to
// species by dense integer SpeciesID, never by deep graph comparison.
package model
