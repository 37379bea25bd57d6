package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for content-addressed species identity. The version suffix
// enables future encoding migration without hash collisions.
const domainSpecies = "erbbfit/species/v1"

// bondEnd addresses one end of a bond: a monomer index and a site index.
type bondEnd struct{ mon, site int }

// speciesHash computes SHA-256 over the canonical encoding with domain
// separation: SHA256(domain + 0x00 + canonical). The null byte prevents
// domain/data boundary ambiguity.
func speciesHash(canonical string) string {
	h := sha256.New()
	h.Write([]byte(domainSpecies))
	h.Write([]byte{0x00})
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalEncode produces a canonical string encoding of a monomer graph:
// the same species yields the same encoding regardless of monomer order or
// edge-id numbering in the input.
//
// Algorithm: Weisfeiler-Lehman color refinement partitions the monomers by
// structural role; a backtracking search over the refined color classes
// picks the lexicographically smallest full encoding. Branching only
// happens inside automorphism classes (tie groups), which stay tiny for
// chemically meaningful species (symmetric homodimers and the like).
//
// Monomer/site/state names are NFC normalized at this boundary so that
// visually identical declarations cannot mint distinct species.
func canonicalEncode(monomers []SpeciesMonomer) string {
	n := len(monomers)
	if n == 0 {
		return ""
	}

	// partner[i][j] = (monomer, site) bound to monomers[i].Bonds[j].
	edgeEnds := map[int][]bondEnd{}
	for i, m := range monomers {
		for j, b := range m.Bonds {
			if b != NoBond {
				edgeEnds[b] = append(edgeEnds[b], bondEnd{i, j})
			}
		}
	}
	partner := make([][]bondEnd, n)
	for i, m := range monomers {
		partner[i] = make([]bondEnd, len(m.Bonds))
		for j, b := range m.Bonds {
			partner[i][j] = bondEnd{-1, -1}
			if b == NoBond {
				continue
			}
			for _, e := range edgeEnds[b] {
				if e.mon != i || e.site != j {
					partner[i][j] = e
				}
			}
		}
	}

	// Initial colors: local structure only.
	colors := make([]string, n)
	for i, m := range monomers {
		var sb strings.Builder
		sb.WriteString(norm.NFC.String(m.Type.Name))
		for j := range m.Type.Sites {
			sb.WriteByte('|')
			sb.WriteString(norm.NFC.String(m.States[j]))
			if m.Bonds[j] != NoBond {
				sb.WriteByte('+')
			}
		}
		colors[i] = sb.String()
	}

	// WL refinement to a stable partition.
	for round := 0; round < n; round++ {
		next := make([]string, n)
		for i := range monomers {
			var sb strings.Builder
			sb.WriteString(colors[i])
			for j := range monomers[i].Bonds {
				p := partner[i][j]
				if p.mon < 0 {
					continue
				}
				fmt.Fprintf(&sb, "/%d>%d:%s", j, p.site, colors[p.mon])
			}
			next[i] = sb.String()
		}
		if samePartition(colors, next) {
			break
		}
		colors = next
	}

	// Backtracking ordering: always extend with a monomer from the
	// smallest eligible color class, branching within ties.
	best := ""
	order := make([]int, 0, n)
	placed := make([]bool, n)

	var search func()
	search = func() {
		if len(order) == n {
			enc := encodeOrder(monomers, partner, order)
			if best == "" || enc < best {
				best = enc
			}
			return
		}
		// Candidates: unplaced monomers with the minimal color.
		minColor := ""
		for i := 0; i < n; i++ {
			if placed[i] {
				continue
			}
			if minColor == "" || colors[i] < minColor {
				minColor = colors[i]
			}
		}
		for i := 0; i < n; i++ {
			if placed[i] || colors[i] != minColor {
				continue
			}
			placed[i] = true
			order = append(order, i)
			search()
			order = order[:len(order)-1]
			placed[i] = false
		}
	}
	search()
	return best
}

// encodeOrder emits the species string for one monomer ordering, with edge
// ids renumbered in first-use order so the encoding is independent of the
// input's edge numbering.
func encodeOrder(monomers []SpeciesMonomer, partner [][]bondEnd, order []int) string {
	rank := make(map[int]int, len(order)) // original index -> position
	for pos, i := range order {
		rank[i] = pos
	}
	edgeNum := map[[2]int]int{} // canonical endpoint pair -> renumbered id
	nextEdge := 1
	var sb strings.Builder
	for pos, i := range order {
		if pos > 0 {
			sb.WriteByte('.')
		}
		m := monomers[i]
		sb.WriteString(norm.NFC.String(m.Type.Name))
		sb.WriteByte('(')
		for j, site := range m.Type.Sites {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(norm.NFC.String(site))
			if m.States[j] != "" {
				sb.WriteByte('~')
				sb.WriteString(norm.NFC.String(m.States[j]))
			}
			if m.Bonds[j] != NoBond {
				p := partner[i][j]
				key := edgeKey(pos, j, rank[p.mon], p.site)
				id, ok := edgeNum[key]
				if !ok {
					id = nextEdge
					nextEdge++
					edgeNum[key] = id
				}
				fmt.Fprintf(&sb, "!%d", id)
			}
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// edgeKey builds an orientation-independent key for one bond.
func edgeKey(posA, siteA, posB, siteB int) [2]int {
	a := posA*1_000_000 + siteA
	b := posB*1_000_000 + siteB
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// samePartition reports whether two colorings induce the same partition.
func samePartition(a, b []string) bool {
	groupA := map[string][]int{}
	groupB := map[string][]int{}
	for i := range a {
		groupA[a[i]] = append(groupA[a[i]], i)
		groupB[b[i]] = append(groupB[b[i]], i)
	}
	if len(groupA) != len(groupB) {
		return false
	}
	sigs := func(g map[string][]int) []string {
		out := make([]string, 0, len(g))
		for _, idxs := range g {
			out = append(out, fmt.Sprint(idxs))
		}
		sort.Strings(out)
		return out
	}
	sa, sb := sigs(groupA), sigs(groupB)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
