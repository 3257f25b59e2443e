package feature

import "anica/internal/iwho"

// SubsetOrNot pairs a subset S with a polarity flag: schemes whose raw
// value is a subset of S (IsIn true) or disjoint from S (IsIn false)
// (spec §3 table). ⊤ is {IsIn: true, Subfeature: universe}, since every
// scheme's value is trivially a subset of the full universe.
type SubsetOrNot struct {
	Subfeature map[string]struct{}
	IsIn       bool
}

func (s SubsetOrNot) Kind() Kind { return KindSubsetOrNot }

// γ-equivalent check used by Subsumes/Join: does x's raw-value condition
// hold for every scheme that y's condition holds for? We answer this via
// direct set containment on the two possible normal forms rather than a
// full γ-comparison, which is sound for the polarities this kind can take:
//
//   - both IsIn  : containment ⊆ S1 ⊆ S2 is exactly subset containment on S.
//   - both !IsIn : disjoint-from-S2 ⇒ disjoint-from-S1 iff S1 ⊆ S2 (a
//     smaller forbidden set is easier to stay disjoint from).
//   - IsIn vs !IsIn with mismatched polarity: only sound when one side is
//     the universal ⊤ form; otherwise we conservatively answer false and
//     let the generalizer re-derive precision through Join instead of a
//     possibly-unsound subsumption.
func (s SubsetOrNot) Subsumes(idx *Index, other Value) bool {
	o := other.(SubsetOrNot)
	if s.isTop(idx) {
		return true
	}
	if s.IsIn == o.IsIn {
		if s.IsIn {
			return subsetOf(o.Subfeature, s.Subfeature)
		}
		return subsetOf(s.Subfeature, o.Subfeature)
	}
	return false
}

func (s SubsetOrNot) Join(idx *Index, other Value) Value {
	o := other.(SubsetOrNot)
	if s.IsIn == o.IsIn {
		if s.IsIn {
			// union of allowed sets only grows what's permitted.
			return SubsetOrNot{Subfeature: union(s.Subfeature, o.Subfeature), IsIn: true}
		}
		// intersection of forbidden sets only shrinks what's forbidden.
		return SubsetOrNot{Subfeature: intersect(s.Subfeature, o.Subfeature), IsIn: false}
	}
	// Mixed polarity has no precise common representation in this lattice;
	// the sound upper bound is ⊤.
	return topSubsetOrNot(idx)
}

func (s SubsetOrNot) Relax(idx *Index) []Value {
	if s.isTop(idx) {
		return nil
	}
	var out []Value
	if s.IsIn {
		for _, e := range idx.UniverseElements() {
			if _, in := s.Subfeature[e]; in {
				continue
			}
			next := cloneSet(s.Subfeature)
			next[e] = struct{}{}
			out = append(out, SubsetOrNot{Subfeature: next, IsIn: true})
		}
		return out
	}
	for e := range s.Subfeature {
		next := cloneSet(s.Subfeature)
		delete(next, e)
		out = append(out, SubsetOrNot{Subfeature: next, IsIn: false})
	}
	if len(s.Subfeature) == 0 {
		out = append(out, topSubsetOrNot(idx))
	}
	return out
}

func (s SubsetOrNot) Concretize(idx *Index) iwho.SchemeSet {
	if s.IsIn {
		return idx.schemesWithRawSubsetOf(s.Subfeature)
	}
	return idx.schemesWithRawDisjointFrom(s.Subfeature)
}

func (s SubsetOrNot) Marshal() any {
	elems := make([]string, 0, len(s.Subfeature))
	for e := range s.Subfeature {
		elems = append(elems, e)
	}
	return map[string]any{
		"subfeature":      sortedStrings(elems),
		"is_in_subfeature": s.IsIn,
	}
}

func (s SubsetOrNot) isTop(idx *Index) bool {
	if !s.IsIn {
		return false
	}
	return len(s.Subfeature) == len(idx.universe)
}

func topSubsetOrNot(idx *Index) SubsetOrNot {
	return SubsetOrNot{Subfeature: cloneSet(idx.universe), IsIn: true}
}

// LiftSubsetOrNot builds the most precise SubsetOrNot for a scheme's own
// raw value set: S = that value, is_in_subfeature = true (spec §8 scenario
// 1's memory_usage lift).
func LiftSubsetOrNot(raw []string) SubsetOrNot {
	s := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		s[v] = struct{}{}
	}
	return SubsetOrNot{Subfeature: s, IsIn: true}
}

func subsetOf(a, b map[string]struct{}) bool {
	for e := range a {
		if _, in := b[e]; !in {
			return false
		}
	}
	return true
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for e := range a {
		out[e] = struct{}{}
	}
	for e := range b {
		out[e] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for e := range a {
		if _, in := b[e]; in {
			out[e] = struct{}{}
		}
	}
	return out
}

func cloneSet(a map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a))
	for e := range a {
		out[e] = struct{}{}
	}
	return out
}
