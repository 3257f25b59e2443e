package feature

import "anica/internal/iwho"

// Extractor returns a scheme's raw feature value as a slice of strings: a
// single element for scalar features (mnemonic, category, extension,
// isa-set, exact_scheme), any number of elements for genuinely set-valued
// features (opschemes, memory_usage).
type Extractor func(s *iwho.Scheme) []string

// Index is the forward index for one declared feature: it caches every
// scheme's raw value, the ambient universe (the union of all raw values
// observed), and, for editdistance features, a mnemonic trie for bounded
// edit-distance search (spec §4.1 design note). Index construction is
// eager and the result is immutable; share it by reference, never copy it.
type Index struct {
	decl      Declaration
	extract   Extractor
	raw       map[iwho.SchemeID][]string
	universe  map[string]struct{}
	allSchemes iwho.SchemeSet
	trie      *trieNode // non-nil only for KindEditDistance
}

// BuildIndex eagerly constructs the forward index for one declared feature
// over the given scheme universe.
func BuildIndex(decl Declaration, extract Extractor, schemes []*iwho.Scheme) *Index {
	idx := &Index{
		decl:     decl,
		extract:  extract,
		raw:      make(map[iwho.SchemeID][]string, len(schemes)),
		universe: make(map[string]struct{}),
	}
	ids := make([]iwho.SchemeID, 0, len(schemes))
	for _, s := range schemes {
		vals := extract(s)
		idx.raw[s.ID] = vals
		for _, v := range vals {
			idx.universe[v] = struct{}{}
		}
		ids = append(ids, s.ID)
	}
	idx.allSchemes = iwho.NewSchemeSet(ids...)

	if decl.Kind == KindEditDistance {
		idx.trie = newTrie()
		for _, s := range schemes {
			if vals := idx.raw[s.ID]; len(vals) > 0 {
				idx.trie.insert(vals[0], s.ID)
			}
		}
	}
	return idx
}

// RawValue returns the cached raw feature value for a scheme.
func (idx *Index) RawValue(id iwho.SchemeID) []string { return idx.raw[id] }

// Universe returns the full scheme set this index was built over — the γ of
// every feature's ⊤.
func (idx *Index) Universe() iwho.SchemeSet { return idx.allSchemes }

// UniverseElements returns every distinct raw value observed across the
// scheme universe, used by subset/subset_or_definitely_not Relax to find the
// next element to add.
func (idx *Index) UniverseElements() []string {
	out := make([]string, 0, len(idx.universe))
	for v := range idx.universe {
		out = append(out, v)
	}
	return out
}

// schemesWithRawSubsetOf returns the schemes whose raw value set is a subset
// of allowed — the shared γ computation for Subset and, with is_in flipped
// appropriately, SubsetOrNot.
func (idx *Index) schemesWithRawSubsetOf(allowed map[string]struct{}) iwho.SchemeSet {
	out := make(iwho.SchemeSet)
	for id, vals := range idx.raw {
		ok := true
		for _, v := range vals {
			if _, in := allowed[v]; !in {
				ok = false
				break
			}
		}
		if ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// schemesWithRawDisjointFrom returns the schemes whose raw value set shares
// no element with forbidden.
func (idx *Index) schemesWithRawDisjointFrom(forbidden map[string]struct{}) iwho.SchemeSet {
	out := make(iwho.SchemeSet)
	for id, vals := range idx.raw {
		disjoint := true
		for _, v := range vals {
			if _, in := forbidden[v]; in {
				disjoint = false
				break
			}
		}
		if disjoint {
			out[id] = struct{}{}
		}
	}
	return out
}

// schemesWithRawEqual returns the schemes whose single raw value equals v,
// used by Singleton.Concretize.
func (idx *Index) schemesWithRawEqual(v string) iwho.SchemeSet {
	out := make(iwho.SchemeSet)
	for id, vals := range idx.raw {
		if len(vals) == 1 && vals[0] == v {
			out[id] = struct{}{}
		}
	}
	return out
}

// schemesWithinEditDistance walks the mnemonic trie, pruning any branch
// whose running Levenshtein row already exceeds maxDist everywhere (the
// standard trie+DP-row bounded edit-distance search spec §4.1 calls for).
func (idx *Index) schemesWithinEditDistance(base string, maxDist int) iwho.SchemeSet {
	out := make(iwho.SchemeSet)
	if idx.trie == nil {
		return out
	}
	row := make([]int, len(base)+1)
	for i := range row {
		row[i] = i
	}
	idx.trie.search(base, maxDist, row, out)
	return out
}
