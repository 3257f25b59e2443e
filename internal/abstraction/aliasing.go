// Package abstraction implements the abstract-block lattice from spec.md
// §3/§4.2: abstract instructions (per-feature values composed via the
// Feature Manager), the abstract aliasing relation, and the abstract block
// that ties them together with subsumption, join, and one-step expansion.
package abstraction

// TriVal is a three-valued aliasing element: must-alias, must-not-alias, or
// ⊤ (unconstrained).
type TriVal int

const (
	AliasTop TriVal = iota
	AliasMust
	AliasMustNot
)

// OperandSlot identifies one aliasing-capable operand by its instruction
// position and ordinal slot within that instruction's operand list. Slot
// index, not operand name, is the join-stable identity: two abstract
// instructions at the same position can concretize to schemes with
// different operand names (e.g. "dst"/"src" vs "base"), but every scheme an
// abstraction context admits at a given position is required to agree on
// aliasing-capable operand arity, so slot index lines up across join.
type OperandSlot struct {
	Pos  int
	Slot int
}

// AliasPair is an unordered pair of operand slots, canonicalized so
// A is ordered before B: by Pos ascending, then by Slot ascending. Self-pairs
// within one instruction are never constructed (spec §3: "self-pairs within
// one instruction are excluded").
type AliasPair struct {
	A, B OperandSlot
}

// NewAliasPair canonicalizes x and y into an AliasPair.
func NewAliasPair(x, y OperandSlot) AliasPair {
	if slotLess(y, x) {
		x, y = y, x
	}
	return AliasPair{A: x, B: y}
}

func slotLess(a, b OperandSlot) bool {
	if a.Pos != b.Pos {
		return a.Pos < b.Pos
	}
	return a.Slot < b.Slot
}

// Aliasing is the abstract aliasing relation over a fixed-length block:
// a map from unordered operand-slot pairs to a three-valued element, with
// an is_bot flag marking the unsatisfiable bottom (spec §3). Omitted pairs
// are implicitly ⊤.
type Aliasing struct {
	Rel   map[AliasPair]TriVal
	IsBot bool
}

// NewTopAliasing returns the aliasing relation with no constraints.
func NewTopAliasing() Aliasing {
	return Aliasing{Rel: make(map[AliasPair]TriVal)}
}

// Get returns the relation's value for pair, defaulting to ⊤ if omitted.
func (a Aliasing) Get(pair AliasPair) TriVal {
	if v, ok := a.Rel[pair]; ok {
		return v
	}
	return AliasTop
}

// Set records an aliasing constraint for pair. Setting AliasTop removes any
// existing entry, keeping the map minimal (omitted == ⊤).
func (a Aliasing) Set(pair AliasPair, v TriVal) {
	if v == AliasTop {
		delete(a.Rel, pair)
		return
	}
	a.Rel[pair] = v
}

// Clone returns an independent copy of a.
func (a Aliasing) Clone() Aliasing {
	out := Aliasing{Rel: make(map[AliasPair]TriVal, len(a.Rel)), IsBot: a.IsBot}
	for k, v := range a.Rel {
		out.Rel[k] = v
	}
	return out
}

// allPairs returns the union of keys present in a or b.
func allPairs(a, b Aliasing) []AliasPair {
	seen := make(map[AliasPair]struct{}, len(a.Rel)+len(b.Rel))
	for p := range a.Rel {
		seen[p] = struct{}{}
	}
	for p := range b.Rel {
		seen[p] = struct{}{}
	}
	out := make([]AliasPair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// Subsumes reports whether γ(other) ⊆ γ(a): every pair constrained in a
// constrains other at least as tightly (⊤ subsumes anything; must/must-not
// only subsume their own exact value).
func (a Aliasing) Subsumes(other Aliasing) bool {
	if a.IsBot {
		return other.IsBot
	}
	if other.IsBot {
		return true
	}
	for p := range a.Rel {
		av := a.Get(p)
		if av == AliasTop {
			continue
		}
		if other.Get(p) != av {
			return false
		}
	}
	return true
}

// Join returns the pairwise least upper bound: equal values are kept,
// mismatched values (including a missing/⊤ counterpart) relax to ⊤.
func (a Aliasing) Join(other Aliasing) Aliasing {
	if a.IsBot {
		return other.Clone()
	}
	if other.IsBot {
		return a.Clone()
	}
	out := NewTopAliasing()
	for _, p := range allPairs(a, other) {
		av, ov := a.Get(p), other.Get(p)
		if av == ov && av != AliasTop {
			out.Set(p, av)
		}
	}
	return out
}

// AliasRelaxation pairs a one-step aliasing relaxation with the pair it
// relaxed, so callers can label the expansion without re-deriving it.
type AliasRelaxation struct {
	Pair   AliasPair
	Result Aliasing
}

// Relax returns every one-step relaxation: each non-⊤ pair taken to ⊤, one
// at a time (spec §4.2: "one per aliasing pair (must→⊤, must-not→⊤)").
func (a Aliasing) Relax() []AliasRelaxation {
	var out []AliasRelaxation
	for p, v := range a.Rel {
		if v == AliasTop {
			continue
		}
		next := a.Clone()
		next.Set(p, AliasTop)
		out = append(out, AliasRelaxation{Pair: p, Result: next})
	}
	return out
}
