package feature

import "anica/internal/iwho"

// Value is a single point in a feature's lattice. Every lattice kind
// implements the shared capability set the design notes call for:
// {subsumes, join, relax, γ-lookup, serialize}. idx supplies the
// per-feature forward index Concretize, Join and Relax need; it is shared
// by reference across every Value of the same feature (spec §9: "share
// indexes across sampler instances by reference, never by copy").
type Value interface {
	Kind() Kind

	// Subsumes reports whether γ(other) ⊆ γ(self). other must be of the
	// same Kind; callers (AbstractInstruction) guarantee this since feature
	// declarations are fixed per abstraction context.
	Subsumes(idx *Index, other Value) bool

	// Join returns the least upper bound of self and other.
	Join(idx *Index, other Value) Value

	// Relax returns the immediate predecessors of self one step closer to
	// ⊤ — empty when self is already ⊤.
	Relax(idx *Index) []Value

	// Concretize returns γ(self) as a set of matching scheme ids.
	Concretize(idx *Index) iwho.SchemeSet

	// Marshal returns the JSON-ready representation from spec §6.1.
	Marshal() any
}

const topSentinel = "$SV:TOP"
