// Package feature implements the Feature Manager and the per-feature
// lattices from spec.md §3/§4.1: the abstraction a basic block's
// instructions are compared and relaxed through.
package feature

// Kind names one of the four built-in abstract-feature lattices. Features
// are extensible (spec §3), so Kind is a string rather than a closed Go enum
// at the declaration level — but every concrete Value below implements the
// same fixed capability set, modeled as a tagged union (spec §9 design
// note) rather than runtime class dispatch.
type Kind string

const (
	KindSingleton     Kind = "singleton"
	KindSubset        Kind = "subset"
	KindSubsetOrNot   Kind = "subset_or_definitely_not"
	KindEditDistance  Kind = "editdistance"
)

// Declaration is one (feature_name, kind) pair from
// insn_feature_manager.features (spec §6.2). MaxDist only applies to
// KindEditDistance.
type Declaration struct {
	Name    string
	Kind    Kind
	MaxDist int
}
