package abstraction

import (
	"sort"

	"anica/internal/feature"
	"anica/internal/iwho"
)

// Instruction is an abstract instruction (spec §3): a mapping from each
// configured feature name to an abstract feature value, plus its
// precomputed concretization (the intersection of the per-feature γ's, in
// feature-declaration order).
type Instruction struct {
	mgr            *feature.Manager
	Values         map[string]feature.Value
	concretization iwho.SchemeSet
}

// NewInstruction builds an abstract instruction from a complete set of
// per-feature values (one per mgr.Declarations()) and eagerly computes its
// concretization.
func NewInstruction(mgr *feature.Manager, values map[string]feature.Value) *Instruction {
	insn := &Instruction{mgr: mgr, Values: values}
	insn.recompute()
	return insn
}

func (insn *Instruction) recompute() {
	var result iwho.SchemeSet
	for i, d := range insn.mgr.Declarations() {
		v := insn.Values[d.Name]
		idx, _ := insn.mgr.Index(d.Name)
		matched := v.Concretize(idx)
		if i == 0 {
			result = matched
			continue
		}
		result = result.Intersect(matched)
		if len(result) == 0 {
			break
		}
	}
	insn.concretization = result
}

// Concretization returns γ(insn): the candidate scheme set computed by
// progressive intersection across features, in declaration order.
func (insn *Instruction) Concretization() iwho.SchemeSet { return insn.concretization }

// IsBot reports whether insn's concretization is empty (spec §3: "emptiness
// makes the abstract block ⊥").
func (insn *Instruction) IsBot() bool { return len(insn.concretization) == 0 }

// Top builds the ⊤ abstract instruction: every declared feature at its own
// lattice top.
func Top(mgr *feature.Manager) *Instruction {
	values := make(map[string]feature.Value, len(mgr.Declarations()))
	for _, d := range mgr.Declarations() {
		values[d.Name] = mgr.TopValue(d)
	}
	return NewInstruction(mgr, values)
}

// FromScheme lifts a concrete scheme to the most precise abstract
// instruction representing exactly it (spec §3 Lifecycle: "each feature
// value becomes its singleton").
func FromScheme(mgr *feature.Manager, scheme *iwho.Scheme) (*Instruction, error) {
	values, err := mgr.LiftScheme(scheme)
	if err != nil {
		return nil, err
	}
	return NewInstruction(mgr, values), nil
}

// Subsumes reports whether γ(other) ⊆ γ(insn): pointwise per declared
// feature (spec §3: "Subsumption on abstract blocks is pointwise").
func (insn *Instruction) Subsumes(other *Instruction) bool {
	for _, d := range insn.mgr.Declarations() {
		idx, _ := insn.mgr.Index(d.Name)
		if !insn.Values[d.Name].Subsumes(idx, other.Values[d.Name]) {
			return false
		}
	}
	return true
}

// Join returns the pointwise least upper bound of insn and other.
func (insn *Instruction) Join(other *Instruction) *Instruction {
	out := make(map[string]feature.Value, len(insn.mgr.Declarations()))
	for _, d := range insn.mgr.Declarations() {
		idx, _ := insn.mgr.Index(d.Name)
		out[d.Name] = insn.Values[d.Name].Join(idx, other.Values[d.Name])
	}
	return NewInstruction(insn.mgr, out)
}

// FeatureExpansion labels a one-step relaxation of a single feature of an
// abstract instruction, for expansion traceability (spec §4.2).
type FeatureExpansion struct {
	Feature string
	Value   feature.Value
}

// Expansions returns every one-step relaxation of each declared feature
// that is not already at its lattice top, each carrying the feature's
// relaxed value. A feature may contribute several (a subset feature yields
// one per universe element it does not yet contain).
func (insn *Instruction) Expansions() []FeatureExpansion {
	decls := insn.mgr.Declarations()
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	sort.Strings(names) // fixed feature order; the order of one feature's relaxations is Relax's own, which for set-valued kinds follows map iteration

	var out []FeatureExpansion
	for _, name := range names {
		idx, _ := insn.mgr.Index(name)
		for _, next := range insn.Values[name].Relax(idx) {
			out = append(out, FeatureExpansion{Feature: name, Value: next})
		}
	}
	return out
}

// WithFeature returns a copy of insn with one feature's value replaced,
// recomputing the concretization.
func (insn *Instruction) WithFeature(name string, v feature.Value) *Instruction {
	out := make(map[string]feature.Value, len(insn.Values))
	for k, val := range insn.Values {
		out[k] = val
	}
	out[name] = v
	return NewInstruction(insn.mgr, out)
}

// Marshal returns the JSON-ready <abs_insn> object from spec §6.1.
func (insn *Instruction) Marshal() map[string]any {
	out := make(map[string]any, len(insn.Values))
	for name, v := range insn.Values {
		out[name] = v.Marshal()
	}
	return out
}
