// Package iwho is the narrow external contract spec.md §1/§3 carves out for
// the instruction-scheme database and assembler/disassembler front-end: it
// supplies instruction schemes, operand kinds, register/flag dependency
// info, and textual (dis)assembly. The core never reaches past this
// package's interfaces into a concrete scheme database.
//
// This package also ships an in-memory reference Context so the rest of the
// module is runnable end-to-end without a real IWHO backend; a production
// deployment swaps it for one backed by the real instruction database
// without touching anything above this package.
package iwho

import "sort"

// SchemeID opaquely identifies a parameterized instruction form.
type SchemeID string

// OperandKind classifies an operand. Only Register and Memory operands can
// participate in the aliasing relation (their base/index registers can
// overlap with another operand's registers); Immediate and Flag cannot.
type OperandKind string

const (
	OperandRegister  OperandKind = "register"
	OperandMemory    OperandKind = "memory"
	OperandImmediate OperandKind = "immediate"
	OperandFlag      OperandKind = "flag"
)

// CanAlias reports whether operands of this kind ever participate in the
// abstract aliasing relation (spec §3, "restricted to operand kinds that can
// alias").
func (k OperandKind) CanAlias() bool {
	return k == OperandRegister || k == OperandMemory
}

// Operand describes one parameterized operand slot of a scheme.
type Operand struct {
	Name             string
	Kind             OperandKind
	RegisterClass    string   // allowed register class, e.g. "GP64", "XMM"
	AddressRegisters []string // for Memory operands: concrete base/index register choices
	Width            int      // bits
}

// MemoryUsage records whether a scheme reads and/or writes memory.
type MemoryUsage struct {
	Read  bool
	Write bool
}

// Scheme is the opaque, finite instruction form exposed by IWHO: a mnemonic,
// its operand list, and the feature-relevant metadata (category, extension,
// isa-set, memory usage, textual operand-scheme tags).
type Scheme struct {
	ID        SchemeID
	Mnemonic  string
	OpSchemes []string // textual operand-scheme tags, e.g. "r64,m64"
	Operands  []Operand
	Memory    *MemoryUsage // nil means no memory operand
	Category  string
	Extension string
	ISASet    string
}

// HasControlFlow reports whether this scheme can transfer control (used by
// the no_cf filter).
func (s *Scheme) HasControlFlow() bool {
	return s.Category == "COND_BR" || s.Category == "UNCOND_BR" || s.Category == "CALL" || s.Category == "RET"
}

// SchemeSet is an (unordered, by construction) set of scheme identifiers
// with the small amount of set algebra the feature lattice needs. Nil and
// empty sets both denote ∅.
type SchemeSet map[SchemeID]struct{}

func NewSchemeSet(ids ...SchemeID) SchemeSet {
	s := make(SchemeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s SchemeSet) Contains(id SchemeID) bool {
	_, ok := s[id]
	return ok
}

func (s SchemeSet) Len() int { return len(s) }

// Intersect returns a new set containing the elements in both s and other.
func (s SchemeSet) Intersect(other SchemeSet) SchemeSet {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	out := make(SchemeSet, len(small))
	for id := range small {
		if big.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns a new set containing the elements of s and other.
func (s SchemeSet) Union(other SchemeSet) SchemeSet {
	out := make(SchemeSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Minus returns a new set containing the elements of s not in other, used to
// estimate an expansion's benefit (§4.6 max_benefit strategy: |γ(ab')\γ(ab)|).
func (s SchemeSet) Minus(other SchemeSet) SchemeSet {
	out := make(SchemeSet, len(s))
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Slice returns the set's members in a deterministic (sorted) order, needed
// anywhere sampling or serialization must not depend on map iteration order.
func (s SchemeSet) Slice() []SchemeID {
	out := make([]SchemeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
