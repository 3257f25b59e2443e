package abstraction

import (
	"anica/internal/anicaerr"
	"anica/internal/feature"
	"anica/internal/iwho"
)

// Block is the abstract block from spec §3/§4.2: a fixed-length sequence of
// abstract instructions together with an abstract aliasing relation.
type Block struct {
	Mgr      *feature.Manager
	Insns    []*Instruction
	Aliasing Aliasing
}

// Len returns the block's fixed instruction-sequence length.
func (b *Block) Len() int { return len(b.Insns) }

// IsBot reports whether any position's abstract instruction is itself
// unsatisfiable, or the aliasing relation is unsatisfiable (spec §3).
func (b *Block) IsBot() bool {
	if b.Aliasing.IsBot {
		return true
	}
	for _, insn := range b.Insns {
		if insn.IsBot() {
			return true
		}
	}
	return false
}

// MakeTop builds the top of the lattice over blocks of length n: every
// position at its instruction top, no aliasing constraints.
func MakeTop(mgr *feature.Manager, n int) *Block {
	insns := make([]*Instruction, n)
	for i := range insns {
		insns[i] = Top(mgr)
	}
	return &Block{Mgr: mgr, Insns: insns, Aliasing: NewTopAliasing()}
}

// aliasableSlots returns, for a scheme, the ordinal slots (in operand
// declaration order) of its aliasing-capable (register/memory) operands.
func aliasableSlots(s *iwho.Scheme) []iwho.Operand {
	var out []iwho.Operand
	for _, op := range s.Operands {
		if op.Kind.CanAlias() {
			out = append(out, op)
		}
	}
	return out
}

// concreteAliasKey identifies a concrete instruction's register/memory
// footprint for the pair at slot, used to decide must-alias vs
// must-not-alias when lifting a concrete block.
func concreteAliasKey(insn iwho.ConcreteInstruction, op iwho.Operand) (string, bool) {
	assign, ok := insn.Operands[op.Name]
	if !ok || !assign.Kind.CanAlias() {
		return "", false
	}
	switch assign.Kind {
	case iwho.OperandMemory:
		return assign.Register + "+" + assign.IndexReg, true
	default: // OperandRegister
		return assign.Register, true
	}
}

// FromConcrete lifts a concrete block to the most precise abstract block
// representing exactly it: each instruction's features become singletons
// and each aliasing-capable operand pair becomes must-alias or
// must-not-alias depending on whether their concrete register/memory
// footprints are literally equal (spec §3 Lifecycle).
func FromConcrete(mgr *feature.Manager, ctx iwho.Context, bb *iwho.ConcreteBlock) (*Block, error) {
	insns := make([]*Instruction, len(bb.Instructions))
	type slotKey struct {
		pos  int
		slot int
	}
	keys := make(map[slotKey]string)

	for i, ci := range bb.Instructions {
		scheme, ok := ctx.Scheme(ci.Scheme)
		if !ok {
			return nil, anicaerr.IWHO(anicaerr.CodeSchemeNotFound, "scheme "+string(ci.Scheme)+" not found in context").Build()
		}
		insn, err := FromScheme(mgr, scheme)
		if err != nil {
			return nil, err
		}
		insns[i] = insn

		for slot, op := range aliasableSlots(scheme) {
			if k, ok := concreteAliasKey(ci, op); ok {
				keys[slotKey{i, slot}] = k
			}
		}
	}

	aliasing := NewTopAliasing()
	slots := make([]slotKey, 0, len(keys))
	for k := range keys {
		slots = append(slots, k)
	}
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if a.pos == b.pos {
				continue // self-pairs within one instruction are excluded
			}
			pair := NewAliasPair(OperandSlot{Pos: a.pos, Slot: a.slot}, OperandSlot{Pos: b.pos, Slot: b.slot})
			if keys[a] == keys[b] {
				aliasing.Set(pair, AliasMust)
			} else {
				aliasing.Set(pair, AliasMustNot)
			}
		}
	}

	return &Block{Mgr: mgr, Insns: insns, Aliasing: aliasing}, nil
}

// Subsumes reports whether γ(other) ⊆ γ(b): equal length, pointwise on
// instructions, pairwise on aliasing (spec §3).
func (b *Block) Subsumes(other *Block) bool {
	if len(b.Insns) != len(other.Insns) {
		return false
	}
	if b.IsBot() {
		return other.IsBot()
	}
	if other.IsBot() {
		return true
	}
	for i := range b.Insns {
		if !b.Insns[i].Subsumes(other.Insns[i]) {
			return false
		}
	}
	return b.Aliasing.Subsumes(other.Aliasing)
}

// Join returns the least upper bound of b and other; both must have equal
// length (spec §3: "Join is pointwise on instructions (length must agree)
// and pairwise on aliasing").
func (b *Block) Join(other *Block) (*Block, error) {
	if len(b.Insns) != len(other.Insns) {
		return nil, anicaerr.Discovery(anicaerr.CodeNoSatisfiableTop, "cannot join abstract blocks of different lengths").Build()
	}
	insns := make([]*Instruction, len(b.Insns))
	for i := range b.Insns {
		insns[i] = b.Insns[i].Join(other.Insns[i])
	}
	return &Block{Mgr: b.Mgr, Insns: insns, Aliasing: b.Aliasing.Join(other.Aliasing)}, nil
}

// Expansion labels one one-step relaxation of a block: either a single
// feature of a single instruction position, or a single aliasing pair
// (spec §4.2: "each expansion is labeled with the affected coordinate for
// traceability").
type Expansion struct {
	Pos     int // -1 for an aliasing expansion
	Feature string
	Pair    *AliasPair
	apply   func(*Block) *Block
}

// Expansions returns the lazy finite sequence of all one-step relaxations:
// one per feature of one abstract instruction, plus one per non-⊤ aliasing
// pair.
func (b *Block) Expansions() []Expansion {
	var out []Expansion
	for pos, insn := range b.Insns {
		pos, insn := pos, insn
		for _, exp := range insn.Expansions() {
			exp := exp
			out = append(out, Expansion{
				Pos:     pos,
				Feature: exp.Feature,
				apply: func(base *Block) *Block {
					return base.withInstruction(pos, base.Insns[pos].WithFeature(exp.Feature, exp.Value))
				},
			})
		}
	}
	for _, r := range b.Aliasing.Relax() {
		r := r
		out = append(out, Expansion{
			Pos:  -1,
			Pair: &r.Pair,
			apply: func(base *Block) *Block {
				return &Block{Mgr: base.Mgr, Insns: base.Insns, Aliasing: r.Result}
			},
		})
	}
	return out
}

// Apply returns the block resulting from applying e to b.
func (e Expansion) Apply(b *Block) *Block { return e.apply(b) }

func (b *Block) withInstruction(pos int, insn *Instruction) *Block {
	insns := make([]*Instruction, len(b.Insns))
	copy(insns, b.Insns)
	insns[pos] = insn
	return &Block{Mgr: b.Mgr, Insns: insns, Aliasing: b.Aliasing}
}
