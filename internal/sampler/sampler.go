// Package sampler draws concrete basic blocks from the γ of an abstract
// block (spec §4.3): scheme selection per position, aliasing-consistent
// operand-class resolution via union-find plus graph coloring, and
// materialization into a concrete block.
package sampler

import (
	"math/rand"
	"sort"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/iwho"
)

// registerPools gives, per register class, the concrete registers a class
// may resolve to. This is a reference-scale pool, not the real x86 register
// file; production use replaces it alongside a real IWHO context.
var registerPools = map[string][]string{
	"GP64": {"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"},
}

// Sampler draws concrete blocks from one abstract block's γ.
type Sampler struct {
	block      *abstraction.Block
	ctx        iwho.Context
	maxRetries int
}

// NewSampler builds a Sampler over ab's precomputed per-position
// concretizations (spec §4.2's precompute_sampler, surfaced without an
// abstraction→sampler import cycle; see DESIGN.md).
func NewSampler(ab *abstraction.Block, ctx iwho.Context) *Sampler {
	return &Sampler{block: ab, ctx: ctx, maxRetries: 8}
}

type slotRef struct {
	pos  int
	slot int
}

// Sample draws one concrete block, retrying with fresh randomness up to a
// fixed bound on recoverable SamplingError (spec §4.3: "retries use fresh
// randomness up to a fixed bound before giving up").
func (s *Sampler) Sample(rng *rand.Rand) (*iwho.ConcreteBlock, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		bb, err := s.attempt(rng)
		if err == nil {
			return bb, nil
		}
		if ae, ok := anicaerr.As(err, anicaerr.KindSampling); ok {
			lastErr = ae
			continue
		}
		return nil, err
	}
	return nil, anicaerr.Sampling(anicaerr.CodeSampleRetriesExhausted, "sampling exhausted its retry budget").WithCause(lastErr).Build()
}

func (s *Sampler) attempt(rng *rand.Rand) (*iwho.ConcreteBlock, error) {
	schemes, err := s.selectSchemes(rng)
	if err != nil {
		return nil, err
	}
	regs, err := s.resolveRegisters(schemes)
	if err != nil {
		return nil, err
	}
	return s.materialize(rng, schemes, regs)
}

// selectSchemes is phase 1: independently draw one scheme per position from
// its candidate set.
func (s *Sampler) selectSchemes(rng *rand.Rand) ([]*iwho.Scheme, error) {
	schemes := make([]*iwho.Scheme, s.block.Len())
	for i, insn := range s.block.Insns {
		ids := insn.Concretization().Slice()
		if len(ids) == 0 {
			return nil, anicaerr.Sampling(anicaerr.CodeEmptyConcretization, "abstract instruction has empty concretization").Build()
		}
		id := ids[rng.Intn(len(ids))]
		scheme, ok := s.ctx.Scheme(id)
		if !ok {
			return nil, anicaerr.IWHO(anicaerr.CodeSchemeNotFound, "scheme "+string(id)+" not in context").Build()
		}
		schemes[i] = scheme
	}
	return schemes, nil
}

// aliasableOperands returns a scheme's aliasing-capable operands in
// declaration order, matching abstraction's own slot ordinal scheme so slot
// indices agree between the two packages.
func aliasableOperands(s *iwho.Scheme) []iwho.Operand {
	var out []iwho.Operand
	for _, op := range s.Operands {
		if op.Kind.CanAlias() {
			out = append(out, op)
		}
	}
	return out
}

// resolveRegisters is phase 2: union-find merges must-alias slots into
// classes, then the must-not-alias graph between classes is greedily
// colored from a shared register pool (spec §9's open-question
// resolution — an upfront feasibility decision rather than ad-hoc retry).
func (s *Sampler) resolveRegisters(schemes []*iwho.Scheme) (map[slotRef]string, error) {
	var slots []slotRef
	index := make(map[slotRef]int)
	for pos, scheme := range schemes {
		for slot := range aliasableOperands(scheme) {
			ref := slotRef{pos: pos, slot: slot}
			index[ref] = len(slots)
			slots = append(slots, ref)
		}
	}
	if len(slots) == 0 {
		return map[slotRef]string{}, nil
	}

	uf := newUnionFind(len(slots))
	type mustNotEdge struct{ i, j int }
	var mustNotEdges []mustNotEdge

	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if a.pos == b.pos {
				continue
			}
			pair := abstraction.NewAliasPair(
				abstraction.OperandSlot{Pos: a.pos, Slot: a.slot},
				abstraction.OperandSlot{Pos: b.pos, Slot: b.slot},
			)
			switch s.block.Aliasing.Get(pair) {
			case abstraction.AliasMust:
				uf.union(i, j)
			case abstraction.AliasMustNot:
				mustNotEdges = append(mustNotEdges, mustNotEdge{i, j})
			}
		}
	}

	groups := make(map[int][]slotRef)
	for i, ref := range slots {
		rep := uf.find(i)
		groups[rep] = append(groups[rep], ref)
	}

	allowedByRep := make(map[int][]string, len(groups))
	for rep, members := range groups {
		allowed, err := s.classAllowedSet(schemes, members)
		if err != nil {
			return nil, err
		}
		allowedByRep[rep] = allowed
	}

	repIDs := make([]int, 0, len(groups))
	for rep := range groups {
		repIDs = append(repIDs, rep)
	}
	var graphEdges [][2]int
	for _, e := range mustNotEdges {
		ri, rj := uf.find(e.i), uf.find(e.j)
		if ri == rj {
			return nil, anicaerr.Sampling(anicaerr.CodeAliasingOverconstrained, "a must-alias class also carries a must-not-alias constraint").Build()
		}
		graphEdges = append(graphEdges, [2]int{ri, rj})
	}
	mustNotGraph := buildMustNotGraph(repIDs, graphEdges)

	palette := len(registerPools["GP64"])
	coloring, ok := greedyColor(mustNotGraph, palette)
	if !ok {
		return nil, anicaerr.Sampling(anicaerr.CodeAliasingOverconstrained, "no feasible register coloring for the must-not-alias graph").Build()
	}

	repOrder := make([]int, 0, len(groups))
	for rep := range groups {
		repOrder = append(repOrder, rep)
	}
	sort.Ints(repOrder)

	regByRep := make(map[int]string, len(repOrder))
	fallback := 0
	for _, rep := range repOrder {
		allowed := allowedByRep[rep]
		if len(allowed) == 0 {
			return nil, anicaerr.Sampling(anicaerr.CodeAliasingOverconstrained, "operand class has no allowed register").Build()
		}
		if c, ok := coloring[rep]; ok {
			if c >= len(allowed) {
				return nil, anicaerr.Sampling(anicaerr.CodeAliasingOverconstrained, "assigned color has no corresponding register in this class's allowed set").Build()
			}
			regByRep[rep] = allowed[c]
			continue
		}
		regByRep[rep] = allowed[fallback%len(allowed)]
		fallback++
	}

	out := make(map[slotRef]string, len(slots))
	for i, ref := range slots {
		out[ref] = regByRep[uf.find(i)]
	}
	return out, nil
}

func (s *Sampler) classAllowedSet(schemes []*iwho.Scheme, members []slotRef) ([]string, error) {
	var allowed map[string]struct{}
	for _, m := range members {
		op := aliasableOperands(schemes[m.pos])[m.slot]
		var pool []string
		if op.Kind == iwho.OperandMemory {
			pool = op.AddressRegisters
		} else {
			pool = registerPools[op.RegisterClass]
		}
		set := make(map[string]struct{}, len(pool))
		for _, r := range pool {
			set[r] = struct{}{}
		}
		if allowed == nil {
			allowed = set
			continue
		}
		for r := range allowed {
			if _, ok := set[r]; !ok {
				delete(allowed, r)
			}
		}
	}
	out := make([]string, 0, len(allowed))
	for r := range allowed {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

// materialize is phase 3: build the concrete block, filling non-aliasing
// operands (immediates, flags) directly and aliasing-capable operands from
// the resolved register map.
func (s *Sampler) materialize(rng *rand.Rand, schemes []*iwho.Scheme, regs map[slotRef]string) (*iwho.ConcreteBlock, error) {
	bb := &iwho.ConcreteBlock{Instructions: make([]iwho.ConcreteInstruction, len(schemes))}
	for pos, scheme := range schemes {
		assignments := make(map[string]iwho.OperandAssignment, len(scheme.Operands))
		aliasSlot := 0
		for _, op := range scheme.Operands {
			if op.Kind.CanAlias() {
				reg := regs[slotRef{pos: pos, slot: aliasSlot}]
				aliasSlot++
				if op.Kind == iwho.OperandMemory {
					assignments[op.Name] = iwho.OperandAssignment{Kind: iwho.OperandMemory, Register: reg}
				} else {
					assignments[op.Name] = iwho.OperandAssignment{Kind: iwho.OperandRegister, Register: reg}
				}
				continue
			}
			switch op.Kind {
			case iwho.OperandImmediate:
				bound := int64(1) << uint(op.Width-1)
				if bound <= 0 {
					bound = 1 << 31
				}
				assignments[op.Name] = iwho.OperandAssignment{Kind: iwho.OperandImmediate, Immediate: rng.Int63n(bound)}
			case iwho.OperandFlag:
				assignments[op.Name] = iwho.OperandAssignment{Kind: iwho.OperandFlag}
			}
		}
		bb.Instructions[pos] = iwho.ConcreteInstruction{Scheme: scheme.ID, Operands: assignments}
	}
	return bb, nil
}
