package abstraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/feature"
	"anica/internal/iwho"
)

func testManager(t *testing.T) (*feature.Manager, iwho.Context) {
	t.Helper()
	schemes := iwho.BuildDemoCatalog()
	ctx := iwho.NewInMemoryContext("x86-64", schemes)
	decls := []feature.Declaration{
		{Name: feature.FeatureMnemonic, Kind: feature.KindEditDistance, MaxDist: 3},
		{Name: feature.FeatureCategory, Kind: feature.KindSubset},
		{Name: feature.FeatureMemoryUsage, Kind: feature.KindSubsetOrNot},
	}
	mgr, err := feature.NewManager(decls, nil, ctx.Schemes())
	require.NoError(t, err)
	return mgr, ctx
}

func findScheme(t *testing.T, ctx iwho.Context, id iwho.SchemeID) *iwho.Scheme {
	t.Helper()
	s, ok := ctx.Scheme(id)
	require.True(t, ok)
	return s
}

func TestMakeTopSubsumesEverything(t *testing.T) {
	mgr, ctx := testManager(t)
	top := MakeTop(mgr, 2)

	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: "ADD_R64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandRegister, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
		{Scheme: "MOV_R64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandRegister, Register: "rcx"},
			"src": {Kind: iwho.OperandRegister, Register: "rdx"},
		}},
	}}
	ab, err := FromConcrete(mgr, ctx, bb)
	require.NoError(t, err)

	assert.True(t, top.Subsumes(ab))
	assert.False(t, ab.Subsumes(top))
}

func TestFromConcreteDerivesMustAlias(t *testing.T) {
	mgr, ctx := testManager(t)
	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: "ADD_M64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandMemory, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
		{Scheme: "ADD_M64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandMemory, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rcx"},
		}},
	}}
	ab, err := FromConcrete(mgr, ctx, bb)
	require.NoError(t, err)

	scheme := findScheme(t, ctx, "ADD_M64_R64")
	memSlot, regSlot := -1, -1
	for i, op := range aliasableSlots(scheme) {
		if op.Name == "dst" {
			memSlot = i
		}
		if op.Name == "src" {
			regSlot = i
		}
	}
	require.NotEqual(t, -1, memSlot)
	require.NotEqual(t, -1, regSlot)

	memPair := NewAliasPair(OperandSlot{Pos: 0, Slot: memSlot}, OperandSlot{Pos: 1, Slot: memSlot})
	assert.Equal(t, AliasMust, ab.Aliasing.Get(memPair))

	regPair := NewAliasPair(OperandSlot{Pos: 0, Slot: regSlot}, OperandSlot{Pos: 1, Slot: regSlot})
	assert.Equal(t, AliasMustNot, ab.Aliasing.Get(regPair))
}

func TestJoinIsCommutativeAndSubsumesBoth(t *testing.T) {
	mgr, ctx := testManager(t)
	addScheme := findScheme(t, ctx, "ADD_R64_R64")
	movScheme := findScheme(t, ctx, "MOV_R64_R64")

	addInsn, err := FromScheme(mgr, addScheme)
	require.NoError(t, err)
	movInsn, err := FromScheme(mgr, movScheme)
	require.NoError(t, err)

	a := &Block{Mgr: mgr, Insns: []*Instruction{addInsn}, Aliasing: NewTopAliasing()}
	b := &Block{Mgr: mgr, Insns: []*Instruction{movInsn}, Aliasing: NewTopAliasing()}

	ab, err := a.Join(b)
	require.NoError(t, err)
	ba, err := b.Join(a)
	require.NoError(t, err)

	assert.True(t, ab.Subsumes(a))
	assert.True(t, ab.Subsumes(b))
	assert.Equal(t, ab.Insns[0].Marshal(), ba.Insns[0].Marshal())
}

func TestExpansionsRelaxTowardTop(t *testing.T) {
	mgr, ctx := testManager(t)
	addScheme := findScheme(t, ctx, "ADD_R64_R64")
	addInsn, err := FromScheme(mgr, addScheme)
	require.NoError(t, err)

	ab := &Block{Mgr: mgr, Insns: []*Instruction{addInsn}, Aliasing: NewTopAliasing()}
	expansions := ab.Expansions()
	require.NotEmpty(t, expansions)

	for _, e := range expansions {
		relaxed := e.Apply(ab)
		assert.True(t, relaxed.Subsumes(ab), "every one-step relaxation must subsume the original")
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	mgr, ctx := testManager(t)
	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: "ADD_M64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandMemory, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
	}}
	ab, err := FromConcrete(mgr, ctx, bb)
	require.NoError(t, err)

	first, err := ab.MarshalWithContext(ctx)
	require.NoError(t, err)
	second, err := ab.MarshalWithContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "serialization must be deterministic across calls")
}

func TestSerializeRoundTrip(t *testing.T) {
	mgr, ctx := testManager(t)
	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: "ADD_M64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandMemory, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
		{Scheme: "ADD_M64_R64", Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandMemory, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rcx"},
		}},
	}}
	ab, err := FromConcrete(mgr, ctx, bb)
	require.NoError(t, err)
	// widen one step so the aliasing dictionary and a non-default feature
	// value both have something to round-trip, not just the concrete lift.
	expansions := ab.Expansions()
	require.NotEmpty(t, expansions)
	ab = expansions[0].Apply(ab)

	data, err := ab.MarshalWithContext(ctx)
	require.NoError(t, err)

	parsed, err := UnmarshalBlockJSON(mgr, ctx, data)
	require.NoError(t, err)

	assert.Equal(t, ab.Marshal(ctx), parsed.Marshal(ctx), "parse(emit(ab)) must re-emit identically to ab")
	assert.True(t, ab.Subsumes(parsed), "parsed block must be pointwise equal to the original (subsumes forward)")
	assert.True(t, parsed.Subsumes(ab), "parsed block must be pointwise equal to the original (subsumes backward)")
}

func TestSerializeRoundTripPreservesBot(t *testing.T) {
	mgr, ctx := testManager(t)
	bot := NewInstruction(mgr, map[string]feature.Value{
		feature.FeatureMnemonic:    feature.EditDistance{Base: "zzz-not-a-real-mnemonic", CurrDist: 0, MaxDist: 3},
		feature.FeatureCategory:    feature.NewSubset(),
		feature.FeatureMemoryUsage: feature.LiftSubsetOrNot(nil),
	})
	ab := &Block{Mgr: mgr, Insns: []*Instruction{bot}, Aliasing: NewTopAliasing()}
	require.True(t, ab.IsBot())

	data, err := ab.MarshalWithContext(ctx)
	require.NoError(t, err)
	parsed, err := UnmarshalBlockJSON(mgr, ctx, data)
	require.NoError(t, err)

	assert.Equal(t, ab.Marshal(ctx), parsed.Marshal(ctx))
}

func TestIsBotWhenInstructionConcretizationEmpty(t *testing.T) {
	mgr, _ := testManager(t)
	bot := NewInstruction(mgr, map[string]feature.Value{
		feature.FeatureMnemonic:    feature.EditDistance{Base: "zzz-not-a-real-mnemonic", CurrDist: 0, MaxDist: 3},
		feature.FeatureCategory:    feature.NewSubset(), // empty subset: nothing concretizes
		feature.FeatureMemoryUsage: feature.LiftSubsetOrNot(nil),
	})
	assert.True(t, bot.IsBot())

	block := &Block{Mgr: mgr, Insns: []*Instruction{bot}, Aliasing: NewTopAliasing()}
	assert.True(t, block.IsBot())
}
