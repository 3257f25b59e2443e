package sampler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/feature"
	"anica/internal/iwho"
)

func setup(t *testing.T) (*feature.Manager, iwho.Context) {
	t.Helper()
	ctx := iwho.NewInMemoryContext("x86-64", iwho.BuildDemoCatalog())
	decls := []feature.Declaration{
		{Name: feature.FeatureMnemonic, Kind: feature.KindEditDistance, MaxDist: 3},
		{Name: feature.FeatureCategory, Kind: feature.KindSubset},
		{Name: feature.FeatureMemoryUsage, Kind: feature.KindSubsetOrNot},
	}
	mgr, err := feature.NewManager(decls, nil, ctx.Schemes())
	require.NoError(t, err)
	return mgr, ctx
}

func TestSampleTopIsDeterministicGivenSameSeed(t *testing.T) {
	mgr, ctx := setup(t)
	top := abstraction.MakeTop(mgr, 3)
	s := NewSampler(top, ctx)

	a, err := s.Sample(rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := s.Sample(rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Len(t, a.Instructions, len(b.Instructions))
	for i := range a.Instructions {
		assert.Equal(t, a.Instructions[i].Scheme, b.Instructions[i].Scheme)
	}
}

func TestSampleRespectsMustAlias(t *testing.T) {
	mgr, ctx := setup(t)
	addScheme, ok := ctx.Scheme("ADD_M64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, addScheme)
	require.NoError(t, err)

	ab := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn, insn}, Aliasing: abstraction.NewTopAliasing()}
	// memory dst operand is slot 0 of ADD_M64_R64's aliasable operands (dst, src)
	pair := abstraction.NewAliasPair(abstraction.OperandSlot{Pos: 0, Slot: 0}, abstraction.OperandSlot{Pos: 1, Slot: 0})
	ab.Aliasing.Set(pair, abstraction.AliasMust)

	s := NewSampler(ab, ctx)
	bb, err := s.Sample(rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	dst0 := bb.Instructions[0].Operands["dst"].Register
	dst1 := bb.Instructions[1].Operands["dst"].Register
	assert.Equal(t, dst0, dst1, "must-alias pair must resolve to the same register")
}

func TestSampleOverconstrainedAliasingIsRecoverableError(t *testing.T) {
	mgr, ctx := setup(t)
	addScheme, ok := ctx.Scheme("ADD_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, addScheme)
	require.NoError(t, err)

	// two operands forced into the same must-alias class but also forced
	// must-not-alias: unsatisfiable. Pairs within one instruction are not
	// constraints, so every pair here spans the two instructions.
	insns := []*abstraction.Instruction{insn, insn}
	ab := &abstraction.Block{Mgr: mgr, Insns: insns, Aliasing: abstraction.NewTopAliasing()}
	p1 := abstraction.NewAliasPair(abstraction.OperandSlot{Pos: 0, Slot: 0}, abstraction.OperandSlot{Pos: 1, Slot: 0})
	p2 := abstraction.NewAliasPair(abstraction.OperandSlot{Pos: 0, Slot: 0}, abstraction.OperandSlot{Pos: 1, Slot: 1})
	p3 := abstraction.NewAliasPair(abstraction.OperandSlot{Pos: 0, Slot: 1}, abstraction.OperandSlot{Pos: 1, Slot: 1})
	p4 := abstraction.NewAliasPair(abstraction.OperandSlot{Pos: 0, Slot: 1}, abstraction.OperandSlot{Pos: 1, Slot: 0})
	ab.Aliasing.Set(p1, abstraction.AliasMust)
	ab.Aliasing.Set(p2, abstraction.AliasMust)
	ab.Aliasing.Set(p3, abstraction.AliasMust)
	ab.Aliasing.Set(p4, abstraction.AliasMustNot)

	s := NewSampler(ab, ctx)
	_, err = s.Sample(rand.New(rand.NewSource(1)))
	require.Error(t, err)
	_, ok = anicaerr.As(err, anicaerr.KindSampling)
	assert.True(t, ok)
}

func TestSampleEmptyConcretizationIsRecoverableError(t *testing.T) {
	mgr, ctx := setup(t)
	bot := abstraction.NewInstruction(mgr, map[string]feature.Value{
		feature.FeatureMnemonic:    feature.EditDistance{Base: "zzzzzzzzzzz", CurrDist: 0, MaxDist: 3},
		feature.FeatureCategory:    feature.NewSubset(),
		feature.FeatureMemoryUsage: feature.LiftSubsetOrNot(nil),
	})
	ab := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{bot}, Aliasing: abstraction.NewTopAliasing()}

	s := NewSampler(ab, ctx)
	_, err := s.Sample(rand.New(rand.NewSource(1)))
	require.Error(t, err)
	_, ok := anicaerr.As(err, anicaerr.KindSampling)
	assert.True(t, ok)
}
