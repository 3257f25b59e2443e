package generalizer

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/abstraction"
	"anica/internal/feature"
	"anica/internal/iwho"
	"anica/internal/predmanager"
)

// scaledPredictor reports a throughput scaled by a multiplier looked up by
// the scheme id of the block's first instruction, so two predictors
// disagreeing on MOV_R64_R64 vs every other scheme give a controllable,
// deterministic interestingness signal across an expanding abstract block.
type scaledPredictor struct {
	key    string
	scale  map[string]float64
	base   float64
}

func (p scaledPredictor) Key() string { return p.key }

func (p scaledPredictor) Predict(_ context.Context, bb *iwho.ConcreteBlock) (float64, error) {
	mult, ok := p.scale[string(bb.Instructions[0].Scheme)]
	if !ok {
		mult = 1.0
	}
	return p.base * mult, nil
}

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

func diverging(t *testing.T) predmanager.Manager {
	t.Helper()
	preds := []predmanager.Predictor{
		scaledPredictor{key: "p1", base: 1.0, scale: map[string]float64{"MOV_R64_R64": 3.0}},
		scaledPredictor{key: "p2", base: 1.0},
	}
	return predmanager.NewInProcessManager(preds, nil, 0, 4)
}

func TestRunAcceptsExpansionsWhileBatchStaysInteresting(t *testing.T) {
	mgr, ctx := setup(t)
	movScheme, ok := ctx.Scheme("MOV_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, movScheme)
	require.NoError(t, err)
	ab0 := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

	g := New(ctx, diverging(t), Params{
		PredictorKeys:          []string{"p1", "p2"},
		BatchSize:              8,
		MinInterestingness:     0.5,
		MostlyInterestingRatio: 0.5,
	})

	res, err := g.Run(context.Background(), ab0, RandomStrategy{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.True(t, res.Block.Subsumes(ab0), "generalization never shrinks the lattice")
}

func TestRunStopsWhenNoExpansionIsAccepted(t *testing.T) {
	mgr, ctx := setup(t)
	// every predictor agrees, so no expansion should ever look interesting.
	preds := []predmanager.Predictor{
		scaledPredictor{key: "p1", base: 1.0},
		scaledPredictor{key: "p2", base: 1.0},
	}
	manager := predmanager.NewInProcessManager(preds, nil, 0, 4)

	addScheme, ok := ctx.Scheme("ADD_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, addScheme)
	require.NoError(t, err)
	ab0 := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

	g := New(ctx, manager, Params{
		PredictorKeys:          []string{"p1", "p2"},
		BatchSize:              4,
		MinInterestingness:     0.1,
		MostlyInterestingRatio: 0.5,
	})

	res, err := g.Run(context.Background(), ab0, RandomStrategy{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, res.Trace)
	assert.Equal(t, ab0, res.Block)
}

func TestMaxBenefitStrategyOrdersByConcretizationGrowth(t *testing.T) {
	mgr, ctx := setup(t)
	addScheme, ok := ctx.Scheme("ADD_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, addScheme)
	require.NoError(t, err)
	ab := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

	exps := ab.Expansions()
	require.NotEmpty(t, exps)
	ordered := MaxBenefitStrategy{}.Order(ab, exps, nil)
	require.Len(t, ordered, len(exps))

	var benefits []int
	for _, e := range ordered {
		benefits = append(benefits, estimateBenefit(ab, e))
	}
	for i := 1; i < len(benefits); i++ {
		assert.GreaterOrEqual(t, benefits[i-1], benefits[i], "strategy must sort by descending benefit")
	}
}

func TestInteractiveStrategyHonorsTerminate(t *testing.T) {
	mgr, ctx := setup(t)
	insn := abstraction.Top(mgr)
	ab := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}
	_ = ctx

	strat := InteractiveStrategy{Callback: terminateCallback{}}
	out := strat.Order(ab, ab.Expansions(), nil)
	assert.Nil(t, out)
}

type terminateCallback struct{}

func (terminateCallback) Select(_ *abstraction.Block, _ []Candidate) (Decision, error) {
	return Decision{Terminate: true}, nil
}

func TestMinimizeRemovesRedundantInstruction(t *testing.T) {
	mgr, ctx := setup(t)
	movScheme, ok := ctx.Scheme("MOV_R64_R64")
	require.True(t, ok)

	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: movScheme.ID, Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandRegister, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
		{Scheme: movScheme.ID, Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandRegister, Register: "rcx"},
			"src": {Kind: iwho.OperandRegister, Register: "rdx"},
		}},
	}}

	preds := []predmanager.Predictor{
		scaledPredictor{key: "p1", base: 1.0, scale: map[string]float64{"MOV_R64_R64": 3.0}},
		scaledPredictor{key: "p2", base: 1.0},
	}
	manager := predmanager.NewInProcessManager(preds, nil, 0, 4)
	g := New(ctx, manager, Params{
		PredictorKeys:          []string{"p1", "p2"},
		BatchSize:              8,
		MinInterestingness:     0.5,
		MostlyInterestingRatio: 0.5,
	})

	minimized, err := g.Minimize(context.Background(), mgr, bb, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, minimized.Len())
}
