package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/abstraction"
	"anica/internal/feature"
	"anica/internal/generalizer"
	"anica/internal/iwho"
	"anica/internal/predmanager"
)

// scaledPredictor reports a throughput scaled by a multiplier looked up by
// the scheme id of the block's first instruction, giving a controllable, deterministic
// interestingness signal across sampled batches.
type scaledPredictor struct {
	key   string
	scale map[string]float64
	base  float64
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

func agreeing(t *testing.T) predmanager.Manager {
	t.Helper()
	preds := []predmanager.Predictor{
		scaledPredictor{key: "p1", base: 1.0},
		scaledPredictor{key: "p2", base: 1.0},
	}
	return predmanager.NewInProcessManager(preds, nil, 0, 4)
}

func newParams(mostlyInteresting bool) Params {
	minInt := 0.5
	if !mostlyInteresting {
		minInt = 100 // unreachable, so nothing is ever interesting
	}
	return Params{
		BatchSize:            4,
		PossibleBlockLengths: []int{1},
		GeneralizationParams: generalizer.Params{
			PredictorKeys:          []string{"p1", "p2"},
			BatchSize:              4,
			MinInterestingness:     minInt,
			MostlyInterestingRatio: 0.5,
		},
		Termination: Termination{MaxDiscoveries: 1, MaxStaleBatches: 3},
	}
}

func TestRunFindsADiscoveryWhenPredictorsDiverge(t *testing.T) {
	mgr, ctx := setup(t)
	loop := New(mgr, ctx, diverging(t), NewCache(), newParams(true))

	discoveries, err := loop.Run(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, discoveries)
	assert.NotEmpty(t, discoveries[0].ID)
	assert.Equal(t, 1, loop.Cache.Len())
}

func TestRunStopsAtMaxStaleBatchesWhenNothingIsInteresting(t *testing.T) {
	mgr, ctx := setup(t)
	params := newParams(false)
	params.Termination = Termination{MaxStaleBatches: 2}
	loop := New(mgr, ctx, agreeing(t), NewCache(), params)

	discoveries, err := loop.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, discoveries)
}

func TestRunHonorsExplicitStopSignal(t *testing.T) {
	mgr, ctx := setup(t)
	params := newParams(false)
	stop := make(chan struct{})
	close(stop)
	params.Termination = Termination{Stop: stop}
	loop := New(mgr, ctx, agreeing(t), NewCache(), params)

	discoveries, err := loop.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, discoveries)
}

func TestRunHonorsMaxDuration(t *testing.T) {
	mgr, ctx := setup(t)
	params := newParams(false)
	params.Termination = Termination{MaxDuration: time.Nanosecond}
	loop := New(mgr, ctx, agreeing(t), NewCache(), params)

	discoveries, err := loop.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, discoveries)
}

func TestCacheSubsumedByConcreteSkipsAlreadyKnownDiscoveries(t *testing.T) {
	mgr, ctx := setup(t)
	movScheme, ok := ctx.Scheme("MOV_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, movScheme)
	require.NoError(t, err)
	top := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

	cache := NewCache()
	cache.Add(top)

	bb := &iwho.ConcreteBlock{Instructions: []iwho.ConcreteInstruction{
		{Scheme: movScheme.ID, Operands: map[string]iwho.OperandAssignment{
			"dst": {Kind: iwho.OperandRegister, Register: "rax"},
			"src": {Kind: iwho.OperandRegister, Register: "rbx"},
		}},
	}}
	ab, err := abstraction.FromConcrete(mgr, ctx, bb)
	require.NoError(t, err)
	assert.True(t, cache.SubsumedByConcrete(ab))
}

func TestCacheDiscoveriesOrderedByLength(t *testing.T) {
	mgr, ctx := setup(t)
	movScheme, ok := ctx.Scheme("MOV_R64_R64")
	require.True(t, ok)
	insn, err := abstraction.FromScheme(mgr, movScheme)
	require.NoError(t, err)

	one := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}
	two := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn, insn}, Aliasing: abstraction.NewTopAliasing()}

	cache := NewCache()
	cache.Add(two)
	cache.Add(one)

	out := cache.Discoveries()
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Len())
	assert.Equal(t, 2, out[1].Len())
	_ = ctx
}
