package generalizer

import (
	"context"
	"math/rand"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/feature"
	"anica/internal/interestingness"
	"anica/internal/iwho"
)

// Minimize greedily removes one instruction at a time from bb, keeping the
// removal only when a freshly-sampled perturbation batch around the
// shortened block stays mostly interesting (spec §4.7). It terminates when
// no single-instruction deletion preserves interestingness, and returns the
// shortened block that seeds generalization.
func (g *Generalizer) Minimize(pctx context.Context, mgr *feature.Manager, bb *iwho.ConcreteBlock, rng *rand.Rand) (*iwho.ConcreteBlock, error) {
	metric := g.Params.Metric()
	current := bb

	for {
		if current.Len() <= 1 {
			return current, nil
		}
		removed := false
		for i := 0; i < current.Len(); i++ {
			candidate := withoutInstruction(current, i)
			ok, err := g.candidateStaysInteresting(pctx, mgr, candidate, metric, rng)
			if err != nil {
				return nil, err
			}
			if ok {
				current = candidate
				removed = true
				break
			}
		}
		if !removed {
			return current, nil
		}
	}
}

// candidateStaysInteresting lifts candidate to its most precise abstract
// block, draws a perturbation batch from it via lift-and-sample, and scores
// the batch.
func (g *Generalizer) candidateStaysInteresting(pctx context.Context, mgr *feature.Manager, candidate *iwho.ConcreteBlock, metric interestingness.Metric, rng *rand.Rand) (bool, error) {
	ab, err := abstraction.FromConcrete(mgr, g.Ctx, candidate)
	if err != nil {
		return false, err
	}
	_, _, ok, err := g.tryExpansion(pctx, ab, metric, rng)
	if err != nil {
		if _, isSampling := anicaerr.As(err, anicaerr.KindSampling); isSampling {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func withoutInstruction(bb *iwho.ConcreteBlock, i int) *iwho.ConcreteBlock {
	out := make([]iwho.ConcreteInstruction, 0, bb.Len()-1)
	out = append(out, bb.Instructions[:i]...)
	out = append(out, bb.Instructions[i+1:]...)
	return &iwho.ConcreteBlock{Instructions: out}
}
