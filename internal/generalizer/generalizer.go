// Package generalizer implements the expansion search of spec §4.6: given a
// seed abstract block, repeatedly widen it one coordinate at a time as long
// as the widened block's sampled behavior stays mostly interesting.
package generalizer

import (
	"context"
	"math/rand"
	"sort"

	"github.com/segmentio/ksuid"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/interestingness"
	"anica/internal/iwho"
	"anica/internal/logging"
	"anica/internal/predmanager"
	"anica/internal/sampler"
)

var log = logging.Get("generalizer")

// TraceEntry records one accepted expansion: the expansion itself, the
// batch of concrete witnesses drawn to validate it, and the score that
// earned its acceptance — enough to reconstruct why the search moved.
type TraceEntry struct {
	Expansion abstraction.Expansion
	Witnesses []*iwho.ConcreteBlock
	Score     float64
}

// Result is the triple spec §4.6 names: the coarsest block reached, the
// ordered acceptance trace, and ResultRef, a sortable witness id (spec
// §6.4's witness_<id>.json naming) identifying this run's witnesses.
type Result struct {
	Block     *abstraction.Block
	Trace     []TraceEntry
	ResultRef string
}

// Params bundles the generalizer's tunables, all sourced from
// discovery.* config (spec §6.2).
type Params struct {
	PredictorKeys           []string
	BatchSize               int
	MinInterestingness      float64
	MostlyInterestingRatio  float64
	InvertInterestingness   bool
}

func (p Params) Metric() interestingness.Metric {
	return interestingness.Metric{
		MinInterestingness:     p.MinInterestingness,
		MostlyInterestingRatio: p.MostlyInterestingRatio,
		Invert:                 p.InvertInterestingness,
	}
}

// Strategy selects, among a block's candidate expansions, the order in
// which to try them (spec §4.6: "Model strategies as a closed variant, not
// a string lookup" — §9 design note).
type Strategy interface {
	// Order returns exps reordered (or filtered) for this attempt's trial
	// sequence, given rng for any randomization the strategy needs.
	Order(ab *abstraction.Block, exps []abstraction.Expansion, rng *rand.Rand) []abstraction.Expansion
}

// Callback is the interactive strategy's selection contract (spec §9:
// "its input is (ab, E_with_benefits), its output is the chosen expansion
// or a terminate signal").
type Callback interface {
	Select(ab *abstraction.Block, candidates []Candidate) (Decision, error)
}

// Candidate is one expansion offered to an interactive callback, annotated
// with its estimated benefit so the callback can rank without recomputing
// the max_benefit estimate itself.
type Candidate struct {
	Expansion abstraction.Expansion
	Benefit   int
}

// Decision is the callback's answer: either a chosen candidate index, or a
// request to stop immediately with the current ab as the final result
// (spec §9: "may return terminate_early, which yields the current ab as
// the final result without raising").
type Decision struct {
	Chosen      int
	Terminate   bool
}

// Generalizer runs the expansion loop of spec §4.6 for a single strategy
// attempt.
type Generalizer struct {
	Ctx    iwho.Context
	Preds  predmanager.Manager
	Params Params
}

// New builds a Generalizer over a predictor manager and search parameters.
func New(ctx iwho.Context, preds predmanager.Manager, params Params) *Generalizer {
	return &Generalizer{Ctx: ctx, Preds: preds, Params: params}
}

// Run executes one attempt of the expansion loop from seed ab0, trying
// candidates in the order strategy.Order prescribes, until no candidate is
// accepted (spec §4.6 step 2: "If no candidate is accepted, stop").
func (g *Generalizer) Run(pctx context.Context, ab0 *abstraction.Block, strat Strategy, rng *rand.Rand) (Result, error) {
	ab := ab0
	var trace []TraceEntry
	metric := g.Params.Metric()

	for {
		candidates := ab.Expansions()
		if len(candidates) == 0 {
			break
		}
		ordered := strat.Order(ab, candidates, rng)

		accepted := false
		for _, e := range ordered {
			ab2 := e.Apply(ab)
			witnesses, score, ok, err := g.tryExpansion(pctx, ab2, metric, rng)
			if err != nil {
				if ae, isAE := anicaerr.As(err, anicaerr.KindSampling); isAE {
					log.Debugf("expansion rejected as infeasible: %s", ae.Message)
					continue
				}
				return Result{}, err
			}
			if !ok {
				continue
			}
			ab = ab2
			trace = append(trace, TraceEntry{Expansion: e, Witnesses: witnesses, Score: score})
			log.Debugf("accepted expansion at pos=%d feature=%s", e.Pos, e.Feature)
			accepted = true
			break
		}
		if !accepted {
			break
		}
	}

	return Result{Block: ab, Trace: trace, ResultRef: ksuid.New().String()}, nil
}

// tryExpansion draws a batch from ab', evaluates it under every configured
// predictor, and reports whether the batch was mostly interesting. A batch
// dominated by sampling errors is treated as infeasible rather than "not
// interesting" (spec §4.6: "Sampling-error handling").
func (g *Generalizer) tryExpansion(pctx context.Context, ab *abstraction.Block, metric interestingness.Metric, rng *rand.Rand) ([]*iwho.ConcreteBlock, float64, bool, error) {
	s := sampler.NewSampler(ab, g.Ctx)

	var blocks []*iwho.ConcreteBlock
	var samplingErrs int
	for i := 0; i < g.Params.BatchSize; i++ {
		bb, err := s.Sample(rng)
		if err != nil {
			if _, ok := anicaerr.As(err, anicaerr.KindSampling); ok {
				samplingErrs++
				continue
			}
			return nil, 0, false, err
		}
		blocks = append(blocks, bb)
	}
	if samplingErrs > g.Params.BatchSize/2 {
		return nil, 0, false, anicaerr.Sampling(anicaerr.CodeSampleRetriesExhausted, "expansion's batch was mostly sampling errors").Build()
	}
	if len(blocks) == 0 {
		return nil, 0, false, anicaerr.Sampling(anicaerr.CodeEmptyConcretization, "expansion produced no samplable blocks").Build()
	}

	readingsPerBlock := make([]map[string]predmanager.Reading, len(blocks))
	for i := range readingsPerBlock {
		readingsPerBlock[i] = make(map[string]predmanager.Reading, len(g.Params.PredictorKeys))
	}
	for _, key := range g.Params.PredictorKeys {
		readings, err := g.Preds.Evaluate(pctx, key, blocks)
		if err != nil {
			return nil, 0, false, err
		}
		for i, r := range readings {
			readingsPerBlock[i][key] = r
		}
	}

	results, mostly := metric.ScoreBatch(readingsPerBlock)
	if !mostly {
		return nil, 0, false, nil
	}
	avg := averageScore(results)
	return blocks, avg, true, nil
}

func averageScore(results []interestingness.BatchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

// RandomStrategy shuffles the candidate list with the attempt's RNG and
// tries it in that order (spec §4.6: "random(N): shuffle E with the RNG;
// try in shuffled order; tie-break stable").
type RandomStrategy struct{}

func (RandomStrategy) Order(_ *abstraction.Block, exps []abstraction.Expansion, rng *rand.Rand) []abstraction.Expansion {
	out := make([]abstraction.Expansion, len(exps))
	copy(out, exps)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// MaxBenefitStrategy orders candidates by descending estimated benefit —
// the size of γ(ab') \ γ(ab) at the affected instruction position, the
// cheap feature-index estimate spec §4.6 prescribes in place of sampling
// the true concretization size.
type MaxBenefitStrategy struct{}

func (MaxBenefitStrategy) Order(ab *abstraction.Block, exps []abstraction.Expansion, _ *rand.Rand) []abstraction.Expansion {
	type scored struct {
		exp     abstraction.Expansion
		benefit int
	}
	scoredExps := make([]scored, len(exps))
	for i, e := range exps {
		scoredExps[i] = scored{exp: e, benefit: estimateBenefit(ab, e)}
	}
	sort.SliceStable(scoredExps, func(i, j int) bool {
		return scoredExps[i].benefit > scoredExps[j].benefit
	})
	out := make([]abstraction.Expansion, len(scoredExps))
	for i, s := range scoredExps {
		out[i] = s.exp
	}
	return out
}

// estimateBenefit sizes |γ(ab') \ γ(ab)| at the position an expansion
// touches; aliasing expansions (Pos == -1) don't change any single
// position's concretization, so their benefit is a flat 1.
func estimateBenefit(ab *abstraction.Block, e abstraction.Expansion) int {
	if e.Pos < 0 {
		return 1
	}
	ab2 := e.Apply(ab)
	before := ab.Insns[e.Pos].Concretization()
	after := ab2.Insns[e.Pos].Concretization()
	return after.Minus(before).Len()
}

// InteractiveStrategy delegates candidate selection to an external
// callback (spec §4.6's "interactive" strategy). It reorders the block's
// expansions to put the callback's chosen candidate first and the rest
// after it in their original order, so Run's normal try-in-order loop
// picks it up; a terminate decision empties the order, which Run treats
// as "no candidate accepted" and stops.
type InteractiveStrategy struct {
	Callback Callback
}

func (s InteractiveStrategy) Order(ab *abstraction.Block, exps []abstraction.Expansion, _ *rand.Rand) []abstraction.Expansion {
	candidates := make([]Candidate, len(exps))
	for i, e := range exps {
		candidates[i] = Candidate{Expansion: e, Benefit: estimateBenefit(ab, e)}
	}
	decision, err := s.Callback.Select(ab, candidates)
	if err != nil || decision.Terminate {
		return nil
	}
	if decision.Chosen < 0 || decision.Chosen >= len(exps) {
		return nil
	}
	out := make([]abstraction.Expansion, 0, len(exps))
	out = append(out, exps[decision.Chosen])
	for i, e := range exps {
		if i != decision.Chosen {
			out = append(out, e)
		}
	}
	return out
}

// RunN runs the random(N) strategy's outer repetition (spec §4.6: "Run the
// entire generalization N times from ab₀ with different seeds; return the
// coarsest (lowest-subsumption) result, tie-break by shortest trace").
func (g *Generalizer) RunN(pctx context.Context, ab0 *abstraction.Block, n int, baseSeed int64) (Result, error) {
	var best Result
	haveBest := false
	for attempt := 0; attempt < n; attempt++ {
		rng := rand.New(rand.NewSource(baseSeed + int64(attempt)))
		res, err := g.Run(pctx, ab0, RandomStrategy{}, rng)
		if err != nil {
			return Result{}, err
		}
		if !haveBest || isCoarserOrShorter(res, best) {
			best = res
			haveBest = true
		}
	}
	return best, nil
}

// isCoarserOrShorter reports whether a should replace b as the best random(N)
// result: a subsumes more (is coarser), tie-broken by a shorter trace.
func isCoarserOrShorter(a, b Result) bool {
	if a.Block.Subsumes(b.Block) && !b.Block.Subsumes(a.Block) {
		return true
	}
	if b.Block.Subsumes(a.Block) && !a.Block.Subsumes(b.Block) {
		return false
	}
	return len(a.Trace) < len(b.Trace)
}
