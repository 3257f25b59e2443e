package discovery

import (
	"context"
	"math/rand"
	"time"

	"github.com/segmentio/ksuid"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/feature"
	"anica/internal/generalizer"
	"anica/internal/iwho"
	"anica/internal/logging"
	"anica/internal/measurementdb"
	"anica/internal/predmanager"
	"anica/internal/sampler"
)

// Discovery pairs an accepted abstract block with the sortable id spec
// §6.4's discovery_<id>.json naming needs, and the generalization result
// (trace, witness ref) that produced it.
type Discovery struct {
	ID     string
	Block  *abstraction.Block
	Result generalizer.Result
}

var log = logging.Get("discovery")

// Termination bundles the termination criteria of spec §4.8: "any
// conjunction of: max discoveries, max time, max consecutive batches
// without a new discovery, explicit stop signal". Zero-value fields mean
// "no bound from this criterion".
type Termination struct {
	MaxDiscoveries    int
	MaxDuration       time.Duration
	MaxStaleBatches   int
	Stop              <-chan struct{} // closed or sent to for UserInterrupt
}

// satisfied reports whether any configured criterion is met, evaluated
// only at batch boundaries (spec §4.8: "The first criterion satisfied
// after a completed batch ends the campaign — campaigns may terminate
// only at batch boundaries").
func (t Termination) satisfied(discoveries, staleBatches int, start time.Time) bool {
	if t.MaxDiscoveries > 0 && discoveries >= t.MaxDiscoveries {
		return true
	}
	if t.MaxDuration > 0 && time.Since(start) >= t.MaxDuration {
		return true
	}
	if t.MaxStaleBatches > 0 && staleBatches >= t.MaxStaleBatches {
		return true
	}
	select {
	case <-t.Stop:
		return true
	default:
	}
	return false
}

// StrategySpec names one generalization attempt: a strategy ("random",
// "max_benefit", or "interactive") and its N (meaningful only for
// "random"), mirroring discovery.generalization_strategy's list-of-[name,N]
// shape (spec §6.2).
type StrategySpec struct {
	Name string
	N    int
}

// Params bundles a campaign's discovery-loop tunables, sourced from
// discovery.* configuration (spec §6.2).
type Params struct {
	BatchSize              int
	PossibleBlockLengths   []int
	GeneralizationParams   generalizer.Params
	GeneralizationStrategy []StrategySpec
	Termination            Termination
}

// Loop runs campaigns of the discovery algorithm from spec §4.8 against a
// shared, persistent subsumption Cache (so a sequence of campaigns in one
// process run sees prior campaigns' discoveries, per §8 end-to-end scenario
// 6's intent).
type Loop struct {
	Mgr    *feature.Manager
	Ctx    iwho.Context
	Preds  predmanager.Manager
	Cache  *Cache
	Params Params

	// DB, if non-nil, receives every batch evaluation's readings, one
	// RecordBatch call per predictor per batch (spec §5: "transactional at
	// the granularity of one batch evaluation"). A nil DB silently
	// discards measurements, equivalent to measurementdb.NullDB.
	DB measurementdb.DB
}

// New builds a Loop over a shared subsumption cache. Callers that want
// measurements persisted set the returned Loop's DB field before Run.
func New(mgr *feature.Manager, ctx iwho.Context, preds predmanager.Manager, cache *Cache, params Params) *Loop {
	return &Loop{Mgr: mgr, Ctx: ctx, Preds: preds, Cache: cache, Params: params}
}

// Run executes one campaign: repeated discovery batches until a
// termination criterion fires at a batch boundary (spec §4.8 steps 1-5).
// seed threads the campaign's RNG (spec §9: "thread an explicit RNG
// through the discovery loop").
func (l *Loop) Run(pctx context.Context, seed int64) ([]Discovery, error) {
	rng := rand.New(rand.NewSource(seed))
	gen := generalizer.New(l.Ctx, l.Preds, l.Params.GeneralizationParams)
	metric := l.Params.GeneralizationParams.Metric()

	start := time.Now()
	var newDiscoveries []Discovery
	staleBatches := 0

	for {
		batch, err := l.drawBatch(rng)
		if err != nil {
			return newDiscoveries, err
		}

		readingsPerBlock, err := l.evaluateBatch(pctx, batch)
		if err != nil {
			return newDiscoveries, err
		}
		results, _ := metric.ScoreBatch(readingsPerBlock)

		foundThisBatch := false
		for i, bb := range batch {
			if !results[i].Interesting {
				continue
			}
			ab, err := abstraction.FromConcrete(l.Mgr, l.Ctx, bb)
			if err != nil {
				return newDiscoveries, err
			}
			if l.Cache.SubsumedByConcrete(ab) {
				continue
			}

			minimized, err := gen.Minimize(pctx, l.Mgr, bb, rng)
			if err != nil {
				if _, ok := anicaerr.As(err, anicaerr.KindSampling); ok {
					log.Debugf("minimize hit a sampling error, keeping the unminimized block: %v", err)
					minimized = bb
				} else {
					return newDiscoveries, err
				}
			}
			seedAb, err := abstraction.FromConcrete(l.Mgr, l.Ctx, minimized)
			if err != nil {
				return newDiscoveries, err
			}

			result, err := l.generalizeFromSeed(pctx, gen, seedAb, seed+int64(len(newDiscoveries)))
			if err != nil {
				return newDiscoveries, err
			}

			if l.Cache.SubsumedByAny(result.Block) {
				continue
			}
			l.Cache.Add(result.Block)
			newDiscoveries = append(newDiscoveries, Discovery{ID: ksuid.New().String(), Block: result.Block, Result: result})
			foundThisBatch = true
			log.Noticef("new discovery at length %d with %d accepted expansions", result.Block.Len(), len(result.Trace))
		}

		if foundThisBatch {
			staleBatches = 0
		} else {
			staleBatches++
		}

		if l.Params.Termination.satisfied(len(newDiscoveries), staleBatches, start) {
			return newDiscoveries, nil
		}
	}
}

// generalizeFromSeed dispatches to the strategy named by the first entry of
// l.Params.GeneralizationStrategy (spec §6.2's list-of-[name,N] shape):
// "max_benefit" runs once ordering candidates by descending estimated
// benefit, "random" (the default, absent any configured entry) runs the
// outer N-attempt repetition via RunN (spec §4.6), and any other name runs
// once in RandomStrategy's shuffled order.
func (l *Loop) generalizeFromSeed(pctx context.Context, gen *generalizer.Generalizer, seedAb *abstraction.Block, seed int64) (generalizer.Result, error) {
	name, n := "random", 8
	if len(l.Params.GeneralizationStrategy) > 0 {
		name = l.Params.GeneralizationStrategy[0].Name
		if l.Params.GeneralizationStrategy[0].N > 0 {
			n = l.Params.GeneralizationStrategy[0].N
		}
	}
	rng := rand.New(rand.NewSource(seed))
	switch name {
	case "max_benefit":
		return gen.Run(pctx, seedAb, generalizer.MaxBenefitStrategy{}, rng)
	case "random", "":
		return gen.RunN(pctx, seedAb, n, seed)
	default:
		return gen.Run(pctx, seedAb, generalizer.RandomStrategy{}, rng)
	}
}

// drawBatch draws discovery_batch_size concrete blocks from ⊤ over a
// length drawn uniformly from PossibleBlockLengths (spec §4.8 step 1;
// duplicate lengths in the list bias the distribution, which falls out
// naturally from drawing uniformly over the literal list rather than its
// distinct values).
func (l *Loop) drawBatch(rng *rand.Rand) ([]*iwho.ConcreteBlock, error) {
	if len(l.Params.PossibleBlockLengths) == 0 {
		return nil, anicaerr.Discovery(anicaerr.CodeNoSatisfiableTop, "no possible block lengths configured").Build()
	}
	out := make([]*iwho.ConcreteBlock, 0, l.Params.BatchSize)
	for i := 0; i < l.Params.BatchSize; i++ {
		n := l.Params.PossibleBlockLengths[rng.Intn(len(l.Params.PossibleBlockLengths))]
		top := abstraction.MakeTop(l.Mgr, n)
		s := sampler.NewSampler(top, l.Ctx)
		bb, err := s.Sample(rng)
		if err != nil {
			if _, ok := anicaerr.As(err, anicaerr.KindSampling); ok {
				continue // infeasible draw at this length; skip rather than fail the whole batch
			}
			return nil, err
		}
		out = append(out, bb)
	}
	if len(out) == 0 {
		return nil, anicaerr.Discovery(anicaerr.CodeNoSatisfiableTop, "no satisfiable top-of-lattice block exists for any configured length").Build()
	}
	return out, nil
}

func (l *Loop) evaluateBatch(pctx context.Context, batch []*iwho.ConcreteBlock) ([]map[string]predmanager.Reading, error) {
	readingsPerBlock := make([]map[string]predmanager.Reading, len(batch))
	for i := range readingsPerBlock {
		readingsPerBlock[i] = make(map[string]predmanager.Reading, len(l.Params.GeneralizationParams.PredictorKeys))
	}
	for _, key := range l.Params.GeneralizationParams.PredictorKeys {
		readings, err := l.Preds.Evaluate(pctx, key, batch)
		if err != nil {
			return nil, err
		}
		for i, r := range readings {
			readingsPerBlock[i][key] = r
		}
		if l.DB != nil {
			if err := l.DB.RecordBatch(key, blockSchemeIDs(batch), readings); err != nil {
				return nil, err
			}
		}
	}
	return readingsPerBlock, nil
}

func blockSchemeIDs(batch []*iwho.ConcreteBlock) [][]string {
	out := make([][]string, len(batch))
	for i, bb := range batch {
		ids := make([]string, len(bb.Instructions))
		for j, insn := range bb.Instructions {
			ids[j] = string(insn.Scheme)
		}
		out[i] = ids
	}
	return out
}
