// Package predmanager defines the Predictor Manager contract from spec
// §4.4 — the core's only view of the throughput predictors — and ships an
// in-process reference implementation.
package predmanager

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"anica/internal/anicaerr"
	"anica/internal/iwho"
)

// Reading is one predictor's result for one block: a positive
// cycles-per-iteration value, or a failure (spec §4.4: "missing/non-positive"
// means failed).
type Reading struct {
	TP     float64
	Failed bool
}

// Predictor is the black-box mapping spec §4.4 treats predictors as: a
// basic block in, a cycles-per-iteration number or failure out.
type Predictor interface {
	Key() string
	Predict(ctx context.Context, bb *iwho.ConcreteBlock) (float64, error)
}

// Manager is the core's contract onto the predictor layer: evaluate a
// batch under a predictor, resolve registry key patterns, and surface any
// configured unsupported-instruction filter files.
type Manager interface {
	Evaluate(ctx context.Context, predictorKey string, blocks []*iwho.ConcreteBlock) ([]Reading, error)
	ResolveKeyPatterns(patterns []string) ([]string, error)
	GetInsnFilterFiles(key string) ([]string, error)
}

// InProcessManager runs registered Predictor implementations directly in
// this process, fanning a batch out across a bounded worker pool with a
// per-call timeout (spec §4.4: "evaluation may be parallel across
// predictors and across blocks, with a per-call timeout").
type InProcessManager struct {
	predictors  map[string]Predictor
	filterFiles map[string][]string
	timeout     time.Duration
	parallelism int
}

// NewInProcessManager builds a manager over the given predictors. timeout
// bounds each individual Predict call; parallelism bounds concurrent
// Predict calls within one Evaluate (0 means unbounded).
func NewInProcessManager(predictors []Predictor, filterFiles map[string][]string, timeout time.Duration, parallelism int) *InProcessManager {
	m := &InProcessManager{
		predictors:  make(map[string]Predictor, len(predictors)),
		filterFiles: filterFiles,
		timeout:     timeout,
		parallelism: parallelism,
	}
	for _, p := range predictors {
		m.predictors[p.Key()] = p
	}
	return m
}

// Evaluate runs predictorKey over every block in blocks, positionally
// aligned with the input (spec §4.4 ordering guarantee).
func (m *InProcessManager) Evaluate(ctx context.Context, predictorKey string, blocks []*iwho.ConcreteBlock) ([]Reading, error) {
	p, ok := m.predictors[predictorKey]
	if !ok {
		return nil, anicaerr.Predictor(anicaerr.CodePredictorCrash, "no predictor registered for key "+predictorKey).Build()
	}

	readings := make([]Reading, len(blocks))
	sem := make(chan struct{}, m.workerLimit(len(blocks)))
	var wg sync.WaitGroup
	for i, bb := range blocks {
		i, bb := i, bb
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			readings[i] = m.evaluateOne(ctx, p, bb)
		}()
	}
	wg.Wait()
	return readings, nil
}

func (m *InProcessManager) workerLimit(n int) int {
	if m.parallelism > 0 && m.parallelism < n {
		return m.parallelism
	}
	if n == 0 {
		return 1
	}
	return n
}

func (m *InProcessManager) evaluateOne(ctx context.Context, p Predictor, bb *iwho.ConcreteBlock) Reading {
	callCtx := ctx
	var cancel context.CancelFunc
	if m.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	type result struct {
		tp  float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		tp, err := p.Predict(callCtx, bb)
		done <- result{tp, err}
	}()

	select {
	case <-callCtx.Done():
		return Reading{Failed: true}
	case r := <-done:
		if r.err != nil || r.tp <= 0 {
			return Reading{Failed: true}
		}
		return Reading{TP: r.tp}
	}
}

// ResolveKeyPatterns expands regex patterns against registered predictor
// keys, returning the matches in a deterministic (sorted, deduplicated)
// order.
func (m *InProcessManager) ResolveKeyPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "invalid predictor key pattern "+pat).WithCause(err).Build()
		}
		for key := range m.predictors {
			if re.MatchString(key) {
				seen[key] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// GetInsnFilterFiles returns the configured unsupported-instruction filter
// file paths for a predictor, or nil if none are configured.
func (m *InProcessManager) GetInsnFilterFiles(key string) ([]string, error) {
	return m.filterFiles[key], nil
}
