// SPDX-License-Identifier: Apache-2.0
package main

import (
	"math/rand"

	"anica/internal/abstraction"
	"anica/internal/anicaerr"
	"anica/internal/iwho"
	"anica/internal/sampler"
)

// sampleN draws up to n concrete blocks from ab, skipping individually
// infeasible draws; it fails only if every draw is infeasible.
func sampleN(ab *abstraction.Block, ctx iwho.Context, n int, rng *rand.Rand) ([]*iwho.ConcreteBlock, error) {
	s := sampler.NewSampler(ab, ctx)
	out := make([]*iwho.ConcreteBlock, 0, n)
	var lastErr error
	for i := 0; i < n; i++ {
		bb, err := s.Sample(rng)
		if err != nil {
			if _, ok := anicaerr.As(err, anicaerr.KindSampling); ok {
				lastErr = err
				continue
			}
			return nil, err
		}
		out = append(out, bb)
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}
