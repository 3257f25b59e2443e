package interactive

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"

	"anica/internal/abstraction"
	"anica/internal/generalizer"
	"anica/internal/iwho"
)

// candidateWire is the JSON shape of one offered expansion (spec §9:
// "its input is (ab, E_with_benefits)").
type candidateWire struct {
	Index   int    `json:"index"`
	Pos     int    `json:"pos"`
	Feature string `json:"feature,omitempty"`
	Benefit int    `json:"benefit"`
}

type selectParams struct {
	Block      map[string]any  `json:"block"`
	Candidates []candidateWire `json:"candidates"`
}

type selectResult struct {
	Chosen    int  `json:"chosen"`
	Terminate bool `json:"terminate"`
}

// RemoteCallback implements generalizer.Callback by calling out to the
// connected interactive client over JSON-RPC, blocking until it answers.
type RemoteCallback struct {
	Conn *jsonrpc2.Conn
	Ctx  iwho.Context
}

// Select renders ab and its candidates to the wire format and waits for the
// client's decision; a terminate decision or a wire error both surface as
// generalizer.Decision{Terminate: true}, matching InteractiveStrategy's
// own treatment of a failed or declining callback.
func (r RemoteCallback) Select(ab *abstraction.Block, candidates []generalizer.Candidate) (generalizer.Decision, error) {
	wire := make([]candidateWire, len(candidates))
	for i, c := range candidates {
		wire[i] = candidateWire{Index: i, Pos: c.Expansion.Pos, Feature: c.Expansion.Feature, Benefit: c.Benefit}
	}

	var result selectResult
	err := r.Conn.Call(context.Background(), "generalize/selectExpansion", selectParams{
		Block:      ab.Marshal(r.Ctx),
		Candidates: wire,
	}, &result)
	if err != nil {
		log.Debugf("interactive client call failed, terminating generalization: %v", err)
		return generalizer.Decision{Terminate: true}, nil
	}
	return generalizer.Decision{Chosen: result.Chosen, Terminate: result.Terminate}, nil
}
