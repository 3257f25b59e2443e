package interactive

import (
	"context"
	"net"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/abstraction"
	"anica/internal/feature"
	"anica/internal/generalizer"
	"anica/internal/iwho"
)

// fakeClientHandler answers generalize/selectExpansion by always choosing
// the first candidate, standing in for a real interactive client.
type fakeClientHandler struct{}

func (fakeClientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method != "generalize/selectExpansion" {
		return
	}
	_ = conn.Reply(ctx, req.ID, selectResult{Chosen: 0, Terminate: false})
}

func TestRemoteCallbackSelectsClientChoice(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	ctx := context.Background()
	serverConn := jsonrpc2.NewConn(ctx, jsonrpc2.NewPlainObjectStream(serverSide), nil)
	defer serverConn.Close()
	jsonrpc2.NewConn(ctx, jsonrpc2.NewPlainObjectStream(clientSide), fakeClientHandler{})

	iwhoCtx := iwho.NewInMemoryContext("x86-64", iwho.BuildDemoCatalog())
	decls := []feature.Declaration{
		{Name: feature.FeatureMnemonic, Kind: feature.KindEditDistance, MaxDist: 3},
	}
	mgr, err := feature.NewManager(decls, nil, iwhoCtx.Schemes())
	require.NoError(t, err)

	insn := abstraction.Top(mgr)
	ab := &abstraction.Block{Mgr: mgr, Insns: []*abstraction.Instruction{insn}, Aliasing: abstraction.NewTopAliasing()}

	cb := RemoteCallback{Conn: serverConn, Ctx: iwhoCtx}
	candidates := []generalizer.Candidate{
		{Expansion: abstraction.Expansion{Pos: 0, Feature: feature.FeatureMnemonic}, Benefit: 3},
	}

	decision, err := cb.Select(ab, candidates)
	require.NoError(t, err)
	assert.Equal(t, 0, decision.Chosen)
	assert.False(t, decision.Terminate)
}
