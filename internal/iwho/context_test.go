package iwho

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryContextDeterministicOrder(t *testing.T) {
	ctx := NewInMemoryContext("x86-64", BuildDemoCatalog())
	first := ctx.Schemes()
	second := ctx.Schemes()
	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestNoControlFlowFilterDropsBranches(t *testing.T) {
	schemes := append(BuildDemoCatalog(), &Scheme{ID: "JMP_REL32", Mnemonic: "jmp", Category: "UNCOND_BR"})
	ctx := NewInMemoryContext("x86-64", schemes)

	filtered := ctx.Filtered([]Filter{NoControlFlowFilter{}})
	for _, s := range filtered.Schemes() {
		assert.False(t, s.HasControlFlow())
	}
	assert.Less(t, len(filtered.Schemes()), len(ctx.Schemes()))
}

func TestBlacklistFilterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bl.csv")
	require.NoError(t, os.WriteFile(path, []byte("NOP\n"), 0o644))

	f, err := LoadListFilter(path, false)
	require.NoError(t, err)

	ctx := NewInMemoryContext("x86-64", BuildDemoCatalog())
	filtered := ctx.Filtered([]Filter{f})
	_, stillThere := filtered.Scheme("NOP")
	assert.False(t, stillThere)

	_, stillThere = filtered.Scheme("ADD_R64_R64")
	assert.True(t, stillThere)
}

func TestAssembleRendersRegisterOperands(t *testing.T) {
	ctx := NewInMemoryContext("x86-64", BuildDemoCatalog())
	bb := &ConcreteBlock{Instructions: []ConcreteInstruction{
		{Scheme: "MOV_R64_R64", Operands: map[string]OperandAssignment{
			"dst": {Kind: OperandRegister, Register: "rax"},
			"src": {Kind: OperandRegister, Register: "rbx"},
		}},
	}}
	asm, err := ctx.Assemble(bb)
	require.NoError(t, err)
	assert.Contains(t, asm, "mov")
	assert.Contains(t, asm, "rax")
	assert.Contains(t, asm, "rbx")
}

func TestSchemeSetAlgebra(t *testing.T) {
	a := NewSchemeSet("x", "y", "z")
	b := NewSchemeSet("y", "z", "w")

	assert.Equal(t, 2, a.Intersect(b).Len())
	assert.Equal(t, 4, a.Union(b).Len())
	assert.Equal(t, 1, a.Minus(b).Len())
}
