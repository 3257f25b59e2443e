// Package asmfile parses and emits the human-written seed-block text format
// consumed by `generalize <asm_file>` and written as a campaign's
// start_bb.s/minimized_bb.s (spec §6.3/§6.4): one instruction per line, a
// mnemonic followed by comma-separated register, memory, or immediate
// operands.
package asmfile

// File is the parsed form of an .s seed-block file: a flat instruction
// sequence, with comment-only lines preserved for round-tripping but
// discarded by the resolver.
type File struct {
	Lines []*Line `@@*`
}

// Line is either a comment or one instruction.
type Line struct {
	Comment *Comment `  @@`
	Insn    *Insn    `| @@`
}

// Comment holds a `//`-introduced line comment.
type Comment struct {
	Text string `@Comment`
}

// Insn is a mnemonic and its operand list.
type Insn struct {
	Mnemonic string     `@Ident`
	Operands []*Operand `[ @@ { "," @@ } ]`
}

// Operand is one of a memory reference, a bare register name, or an
// immediate integer literal.
type Operand struct {
	Memory    *MemoryOperand `  @@`
	Immediate *string        `| @Integer`
	Register  *string        `| @Ident`
}

// MemoryOperand is a bracketed base register plus an optional index
// register, e.g. `[rax]` or `[rax+rbx]`.
type MemoryOperand struct {
	Base  string `"[" @Ident`
	Index string `[ "+" @Ident ]`
	Close string `"]"`
}
