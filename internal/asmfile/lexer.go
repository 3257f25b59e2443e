package asmfile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// AsmLexer tokenizes the seed-block text format: identifiers (mnemonics,
// register names), integer literals (immediates, in decimal or hex),
// punctuation for operand lists and memory brackets, and `//` line
// comments.
var AsmLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},
		{"Punctuation", `[\[\]+,]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
