package asmfile

import (
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"anica/internal/anicaerr"
	"anica/internal/iwho"
)

var asmParser = participle.MustBuild[File](
	participle.Lexer(AsmLexer),
	participle.Elide("Whitespace"),
)

// Parse reads an .s seed-block file and resolves it against ctx into a
// ConcreteBlock (spec §6.3: `generalize <asm_file>`'s input).
func Parse(path string, ctx iwho.Context) (*iwho.ConcreteBlock, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, anicaerr.Config(anicaerr.CodePathResolution, "cannot read asm file "+path).WithCause(err).Build()
	}

	file, err := asmParser.ParseString(path, string(src))
	if err != nil {
		reportParseError(string(src), err)
		return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed asm file "+path).WithCause(err).Build()
	}

	return Resolve(file, ctx)
}

// Resolve maps a parsed File's instruction lines onto concrete instructions
// of ctx's scheme universe, matching each line's mnemonic and operand-kind
// shape against the schemes ctx exposes.
func Resolve(file *File, ctx iwho.Context) (*iwho.ConcreteBlock, error) {
	var insns []iwho.ConcreteInstruction
	for _, line := range file.Lines {
		if line.Insn == nil {
			continue // comment-only line
		}
		insn, err := resolveLine(line.Insn, ctx)
		if err != nil {
			return nil, err
		}
		insns = append(insns, insn)
	}
	return &iwho.ConcreteBlock{Instructions: insns}, nil
}

func resolveLine(l *Insn, ctx iwho.Context) (iwho.ConcreteInstruction, error) {
	for _, scheme := range ctx.Schemes() {
		if !strings.EqualFold(scheme.Mnemonic, l.Mnemonic) {
			continue
		}
		if len(scheme.Operands) != len(l.Operands) {
			continue
		}
		assignments, ok := tryAssign(scheme, l.Operands)
		if !ok {
			continue
		}
		return iwho.ConcreteInstruction{Scheme: scheme.ID, Operands: assignments}, nil
	}
	return iwho.ConcreteInstruction{}, anicaerr.IWHO(anicaerr.CodeSchemeNotFound, "no scheme matches mnemonic "+l.Mnemonic+" with "+strconv.Itoa(len(l.Operands))+" operand(s)").Build()
}

func tryAssign(scheme *iwho.Scheme, operands []*Operand) (map[string]iwho.OperandAssignment, bool) {
	out := make(map[string]iwho.OperandAssignment, len(scheme.Operands))
	for i, op := range scheme.Operands {
		assign, ok := assignOperand(op, operands[i])
		if !ok {
			return nil, false
		}
		out[op.Name] = assign
	}
	return out, true
}

func assignOperand(op iwho.Operand, src *Operand) (iwho.OperandAssignment, bool) {
	switch {
	case src.Memory != nil && op.Kind == iwho.OperandMemory:
		a := iwho.OperandAssignment{Kind: iwho.OperandMemory, Register: src.Memory.Base}
		if src.Memory.Index != "" {
			a.IndexReg = src.Memory.Index
			a.Scale = 1
		}
		return a, true
	case src.Immediate != nil && op.Kind == iwho.OperandImmediate:
		n, err := strconv.ParseInt(*src.Immediate, 0, 64)
		if err != nil {
			return iwho.OperandAssignment{}, false
		}
		return iwho.OperandAssignment{Kind: iwho.OperandImmediate, Immediate: n}, true
	case src.Register != nil && op.Kind == iwho.OperandRegister:
		return iwho.OperandAssignment{Kind: iwho.OperandRegister, Register: *src.Register}, true
	case src.Register != nil && op.Kind == iwho.OperandFlag:
		return iwho.OperandAssignment{Kind: iwho.OperandFlag}, true
	default:
		return iwho.OperandAssignment{}, false
	}
}

// Write renders bb through ctx's assembler and saves it to path (spec
// §6.4: campaign/generalize-run start_bb.s / minimized_bb.s artifacts).
func Write(path string, ctx iwho.Context, bb *iwho.ConcreteBlock) error {
	text, err := ctx.Assemble(bb)
	if err != nil {
		return anicaerr.IWHO(anicaerr.CodeSchemeNotFound, "cannot assemble block for "+path).WithCause(err).Build()
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// reportParseError prints a caret-style parse error message, matching the
// teacher's diagnostic printer for syntax errors.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("unexpected error: %s", err)
		return
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}
	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"
	color.Red("syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	color.HiRed(caret)
	_ = line
}
