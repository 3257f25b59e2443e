package iwho

import "fmt"

// OperandAssignment is the concrete resolution of one operand: a register
// name (possibly with a displacement, for memory operands), or an immediate
// value.
type OperandAssignment struct {
	Kind       OperandKind
	Register   string // resolved register, for Register and Memory (base) operands
	IndexReg   string // resolved index register, for Memory operands with an index
	Scale      int    // memory scale factor, 0 means no index
	Displacement int64
	Immediate  int64
}

// Text renders the assignment in the minimal textual form InMemoryContext's
// Assemble uses.
func (a OperandAssignment) Text(op Operand) string {
	switch a.Kind {
	case OperandImmediate:
		return fmt.Sprintf("%d", a.Immediate)
	case OperandMemory:
		if a.IndexReg != "" {
			return fmt.Sprintf("[%s+%s*%d+%d]", a.Register, a.IndexReg, a.Scale, a.Displacement)
		}
		return fmt.Sprintf("[%s+%d]", a.Register, a.Displacement)
	case OperandFlag:
		return op.Name
	default: // OperandRegister
		return a.Register
	}
}

// ConcreteInstruction is one fully-resolved instruction: a scheme plus a
// concrete assignment for every one of its operands.
type ConcreteInstruction struct {
	Scheme   SchemeID
	Operands map[string]OperandAssignment
}

// ConcreteBlock is a fixed-length, straight-line sequence of concrete
// instructions — the unit the predictor manager evaluates and the
// interestingness metric scores.
type ConcreteBlock struct {
	Instructions []ConcreteInstruction
}

func (b *ConcreteBlock) Len() int { return len(b.Instructions) }
