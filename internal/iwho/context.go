package iwho

import (
	"fmt"
	"sort"
	"strings"
)

// Context is the full external contract the core relies on: a finite scheme
// universe plus (dis)assembly. Production deployments back this with the
// real instruction-scheme database and an assembler; InMemoryContext below
// is the reference implementation used by tests and small local campaigns.
type Context interface {
	// ContextSpecifier returns the external context id from
	// iwho.context_specifier in the resolved configuration.
	ContextSpecifier() string

	// Schemes returns the full instruction-scheme universe, after any
	// configured filters have been applied.
	Schemes() []*Scheme

	// Scheme looks up a single scheme by id.
	Scheme(id SchemeID) (*Scheme, bool)

	// Assemble renders a concrete basic block as textual assembly.
	Assemble(bb *ConcreteBlock) (string, error)
}

// InMemoryContext is a self-contained Context backed by a fixed slice of
// schemes, suitable for unit tests, the bundled case studies, and small
// local campaigns that do not need the real x86 scheme database.
type InMemoryContext struct {
	specifier string
	schemes   map[SchemeID]*Scheme
	order     []SchemeID // insertion order, kept for deterministic Schemes()
}

func NewInMemoryContext(specifier string, schemes []*Scheme) *InMemoryContext {
	c := &InMemoryContext{
		specifier: specifier,
		schemes:   make(map[SchemeID]*Scheme, len(schemes)),
	}
	for _, s := range schemes {
		if _, dup := c.schemes[s.ID]; dup {
			continue
		}
		c.schemes[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c
}

func (c *InMemoryContext) ContextSpecifier() string { return c.specifier }

func (c *InMemoryContext) Schemes() []*Scheme {
	out := make([]*Scheme, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.schemes[id])
	}
	return out
}

func (c *InMemoryContext) Scheme(id SchemeID) (*Scheme, bool) {
	s, ok := c.schemes[id]
	return s, ok
}

// Filtered returns a new InMemoryContext containing only the schemes that
// survive all of the given filters, applied in order.
func (c *InMemoryContext) Filtered(filters []Filter) *InMemoryContext {
	schemes := c.Schemes()
	for _, f := range filters {
		schemes = f.Apply(schemes)
	}
	return NewInMemoryContext(c.specifier, schemes)
}

// Assemble renders a concrete block as one instruction per line, mnemonic
// followed by its resolved operands in declaration order. This is a minimal
// textual form, not a real assembler's output, sufficient for witness files
// and the asm-file round-trip.
func (c *InMemoryContext) Assemble(bb *ConcreteBlock) (string, error) {
	var b strings.Builder
	for _, insn := range bb.Instructions {
		scheme, ok := c.Scheme(insn.Scheme)
		if !ok {
			return "", fmt.Errorf("iwho: unknown scheme %q", insn.Scheme)
		}
		b.WriteString(scheme.Mnemonic)
		names := make([]string, 0, len(scheme.Operands))
		for _, op := range scheme.Operands {
			names = append(names, op.Name)
		}
		sort.Strings(names) // names is not used below: operands are emitted in declaration order
		parts := make([]string, 0, len(scheme.Operands))
		for _, op := range scheme.Operands {
			assign, ok := insn.Operands[op.Name]
			if !ok {
				return "", fmt.Errorf("iwho: instruction of scheme %q missing operand %q", insn.Scheme, op.Name)
			}
			parts = append(parts, assign.Text(op))
		}
		if len(parts) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
