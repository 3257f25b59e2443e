package abstraction

import (
	"encoding/json"
	"fmt"
	"sort"

	"anica/internal/anicaerr"
	"anica/internal/feature"
	"anica/internal/iwho"
)

const topSentinel = "$SV:TOP"

// representativeOperand resolves, for a given position and slot, the
// (kind, name) label used in serialization: the aliasing-capable operand at
// that slot in the lexicographically smallest scheme in the position's
// concretization. All schemes reachable from one abstract instruction are
// expected to agree on aliasing-capable arity, so any representative gives
// the same slot meaning.
func (b *Block) representativeOperand(ctx iwho.Context, pos, slot int) (iwho.OperandKind, string, bool) {
	ids := b.Insns[pos].Concretization().Slice()
	if len(ids) == 0 {
		return "", "", false
	}
	scheme, ok := ctx.Scheme(ids[0])
	if !ok {
		return "", "", false
	}
	ops := aliasableSlots(scheme)
	if slot < 0 || slot >= len(ops) {
		return "", "", false
	}
	return ops[slot].Kind, ops[slot].Name, true
}

func marshalTriVal(v TriVal) any {
	switch v {
	case AliasMust:
		return true
	case AliasMustNot:
		return false
	default:
		return topSentinel
	}
}

// Marshal renders b as the canonical JSON structure from spec §6.1. ctx
// resolves representative operand names/kinds for the aliasing dictionary.
func (b *Block) Marshal(ctx iwho.Context) map[string]any {
	insns := make([]any, len(b.Insns))
	for i, insn := range b.Insns {
		insns[i] = insn.Marshal()
	}

	pairs := make([]AliasPair, 0, len(b.Aliasing.Rel))
	for p := range b.Aliasing.Rel {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.Pos != pairs[j].A.Pos {
			return pairs[i].A.Pos < pairs[j].A.Pos
		}
		if pairs[i].A.Slot != pairs[j].A.Slot {
			return pairs[i].A.Slot < pairs[j].A.Slot
		}
		if pairs[i].B.Pos != pairs[j].B.Pos {
			return pairs[i].B.Pos < pairs[j].B.Pos
		}
		return pairs[i].B.Slot < pairs[j].B.Slot
	})

	entries := make([]any, 0, len(pairs))
	for _, p := range pairs {
		akind, aname, _ := b.representativeOperand(ctx, p.A.Pos, p.A.Slot)
		bkind, bname, _ := b.representativeOperand(ctx, p.B.Pos, p.B.Slot)
		pairRepr := []any{
			[]any{p.A.Pos, []any{string(akind), aname}},
			[]any{p.B.Pos, []any{string(bkind), bname}},
		}
		entries = append(entries, []any{pairRepr, marshalTriVal(b.Aliasing.Get(p))})
	}

	return map[string]any{
		"abs_insns": insns,
		"abs_aliasing": map[string]any{
			"aliasing_dict": entries,
			"is_bot":        b.Aliasing.IsBot,
		},
	}
}

// MarshalWithContext encodes Marshal's output as JSON bytes (spec §6.1
// round-trip requirement). *Block has no MarshalJSON method, so plain
// json.Marshal on *Block does not produce this form: operand labels
// require a scheme context, which is passed here as ctx.
func (b *Block) MarshalWithContext(ctx iwho.Context) ([]byte, error) {
	return json.Marshal(b.Marshal(ctx))
}

func unmarshalTriVal(raw any) (TriVal, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return AliasMust, nil
		}
		return AliasMustNot, nil
	case string:
		if v == topSentinel {
			return AliasTop, nil
		}
	}
	return AliasTop, malformed("aliasing value must be true, false, or %q, got %v", topSentinel, raw)
}

// slotForOperand is representativeOperand's inverse: given a position and
// the (kind, name) label Marshal emitted for one of its aliasing-capable
// operands, it returns that operand's ordinal slot.
func slotForOperand(ctx iwho.Context, insn *Instruction, kind iwho.OperandKind, name string) (int, bool) {
	ids := insn.Concretization().Slice()
	if len(ids) == 0 {
		return 0, false
	}
	scheme, ok := ctx.Scheme(ids[0])
	if !ok {
		return 0, false
	}
	for slot, op := range aliasableSlots(scheme) {
		if op.Kind == kind && op.Name == name {
			return slot, true
		}
	}
	return 0, false
}

func malformed(format string, args ...any) error {
	return anicaerr.IWHO(anicaerr.CodeMalformedSerialization, fmt.Sprintf(format, args...)).Build()
}

// UnmarshalInstruction reconstructs an abstract instruction from the
// <abs_insn> JSON object Instruction.Marshal produces, using mgr's
// declarations to know each feature's kind.
func UnmarshalInstruction(mgr *feature.Manager, raw map[string]any) (*Instruction, error) {
	values := make(map[string]feature.Value, len(mgr.Declarations()))
	for _, d := range mgr.Declarations() {
		fv, ok := raw[d.Name]
		if !ok {
			return nil, malformed("abs_insn is missing declared feature %q", d.Name)
		}
		v, err := feature.UnmarshalValue(d.Kind, d.MaxDist, fv)
		if err != nil {
			return nil, err
		}
		values[d.Name] = v
	}
	return NewInstruction(mgr, values), nil
}

// UnmarshalBlockJSON decodes data (the bytes MarshalWithContext produces)
// and reconstructs the Block it encodes — the complete
// parse(emit(ab)) = ab round trip of spec §6.1/§8.
func UnmarshalBlockJSON(mgr *feature.Manager, ctx iwho.Context, data []byte) (*Block, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, anicaerr.IWHO(anicaerr.CodeMalformedSerialization, "serialized block is not valid JSON").WithCause(err).Build()
	}
	return UnmarshalBlock(mgr, ctx, doc)
}

// UnmarshalBlock reconstructs a Block from an already-decoded JSON document
// of the structure Marshal produces (spec §6.1/§8: "parse(emit(ab)) = ab").
// doc must come from decoding real JSON bytes into map[string]any (e.g. via
// UnmarshalBlockJSON or json.Unmarshal), not from Marshal's in-memory
// map[string]any directly — numbers must already be float64 and nested
// arrays/objects already []any/map[string]any, as real JSON decoding
// produces. ctx must be the same scheme universe the block was marshaled
// under, since aliasing-capable operand slots are resolved back from their
// (kind, name) labels through it, the same way Marshal resolved them in the
// first place.
func UnmarshalBlock(mgr *feature.Manager, ctx iwho.Context, doc map[string]any) (*Block, error) {
	insnsRaw, ok := doc["abs_insns"].([]any)
	if !ok {
		return nil, malformed("abs_insns must be an array")
	}
	insns := make([]*Instruction, len(insnsRaw))
	for i, raw := range insnsRaw {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, malformed("abs_insns[%d] must be an object", i)
		}
		insn, err := UnmarshalInstruction(mgr, m)
		if err != nil {
			return nil, err
		}
		insns[i] = insn
	}

	aliasingDoc, ok := doc["abs_aliasing"].(map[string]any)
	if !ok {
		return nil, malformed("abs_aliasing must be an object")
	}
	isBot, _ := aliasingDoc["is_bot"].(bool)
	entries, ok := aliasingDoc["aliasing_dict"].([]any)
	if !ok {
		return nil, malformed("abs_aliasing.aliasing_dict must be an array")
	}

	b := &Block{Mgr: mgr, Insns: insns}
	aliasing := NewTopAliasing()
	aliasing.IsBot = isBot
	for _, e := range entries {
		entry, ok := e.([]any)
		if !ok || len(entry) != 2 {
			return nil, malformed("aliasing_dict entry must be a 2-element array")
		}
		pairRepr, ok := entry[0].([]any)
		if !ok || len(pairRepr) != 2 {
			return nil, malformed("aliasing_dict pair must be a 2-element array")
		}
		a, err := b.unmarshalOperandSlot(ctx, pairRepr[0])
		if err != nil {
			return nil, err
		}
		bSlot, err := b.unmarshalOperandSlot(ctx, pairRepr[1])
		if err != nil {
			return nil, err
		}
		v, err := unmarshalTriVal(entry[1])
		if err != nil {
			return nil, err
		}
		aliasing.Set(NewAliasPair(a, bSlot), v)
	}
	b.Aliasing = aliasing
	return b, nil
}

// unmarshalOperandSlot parses one [pos, [kind, name]] entry from the
// aliasing dictionary back into an OperandSlot.
func (b *Block) unmarshalOperandSlot(ctx iwho.Context, raw any) (OperandSlot, error) {
	arr, ok := raw.([]any)
	if !ok || len(arr) != 2 {
		return OperandSlot{}, malformed("operand slot entry must be a 2-element array")
	}
	posF, ok := arr[0].(float64)
	if !ok {
		return OperandSlot{}, malformed("operand slot position must be a number")
	}
	pos := int(posF)
	if pos < 0 || pos >= len(b.Insns) {
		return OperandSlot{}, malformed("operand slot position %d out of range", pos)
	}
	label, ok := arr[1].([]any)
	if !ok || len(label) != 2 {
		return OperandSlot{}, malformed("operand slot label must be a 2-element array")
	}
	kindStr, ok := label[0].(string)
	if !ok {
		return OperandSlot{}, malformed("operand slot kind must be a string")
	}
	name, ok := label[1].(string)
	if !ok {
		return OperandSlot{}, malformed("operand slot name must be a string")
	}
	slot, ok := slotForOperand(ctx, b.Insns[pos], iwho.OperandKind(kindStr), name)
	if !ok {
		return OperandSlot{}, malformed("could not resolve operand (%s, %s) at position %d", kindStr, name, pos)
	}
	return OperandSlot{Pos: pos, Slot: slot}, nil
}
