package iwho

// BuildDemoCatalog returns a small, representative x86-like scheme universe:
// enough mnemonics, operand shapes, categories and extensions to exercise
// every feature kind and the end-to-end scenarios from spec §8. It is not a
// real instruction-scheme database; production use replaces it with one
// backed by the actual IWHO context.
func BuildDemoCatalog() []*Scheme {
	gp64 := "GP64"
	return []*Scheme{
		{
			ID: "ADD_R64_R64", Mnemonic: "add", OpSchemes: []string{"r64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Category: "BINARY", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "ADD_M64_R64", Mnemonic: "add", OpSchemes: []string{"m64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandMemory, AddressRegisters: []string{"rax", "rbx", "rcx", "rdx"}, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Memory: &MemoryUsage{Read: true, Write: true},
			Category: "BINARY", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "SUB_R64_R64", Mnemonic: "sub", OpSchemes: []string{"r64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Category: "BINARY", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "MOV_R64_R64", Mnemonic: "mov", OpSchemes: []string{"r64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Category: "MOVE", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "MOV_M64_R64", Mnemonic: "mov", OpSchemes: []string{"m64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandMemory, AddressRegisters: []string{"rax", "rbx", "rcx", "rdx"}, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Memory: &MemoryUsage{Write: true},
			Category: "MOVE", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "XOR_R64_R64", Mnemonic: "xor", OpSchemes: []string{"r64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Category: "BINARY", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "CMP_R64_IMM32", Mnemonic: "cmp", OpSchemes: []string{"r64", "imm32"},
			Operands: []Operand{
				{Name: "lhs", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "imm", Kind: OperandImmediate, Width: 32},
			},
			Category: "COMPARE", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "LEA_R64_M64", Mnemonic: "lea", OpSchemes: []string{"r64", "m64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandMemory, AddressRegisters: []string{"rax", "rbx", "rcx", "rdx"}, Width: 64},
			},
			Category: "MOVE", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "IMUL_R64_R64", Mnemonic: "imul", OpSchemes: []string{"r64", "r64"},
			Operands: []Operand{
				{Name: "dst", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
				{Name: "src", Kind: OperandRegister, RegisterClass: gp64, Width: 64},
			},
			Category: "BINARY", Extension: "BASE", ISASet: "I86",
		},
		{
			ID: "NOP", Mnemonic: "nop", OpSchemes: nil,
			Category: "NOP", Extension: "BASE", ISASet: "I86",
		},
	}
}
