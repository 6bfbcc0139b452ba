package core

// OperandKind tags the closed operand union every decoded Instruction uses,
// so opcode dispatch is a (Mnemonic, operand kinds) pair match rather than a
// type switch over the decoder's own argument types (spec.md §3).
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandSegReg
	OperandImmediate8
	OperandImmediate8to16
	OperandImmediate16
	OperandImmediate32
	OperandMemory
	OperandFarBranch16
	OperandNearBranch16
	OperandFPUReg
)

// Operand is one decoded instruction argument. Which fields are meaningful
// depends on Kind:
//
//   - OperandRegister: Reg is a GetReg8/GetReg16-style index, RegWidth its width.
//   - OperandSegReg: Reg is a SegRegIndex value.
//   - OperandImmediate*: Imm holds the value; an Immediate8to16 value is
//     sign-extended when read (readOp16), not at decode time.
//   - OperandMemory: BaseReg/IndexReg (-1 if absent) and Disp name the
//     effective-address computation; when HasOverride is set, SegOverride is
//     the prefix override applied ahead of the addressing-mode default segment.
//   - OperandFarBranch16/OperandNearBranch16: Imm is the offset; for far
//     branches FarSegment also holds the encoded segment selector.
//   - OperandFPUReg: Reg is an x87 ST(i) index, 0-7, relative to the current
//     stack TOP.
type Operand struct {
	Kind OperandKind

	Reg      byte
	RegWidth Width

	Imm int32

	// ImmOffset is the byte offset of Imm within its owning instruction,
	// valid only when Kind is OperandImmediate16: immediate encodings always
	// trail any ModR/M/SIB/displacement bytes, so StartOffset+ImmOffset
	// names the site a loader relocation patches with the 0xFFFF sentinel
	// (spec.md §4.B/§4.D).
	ImmOffset uint16

	BaseReg     int8
	IndexReg    int8
	Scale       byte
	Disp        int32
	SegOverride SegRegIndex
	HasOverride bool
	MemWidth    Width

	// MemBytes is the raw operand byte count reported by the decoder
	// (inst.MemBytes), preserved alongside MemWidth because x87 memory
	// operands span sizes (4/8/10 bytes, or 2/4/8-byte integers) that don't
	// fit the integer core's 8/16/32-bit Width enum.
	MemBytes int

	FarSegment uint16
}

// Instruction is a fully decoded, cacheable instruction (spec.md §3): the
// mnemonic and operand list never change once produced, so the same decode
// can be replayed from SegmentedMemory's cache until a write invalidates it.
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Length   int

	// StartOffset is the offset within its code segment where this
	// instruction's first byte was fetched, filled in by
	// ExecutionUnit.fetch. Far CALL/JMP execution uses it to locate the
	// instruction's segment-field relocation site (spec.md invariant 3).
	StartOffset uint16

	// RepKind is one of "", "REP", "REPE", "REPNE" for string-instruction
	// prefixes (spec.md §4.D string ops).
	RepKind string

	// SegOverride is the segment-override prefix applying to this
	// instruction's memory operands. When HasOverride is set it replaces the
	// addressing-mode default segment, including the SS default of BP-based
	// forms (EffectiveAddress, address.go).
	SegOverride SegRegIndex
	HasOverride bool

	// LockPrefix records a 0xF0 LOCK prefix; the core has no other CPUs to
	// contend with, so no handler reads it and it is never enforced.
	LockPrefix bool
}
