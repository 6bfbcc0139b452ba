package core

// readOp8/writeOp8/readOp16/writeOp16 dispatch a decoded Operand to either
// the register file or segmented memory, the generalized form of the
// teacher's readRM8/writeRM8/readRM16/writeRM16 (cpu_x86.go) now driven by
// the operand's own Kind instead of a live ModR/M mod field, since decoding
// already happened in a separate, cached phase.

func (u *ExecutionUnit) effAddr(op Operand, inst *Instruction) FarPointer {
	return EffectiveAddress(op, &u.Regs, inst.SegOverride, inst.HasOverride)
}

func (u *ExecutionUnit) readOp8(op Operand, inst *Instruction) byte {
	switch op.Kind {
	case OperandRegister:
		return u.Regs.GetReg8(op.Reg)
	case OperandMemory:
		ptr := u.effAddr(op, inst)
		return u.Mem.ReadByte(ptr.Segment, ptr.Offset)
	case OperandImmediate8, OperandImmediate8to16:
		return byte(op.Imm)
	default:
		return 0
	}
}

func (u *ExecutionUnit) writeOp8(op Operand, inst *Instruction, v byte) {
	switch op.Kind {
	case OperandRegister:
		u.Regs.SetReg8(op.Reg, v)
	case OperandMemory:
		ptr := u.effAddr(op, inst)
		u.Mem.WriteByte(ptr.Segment, ptr.Offset, v)
	}
}

func (u *ExecutionUnit) readOp16(op Operand, inst *Instruction) uint16 {
	switch op.Kind {
	case OperandRegister:
		return u.Regs.GetReg16(op.Reg)
	case OperandSegReg:
		return u.Regs.GetSeg(SegRegIndex(op.Reg))
	case OperandMemory:
		ptr := u.effAddr(op, inst)
		return u.Mem.ReadWord(ptr.Segment, ptr.Offset)
	case OperandImmediate8to16:
		return uint16(int16(int8(op.Imm)))
	case OperandImmediate16:
		if uint16(op.Imm) == relocationSentinel {
			if reloc, ok := u.Mem.Relocation(u.Regs.CS, inst.StartOffset+op.ImmOffset); ok {
				return reloc.ResolvedWord()
			}
		}
		return uint16(op.Imm)
	case OperandImmediate32, OperandNearBranch16:
		return uint16(op.Imm)
	default:
		return 0
	}
}

func (u *ExecutionUnit) writeOp16(op Operand, inst *Instruction, v uint16) {
	switch op.Kind {
	case OperandRegister:
		u.Regs.SetReg16(op.Reg, v)
	case OperandSegReg:
		u.Regs.SetSeg(SegRegIndex(op.Reg), v)
	case OperandMemory:
		ptr := u.effAddr(op, inst)
		u.Mem.WriteWord(ptr.Segment, ptr.Offset, v)
	}
}

// width reports the natural operand width of op, for instructions whose
// handler is width-polymorphic over both forms of a mnemonic (e.g. the
// decoder reports distinct Mnemonic strings per width in most cases, but
// register operands still need their own width for sub-register writes).
func (op Operand) width() Width {
	switch op.Kind {
	case OperandRegister:
		return op.RegWidth
	case OperandMemory:
		if op.MemWidth != 0 {
			return op.MemWidth
		}
		return Width16
	case OperandImmediate8:
		return Width8
	default:
		return Width16
	}
}
