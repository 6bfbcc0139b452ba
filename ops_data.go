package core

// Data movement opcode semantics (spec.md §4.D): MOV, PUSH/POP, XCHG, LEA,
// LDS/LES, and the FLAGS/all-register push-pop forms, grounded on the
// teacher's equivalent handlers in cpu_x86_ops.go.

func movOp(u *ExecutionUnit, inst *Instruction) *Fault {
	dst, src := inst.Operands[0], inst.Operands[1]
	w := dst.width()
	if dst.Kind == OperandSegReg || src.Kind == OperandSegReg {
		v := u.readOp16(src, inst)
		u.writeOp16(dst, inst, v)
		return nil
	}
	v := u.readWidth(src, inst, w)
	u.writeWidth(dst, inst, w, v)
	return nil
}

func pushOp(u *ExecutionUnit, inst *Instruction) *Fault {
	op := inst.Operands[0]
	v := u.readOp16(op, inst)
	u.pushWord(v)
	return nil
}

func popOp(u *ExecutionUnit, inst *Instruction) *Fault {
	op := inst.Operands[0]
	v := u.popWord()
	u.writeOp16(op, inst, v)
	return nil
}

func pushfOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.pushWord(u.Regs.Flags)
	return nil
}

func popfOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.Flags = u.popWord() | flagReserved1
	return nil
}

// pushaOp implements the 80186+ PUSHA: AX, CX, DX, BX, (original) SP, BP,
// SI, DI, where the SP slot holds SP's value from before any of this
// instruction's own pushes.
func pushaOp(u *ExecutionUnit, inst *Instruction) *Fault {
	originalSP := u.Regs.SP
	u.pushWord(u.Regs.AX)
	u.pushWord(u.Regs.CX)
	u.pushWord(u.Regs.DX)
	u.pushWord(u.Regs.BX)
	u.pushWord(originalSP)
	u.pushWord(u.Regs.BP)
	u.pushWord(u.Regs.SI)
	u.pushWord(u.Regs.DI)
	return nil
}

func popaOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.DI = u.popWord()
	u.Regs.SI = u.popWord()
	u.Regs.BP = u.popWord()
	u.popWord() // discard stacked SP
	u.Regs.BX = u.popWord()
	u.Regs.DX = u.popWord()
	u.Regs.CX = u.popWord()
	u.Regs.AX = u.popWord()
	return nil
}

func xchgOp(u *ExecutionUnit, inst *Instruction) *Fault {
	a, b := inst.Operands[0], inst.Operands[1]
	w := a.width()
	va := u.readWidth(a, inst, w)
	vb := u.readWidth(b, inst, w)
	u.writeWidth(a, inst, w, vb)
	u.writeWidth(b, inst, w, va)
	return nil
}

func leaOp(u *ExecutionUnit, inst *Instruction) *Fault {
	dst, src := inst.Operands[0], inst.Operands[1]
	ptr := u.effAddr(src, inst)
	u.writeOp16(dst, inst, ptr.Offset)
	return nil
}

func ldsLesOp(segDst SegRegIndex) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		dst, src := inst.Operands[0], inst.Operands[1]
		ptr := u.effAddr(src, inst)
		off := u.Mem.ReadWord(ptr.Segment, ptr.Offset)
		seg := u.Mem.ReadWord(ptr.Segment, ptr.Offset+2)
		u.writeOp16(dst, inst, off)
		u.Regs.SetSeg(segDst, seg)
		return nil
	}
}

// xlatOp implements AL = [seg:BX+AL] (seg defaults to DS, overridable), the
// table-lookup form of MOV used for translation tables (spec.md §4.D).
func xlatOp(u *ExecutionUnit, inst *Instruction) *Fault {
	seg := stringSrcSeg(u, inst)
	off := u.Regs.BX + uint16(u.Regs.AL())
	u.Regs.SetAL(u.Mem.ReadByte(seg, off))
	return nil
}

func init() {
	registerOp("MOV", movOp)
	registerOp("PUSH", pushOp)
	registerOp("POP", popOp)
	registerOp("PUSHF", pushfOp)
	registerOp("PUSHFW", pushfOp)
	registerOp("POPF", popfOp)
	registerOp("POPFW", popfOp)
	registerOp("PUSHA", pushaOp)
	registerOp("PUSHAW", pushaOp)
	registerOp("POPA", popaOp)
	registerOp("POPAW", popaOp)
	registerOp("XCHG", xchgOp)
	registerOp("LEA", leaOp)
	registerOp("LDS", ldsLesOp(SegDS))
	registerOp("LES", ldsLesOp(SegES))
	registerOp("XLAT", xlatOp)
	registerOp("XLATB", xlatOp)
}
