package core

// Control-transfer opcode semantics (spec.md §4.D): conditional/unconditional
// jumps, near/far CALL and RET, INT/IRET, and the LOOP family. Far CALL is
// where the call/interrupt bridge (bridge.go) plugs in: a far CALL whose
// target site was patched by the loader with an ImportedOrdinal relocation
// invokes the host callback table instead of transferring control to guest
// code (spec.md invariant 3).

func jccOp(cond func(*Registers) bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		if cond(&u.Regs) {
			branchNear(u, inst, inst.Operands[0])
		}
		return nil
	}
}

// branchNear sets IP to the target of a near-branch operand (a signed
// displacement relative to the already-advanced IP, or a register/memory
// value for indirect near JMP/CALL).
func branchNear(u *ExecutionUnit, inst *Instruction, op Operand) {
	switch op.Kind {
	case OperandNearBranch16:
		u.Regs.IP = uint16(int32(u.Regs.IP) + op.Imm)
	default:
		u.Regs.IP = u.readOp16(op, inst)
	}
}

func jmpOp(u *ExecutionUnit, inst *Instruction) *Fault {
	op := inst.Operands[0]
	switch {
	case op.Kind == OperandFarBranch16:
		u.Regs.CS = op.FarSegment
		u.Regs.IP = uint16(op.Imm)
	case op.Kind == OperandMemory && op.MemWidth == Width32:
		ptr := u.effAddr(op, inst)
		u.Regs.IP = u.Mem.ReadWord(ptr.Segment, ptr.Offset)
		u.Regs.CS = u.Mem.ReadWord(ptr.Segment, ptr.Offset+2)
	case op.Kind == OperandNearBranch16:
		u.Regs.IP = uint16(int32(u.Regs.IP) + op.Imm)
	default:
		u.Regs.IP = u.readOp16(op, inst)
	}
	return nil
}

func callOp(u *ExecutionUnit, inst *Instruction) *Fault {
	op := inst.Operands[0]

	if op.Kind == OperandFarBranch16 {
		site := inst.StartOffset + 3
		if reloc, ok := u.Mem.Relocation(u.Regs.CS, site); ok && reloc.Kind == RelocImportedOrdinal {
			return u.invokeImport(reloc)
		}
		u.pushWord(u.Regs.CS)
		u.pushWord(u.Regs.IP)
		u.Regs.CS = op.FarSegment
		u.Regs.IP = uint16(op.Imm)
		return nil
	}

	if op.Kind == OperandMemory && op.MemWidth == Width32 {
		ptr := u.effAddr(op, inst)
		off := u.Mem.ReadWord(ptr.Segment, ptr.Offset)
		seg := u.Mem.ReadWord(ptr.Segment, ptr.Offset+2)
		u.pushWord(u.Regs.CS)
		u.pushWord(u.Regs.IP)
		u.Regs.CS = seg
		u.Regs.IP = off
		return nil
	}

	u.pushWord(u.Regs.IP)
	branchNear(u, inst, op)
	return nil
}

func retOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.IP = u.popWord()
	if len(inst.Operands) == 1 {
		u.Regs.SP += uint16(u.readOp16(inst.Operands[0], inst))
	}
	return nil
}

func retfOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.IP = u.popWord()
	u.Regs.CS = u.popWord()
	if len(inst.Operands) == 1 {
		u.Regs.SP += uint16(u.readOp16(inst.Operands[0], inst))
	}
	return nil
}

func intOp(u *ExecutionUnit, inst *Instruction) *Fault {
	vector := byte(3)
	if len(inst.Operands) == 1 {
		vector = byte(inst.Operands[0].Imm)
	}
	return u.raiseInterrupt(vector)
}

func intoOp(u *ExecutionUnit, inst *Instruction) *Fault {
	if !u.Regs.OF() {
		return nil
	}
	return u.raiseInterrupt(4)
}

func iretOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.IP = u.popWord()
	u.Regs.CS = u.popWord()
	u.Regs.Flags = u.popWord() | flagReserved1
	return nil
}

func loopOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.CX--
	if u.Regs.CX != 0 {
		branchNear(u, inst, inst.Operands[0])
	}
	return nil
}

func loopeOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.CX--
	if u.Regs.CX != 0 && u.Regs.ZF() {
		branchNear(u, inst, inst.Operands[0])
	}
	return nil
}

func loopneOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.CX--
	if u.Regs.CX != 0 && !u.Regs.ZF() {
		branchNear(u, inst, inst.Operands[0])
	}
	return nil
}

func jcxzOp(u *ExecutionUnit, inst *Instruction) *Fault {
	if u.Regs.CX == 0 {
		branchNear(u, inst, inst.Operands[0])
	}
	return nil
}

var jccConds = map[string]func(*Registers) bool{
	"JA":  func(r *Registers) bool { return !r.CF() && !r.ZF() },
	"JAE": func(r *Registers) bool { return !r.CF() },
	"JB":  func(r *Registers) bool { return r.CF() },
	"JBE": func(r *Registers) bool { return r.CF() || r.ZF() },
	"JE":  func(r *Registers) bool { return r.ZF() },
	"JNE": func(r *Registers) bool { return !r.ZF() },
	"JG":  func(r *Registers) bool { return !r.ZF() && r.SF() == r.OF() },
	"JGE": func(r *Registers) bool { return r.SF() == r.OF() },
	"JL":  func(r *Registers) bool { return r.SF() != r.OF() },
	"JLE": func(r *Registers) bool { return r.ZF() || r.SF() != r.OF() },
	"JNO": func(r *Registers) bool { return !r.OF() },
	"JO":  func(r *Registers) bool { return r.OF() },
	"JNP": func(r *Registers) bool { return !r.PF() },
	"JP":  func(r *Registers) bool { return r.PF() },
	"JNS": func(r *Registers) bool { return !r.SF() },
	"JS":  func(r *Registers) bool { return r.SF() },
}

func init() {
	for name, cond := range jccConds {
		registerOp(name, jccOp(cond))
	}
	registerOp("JMP", jmpOp)
	registerOp("CALL", callOp)
	registerOp("RET", retOp)
	registerOp("RETN", retOp)
	registerOp("RETF", retfOp)
	registerOp("RETFW", retfOp)
	registerOp("INT", intOp)
	registerOp("INTO", intoOp)
	registerOp("IRET", iretOp)
	registerOp("IRETW", iretOp)
	registerOp("LOOP", loopOp)
	registerOp("LOOPE", loopeOp)
	registerOp("LOOPZ", loopeOp)
	registerOp("LOOPNE", loopneOp)
	registerOp("LOOPNZ", loopneOp)
	registerOp("JCXZ", jcxzOp)
}
