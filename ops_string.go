package core

// String-instruction opcode semantics (spec.md §4.D): MOVS/CMPS/SCAS/LODS/STOS
// and their REP/REPE/REPNE-prefixed repeated forms, grounded on the teacher's
// rep-prefix loop in cpu_x86_ops.go. Source addressing honors a segment
// override prefix (DS:SI defaults to DS, overridable); destination addressing
// never does (ES:DI is fixed, per the real 8086 encoding and spec.md's Open
// Question 3 resolution).

// stringSrcSeg resolves the source segment for MOVS/CMPS/LODS, honoring a
// segment-override prefix ahead of the DS default.
func stringSrcSeg(u *ExecutionUnit, inst *Instruction) uint16 {
	if inst.HasOverride {
		return u.Regs.GetSeg(inst.SegOverride)
	}
	return u.Regs.DS
}

func stringStepWidth(mnemonic string) Width {
	if len(mnemonic) > 0 && mnemonic[len(mnemonic)-1] == 'W' {
		return Width16
	}
	return Width8
}

func stringStep(u *Registers, w Width) uint16 {
	if w == Width8 {
		if u.DF() {
			return 0xFFFF
		}
		return 1
	}
	if u.DF() {
		return 0xFFFE
	}
	return 2
}

func movsOp(u *ExecutionUnit, inst *Instruction) *Fault {
	w := stringStepWidth(inst.Mnemonic)
	step := stringStep(&u.Regs, w)
	srcSeg := stringSrcSeg(u, inst)

	run := func() {
		if w == Width8 {
			u.Mem.WriteByte(u.Regs.ES, u.Regs.DI, u.Mem.ReadByte(srcSeg, u.Regs.SI))
		} else {
			u.Mem.WriteWord(u.Regs.ES, u.Regs.DI, u.Mem.ReadWord(srcSeg, u.Regs.SI))
		}
		u.Regs.SI += step
		u.Regs.DI += step
	}

	if inst.RepKind == "" {
		run()
		return nil
	}
	for u.Regs.CX != 0 {
		run()
		u.Regs.CX--
	}
	return nil
}

func cmpsOp(u *ExecutionUnit, inst *Instruction) *Fault {
	w := stringStepWidth(inst.Mnemonic)
	step := stringStep(&u.Regs, w)
	srcSeg := stringSrcSeg(u, inst)

	run := func() {
		var a, b uint32
		if w == Width8 {
			a = uint32(u.Mem.ReadByte(srcSeg, u.Regs.SI))
			b = uint32(u.Mem.ReadByte(u.Regs.ES, u.Regs.DI))
		} else {
			a = uint32(u.Mem.ReadWord(srcSeg, u.Regs.SI))
			b = uint32(u.Mem.ReadWord(u.Regs.ES, u.Regs.DI))
		}
		u.applyFlags(OpCmp, w, a, b, uint64(a)-uint64(b))
		u.Regs.SI += step
		u.Regs.DI += step
	}

	if inst.RepKind == "" {
		run()
		return nil
	}
	for u.Regs.CX != 0 {
		run()
		u.Regs.CX--
		if inst.RepKind == "REPE" && !u.Regs.ZF() {
			break
		}
		if inst.RepKind == "REPNE" && u.Regs.ZF() {
			break
		}
	}
	return nil
}

func scasOp(u *ExecutionUnit, inst *Instruction) *Fault {
	w := stringStepWidth(inst.Mnemonic)
	step := stringStep(&u.Regs, w)

	run := func() {
		var a, b uint32
		if w == Width8 {
			a = uint32(u.Regs.AL())
			b = uint32(u.Mem.ReadByte(u.Regs.ES, u.Regs.DI))
		} else {
			a = uint32(u.Regs.AX)
			b = uint32(u.Mem.ReadWord(u.Regs.ES, u.Regs.DI))
		}
		u.applyFlags(OpCmp, w, a, b, uint64(a)-uint64(b))
		u.Regs.DI += step
	}

	if inst.RepKind == "" {
		run()
		return nil
	}
	for u.Regs.CX != 0 {
		run()
		u.Regs.CX--
		if inst.RepKind == "REPE" && !u.Regs.ZF() {
			break
		}
		if inst.RepKind == "REPNE" && u.Regs.ZF() {
			break
		}
	}
	return nil
}

func lodsOp(u *ExecutionUnit, inst *Instruction) *Fault {
	w := stringStepWidth(inst.Mnemonic)
	step := stringStep(&u.Regs, w)
	srcSeg := stringSrcSeg(u, inst)

	run := func() {
		if w == Width8 {
			u.Regs.SetAL(u.Mem.ReadByte(srcSeg, u.Regs.SI))
		} else {
			u.Regs.AX = u.Mem.ReadWord(srcSeg, u.Regs.SI)
		}
		u.Regs.SI += step
	}

	if inst.RepKind == "" {
		run()
		return nil
	}
	for u.Regs.CX != 0 {
		run()
		u.Regs.CX--
	}
	return nil
}

func stosOp(u *ExecutionUnit, inst *Instruction) *Fault {
	w := stringStepWidth(inst.Mnemonic)
	step := stringStep(&u.Regs, w)

	run := func() {
		if w == Width8 {
			u.Mem.WriteByte(u.Regs.ES, u.Regs.DI, u.Regs.AL())
		} else {
			u.Mem.WriteWord(u.Regs.ES, u.Regs.DI, u.Regs.AX)
		}
		u.Regs.DI += step
	}

	if inst.RepKind == "" {
		run()
		return nil
	}
	for u.Regs.CX != 0 {
		run()
		u.Regs.CX--
	}
	return nil
}

func init() {
	registerOp("MOVSB", movsOp)
	registerOp("MOVSW", movsOp)
	registerOp("CMPSB", cmpsOp)
	registerOp("CMPSW", cmpsOp)
	registerOp("SCASB", scasOp)
	registerOp("SCASW", scasOp)
	registerOp("LODSB", lodsOp)
	registerOp("LODSW", lodsOp)
	registerOp("STOSB", stosOp)
	registerOp("STOSW", stosOp)
}
