package core

// Arithmetic and logic opcode semantics (spec.md §4.D), adapted from the
// teacher's per-opcode handlers in cpu_x86_ops.go (the "widen to uint16,
// compute, re-derive flags" pattern for ADD/ADC and friends) generalized
// into one table-driven two-operand helper shared by every mnemonic in this
// family, since the decoder — not a hand-rolled opcode byte — already tells
// us the mnemonic and operand shapes.

const affectedArith = FlagCF | FlagPF | FlagAF | FlagZF | FlagSF | FlagOF

func (u *ExecutionUnit) readWidth(op Operand, inst *Instruction, w Width) uint32 {
	if w == Width8 {
		return uint32(u.readOp8(op, inst))
	}
	return uint32(u.readOp16(op, inst))
}

func (u *ExecutionUnit) writeWidth(op Operand, inst *Instruction, w Width, v uint32) {
	if w == Width8 {
		u.writeOp8(op, inst, byte(v))
	} else {
		u.writeOp16(op, inst, uint16(v))
	}
}

func (u *ExecutionUnit) applyFlags(op Operation, w Width, a, b uint32, raw uint64) {
	flags := evaluate(op, w, a, b, raw)
	u.Regs.Flags = (u.Regs.Flags &^ affectedArith) | flags
}

func binaryArith(op Operation, write bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		if len(inst.Operands) < 2 {
			return &Fault{Kind: ErrUnsupportedOperandShape, Mnemonic: inst.Mnemonic}
		}
		dst, src := inst.Operands[0], inst.Operands[1]
		w := dst.width()
		a := u.readWidth(dst, inst, w)
		b := u.readWidth(src, inst, w)

		var raw uint64
		switch op {
		case OpAdd:
			raw = uint64(a) + uint64(b)
		case OpAdc:
			raw = uint64(a) + uint64(b)
			if u.Regs.CF() {
				raw++
			}
		case OpSub, OpCmp:
			raw = uint64(a) - uint64(b)
		case OpSbb:
			raw = uint64(a) - uint64(b)
			if u.Regs.CF() {
				raw--
			}
		case OpAnd, OpTest:
			raw = uint64(a & b)
		case OpOr:
			raw = uint64(a | b)
		case OpXor:
			raw = uint64(a ^ b)
		}

		u.applyFlags(op, w, a, b, raw)
		if write {
			u.writeWidth(dst, inst, w, uint32(raw)&mask(w))
		}
		return nil
	}
}

func unaryArith(op Operation) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		if len(inst.Operands) < 1 {
			return &Fault{Kind: ErrUnsupportedOperandShape, Mnemonic: inst.Mnemonic}
		}
		dst := inst.Operands[0]
		w := dst.width()
		a := u.readWidth(dst, inst, w)

		var raw uint64
		switch op {
		case OpNeg:
			raw = uint64(-int64(a))
		case OpInc:
			raw = uint64(a) + 1
		case OpDec:
			raw = uint64(a) - 1
		case OpLogic: // NOT: no flags affected
			u.writeWidth(dst, inst, w, ^a&mask(w))
			return nil
		}

		if op == OpInc || op == OpDec {
			// INC/DEC preserve CF (spec.md §4.D), so only the other
			// arithmetic flags are folded in.
			flags := evaluate(op, w, a, 1, raw)
			keep := u.Regs.Flags & FlagCF
			u.Regs.Flags = (u.Regs.Flags &^ affectedArith) | flags | keep
		} else {
			u.applyFlags(op, w, a, 0, raw)
		}
		u.writeWidth(dst, inst, w, uint32(raw)&mask(w))
		return nil
	}
}

// mulOp computes the teacher's "widen, multiply, check whether the
// upper half is non-zero" pattern for MUL/IMUL (cpu_x86_grp.go Grp3), which
// directly sets CF/OF instead of going through the shared flag table since
// multiply's carry/overflow rule ("upper half significant") does not fit the
// add/sub mould.
func mulOp(signed bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		if signed && len(inst.Operands) >= 2 {
			return imulMultiOperand(u, inst)
		}

		dst := inst.Operands[0]
		w := dst.width()

		switch w {
		case Width8:
			al := u.Regs.AL()
			src := byte(u.readWidth(dst, inst, Width8))
			var result uint16
			var overflowed bool
			if signed {
				r := int16(int8(al)) * int16(int8(src))
				result = uint16(r)
				overflowed = r < -128 || r > 127
			} else {
				result = uint16(al) * uint16(src)
				overflowed = result > 0xFF
			}
			u.Regs.AX = result
			u.setMulFlags(overflowed)
		default:
			ax := u.Regs.AX
			src := uint16(u.readWidth(dst, inst, Width16))
			var overflowed bool
			if signed {
				r := int32(int16(ax)) * int32(int16(src))
				u.Regs.AX = uint16(r)
				u.Regs.DX = uint16(r >> 16)
				overflowed = r < -32768 || r > 32767
			} else {
				r := uint32(ax) * uint32(src)
				u.Regs.AX = uint16(r)
				u.Regs.DX = uint16(r >> 16)
				overflowed = r > 0xFFFF
			}
			u.setMulFlags(overflowed)
		}
		return nil
	}
}

// imulMultiOperand handles the 2- and 3-operand IMUL forms (IMUL r16,r/m16
// and IMUL r16,r/m16,imm16), which the decoder reports under the same
// mnemonic as the 1-operand AX-implicit form.
func imulMultiOperand(u *ExecutionUnit, inst *Instruction) *Fault {
	dst := inst.Operands[0]
	var lhs, rhs Operand
	if len(inst.Operands) == 3 {
		lhs, rhs = inst.Operands[1], inst.Operands[2]
	} else {
		lhs, rhs = dst, inst.Operands[1]
	}
	w := dst.width()
	a := int32(int16(u.readWidth(lhs, inst, w)))
	b := int32(int16(u.readWidth(rhs, inst, w)))
	r := a * b
	u.writeWidth(dst, inst, w, uint32(uint16(r)))
	overflowed := r < -32768 || r > 32767
	u.setMulFlags(overflowed)
	return nil
}

func (u *ExecutionUnit) setMulFlags(overflowed bool) {
	u.Regs.SetFlag(FlagCF, overflowed)
	u.Regs.SetFlag(FlagOF, overflowed)
}

// divOp implements DIV/IDIV, raising a DivideError fault on zero divisor or
// a quotient that overflows its destination, matching real hardware's #DE
// rather than producing a silently wrapped result (spec.md §7).
func divOp(signed bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		dst := inst.Operands[0]
		w := dst.width()

		switch w {
		case Width8:
			divisor := byte(u.readWidth(dst, inst, Width8))
			if divisor == 0 {
				return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
			}
			dividend := u.Regs.AX
			if signed {
				q := int16(dividend) / int16(int8(divisor))
				r := int16(dividend) % int16(int8(divisor))
				if q > 127 || q < -128 {
					return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
				}
				u.Regs.SetAL(byte(int8(q)))
				u.Regs.SetAH(byte(int8(r)))
			} else {
				q := dividend / uint16(divisor)
				r := dividend % uint16(divisor)
				if q > 0xFF {
					return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
				}
				u.Regs.SetAL(byte(q))
				u.Regs.SetAH(byte(r))
			}
		default:
			divisor := uint16(u.readWidth(dst, inst, Width16))
			if divisor == 0 {
				return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
			}
			dividend := uint32(u.Regs.DX)<<16 | uint32(u.Regs.AX)
			if signed {
				d := int32(dividend)
				q := d / int32(int16(divisor))
				r := d % int32(int16(divisor))
				if q > 32767 || q < -32768 {
					return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
				}
				u.Regs.AX = uint16(int16(q))
				u.Regs.DX = uint16(int16(r))
			} else {
				q := dividend / uint32(divisor)
				r := dividend % uint32(divisor)
				if q > 0xFFFF {
					return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
				}
				u.Regs.AX = uint16(q)
				u.Regs.DX = uint16(r)
			}
		}
		return nil
	}
}

// BCD adjustment opcodes (DAA/DAS/AAA/AAS/AAM/AAD), grounded on the
// teacher's opDAA/opDAS/opAAA/opAAS (cpu_x86_ops.go) and its divide-style
// AAM/AAD handling (cpu_x86_grp.go Grp3).

func opDAA(u *ExecutionUnit, inst *Instruction) *Fault {
	al := u.Regs.AL()
	cf, af := u.Regs.CF(), u.Regs.AF()
	oldAL := al

	if al&0x0F > 9 || af {
		carry := al > 0xF9
		al += 6
		af = true
		cf = cf || carry
	}
	if oldAL > 0x99 || cf {
		al += 0x60
		cf = true
	}
	u.Regs.SetAL(al)
	u.Regs.SetFlag(FlagCF, cf)
	u.Regs.SetFlag(FlagAF, af)
	setPZS8(u, al)
	return nil
}

func opDAS(u *ExecutionUnit, inst *Instruction) *Fault {
	al := u.Regs.AL()
	cf, af := u.Regs.CF(), u.Regs.AF()
	oldAL, oldCF := al, cf

	if al&0x0F > 9 || af {
		carry := al < 6
		al -= 6
		af = true
		cf = oldCF || carry
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		cf = true
	}
	u.Regs.SetAL(al)
	u.Regs.SetFlag(FlagCF, cf)
	u.Regs.SetFlag(FlagAF, af)
	setPZS8(u, al)
	return nil
}

func opAAA(u *ExecutionUnit, inst *Instruction) *Fault {
	al, ah := u.Regs.AL(), u.Regs.AH()
	if al&0x0F > 9 || u.Regs.AF() {
		al += 6
		ah++
		u.Regs.SetFlag(FlagAF, true)
		u.Regs.SetFlag(FlagCF, true)
	} else {
		u.Regs.SetFlag(FlagAF, false)
		u.Regs.SetFlag(FlagCF, false)
	}
	u.Regs.SetAL(al & 0x0F)
	u.Regs.SetAH(ah)
	return nil
}

func opAAS(u *ExecutionUnit, inst *Instruction) *Fault {
	al, ah := u.Regs.AL(), u.Regs.AH()
	if al&0x0F > 9 || u.Regs.AF() {
		al -= 6
		ah--
		u.Regs.SetFlag(FlagAF, true)
		u.Regs.SetFlag(FlagCF, true)
	} else {
		u.Regs.SetFlag(FlagAF, false)
		u.Regs.SetFlag(FlagCF, false)
	}
	u.Regs.SetAL(al & 0x0F)
	u.Regs.SetAH(ah)
	return nil
}

func opAAM(u *ExecutionUnit, inst *Instruction) *Fault {
	base := byte(10)
	if len(inst.Operands) == 1 {
		base = byte(inst.Operands[0].Imm)
	}
	if base == 0 {
		return &Fault{Kind: ErrDivideError, Mnemonic: inst.Mnemonic}
	}
	al := u.Regs.AL()
	u.Regs.SetAH(al / base)
	u.Regs.SetAL(al % base)
	setPZS8(u, u.Regs.AL())
	return nil
}

func opAAD(u *ExecutionUnit, inst *Instruction) *Fault {
	base := byte(10)
	if len(inst.Operands) == 1 {
		base = byte(inst.Operands[0].Imm)
	}
	al, ah := u.Regs.AL(), u.Regs.AH()
	result := al + ah*base
	u.Regs.SetAL(result)
	u.Regs.SetAH(0)
	setPZS8(u, result)
	return nil
}

func setPZS8(u *ExecutionUnit, v byte) {
	u.Regs.SetFlag(FlagPF, parityEven(v))
	u.Regs.SetFlag(FlagZF, v == 0)
	u.Regs.SetFlag(FlagSF, v&0x80 != 0)
}

func init() {
	registerOp("ADD", binaryArith(OpAdd, true))
	registerOp("ADC", binaryArith(OpAdc, true))
	registerOp("SUB", binaryArith(OpSub, true))
	registerOp("SBB", binaryArith(OpSbb, true))
	registerOp("AND", binaryArith(OpAnd, true))
	registerOp("OR", binaryArith(OpOr, true))
	registerOp("XOR", binaryArith(OpXor, true))
	registerOp("CMP", binaryArith(OpCmp, false))
	registerOp("TEST", binaryArith(OpTest, false))

	registerOp("NEG", unaryArith(OpNeg))
	registerOp("INC", unaryArith(OpInc))
	registerOp("DEC", unaryArith(OpDec))
	registerOp("NOT", unaryArith(OpLogic))

	registerOp("MUL", mulOp(false))
	registerOp("IMUL", mulOp(true))
	registerOp("DIV", divOp(false))
	registerOp("IDIV", divOp(true))

	registerOp("DAA", opDAA)
	registerOp("DAS", opDAS)
	registerOp("AAA", opAAA)
	registerOp("AAS", opAAS)
	registerOp("AAM", opAAM)
	registerOp("AAD", opAAD)
}
