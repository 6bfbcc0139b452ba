package core

// Bit and miscellaneous opcode semantics (spec.md §4.D), grounded on the
// teacher's BT/BTS/BTR/BTC, SETcc, MOVZX/MOVSX, BSF/BSR and SHLD/SHRD
// handlers (cpu_x86_grp.go).

func bitOp(write bool, setTo func(bit bool) bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		dst, src := inst.Operands[0], inst.Operands[1]
		w := dst.width()
		bitIndex := uint(u.readWidth(src, inst, Width16)) % uint(w)

		v := u.readWidth(dst, inst, w)
		bit := v&(1<<bitIndex) != 0
		u.Regs.SetFlag(FlagCF, bit)

		if write {
			newBit := setTo(bit)
			if newBit {
				v |= 1 << bitIndex
			} else {
				v &^= 1 << bitIndex
			}
			u.writeWidth(dst, inst, w, v)
		}
		return nil
	}
}

func bsfOp(forward bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		dst, src := inst.Operands[0], inst.Operands[1]
		w := src.width()
		v := u.readWidth(src, inst, w)
		if v == 0 {
			u.Regs.SetFlag(FlagZF, true)
			return nil
		}
		u.Regs.SetFlag(FlagZF, false)
		var idx uint
		if forward {
			for idx = 0; v&(1<<idx) == 0; idx++ {
			}
		} else {
			idx = uint(w) - 1
			for v&(1<<idx) == 0 {
				idx--
			}
		}
		u.writeWidth(dst, inst, Width16, uint32(idx))
		return nil
	}
}

func setccOp(cond func(*Registers) bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		dst := inst.Operands[0]
		var v byte
		if cond(&u.Regs) {
			v = 1
		}
		u.writeOp8(dst, inst, v)
		return nil
	}
}

func movzxOp(u *ExecutionUnit, inst *Instruction) *Fault {
	dst, src := inst.Operands[0], inst.Operands[1]
	v := u.readWidth(src, inst, src.width())
	u.writeWidth(dst, inst, dst.width(), v)
	return nil
}

func movsxOp(u *ExecutionUnit, inst *Instruction) *Fault {
	dst, src := inst.Operands[0], inst.Operands[1]
	v := u.readWidth(src, inst, src.width())
	var ext int32
	if src.width() == Width8 {
		ext = int32(int8(v))
	} else {
		ext = int32(int16(v))
	}
	u.writeWidth(dst, inst, dst.width(), uint32(ext))
	return nil
}

func shldOp(u *ExecutionUnit, inst *Instruction) *Fault {
	return shiftDouble(u, inst, true)
}

func shrdOp(u *ExecutionUnit, inst *Instruction) *Fault {
	return shiftDouble(u, inst, false)
}

func shiftDouble(u *ExecutionUnit, inst *Instruction, left bool) *Fault {
	if len(inst.Operands) < 3 {
		return &Fault{Kind: ErrUnsupportedOperandShape, Mnemonic: inst.Mnemonic}
	}
	dst, src, cnt := inst.Operands[0], inst.Operands[1], inst.Operands[2]
	w := dst.width()
	count := uint(u.readWidth(cnt, inst, Width8)) & 0x1F
	if count == 0 {
		return nil
	}
	a := uint64(u.readWidth(dst, inst, w))
	b := uint64(u.readWidth(src, inst, w))
	bits := uint64(w)

	var result uint64
	var cf bool
	if left {
		combined := (a << bits) | b
		combined <<= (count - 1)
		cf = combined&(1<<(2*bits-1)) != 0
		result = (combined << 1) >> bits
	} else {
		combined := (b << bits) | a
		combined >>= (count - 1)
		cf = combined&1 != 0
		result = combined >> 1
	}
	result &= uint64(mask(w))
	u.Regs.SetFlag(FlagCF, cf)
	u.Regs.SetFlag(FlagZF, result == 0)
	u.Regs.SetFlag(FlagSF, signBit(uint32(result), w))
	u.Regs.SetFlag(FlagPF, parityEven(byte(result)))
	u.writeWidth(dst, inst, w, uint32(result))
	return nil
}

func haltOp(u *ExecutionUnit, inst *Instruction) *Fault {
	return &Fault{Kind: ErrCancelled, Mnemonic: "HLT"}
}

func nopOp(u *ExecutionUnit, inst *Instruction) *Fault { return nil }

func cbwOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.AX = uint16(int16(int8(u.Regs.AL())))
	return nil
}

func cwdOp(u *ExecutionUnit, inst *Instruction) *Fault {
	if u.Regs.AX&0x8000 != 0 {
		u.Regs.DX = 0xFFFF
	} else {
		u.Regs.DX = 0
	}
	return nil
}

// lahfOp loads the low byte of FLAGS into AH; sahfOp stores AH back into the
// low byte of FLAGS (spec.md §4.D flag/segment control).
func lahfOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.SetAH(byte(u.Regs.Flags))
	return nil
}

func sahfOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.Flags = (u.Regs.Flags &^ 0xFF) | uint16(u.Regs.AH()) | flagReserved1
	return nil
}

func clcOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagCF, false); return nil }
func stcOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagCF, true); return nil }
func cmcOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.SetFlag(FlagCF, !u.Regs.CF())
	return nil
}
func cldOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagDF, false); return nil }
func stdOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagDF, true); return nil }
func cliOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagIF, false); return nil }
func stiOp(u *ExecutionUnit, inst *Instruction) *Fault { u.Regs.SetFlag(FlagIF, true); return nil }

func init() {
	registerOp("BT", bitOp(false, nil))
	registerOp("BTS", bitOp(true, func(bool) bool { return true }))
	registerOp("BTR", bitOp(true, func(bool) bool { return false }))
	registerOp("BTC", bitOp(true, func(bit bool) bool { return !bit }))

	registerOp("BSF", bsfOp(true))
	registerOp("BSR", bsfOp(false))

	registerOp("MOVZX", movzxOp)
	registerOp("MOVSX", movsxOp)

	registerOp("SHLD", shldOp)
	registerOp("SHRD", shrdOp)

	registerOp("HLT", haltOp)
	registerOp("NOP", nopOp)
	registerOp("CBW", cbwOp)
	registerOp("CWD", cwdOp)

	registerOp("CLC", clcOp)
	registerOp("STC", stcOp)
	registerOp("CMC", cmcOp)
	registerOp("CLD", cldOp)
	registerOp("STD", stdOp)
	registerOp("CLI", cliOp)
	registerOp("STI", stiOp)

	registerOp("LAHF", lahfOp)
	registerOp("SAHF", sahfOp)

	for name, cond := range setccConds {
		registerOp(name, setccOp(cond))
	}
}

var setccConds = map[string]func(*Registers) bool{
	"SETE":  func(r *Registers) bool { return r.ZF() },
	"SETNE": func(r *Registers) bool { return !r.ZF() },
	"SETL":  func(r *Registers) bool { return r.SF() != r.OF() },
	"SETGE": func(r *Registers) bool { return r.SF() == r.OF() },
	"SETLE": func(r *Registers) bool { return r.ZF() || r.SF() != r.OF() },
	"SETG":  func(r *Registers) bool { return !r.ZF() && r.SF() == r.OF() },
	"SETB":  func(r *Registers) bool { return r.CF() },
	"SETAE": func(r *Registers) bool { return !r.CF() },
	"SETBE": func(r *Registers) bool { return r.CF() || r.ZF() },
	"SETA":  func(r *Registers) bool { return !r.CF() && !r.ZF() },
	"SETS":  func(r *Registers) bool { return r.SF() },
	"SETNS": func(r *Registers) bool { return !r.SF() },
	"SETO":  func(r *Registers) bool { return r.OF() },
	"SETNO": func(r *Registers) bool { return !r.OF() },
	"SETP":  func(r *Registers) bool { return r.PF() },
	"SETNP": func(r *Registers) bool { return !r.PF() },
}
