package core

import "math"

// x87 FPU opcode semantics (spec.md §4.E), adapted from the teacher's
// ModRM-range dispatch in fpu_x87_ops.go into one handler per mnemonic, since
// dispatch here is keyed by the decoder's own mnemonic string rather than a
// live ModR/M byte. The teacher's documented swapped-operand quirk for the
// reverse forms (FSUBR computes src-dst, not dst-src; FDIVR likewise) is
// preserved via the distinct *RCompute closures below.

func (u *ExecutionUnit) fpuMemPtr(op Operand, inst *Instruction) FarPointer {
	return u.effAddr(op, inst)
}

// fpuApplyArith folds IE/OE/ZE sticky exceptions for one arithmetic result,
// mirroring the teacher's inline math.IsNaN/math.IsInf/zero-divisor checks
// in x87BinaryST0STi/x87BinaryMem.
func (u *ExecutionUnit) fpuApplyArith(r, divisor float64, isDiv bool) float64 {
	f := &u.Regs.X87
	if math.IsNaN(r) {
		f.setException(FswIE)
	}
	if math.IsInf(r, 0) {
		f.setException(FswOE)
	}
	if isDiv && divisor == 0 {
		f.setException(FswZE)
	}
	return r
}

// fpuCompute returns (result, divisor-used); divisor is only meaningful for
// the division forms and is ignored otherwise.
type fpuCompute func(a, b float64) (float64, float64)

func addCompute(a, b float64) (float64, float64)  { return a + b, 0 }
func subCompute(a, b float64) (float64, float64)  { return a - b, 0 }
func subRCompute(a, b float64) (float64, float64) { return b - a, 0 }
func mulCompute(a, b float64) (float64, float64)  { return a * b, 0 }
func divCompute(a, b float64) (float64, float64)  { return a / b, b }
func divRCompute(a, b float64) (float64, float64) { return b / a, a }

// fpuArith handles the register forms of FADD/FSUB/FSUBR/FMUL/FDIV/FDIVR and
// their memory (m32) forms, and the *P pop-after variants.
func fpuArith(compute fpuCompute, isDiv, popAfter bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		if len(inst.Operands) == 1 && inst.Operands[0].Kind == OperandMemory {
			if f.CheckStackUnderflow(0) {
				return nil
			}
			ptr := u.fpuMemPtr(inst.Operands[0], inst)
			b := f.LoadFloat32(u.Mem, ptr.Segment, ptr.Offset)
			a := f.ST(0)
			r, div := compute(a, b)
			f.SetST(0, u.fpuApplyArith(r, div, isDiv))
			return nil
		}

		var dstIdx, srcIdx int
		if len(inst.Operands) == 1 {
			dstIdx, srcIdx = 0, int(inst.Operands[0].Reg)
		} else {
			dstIdx, srcIdx = int(inst.Operands[0].Reg), int(inst.Operands[1].Reg)
		}
		if f.CheckStackUnderflow(dstIdx) || f.CheckStackUnderflow(srcIdx) {
			return nil
		}
		a := f.ST(dstIdx)
		b := f.ST(srcIdx)
		r, div := compute(a, b)
		f.SetST(dstIdx, u.fpuApplyArith(r, div, isDiv))
		if popAfter {
			f.Pop()
		}
		return nil
	}
}

// fpuArithInt handles the integer-memory forms FIADD/FISUB/FISUBR/FIMUL/
// FIDIV/FIDIVR (m32int, ST(0) implicit on both sides).
func fpuArithInt(compute fpuCompute, isDiv bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		if f.CheckStackUnderflow(0) {
			return nil
		}
		ptr := u.fpuMemPtr(inst.Operands[0], inst)
		b := f.LoadInt32(u.Mem, ptr.Segment, ptr.Offset)
		a := f.ST(0)
		r, div := compute(a, b)
		f.SetST(0, u.fpuApplyArith(r, div, isDiv))
		return nil
	}
}

func fpuLdOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	op := inst.Operands[0]
	if op.Kind == OperandFPUReg {
		if f.CheckStackUnderflow(int(op.Reg)) {
			return nil
		}
		f.Push(f.ST(int(op.Reg)))
		return nil
	}
	ptr := u.fpuMemPtr(op, inst)
	switch op.MemBytes {
	case 4:
		f.Push(f.LoadFloat32(u.Mem, ptr.Segment, ptr.Offset))
	case 10:
		f.Push(f.LoadExtended80(u.Mem, ptr.Segment, ptr.Offset))
	default:
		f.Push(f.LoadFloat64(u.Mem, ptr.Segment, ptr.Offset))
	}
	return nil
}

func fpuStOp(popAfter bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		if f.CheckStackUnderflow(0) {
			return nil
		}
		op := inst.Operands[0]
		v := f.ST(0)
		pop := popAfter
		if op.Kind == OperandFPUReg {
			f.SetST(int(op.Reg), v)
		} else {
			ptr := u.fpuMemPtr(op, inst)
			switch op.MemBytes {
			case 4:
				f.StoreFloat32(u.Mem, ptr.Segment, ptr.Offset, v)
			case 10:
				f.StoreExtended80(u.Mem, ptr.Segment, ptr.Offset, v)
				pop = true
			default:
				f.StoreFloat64(u.Mem, ptr.Segment, ptr.Offset, v)
			}
		}
		if pop {
			f.Pop()
		}
		return nil
	}
}

func fpuFldConst(idx int) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		u.Regs.X87.Push(ConstTable[idx])
		return nil
	}
}

func fpuFxchOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	i := 1
	if len(inst.Operands) == 1 {
		i = int(inst.Operands[0].Reg)
	}
	if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(i) {
		return nil
	}
	a, b := f.ST(0), f.ST(i)
	f.SetST(0, b)
	f.SetST(i, a)
	return nil
}

func fpuCompareOp(popCount int, signalNaN bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		i := 1
		if len(inst.Operands) == 1 {
			if inst.Operands[0].Kind == OperandFPUReg {
				i = int(inst.Operands[0].Reg)
			} else {
				ptr := u.fpuMemPtr(inst.Operands[0], inst)
				if f.CheckStackUnderflow(0) {
					return nil
				}
				f.DoCompare(f.ST(0), f.LoadFloat32(u.Mem, ptr.Segment, ptr.Offset), signalNaN)
				for n := 0; n < popCount; n++ {
					f.Pop()
				}
				return nil
			}
		}
		if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(i) {
			return nil
		}
		f.DoCompare(f.ST(0), f.ST(i), signalNaN)
		for n := 0; n < popCount; n++ {
			f.Pop()
		}
		return nil
	}
}

// fpuComiOp implements FCOMI/FCOMIP/FUCOMI/FUCOMIP, which report the
// comparison directly in the integer ZF/PF/CF flags instead of FSW's C0-C3.
func fpuComiOp(popAfter, signalNaN bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		i := int(inst.Operands[0].Reg)
		if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(i) {
			return nil
		}
		a, b := f.ST(0), f.ST(i)
		switch {
		case math.IsNaN(a) || math.IsNaN(b):
			if signalNaN {
				f.setException(FswIE)
			}
			u.Regs.Flags |= FlagZF | FlagPF | FlagCF
		case a > b:
			u.Regs.Flags &^= FlagZF | FlagPF | FlagCF
		case a < b:
			u.Regs.Flags &^= FlagZF | FlagPF
			u.Regs.Flags |= FlagCF
		default:
			u.Regs.Flags &^= FlagPF | FlagCF
			u.Regs.Flags |= FlagZF
		}
		if popAfter {
			f.Pop()
		}
		return nil
	}
}

func fpuChsOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, -f.ST(0))
	}
	return nil
}

func fpuAbsOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, math.Abs(f.ST(0)))
	}
	return nil
}

func fpuTstOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.DoCompare(f.ST(0), 0, true)
	}
	return nil
}

func fpuXamOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	top := f.top()
	f.FXam(f.ST(0), f.getTag(top) == fpuTagEmpty)
	return nil
}

func fpuSqrtOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) {
		return nil
	}
	x := f.ST(0)
	if x < 0 {
		f.setException(FswIE)
	}
	f.SetST(0, math.Sqrt(x))
	return nil
}

func fpuRndintOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, f.roundPerFCW(f.ST(0)))
	}
	return nil
}

func fpu2xm1Op(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, math.Exp2(f.ST(0))-1.0)
	}
	return nil
}

func fpuYl2xOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(1) {
		return nil
	}
	x, y := f.ST(0), f.ST(1)
	if x < 0 {
		f.setException(FswIE)
	} else if x == 0 && !math.IsNaN(y) && !math.IsInf(y, 0) && y != 0 {
		f.setException(FswZE)
	}
	f.SetST(1, y*math.Log2(x))
	f.Pop()
	return nil
}

func fpuYl2xp1Op(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(1) {
		return nil
	}
	x, y := f.ST(0), f.ST(1)
	if x <= -1 {
		f.setException(FswIE)
	}
	f.SetST(1, y*math.Log1p(x)/math.Ln2)
	f.Pop()
	return nil
}

func fpuPtanOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) {
		return nil
	}
	f.clearCond()
	f.SetST(0, math.Tan(f.ST(0)))
	f.Push(1.0)
	return nil
}

func fpuPatanOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(1) {
		return nil
	}
	f.SetST(1, math.Atan2(f.ST(1), f.ST(0)))
	f.Pop()
	return nil
}

func fpuXtractOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) {
		return nil
	}
	x := f.ST(0)
	if x == 0 {
		f.Push(math.Inf(-1))
		f.SetST(1, 0)
		return nil
	}
	frac, exp := math.Frexp(x)
	f.SetST(0, frac*2)
	f.Push(float64(exp - 1))
	return nil
}

func fpuPrem(roundToEven bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(1) {
			return nil
		}
		a, b := f.ST(0), f.ST(1)
		var q int64
		if roundToEven {
			q = int64(math.RoundToEven(a / b))
			f.SetST(0, math.Remainder(a, b))
		} else {
			q = int64(math.Trunc(a / b))
			f.SetST(0, a-float64(q)*b)
		}
		f.clearCond()
		f.SetQuotientFlags(q)
		return nil
	}
}

func fpuDecstpOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	f.setTop((f.top() - 1) & 7)
	return nil
}

func fpuIncstpOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	f.setTop((f.top() + 1) & 7)
	return nil
}

func fpuScaleOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) || f.CheckStackUnderflow(1) {
		return nil
	}
	f.SetST(0, math.Ldexp(f.ST(0), int(f.ST(1))))
	return nil
}

func fpuSincosOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) {
		return nil
	}
	x := f.ST(0)
	f.SetST(0, math.Sin(x))
	f.Push(math.Cos(x))
	f.clearCond()
	return nil
}

func fpuSinOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, math.Sin(f.ST(0)))
		f.clearCond()
	}
	return nil
}

func fpuCosOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if !f.CheckStackUnderflow(0) {
		f.SetST(0, math.Cos(f.ST(0)))
		f.clearCond()
	}
	return nil
}

func fpuFreeOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	i := int(inst.Operands[0].Reg)
	f.setTag(f.physReg(i), fpuTagEmpty)
	return nil
}

func fpuNopOp(u *ExecutionUnit, inst *Instruction) *Fault { return nil }

func fpuIldOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	switch inst.Operands[0].MemBytes {
	case 2:
		f.Push(f.LoadInt16(u.Mem, ptr.Segment, ptr.Offset))
	case 4:
		f.Push(f.LoadInt32(u.Mem, ptr.Segment, ptr.Offset))
	default:
		f.Push(f.LoadInt64(u.Mem, ptr.Segment, ptr.Offset))
	}
	return nil
}

func fpuIstOp(popAfter bool) opcodeFunc {
	return func(u *ExecutionUnit, inst *Instruction) *Fault {
		f := &u.Regs.X87
		if f.CheckStackUnderflow(0) {
			return nil
		}
		ptr := u.fpuMemPtr(inst.Operands[0], inst)
		v := f.ST(0)
		switch inst.Operands[0].MemBytes {
		case 2:
			f.StoreInt16(u.Mem, ptr.Segment, ptr.Offset, v)
		case 4:
			f.StoreInt32(u.Mem, ptr.Segment, ptr.Offset, v)
		default:
			f.StoreInt64(u.Mem, ptr.Segment, ptr.Offset, v)
		}
		if popAfter {
			f.Pop()
		}
		return nil
	}
}

func fpuBldOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	f.Push(f.LoadBCD(u.Mem, ptr.Segment, ptr.Offset))
	return nil
}

func fpuBstpOp(u *ExecutionUnit, inst *Instruction) *Fault {
	f := &u.Regs.X87
	if f.CheckStackUnderflow(0) {
		return nil
	}
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	f.StoreBCD(u.Mem, ptr.Segment, ptr.Offset, f.ST(0))
	f.Pop()
	return nil
}

func fpuLdcwOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Regs.X87.FCW = u.Mem.ReadWord(ptr.Segment, ptr.Offset)
	return nil
}

func fpuStcwOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Mem.WriteWord(ptr.Segment, ptr.Offset, u.Regs.X87.FCW)
	return nil
}

func fpuStswOp(u *ExecutionUnit, inst *Instruction) *Fault {
	op := inst.Operands[0]
	if op.Kind == OperandRegister {
		u.writeOp16(op, inst, u.Regs.X87.FSW)
		return nil
	}
	ptr := u.fpuMemPtr(op, inst)
	u.Mem.WriteWord(ptr.Segment, ptr.Offset, u.Regs.X87.FSW)
	return nil
}

func fpuLdenvOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Regs.X87.FLdEnv(u.Mem, ptr.Segment, ptr.Offset)
	return nil
}

func fpuStenvOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Regs.X87.FNStEnv(u.Mem, ptr.Segment, ptr.Offset)
	return nil
}

func fpuSaveOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Regs.X87.FSave(u.Mem, ptr.Segment, ptr.Offset)
	return nil
}

func fpuRstorOp(u *ExecutionUnit, inst *Instruction) *Fault {
	ptr := u.fpuMemPtr(inst.Operands[0], inst)
	u.Regs.X87.FRStor(u.Mem, ptr.Segment, ptr.Offset)
	return nil
}

func fpuClexOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.X87.FSW &^= 0x80FF
	return nil
}

func fpuInitOp(u *ExecutionUnit, inst *Instruction) *Fault {
	u.Regs.X87.Reset()
	return nil
}

func init() {
	registerOp("FADD", fpuArith(addCompute, false, false))
	registerOp("FADDP", fpuArith(addCompute, false, true))
	registerOp("FIADD", fpuArithInt(addCompute, false))
	registerOp("FSUB", fpuArith(subCompute, false, false))
	registerOp("FSUBR", fpuArith(subRCompute, false, false))
	registerOp("FSUBP", fpuArith(subCompute, false, true))
	registerOp("FSUBRP", fpuArith(subRCompute, false, true))
	registerOp("FISUB", fpuArithInt(subCompute, false))
	registerOp("FISUBR", fpuArithInt(subRCompute, false))
	registerOp("FMUL", fpuArith(mulCompute, false, false))
	registerOp("FMULP", fpuArith(mulCompute, false, true))
	registerOp("FIMUL", fpuArithInt(mulCompute, false))
	registerOp("FDIV", fpuArith(divCompute, true, false))
	registerOp("FDIVR", fpuArith(divRCompute, true, false))
	registerOp("FDIVP", fpuArith(divCompute, true, true))
	registerOp("FDIVRP", fpuArith(divRCompute, true, true))
	registerOp("FIDIV", fpuArithInt(divCompute, true))
	registerOp("FIDIVR", fpuArithInt(divRCompute, true))

	registerOp("FLD", fpuLdOp)
	registerOp("FLD1", fpuFldConst(0))
	registerOp("FLDL2T", fpuFldConst(1))
	registerOp("FLDL2E", fpuFldConst(2))
	registerOp("FLDPI", fpuFldConst(3))
	registerOp("FLDLG2", fpuFldConst(4))
	registerOp("FLDLN2", fpuFldConst(5))
	registerOp("FLDZ", fpuFldConst(6))
	registerOp("FST", fpuStOp(false))
	registerOp("FSTP", fpuStOp(true))
	registerOp("FXCH", fpuFxchOp)

	registerOp("FILD", fpuIldOp)
	registerOp("FIST", fpuIstOp(false))
	registerOp("FISTP", fpuIstOp(true))
	registerOp("FBLD", fpuBldOp)
	registerOp("FBSTP", fpuBstpOp)

	registerOp("FCOM", fpuCompareOp(0, true))
	registerOp("FCOMP", fpuCompareOp(1, true))
	registerOp("FCOMPP", fpuCompareOp(2, true))
	registerOp("FUCOM", fpuCompareOp(0, false))
	registerOp("FUCOMP", fpuCompareOp(1, false))
	registerOp("FUCOMPP", fpuCompareOp(2, false))
	registerOp("FCOMI", fpuComiOp(false, true))
	registerOp("FCOMIP", fpuComiOp(true, true))
	registerOp("FUCOMI", fpuComiOp(false, false))
	registerOp("FUCOMIP", fpuComiOp(true, false))

	registerOp("FCHS", fpuChsOp)
	registerOp("FABS", fpuAbsOp)
	registerOp("FTST", fpuTstOp)
	registerOp("FXAM", fpuXamOp)
	registerOp("FSQRT", fpuSqrtOp)
	registerOp("FRNDINT", fpuRndintOp)
	registerOp("F2XM1", fpu2xm1Op)
	registerOp("FYL2X", fpuYl2xOp)
	registerOp("FYL2XP1", fpuYl2xp1Op)
	registerOp("FPTAN", fpuPtanOp)
	registerOp("FPATAN", fpuPatanOp)
	registerOp("FXTRACT", fpuXtractOp)
	registerOp("FPREM", fpuPrem(false))
	registerOp("FPREM1", fpuPrem(true))
	registerOp("FDECSTP", fpuDecstpOp)
	registerOp("FINCSTP", fpuIncstpOp)
	registerOp("FSCALE", fpuScaleOp)
	registerOp("FSINCOS", fpuSincosOp)
	registerOp("FSIN", fpuSinOp)
	registerOp("FCOS", fpuCosOp)
	registerOp("FFREE", fpuFreeOp)
	registerOp("FNOP", fpuNopOp)

	registerOp("FLDCW", fpuLdcwOp)
	registerOp("FNSTCW", fpuStcwOp)
	registerOp("FSTCW", fpuStcwOp)
	registerOp("FNSTSW", fpuStswOp)
	registerOp("FSTSW", fpuStswOp)
	registerOp("FLDENV", fpuLdenvOp)
	registerOp("FNSTENV", fpuStenvOp)
	registerOp("FSTENV", fpuStenvOp)
	registerOp("FSAVE", fpuSaveOp)
	registerOp("FNSAVE", fpuSaveOp)
	registerOp("FRSTOR", fpuRstorOp)
	registerOp("FNCLEX", fpuClexOp)
	registerOp("FCLEX", fpuClexOp)
	registerOp("FNINIT", fpuInitOp)
	registerOp("FINIT", fpuInitOp)
}
