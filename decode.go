package core

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// regInfo names what one x86asm.Reg means in terms of this core's own
// register-index scheme (registers.go), so the translator never depends on
// the decoder library's internal iota ordering — only on each register's
// printable name, which is part of the library's stable public contract.
type regInfo struct {
	kind     OperandKind
	index    int8
	width    Width
	segIndex SegRegIndex
}

var regTable = buildRegTable()

func buildRegTable() map[string]regInfo {
	t := make(map[string]regInfo, 32)
	eight := []string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}
	for i, name := range eight {
		t[name] = regInfo{kind: OperandRegister, index: int8(i), width: Width8}
	}
	sixteen := []string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}
	for i, name := range sixteen {
		t[name] = regInfo{kind: OperandRegister, index: int8(i), width: Width16}
	}
	segs := []struct {
		name string
		idx  SegRegIndex
	}{
		{"ES", SegES}, {"CS", SegCS}, {"SS", SegSS},
		{"DS", SegDS}, {"FS", SegFS}, {"GS", SegGS},
	}
	for _, s := range segs {
		t[s.name] = regInfo{kind: OperandSegReg, segIndex: s.idx}
	}
	return t
}

func lookupReg(r x86asm.Reg) (regInfo, bool) {
	info, ok := regTable[r.String()]
	return info, ok
}

// parseFPUReg recognizes an x87 stack register operand from its printable
// name. x86asm prints these as "ST(0)".."ST(7)" (and bare "ST" for ST(0));
// parsed by name rather than by assuming the library's iota ordering, same
// rationale as lookupReg.
func parseFPUReg(name string) (int8, bool) {
	if name == "ST" {
		return 0, true
	}
	if len(name) == 6 && name[:3] == "ST(" && name[5] == ')' {
		d := name[4]
		if d >= '0' && d <= '7' {
			return int8(d - '0'), true
		}
	}
	return 0, false
}

// repKindOf reports the string-instruction repeat prefix, if any, following
// the REPE/REPNE distinction spec.md §4.D requires (CMPS/SCAS read it as
// "while equal"/"while not equal"; MOVS/STOS/LODS/INS/OUTS treat REP and
// REPE identically).
func repKindOf(inst x86asm.Inst) string {
	for _, p := range inst.Prefix {
		if p == 0 {
			break
		}
		switch {
		case p.IsREPN():
			return "REPNE"
		case p.IsREP():
			return "REPE"
		}
	}
	return ""
}

func segOverrideOf(inst x86asm.Inst) (SegRegIndex, bool) {
	for _, p := range inst.Prefix {
		switch p {
		case x86asm.PrefixES:
			return SegES, true
		case x86asm.PrefixCS:
			return SegCS, true
		case x86asm.PrefixSS:
			return SegSS, true
		case x86asm.PrefixDS:
			return SegDS, true
		case x86asm.PrefixFS:
			return SegFS, true
		case x86asm.PrefixGS:
			return SegGS, true
		}
	}
	return 0, false
}

func lockPrefixOf(inst x86asm.Inst) bool {
	for _, p := range inst.Prefix {
		if p == x86asm.PrefixLOCK {
			return true
		}
	}
	return false
}

// translateOperand converts one x86asm.Arg into the closed Operand union.
// immKind is the kind given to an Imm argument (Immediate16 when it is
// OperandNone). DecodeInstruction picks immKind from the data size alone, so
// OperandImmediate8to16 is never produced here; sign-extending imm8 forms
// arrive already widened by x86asm.
func translateOperand(arg x86asm.Arg, immKind OperandKind) (Operand, bool) {
	if arg == nil {
		return Operand{}, false
	}
	switch a := arg.(type) {
	case x86asm.Reg:
		info, ok := lookupReg(a)
		if ok {
			if info.kind == OperandSegReg {
				return Operand{Kind: OperandSegReg, Reg: byte(info.segIndex)}, true
			}
			return Operand{Kind: OperandRegister, Reg: byte(info.index), RegWidth: info.width}, true
		}
		if idx, ok := parseFPUReg(a.String()); ok {
			return Operand{Kind: OperandFPUReg, Reg: byte(idx)}, true
		}
		return Operand{}, false
	case x86asm.Mem:
		op := Operand{Kind: OperandMemory, BaseReg: -1, IndexReg: -1, Disp: int32(a.Disp)}
		if a.Base != 0 {
			if info, ok := lookupReg(a.Base); ok {
				op.BaseReg = info.index
			}
		}
		if a.Index != 0 {
			if info, ok := lookupReg(a.Index); ok {
				op.IndexReg = info.index
			}
		}
		if a.Segment != 0 {
			if info, ok := lookupReg(a.Segment); ok && info.kind == OperandSegReg {
				op.SegOverride = info.segIndex
				op.HasOverride = true
			}
		}
		return op, true
	case x86asm.Imm:
		kind := immKind
		if kind == OperandNone {
			kind = OperandImmediate16
		}
		return Operand{Kind: kind, Imm: int32(a)}, true
	case x86asm.Rel:
		return Operand{Kind: OperandNearBranch16, Imm: int32(a)}, true
	default:
		return Operand{}, false
	}
}

// DecodeInstruction decodes one instruction from raw bytes in 16-bit mode
// (spec.md §2's "consumed from an external disassembly library"), producing
// the closed Instruction representation the rest of the core dispatches on.
// src must contain at least the bytes of one instruction plus a safety
// margin; DecodeInstruction never reads past src.
func DecodeInstruction(src []byte) (*Instruction, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty fetch window")
	}
	inst, err := x86asm.Decode(src, 16)
	if err != nil {
		return nil, err
	}

	mnemonic := inst.Op.String()

	out := &Instruction{
		Mnemonic: mnemonic,
		Length:   inst.Len,
		RepKind:  repKindOf(inst),
	}
	if seg, ok := segOverrideOf(inst); ok {
		out.SegOverride = seg
		out.HasOverride = true
	}
	out.LockPrefix = lockPrefixOf(inst)

	// Far CALL/JMP (ptr16:16) is decoded directly from the raw opcode
	// rather than through x86asm's Args, since the instruction's own two
	// encoded fields (offset, then segment) are laid out identically across
	// every real NE-style loader output and this core never needs the
	// library's generic far-pointer argument shape for any other mnemonic.
	if len(src) >= 1 && (src[0] == 0x9A || src[0] == 0xEA) {
		if len(src) < 5 {
			return nil, fmt.Errorf("truncated far branch at decode")
		}
		off := uint16(src[1]) | uint16(src[2])<<8
		seg := uint16(src[3]) | uint16(src[4])<<8
		out.Length = 5
		out.Operands = []Operand{{Kind: OperandFarBranch16, Imm: int32(off), FarSegment: seg}}
		return out, nil
	}

	// x86asm already applies each encoding's own sign-extension rule when it
	// produces the Imm value (e.g. the imm8 forms of the Group1 arithmetic
	// opcodes), so the translated value needs no further widening here —
	// only the reported Width/Kind needs to match inst.DataSize for callers
	// that branch on operand shape (spec.md §4.D Open Question 2).
	immKind := OperandImmediate16
	switch inst.DataSize {
	case 8:
		immKind = OperandImmediate8
	case 32:
		immKind = OperandImmediate32
	}

	memWidth := Width16
	switch inst.MemBytes {
	case 1:
		memWidth = Width8
	case 4:
		memWidth = Width32
	}

	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		op, ok := translateOperand(arg, immKind)
		if !ok {
			return nil, fmt.Errorf("unsupported operand shape for %s at index %d", mnemonic, i)
		}
		if op.Kind == OperandMemory {
			op.MemWidth = memWidth
			op.MemBytes = inst.MemBytes
		}
		if op.Kind == OperandImmediate16 {
			op.ImmOffset = uint16(out.Length - 2)
		}
		out.Operands = append(out.Operands, op)
	}

	return out, nil
}
