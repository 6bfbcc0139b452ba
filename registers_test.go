package core

import "testing"

func TestRegisters_HalfRegisterAliasing(t *testing.T) {
	var r Registers
	r.AX = 0x1234
	if got := r.AH(); got != 0x12 {
		t.Errorf("AH: got 0x%02X, want 0x12", got)
	}
	if got := r.AL(); got != 0x34 {
		t.Errorf("AL: got 0x%02X, want 0x34", got)
	}

	r.SetAL(0xFF)
	if r.AX != 0x12FF {
		t.Errorf("SetAL left AH untouched: AX=0x%04X, want 0x12FF", r.AX)
	}
	r.SetAH(0x00)
	if r.AX != 0x00FF {
		t.Errorf("SetAH left AL untouched: AX=0x%04X, want 0x00FF", r.AX)
	}
}

func TestRegisters_GetSetReg8Order(t *testing.T) {
	var r Registers
	r.AX, r.CX, r.DX, r.BX = 0x1100, 0x2200, 0x3300, 0x4400

	want := []byte{0x00, 0x00, 0x00, 0x00, 0x11, 0x22, 0x33, 0x44}
	for i, w := range want {
		if got := r.GetReg8(byte(i)); got != w {
			t.Errorf("GetReg8(%d): got 0x%02X, want 0x%02X", i, got, w)
		}
	}

	r.SetReg8(0, 0xAB) // AL
	if r.AX != 0x11AB {
		t.Errorf("SetReg8(0,...) -> AX=0x%04X, want 0x11AB", r.AX)
	}
	r.SetReg8(4, 0xCD) // AH
	if r.AX != 0xCDAB {
		t.Errorf("SetReg8(4,...) -> AX=0x%04X, want 0xCDAB", r.AX)
	}
}

func TestRegisters_GetSetReg16Order(t *testing.T) {
	var r Registers
	r.SetReg16(4, 0x8000) // SP
	r.SetReg16(5, 0x0010) // BP
	if r.SP != 0x8000 || r.BP != 0x0010 {
		t.Errorf("SP/BP = 0x%04X/0x%04X, want 0x8000/0x0010", r.SP, r.BP)
	}
	if got := r.GetReg16(4); got != 0x8000 {
		t.Errorf("GetReg16(4) = 0x%04X, want 0x8000", got)
	}
}

func TestRegisters_SegAccessors(t *testing.T) {
	var r Registers
	r.SetSeg(SegDS, 0x2000)
	r.SetSeg(SegCS, 0x1000)
	if r.GetSeg(SegDS) != 0x2000 || r.GetSeg(SegCS) != 0x1000 {
		t.Errorf("segment registers not round-tripped: DS=0x%04X CS=0x%04X", r.GetSeg(SegDS), r.GetSeg(SegCS))
	}
}

func TestRegisters_ZeroResetsToDefinedState(t *testing.T) {
	var r Registers
	r.AX, r.Flags, r.IP = 0xFFFF, 0xFFFF, 0xFFFF
	r.X87.Push(3.14)

	r.Zero()

	if r.AX != 0 || r.IP != 0 {
		t.Errorf("Zero left AX/IP nonzero: AX=0x%04X IP=0x%04X", r.AX, r.IP)
	}
	if r.Flags != flagReserved1 {
		t.Errorf("Flags after Zero = 0x%04X, want only the reserved bit 0x%04X", r.Flags, uint16(flagReserved1))
	}
	if r.X87.FCW != 0x037F {
		t.Errorf("X87.FCW after Zero = 0x%04X, want 0x037F", r.X87.FCW)
	}
}

func TestRegisters_FlagHelpers(t *testing.T) {
	var r Registers
	r.SetFlag(FlagCF, true)
	r.SetFlag(FlagZF, true)
	if !r.CF() || !r.ZF() {
		t.Fatal("CF/ZF not set after SetFlag(true)")
	}
	if r.SF() || r.OF() {
		t.Fatal("unrelated flags set unexpectedly")
	}
	r.SetFlag(FlagCF, false)
	if r.CF() {
		t.Fatal("CF still set after SetFlag(false)")
	}
}
