package core

import "testing"

func TestParityEven(t *testing.T) {
	cases := []struct {
		v    byte
		want bool
	}{
		{0x00, true},  // zero set bits
		{0xFF, true},  // eight set bits
		{0x01, false}, // one set bit
		{0x03, true},  // two set bits
	}
	for _, c := range cases {
		if got := parityEven(c.v); got != c.want {
			t.Errorf("parityEven(0x%02X) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestSignBit(t *testing.T) {
	if !signBit(0x80, Width8) {
		t.Error("signBit(0x80, Width8) = false, want true")
	}
	if signBit(0x7F, Width8) {
		t.Error("signBit(0x7F, Width8) = true, want false")
	}
	if !signBit(0x8000, Width16) {
		t.Error("signBit(0x8000, Width16) = false, want true")
	}
}

func TestMask(t *testing.T) {
	if mask(Width8) != 0xFF || mask(Width16) != 0xFFFF || mask(Width32) != 0xFFFFFFFF {
		t.Errorf("mask table wrong: 8=0x%X 16=0x%X 32=0x%X", mask(Width8), mask(Width16), mask(Width32))
	}
}

func TestEvaluate_AddCarryAndAuxCarry(t *testing.T) {
	// 0xFF + 0x01 at 8 bits: result wraps to 0x00, carrying out of both the
	// low nibble and the full width.
	f := evaluate(OpAdd, Width8, 0xFF, 0x01, uint64(0xFF)+uint64(0x01))
	want := FlagCF | FlagAF | FlagZF | FlagPF
	if f != want {
		t.Errorf("evaluate(ADD, 0xFF+0x01) = 0x%04X, want 0x%04X", f, want)
	}
}

func TestEvaluate_AddSignedOverflowNoCarry(t *testing.T) {
	// 0x7F + 0x01 at 8 bits: two positives producing a negative result, the
	// textbook signed-overflow case, with no unsigned carry out.
	f := evaluate(OpAdd, Width8, 0x7F, 0x01, uint64(0x7F)+uint64(0x01))
	if f&FlagCF != 0 {
		t.Error("CF set, want clear (no unsigned carry out of bit 7)")
	}
	if f&FlagOF == 0 {
		t.Error("OF clear, want set (positive + positive = negative)")
	}
	if f&FlagSF == 0 {
		t.Error("SF clear, want set (result is 0x80)")
	}
	if f&FlagZF != 0 {
		t.Error("ZF set, want clear")
	}
}

func TestEvaluate_SubBorrow(t *testing.T) {
	// 0x00 - 0x01 at 8 bits: borrows, result wraps to 0xFF.
	f := evaluate(OpSub, Width8, 0x00, 0x01, uint64(0x00)-uint64(0x01))
	if f&FlagCF == 0 {
		t.Error("CF clear, want set (borrow occurred)")
	}
	if f&FlagSF == 0 {
		t.Error("SF clear, want set (result is 0xFF)")
	}
	if f&FlagOF != 0 {
		t.Error("OF set, want clear (same-sign operands never overflow on subtract)")
	}
}

func TestEvaluate_LogicClearsCarryAndOverflow(t *testing.T) {
	f := evaluate(OpAnd, Width16, 0xFF00, 0x0FF0, uint64(0xFF00&0x0FF0))
	if f&(FlagCF|FlagOF) != 0 {
		t.Errorf("AND set CF/OF (0x%04X), want both clear", f)
	}
	if f&FlagZF != 0 {
		t.Errorf("AND(0xFF00,0x0FF0) reported ZF, result 0x0F00 is nonzero")
	}
}

func TestEvaluate_ZeroResultSetsZF(t *testing.T) {
	f := evaluate(OpXor, Width16, 0x1234, 0x1234, 0)
	if f&FlagZF == 0 {
		t.Error("XOR of equal operands did not set ZF")
	}
}
