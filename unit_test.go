package core

import (
	"context"
	"errors"
	"testing"
)

// TestExecutionUnit_MovPushPopRegisterState exercises spec scenario S1:
// MOV AX,0x1234 / PUSH AX / POP AX leaves AX unchanged and SP restored.
func TestExecutionUnit_MovPushPopRegisterState(t *testing.T) {
	m := NewModuleWithConfig("s1", nil, Config{PoolSize: 1, InstructionBudget: 3})
	if err := m.AddSegment(0x1000, SegCode, []byte{0xB8, 0x34, 0x12, 0x50, 0x58}, nil); err != nil {
		t.Fatalf("AddSegment code: %v", err)
	}
	if err := m.AddVariableSegment(0x2000, 16); err != nil {
		t.Fatalf("AddVariableSegment stack: %v", err)
	}

	u := m.CheckoutUnit()
	u.Regs.SS = 0x2000

	regs, err := u.Execute(context.Background(), FarPointer{Segment: 0x1000, Offset: 0}, 0, false, false, nil, 16)

	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != ErrCancelled {
		t.Fatalf("Execute err = %v, want an ErrCancelled budget-exhaustion Fault", err)
	}
	if regs.AX != 0x1234 {
		t.Errorf("AX = 0x%04X, want 0x1234", regs.AX)
	}
	if regs.SP != 16 {
		t.Errorf("SP = %d, want 16 (restored after matching PUSH/POP)", regs.SP)
	}
}

// TestExecutionUnit_IncFlags exercises spec scenario S2: MOV AX,0 / INC AX
// leaves OF/SF/ZF clear since the result is 1.
func TestExecutionUnit_IncFlags(t *testing.T) {
	m := NewModuleWithConfig("s2", nil, Config{PoolSize: 1, InstructionBudget: 2})
	if err := m.AddSegment(0x1000, SegCode, []byte{0xB8, 0x00, 0x00, 0x40}, nil); err != nil {
		t.Fatalf("AddSegment code: %v", err)
	}
	if err := m.AddVariableSegment(0x2000, 16); err != nil {
		t.Fatalf("AddVariableSegment stack: %v", err)
	}

	u := m.CheckoutUnit()
	u.Regs.SS = 0x2000

	regs, _ := u.Execute(context.Background(), FarPointer{Segment: 0x1000, Offset: 0}, 0, false, false, nil, 16)

	if regs.AX != 1 {
		t.Fatalf("AX = %d, want 1", regs.AX)
	}
	if regs.Flags&FlagOF != 0 {
		t.Error("OF set, want clear")
	}
	if regs.Flags&FlagSF != 0 {
		t.Error("SF set, want clear")
	}
	if regs.Flags&FlagZF != 0 {
		t.Error("ZF set, want clear")
	}
}

// TestExecutionUnit_DivideByZeroFault exercises spec scenario S5: DIV by a
// zero register operand raises ErrDivideError rather than wrapping silently.
func TestExecutionUnit_DivideByZeroFault(t *testing.T) {
	u := &ExecutionUnit{}
	u.Regs.CX = 0

	inst := &Instruction{
		Mnemonic: "DIV",
		Operands: []Operand{{Kind: OperandRegister, Reg: 1, RegWidth: Width16}},
	}
	fault := opcodeTable["DIV"](u, inst)
	if fault == nil || fault.Kind != ErrDivideError {
		t.Fatalf("DIV by zero fault = %+v, want ErrDivideError", fault)
	}
}

// TestExecutionUnit_RepMovsbZeroCountIsNoOp exercises spec scenario S6:
// REPE MOVSB with CX=0 never touches SI/DI/memory.
func TestExecutionUnit_RepMovsbZeroCountIsNoOp(t *testing.T) {
	mem := NewSegmentedMemory()
	if err := mem.AddSegment(0x1000, SegData, []byte{0xAA, 0xBB}, nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	u := &ExecutionUnit{Mem: mem}
	u.Regs.DS, u.Regs.ES = 0x1000, 0x1000
	u.Regs.SI, u.Regs.DI = 0, 1
	u.Regs.CX = 0

	inst := &Instruction{Mnemonic: "MOVSB", RepKind: "REPE"}
	if fault := movsOp(u, inst); fault != nil {
		t.Fatalf("movsOp faulted: %+v", fault)
	}

	if u.Regs.SI != 0 || u.Regs.DI != 1 || u.Regs.CX != 0 {
		t.Errorf("SI/DI/CX changed on a zero-count REP: SI=%d DI=%d CX=%d", u.Regs.SI, u.Regs.DI, u.Regs.CX)
	}
	if got := mem.ReadByte(0x1000, 1); got != 0xBB {
		t.Errorf("destination byte changed: 0x%02X, want 0xBB", got)
	}
}

// TestExecutionUnit_SelfModifyingCodeInvalidatesCache exercises invariant 2
// end to end through ExecutionUnit.fetch(): decoding, then rewriting, then
// re-decoding the same CS:IP must observe the new opcode, not a stale
// cached decode of the original byte.
func TestExecutionUnit_SelfModifyingCodeInvalidatesCache(t *testing.T) {
	mem := NewSegmentedMemory()
	if err := mem.AddSegment(0x1000, SegCode, []byte{0x90, 0x90}, nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	u := &ExecutionUnit{Mem: mem}
	u.Regs.CS = 0x1000
	u.Regs.IP = 0

	first, fault := u.fetch()
	if fault != nil {
		t.Fatalf("first fetch faulted: %+v", fault)
	}
	if first.Mnemonic != "NOP" {
		t.Fatalf("first fetch decoded %q, want NOP", first.Mnemonic)
	}

	mem.WriteByte(0x1000, 0, 0x40) // rewrite the NOP opcode byte to INC AX

	second, fault := u.fetch()
	if fault != nil {
		t.Fatalf("second fetch faulted: %+v", fault)
	}
	if second.Mnemonic != "INC" {
		t.Errorf("second fetch decoded %q, want INC (cache not invalidated by the code-segment write)", second.Mnemonic)
	}
}

// TestModule_ReentrantCheckoutIndependentState confirms two checked-out
// execution units never share register state (spec.md §8: re-entrant
// execution units).
func TestModule_ReentrantCheckoutIndependentState(t *testing.T) {
	m := NewModuleWithConfig("reentrant", nil, Config{PoolSize: 2})

	a := m.CheckoutUnit()
	b := m.CheckoutUnit()
	if a == b {
		t.Fatal("two concurrent checkouts returned the same unit")
	}

	a.Regs.AX = 0x1111
	b.Regs.AX = 0x2222
	if a.Regs.AX != 0x1111 || b.Regs.AX != 0x2222 {
		t.Fatal("register state leaked between concurrently checked-out units")
	}

	a.Release()
	c := m.CheckoutUnit()
	if c != a {
		t.Fatal("release/checkout did not recycle the freed unit")
	}
	if c.Regs.AX != 0 {
		t.Errorf("recycled unit AX = 0x%04X, want 0 (Zero()'d on checkout)", c.Regs.AX)
	}
}
