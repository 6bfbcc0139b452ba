package core

import "testing"

type recordingCallbacks struct {
	calls []struct{ importOrd, funcOrd uint16 }
	err   error
}

func (r *recordingCallbacks) Invoke(importOrdinal, functionOrdinal uint16, regs *Registers, mem *SegmentedMemory) error {
	r.calls = append(r.calls, struct{ importOrd, funcOrd uint16 }{importOrdinal, functionOrdinal})
	return r.err
}

// TestCallOp_RelocationInvokesHostCallback exercises spec scenario S4: a far
// CALL whose target site carries an ImportedOrdinal relocation routes to the
// host callback table instead of transferring control to whatever address
// its encoded ptr16:16 names (invariant 3).
func TestCallOp_RelocationInvokesHostCallback(t *testing.T) {
	mem := NewSegmentedMemory()
	const entryOff = 0x0010
	if err := mem.AddSegment(0x1000, SegCode, make([]byte, 32), []Relocation{
		{Offset: entryOff + 3, Kind: RelocImportedOrdinal, ImportOrdinal: 3, FunctionOrdinal: 42},
	}); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}

	cb := &recordingCallbacks{}
	u := &ExecutionUnit{Mem: mem, Callbacks: cb}
	u.Regs.CS = 0x1000
	u.Regs.SS = 0x1000
	u.Regs.SP = 32

	inst := &Instruction{
		Mnemonic:    "CALL",
		StartOffset: entryOff,
		Operands: []Operand{
			{Kind: OperandFarBranch16, Imm: 0xDEAD, FarSegment: 0xBEEF},
		},
	}
	if fault := callOp(u, inst); fault != nil {
		t.Fatalf("callOp faulted: %+v", fault)
	}

	if len(cb.calls) != 1 {
		t.Fatalf("callback invoked %d times, want 1", len(cb.calls))
	}
	if cb.calls[0].importOrd != 3 || cb.calls[0].funcOrd != 42 {
		t.Errorf("callback invoked with (%d,%d), want (3,42)", cb.calls[0].importOrd, cb.calls[0].funcOrd)
	}
	// Guest code must never be followed as an address: CS:IP are untouched
	// and the caller's own SP is never pushed to.
	if u.Regs.CS != 0x1000 {
		t.Errorf("CS = 0x%04X, want unchanged 0x1000 (encoded far pointer 0xBEEF:0xDEAD must not be followed)", u.Regs.CS)
	}
	if u.Regs.SP != 32 {
		t.Errorf("SP = %d, want unchanged 32 (no return address pushed for a host-routed call)", u.Regs.SP)
	}
}

// TestCallOp_NoRelocationFollowsEncodedFarPointer confirms a far CALL with
// no relocation at its target site behaves as an ordinary guest far call.
func TestCallOp_NoRelocationFollowsEncodedFarPointer(t *testing.T) {
	mem := NewSegmentedMemory()
	if err := mem.AddSegment(0x1000, SegCode, make([]byte, 32), nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	u := &ExecutionUnit{Mem: mem}
	u.Regs.CS = 0x1000
	u.Regs.IP = 0x0005
	u.Regs.SS = 0x1000
	u.Regs.SP = 32

	inst := &Instruction{
		Mnemonic:    "CALL",
		StartOffset: 0x0000,
		Operands: []Operand{
			{Kind: OperandFarBranch16, Imm: 0x0200, FarSegment: 0x3000},
		},
	}
	if fault := callOp(u, inst); fault != nil {
		t.Fatalf("callOp faulted: %+v", fault)
	}
	if u.Regs.CS != 0x3000 || u.Regs.IP != 0x0200 {
		t.Errorf("CS:IP = %04X:%04X, want 3000:0200", u.Regs.CS, u.Regs.IP)
	}
	if u.Regs.SP != 28 {
		t.Errorf("SP = %d, want 28 (CS and IP both pushed)", u.Regs.SP)
	}
}

// TestRaiseInterrupt_FallbackGuestStackDiscipline confirms that with no host
// InterruptHandler installed, raiseInterrupt falls back to the guest-internal
// IRET-compatible stack push and clears IF/TF.
func TestRaiseInterrupt_FallbackGuestStackDiscipline(t *testing.T) {
	mem := NewSegmentedMemory()
	if err := mem.AddSegment(0x1000, SegData, make([]byte, 32), nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	u := &ExecutionUnit{Mem: mem}
	u.Regs.SS = 0x1000
	u.Regs.SP = 32
	u.Regs.CS = 0x2000
	u.Regs.IP = 0x0042
	u.Regs.SetFlag(FlagIF, true)
	u.Regs.SetFlag(FlagTF, true)
	wantFlags := u.Regs.Flags

	if fault := u.raiseInterrupt(0x21); fault != nil {
		t.Fatalf("raiseInterrupt faulted: %+v", fault)
	}

	if u.Regs.SP != 26 {
		t.Fatalf("SP = %d, want 26 (three words pushed)", u.Regs.SP)
	}
	if u.Regs.IF() {
		t.Error("IF still set after a guest-internal interrupt dispatch")
	}
	if u.Regs.TF() {
		t.Error("TF still set after a guest-internal interrupt dispatch")
	}
	if got := mem.ReadWord(0x1000, 26); got != 0x0042 {
		t.Errorf("pushed IP = 0x%04X, want 0x0042", got)
	}
	if got := mem.ReadWord(0x1000, 28); got != 0x2000 {
		t.Errorf("pushed CS = 0x%04X, want 0x2000", got)
	}
	if got := mem.ReadWord(0x1000, 30); got != wantFlags {
		t.Errorf("pushed FLAGS = 0x%04X, want 0x%04X", got, wantFlags)
	}
}

type stubInterruptHandler struct {
	handled bool
	err     error
	seen    byte
}

func (s *stubInterruptHandler) HandleInterrupt(vector byte, regs *Registers, mem *SegmentedMemory) (bool, error) {
	s.seen = vector
	return s.handled, s.err
}

// TestRaiseInterrupt_HostHandledSkipsGuestFallback confirms that when the
// host's InterruptHandler claims the vector, no guest-internal stack push
// happens at all.
func TestRaiseInterrupt_HostHandledSkipsGuestFallback(t *testing.T) {
	mem := NewSegmentedMemory()
	if err := mem.AddSegment(0x1000, SegData, make([]byte, 32), nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	handler := &stubInterruptHandler{handled: true}
	u := &ExecutionUnit{Mem: mem, InterruptHandler: handler}
	u.Regs.SS = 0x1000
	u.Regs.SP = 32

	if fault := u.raiseInterrupt(0x14); fault != nil {
		t.Fatalf("raiseInterrupt faulted: %+v", fault)
	}

	if handler.seen != 0x14 {
		t.Errorf("handler saw vector 0x%02X, want 0x14", handler.seen)
	}
	if u.Regs.SP != 32 {
		t.Errorf("SP = %d, want unchanged 32 (host claimed the vector)", u.Regs.SP)
	}
}
