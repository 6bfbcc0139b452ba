package core

import "errors"

// CallbackTable is the host surface a far CALL through an ImportedOrdinal
// relocation invokes (spec.md §4.G). The (out-of-scope) exported-module
// library implements it; the core only ever needs to call through it and
// propagate whatever it returns.
type CallbackTable interface {
	Invoke(importOrdinal, functionOrdinal uint16, regs *Registers, mem *SegmentedMemory) error
}

// InterruptHandler lets a host claim specific software interrupt vectors
// (spec.md §4.G "software interrupt routing to host-provided handlers").
// Handled reports whether the host recognized and serviced the vector; when
// false, the core falls back to its own IRET-compatible handling (push
// FLAGS/CS/IP, clear IF/TF). No vector is rejected: an unclaimed vector
// never raises a fault.
type InterruptHandler interface {
	HandleInterrupt(vector byte, regs *Registers, mem *SegmentedMemory) (handled bool, err error)
}

// invokeImport resolves a far-CALL target through its relocation record and
// dispatches to the host callback table, per spec.md invariant 3: the core
// never follows an ImportedOrdinal relocation as a guest address, it always
// routes it to the host.
func (u *ExecutionUnit) invokeImport(reloc Relocation) *Fault {
	if u.Callbacks == nil {
		return &Fault{
			Kind:            ErrHostInvokeFailure,
			ImportOrdinal:   reloc.ImportOrdinal,
			FunctionOrdinal: reloc.FunctionOrdinal,
			Cause:           errNoCallbackTable,
		}
	}
	if err := u.Callbacks.Invoke(reloc.ImportOrdinal, reloc.FunctionOrdinal, &u.Regs, u.Mem); err != nil {
		return &Fault{
			Kind:            ErrHostInvokeFailure,
			ImportOrdinal:   reloc.ImportOrdinal,
			FunctionOrdinal: reloc.FunctionOrdinal,
			Cause:           err,
		}
	}
	return nil
}

// raiseInterrupt routes a software interrupt to the host handler if one is
// installed and claims the vector; otherwise it runs the guest-internal
// IRET-compatible stack discipline (push FLAGS, CS, IP; clear IF and TF).
func (u *ExecutionUnit) raiseInterrupt(vector byte) *Fault {
	if u.InterruptHandler != nil {
		handled, err := u.InterruptHandler.HandleInterrupt(vector, &u.Regs, u.Mem)
		if err != nil {
			return &Fault{Kind: ErrHostInvokeFailure, Cause: err}
		}
		if handled {
			return nil
		}
	}

	u.pushWord(u.Regs.Flags)
	u.pushWord(u.Regs.CS)
	u.pushWord(u.Regs.IP)
	u.Regs.SetFlag(FlagIF, false)
	u.Regs.SetFlag(FlagTF, false)
	return nil
}

var errNoCallbackTable = errors.New("no callback table installed on module")
