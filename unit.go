package core

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// fetchWindow is how many bytes DecodeInstruction is handed at a time; long
// enough for any real-mode instruction including prefixes, ModR/M, SIB,
// displacement and a 32-bit immediate.
const fetchWindow = 16

// haltSentinelSeg/haltSentinelOff mark the synthetic return address pushed
// by Execute when simulateCallFar is set, so a guest RETF back to it ends
// the run instead of faulting on an unmapped segment (spec.md §6's
// simulateCallFar knob).
const (
	haltSentinelSeg = 0xFFFF
	haltSentinelOff = 0xFFFF
)

// ExecutionUnit is one re-entrant, poolable CPU instance (spec.md §4.H): a
// register file plus a reference to the module's shared segmented memory
// and host bridge. Nested host→guest→host calls each check out their own
// unit, so a callback invoked mid-instruction never corrupts the caller's
// register state.
type ExecutionUnit struct {
	ID string

	Regs Registers
	Mem  *SegmentedMemory

	Callbacks        CallbackTable
	InterruptHandler InterruptHandler

	logger *slog.Logger
	owner  *Module

	cancelled atomic.Bool
}

// opcodeTable is the mnemonic-indexed dispatch table populated by the
// registerOp calls in the init functions of the ops_*.go and fpu_ops.go
// files, mirroring the
// teacher's byte-indexed baseOps/extendedOps arrays (cpu_x86.go) but keyed
// by decoded mnemonic since x86asm, not a hand-rolled prefix loop, now owns
// opcode-byte dispatch.
var opcodeTable = map[string]opcodeFunc{}

type opcodeFunc func(u *ExecutionUnit, inst *Instruction) *Fault

func registerOp(mnemonic string, fn opcodeFunc) {
	opcodeTable[mnemonic] = fn
}

// Cancel requests that the unit stop at its next instruction boundary
// (spec.md §5: cancellation is checked between instructions, never inside
// one).
func (u *ExecutionUnit) Cancel() { u.cancelled.Store(true) }

// Release returns the unit to its owning module's pool for reuse.
func (u *ExecutionUnit) Release() {
	if u.owner != nil {
		u.owner.releaseUnit(u)
	}
}

// Execute runs the unit starting at entry until it retires a RETF back to
// the synthetic halt sentinel (when simulateCallFar is set) or faults.
// channelNumber identifies the BBS session this call is running on behalf
// of; unless bypassSetState is set it is placed in AX before the first
// instruction, and it is not otherwise interpreted by the core.
// bypassSetState, when true, skips initializing CS:IP/SP/AX from
// entry/initialSP/channelNumber and instead continues from
// whatever the caller already placed in u.Regs — used for a nested call
// issued from inside a callback that already has a live register context.
func (u *ExecutionUnit) Execute(
	ctx context.Context,
	entry FarPointer,
	channelNumber uint16,
	simulateCallFar bool,
	bypassSetState bool,
	initialStack []uint16,
	initialSP uint16,
) (Registers, error) {
	if !bypassSetState {
		u.Regs.CS = entry.Segment
		u.Regs.IP = entry.Offset
		u.Regs.SP = initialSP
		u.Regs.AX = channelNumber
		for i := len(initialStack) - 1; i >= 0; i-- {
			u.Regs.SP -= 2
			u.Mem.WriteWord(u.Regs.SS, u.Regs.SP, initialStack[i])
		}
		if simulateCallFar {
			u.Regs.SP -= 2
			u.Mem.WriteWord(u.Regs.SS, u.Regs.SP, haltSentinelOff)
			u.Regs.SP -= 2
			u.Mem.WriteWord(u.Regs.SS, u.Regs.SP, haltSentinelSeg)
		}
	}

	var budget uint64
	if u.owner != nil {
		budget = u.owner.config.InstructionBudget
	}

	var instrCount uint64
	for {
		select {
		case <-ctx.Done():
			return u.Regs, &Fault{Kind: ErrCancelled, Cause: ctx.Err()}
		default:
		}
		if u.cancelled.Load() {
			return u.Regs, &Fault{Kind: ErrCancelled}
		}
		if simulateCallFar && u.Regs.CS == haltSentinelSeg && u.Regs.IP == haltSentinelOff {
			return u.Regs, nil
		}
		if budget != 0 && instrCount >= budget {
			return u.Regs, &Fault{Kind: ErrCancelled}
		}

		inst, fault := u.fetch()
		if fault != nil {
			return u.Regs, fault
		}

		u.Regs.IP += uint16(inst.Length)

		fn, ok := opcodeTable[inst.Mnemonic]
		if !ok {
			return u.Regs, &Fault{
				Kind:     ErrUnsupportedMnemonic,
				Segment:  u.Regs.CS,
				Offset:   u.Regs.IP - uint16(inst.Length),
				Mnemonic: inst.Mnemonic,
			}
		}
		if fault := fn(u, inst); fault != nil {
			if u.logger != nil {
				logFault(u.logger, u.ID, fault)
			}
			return u.Regs, fault
		}
		if len(inst.Mnemonic) > 0 && inst.Mnemonic[0] == 'F' && u.Regs.X87.PendingFault() {
			fault := &Fault{
				Kind:     ErrFpuException,
				Segment:  u.Regs.CS,
				Offset:   u.Regs.IP - uint16(inst.Length),
				Mnemonic: inst.Mnemonic,
			}
			if u.logger != nil {
				logFault(u.logger, u.ID, fault)
			}
			return u.Regs, fault
		}
		instrCount++
	}
}

// fetch decodes the instruction at the current CS:IP, consulting and
// populating the segment's decode cache (invariant 2).
func (u *ExecutionUnit) fetch() (*Instruction, *Fault) {
	seg := u.Regs.CS
	off := u.Regs.IP

	if cached := u.Mem.CachedInstruction(seg, off); cached != nil {
		return cached, nil
	}

	window := u.Mem.Bytes(seg, off, fetchWindow)
	if len(window) == 0 {
		return nil, &Fault{Kind: ErrDecodeFailure, Segment: seg, Offset: off}
	}
	inst, err := DecodeInstruction(window)
	if err != nil {
		return nil, &Fault{Kind: ErrDecodeFailure, Segment: seg, Offset: off, Bytes: window}
	}
	inst.StartOffset = off
	u.Mem.CacheInstruction(seg, off, inst)
	return inst, nil
}

// pushWord/popWord implement the stack push/pop discipline shared by PUSH,
// CALL, INT and their inverses: SP decrements before a write, increments
// after a read, wrapping within SS per invariant 4.
func (u *ExecutionUnit) pushWord(v uint16) {
	u.Regs.SP -= 2
	u.Mem.WriteWord(u.Regs.SS, u.Regs.SP, v)
}

func (u *ExecutionUnit) popWord() uint16 {
	v := u.Mem.ReadWord(u.Regs.SS, u.Regs.SP)
	u.Regs.SP += 2
	return v
}
