package core

import "fmt"

// ErrorKind tags the fault taxonomy of spec.md §7. Every fault terminates
// the current execution unit and propagates to the host; the core never
// retries a fault internally (§7 recovery policy).
type ErrorKind int

const (
	ErrDecodeFailure ErrorKind = iota
	ErrUnsupportedMnemonic
	ErrUnsupportedOperandShape
	ErrDivideError
	ErrFpuException
	ErrStackFault
	ErrRelocationMissing
	ErrHostInvokeFailure
	ErrCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDecodeFailure:
		return "DecodeFailure"
	case ErrUnsupportedMnemonic:
		return "UnsupportedMnemonic"
	case ErrUnsupportedOperandShape:
		return "UnsupportedOperandShape"
	case ErrDivideError:
		return "DivideError"
	case ErrFpuException:
		return "FpuException"
	case ErrStackFault:
		return "StackFault"
	case ErrRelocationMissing:
		return "RelocationMissing"
	case ErrHostInvokeFailure:
		return "HostInvokeFailure"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Fault is the error type returned by ExecutionUnit.Execute. It carries
// enough context for the host to log and discard the unit (spec.md §7:
// "the host may log, discard the unit, and resume the module by checking
// out a fresh unit at its next entry point").
type Fault struct {
	Kind ErrorKind

	// Location, set for faults tied to a specific fetch/decode site.
	Segment uint16
	Offset  uint16
	Bytes   []byte

	// Mnemonic/operand-shape context for decode-adjacent faults.
	Mnemonic string
	Shape    string

	// Import/ordinal context for HostInvokeFailure.
	ImportOrdinal   uint16
	FunctionOrdinal uint16
	Cause           error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case ErrDecodeFailure:
		return fmt.Sprintf("decode failure at %04X:%04X: %x", f.Segment, f.Offset, f.Bytes)
	case ErrUnsupportedMnemonic:
		return fmt.Sprintf("unsupported mnemonic %q at %04X:%04X", f.Mnemonic, f.Segment, f.Offset)
	case ErrUnsupportedOperandShape:
		return fmt.Sprintf("unsupported operand shape for %q: %s at %04X:%04X", f.Mnemonic, f.Shape, f.Segment, f.Offset)
	case ErrDivideError:
		return fmt.Sprintf("divide error at %04X:%04X", f.Segment, f.Offset)
	case ErrFpuException:
		return fmt.Sprintf("unmasked x87 exception at %04X:%04X", f.Segment, f.Offset)
	case ErrStackFault:
		return fmt.Sprintf("stack fault: segment %04X offset %04X out of bounds", f.Segment, f.Offset)
	case ErrRelocationMissing:
		return fmt.Sprintf("relocation sentinel read with no record at %04X:%04X", f.Segment, f.Offset)
	case ErrHostInvokeFailure:
		return fmt.Sprintf("host invoke (%d,%d) failed: %v", f.ImportOrdinal, f.FunctionOrdinal, f.Cause)
	case ErrCancelled:
		return "execution cancelled"
	default:
		return "unknown fault"
	}
}

func (f *Fault) Unwrap() error { return f.Cause }
