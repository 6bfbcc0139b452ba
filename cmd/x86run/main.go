// Command x86run loads a flat real-mode binary image into a module and runs
// it on a single execution unit, printing the resulting register state. It
// exercises the core the way a host loader would: one code segment, one
// stack segment, and a no-op callback/interrupt surface that logs whatever
// the guest tries to call out to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	core "github.com/donfanning/mbbsemu-core"
)

func main() {
	image := flag.String("image", "", "flat binary image to load (required)")
	segHex := flag.String("seg", "1000", "hex code segment selector")
	entryHex := flag.String("entry", "0100", "hex entry offset within -seg")
	stackHex := flag.String("stack-seg", "2000", "hex stack segment selector")
	stackSize := flag.Int("stack-size", 4096, "stack segment size in bytes")
	budget := flag.Uint64("budget", 0, "instruction budget (0 = unbounded)")
	verbose := flag.Bool("v", false, "verbose (debug-level) logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: x86run -image FILE [options]\n\nRuns a flat real-mode binary on the execution core.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *image == "" {
		flag.Usage()
		os.Exit(1)
	}

	seg, err := parseHex16(*segHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -seg: %v\n", err)
		os.Exit(1)
	}
	entry, err := parseHex16(*entryHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -entry: %v\n", err)
		os.Exit(1)
	}
	stackSeg, err := parseHex16(*stackHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -stack-seg: %v\n", err)
		os.Exit(1)
	}

	bytes, err := os.ReadFile(*image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", *image, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	m := core.NewModuleWithConfig(*image, logger, core.Config{PoolSize: 1, InstructionBudget: *budget})
	if err := m.AddSegment(seg, core.SegCode, bytes, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error loading code segment: %v\n", err)
		os.Exit(1)
	}
	if err := m.AddVariableSegment(stackSeg, *stackSize); err != nil {
		fmt.Fprintf(os.Stderr, "error allocating stack segment: %v\n", err)
		os.Exit(1)
	}
	m.SetCallbackTable(loggingCallbacks{logger})
	m.SetInterruptHandler(loggingInterrupts{logger})

	unit := m.CheckoutUnit()
	unit.Regs.SS = stackSeg
	unit.Regs.DS = seg
	unit.Regs.ES = seg

	regs, err := unit.Execute(context.Background(), core.FarPointer{Segment: seg, Offset: entry}, 0, false, false, nil, uint16(*stackSize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "execution fault: %v\n", err)
		os.Exit(1)
	}

	printRegisters(regs)
}

func parseHex16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func printRegisters(r core.Registers) {
	fmt.Printf("AX=%04X BX=%04X CX=%04X DX=%04X SI=%04X DI=%04X BP=%04X SP=%04X\n",
		r.AX, r.BX, r.CX, r.DX, r.SI, r.DI, r.BP, r.SP)
	fmt.Printf("CS=%04X DS=%04X ES=%04X SS=%04X IP=%04X FLAGS=%04X\n",
		r.CS, r.DS, r.ES, r.SS, r.IP, r.Flags)
}

type loggingCallbacks struct{ logger *slog.Logger }

func (c loggingCallbacks) Invoke(importOrdinal, functionOrdinal uint16, regs *core.Registers, mem *core.SegmentedMemory) error {
	c.logger.Info("host invoke", "import", importOrdinal, "function", functionOrdinal, "ax", regs.AX)
	return nil
}

type loggingInterrupts struct{ logger *slog.Logger }

func (h loggingInterrupts) HandleInterrupt(vector byte, regs *core.Registers, mem *core.SegmentedMemory) (bool, error) {
	h.logger.Debug("unhandled interrupt, falling back to guest IRET stack", "vector", vector)
	return false, nil
}
