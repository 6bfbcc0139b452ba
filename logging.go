package core

import (
	"log/slog"
	"os"
)

// newDefaultLogger is used when a host constructs a Module with a nil
// logger, matching the teacher's "always have somewhere diagnostics go"
// stance (cpu_x86.go halts print diagnostics rather than silently dying) —
// generalized to structured logging since the core propagates faults to a
// host instead of printing-and-halting on its own.
func newDefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// logFault writes one structured log line for a fault before it is returned
// to the host, so a host that only checks the error's text still gets a
// structured record in its logs (spec.md §7).
func logFault(logger *slog.Logger, unit string, f *Fault) {
	logger.Error("execution fault",
		slog.String("unit", unit),
		slog.String("kind", f.Kind.String()),
		slog.String("mnemonic", f.Mnemonic),
		slog.Any("segment", f.Segment),
		slog.Any("offset", f.Offset),
	)
}
