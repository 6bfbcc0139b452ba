package core

import (
	"fmt"
	"log/slog"
)

// Module is the host's entry point into the execution core (spec.md §6): a
// named collection of segments plus the callback table and interrupt
// handler the host installs, and the pool of execution units that run
// guest code against them.
type Module struct {
	name   string
	logger *slog.Logger
	mem    *SegmentedMemory
	config Config

	callbacks        CallbackTable
	interruptHandler InterruptHandler

	pool *unitPool

	bssSelector uint16
	bssNext     uint16
	vars        map[string]FarPointer
}

// NewModule creates an empty module. A nil logger gets a stderr text
// handler (logging.go); a zero Config gets DefaultConfig's values.
func NewModule(name string, logger *slog.Logger) *Module {
	return NewModuleWithConfig(name, logger, DefaultConfig())
}

// NewModuleWithConfig is NewModule with an explicit Config.
func NewModuleWithConfig(name string, logger *slog.Logger, cfg Config) *Module {
	if logger == nil {
		logger = newDefaultLogger()
	}
	cfg = cfg.withDefaults()
	m := &Module{
		name:   name,
		logger: logger,
		mem:    NewSegmentedMemory(),
		config: cfg,
		vars:   make(map[string]FarPointer),
	}
	m.pool = newUnitPool(cfg.PoolSize)
	return m
}

// AddSegment registers a fixed-content segment (typically code or
// initialized data straight from the loaded module image).
func (m *Module) AddSegment(selector uint16, kind SegmentKind, bytes []byte, relocs []Relocation) error {
	return m.mem.AddSegment(selector, kind, bytes, relocs)
}

// AddVariableSegment allocates a zero-filled BSS/stack-style segment.
func (m *Module) AddVariableSegment(selector uint16, size int) error {
	return m.mem.AddVariableSegment(selector, size)
}

// bssDefaultSelector and bssDefaultSize size the default variable segment
// AllocateVariable bump-allocates from when the host has not already
// registered one at this selector (spec.md §6 names AllocateVariable but
// leaves its backing segment unspecified; a single 64KiB BSS segment is the
// most direct reading consistent with §3's "BSS/stack region" segment
// kind).
const (
	bssDefaultSelector = 0x0001
	bssDefaultSize     = maxSegmentSize
)

// AllocateVariable bump-allocates size bytes from the module's BSS segment
// and returns a far pointer to them, remembering the mapping under name so
// repeated calls with the same name return the same pointer.
func (m *Module) AllocateVariable(name string, size int) (FarPointer, error) {
	if ptr, ok := m.vars[name]; ok {
		return ptr, nil
	}
	if m.bssSelector == 0 {
		if m.mem.Segment(bssDefaultSelector) == nil {
			if err := m.mem.AddVariableSegment(bssDefaultSelector, bssDefaultSize); err != nil {
				return FarPointer{}, err
			}
		}
		m.bssSelector = bssDefaultSelector
	}
	limit := bssDefaultSize
	if s := m.mem.Segment(m.bssSelector); s != nil {
		limit = len(s.Bytes)
	}
	if int(m.bssNext)+size > limit {
		return FarPointer{}, fmt.Errorf("module %s: BSS segment exhausted allocating %q (%d bytes)", m.name, name, size)
	}
	ptr := FarPointer{Segment: m.bssSelector, Offset: m.bssNext}
	m.bssNext += uint16(size)
	m.vars[name] = ptr
	return ptr, nil
}

// SetCallbackTable installs the host's exported-module invocation surface.
func (m *Module) SetCallbackTable(cb CallbackTable) { m.callbacks = cb }

// SetInterruptHandler installs the host's software-interrupt router.
func (m *Module) SetInterruptHandler(h InterruptHandler) { m.interruptHandler = h }

// Memory exposes the module's segmented memory, for hosts that need to seed
// or inspect it directly (e.g. a loader writing initial stack parameters).
func (m *Module) Memory() *SegmentedMemory { return m.mem }

// CheckoutUnit checks out an ExecutionUnit, allocating a new one if the
// pool is empty (spec.md §4.H).
func (m *Module) CheckoutUnit() *ExecutionUnit { return m.pool.checkout(m) }

func (m *Module) releaseUnit(u *ExecutionUnit) { m.pool.release(u) }
