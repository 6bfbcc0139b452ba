package core

import "testing"

func TestSegmentedMemory_ByteWordRoundTrip(t *testing.T) {
	m := NewSegmentedMemory()
	if err := m.AddSegment(0x1000, SegData, make([]byte, 16), nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	m.WriteWord(0x1000, 4, 0xBEEF)
	if got := m.ReadWord(0x1000, 4); got != 0xBEEF {
		t.Errorf("ReadWord = 0x%04X, want 0xBEEF", got)
	}
	if got := m.ReadByte(0x1000, 4); got != 0xEF {
		t.Errorf("low byte = 0x%02X, want 0xEF (little-endian)", got)
	}
	if got := m.ReadByte(0x1000, 5); got != 0xBE {
		t.Errorf("high byte = 0x%02X, want 0xBE", got)
	}
}

// TestSegmentedMemory_OffsetWraps exercises invariant 4: a 16-bit offset
// wraps within its own segment rather than carrying into the selector.
func TestSegmentedMemory_OffsetWraps(t *testing.T) {
	m := NewSegmentedMemory()
	bytes := make([]byte, maxSegmentSize)
	if err := m.AddSegment(0x2000, SegData, bytes, nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	m.WriteWord(0x2000, 0xFFFF, 0x1234)
	if got := m.ReadByte(0x2000, 0xFFFF); got != 0x34 {
		t.Errorf("byte at 0xFFFF = 0x%02X, want 0x34", got)
	}
	if got := m.ReadByte(0x2000, 0x0000); got != 0x12 {
		t.Errorf("high byte wrapped to 0x0000 = 0x%02X, want 0x12", got)
	}
}

// TestSegmentedMemory_CodeWriteInvalidatesCache exercises invariant 2:
// a write into a code segment drops any cached decode so the next fetch
// observes the modified bytes instead of a stale decode.
func TestSegmentedMemory_CodeWriteInvalidatesCache(t *testing.T) {
	m := NewSegmentedMemory()
	if err := m.AddSegment(0x1000, SegCode, []byte{0x90, 0x90, 0x90}, nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	fake := &Instruction{Mnemonic: "NOP", Length: 1}
	m.CacheInstruction(0x1000, 0, fake)
	if m.CachedInstruction(0x1000, 0) != fake {
		t.Fatal("CacheInstruction/CachedInstruction did not round-trip")
	}

	m.WriteByte(0x1000, 0, 0xCC)

	if got := m.CachedInstruction(0x1000, 0); got != nil {
		t.Errorf("cached decode survived a write into the code segment: %+v", got)
	}
}

// TestSegmentedMemory_DataWriteKeepsNoCache confirms a write to a non-code
// segment never touches a decode cache (there isn't one to invalidate).
func TestSegmentedMemory_DataWriteKeepsNoCache(t *testing.T) {
	m := NewSegmentedMemory()
	if err := m.AddSegment(0x3000, SegData, make([]byte, 4), nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	m.WriteByte(0x3000, 0, 0x01)
	if m.CachedInstruction(0x3000, 0) != nil {
		t.Error("data segment unexpectedly produced a cached instruction")
	}
}

func TestSegmentedMemory_UnmappedReadsReturnZero(t *testing.T) {
	m := NewSegmentedMemory()
	if got := m.ReadByte(0x9999, 0); got != 0 {
		t.Errorf("read of unmapped segment = 0x%02X, want 0", got)
	}
}

func TestSegmentedMemory_RelocationLookup(t *testing.T) {
	m := NewSegmentedMemory()
	reloc := Relocation{Offset: 0x0010, Kind: RelocImportedOrdinal, ImportOrdinal: 3, FunctionOrdinal: 42}
	if err := m.AddSegment(0x1000, SegCode, make([]byte, 32), []Relocation{reloc}); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	got, ok := m.Relocation(0x1000, 0x0010)
	if !ok {
		t.Fatal("relocation not found at its registered offset")
	}
	if got != reloc {
		t.Errorf("Relocation = %+v, want %+v", got, reloc)
	}
	if _, ok := m.Relocation(0x1000, 0x0011); ok {
		t.Error("found a relocation at an offset that was never registered")
	}
}

func TestSegmentedMemory_BytesTruncatesAtSegmentBoundary(t *testing.T) {
	m := NewSegmentedMemory()
	if err := m.AddSegment(0x1000, SegCode, []byte{1, 2, 3}, nil); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	got := m.Bytes(0x1000, 1, 16)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Bytes(off=1, n=16) = %v, want [2 3]", got)
	}
}
