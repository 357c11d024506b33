package lineprog_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/lineprog"
	"github.com/stretchr/testify/require"
)

// buildDwarf4Unit assembles a minimal, well-formed DWARF4 .debug_line unit
// with one directory, one file, and a bytecode program that emits three
// line-table rows followed by an end-sequence.
func buildDwarf4Unit(t *testing.T) []byte {
	t.Helper()

	var hdrTail bytes.Buffer // everything after header_length
	hdrTail.WriteByte(1)     // min_instruction_length
	hdrTail.WriteByte(1)     // max_ops_per_instruction
	hdrTail.WriteByte(1)     // default_is_stmt
	hdrTail.WriteByte(0xfb)  // line_base = -5
	hdrTail.WriteByte(14)    // line_range
	hdrTail.WriteByte(13)    // opcode_base
	hdrTail.Write(make([]byte, 12)) // std opcode lengths (unused by this test)
	hdrTail.WriteString("srcdir\x00")
	hdrTail.WriteByte(0) // directories terminator
	hdrTail.WriteString("main.c\x00")
	hdrTail.WriteByte(1) // dir_index (1-based on the wire)
	hdrTail.WriteByte(0) // mtime
	hdrTail.WriteByte(0) // size
	hdrTail.WriteByte(0) // files terminator

	var program bytes.Buffer
	// DW_LNE_set_address 0x1000
	program.WriteByte(0)
	program.WriteByte(9) // length: 1 (subopcode) + 8 (address)
	program.WriteByte(2) // DW_LNE_set_address
	addr := make([]byte, 8)
	binary.LittleEndian.PutUint64(addr, 0x1000)
	program.Write(addr)
	// DW_LNS_copy -> emits (0x1000, line 1)
	program.WriteByte(1)
	// DW_LNS_advance_line +4, DW_LNS_advance_pc +0x10, DW_LNS_copy -> (0x1010, line 5)
	program.WriteByte(3)
	program.WriteByte(4)
	program.WriteByte(2)
	program.WriteByte(0x10)
	program.WriteByte(1)
	// DW_LNS_set_prologue_end, DW_LNS_advance_pc +0x10, DW_LNS_copy -> (0x1020, line 5, prologue_end)
	program.WriteByte(10)
	program.WriteByte(2)
	program.WriteByte(0x10)
	program.WriteByte(1)
	// DW_LNS_advance_pc +0x10 (reaching 0x1030), then DW_LNE_end_sequence
	program.WriteByte(2)
	program.WriteByte(0x10)
	program.WriteByte(0) // extended opcode marker
	program.WriteByte(1) // length
	program.WriteByte(1) // DW_LNE_end_sequence

	var header bytes.Buffer
	header.WriteByte(4) // version lo
	header.WriteByte(0) // version hi => version 4
	hl := uint32(hdrTail.Len())
	hlBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(hlBytes, hl)
	header.Write(hlBytes)
	header.Write(hdrTail.Bytes())
	header.Write(program.Bytes())

	var unit bytes.Buffer
	ulBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(ulBytes, uint32(header.Len()))
	unit.Write(ulBytes)
	unit.Write(header.Bytes())

	return unit.Bytes()
}

func TestParseDwarf4LineProgram(t *testing.T) {
	data := buildDwarf4Unit(t)
	prog, err := lineprog.Parse(data, 0, nil)
	require.NoError(t, err)

	require.Len(t, prog.FileEntries, 1)
	require.Equal(t, "main.c", prog.FileEntries[0].Name)
	require.Equal(t, 0, prog.FileEntries[0].DirIndex) // 1-based wire -> 0-based

	// four entries: three is_stmt rows plus the end-sequence marker
	require.Len(t, prog.LineEntries, 4)
	require.True(t, sortedByAddress(prog.LineEntries))

	require.Equal(t, uint64(0x1000), prog.LineEntries[0].Address)
	require.Equal(t, 1, prog.LineEntries[0].Line)
	require.False(t, prog.LineEntries[0].EndSequence)

	require.Equal(t, uint64(0x1010), prog.LineEntries[1].Address)
	require.Equal(t, 5, prog.LineEntries[1].Line)

	require.Equal(t, uint64(0x1020), prog.LineEntries[2].Address)
	require.True(t, prog.LineEntries[2].PrologueEnd)

	require.True(t, prog.LineEntries[3].EndSequence)
	require.Equal(t, uint64(0x1030), prog.LineEntries[3].Address)
}

func sortedByAddress(entries []lineprog.LineEntry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].Address < entries[i-1].Address {
			return false
		}
	}
	return true
}
