package dietree_test

import (
	"bytes"
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/abbrev"
	"github.com/ashgrove/nativedbg/dwarfbin/dietree"
	"github.com/stretchr/testify/require"
)

// buildAbbrevTable builds two abbreviations: code 1 is a DW_TAG_compile_unit
// with children and a DW_FORM_string name; code 2 is a childless
// DW_TAG_subprogram with a DW_FORM_string name and a DW_FORM_addr low_pc.
func buildAbbrevTable(t *testing.T) abbrev.Table {
	t.Helper()
	raw := []byte{
		0x01, 0x11, 0x01, // code 1, compile_unit, has children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x00, 0x00,
		0x02, 0x2e, 0x00, // code 2, subprogram, no children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x11, 0x01, // DW_AT_low_pc, DW_FORM_addr
		0x00, 0x00,
		0x00, // table terminator
	}
	table, err := abbrev.Parse(raw, 0)
	require.NoError(t, err)
	return table
}

// buildCU assembles a DWARF4 compile unit containing one compile_unit root
// DIE with one child subprogram DIE, both using DW_FORM_string names.
func buildCU(t *testing.T) []byte {
	t.Helper()
	var info bytes.Buffer
	// unit_length placeholder, patched at the end
	info.Write([]byte{0, 0, 0, 0})
	info.WriteByte(4)
	info.WriteByte(0) // version 4
	info.Write([]byte{0, 0, 0, 0}) // debug_abbrev_offset
	info.WriteByte(8)              // address_size

	// root DIE: code 1
	info.WriteByte(1)
	info.WriteString("prog.c\x00")

	// child DIE: code 2
	info.WriteByte(2)
	info.WriteString("main\x00")
	info.Write(make([]byte, 8)) // low_pc = 0

	// null terminates subprogram's sibling chain (it has none) -- subprogram
	// has no children so no null needed for it; null closes the CU's child list
	info.WriteByte(0)

	b := info.Bytes()
	unitLen := uint32(len(b) - 4)
	b[0] = byte(unitLen)
	b[1] = byte(unitLen >> 8)
	b[2] = byte(unitLen >> 16)
	b[3] = byte(unitLen >> 24)
	return b
}

func TestBuildTwoLevelTree(t *testing.T) {
	table := buildAbbrevTable(t)
	data := buildCU(t)

	tree, err := dietree.Build(data, 0, table, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	require.Equal(t, "prog.c", tree.Root.Name())
	require.Len(t, tree.Root.Children, 1)

	child := tree.ByOffset[tree.Root.Children[0]]
	require.NotNil(t, child)
	require.Equal(t, "main", child.Name())
	require.Equal(t, uint64(dietree.TagSubprogram), child.Tag)
	require.Equal(t, tree.Root.Offset, child.ParentOffset)
}

func TestBuildUnknownAbbrevCodeReturnsError(t *testing.T) {
	table := abbrev.Table{}
	data := buildCU(t)
	_, err := dietree.Build(data, 0, table, nil, nil)
	require.Error(t, err)
}
