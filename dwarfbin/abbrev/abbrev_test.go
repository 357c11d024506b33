package abbrev_test

import (
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/abbrev"
	"github.com/stretchr/testify/require"
)

// buildAbbrev assembles a minimal .debug_abbrev blob for one abbreviation:
// code=1, tag=0x11 (compile_unit), children=1, attrs=[(0x03 name, 0x08 string)],
// implicit_const attr, terminated, table terminated.
func buildAbbrev() []byte {
	return []byte{
		0x01,       // code 1
		0x11,       // DW_TAG_compile_unit
		0x01,       // has children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x3a, 0x21, 0x05, // DW_AT_decl_file, DW_FORM_implicit_const, value=5
		0x00, 0x00, // attr list terminator
		0x00, // table terminator
	}
}

func TestParseAbbrevTable(t *testing.T) {
	data := buildAbbrev()
	table, err := abbrev.Parse(data, 0)
	require.NoError(t, err)
	require.Len(t, table, 1)

	decl := table[1]
	require.NotNil(t, decl)
	require.Equal(t, uint64(0x11), decl.Tag)
	require.True(t, decl.HasChildren)
	require.Len(t, decl.Attrs, 2)
	require.Equal(t, uint64(0x03), decl.Attrs[0].Name)
	require.Equal(t, uint64(0x08), decl.Attrs[0].Form)
	require.True(t, decl.Attrs[1].HasImplicitVal)
	require.Equal(t, int64(5), decl.Attrs[1].ImplicitConst)
}

func TestCacheMemoises(t *testing.T) {
	data := buildAbbrev()
	c := abbrev.NewCache(data)

	t1, err := c.Get(0)
	require.NoError(t, err)
	t2, err := c.Get(0)
	require.NoError(t, err)

	require.Equal(t, t1, t2)
}

func TestParseTruncatedReturnsError(t *testing.T) {
	_, err := abbrev.Parse([]byte{0x01, 0x11}, 0)
	require.Error(t, err)
}
