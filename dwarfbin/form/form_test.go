package form_test

import (
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/stretchr/testify/require"
)

func TestFixedWidthReaders(t *testing.T) {
	r := form.NewReader([]byte{0x01, 0x02, 0x00, 0x03, 0x00, 0x00, 0x00})
	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(2), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(3), u32)
}

func TestSkipFormEachFamily(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		f    uint64
	}{
		{"addr8", []byte{1, 2, 3, 4, 5, 6, 7, 8}, form.DW_FORM_addr},
		{"data1", []byte{0x7f}, form.DW_FORM_data1},
		{"data2", []byte{0x01, 0x02}, form.DW_FORM_data2},
		{"data4", []byte{1, 2, 3, 4}, form.DW_FORM_data4},
		{"data8", []byte{1, 2, 3, 4, 5, 6, 7, 8}, form.DW_FORM_data8},
		{"string", []byte("hello\x00"), form.DW_FORM_string},
		{"block1", []byte{0x02, 0xAA, 0xBB}, form.DW_FORM_block1},
		{"sdata", []byte{0x02}, form.DW_FORM_sdata},
		{"udata", []byte{0x02}, form.DW_FORM_udata},
		{"flag_present", nil, form.DW_FORM_flag_present},
		{"sec_offset", []byte{1, 2, 3, 4}, form.DW_FORM_sec_offset},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := form.NewReader(c.data)
			err := form.SkipForm(r, c.f, 8, false)
			require.NoError(t, err)
			require.Equal(t, len(c.data), r.Off)
		})
	}
}

func TestSkipFormIndirect(t *testing.T) {
	// indirect form header (ULEB form code = data1) followed by one byte payload
	r := form.NewReader([]byte{byte(form.DW_FORM_data1), 0x42})
	err := form.SkipForm(r, form.DW_FORM_indirect, 8, false)
	require.NoError(t, err)
	require.Equal(t, 2, r.Off)
}

func TestSkipFormUnknownReportsError(t *testing.T) {
	r := form.NewReader([]byte{0x00})
	err := form.SkipForm(r, 0xff, 8, false)
	require.Error(t, err)
}

func TestSkipFormNeverOverrunsBuffer(t *testing.T) {
	r := form.NewReader([]byte{0x01})
	err := form.SkipForm(r, form.DW_FORM_data4, 8, false)
	require.Error(t, err)
}
