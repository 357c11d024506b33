package rangelist_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/rangelist"
	"github.com/stretchr/testify/require"
)

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func TestParseDwarf4WithBaseSelector(t *testing.T) {
	var buf bytes.Buffer
	// base address selection entry: 0xffffffffffffffff, new base 0x2000
	buf.Write(u64le(^uint64(0)))
	buf.Write(u64le(0x2000))
	// range [0x10, 0x20) relative to base
	buf.Write(u64le(0x10))
	buf.Write(u64le(0x20))
	// terminator
	buf.Write(u64le(0))
	buf.Write(u64le(0))

	list, err := rangelist.ParseDwarf4(buf.Bytes(), 0, 0x1000, 8)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, uint64(0x2010), list[0].Low)
	require.Equal(t, uint64(0x2020), list[0].High)
	require.True(t, list.Contains(0x2015))
	require.False(t, list.Contains(0x3000))
}

type fakeAddrResolver struct {
	addrs []uint64
}

func (f fakeAddrResolver) AddrX(index uint64, base uint64) uint64 {
	return f.addrs[index]
}

func TestParseDwarf5OffsetPairAndStartLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x04) // DW_RLE_offset_pair
	writeULEB(&buf, 0x10)
	writeULEB(&buf, 0x20)
	buf.WriteByte(0x07) // DW_RLE_start_length
	buf.Write(u64le(0x5000))
	writeULEB(&buf, 0x40)
	buf.WriteByte(0x00) // DW_RLE_end_of_list

	list, err := rangelist.ParseDwarf5(buf.Bytes(), 0, 0x1000, nil, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, uint64(0x1010), list[0].Low)
	require.Equal(t, uint64(0x1020), list[0].High)
	require.Equal(t, uint64(0x5000), list[1].Low)
	require.Equal(t, uint64(0x5040), list[1].High)
}

func TestParseDwarf5StartxEndx(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x02) // DW_RLE_startx_endx
	writeULEB(&buf, 0)
	writeULEB(&buf, 1)
	buf.WriteByte(0x00)

	resolver := fakeAddrResolver{addrs: []uint64{0x7000, 0x7100}}
	list, err := rangelist.ParseDwarf5(buf.Bytes(), 0, 0, resolver, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, uint64(0x7000), list[0].Low)
	require.Equal(t, uint64(0x7100), list[0].High)
}

func writeULEB(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
		} else {
			buf.WriteByte(b)
			return
		}
	}
}
