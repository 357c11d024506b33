package accel_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/accel"
	"github.com/stretchr/testify/require"
)

func buildAranges(t *testing.T) []byte {
	t.Helper()
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint16(2)) // version
	binary.Write(&body, binary.LittleEndian, uint32(0)) // debug_info_offset
	body.WriteByte(8)                                   // address_size
	body.WriteByte(0)                                   // segment_selector_size
	// header occupies 4 (unit_length) + 8 = 12 bytes; pad 4 bytes to reach
	// the next 16-byte (2*address_size) boundary before the tuple data
	body.Write(make([]byte, 4))
	binary.Write(&body, binary.LittleEndian, uint64(0x1000))
	binary.Write(&body, binary.LittleEndian, uint64(0x100))
	binary.Write(&body, binary.LittleEndian, uint64(0))
	binary.Write(&body, binary.LittleEndian, uint64(0))

	var unit bytes.Buffer
	binary.Write(&unit, binary.LittleEndian, uint32(body.Len()))
	unit.Write(body.Bytes())
	return unit.Bytes()
}

func TestParseArangesAndLookup(t *testing.T) {
	data := buildAranges(t)
	a, err := accel.ParseAranges(data, 8)
	require.NoError(t, err)
	require.Len(t, a, 1)

	cu, ok := a.Lookup(0x1050)
	require.True(t, ok)
	require.Equal(t, 0, cu)

	_, ok = a.Lookup(0x2000)
	require.False(t, ok)
}

func TestNameIndexLookup(t *testing.T) {
	idx := accel.NewNameIndex()
	idx.Add("main", 0x40, 0)
	idx.Add("helper", 0x80, 0)

	entries := idx.Lookup("main")
	require.Len(t, entries, 1)
	require.Equal(t, 0x40, entries[0].DIEOffset)

	require.Empty(t, idx.Lookup("missing"))
}

func TestTypeUnitIndexResolve(t *testing.T) {
	idx := accel.TypeUnitIndex{0xdeadbeef: 0x200}
	off, err := idx.Resolve(0xdeadbeef)
	require.NoError(t, err)
	require.Equal(t, 0x200, off)

	_, err = idx.Resolve(0x1)
	require.Error(t, err)
}
