package disasm_test

import (
	"testing"

	"github.com/ashgrove/nativedbg/disasm"
	"github.com/stretchr/testify/require"
)

func TestDecodeX86CallRel32(t *testing.T) {
	// call +0x10 from address 0x1000: e8 10 00 00 00
	code := []byte{0xe8, 0x10, 0x00, 0x00, 0x00}
	ins := disasm.DecodeX86(code, 0x1000)
	require.Equal(t, disasm.KindCall, ins.Kind)
	require.Equal(t, 5, ins.Length)
	require.True(t, ins.HasTarget)
	require.Equal(t, uint64(0x1015), ins.Target)
}

func TestDecodeX86JmpRel8Backwards(t *testing.T) {
	// jmp -2 from address 0x2000: eb fe
	code := []byte{0xeb, 0xfe}
	ins := disasm.DecodeX86(code, 0x2000)
	require.Equal(t, disasm.KindJump, ins.Kind)
	require.Equal(t, 2, ins.Length)
	require.Equal(t, uint64(0x2000), ins.Target)
}

func TestDecodeX86Ret(t *testing.T) {
	ins := disasm.DecodeX86([]byte{0xc3}, 0x3000)
	require.Equal(t, disasm.KindReturn, ins.Kind)
	require.Equal(t, 1, ins.Length)
}

func TestDecodeX86Int3(t *testing.T) {
	ins := disasm.DecodeX86([]byte{0xcc}, 0x4000)
	require.Equal(t, disasm.KindInt3, ins.Kind)
}

func TestDecodeX86IndirectCallViaFFGroup(t *testing.T) {
	// call rax: ff d0  (modrm 0xd0 = mod=11 reg=010 rm=000)
	ins := disasm.DecodeX86([]byte{0xff, 0xd0}, 0x5000)
	require.Equal(t, disasm.KindCall, ins.Kind)
	require.Equal(t, 2, ins.Length)
}

func TestDecodeX86SkipsRexPrefix(t *testing.T) {
	// rex.w ret is nonsensical but exercises the prefix skip uniformly
	ins := disasm.DecodeX86([]byte{0x48, 0xc3}, 0x6000)
	require.Equal(t, disasm.KindReturn, ins.Kind)
	require.Equal(t, 2, ins.Length)
}

func TestDecodeARM64BL(t *testing.T) {
	// bl #8 encoded as 0x94000002 (imm26=2, *4 = 8 bytes forward)
	code := []byte{0x02, 0x00, 0x00, 0x94}
	ins := disasm.DecodeARM64(code, 0x8000)
	require.Equal(t, disasm.KindCall, ins.Kind)
	require.Equal(t, uint64(0x8008), ins.Target)
}

func TestDecodeARM64Ret(t *testing.T) {
	// ret with default x30: 0xd65f03c0
	code := []byte{0xc0, 0x03, 0x5f, 0xd6}
	ins := disasm.DecodeARM64(code, 0x9000)
	require.Equal(t, disasm.KindReturn, ins.Kind)
}
