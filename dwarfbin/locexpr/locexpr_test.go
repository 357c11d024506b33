package locexpr_test

import (
	"testing"

	"github.com/ashgrove/nativedbg/dwarfbin/locexpr"
	"github.com/stretchr/testify/require"
)

type fakeMachine struct {
	regs      map[int]uint64
	mem       map[uint64][]byte
	frameBase uint64
	cfa       uint64
}

func (m fakeMachine) Register(n int) (uint64, error) { return m.regs[n], nil }
func (m fakeMachine) ReadMemory(addr uint64, size int) ([]byte, error) {
	return m.mem[addr][:size], nil
}
func (m fakeMachine) FrameBase() (uint64, error)      { return m.frameBase, nil }
func (m fakeMachine) CFA() (uint64, error)             { return m.cfa, nil }
func (m fakeMachine) AddrX(index uint64) (uint64, error) { return 0, nil }

func TestEvalFbregAddress(t *testing.T) {
	m := fakeMachine{frameBase: 0x1000}
	// DW_OP_fbreg -8
	expr := []byte{0x91, 0x78} // SLEB(-8) = 0x78
	res, err := locexpr.Eval(expr, m, 8)
	require.NoError(t, err)
	require.True(t, res.IsAddress)
	require.Equal(t, uint64(0xff8), res.Address)
}

func TestEvalRegister(t *testing.T) {
	m := fakeMachine{}
	// DW_OP_reg3
	res, err := locexpr.Eval([]byte{0x53}, m, 8)
	require.NoError(t, err)
	require.True(t, res.IsRegister)
	require.Equal(t, 3, res.Register)
}

func TestEvalLiteralStackValue(t *testing.T) {
	m := fakeMachine{}
	// DW_OP_lit5, DW_OP_stack_value
	res, err := locexpr.Eval([]byte{0x35, 0x9f}, m, 8)
	require.NoError(t, err)
	require.True(t, res.IsLiteral)
	require.Equal(t, uint64(5), res.Literal)
}

func TestEvalPlusUconst(t *testing.T) {
	m := fakeMachine{}
	// DW_OP_lit4, DW_OP_plus_uconst 6
	res, err := locexpr.Eval([]byte{0x34, 0x23, 0x06}, m, 8)
	require.NoError(t, err)
	require.True(t, res.IsAddress)
	require.Equal(t, uint64(10), res.Address)
}

func TestEvalCallFrameCFA(t *testing.T) {
	m := fakeMachine{cfa: 0x7fff0000}
	res, err := locexpr.Eval([]byte{0x9c}, m, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x7fff0000), res.Address)
}

func TestEvalEmptyExpressionErrors(t *testing.T) {
	m := fakeMachine{}
	_, err := locexpr.Eval([]byte{}, m, 8)
	require.Error(t, err)
}
