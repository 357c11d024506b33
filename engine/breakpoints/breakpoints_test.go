package breakpoints_test

import (
	"errors"
	"testing"

	"github.com/ashgrove/nativedbg/engine/breakpoints"
	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	data map[uint64]byte
}

func newFakeMemory() *fakeMemory { return &fakeMemory{data: make(map[uint64]byte)} }

func (m *fakeMemory) ReadMemory(addr uint64, size int) ([]byte, error) {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = m.data[addr+uint64(i)]
	}
	return out, nil
}

func (m *fakeMemory) WriteMemory(addr uint64, data []byte) error {
	for i, b := range data {
		m.data[addr+uint64(i)] = b
	}
	return nil
}

func TestSetSoftwarePlantsTrap(t *testing.T) {
	mem := newFakeMemory()
	mem.data[0x1000] = 0x55 // original instruction byte

	mgr := breakpoints.NewManager(nil)
	bp, err := mgr.SetSoftware(mem, 0x1000)
	require.NoError(t, err)
	require.Equal(t, byte(0xcc), mem.data[0x1000])

	found, ok := mgr.At(0x1000)
	require.True(t, ok)
	require.Equal(t, bp.ID, found.ID)
}

func TestStepPastRestoresAndReplants(t *testing.T) {
	mem := newFakeMemory()
	mem.data[0x2000] = 0x90

	mgr := breakpoints.NewManager(nil)
	bp, err := mgr.SetSoftware(mem, 0x2000)
	require.NoError(t, err)
	require.Equal(t, byte(0xcc), mem.data[0x2000])

	resume, err := mgr.StepPast(mem, bp)
	require.NoError(t, err)
	require.Equal(t, byte(0x90), mem.data[0x2000])

	require.NoError(t, resume())
	require.Equal(t, byte(0xcc), mem.data[0x2000])
}

func TestClearLiftsBreakpoint(t *testing.T) {
	mem := newFakeMemory()
	mem.data[0x3000] = 0x41

	mgr := breakpoints.NewManager(nil)
	bp, err := mgr.SetSoftware(mem, 0x3000)
	require.NoError(t, err)

	require.NoError(t, mgr.Clear(mem, bp.ID))
	require.Equal(t, byte(0x41), mem.data[0x3000])

	_, ok := mgr.At(0x3000)
	require.False(t, ok)
}

func TestHitConditionGatesStop(t *testing.T) {
	mem := newFakeMemory()
	mgr := breakpoints.NewManager(nil)
	bp, err := mgr.SetSoftware(mem, 0x4000)
	require.NoError(t, err)

	require.NoError(t, mgr.SetHitCondition(bp, ">=", 3))

	for i := 0; i < 2; i++ {
		stop, err := mgr.Hit(bp)
		require.NoError(t, err)
		require.False(t, stop)
	}
	stop, err := mgr.Hit(bp)
	require.NoError(t, err)
	require.True(t, stop)
}

func TestLogPointNeverStops(t *testing.T) {
	mem := newFakeMemory()
	mgr := breakpoints.NewManager(nil)
	bp, err := mgr.SetSoftware(mem, 0x5000)
	require.NoError(t, err)
	bp.LogPoint = "hit count: {hits}"

	stop, err := mgr.Hit(bp)
	require.NoError(t, err)
	require.False(t, stop)
}

func TestConditionFailsOpenOnEvaluatorError(t *testing.T) {
	mem := newFakeMemory()
	evalErr := errors.New("broken condition expression")
	mgr := breakpoints.NewManager(func(expr string) (bool, error) {
		return false, evalErr
	})
	bp, err := mgr.SetSoftware(mem, 0x6000)
	require.NoError(t, err)
	bp.Condition = "x > 1"

	stop, err := mgr.Hit(bp)
	require.ErrorIs(t, err, evalErr)
	require.True(t, stop)
}
