package engine_test

import (
	"context"
	"testing"

	"github.com/ashgrove/nativedbg/engine"
	"github.com/ashgrove/nativedbg/engine/breakpoints"
	"github.com/ashgrove/nativedbg/procctl"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	regs     procctl.Registers
	mem      map[uint64]byte
	events   []procctl.StopEvent
	textBase uint64
	spawned  bool
}

func newFakeController() *fakeController {
	return &fakeController{regs: procctl.Registers{}, mem: make(map[uint64]byte)}
}

func (c *fakeController) Spawn(ctx context.Context, path string, args []string) error {
	c.spawned = true
	c.regs[16] = c.textBase
	return nil
}
func (c *fakeController) Attach(ctx context.Context, pid int) error { return nil }
func (c *fakeController) Detach(ctx context.Context) error          { return nil }
func (c *fakeController) Kill(ctx context.Context) error            { c.spawned = false; return nil }
func (c *fakeController) Continue(ctx context.Context) error        { return nil }
func (c *fakeController) SingleStep(ctx context.Context) error      { return nil }

func (c *fakeController) WaitForStop(ctx context.Context) (procctl.StopEvent, error) {
	ev := c.events[0]
	c.events = c.events[1:]
	c.regs[16] = ev.PC
	return ev, nil
}

func (c *fakeController) ReadRegisters(ctx context.Context) (procctl.Registers, error) {
	out := make(procctl.Registers, len(c.regs))
	for k, v := range c.regs {
		out[k] = v
	}
	return out, nil
}
func (c *fakeController) WriteRegisters(ctx context.Context, regs procctl.Registers) error {
	c.regs = regs
	return nil
}
func (c *fakeController) ReadFloatRegisters(ctx context.Context) ([]byte, error) { return nil, nil }

func (c *fakeController) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = c.mem[addr+uint64(i)]
	}
	return out, nil
}
func (c *fakeController) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	for i, b := range data {
		c.mem[addr+uint64(i)] = b
	}
	return nil
}

func (c *fakeController) GetTextBase(ctx context.Context) (uint64, error) { return c.textBase, nil }

func (c *fakeController) SetHardwareWatchpoint(ctx context.Context, addr uint64, size int, onWrite bool) (int, error) {
	return 0, nil
}
func (c *fakeController) ClearHardwareWatchpoint(ctx context.Context, slot int) error { return nil }

const sigTrap = 5
const sigSegv = 11
const sigWinch = 28 // benign, not in fatalSignals

func TestContinueStepsPastBreakpointThenExits(t *testing.T) {
	ctrl := newFakeController()
	ctrl.mem[0xfff] = 0x90

	bps := breakpoints.NewManager(nil)
	_, err := bps.SetSoftware(memShim{ctrl}, 0xfff)
	require.NoError(t, err)
	require.Equal(t, byte(0xcc), ctrl.mem[0xfff])

	ctrl.regs[16] = 0x1000 // rip one past the trap byte (0xfff + 1)
	ctrl.events = []procctl.StopEvent{
		{Reason: procctl.StopSingleStep, PC: 0xfff + 1},
		{Reason: procctl.StopExited, ExitCode: 0},
	}

	eng := engine.New(ctrl, bps, nil, nil, nil, nil, nil)
	st, err := eng.RunAction(context.Background(), engine.ActionContinue, engine.GranLine)
	require.NoError(t, err)
	require.True(t, st.Exited)
	require.Equal(t, byte(0xcc), ctrl.mem[0xfff]) // replanted after the step-past
}

func TestTransparentResumeSkipsBenignSignal(t *testing.T) {
	ctrl := newFakeController()
	bps := breakpoints.NewManager(nil)
	ctrl.events = []procctl.StopEvent{
		{Reason: procctl.StopSignal, Signal: sigWinch, PC: 0x2000},
		{Reason: procctl.StopExited, ExitCode: 0},
	}

	eng := engine.New(ctrl, bps, nil, nil, nil, nil, nil)
	st, err := eng.RunAction(context.Background(), engine.ActionContinue, engine.GranLine)
	require.NoError(t, err)
	require.True(t, st.Exited)
}

func TestFatalSignalStopsImmediately(t *testing.T) {
	ctrl := newFakeController()
	bps := breakpoints.NewManager(nil)
	ctrl.events = []procctl.StopEvent{
		{Reason: procctl.StopSignal, Signal: sigSegv, PC: 0x3000},
	}

	eng := engine.New(ctrl, bps, nil, nil, nil, nil, nil)
	st, err := eng.RunAction(context.Background(), engine.ActionContinue, engine.GranLine)
	require.NoError(t, err)
	require.False(t, st.Exited)
	require.Equal(t, procctl.StopSignal, st.Reason)
	require.Equal(t, uint64(0x3000), st.PC)
}

func TestRestartRebasesBreakpoints(t *testing.T) {
	ctrl := newFakeController()
	ctrl.textBase = 0x1000
	ctrl.mem[0x1500] = 0x90
	ctrl.events = []procctl.StopEvent{{Reason: procctl.StopSignal, PC: 0x1000}}

	bps := breakpoints.NewManager(nil)
	_, err := bps.SetSoftware(memShim{ctrl}, 0x1500)
	require.NoError(t, err)

	eng := engine.New(ctrl, bps, nil, nil, nil, nil, nil)
	require.NoError(t, eng.Launch(context.Background(), "prog", nil))

	ctrl.textBase = 0x2000 // simulate a different ASLR slide on re-spawn
	ctrl.events = []procctl.StopEvent{{Reason: procctl.StopSignal, PC: 0x2000}}
	_, err = eng.RunAction(context.Background(), engine.ActionRestart, engine.GranLine)
	require.NoError(t, err)

	_, stillAtOld := bps.At(0x1500)
	require.False(t, stillAtOld)
	rebased, ok := bps.At(0x2500)
	require.True(t, ok)
	require.Equal(t, uint64(0x2500), rebased.Addr)
}

func TestReverseActionsAreNotSupported(t *testing.T) {
	ctrl := newFakeController()
	bps := breakpoints.NewManager(nil)
	eng := engine.New(ctrl, bps, nil, nil, nil, nil, nil)

	_, err := eng.RunAction(context.Background(), engine.ActionReverseContinue, engine.GranLine)
	require.Error(t, err)
}

// memShim adapts fakeController to breakpoints.Memory for test setup that
// happens before an Engine exists to route through.
type memShim struct {
	ctrl *fakeController
}

func (m memShim) ReadMemory(addr uint64, size int) ([]byte, error) {
	return m.ctrl.ReadMemory(context.Background(), addr, size)
}
func (m memShim) WriteMemory(addr uint64, data []byte) error {
	return m.ctrl.WriteMemory(context.Background(), addr, data)
}
