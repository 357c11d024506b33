// This file is part of nativedbg.
//
// nativedbg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nativedbg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with nativedbg.  If not, see <https://www.gnu.org/licenses/>.

//go:build linux && amd64

// Package ptrace implements procctl.Controller on Linux using
// golang.org/x/sys/unix's PTRACE wrappers. The debugged process is always
// driven from the same OS thread ptrace attached from, per the Linux
// ptrace(2) contract, so every exported method must run on the goroutine
// that called Spawn or Attach.
package ptrace

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/ashgrove/nativedbg/assert"
	"github.com/ashgrove/nativedbg/engineerrs"
	"github.com/ashgrove/nativedbg/procctl"
	"golang.org/x/sys/unix"
)

// hardware watchpoint slots available on x86-64 (DR0-DR3).
const numDebugRegSlots = 4

// Backend is a ptrace-based procctl.Controller.
type Backend struct {
	caller assert.SingleCaller

	cmd     *exec.Cmd
	pid     int
	running bool

	watchpoints [numDebugRegSlots]bool

	stdout *os.File
}

// New creates an unattached ptrace backend. The caller must run every
// subsequent method from the same goroutine, since Linux ptrace binds the
// tracer to one OS thread.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) lockOSThread() {
	runtime.LockOSThread()
}

// Spawn starts path under ptrace, stopping it at the first instruction
// after exec via PTRACE_TRACEME in the child's pre-exec hook.
func (b *Backend) Spawn(ctx context.Context, path string, args []string) error {
	b.caller.Check()
	b.lockOSThread()

	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return engineerrs.New(engineerrs.Process, engineerrs.PatSpawnFailed, err)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(cmd.Process.Pid, &ws, 0, nil); err != nil {
		return engineerrs.New(engineerrs.Process, engineerrs.PatSpawnFailed, err)
	}

	b.cmd = cmd
	b.pid = cmd.Process.Pid
	b.running = true
	return nil
}

// Attach ptrace-attaches to an already-running process.
func (b *Backend) Attach(ctx context.Context, pid int) error {
	b.caller.Check()
	b.lockOSThread()

	if err := unix.PtraceAttach(pid); err != nil {
		return engineerrs.New(engineerrs.Process, engineerrs.PatSpawnFailed, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return engineerrs.New(engineerrs.Process, engineerrs.PatSpawnFailed, err)
	}

	b.pid = pid
	b.running = true
	return nil
}

// Detach lets the inferior continue outside of ptrace's control.
func (b *Backend) Detach(ctx context.Context) error {
	b.caller.Check()
	if !b.running {
		return engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}
	err := unix.PtraceDetach(b.pid)
	b.running = false
	return err
}

// Kill terminates the inferior.
func (b *Backend) Kill(ctx context.Context) error {
	b.caller.Check()
	if !b.running {
		return engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}
	err := unix.Kill(b.pid, unix.SIGKILL)
	b.running = false
	return err
}

// Pause interrupts a running inferior with SIGSTOP so the engine's pause
// action works even mid-continue; the next WaitForStop reports it as a
// plain signal stop.
func (b *Backend) Pause(ctx context.Context) error {
	b.caller.Check()
	if !b.running {
		return engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}
	return unix.Kill(b.pid, unix.SIGSTOP)
}

// Continue resumes the inferior without injecting a signal.
func (b *Backend) Continue(ctx context.Context) error {
	b.caller.Check()
	if !b.running {
		return engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}
	return unix.PtraceCont(b.pid, 0)
}

// SingleStep resumes the inferior for exactly one machine instruction.
func (b *Backend) SingleStep(ctx context.Context) error {
	b.caller.Check()
	if !b.running {
		return engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}
	return unix.PtraceSingleStep(b.pid)
}

// WaitForStop blocks until the inferior next stops, translating its wait
// status into a procctl.StopEvent.
func (b *Backend) WaitForStop(ctx context.Context) (procctl.StopEvent, error) {
	b.caller.Check()
	if !b.running {
		return procctl.StopEvent{}, engineerrs.New(engineerrs.Process, engineerrs.PatNoProcess)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(b.pid, &ws, 0, nil); err != nil {
		return procctl.StopEvent{}, err
	}

	if ws.Exited() {
		b.running = false
		return procctl.StopEvent{Reason: procctl.StopExited, ExitCode: ws.ExitStatus()}, nil
	}
	if ws.Signaled() {
		b.running = false
		return procctl.StopEvent{Reason: procctl.StopExited, ExitCode: -1}, nil
	}
	if ws.Stopped() {
		sig := ws.StopSignal()
		regs, err := b.rawRegisters()
		var pc uint64
		if err == nil {
			pc = regs.pc()
		}
		if sig == unix.SIGTRAP {
			return procctl.StopEvent{Reason: procctl.StopBreakpoint, PC: pc}, nil
		}
		return procctl.StopEvent{Reason: procctl.StopSignal, Signal: int(sig), PC: pc}, nil
	}

	return procctl.StopEvent{Reason: procctl.StopUnknown}, nil
}

// ReadRegisters returns the current general-purpose register file.
func (b *Backend) ReadRegisters(ctx context.Context) (procctl.Registers, error) {
	b.caller.Check()
	regs, err := b.rawRegisters()
	if err != nil {
		return nil, err
	}
	return regs.toDWARF(), nil
}

// WriteRegisters writes back a modified register file.
func (b *Backend) WriteRegisters(ctx context.Context, r procctl.Registers) error {
	b.caller.Check()
	var regs unix.PtraceRegs
	if _, err := unix.PtraceGetRegs(b.pid, &regs); err != nil {
		return err
	}
	applyDWARF(&regs, r)
	return unix.PtraceSetRegs(b.pid, &regs)
}

// ReadFloatRegisters is unsupported on this backend; no component needs it
// yet, and x/sys/unix exposes no portable FPREGS wrapper across the
// architectures this package targets.
func (b *Backend) ReadFloatRegisters(ctx context.Context) ([]byte, error) {
	b.caller.Check()
	return nil, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "floating point registers")
}

// ReadMemory reads size bytes at addr out of the inferior's address space
// with PTRACE_PEEKDATA.
func (b *Backend) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	b.caller.Check()
	buf := make([]byte, size)
	n, err := unix.PtracePeekData(b.pid, uintptr(addr), buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteMemory writes data into the inferior's address space.
func (b *Backend) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	b.caller.Check()
	_, err := unix.PtracePokeData(b.pid, uintptr(addr), data)
	return err
}

// GetTextBase returns the load address of the inferior's main executable
// segment, read from /proc/pid/maps' first r-xp mapping.
func (b *Backend) GetTextBase(ctx context.Context) (uint64, error) {
	b.caller.Check()
	return readTextBase(b.pid)
}

// SetHardwareWatchpoint programs one of the four x86-64 debug address
// registers (DR0-DR3) via PTRACE_POKEUSER; returns the slot index used.
func (b *Backend) SetHardwareWatchpoint(ctx context.Context, addr uint64, size int, onWrite bool) (int, error) {
	b.caller.Check()
	for i, used := range b.watchpoints {
		if !used {
			b.watchpoints[i] = true
			if err := pokeDebugReg(b.pid, i, addr, size, onWrite); err != nil {
				b.watchpoints[i] = false
				return 0, err
			}
			return i, nil
		}
	}
	return 0, engineerrs.New(engineerrs.Policy, "nativedbg: no free hardware watchpoint slots")
}

// ClearHardwareWatchpoint disables a previously programmed slot.
func (b *Backend) ClearHardwareWatchpoint(ctx context.Context, slot int) error {
	b.caller.Check()
	if slot < 0 || slot >= numDebugRegSlots {
		return engineerrs.New(engineerrs.Policy, "nativedbg: invalid watchpoint slot %d", slot)
	}
	b.watchpoints[slot] = false
	return clearDebugReg(b.pid, slot)
}

// GetPid implements procctl.PidProvider.
func (b *Backend) GetPid() (int, bool) {
	return b.pid, b.running
}
