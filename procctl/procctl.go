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

// Package procctl defines the process control interface (component C10):
// the external collaborator boundary the debug engine drives, implemented
// by the ptrace backend on Linux and the read-only coredump backend.
package procctl

import "context"

// StopReason classifies why Controller.WaitForStop returned.
type StopReason int

const (
	StopUnknown StopReason = iota
	StopBreakpoint
	StopSingleStep
	StopSignal
	StopExited
	StopWatchpoint
)

// StopEvent describes one stop of the controlled process.
type StopEvent struct {
	Reason   StopReason
	Signal   int
	ExitCode int
	PC       uint64
}

// Registers is the architecture's general-purpose register file, keyed by
// DWARF register number (the same numbering locexpr and cfi use).
type Registers map[uint64]uint64

// Controller is the process-control boundary. Every blocking call accepts a
// context so the engine's cooperative loop can cancel a hung wait.
type Controller interface {
	Spawn(ctx context.Context, path string, args []string) error
	Attach(ctx context.Context, pid int) error
	Detach(ctx context.Context) error
	Kill(ctx context.Context) error

	Continue(ctx context.Context) error
	SingleStep(ctx context.Context) error
	WaitForStop(ctx context.Context) (StopEvent, error)

	ReadRegisters(ctx context.Context) (Registers, error)
	WriteRegisters(ctx context.Context, regs Registers) error
	ReadFloatRegisters(ctx context.Context) ([]byte, error)

	ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error)
	WriteMemory(ctx context.Context, addr uint64, data []byte) error

	GetTextBase(ctx context.Context) (uint64, error)

	SetHardwareWatchpoint(ctx context.Context, addr uint64, size int, onWrite bool) (int, error)
	ClearHardwareWatchpoint(ctx context.Context, slot int) error
}

// TaskProvider is implemented by backends that expose an OS-level task or
// thread handle beyond the pid (Mach tasks on macOS); optional.
type TaskProvider interface {
	GetTask() (uintptr, error)
}

// OutputCapture is implemented by backends that capture the inferior's
// stdout/stderr; optional.
type OutputCapture interface {
	ReadCapturedOutput() []byte
}

// PidProvider is implemented by backends that track a live pid; optional
// because the coredump backend has none.
type PidProvider interface {
	GetPid() (int, bool)
}
