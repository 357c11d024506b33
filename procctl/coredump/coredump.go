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

// Package coredump implements a read-only procctl.Controller over an ELF
// core file: memory reads and register inspection work exactly as they do
// against a live process, but every mutator returns a not-supported error
// at run time since a core file cannot be resumed.
package coredump

import (
	"context"

	"github.com/ashgrove/nativedbg/engineerrs"
	"github.com/ashgrove/nativedbg/loader"
	"github.com/ashgrove/nativedbg/procctl"
)

// Segment is one PT_LOAD mapping captured in the core file: file bytes at
// Data correspond 1:1 to the inferior's address space starting at VAddr.
type Segment struct {
	VAddr uint64
	Data  []byte
}

// Backend is a read-only core-file backed procctl.Controller.
type Backend struct {
	image    *loader.Image
	segments []Segment
	regs     procctl.Registers
	textBase uint64
}

// Open loads raw as an image and wraps the caller-supplied PT_LOAD segments,
// register snapshot and text base. It does not parse program headers or the
// NT_PRSTATUS note itself, since loader.Image only indexes sections.
func Open(raw []byte, segments []Segment, regs procctl.Registers, textBase uint64) (*Backend, error) {
	img, err := loader.Load(raw)
	if err != nil {
		return nil, err
	}
	return &Backend{image: img, segments: segments, regs: regs, textBase: textBase}, nil
}

var errReadOnly = engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "mutating a core file backend")

func (b *Backend) Spawn(ctx context.Context, path string, args []string) error { return errReadOnly }
func (b *Backend) Attach(ctx context.Context, pid int) error                   { return errReadOnly }
func (b *Backend) Detach(ctx context.Context) error                            { return nil }
func (b *Backend) Kill(ctx context.Context) error                              { return errReadOnly }
func (b *Backend) Continue(ctx context.Context) error                          { return errReadOnly }
func (b *Backend) SingleStep(ctx context.Context) error                        { return errReadOnly }

// WaitForStop always reports the core's frozen state as an exit; there is
// nothing further to wait for.
func (b *Backend) WaitForStop(ctx context.Context) (procctl.StopEvent, error) {
	return procctl.StopEvent{Reason: procctl.StopExited, PC: b.regs[16]}, nil
}

func (b *Backend) ReadRegisters(ctx context.Context) (procctl.Registers, error) {
	out := make(procctl.Registers, len(b.regs))
	for k, v := range b.regs {
		out[k] = v
	}
	return out, nil
}

func (b *Backend) WriteRegisters(ctx context.Context, regs procctl.Registers) error { return errReadOnly }

func (b *Backend) ReadFloatRegisters(ctx context.Context) ([]byte, error) {
	return nil, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "floating point registers")
}

// ReadMemory finds the PT_LOAD segment containing addr and slices its
// captured bytes; core files only contain the pages that were resident.
func (b *Backend) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	for _, s := range b.segments {
		if addr >= s.VAddr && addr+uint64(size) <= s.VAddr+uint64(len(s.Data)) {
			start := addr - s.VAddr
			return s.Data[start : start+uint64(size)], nil
		}
	}
	return nil, engineerrs.New(engineerrs.NotFound, "nativedbg: address %#x not resident in core file", addr)
}

func (b *Backend) WriteMemory(ctx context.Context, addr uint64, data []byte) error { return errReadOnly }

func (b *Backend) GetTextBase(ctx context.Context) (uint64, error) { return b.textBase, nil }

func (b *Backend) SetHardwareWatchpoint(ctx context.Context, addr uint64, size int, onWrite bool) (int, error) {
	return 0, errReadOnly
}

func (b *Backend) ClearHardwareWatchpoint(ctx context.Context, slot int) error { return errReadOnly }

// GetPid implements procctl.PidProvider; a core file has no live pid.
func (b *Backend) GetPid() (int, bool) { return 0, false }
