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

package ptrace

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// offsets into struct user (sys/user.h) on x86-64: u_debugreg[8] follows
// the general registers, i387 fpregs and a handful of other fixed fields.
// debugRegOffset is the byte offset of u_debugreg[0] within struct user,
// the same constant every Linux ptrace-based debugger hardcodes for amd64.
const debugRegOffset = 848

func pokeDebugReg(pid int, slot int, addr uint64, size int, onWrite bool) error {
	drOffset := uintptr(debugRegOffset + slot*8)
	if err := ptracePokeUser(pid, drOffset, addr); err != nil {
		return err
	}

	dr7Offset := uintptr(debugRegOffset + 7*8)
	dr7, err := ptracePeekUser(pid, dr7Offset)
	if err != nil {
		return err
	}

	lenBits := uint64(0x3) // 4-byte watch, default
	switch size {
	case 1:
		lenBits = 0x0
	case 2:
		lenBits = 0x1
	case 8:
		lenBits = 0x2
	}
	rwBits := uint64(0x1) // write-only
	if !onWrite {
		rwBits = 0x3 // read/write
	}

	// enable local breakpoint (bit 2*slot) and set the RW/LEN fields in the
	// 4-bit control nibble for this slot starting at bit 16+slot*4
	dr7 |= 1 << (uint(slot) * 2)
	ctrlShift := uint(16 + slot*4)
	dr7 &^= 0xf << ctrlShift
	dr7 |= (rwBits | lenBits<<2) << ctrlShift

	return ptracePokeUser(pid, dr7Offset, dr7)
}

func clearDebugReg(pid int, slot int) error {
	dr7Offset := uintptr(debugRegOffset + 7*8)
	dr7, err := ptracePeekUser(pid, dr7Offset)
	if err != nil {
		return err
	}
	dr7 &^= 1 << (uint(slot) * 2)
	return ptracePokeUser(pid, dr7Offset, dr7)
}

func ptracePokeUser(pid int, offset uintptr, data uint64) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEUSR, uintptr(pid), offset, uintptr(data), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ptracePeekUser(pid int, offset uintptr) (uint64, error) {
	var out uint64
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKUSR, uintptr(pid), offset, uintptr(unsafe.Pointer(&out)), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return out, nil
}
