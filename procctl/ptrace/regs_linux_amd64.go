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
	"github.com/ashgrove/nativedbg/procctl"
	"golang.org/x/sys/unix"
)

// rawRegs wraps unix.PtraceRegs with the DWARF register-number mapping for
// x86-64 (System V ABI, DWARF register numbers 0-16).
type rawRegs struct {
	unix.PtraceRegs
}

func (b *Backend) rawRegisters() (rawRegs, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(b.pid, &regs); err != nil {
		return rawRegs{}, err
	}
	return rawRegs{regs}, nil
}

func (r rawRegs) pc() uint64 { return r.Rip }

// These constants give the x86-64 DWARF register number -> PtraceRegs field
// order used by toDWARF/applyDWARF.
const (
	dwRAX = 0
	dwRDX = 1
	dwRCX = 2
	dwRBX = 3
	dwRSI = 4
	dwRDI = 5
	dwRBP = 6
	dwRSP = 7
	dwR8  = 8
	dwR9  = 9
	dwR10 = 10
	dwR11 = 11
	dwR12 = 12
	dwR13 = 13
	dwR14 = 14
	dwR15 = 15
	dwRIP = 16
)

func (r rawRegs) toDWARF() procctl.Registers {
	return procctl.Registers{
		dwRAX: r.Rax, dwRDX: r.Rdx, dwRCX: r.Rcx, dwRBX: r.Rbx,
		dwRSI: r.Rsi, dwRDI: r.Rdi, dwRBP: r.Rbp, dwRSP: r.Rsp,
		dwR8: r.R8, dwR9: r.R9, dwR10: r.R10, dwR11: r.R11,
		dwR12: r.R12, dwR13: r.R13, dwR14: r.R14, dwR15: r.R15,
		dwRIP: r.Rip,
	}
}

func applyDWARF(regs *unix.PtraceRegs, r procctl.Registers) {
	set := func(dst *uint64, n uint64) {
		if v, ok := r[n]; ok {
			*dst = v
		}
	}
	set(&regs.Rax, dwRAX)
	set(&regs.Rdx, dwRDX)
	set(&regs.Rcx, dwRCX)
	set(&regs.Rbx, dwRBX)
	set(&regs.Rsi, dwRSI)
	set(&regs.Rdi, dwRDI)
	set(&regs.Rbp, dwRBP)
	set(&regs.Rsp, dwRSP)
	set(&regs.R8, dwR8)
	set(&regs.R9, dwR9)
	set(&regs.R10, dwR10)
	set(&regs.R11, dwR11)
	set(&regs.R12, dwR12)
	set(&regs.R13, dwR13)
	set(&regs.R14, dwR14)
	set(&regs.R15, dwR15)
	set(&regs.Rip, dwRIP)
}
